package kvstore

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/rzpsarthak13/docshelf/internal/config"
	"github.com/rzpsarthak13/docshelf/internal/core"
)

// fakeDynamo keeps items in memory, keyed by the "key" attribute.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
	fail  error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func keyOf(item map[string]types.AttributeValue) string {
	return item["key"].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	return &dynamodb.GetItemOutput{Item: f.items[keyOf(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	f.items[keyOf(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	delete(f.items, keyOf(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestDynamoDBStore(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	store := NewDynamoDBKVStoreFromClient(fake, "cache")

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, core.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	if err := store.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := store.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	if ttl, ok := fake.items["k"]["ttl"].(*types.AttributeValueMemberN); !ok || ttl.Value == "" {
		t.Fatal("expected a ttl attribute")
	}

	// Expired items read as missing even before DynamoDB removes them.
	store.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := store.Get(ctx, "k"); !errors.Is(err, core.ErrKeyNotFound) {
		t.Fatalf("expired item should be missing, got %v", err)
	}

	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(fake.items) != 0 {
		t.Fatalf("item not deleted: %v", fake.items)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := store.Set(ctx, "k", nil, 0); err == nil {
		t.Fatal("Set after Close should fail")
	}
}

func TestDynamoDBStoreRejectsBadValues(t *testing.T) {
	fake := newFakeDynamo()
	fake.items["odd"] = map[string]types.AttributeValue{
		"key":   &types.AttributeValueMemberS{Value: "odd"},
		"value": &types.AttributeValueMemberS{Value: "not binary"},
	}
	store := NewDynamoDBKVStoreFromClient(fake, "cache")
	if _, err := store.Get(context.Background(), "odd"); err == nil || errors.Is(err, core.ErrKeyNotFound) {
		t.Fatalf("expected a format error, got %v", err)
	}
}

func TestDocumentCache(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	cache := NewDocumentCache(NewDynamoDBKVStoreFromClient(fake, "cache"), "users", time.Minute)

	if key, err := cache.Key(ctx, "abc"); err != nil || key != "docshelf:users:0:abc" {
		t.Fatalf("unexpected key %s (%v)", key, err)
	}
	if doc := cache.Get(ctx, "abc"); doc != nil {
		t.Fatalf("expected a miss, got %v", doc)
	}

	doc := core.Document{core.FieldID: "abc", "name": "ada", "tags": []interface{}{"x"}}
	cache.Put(ctx, doc)
	if got := cache.Get(ctx, "abc"); !reflect.DeepEqual(got, doc) {
		t.Fatalf("cached document mismatch: %v", got)
	}

	cache.Invalidate(ctx, "abc")
	if got := cache.Get(ctx, "abc"); got != nil {
		t.Fatalf("invalidated document still cached: %v", got)
	}

	// Documents without identity are not cached.
	cache.Put(ctx, core.Document{"name": "nobody"})
	if len(fake.items) != 0 {
		t.Fatalf("anonymous document was cached: %v", fake.items)
	}
}

func TestDocumentCacheReset(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	store := NewDynamoDBKVStoreFromClient(fake, "cache")
	cache := NewDocumentCache(store, "users", time.Minute)
	cache.now = func() time.Time { return time.Unix(1700000000, 0) }

	cache.Put(ctx, core.Document{core.FieldID: "abc", "name": "ada"})
	if cache.Get(ctx, "abc") == nil {
		t.Fatal("expected a cached document")
	}
	if err := cache.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if doc := cache.Get(ctx, "abc"); doc != nil {
		t.Fatalf("document from the previous generation still served: %v", doc)
	}
	key, err := cache.Key(ctx, "abc")
	if err != nil || key == "docshelf:users:0:abc" {
		t.Fatalf("generation did not advance: %s (%v)", key, err)
	}

	// A second cache over the same store sees the new generation.
	other := NewDocumentCache(store, "users", time.Minute)
	if otherKey, _ := other.Key(ctx, "abc"); otherKey != key {
		t.Fatalf("generation not shared: %s vs %s", otherKey, key)
	}

	fake.fail = errors.New("throttled")
	if err := cache.Reset(ctx); err == nil {
		t.Fatal("Reset should report store failures")
	}
}

func TestDocumentCacheSwallowsStoreErrors(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	cache := NewDocumentCache(NewDynamoDBKVStoreFromClient(fake, "cache"), "users", 0)

	fake.fail = errors.New("throttled")
	cache.Put(ctx, core.Document{core.FieldID: "a"})
	if got := cache.Get(ctx, "a"); got != nil {
		t.Fatalf("failing store should read as a miss, got %v", got)
	}
	cache.Invalidate(ctx, "a")

	// An undecodable entry is dropped.
	fake.fail = nil
	fake.items["docshelf:users:0:bad"] = map[string]types.AttributeValue{
		"key":   &types.AttributeValueMemberS{Value: "docshelf:users:0:bad"},
		"value": &types.AttributeValueMemberB{Value: []byte("{not json")},
	}
	if got := cache.Get(ctx, "bad"); got != nil {
		t.Fatalf("undecodable entry should be a miss, got %v", got)
	}
	if _, ok := fake.items["docshelf:users:0:bad"]; ok {
		t.Fatal("undecodable entry should be removed")
	}
}

func TestFactory(t *testing.T) {
	if registered := RegisteredTypes(); !reflect.DeepEqual(registered, []string{"dynamodb", "redis"}) {
		t.Fatalf("unexpected registered types: %v", registered)
	}

	cases := []struct {
		name string
		cfg  config.CacheConfig
		want string
	}{
		{"empty type", config.CacheConfig{}, "type is required"},
		{"unknown type", config.CacheConfig{Type: "memcached"}, "unsupported"},
		{"dynamodb without region", config.CacheConfig{Type: "dynamodb", TableName: "t"}, "region"},
		{"redis without endpoints", config.CacheConfig{Type: "redis"}, "endpoint"},
		{"redis bad db", config.CacheConfig{Type: "redis", Endpoints: []string{"localhost:6379"}, DB: 16}, "db"},
	}
	for _, tc := range cases {
		_, err := Create(tc.cfg)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: expected error containing %q, got %v", tc.name, tc.want, err)
		}
	}
}

func TestRegisterFactoryRejectsDuplicates(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic on duplicate registration")
		}
	}()
	RegisterFactory(&RedisKVStoreFactory{})
}

var _ DynamoDBAPI = (*fakeDynamo)(nil)
