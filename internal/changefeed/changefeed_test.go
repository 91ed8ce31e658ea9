package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rzpsarthak13/docshelf/internal/core"
)

type recordingSink struct {
	mu       sync.Mutex
	events   []*core.ChangeEvent
	failures int
	calls    int
}

func (s *recordingSink) Publish(_ context.Context, events ...*core.ChangeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failures > 0 {
		s.failures--
		return errors.New("broker unavailable")
	}
	s.events = append(s.events, events...)
	return nil
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type fakeWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestMemoryQueueFIFO(t *testing.T) {
	q := NewMemoryQueue(10)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := q.Enqueue(ctx, NewEvent("users", core.OperationInsert, id, nil)); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}
	if q.Size() != 3 {
		t.Fatalf("expected size 3, got %d", q.Size())
	}

	events, err := q.Dequeue(ctx, 2)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if len(events) != 2 || events[0].DocumentID != "a" || events[1].DocumentID != "b" {
		t.Fatalf("unexpected batch: %+v", events)
	}

	events, _ = q.Dequeue(ctx, 10)
	if len(events) != 1 || events[0].DocumentID != "c" {
		t.Fatalf("unexpected remainder: %+v", events)
	}

	events, _ = q.Dequeue(ctx, 10)
	if len(events) != 0 {
		t.Fatalf("expected empty dequeue, got %d", len(events))
	}
}

func TestMemoryQueueFullAndClosed(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()
	if err := q.Enqueue(ctx, NewEvent("t", core.OperationClear, "", nil)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, NewEvent("t", core.OperationClear, "", nil)); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := q.Enqueue(ctx, NewEvent("t", core.OperationClear, "", nil)); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}

	events, err := q.Dequeue(ctx, 5)
	if err != nil || len(events) != 1 {
		t.Fatalf("buffered event should survive close: %v %d", err, len(events))
	}
}

func TestMemoryQueueRejectsInvalidEvents(t *testing.T) {
	q := NewMemoryQueue(4)
	if err := q.Enqueue(context.Background(), nil); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent for nil, got %v", err)
	}
	if err := q.Enqueue(context.Background(), &core.ChangeEvent{Operation: core.OperationInsert}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent for missing table, got %v", err)
	}
}

func TestNewEventAssignsUniqueIDs(t *testing.T) {
	a := NewEvent("t", core.OperationInsert, "1", core.Document{"x": 1.0})
	b := NewEvent("t", core.OperationInsert, "1", core.Document{"x": 1.0})
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected distinct event IDs, got %q and %q", a.ID, b.ID)
	}
	if a.Timestamp.Location() != time.UTC {
		t.Fatalf("expected UTC timestamp, got %v", a.Timestamp.Location())
	}
}

func TestRelayDeliversEvents(t *testing.T) {
	q := NewMemoryQueue(100)
	sink := &recordingSink{}
	relay := NewRelay("users", q, sink, RelayConfig{DrainRate: 1000, BatchSize: 10, PollInterval: 5 * time.Millisecond})

	ctx := context.Background()
	if err := relay.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := relay.Start(ctx); err != nil {
		t.Fatalf("second start should be a no-op: %v", err)
	}
	for i := 0; i < 25; i++ {
		if err := q.Enqueue(ctx, NewEvent("users", core.OperationUpdate, "doc", nil)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for sink.count() < 25 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := relay.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if sink.count() != 25 {
		t.Fatalf("expected 25 published events, got %d", sink.count())
	}
	if relay.Published() != 25 {
		t.Fatalf("expected published counter 25, got %d", relay.Published())
	}
	if relay.IsRunning() {
		t.Fatal("relay should not be running after stop")
	}
}

func TestRelayStopFlushesBufferedEvents(t *testing.T) {
	q := NewMemoryQueue(100)
	sink := &recordingSink{}
	relay := NewRelay("orders", q, sink, RelayConfig{DrainRate: 1, BatchSize: 1, PollInterval: time.Hour})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_ = q.Enqueue(ctx, NewEvent("orders", core.OperationDelete, "x", nil))
	}
	// Never started; Stop is a no-op, Flush drains everything.
	if err := relay.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	n, err := relay.Flush(ctx)
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if n != 5 || sink.count() != 5 {
		t.Fatalf("expected 5 flushed events, got %d (sink %d)", n, sink.count())
	}
}

func TestRelayStartOnCancelledContext(t *testing.T) {
	relay := NewRelay("orders", NewMemoryQueue(10), &recordingSink{}, RelayConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := relay.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if relay.IsRunning() {
		t.Fatal("relay should not run after a failed start")
	}
	if err := relay.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if err := relay.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestRelayRetriesThenSucceeds(t *testing.T) {
	q := NewMemoryQueue(10)
	sink := &recordingSink{failures: 2}
	relay := NewRelay("t", q, sink, RelayConfig{BatchSize: 5, MaxRetries: 3, RetryBackoff: time.Millisecond})

	_ = q.Enqueue(context.Background(), NewEvent("t", core.OperationInsert, "1", nil))
	n, err := relay.Flush(context.Background())
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if n != 1 || sink.calls != 3 {
		t.Fatalf("expected 1 event after 3 calls, got %d events, %d calls", n, sink.calls)
	}
}

func TestRelayDropsAfterRetries(t *testing.T) {
	q := NewMemoryQueue(10)
	sink := &recordingSink{failures: 10}
	relay := NewRelay("t", q, sink, RelayConfig{BatchSize: 5, MaxRetries: 1, RetryBackoff: time.Millisecond})

	_ = q.Enqueue(context.Background(), NewEvent("t", core.OperationInsert, "1", nil))
	if _, err := relay.Flush(context.Background()); err == nil {
		t.Fatal("expected flush to fail")
	}
	if relay.Dropped() != 1 {
		t.Fatalf("expected 1 dropped event, got %d", relay.Dropped())
	}
	if sink.calls != 2 {
		t.Fatalf("expected 2 publish attempts, got %d", sink.calls)
	}
}

func TestKafkaSinkKeysAndHeaders(t *testing.T) {
	w := &fakeWriter{}
	sink := NewKafkaSinkFromWriter(w, "changes")

	doc := NewEvent("users", core.OperationInsert, "abc", core.Document{"name": "Ada"})
	tableEvent := NewEvent("users", core.OperationClear, "", nil)
	if err := sink.Publish(context.Background(), doc, tableEvent); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(w.msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "abc" {
		t.Fatalf("expected document key, got %q", w.msgs[0].Key)
	}
	if string(w.msgs[1].Key) != "users" {
		t.Fatalf("expected table key for table-level event, got %q", w.msgs[1].Key)
	}
	if h := w.msgs[0].Headers[0]; h.Key != "operation" || string(h.Value) != "INSERT" {
		t.Fatalf("unexpected header: %+v", h)
	}

	var decoded core.ChangeEvent
	if err := json.Unmarshal(w.msgs[0].Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Document["name"] != "Ada" || decoded.ID != doc.ID {
		t.Fatalf("unexpected payload: %+v", decoded)
	}

	if err := sink.Close(); err != nil || !w.closed {
		t.Fatalf("close: %v (closed=%v)", err, w.closed)
	}
	if err := sink.Publish(context.Background(), doc); err == nil {
		t.Fatal("expected publish after close to fail")
	}
}
