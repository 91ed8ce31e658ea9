package query

import (
	"encoding/json"
	"testing"

	"github.com/rzpsarthak13/docshelf/internal/core"
)

func TestEqual(t *testing.T) {
	cases := []struct {
		a, b interface{}
		want bool
	}{
		{30.0, 30, true},
		{int64(30), 30.0, true},
		{json.Number("30"), 30, true},
		{30.0, "30", false},
		{"ada", "ada", true},
		{[]byte("ada"), "ada", true},
		{"ada", "Ada", false},
		{true, true, true},
		{true, 1, false},
		{nil, nil, true},
		{nil, false, false},
		{map[string]interface{}{"x": 1.0}, map[string]interface{}{"x": 1}, true},
		{[]interface{}{1.0, "a"}, []interface{}{1, "a"}, true},
		{[]interface{}{"a", 1.0}, []interface{}{1, "a"}, false},
		{map[string]interface{}{"x": 1.0}, map[string]interface{}{"x": 1.0, "y": 2.0}, false},
	}
	for _, tc := range cases {
		if got := Equal(tc.a, tc.b); got != tc.want {
			t.Errorf("Equal(%#v, %#v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestMatches(t *testing.T) {
	doc := core.Document{"name": "ada", "age": 36.0, "tags": []interface{}{"x"}, "nick": nil}

	if !Matches(doc, nil) || !Matches(doc, core.Query{}) {
		t.Fatal("empty query should match everything")
	}
	if !Matches(doc, core.Query{"name": "ada", "age": 36}) {
		t.Fatal("expected a match on every key")
	}
	if Matches(doc, core.Query{"name": "ada", "age": 37}) {
		t.Fatal("one mismatching key must reject the document")
	}
	if Matches(doc, core.Query{"missing": nil}) {
		t.Fatal("absent keys never match, not even null")
	}
	if !Matches(doc, core.Query{"nick": nil}) {
		t.Fatal("present null should match null")
	}
	if !Matches(doc, core.Query{"tags": []interface{}{"x"}}) {
		t.Fatal("arrays should compare structurally")
	}
}

func TestFilterPreservesOrder(t *testing.T) {
	docs := []core.Document{
		{"n": 1.0, "k": "a"},
		{"n": 2.0, "k": "b"},
		{"n": 3.0, "k": "a"},
	}
	got := Filter(docs, core.Query{"k": "a"})
	if len(got) != 2 || got[0]["n"] != 1.0 || got[1]["n"] != 3.0 {
		t.Fatalf("unexpected filter result: %v", got)
	}
	if all := Filter(docs, nil); len(all) != 3 {
		t.Fatalf("empty query should keep every document, got %d", len(all))
	}
}

func TestIDLookup(t *testing.T) {
	if id, ok := IDLookup(core.Query{core.FieldID: "abc", "x": 1}); !ok || id != "abc" {
		t.Fatalf("IDLookup = %q, %v", id, ok)
	}
	if _, ok := IDLookup(core.Query{"x": 1}); ok {
		t.Fatal("query without _id has no lookup")
	}
	if _, ok := IDLookup(core.Query{core.FieldID: 12}); ok {
		t.Fatal("non-string _id cannot use the primary key")
	}
}
