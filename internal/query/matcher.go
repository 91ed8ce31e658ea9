// Package query evaluates flat equality predicates against documents.
package query

import (
	"encoding/json"
	"reflect"

	"github.com/rzpsarthak13/docshelf/internal/core"
)

// Matches reports whether every key in q is present in doc with an equal
// value. An empty query matches every document.
func Matches(doc core.Document, q core.Query) bool {
	for key, want := range q {
		got, ok := doc[key]
		if !ok {
			return false
		}
		if !Equal(got, want) {
			return false
		}
	}
	return true
}

// Filter returns the documents matching q, preserving order.
func Filter(docs []core.Document, q core.Query) []core.Document {
	if len(q) == 0 {
		return docs
	}
	out := make([]core.Document, 0, len(docs))
	for _, d := range docs {
		if Matches(d, q) {
			out = append(out, d)
		}
	}
	return out
}

// IDLookup returns the identity carried by q, if any, so the caller can use
// the primary key instead of a table scan.
func IDLookup(q core.Query) (string, bool) {
	v, ok := q[core.FieldID]
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// Equal compares two document values. Numbers compare by value regardless of
// their Go type, byte slices compare to strings by content, and maps and
// slices compare structurally after JSON normalization.
func Equal(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}

	if sa, ok := toText(a); ok {
		sb, ok := toText(b)
		return ok && sa == sb
	}

	if ba, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ba == bb
	}

	na, errA := normalize(a)
	nb, errB := normalize(b)
	if errA != nil || errB != nil {
		return false
	}
	return reflect.DeepEqual(na, nb)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toText(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	default:
		return "", false
	}
}

func normalize(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	err = json.Unmarshal(data, &out)
	return out, err
}
