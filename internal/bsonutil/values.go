package bsonutil

import (
	"bytes"
	"reflect"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ToFloat64 converts any BSON numeric value to float64.
func ToFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// ToInt64 converts any integral BSON numeric value to int64. Doubles are accepted when integral.
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

// ToD converts bson.D, bson.M and bson.Raw values into an ordered document.
// bson.M keys are sorted for determinism.
func ToD(v any) (bson.D, bool) {
	switch d := v.(type) {
	case bson.D:
		return d, true
	case bson.M:
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(bson.D, 0, len(d))
		for _, k := range keys {
			out = append(out, bson.E{Key: k, Value: d[k]})
		}
		return out, true
	case bson.Raw:
		var out bson.D
		if err := bson.Unmarshal(d, &out); err != nil {
			return nil, false
		}
		return out, true
	default:
		return nil, false
	}
}

// Get returns the value stored at key in d.
func Get(d bson.D, key string) (any, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Lookup resolves a dot-separated path inside nested documents.
func Lookup(d bson.D, path string) (any, bool) {
	head, rest, nested := strings.Cut(path, ".")
	v, ok := Get(d, head)
	if !ok {
		return nil, false
	}
	if !nested {
		return v, true
	}
	sub, ok := ToD(v)
	if !ok {
		return nil, false
	}
	return Lookup(sub, rest)
}

// Set replaces the value at key or appends it, keeping key order.
func Set(d bson.D, key string, value any) bson.D {
	for i := range d {
		if d[i].Key == key {
			d[i].Value = value
			return d
		}
	}
	return append(d, bson.E{Key: key, Value: value})
}

// Equal compares two BSON values structurally. Numeric values compare by value regardless of
// their concrete type; documents compare key by key in order.
func Equal(a, b any) bool {
	if fa, ok := ToFloat64(a); ok {
		fb, ok := ToFloat64(b)
		return ok && fa == fb
	}
	if da, ok := ToD(a); ok {
		db, ok := ToD(b)
		if !ok || len(da) != len(db) {
			return false
		}
		for i := range da {
			if da[i].Key != db[i].Key || !Equal(da[i].Value, db[i].Value) {
				return false
			}
		}
		return true
	}
	if aa, ok := toSlice(a); ok {
		ab, ok := toSlice(b)
		if !ok || len(aa) != len(ab) {
			return false
		}
		for i := range aa {
			if !Equal(aa[i], ab[i]) {
				return false
			}
		}
		return true
	}
	if ba, ok := a.([]byte); ok {
		bb, ok := b.([]byte)
		return ok && bytes.Equal(ba, bb)
	}
	return reflect.DeepEqual(a, b)
}

func toSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case bson.A:
		return s, true
	case []any:
		return s, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
