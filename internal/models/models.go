package models

import (
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// JSONValue is any decoded JSON value: *JSONObject, JSONArray, json.Number,
// bool, string or nil.
type JSONValue interface{}

// JSONArray represents a JSON array, which is a slice of JSONValues.
type JSONArray []JSONValue

// JSONObject is a JSON object that remembers the order its keys were read in.
type JSONObject struct {
	pairs *orderedmap.OrderedMap[string, JSONValue]
}

// NewJSONObject returns an empty object.
func NewJSONObject() *JSONObject {
	return &JSONObject{pairs: orderedmap.New[string, JSONValue]()}
}

// Set stores value under key. A repeated key keeps its original position.
func (o *JSONObject) Set(key string, value JSONValue) {
	o.pairs.Set(key, value)
}

// Get returns the value stored under key.
func (o *JSONObject) Get(key string) (JSONValue, bool) {
	return o.pairs.Get(key)
}

// Len returns the number of keys.
func (o *JSONObject) Len() int {
	if o == nil || o.pairs == nil {
		return 0
	}
	return o.pairs.Len()
}

// Keys returns the keys in source order.
func (o *JSONObject) Keys() []string {
	keys := make([]string, 0, o.Len())
	o.Range(func(key string, _ JSONValue) error {
		keys = append(keys, key)
		return nil
	})
	return keys
}

// Range calls fn for each key in source order, stopping at the first error.
func (o *JSONObject) Range(fn func(key string, value JSONValue) error) error {
	if o.Len() == 0 {
		return nil
	}
	for pair := o.pairs.Oldest(); pair != nil; pair = pair.Next() {
		if err := fn(pair.Key, pair.Value); err != nil {
			return err
		}
	}
	return nil
}

// DocumentKind describes what sits at the root of a document.
type DocumentKind int

const (
	KindScalar DocumentKind = iota
	KindObject
	KindArray
	KindNull
)

// Document holds one parsed JSON sample.
type Document struct {
	Root JSONValue
	Kind DocumentKind
}

// KindOf reports the DocumentKind of a value.
func KindOf(v JSONValue) DocumentKind {
	switch v.(type) {
	case *JSONObject:
		return KindObject
	case JSONArray:
		return KindArray
	case nil:
		return KindNull
	default:
		return KindScalar
	}
}

// Truthy reports whether v would count as a present value: null, false, zero,
// the empty string and empty containers do not.
func Truthy(v JSONValue) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case json.Number:
		f, err := val.Float64()
		return err != nil || f != 0
	case float64:
		return val != 0
	case int:
		return val != 0
	case *JSONObject:
		return val.Len() > 0
	case JSONArray:
		return len(val) > 0
	default:
		return true
	}
}
