package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJSONObject_PreservesInsertionOrder(t *testing.T) {
	obj := NewJSONObject()
	obj.Set("wNow", json.Number("5"))
	obj.Set("activeCount", json.Number("1"))
	obj.Set("eid", "608050176")
	obj.Set("wNow", json.Number("6"))

	assert.Equal(t, []string{"wNow", "activeCount", "eid"}, obj.Keys())
	assert.Equal(t, 3, obj.Len())

	v, ok := obj.Get("wNow")
	assert.True(t, ok)
	assert.Equal(t, json.Number("6"), v)

	_, ok = obj.Get("missing")
	assert.False(t, ok)
}

func TestJSONObject_RangeStopsOnError(t *testing.T) {
	obj := NewJSONObject()
	obj.Set("a", 1)
	obj.Set("b", 2)
	obj.Set("c", 3)

	stop := errors.New("stop")
	var seen []string
	err := obj.Range(func(key string, _ JSONValue) error {
		seen = append(seen, key)
		if key == "b" {
			return stop
		}
		return nil
	})

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestJSONObject_NilIsEmpty(t *testing.T) {
	var obj *JSONObject
	assert.Equal(t, 0, obj.Len())
	assert.Empty(t, obj.Keys())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindObject, KindOf(NewJSONObject()))
	assert.Equal(t, KindArray, KindOf(JSONArray{}))
	assert.Equal(t, KindNull, KindOf(nil))
	assert.Equal(t, KindScalar, KindOf("x"))
	assert.Equal(t, KindScalar, KindOf(json.Number("1")))
}

func TestTruthy(t *testing.T) {
	full := NewJSONObject()
	full.Set("a", nil)

	tests := []struct {
		name  string
		value JSONValue
		want  bool
	}{
		{"null", nil, false},
		{"false", false, false},
		{"true", true, true},
		{"empty string", "", false},
		{"string", "x", true},
		{"zero", json.Number("0"), false},
		{"zero float", json.Number("0.0"), false},
		{"number", json.Number("-3.5"), true},
		{"empty object", NewJSONObject(), false},
		{"object", full, true},
		{"empty array", JSONArray{}, false},
		{"array", JSONArray{nil}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truthy(tt.value))
		})
	}
}
