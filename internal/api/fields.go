package api

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// AsObject returns v as a JSON object.
func AsObject(v any) (map[string]any, bool) {
	obj, ok := v.(map[string]any)
	return obj, ok && obj != nil
}

// AsArray returns v as a JSON array. Typed slices are widened to []any.
func AsArray(v any) ([]any, bool) {
	switch arr := v.(type) {
	case nil:
		return nil, false
	case []any:
		return arr, true
	case []byte, json.RawMessage:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// Stringify returns a trimmed, non-empty string form of a scalar.
func Stringify(v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	case bool:
		s = strconv.FormatBool(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return "", false
		}
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	case int32:
		s = strconv.FormatInt(int64(t), 10)
	case uint:
		s = strconv.FormatUint(uint64(t), 10)
	case uint64:
		s = strconv.FormatUint(t, 10)
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// StringField returns the first candidate key holding a usable scalar.
func StringField(obj map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := Stringify(obj[k]); ok {
			return s, true
		}
	}
	return "", false
}

// BoolField returns the first candidate key holding a boolean, accepting
// "true"/"false" strings.
func BoolField(obj map[string]any, keys ...string) (bool, bool) {
	for _, k := range keys {
		switch t := obj[k].(type) {
		case bool:
			return t, true
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
				return b, true
			}
		}
	}
	return false, false
}

// IntField returns the first candidate key holding an integral number.
func IntField(obj map[string]any, keys ...string) (int, bool) {
	for _, k := range keys {
		if n, ok := toInt(obj[k]); ok {
			return n, true
		}
	}
	return 0, false
}

// FloatField returns the first candidate key holding a number.
func FloatField(obj map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if f, ok := toFloat(obj[k]); ok {
			return f, true
		}
	}
	return 0, false
}

// ObjectField returns the first candidate key holding a JSON object.
func ObjectField(obj map[string]any, keys ...string) (map[string]any, bool) {
	for _, k := range keys {
		if inner, ok := AsObject(obj[k]); ok {
			return inner, true
		}
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, !math.IsNaN(t) && !math.IsInf(t, 0)
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
