// Package normalize turns the backend's many response envelope variants into
// canonical values. Parsing is duck-typed but explicit: callers list candidate
// shape matchers in priority order and the first structural match wins; when
// nothing matches the result is ErrUnrecognizedShape rather than a silently
// empty record.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

// ErrUnrecognizedShape is returned when no candidate matcher accepts the
// decoded payload.
var ErrUnrecognizedShape = errors.New("unrecognized response shape")

// Matcher inspects a decoded JSON object and either produces a canonical
// record or declines.
type Matcher[T any] func(obj map[string]any) (T, bool)

// FirstMatch tries each matcher in order and returns the first hit.
func FirstMatch[T any](obj map[string]any, matchers ...Matcher[T]) (T, error) {
	for _, match := range matchers {
		if v, ok := match(obj); ok {
			return v, nil
		}
	}
	var zero T
	return zero, ErrUnrecognizedShape
}

// Object decodes raw JSON into a generic object. Numbers are kept as
// json.Number so ids survive without float rounding.
func Object(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, ErrUnrecognizedShape
	}
	return obj, nil
}

// AsObject narrows an arbitrary decoded value to a JSON object.
func AsObject(v any) (map[string]any, bool) {
	obj, ok := v.(map[string]any)
	return obj, ok
}

// String returns the first non-empty string value found under the given
// synonym keys. Numeric values are stringified so ids sent as numbers still
// resolve.
func String(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := stringify(obj[key]); s != "" {
			return s
		}
	}
	return ""
}

// StringList coerces a value into an ordered list of strings: lists pass
// through (non-string elements are stringified), a bare string becomes a
// single-element list, and anything else is empty.
func StringList(v any) []string {
	switch val := v.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := stringify(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return val
	case string:
		if val == "" {
			return []string{}
		}
		return []string{val}
	default:
		return []string{}
	}
}

// FirstList returns the first non-empty string list found under the given
// synonym keys.
func FirstList(obj map[string]any, keys ...string) []string {
	for _, key := range keys {
		if list := StringList(obj[key]); len(list) > 0 {
			return list
		}
	}
	return []string{}
}

// Confidence normalizes a confidence value onto the 0-1 scale. Numeric
// strings are accepted; magnitudes above 1 are treated as percentages and
// divided by 100; unparseable or negative input normalizes to 0.
func Confidence(v any) float64 {
	f, ok := Float(v)
	if !ok {
		return 0
	}
	if f > 1 {
		f = f / 100
	}
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// Float extracts a float from a JSON number, json.Number, or numeric string.
func Float(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
