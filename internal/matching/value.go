package matching

import (
	"encoding/json"
	"fmt"
	"mime"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

var regexpType = reflect.TypeOf(&regexp.Regexp{})

// normalizeExpected converts a declared structured value into the shape
// encoding/json produces (map[string]any, []any, float64, string, bool, nil)
// while keeping *regexp.Regexp leaves.
func normalizeExpected(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case *regexp.Regexp:
		return t, nil
	case string, bool:
		return t, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	case []byte:
		return string(t), nil
	}
	if f, ok := toFloat64(v); ok {
		return f, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("map keys must be strings, got %s", rv.Type().Key())
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			n, err := normalizeExpected(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			out[iter.Key().String()] = n
		}
		return out, nil
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			n, err := normalizeExpected(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		if rv.Type() == regexpType {
			return v, nil
		}
		return normalizeExpected(rv.Elem().Interface())
	case reflect.Struct:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		var out any
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, err
		}
		return out, nil
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return nil, fmt.Errorf("unsupported value of type %T", v)
	}
	return nil, fmt.Errorf("unsupported value of type %T", v)
}

// deepEqual compares a normalized expectation with a decoded JSON value.
// Types must agree: 1 does not equal "1".
func deepEqual(expected, actual any) bool {
	switch e := expected.(type) {
	case nil:
		return actual == nil
	case *regexp.Regexp:
		s, ok := actual.(string)
		return ok && e.MatchString(s)
	case string:
		a, ok := actual.(string)
		return ok && a == e
	case bool:
		a, ok := actual.(bool)
		return ok && a == e
	case float64:
		a, ok := actual.(float64)
		return ok && a == e
	case map[string]any:
		a, ok := actual.(map[string]any)
		if !ok || len(a) != len(e) {
			return false
		}
		for k, ev := range e {
			av, present := a[k]
			if !present || !deepEqual(ev, av) {
				return false
			}
		}
		return true
	case []any:
		a, ok := actual.([]any)
		if !ok || len(a) != len(e) {
			return false
		}
		for i := range e {
			if !deepEqual(e[i], a[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// formatScalar renders a scalar leaf the way it appears in a query string.
func formatScalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case int:
		return strconv.FormatInt(int64(t), 10), true
	case int8:
		return strconv.FormatInt(int64(t), 10), true
	case int16:
		return strconv.FormatInt(int64(t), 10), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case uint:
		return strconv.FormatUint(uint64(t), 10), true
	case uint8:
		return strconv.FormatUint(uint64(t), 10), true
	case uint16:
		return strconv.FormatUint(uint64(t), 10), true
	case uint32:
		return strconv.FormatUint(uint64(t), 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	}
	return "", false
}

// toFloat64 attempts to convert a numeric value to float64.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case int16:
		return float64(n), true
	case int8:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint8:
		return float64(n), true
	default:
		return 0, false
	}
}

// mediaType returns the lower-cased media type of a Content-Type value.
func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// IsJSON reports whether a Content-Type denotes a JSON document.
func IsJSON(contentType string) bool {
	mt := mediaType(contentType)
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// IsMultipart reports whether a Content-Type denotes a multipart body.
func IsMultipart(contentType string) bool {
	return strings.HasPrefix(mediaType(contentType), "multipart/")
}

// IsForm reports whether a Content-Type denotes an url-encoded form.
func IsForm(contentType string) bool {
	return mediaType(contentType) == "application/x-www-form-urlencoded"
}

// DecodeBody returns the body in the form predicates receive it: parsed JSON
// for JSON content, a parsed form for url-encoded content, otherwise the raw
// string. JSON that fails to parse is returned as the raw string.
func DecodeBody(contentType string, body []byte) any {
	switch {
	case IsJSON(contentType):
		if v, ok := decodeJSON(body); ok {
			return v
		}
	case IsForm(contentType):
		return ParseQuery(string(body))
	}
	return string(body)
}

func decodeJSON(body []byte) (any, bool) {
	if !gjson.ValidBytes(body) {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, false
	}
	return v, true
}
