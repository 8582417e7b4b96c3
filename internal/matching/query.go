package matching

import (
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ParseQuery decodes a raw query string into nested values. "+" and %20 both
// decode to a space. Bracketed keys build nested values:
//
//	a=1&a=2        {"a": ["1", "2"]}
//	a[b]=1         {"a": {"b": "1"}}
//	a[]=1&a[]=2    {"a": ["1", "2"]}
func ParseQuery(raw string) map[string]any {
	out := make(map[string]any)
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		assign(out, keySegments(unescape(k)), unescape(v))
	}
	return out
}

func unescape(s string) string {
	if d, err := url.QueryUnescape(s); err == nil {
		return d
	}
	return s
}

func keySegments(k string) []string {
	i := strings.IndexByte(k, '[')
	if i <= 0 || !strings.HasSuffix(k, "]") {
		return []string{k}
	}
	segs := []string{k[:i]}
	rest := k[i:]
	for rest != "" {
		if rest[0] != '[' {
			return []string{k}
		}
		j := strings.IndexByte(rest, ']')
		if j < 0 {
			return []string{k}
		}
		segs = append(segs, rest[1:j])
		rest = rest[j+1:]
	}
	return segs
}

func assign(container map[string]any, segs []string, v string) {
	key := segs[0]
	if len(segs) == 1 {
		switch e := container[key].(type) {
		case nil:
			container[key] = v
		case []any:
			container[key] = append(e, v)
		case string:
			container[key] = []any{e, v}
		default:
			container[key] = v
		}
		return
	}

	if segs[1] == "" {
		arr, _ := container[key].([]any)
		if s, ok := container[key].(string); ok {
			arr = []any{s}
		}
		if len(segs) == 2 {
			container[key] = append(arr, v)
			return
		}
		child := make(map[string]any)
		assign(child, segs[2:], v)
		container[key] = append(arr, child)
		return
	}

	child, ok := container[key].(map[string]any)
	if !ok {
		child = make(map[string]any)
		container[key] = child
	}
	assign(child, segs[1:], v)
}

// QuerySpec normalizes a declared query expectation. Accepted inputs are
// url.Values, maps with string keys, and nested maps/slices whose leaves are
// strings, numbers, booleans or *regexp.Regexp. When encoded is true the
// declared keys and string leaves are percent-decoded first.
func QuerySpec(v any, encoded bool) (map[string]any, error) {
	if uv, ok := v.(url.Values); ok {
		m := make(map[string]any, len(uv))
		for k, vals := range uv {
			if len(vals) == 1 {
				m[k] = vals[0]
				continue
			}
			arr := make([]any, len(vals))
			for i, s := range vals {
				arr[i] = s
			}
			m[k] = arr
		}
		v = m
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("query expectation must be a map with string keys, got %T", v)
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		key := iter.Key().String()
		if encoded {
			key = unescape(key)
		}
		leaf, err := queryLeaf(iter.Value().Interface(), encoded)
		if err != nil {
			return nil, fmt.Errorf("query key %q: %w", key, err)
		}
		out[key] = leaf
	}
	return out, nil
}

func queryLeaf(v any, encoded bool) (any, error) {
	switch t := v.(type) {
	case *regexp.Regexp:
		if t == nil {
			return nil, fmt.Errorf("nil regular expression")
		}
		return t, nil
	case string:
		if encoded {
			return unescape(t), nil
		}
		return t, nil
	case nil:
		return "", nil
	}
	if s, ok := formatScalar(v); ok {
		return s, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		return QuerySpec(v, encoded)
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			leaf, err := queryLeaf(rv.Index(i).Interface(), encoded)
			if err != nil {
				return nil, err
			}
			out[i] = leaf
		}
		return out, nil
	case reflect.Pointer:
		if rv.IsNil() {
			return "", nil
		}
		return queryLeaf(rv.Elem().Interface(), encoded)
	}
	return nil, fmt.Errorf("unsupported query value of type %T", v)
}

// MatchQuery checks a parsed request query against a declared expectation.
//
//   - nil: the request must carry no query
//   - AnyMatch: any query
//   - FunctionMatch: called with the parsed query
//   - StructuredMatch: every declared key must be present with an equal value;
//     with Exact, undeclared keys fail the match
func MatchQuery(m Matcher, actual map[string]any) bool {
	switch t := m.(type) {
	case nil:
		return len(actual) == 0
	case AnyMatch:
		return true
	case FunctionMatch:
		return t.Fn(actual)
	case StructuredMatch:
		expected, ok := t.Value.(map[string]any)
		if !ok {
			return false
		}
		return queryMapEqual(expected, actual, t.Exact)
	}
	return false
}

func queryMapEqual(expected, actual map[string]any, exact bool) bool {
	if exact && len(expected) != len(actual) {
		return false
	}
	for k, ev := range expected {
		av, ok := actual[k]
		if !ok || !queryValueEqual(ev, av, exact) {
			return false
		}
	}
	return true
}

func queryValueEqual(expected, actual any, exact bool) bool {
	switch e := expected.(type) {
	case string:
		a, ok := actual.(string)
		return ok && a == e
	case *regexp.Regexp:
		a, ok := actual.(string)
		return ok && e.MatchString(a)
	case map[string]any:
		a, ok := actual.(map[string]any)
		return ok && queryMapEqual(e, a, exact)
	case []any:
		a, ok := asQueryList(actual)
		if !ok || len(a) != len(e) {
			return false
		}
		for i := range e {
			if !queryValueEqual(e[i], a[i], exact) {
				return false
			}
		}
		return true
	}
	return false
}

// asQueryList accepts a list or an index-keyed map (a[0]=x&a[1]=y).
func asQueryList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case map[string]any:
		keys := make([]int, 0, len(t))
		for k := range t {
			i, err := strconv.Atoi(k)
			if err != nil || i < 0 {
				return nil, false
			}
			keys = append(keys, i)
		}
		sort.Ints(keys)
		out := make([]any, len(keys))
		for i, k := range keys {
			if k != i {
				return nil, false
			}
			out[i] = t[strconv.Itoa(k)]
		}
		return out, true
	}
	return nil, false
}
