package matching

import (
	"bytes"
	"strings"
)

// MatchBody checks a request body against a declared expectation. A nil
// expectation accepts any body.
//
//   - FunctionMatch: called with DecodeBody(contentType, body); true matches
//   - RegexMatch: tested against the raw body
//   - StringMatch: exact, except that "\r\n" and "\n" are equal unless the
//     body is multipart
//   - StructuredMatch: the body is parsed (JSON, or a form for url-encoded
//     content) and compared type-strictly
//   - JSONPathMatch: see MatchJSONPath
func MatchBody(contentType string, expected Matcher, body []byte) bool {
	switch t := expected.(type) {
	case nil, AnyMatch:
		return true
	case FunctionMatch:
		return t.Fn(DecodeBody(contentType, body))
	case RegexMatch:
		return t.Re.Match(body)
	case StringMatch:
		if IsMultipart(contentType) {
			return string(body) == t.Value
		}
		return normalizeNewlines(string(body)) == normalizeNewlines(t.Value)
	case StructuredMatch:
		return matchStructuredBody(contentType, t, body)
	case JSONPathMatch:
		return MatchJSONPath(t.Conditions, body)
	}
	return false
}

func matchStructuredBody(contentType string, m StructuredMatch, body []byte) bool {
	if IsForm(contentType) {
		expected, ok := m.Value.(map[string]any)
		if !ok {
			return false
		}
		spec, err := QuerySpec(expected, false)
		if err != nil {
			return false
		}
		return queryMapEqual(spec, ParseQuery(string(body)), true)
	}

	actual, ok := decodeJSON(bytes.TrimSpace(body))
	if !ok {
		return false
	}
	if m.Exact {
		return deepEqual(m.Value, actual)
	}
	return subsetEqual(m.Value, actual)
}

// subsetEqual is deepEqual that tolerates extra keys in actual objects.
func subsetEqual(expected, actual any) bool {
	e, ok := expected.(map[string]any)
	if !ok {
		return deepEqual(expected, actual)
	}
	a, ok := actual.(map[string]any)
	if !ok {
		return false
	}
	for k, ev := range e {
		av, present := a[k]
		if !present || !subsetEqual(ev, av) {
			return false
		}
	}
	return true
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
