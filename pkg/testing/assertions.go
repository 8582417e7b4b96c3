package testing

import (
	"encoding/json"
	"net/url"
	"reflect"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/getmockd/netmock/pkg/requestlog"
)

// RequestLog represents a recorded request for assertions.
type RequestLog struct {
	// Method is the HTTP method (GET, POST, etc.)
	Method string
	// Origin is the target as "proto://host:port"
	Origin string
	// Path is the request URL path
	Path string
	// Headers are the request headers, lower-cased and folded
	Headers map[string]string
	// Body is the request body content, truncated for large bodies
	Body string
	// QueryString is the raw query string
	QueryString string
	// InterceptorID is the ID of the interceptor that answered the request
	InterceptorID string
	// Status is the response status, 0 if no response was produced
	Status int
	// Outcome tells how the request ended
	Outcome requestlog.Outcome
}

func newRequestLog(entry *requestlog.Entry) RequestLog {
	headers := make(map[string]string, len(entry.Headers))
	for k, v := range entry.Headers {
		headers[k] = strings.Join(v, ", ")
	}
	return RequestLog{
		Method:        entry.Method,
		Origin:        entry.Origin,
		Path:          entry.Path,
		Headers:       headers,
		Body:          entry.Body,
		QueryString:   entry.QueryString,
		InterceptorID: entry.InterceptorID,
		Status:        entry.ResponseStatus,
		Outcome:       entry.Outcome,
	}
}

// AssertJSONBody asserts that the request body matches the expected JSON.
// The expected value can be a string, []byte, or any struct/map that will be JSON encoded.
func (r *RequestLog) AssertJSONBody(t testing.TB, expected any) {
	t.Helper()

	var expectedJSON any
	var actualJSON any

	// Parse expected
	switch v := expected.(type) {
	case string:
		if err := json.Unmarshal([]byte(v), &expectedJSON); err != nil {
			t.Errorf("failed to parse expected JSON: %v", err)
			return
		}
	case []byte:
		if err := json.Unmarshal(v, &expectedJSON); err != nil {
			t.Errorf("failed to parse expected JSON: %v", err)
			return
		}
	default:
		// Marshal and unmarshal to normalize
		data, err := json.Marshal(v)
		if err != nil {
			t.Errorf("failed to marshal expected value: %v", err)
			return
		}
		if err := json.Unmarshal(data, &expectedJSON); err != nil {
			t.Errorf("failed to parse expected JSON: %v", err)
			return
		}
	}

	// Parse actual
	if err := json.Unmarshal([]byte(r.Body), &actualJSON); err != nil {
		t.Errorf("request body is not valid JSON: %v\nbody: %s", err, r.Body)
		return
	}

	// Compare
	if !reflect.DeepEqual(actualJSON, expectedJSON) {
		expectedBytes, _ := json.MarshalIndent(expectedJSON, "", "  ")
		actualBytes, _ := json.MarshalIndent(actualJSON, "", "  ")
		t.Errorf("request body does not match expected JSON\nexpected:\n%s\nactual:\n%s",
			string(expectedBytes), string(actualBytes))
	}
}

// AssertBody asserts that the request body exactly matches the expected string.
func (r *RequestLog) AssertBody(t testing.TB, expected string) {
	t.Helper()

	if r.Body != expected {
		t.Errorf("request body does not match\nexpected: %q\nactual: %q", expected, r.Body)
	}
}

// AssertBodyContains asserts that the request body contains the expected substring.
func (r *RequestLog) AssertBodyContains(t testing.TB, substr string) {
	t.Helper()

	if !strings.Contains(r.Body, substr) {
		t.Errorf("request body does not contain %q\nbody: %s", substr, r.Body)
	}
}

// AssertHeader asserts that the request had the specified header with the expected value.
func (r *RequestLog) AssertHeader(t testing.TB, key, expected string) {
	t.Helper()

	actual, ok := r.Headers[key]
	if !ok {
		// Try case-insensitive match
		for k, v := range r.Headers {
			if strings.EqualFold(k, key) {
				actual = v
				ok = true
				break
			}
		}
	}

	if !ok {
		t.Errorf("request does not have header %q", key)
		return
	}

	if actual != expected {
		t.Errorf("header %q value mismatch\nexpected: %q\nactual: %q", key, expected, actual)
	}
}

// AssertHeaderExists asserts that the request had the specified header (any value).
func (r *RequestLog) AssertHeaderExists(t testing.TB, key string) {
	t.Helper()

	_, ok := r.Headers[key]
	if !ok {
		// Try case-insensitive match
		for k := range r.Headers {
			if strings.EqualFold(k, key) {
				ok = true
				break
			}
		}
	}

	if !ok {
		t.Errorf("request does not have header %q", key)
	}
}

// AssertHeaderContains asserts that the header value contains the expected substring.
func (r *RequestLog) AssertHeaderContains(t testing.TB, key, substr string) {
	t.Helper()

	var actual string
	var ok bool

	actual, ok = r.Headers[key]
	if !ok {
		// Try case-insensitive match
		for k, v := range r.Headers {
			if strings.EqualFold(k, key) {
				actual = v
				ok = true
				break
			}
		}
	}

	if !ok {
		t.Errorf("request does not have header %q", key)
		return
	}

	if !strings.Contains(actual, substr) {
		t.Errorf("header %q value does not contain %q\nvalue: %q", key, substr, actual)
	}
}

// AssertQueryParam asserts that the request had the specified query parameter.
func (r *RequestLog) AssertQueryParam(t testing.TB, key, expected string) {
	t.Helper()

	params := parseQueryString(r.QueryString)

	actual, ok := params[key]
	if !ok {
		t.Errorf("request does not have query parameter %q", key)
		return
	}

	if actual != expected {
		t.Errorf("query parameter %q value mismatch\nexpected: %q\nactual: %q", key, expected, actual)
	}
}

// AssertQueryParamExists asserts that the request had the specified query parameter (any value).
func (r *RequestLog) AssertQueryParamExists(t testing.TB, key string) {
	t.Helper()

	params := parseQueryString(r.QueryString)
	if _, ok := params[key]; !ok {
		t.Errorf("request does not have query parameter %q", key)
	}
}

// AssertMethod asserts that the request used the expected HTTP method.
func (r *RequestLog) AssertMethod(t testing.TB, expected string) {
	t.Helper()

	if !strings.EqualFold(r.Method, expected) {
		t.Errorf("request method mismatch\nexpected: %q\nactual: %q", expected, r.Method)
	}
}

// AssertPath asserts that the request path matches.
func (r *RequestLog) AssertPath(t testing.TB, expected string) {
	t.Helper()

	if r.Path != expected {
		t.Errorf("request path mismatch\nexpected: %q\nactual: %q", expected, r.Path)
	}
}

// parseQueryString parses a query string into a map of first values.
func parseQueryString(qs string) map[string]string {
	result := make(map[string]string)
	values, _ := url.ParseQuery(qs)
	for k, v := range values {
		if len(v) > 0 {
			result[k] = v[0]
		}
	}
	return result
}

// JSONField extracts a field from the request body JSON using a gjson
// path such as "user.name" or "items.0.sku".
// Returns nil if the body is not valid JSON or the field doesn't exist.
func (r *RequestLog) JSONField(field string) any {
	if !gjson.Valid(r.Body) {
		return nil
	}
	res := gjson.Get(r.Body, field)
	if !res.Exists() {
		return nil
	}
	return res.Value()
}

// AssertJSONField asserts that a JSON field in the request body has the expected value.
func (r *RequestLog) AssertJSONField(t testing.TB, field string, expected any) {
	t.Helper()

	actual := r.JSONField(field)
	if actual == nil {
		t.Errorf("JSON field %q not found in request body: %s", field, r.Body)
		return
	}

	if !reflect.DeepEqual(actual, expected) {
		t.Errorf("JSON field %q mismatch\nexpected: %v (%T)\nactual: %v (%T)",
			field, expected, expected, actual, actual)
	}
}

// AssertStatus asserts the status of the response the request received.
func (r *RequestLog) AssertStatus(t testing.TB, expected int) {
	t.Helper()

	if r.Status != expected {
		t.Errorf("response status mismatch\nexpected: %d\nactual: %d (outcome %s)", expected, r.Status, r.Outcome)
	}
}
