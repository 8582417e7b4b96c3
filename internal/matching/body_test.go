package matching

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBody(t *testing.T, v any) Matcher {
	t.Helper()
	m, err := BodyMatcher(v)
	require.NoError(t, err)
	return m
}

func TestMatchBodyString(t *testing.T) {
	m := mustBody(t, "line1\nline2")

	assert.True(t, MatchBody("text/plain", m, []byte("line1\nline2")))
	assert.True(t, MatchBody("text/plain", m, []byte("line1\r\nline2")))
	assert.True(t, MatchBody("", m, []byte("line1\r\nline2")))
	assert.False(t, MatchBody("text/plain", m, []byte("line1 line2")))

	// multipart bodies are compared byte for byte
	assert.False(t, MatchBody("multipart/form-data; boundary=x", m, []byte("line1\r\nline2")))
	assert.True(t, MatchBody("multipart/form-data; boundary=x", m, []byte("line1\nline2")))
}

func TestMatchBodyRegex(t *testing.T) {
	m := mustBody(t, regexp.MustCompile(`"email":\s*"[^"]+"`))
	assert.True(t, MatchBody("application/json", m, []byte(`{"email": "a@b.test"}`)))
	assert.False(t, MatchBody("application/json", m, []byte(`{"name": "x"}`)))
}

func TestMatchBodyStructuredTypeStrict(t *testing.T) {
	m := mustBody(t, map[string]any{"n": 1})

	assert.True(t, MatchBody("application/json", m, []byte(`{"n":1}`)))
	assert.True(t, MatchBody("", m, []byte(` {"n": 1.0} `)))
	assert.False(t, MatchBody("application/json", m, []byte(`{"n":"1"}`)))
	assert.False(t, MatchBody("application/json", m, []byte(`{"n":1,"extra":true}`)))
	assert.False(t, MatchBody("application/json", m, []byte(`not json`)))
	assert.False(t, MatchBody("application/json", m, []byte(``)))
}

func TestMatchBodyStructuredNested(t *testing.T) {
	type item struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	m := mustBody(t, []item{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}})
	assert.True(t, MatchBody("application/json", m, []byte(`[{"id":1,"name":"a"},{"id":2,"name":"b"}]`)))
	assert.False(t, MatchBody("application/json", m, []byte(`[{"id":2,"name":"b"},{"id":1,"name":"a"}]`)))

	re := mustBody(t, map[string]any{"token": regexp.MustCompile(`^tok_`), "tags": []string{"x"}})
	assert.True(t, MatchBody("application/json", re, []byte(`{"token":"tok_123","tags":["x"]}`)))
	assert.False(t, MatchBody("application/json", re, []byte(`{"token":123,"tags":["x"]}`)))
}

func TestMatchBodyForm(t *testing.T) {
	m := mustBody(t, map[string]any{"n": 1, "name": "a b"})
	assert.True(t, MatchBody("application/x-www-form-urlencoded", m, []byte("n=1&name=a+b")))
	assert.False(t, MatchBody("application/x-www-form-urlencoded", m, []byte("n=1&name=a+b&x=2")))
}

func TestMatchBodyFunction(t *testing.T) {
	var got any
	m := mustBody(t, func(v any) bool {
		got = v
		obj, ok := v.(map[string]any)
		return ok && obj["ok"] == true
	})

	assert.True(t, MatchBody("application/json; charset=utf-8", m, []byte(`{"ok":true}`)))
	assert.Equal(t, map[string]any{"ok": true}, got)

	assert.False(t, MatchBody("text/plain", m, []byte(`{"ok":true}`)))
	assert.Equal(t, `{"ok":true}`, got)

	s := mustBody(t, func(s string) bool { return s == "raw" })
	assert.True(t, MatchBody("", s, []byte("raw")))
}

func TestMatchBodyNil(t *testing.T) {
	assert.True(t, MatchBody("", nil, []byte("anything")))
	assert.True(t, MatchBody("", AnyMatch{}, nil))
}

func TestBodyMatcherInvalid(t *testing.T) {
	_, err := BodyMatcher(nil)
	assert.Error(t, err)

	_, err = BodyMatcher(42)
	assert.Error(t, err)

	_, err = BodyMatcher(map[string]any{"f": func() {}})
	assert.Error(t, err)

	_, err = BodyMatcher(map[int]string{1: "a"})
	assert.Error(t, err)
}

func TestIsContentTypes(t *testing.T) {
	assert.True(t, IsJSON("application/json"))
	assert.True(t, IsJSON("application/vnd.api+json; charset=utf-8"))
	assert.False(t, IsJSON("text/plain"))
	assert.True(t, IsMultipart("Multipart/Mixed; boundary=abc"))
	assert.True(t, IsForm("application/x-www-form-urlencoded; charset=utf-8"))
}
