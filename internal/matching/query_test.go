package matching

import (
	"net/url"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		raw  string
		want map[string]any
	}{
		{"", map[string]any{}},
		{"q=a%20b", map[string]any{"q": "a b"}},
		{"q=a+b", map[string]any{"q": "a b"}},
		{"a=1&a=2", map[string]any{"a": []any{"1", "2"}}},
		{"a[]=1&a[]=2", map[string]any{"a": []any{"1", "2"}}},
		{"a[b]=1&a[c][d]=2", map[string]any{"a": map[string]any{"b": "1", "c": map[string]any{"d": "2"}}}},
		{"flag", map[string]any{"flag": ""}},
		{"bad=%zz", map[string]any{"bad": "%zz"}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseQuery(tt.raw))
		})
	}
}

func TestMatchQueryStructured(t *testing.T) {
	spec, err := QuerySpec(map[string]any{"q": "a b"}, false)
	require.NoError(t, err)
	m := StructuredMatch{Value: spec}

	// %20 and + decode identically.
	assert.True(t, MatchQuery(m, ParseQuery("q=a%20b")))
	assert.True(t, MatchQuery(m, ParseQuery("q=a+b")))
	assert.False(t, MatchQuery(m, ParseQuery("q=ab")))

	// Extra keys are tolerated unless exact.
	assert.True(t, MatchQuery(m, ParseQuery("q=a+b&page=2")))
	exact := StructuredMatch{Value: spec, Exact: true}
	assert.False(t, MatchQuery(exact, ParseQuery("q=a+b&page=2")))
	assert.True(t, MatchQuery(exact, ParseQuery("q=a+b")))
}

func TestMatchQueryLeaves(t *testing.T) {
	spec, err := QuerySpec(map[string]any{
		"n":    5,
		"ok":   true,
		"re":   regexp.MustCompile(`^ab+$`),
		"list": []any{"x", 2},
		"obj":  map[string]any{"k": 1.5},
	}, false)
	require.NoError(t, err)
	m := StructuredMatch{Value: spec, Exact: true}

	assert.True(t, MatchQuery(m, ParseQuery("n=5&ok=true&re=abbb&list[]=x&list[]=2&obj[k]=1.5")))
	assert.True(t, MatchQuery(m, ParseQuery("n=5&ok=true&re=ab&list[0]=x&list[1]=2&obj[k]=1.5")))
	assert.False(t, MatchQuery(m, ParseQuery("n=6&ok=true&re=ab&list[]=x&list[]=2&obj[k]=1.5")))
	assert.False(t, MatchQuery(m, ParseQuery("n=5&ok=true&re=ac&list[]=x&list[]=2&obj[k]=1.5")))
	assert.False(t, MatchQuery(m, ParseQuery("n=5&ok=true&re=ab&list[]=x&obj[k]=1.5")))
}

func TestQuerySpecEncoded(t *testing.T) {
	spec, err := QuerySpec(map[string]string{"a%20key": "v%2Fw"}, true)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a key": "v/w"}, spec)
}

func TestQuerySpecURLValues(t *testing.T) {
	spec, err := QuerySpec(url.Values{"a": {"1", "2"}, "b": {"x"}}, false)
	require.NoError(t, err)
	assert.True(t, MatchQuery(StructuredMatch{Value: spec, Exact: true}, ParseQuery("a=1&a=2&b=x")))
}

func TestQuerySpecInvalid(t *testing.T) {
	_, err := QuerySpec("q=1", false)
	assert.Error(t, err)

	_, err = QuerySpec(map[string]any{"f": func() {}}, false)
	assert.Error(t, err)
}

func TestMatchQueryVariants(t *testing.T) {
	assert.True(t, MatchQuery(nil, ParseQuery("")))
	assert.False(t, MatchQuery(nil, ParseQuery("a=1")))
	assert.True(t, MatchQuery(AnyMatch{}, ParseQuery("a=1")))

	fn := FunctionMatch{Fn: func(v any) bool {
		q := v.(map[string]any)
		return q["a"] == "1"
	}}
	assert.True(t, MatchQuery(fn, ParseQuery("a=1&b=2")))
	assert.False(t, MatchQuery(fn, ParseQuery("a=2")))
}
