package matching

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitPathQuery(t *testing.T) {
	p, q := SplitPathQuery("/a/b?x=1&y=2")
	assert.Equal(t, "/a/b", p)
	assert.Equal(t, "x=1&y=2", q)

	p, q = SplitPathQuery("")
	assert.Equal(t, "/", p)
	assert.Equal(t, "", q)
}

func TestMatchPath(t *testing.T) {
	tests := []struct {
		name     string
		matcher  Matcher
		path     string
		rawQuery string
		want     bool
	}{
		{"exact", StringMatch{Value: "/users"}, "/users", "", true},
		{"different", StringMatch{Value: "/users"}, "/user", "", false},
		{"percent decoded on both sides", StringMatch{Value: "/a b"}, "/a%20b", "", true},
		{"declared encoded", StringMatch{Value: "/caf%C3%A9"}, "/café", "", true},
		{"declared query ignored by path check", StringMatch{Value: "/s?q=1"}, "/s", "q=1", true},
		{"regex over path and query", RegexMatch{Re: regexp.MustCompile(`^/s\?q=\d+$`)}, "/s", "q=42", true},
		{"regex miss", RegexMatch{Re: regexp.MustCompile(`^/s$`)}, "/s", "q=42", false},
		{"function", FunctionMatch{Fn: func(v any) bool { return v == "/f?a=1" }}, "/f", "a=1", true},
		{"nil accepts", nil, "/anything", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchPath(tt.matcher, tt.path, tt.rawQuery))
		})
	}
}
