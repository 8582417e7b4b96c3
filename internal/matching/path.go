package matching

import (
	"net/url"
	"strings"
)

// SplitPathQuery splits "/p?q" into its path and raw query. An empty path
// becomes "/".
func SplitPathQuery(pathQuery string) (path, rawQuery string) {
	path, rawQuery, _ = strings.Cut(pathQuery, "?")
	if path == "" {
		path = "/"
	}
	return path, rawQuery
}

// decodePath percent-decodes a path, falling back to the raw value.
func decodePath(p string) string {
	if d, err := url.PathUnescape(p); err == nil {
		return d
	}
	return p
}

// MatchPath checks the path portion of a request.
//
//   - StringMatch: both sides are percent-decoded and compared exactly; the
//     query is checked separately by MatchQuery
//   - RegexMatch: tested against the raw path+query
//   - FunctionMatch: called with the raw path+query
func MatchPath(m Matcher, path, rawQuery string) bool {
	full := path
	if rawQuery != "" {
		full += "?" + rawQuery
	}

	switch t := m.(type) {
	case nil, AnyMatch:
		return true
	case StringMatch:
		declared, _ := SplitPathQuery(t.Value)
		return decodePath(declared) == decodePath(path)
	case RegexMatch:
		return t.Re.MatchString(full)
	case FunctionMatch:
		return t.Fn(full)
	}
	return false
}
