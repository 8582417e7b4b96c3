package matching

import (
	"github.com/getmockd/netmock/pkg/headers"
)

// HeaderExpectation is a required request header.
type HeaderExpectation struct {
	Name    string
	Matcher Matcher
}

// MatchHeader checks one required header. Names are case-insensitive. The
// folded request value is compared: exact for StringMatch, regex test for
// RegexMatch. A FunctionMatch receives the folded value, or nil when the
// header is absent.
func MatchHeader(exp HeaderExpectation, h *headers.Header) bool {
	present := h.Has(exp.Name)
	value := h.Get(exp.Name)

	switch t := exp.Matcher.(type) {
	case AnyMatch:
		return present
	case StringMatch:
		return present && value == t.Value
	case RegexMatch:
		return present && t.Re.MatchString(value)
	case FunctionMatch:
		if !present {
			return t.Fn(nil)
		}
		return t.Fn(value)
	}
	return false
}

// MatchHeaders checks that every required header matches.
func MatchHeaders(exps []HeaderExpectation, h *headers.Header) bool {
	for _, exp := range exps {
		if !MatchHeader(exp, h) {
			return false
		}
	}
	return true
}

// MatchBadHeaders reports whether none of the forbidden header names is
// present, whatever its value.
func MatchBadHeaders(names []string, h *headers.Header) bool {
	for _, name := range names {
		if h.Has(name) {
			return false
		}
	}
	return true
}
