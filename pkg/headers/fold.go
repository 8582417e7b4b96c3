package headers

import (
	"strings"
)

// singleton fields keep only their first value when repeated.
var singleton = map[string]bool{
	"age":                 true,
	"authorization":       true,
	"content-length":      true,
	"content-type":        true,
	"etag":                true,
	"expires":             true,
	"from":                true,
	"host":                true,
	"if-modified-since":   true,
	"if-unmodified-since": true,
	"last-modified":       true,
	"location":            true,
	"max-forwards":        true,
	"proxy-authorization": true,
	"referer":             true,
	"retry-after":         true,
	"server":              true,
	"user-agent":          true,
}

// IsSingleton reports whether repeated values of name are dropped when folding.
func IsSingleton(name string) bool {
	return singleton[lower(name)]
}

// Folded maps lower-cased field names to their folded values. Every entry
// holds exactly one element except set-cookie, which holds one element per
// occurrence.
type Folded map[string][]string

// Get returns the folded value of name, or "" if absent. A set-cookie list
// is returned joined with ", ".
func (f Folded) Get(name string) string {
	v := f[lower(name)]
	if len(v) == 0 {
		return ""
	}
	if len(v) == 1 {
		return v[0]
	}
	return strings.Join(v, ", ")
}

// Values returns the folded values of name.
func (f Folded) Values(name string) []string {
	return f[lower(name)]
}

// Has reports whether name is present.
func (f Folded) Has(name string) bool {
	_, ok := f[lower(name)]
	return ok
}

// Fold groups a raw name/value sequence by lower-cased name.
func Fold(raw []string) (Folded, error) {
	if len(raw)%2 != 0 {
		return nil, ErrOddRawHeaders
	}
	out := make(Folded, len(raw)/2)
	for i := 0; i < len(raw); i += 2 {
		addFolded(out, lower(raw[i]), raw[i+1])
	}
	return out, nil
}

func addFolded(out Folded, name, value string) {
	existing, ok := out[name]
	switch {
	case name == "set-cookie":
		out[name] = append(existing, value)
	case !ok:
		out[name] = []string{value}
	case singleton[name]:
		// keep first
	case name == "cookie":
		out[name] = []string{existing[0] + "; " + value}
	default:
		out[name] = []string{existing[0] + ", " + value}
	}
}

func lower(s string) string {
	return strings.ToLower(s)
}
