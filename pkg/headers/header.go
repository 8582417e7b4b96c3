package headers

import (
	"fmt"
	"net/http"
	"sort"

	"golang.org/x/net/http/httpguts"
)

// Header is a case-insensitive header set that keeps the original spelling
// and insertion order of every value. The zero value is not usable; call New.
type Header struct {
	raw []string
}

// New returns an empty Header.
func New() *Header {
	return &Header{}
}

// FromRaw builds a Header from a flat name/value sequence.
func FromRaw(raw []string) (*Header, error) {
	if len(raw)%2 != 0 {
		return nil, ErrOddRawHeaders
	}
	h := New()
	for i := 0; i < len(raw); i += 2 {
		if err := h.Add(raw[i], raw[i+1]); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// FromMap builds a Header from single-valued fields. Two keys that differ
// only in case are a conflict.
func FromMap(m map[string]string) (*Header, error) {
	multi := make(map[string][]string, len(m))
	for k, v := range m {
		multi[k] = []string{v}
	}
	return FromMultiMap(multi)
}

// FromMultiMap builds a Header from multi-valued fields such as http.Header.
// Keys are applied in sorted order so the raw sequence is deterministic.
func FromMultiMap(m map[string][]string) (*Header, error) {
	keys := make([]string, 0, len(m))
	seen := make(map[string]string, len(m))
	for k := range m {
		l := lower(k)
		if other, dup := seen[l]; dup {
			return nil, &ConflictError{Name: k, Other: other}
		}
		seen[l] = k
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := New()
	for _, k := range keys {
		for _, v := range m[k] {
			if err := h.Add(k, v); err != nil {
				return nil, err
			}
		}
	}
	return h, nil
}

func validate(name, value string) error {
	if !httpguts.ValidHeaderFieldName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidHeaderName, name)
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return fmt.Errorf("invalid value for header %q", name)
	}
	return nil
}

// Add appends a value for name.
func (h *Header) Add(name, value string) error {
	if err := validate(name, value); err != nil {
		return err
	}
	h.raw = append(h.raw, name, value)
	return nil
}

// Set replaces every value of name with value.
func (h *Header) Set(name, value string) error {
	if err := validate(name, value); err != nil {
		return err
	}
	h.Del(name)
	h.raw = append(h.raw, name, value)
	return nil
}

// Del removes every value of name.
func (h *Header) Del(name string) {
	l := lower(name)
	out := h.raw[:0]
	for i := 0; i < len(h.raw); i += 2 {
		if lower(h.raw[i]) == l {
			continue
		}
		out = append(out, h.raw[i], h.raw[i+1])
	}
	h.raw = out
}

// Has reports whether name has at least one value.
func (h *Header) Has(name string) bool {
	l := lower(name)
	for i := 0; i < len(h.raw); i += 2 {
		if lower(h.raw[i]) == l {
			return true
		}
	}
	return false
}

// Values returns every raw value of name in insertion order.
func (h *Header) Values(name string) []string {
	l := lower(name)
	var out []string
	for i := 0; i < len(h.raw); i += 2 {
		if lower(h.raw[i]) == l {
			out = append(out, h.raw[i+1])
		}
	}
	return out
}

// Get returns the folded value of name.
func (h *Header) Get(name string) string {
	return h.Folded().Get(name)
}

// Raw returns a copy of the flat name/value sequence.
func (h *Header) Raw() []string {
	out := make([]string, len(h.raw))
	copy(out, h.raw)
	return out
}

// Len returns the number of name/value pairs.
func (h *Header) Len() int {
	return len(h.raw) / 2
}

// Names returns the distinct lower-cased field names in order of first
// appearance.
func (h *Header) Names() []string {
	var out []string
	seen := make(map[string]bool)
	for i := 0; i < len(h.raw); i += 2 {
		l := lower(h.raw[i])
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

// Folded returns the folded view of the header set.
func (h *Header) Folded() Folded {
	out := make(Folded, len(h.raw)/2)
	for i := 0; i < len(h.raw); i += 2 {
		addFolded(out, lower(h.raw[i]), h.raw[i+1])
	}
	return out
}

// Clone returns a deep copy.
func (h *Header) Clone() *Header {
	return &Header{raw: h.Raw()}
}

// HTTP converts the folded view to an http.Header. Each folded value becomes
// a single entry so a joined value such as "1, 2" reaches the client intact.
func (h *Header) HTTP() http.Header {
	return h.Folded().HTTP()
}

// HTTP converts a folded view to an http.Header.
func (f Folded) HTTP() http.Header {
	out := make(http.Header, len(f))
	for name, values := range f {
		key := http.CanonicalHeaderKey(name)
		out[key] = append([]string(nil), values...)
	}
	return out
}
