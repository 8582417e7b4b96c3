package id

import (
	"regexp"
	"testing"
)

func TestUUID_Format(t *testing.T) {
	id := UUID()

	uuidRegex := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	if !uuidRegex.MatchString(id) {
		t.Errorf("UUID() = %q, does not match UUID v4 format", id)
	}
}

func TestShort(t *testing.T) {
	hexRegex := regexp.MustCompile(`^[0-9a-f]{16}$`)
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		s := Short()
		if !hexRegex.MatchString(s) {
			t.Fatalf("Short() = %q, want 16 hex chars", s)
		}
		if seen[s] {
			t.Fatalf("Short() returned duplicate %q", s)
		}
		seen[s] = true
	}
}

func TestTypedIDs(t *testing.T) {
	tests := []struct {
		name   string
		gen    func() string
		prefix string
	}{
		{"interceptor", Interceptor, PrefixInterceptor},
		{"request", Request, PrefixRequest},
		{"scope", Scope, PrefixScope},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.gen()
			if !HasPrefix(got, tt.prefix) {
				t.Errorf("%s() = %q, want prefix %q and 16 hex chars", tt.name, got, tt.prefix)
			}
		})
	}

	if HasPrefix("icp_short", PrefixInterceptor) {
		t.Error("HasPrefix accepted a truncated id")
	}
}
