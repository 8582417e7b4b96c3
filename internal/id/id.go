package id

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// Prefixes used by the typed constructors.
const (
	PrefixInterceptor = "icp_"
	PrefixRequest     = "req_"
	PrefixScope       = "scp_"
)

// UUID returns a random UUID v4 string.
func UUID() string {
	return uuid.NewString()
}

// Short returns a 16 character random hex string.
func Short() string {
	u := uuid.New()
	return hex.EncodeToString(u[:8])
}

// Interceptor returns a new interceptor identifier.
func Interceptor() string { return PrefixInterceptor + Short() }

// Request returns a new emulated request identifier.
func Request() string { return PrefixRequest + Short() }

// Scope returns a new scope identifier.
func Scope() string { return PrefixScope + Short() }

// HasPrefix reports whether s was produced by the constructor for prefix.
func HasPrefix(s, prefix string) bool {
	return strings.HasPrefix(s, prefix) && len(s) == len(prefix)+16
}
