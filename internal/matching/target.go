package matching

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/net/idna"
)

// Target is a normalized origin: protocol, hostname and port.
type Target struct {
	Protocol string
	Host     string
	Port     int
}

// DefaultPort returns the default port of protocol, 0 if unknown.
func DefaultPort(protocol string) int {
	switch strings.ToLower(protocol) {
	case "http":
		return 80
	case "https":
		return 443
	default:
		return 0
	}
}

// NormalizeHost lower-cases a hostname and converts internationalized names
// to their ASCII form. IPv6 brackets are removed.
func NormalizeHost(host string) string {
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		return ascii
	}
	return strings.ToLower(host)
}

// NewTarget builds a normalized Target. A zero port selects the protocol
// default.
func NewTarget(protocol, host string, port int) Target {
	protocol = strings.ToLower(strings.TrimSuffix(protocol, ":"))
	if port == 0 {
		port = DefaultPort(protocol)
	}
	return Target{Protocol: protocol, Host: NormalizeHost(host), Port: port}
}

// ParseOrigin parses "proto://host[:port]" into a Target. Any path component
// is rejected.
func ParseOrigin(origin string) (Target, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return Target{}, fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Target{}, fmt.Errorf("invalid origin %q: expected protocol://host[:port]", origin)
	}
	if u.Path != "" && u.Path != "/" {
		return Target{}, fmt.Errorf("invalid origin %q: unexpected path %q", origin, u.Path)
	}
	port := 0
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return Target{}, fmt.Errorf("invalid origin %q: bad port", origin)
		}
	}
	return NewTarget(u.Scheme, u.Hostname(), port), nil
}

// Secure reports whether the target uses TLS.
func (t Target) Secure() bool {
	return t.Protocol == "https"
}

// HostPort renders host:port, bracketing IPv6 literals.
func (t Target) HostPort() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// Key returns the canonical registry key "proto://host:port".
func (t Target) Key() string {
	return t.Protocol + "://" + t.HostPort()
}

// String renders the origin, omitting a default port.
func (t Target) String() string {
	if t.Port == DefaultPort(t.Protocol) {
		h := t.Host
		if strings.Contains(h, ":") {
			h = "[" + h + "]"
		}
		return t.Protocol + "://" + h
	}
	return t.Key()
}

// HostPattern accepts hostnames by pattern instead of equality.
type HostPattern interface {
	MatchHost(host string) bool
	String() string
}

// HostRegex matches hostnames with a regular expression.
type HostRegex struct{ Re *regexp.Regexp }

// MatchHost implements HostPattern.
func (p HostRegex) MatchHost(host string) bool { return p.Re.MatchString(host) }

func (p HostRegex) String() string { return "/" + p.Re.String() + "/" }

// HostGlob matches hostnames with a glob such as "*.example.test".
type HostGlob struct{ Pattern string }

// MatchHost implements HostPattern.
func (p HostGlob) MatchHost(host string) bool {
	ok, err := doublestar.Match(strings.ToLower(p.Pattern), host)
	return err == nil && ok
}

func (p HostGlob) String() string { return p.Pattern }

// HostFunc matches hostnames with a predicate.
type HostFunc func(host string) bool

// MatchHost implements HostPattern.
func (f HostFunc) MatchHost(host string) bool { return f(host) }

func (HostFunc) String() string { return "<function>" }

// NewHostGlob validates a glob pattern.
func NewHostGlob(pattern string) (HostGlob, error) {
	if !doublestar.ValidatePattern(pattern) {
		return HostGlob{}, fmt.Errorf("invalid host glob %q", pattern)
	}
	return HostGlob{Pattern: pattern}, nil
}

// MatchTarget reports whether a request target addresses a declared target.
// When pattern is non-nil it replaces the hostname comparison; protocol and
// port must still agree.
func MatchTarget(declared Target, pattern HostPattern, actual Target) bool {
	if declared.Protocol != actual.Protocol {
		return false
	}
	if declared.Port != actual.Port {
		return false
	}
	if pattern != nil {
		return pattern.MatchHost(actual.Host)
	}
	return declared.Host == actual.Host
}

// MatchMethod checks if the request method matches.
func MatchMethod(expected, actual string) bool {
	return strings.EqualFold(expected, actual)
}
