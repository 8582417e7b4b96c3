package intercept

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/getmockd/netmock/internal/matching"
)

// NetPolicy decides whether a request that no interceptor answered may be
// sent to the real network.
//
// When pass-through is enabled with an empty allow-list every host is
// allowed. With a non-empty allow-list a host is allowed if it matches any
// entry. Disabled, nothing is allowed.
type NetPolicy struct {
	mu      sync.RWMutex
	enabled bool
	allow   []hostRule
}

type hostRule struct {
	text  string
	match func(host, hostPort string) bool
}

// NewNetPolicy returns a policy with pass-through enabled for every host.
func NewNetPolicy() *NetPolicy {
	return &NetPolicy{enabled: true}
}

// Enable allows pass-through. Each allow entry may be a string, compared
// exactly against "host" or "host:port" (a string containing '*' is a glob),
// a *regexp.Regexp tested against "host:port", or a func(string) bool
// called with "host:port". Enable replaces any previous allow-list.
func (p *NetPolicy) Enable(allow ...any) error {
	rules := make([]hostRule, 0, len(allow))
	for _, a := range allow {
		r, err := newHostRule(a)
		if err != nil {
			return err
		}
		rules = append(rules, r)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = true
	p.allow = rules
	return nil
}

// Disable forbids pass-through for every host.
func (p *NetPolicy) Disable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = false
	p.allow = nil
}

// Enabled reports whether pass-through is enabled at all.
func (p *NetPolicy) Enabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled
}

// Allowed reports whether t may be reached on the real network.
func (p *NetPolicy) Allowed(t matching.Target) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.enabled {
		return false
	}
	if len(p.allow) == 0 {
		return true
	}
	hostPort := t.HostPort()
	for _, r := range p.allow {
		if r.match(t.Host, hostPort) {
			return true
		}
	}
	return false
}

// String describes the policy for logs and CLI output.
func (p *NetPolicy) String() string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.enabled {
		return "disabled"
	}
	if len(p.allow) == 0 {
		return "enabled"
	}
	texts := make([]string, len(p.allow))
	for i, r := range p.allow {
		texts[i] = r.text
	}
	return "allow " + strings.Join(texts, ", ")
}

func newHostRule(v any) (hostRule, error) {
	switch t := v.(type) {
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		if s == "" {
			return hostRule{}, fmt.Errorf("empty net connect allow entry")
		}
		if strings.Contains(s, "*") {
			g, err := matching.NewHostGlob(s)
			if err != nil {
				return hostRule{}, err
			}
			return hostRule{text: s, match: func(host, hostPort string) bool {
				return g.MatchHost(host) || g.MatchHost(hostPort)
			}}, nil
		}
		return hostRule{text: s, match: func(host, hostPort string) bool {
			return s == host || s == hostPort
		}}, nil
	case *regexp.Regexp:
		if t == nil {
			return hostRule{}, fmt.Errorf("nil net connect allow regexp")
		}
		return hostRule{text: "/" + t.String() + "/", match: func(_, hostPort string) bool {
			return t.MatchString(hostPort)
		}}, nil
	case func(string) bool:
		if t == nil {
			return hostRule{}, fmt.Errorf("nil net connect allow function")
		}
		return hostRule{text: "<function>", match: func(_, hostPort string) bool {
			return t(hostPort)
		}}, nil
	}
	return hostRule{}, fmt.Errorf("unsupported net connect allow entry of type %T", v)
}
