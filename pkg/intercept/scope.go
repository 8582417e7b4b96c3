package intercept

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/getmockd/netmock/internal/id"
	"github.com/getmockd/netmock/internal/matching"
	"github.com/getmockd/netmock/pkg/headers"
)

// ErrPendingMocks is wrapped by Scope.Done and Engine.Done when
// expectations remain unsatisfied.
var ErrPendingMocks = errors.New("pending mocks")

// Scope is a declared target and its ordered interceptors.
type Scope struct {
	id      string
	engine  *Engine
	target  matching.Target
	pattern matching.HostPattern
	// broken scopes have an invalid target and register nothing
	broken bool

	cfgMu sync.Mutex
	cfg   atomic.Pointer[scopeSettings]

	errMu sync.Mutex
	errs  []error

	observers notifier

	// guarded by engine.registry.mu
	interceptors []*Interceptor
	pending      map[string][]*Interceptor
}

// scopeSettings is replaced wholesale on every change, so a request that
// loaded it keeps a consistent view while matching.
type scopeSettings struct {
	persist        bool
	allowUnmocked  bool
	encodedQuery   bool
	defaultHeaders []string
	reqHeaders     []matching.HeaderExpectation
	badHeaders     []string
	filterPath     func(string) string
	filterBody     func(string) string
}

// ScopeOption configures a Scope at creation.
type ScopeOption func(*Scope)

// AllowUnmocked lets requests to the scope's target that match no
// interceptor go to the network instead of failing, subject to the
// engine's NetPolicy.
func AllowUnmocked() ScopeOption {
	return func(s *Scope) {
		s.update(func(c *scopeSettings) { c.allowUnmocked = true })
	}
}

// ReqHeaders requires every header in m on each request answered by the
// scope. Values follow Interceptor.MatchHeader.
func ReqHeaders(m map[string]any) ScopeOption {
	return func(s *Scope) {
		names := make([]string, 0, len(m))
		for name := range m {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			s.MatchHeader(name, m[name])
		}
	}
}

// BadHeaders forbids the named headers on every request answered by the scope.
func BadHeaders(names ...string) ScopeOption {
	return func(s *Scope) {
		s.update(func(c *scopeSettings) { c.badHeaders = append(c.badHeaders, names...) })
	}
}

// EncodedQueryParams declares that query expectations of this scope are
// already percent-encoded.
func EncodedQueryParams() ScopeOption {
	return func(s *Scope) {
		s.update(func(c *scopeSettings) { c.encodedQuery = true })
	}
}

func newScope(e *Engine, target matching.Target, pattern matching.HostPattern) *Scope {
	s := &Scope{
		id:      id.Scope(),
		engine:  e,
		target:  target,
		pattern: pattern,
		pending: make(map[string][]*Interceptor),
	}
	s.cfg.Store(&scopeSettings{})
	return s
}

func (s *Scope) settings() *scopeSettings {
	return s.cfg.Load()
}

func (s *Scope) update(fn func(*scopeSettings)) {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()

	c := *s.cfg.Load()
	c.defaultHeaders = slices.Clone(c.defaultHeaders)
	c.reqHeaders = slices.Clone(c.reqHeaders)
	c.badHeaders = slices.Clone(c.badHeaders)
	fn(&c)
	s.cfg.Store(&c)
}

func (s *Scope) addErr(err error) {
	s.errMu.Lock()
	s.errs = append(s.errs, err)
	s.errMu.Unlock()
	s.engine.logger.Warn("declaration rejected", "scope", s.Origin(), "error", err)
}

// Err returns the declaration errors recorded on the scope and its
// interceptors, joined, or nil.
func (s *Scope) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return errors.Join(s.errs...)
}

// ID returns the scope identifier.
func (s *Scope) ID() string { return s.id }

// Target returns the normalized target. For pattern scopes Host holds the
// pattern text.
func (s *Scope) Target() matching.Target { return s.target }

// Origin renders the scope's target, e.g. "http://example.test".
func (s *Scope) Origin() string { return s.target.String() }

// Intercept declares an interceptor for method and path. Path may be a
// string starting with "/" (a query part makes query matching exact), a
// *regexp.Regexp tested against path and query, a func(string) bool, or a
// matching.Matcher. An optional body expectation follows the rules of
// Interceptor.Body.
func (s *Scope) Intercept(method string, path any, body ...any) *Interceptor {
	i := newInterceptor(s, method, path)
	if len(body) > 0 && body[0] != nil {
		i.Body(body[0])
	}
	return i
}

// Get declares a GET interceptor.
func (s *Scope) Get(path any, body ...any) *Interceptor {
	return s.Intercept(http.MethodGet, path, body...)
}

// Post declares a POST interceptor.
func (s *Scope) Post(path any, body ...any) *Interceptor {
	return s.Intercept(http.MethodPost, path, body...)
}

// Put declares a PUT interceptor.
func (s *Scope) Put(path any, body ...any) *Interceptor {
	return s.Intercept(http.MethodPut, path, body...)
}

// Patch declares a PATCH interceptor.
func (s *Scope) Patch(path any, body ...any) *Interceptor {
	return s.Intercept(http.MethodPatch, path, body...)
}

// Delete declares a DELETE interceptor.
func (s *Scope) Delete(path any, body ...any) *Interceptor {
	return s.Intercept(http.MethodDelete, path, body...)
}

// Head declares a HEAD interceptor.
func (s *Scope) Head(path any) *Interceptor {
	return s.Intercept(http.MethodHead, path)
}

// Options declares an OPTIONS interceptor.
func (s *Scope) Options(path any) *Interceptor {
	return s.Intercept(http.MethodOptions, path)
}

// Persist sets the default consumption policy of interceptors declared
// after the call.
func (s *Scope) Persist(on bool) *Scope {
	s.update(func(c *scopeSettings) { c.persist = on })
	return s
}

// DefaultReplyHeaders sets raw name/value pairs added to every response of
// the scope unless the interceptor declares the same name.
func (s *Scope) DefaultReplyHeaders(raw ...string) *Scope {
	if _, err := headers.FromRaw(raw); err != nil {
		s.addErr(fmt.Errorf("DefaultReplyHeaders: %w", err))
		return s
	}
	s.update(func(c *scopeSettings) { c.defaultHeaders = append(c.defaultHeaders, raw...) })
	return s
}

// MatchHeader requires a header on every request answered by the scope.
func (s *Scope) MatchHeader(name string, value any) *Scope {
	exp, err := headerExpectation(name, value)
	if err != nil {
		s.addErr(fmt.Errorf("MatchHeader: %w", err))
		return s
	}
	s.update(func(c *scopeSettings) { c.reqHeaders = append(c.reqHeaders, exp) })
	return s
}

// FilteringPath rewrites the request path and query with
// re.ReplaceAllString before matching.
func (s *Scope) FilteringPath(re *regexp.Regexp, replacement string) *Scope {
	if re == nil {
		s.addErr(errors.New("FilteringPath: nil regular expression"))
		return s
	}
	return s.FilteringPathFunc(func(p string) string { return re.ReplaceAllString(p, replacement) })
}

// FilteringPathFunc rewrites the request path and query with fn before matching.
func (s *Scope) FilteringPathFunc(fn func(string) string) *Scope {
	if fn == nil {
		s.addErr(errors.New("FilteringPathFunc: nil function"))
		return s
	}
	s.update(func(c *scopeSettings) { c.filterPath = fn })
	return s
}

// FilteringRequestBody rewrites the request body with re.ReplaceAllString
// before matching.
func (s *Scope) FilteringRequestBody(re *regexp.Regexp, replacement string) *Scope {
	if re == nil {
		s.addErr(errors.New("FilteringRequestBody: nil regular expression"))
		return s
	}
	return s.FilteringRequestBodyFunc(func(b string) string { return re.ReplaceAllString(b, replacement) })
}

// FilteringRequestBodyFunc rewrites the request body with fn before matching.
func (s *Scope) FilteringRequestBodyFunc(fn func(string) string) *Scope {
	if fn == nil {
		s.addErr(errors.New("FilteringRequestBodyFunc: nil function"))
		return s
	}
	s.update(func(c *scopeSettings) { c.filterBody = fn })
	return s
}

// Interceptors returns every interceptor registered on the scope,
// consumed or not, in registration order.
func (s *Scope) Interceptors() []*Interceptor {
	s.engine.registry.mu.RLock()
	defer s.engine.registry.mu.RUnlock()
	return slices.Clone(s.interceptors)
}

// PendingMocks lists the scope's unsatisfied expectations.
func (s *Scope) PendingMocks() []string {
	return s.engine.registry.PendingKeysFor(s)
}

// ActiveMocks lists the scope's interceptors that can still be consumed.
func (s *Scope) ActiveMocks() []string {
	return s.engine.registry.ActiveKeysFor(s)
}

// IsDone reports whether no non-persisted, non-optional interceptor of the
// scope is still pending.
func (s *Scope) IsDone() bool {
	return len(s.PendingMocks()) == 0
}

// Done returns an error wrapping ErrPendingMocks listing what is pending,
// or nil when IsDone.
func (s *Scope) Done() error {
	return pendingError(s.PendingMocks())
}

// Observe subscribes fn to the scope's request and replied notifications.
// It returns a function that cancels the subscription.
func (s *Scope) Observe(fn func(Notification)) func() {
	return s.observers.subscribe(fn)
}

func pendingError(pending []string) error {
	if len(pending) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrPendingMocks, strings.Join(pending, ", "))
}

func headerExpectation(name string, value any) (matching.HeaderExpectation, error) {
	if strings.TrimSpace(name) == "" {
		return matching.HeaderExpectation{}, errors.New("empty header name")
	}
	m, err := matching.ValueMatcher(value)
	if err != nil {
		return matching.HeaderExpectation{}, fmt.Errorf("header %q: %w", name, err)
	}
	return matching.HeaderExpectation{Name: name, Matcher: m}, nil
}
