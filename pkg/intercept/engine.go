package intercept

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getmockd/netmock/internal/eventloop"
	"github.com/getmockd/netmock/internal/matching"
	"github.com/getmockd/netmock/pkg/logging"
	"github.com/getmockd/netmock/pkg/requestlog"
)

// Engine is the process-scoped interception state: registry, network
// policy, request history and the event loop running every emulated
// request. A new Engine is active.
type Engine struct {
	logger   *slog.Logger
	loop     *eventloop.Loop
	ownLoop  bool
	stopLoop context.CancelFunc

	registry  *Registry
	policy    *NetPolicy
	history   requestlog.Logger
	observers notifier

	passthrough        http.RoundTripper
	passthroughTimeout time.Duration

	active atomic.Bool

	mu          sync.Mutex
	outstanding map[*Request]struct{}
	installed   bool
	prevDefault http.RoundTripper
	closed      bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.logger = log
		}
	}
}

// WithLoop makes the engine schedule on a caller-owned loop. The engine
// never runs it; the caller calls Run or RunPending.
func WithLoop(l *eventloop.Loop) Option {
	return func(e *Engine) {
		e.loop = l
	}
}

// WithPassthrough sets the RoundTripper used for requests allowed to reach
// the network. Defaults to http.DefaultTransport as it was when the engine
// was created.
func WithPassthrough(rt http.RoundTripper) Option {
	return func(e *Engine) {
		e.passthrough = rt
	}
}

// WithPassthroughTimeout bounds each pass-through exchange.
func WithPassthroughTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.passthroughTimeout = d
	}
}

// WithRequestLog sets the request history sink. Defaults to a MemoryStore.
func WithRequestLog(l requestlog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.history = l
		}
	}
}

// WithNetPolicy sets the policy for unmatched requests.
func WithNetPolicy(p *NetPolicy) Option {
	return func(e *Engine) {
		if p != nil {
			e.policy = p
		}
	}
}

// New creates an active Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:      logging.Nop(),
		policy:      NewNetPolicy(),
		history:     requestlog.NewMemoryStore(requestlog.DefaultMaxEntries),
		outstanding: make(map[*Request]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.Component(e.logger, "intercept")
	e.registry = NewRegistry(e.logger)

	if e.passthrough == nil {
		e.passthrough = http.DefaultTransport
		if _, ours := e.passthrough.(*Transport); ours {
			e.passthrough = &http.Transport{Proxy: http.ProxyFromEnvironment}
		}
	}
	if e.loop == nil {
		e.loop = eventloop.New()
		e.ownLoop = true
		ctx, cancel := context.WithCancel(context.Background())
		e.stopLoop = cancel
		go func() { _ = e.loop.Run(ctx) }()
	}
	e.active.Store(true)
	return e
}

// Loop returns the loop running emulated requests.
func (e *Engine) Loop() *eventloop.Loop { return e.loop }

// Activate turns interception on.
func (e *Engine) Activate() {
	if !e.active.Swap(true) {
		e.logger.Info("interception activated")
	}
}

// Restore turns interception off, so every request passes through, and
// puts back http.DefaultTransport if InstallDefaultTransport replaced it.
func (e *Engine) Restore() {
	if e.active.Swap(false) {
		e.logger.Info("interception restored")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.installed {
		http.DefaultTransport = e.prevDefault
		e.installed = false
		e.prevDefault = nil
	}
}

// IsActive reports whether interception is on.
func (e *Engine) IsActive() bool {
	return e.active.Load()
}

// Close restores the engine, aborts outstanding requests and stops the
// loop the engine owns. It is idempotent.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.Restore()
	e.AbortPending()
	if e.ownLoop {
		// The stop runs after the posted aborts.
		e.loop.Post(e.stopLoop)
	}
}

// InstallDefaultTransport replaces http.DefaultTransport with the engine's
// Transport until Restore.
func (e *Engine) InstallDefaultTransport() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.installed {
		return
	}
	e.prevDefault = http.DefaultTransport
	http.DefaultTransport = e.Transport()
	e.installed = true
	e.logger.Info("default transport installed")
}

// Transport returns an http.RoundTripper routing requests through the engine.
func (e *Engine) Transport() *Transport {
	return &Transport{engine: e}
}

func (e *Engine) passthroughTransport() http.RoundTripper {
	return e.passthrough
}

// Scope declares expectations for origin, "proto://host[:port]". A '*' in
// the host makes it a glob matched against request hostnames. An invalid
// origin is reported by Scope.Err and no interceptor of it is registered.
func (e *Engine) Scope(origin string, opts ...ScopeOption) *Scope {
	t, err := matching.ParseOrigin(origin)
	var pattern matching.HostPattern
	if err == nil && strings.Contains(t.Host, "*") {
		pattern, err = matching.NewHostGlob(t.Host)
	}
	return e.newScope(t, pattern, err, opts)
}

// ScopeFor declares expectations for a host pattern: a string (exact, or
// a glob when it contains '*'), a *regexp.Regexp, a func(string) bool or a
// matching.HostPattern. A zero port selects the protocol default.
func (e *Engine) ScopeFor(protocol string, host any, port int, opts ...ScopeOption) *Scope {
	var (
		pattern matching.HostPattern
		err     error
		text    string
	)
	switch h := host.(type) {
	case string:
		text = h
		if strings.Contains(h, "*") {
			pattern, err = matching.NewHostGlob(strings.ToLower(h))
		}
	case *regexp.Regexp:
		if h == nil {
			err = errors.New("nil host regular expression")
			break
		}
		pattern = matching.HostRegex{Re: h}
	case func(string) bool:
		if h == nil {
			err = errors.New("nil host function")
			break
		}
		pattern = matching.HostFunc(h)
	case matching.HostPattern:
		pattern = h
	default:
		err = fmt.Errorf("unsupported host pattern of type %T", host)
	}
	if pattern != nil && text == "" {
		text = pattern.String()
	}

	t := matching.NewTarget(protocol, text, port)
	if pattern != nil {
		t.Host = text
	}
	if err == nil && t.Protocol != "http" && t.Protocol != "https" {
		err = fmt.Errorf("unsupported protocol %q", protocol)
	}
	return e.newScope(t, pattern, err, opts)
}

func (e *Engine) newScope(t matching.Target, pattern matching.HostPattern, err error, opts []ScopeOption) *Scope {
	s := newScope(e, t, pattern)
	for _, opt := range opts {
		opt(s)
	}
	if err != nil {
		s.addErr(err)
		s.broken = true
	}
	e.registry.addScope(s)
	return s
}

// Reset removes every scope and clears the request history if it is a
// requestlog.Store. Outstanding requests are not aborted.
func (e *Engine) Reset() {
	e.registry.ResetAll()
	if store, ok := e.history.(requestlog.Store); ok {
		store.Clear()
	}
	e.logger.Info("interceptors reset")
}

// RemoveInterceptor deactivates i. It reports false if i was not active.
func (e *Engine) RemoveInterceptor(i *Interceptor) bool {
	return e.registry.Remove(i)
}

// Scopes returns the declared scopes in creation order.
func (e *Engine) Scopes() []*Scope {
	return e.registry.Scopes()
}

// PendingMocks lists unsatisfied expectations across every scope.
func (e *Engine) PendingMocks() []string {
	return e.registry.PendingKeys()
}

// ActiveMocks lists consumable interceptors across every scope.
func (e *Engine) ActiveMocks() []string {
	return e.registry.ActiveKeys()
}

// IsDone reports whether no expectation of any scope is pending.
func (e *Engine) IsDone() bool {
	return len(e.PendingMocks()) == 0
}

// Done returns an error wrapping ErrPendingMocks, or nil when IsDone.
func (e *Engine) Done() error {
	return pendingError(e.PendingMocks())
}

// EnableNetConnect lets unmatched requests reach the network, restricted
// to the allow entries if any are given (see NetPolicy.Enable).
func (e *Engine) EnableNetConnect(allow ...any) error {
	if err := e.policy.Enable(allow...); err != nil {
		return err
	}
	e.logger.Info("net connect enabled", "policy", e.policy.String())
	return nil
}

// DisableNetConnect rejects unmatched requests.
func (e *Engine) DisableNetConnect() {
	e.policy.Disable()
	e.logger.Info("net connect disabled")
}

// NetPolicy returns the engine's policy.
func (e *Engine) NetPolicy() *NetPolicy { return e.policy }

// Observe subscribes fn to notifications of every scope plus no-match
// rejections. fn runs on the loop goroutine.
func (e *Engine) Observe(fn func(Notification)) func() {
	return e.observers.subscribe(fn)
}

// History returns the request history sink.
func (e *Engine) History() requestlog.Logger { return e.history }

// Requests lists recorded requests newest first. It returns nil when the
// history sink is not a requestlog.Store.
func (e *Engine) Requests(filter *requestlog.Filter) []*requestlog.Entry {
	if store, ok := e.history.(requestlog.Store); ok {
		return store.List(filter)
	}
	return nil
}

// NewRequest starts emulating a request. Header conflicts and malformed
// options fail immediately. Events start on the next loop turn, so a
// subscriber attached right after NewRequest sees all of them.
func (e *Engine) NewRequest(opts RequestOptions) (*Request, error) {
	ctx, err := parseRequestOptions(opts)
	if err != nil {
		return nil, err
	}
	ctx.Started = e.loop.Clock().Now()

	r := &Request{engine: e, ctx: ctx}
	r.connectDelay = e.connectDelay(ctx)

	e.mu.Lock()
	e.outstanding[r] = struct{}{}
	e.mu.Unlock()

	e.logger.Debug("request created", "request", ctx.ID, "method", ctx.Method, "url", ctx.URL())
	r.post(r.connectSocket)
	return r, nil
}

// connectDelay is the connection delay of the first active interceptor
// whose route matches ctx. The body is not known yet.
func (e *Engine) connectDelay(ctx *RequestContext) time.Duration {
	if !e.IsActive() {
		return 0
	}
	for _, i := range e.registry.Candidates(ctx.Target) {
		if i.routeMatches(ctx) {
			return i.delayConnection
		}
	}
	return 0
}

// AbortPending aborts every outstanding request.
func (e *Engine) AbortPending() {
	e.mu.Lock()
	reqs := make([]*Request, 0, len(e.outstanding))
	for r := range e.outstanding {
		reqs = append(reqs, r)
	}
	e.mu.Unlock()

	for _, r := range reqs {
		e.loop.Post(r.Abort)
	}
}

// Outstanding returns the number of requests not yet settled.
func (e *Engine) Outstanding() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.outstanding)
}

func (e *Engine) forget(r *Request) {
	e.mu.Lock()
	delete(e.outstanding, r)
	e.mu.Unlock()
}
