package intercept

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/getmockd/netmock/internal/eventloop"
	"github.com/getmockd/netmock/internal/id"
	"github.com/getmockd/netmock/internal/matching"
	"github.com/getmockd/netmock/pkg/headers"
	"github.com/getmockd/netmock/pkg/requestlog"
)

// State is a Request lifecycle state.
type State int

// States.
const (
	StateCreated State = iota
	StateWriting
	StateEnded
	StateMatching
	StateResponding
	StatePassthrough
	StateDone
	StateAborted
)

var stateNames = [...]string{
	StateCreated:     "created",
	StateWriting:     "writing",
	StateEnded:       "ended",
	StateMatching:    "matching",
	StateResponding:  "responding",
	StatePassthrough: "passthrough",
	StateDone:        "done",
	StateAborted:     "aborted",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// RequestOptions describes an outbound request. Either URL or Protocol and
// Host are required.
type RequestOptions struct {
	Method string
	// URL is an absolute http or https URL.
	URL string

	Protocol string
	Host     string
	// Port defaults to the protocol's port.
	Port int
	// Path is the path with query, "/" if empty.
	Path string

	// Header holds request headers. Names differing only in case conflict.
	Header map[string][]string
	// RawHeader holds name/value pairs and takes precedence over Header.
	RawHeader []string
}

// RequestContext is the engine's view of one outstanding request.
type RequestContext struct {
	ID       string
	Target   matching.Target
	Method   string
	Path     string
	Header   *headers.Header
	Body     []byte
	Finished bool
	Aborted  bool
	Started  time.Time

	// Candidates is the interceptor snapshot taken when matching began.
	Candidates []*Interceptor
	// Scope is the scope of the interceptor that answered, if any.
	Scope *Scope
}

// URL renders the request URL.
func (c *RequestContext) URL() string {
	return c.Target.String() + c.Path
}

// Request is the handle of one emulated request. Its methods must be
// called on the engine's loop goroutine, or by the goroutine driving a
// caller-owned loop.
type Request struct {
	engine *Engine
	ctx    *RequestContext
	state  State

	subs   []eventSub
	nextID int

	connectDelay    time.Duration
	socketConnected bool
	ended           bool
	matching        bool
	finishEmitted   bool
	responseStarted bool
	abortCalled     bool
	settled         bool

	timers  []*eventloop.Timer
	cancels []context.CancelFunc

	interceptor *Interceptor
	response    *Response
	outcome     requestlog.Outcome
}

type eventSub struct {
	id int
	fn func(Event)
}

func parseRequestOptions(opts RequestOptions) (*RequestContext, error) {
	ctx := &RequestContext{
		ID:     id.Request(),
		Method: strings.ToUpper(strings.TrimSpace(opts.Method)),
	}
	if ctx.Method == "" {
		ctx.Method = "GET"
	}

	if opts.URL != "" {
		u, err := url.Parse(opts.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid request url: %w", err)
		}
		port := 0
		if p := u.Port(); p != "" {
			if _, err := fmt.Sscanf(p, "%d", &port); err != nil {
				return nil, fmt.Errorf("invalid request port %q", p)
			}
		}
		ctx.Target = matching.NewTarget(u.Scheme, u.Hostname(), port)
		ctx.Path = u.RequestURI()
	} else {
		ctx.Target = matching.NewTarget(opts.Protocol, opts.Host, opts.Port)
		ctx.Path = opts.Path
	}
	if ctx.Path == "" {
		ctx.Path = "/"
	}
	switch ctx.Target.Protocol {
	case "http", "https":
	default:
		return nil, fmt.Errorf("unsupported protocol %q", ctx.Target.Protocol)
	}
	if ctx.Target.Host == "" {
		return nil, errors.New("request host is required")
	}

	var err error
	if opts.RawHeader != nil {
		ctx.Header, err = headers.FromRaw(opts.RawHeader)
	} else {
		ctx.Header, err = headers.FromMultiMap(opts.Header)
	}
	if err != nil {
		return nil, err
	}
	if !ctx.Header.Has("host") {
		host := ctx.Target.HostPort()
		if ctx.Target.Port == matching.DefaultPort(ctx.Target.Protocol) {
			host = strings.TrimSuffix(host, fmt.Sprintf(":%d", ctx.Target.Port))
		}
		if err := ctx.Header.Set("Host", host); err != nil {
			return nil, err
		}
	}
	return ctx, nil
}

// ID returns the request identifier.
func (r *Request) ID() string { return r.ctx.ID }

// Context returns the request's context.
func (r *Request) Context() *RequestContext { return r.ctx }

// State returns the current lifecycle state.
func (r *Request) State() State { return r.state }

// Response returns the delivered response head, nil before EventResponse.
func (r *Request) Response() *Response { return r.response }

// Interceptor returns the interceptor that answered the request, if any.
func (r *Request) Interceptor() *Interceptor { return r.interceptor }

// Subscribe registers fn for every future event and returns a function
// removing it.
func (r *Request) Subscribe(fn func(Event)) func() {
	r.nextID++
	subID := r.nextID
	r.subs = append(r.subs, eventSub{id: subID, fn: fn})
	return func() {
		for i, s := range r.subs {
			if s.id == subID {
				r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
				return
			}
		}
	}
}

// SetHeader sets a request header. It fails once the body has ended.
func (r *Request) SetHeader(name, value string) error {
	if r.ended || r.state == StateAborted {
		return newError(CodeHeadersSent, "write", r.ctx, ErrHeadersSent)
	}
	return r.ctx.Header.Set(name, value)
}

// Write appends p to the request body. cb, if set, is called on the loop
// with the write's outcome. A zero-length write is a no-op that still
// calls cb.
func (r *Request) Write(p []byte, cb func(error)) error {
	if err := r.writable(); err != nil {
		if cb != nil {
			r.engine.loop.Post(func() { cb(err) })
		}
		return err
	}
	if len(p) > 0 {
		r.ctx.Body = append(r.ctx.Body, p...)
		r.state = StateWriting
	}
	if cb != nil {
		r.engine.loop.Post(func() { cb(nil) })
	}
	return nil
}

// End writes p, if any, and finishes the body. Ending twice without data
// is a no-op.
func (r *Request) End(p []byte) error {
	if r.state == StateAborted {
		return newError(CodeStreamDestroyed, "write", r.ctx, ErrStreamDestroyed)
	}
	if r.ended {
		if len(p) > 0 {
			return newError(CodeWriteAfterEnd, "write", r.ctx, ErrWriteAfterEnd)
		}
		return nil
	}
	r.ctx.Body = append(r.ctx.Body, p...)
	r.ended = true
	r.ctx.Finished = true
	r.state = StateEnded
	r.post(r.maybeMatch)
	return nil
}

func (r *Request) writable() error {
	if r.state == StateAborted {
		return newError(CodeStreamDestroyed, "write", r.ctx, ErrStreamDestroyed)
	}
	if r.ended {
		return newError(CodeWriteAfterEnd, "write", r.ctx, ErrWriteAfterEnd)
	}
	return nil
}

// Abort cancels the request. Only the first call has an effect: it stops
// every pending timer and emits abort, then, if no response had started,
// an ECONNRESET error, then close. After the response was fully delivered
// only abort is emitted.
func (r *Request) Abort() {
	if r.abortCalled {
		return
	}
	r.abortCalled = true
	r.stopPending()

	wasDone := r.state == StateDone
	started := r.responseStarted
	r.ctx.Aborted = true
	if !wasDone {
		r.state = StateAborted
	}
	r.engine.logger.Debug("request aborted", "request", r.ctx.ID, "done", wasDone, "responseStarted", started)

	r.engine.loop.Post(func() {
		r.emit(Event{Type: EventAbort})
		if wasDone {
			return
		}
		var err error
		if !started {
			err = newError(CodeConnReset, "abort", r.ctx, ErrConnReset)
			r.emit(Event{Type: EventError, Err: err})
		}
		r.emit(Event{Type: EventClose})
		r.settle(requestlog.OutcomeAborted, err)
	})
}

func (r *Request) stopPending() {
	for _, t := range r.timers {
		t.Stop()
	}
	r.timers = nil
	for _, cancel := range r.cancels {
		cancel()
	}
	r.cancels = nil
}

// post runs fn on the loop unless the request was aborted by then.
func (r *Request) post(fn func()) {
	r.engine.loop.Post(func() {
		if r.state == StateAborted {
			return
		}
		fn()
	})
}

// after runs fn on the loop after d unless the request was aborted by then.
func (r *Request) after(d time.Duration, fn func()) {
	t := r.engine.loop.AfterFunc(d, func() {
		if r.state == StateAborted {
			return
		}
		fn()
	})
	r.timers = append(r.timers, t)
}

func (r *Request) emit(ev Event) {
	subs := make([]eventSub, len(r.subs))
	copy(subs, r.subs)
	for _, s := range subs {
		s.fn(ev)
	}
}

// emitLive emits ev and reports whether the request is still alive.
func (r *Request) emitLive(ev Event) bool {
	r.emit(ev)
	return r.state != StateAborted
}

func (r *Request) emitFinish() bool {
	if r.finishEmitted {
		return true
	}
	r.finishEmitted = true
	return r.emitLive(Event{Type: EventFinish})
}

func (r *Request) connectSocket() {
	if !r.emitLive(Event{Type: EventSocket}) {
		return
	}
	if r.connectDelay > 0 {
		r.after(r.connectDelay, r.connected)
		return
	}
	r.connected()
}

func (r *Request) connected() {
	if !r.emitLive(Event{Type: EventConnect}) {
		return
	}
	if r.ctx.Target.Secure() && !r.emitLive(Event{Type: EventSecureConnect}) {
		return
	}
	r.socketConnected = true
	r.maybeMatch()
}

func (r *Request) maybeMatch() {
	if !r.ended || !r.socketConnected || r.matching {
		return
	}
	r.matching = true
	r.match()
}

func (r *Request) match() {
	e := r.engine
	r.state = StateMatching

	if !e.IsActive() {
		r.passthrough()
		return
	}

	r.ctx.Candidates = e.registry.Candidates(r.ctx.Target)
	for _, i := range r.ctx.Candidates {
		if !i.matches(r.ctx, e.logger) {
			continue
		}
		if !e.registry.Consume(i) {
			continue
		}
		r.interceptor = i
		r.ctx.Scope = i.scope
		e.logger.Debug("request matched", "request", r.ctx.ID, "method", r.ctx.Method, "url", r.ctx.URL(), "interceptor", i.Key())

		n := Notification{Type: NotifyRequest, Request: r.ctx, Interceptor: i}
		i.scope.observers.notify(n)
		e.observers.notify(n)
		if r.state == StateAborted {
			return
		}
		r.play(i)
		return
	}
	r.noMatch()
}

func (r *Request) noMatch() {
	e := r.engine
	t := r.ctx.Target

	scopes := e.registry.ScopesFor(t)
	if len(scopes) == 0 || anyAllowUnmocked(scopes) {
		if e.policy.Allowed(t) {
			r.passthrough()
			return
		}
		e.logger.Debug("net connect denied", "request", r.ctx.ID, "method", r.ctx.Method, "url", r.ctx.URL())
		r.reject(newError(CodeNetConnectDenied, "connect", r.ctx, ErrNetConnectNotAllowed))
		return
	}

	e.logger.Debug("no match", "request", r.ctx.ID, "method", r.ctx.Method, "url", r.ctx.URL(), "candidates", len(r.ctx.Candidates))
	r.reject(newError(CodeNoMatch, "match", r.ctx, ErrNoMatch))
}

func anyAllowUnmocked(scopes []*Scope) bool {
	for _, s := range scopes {
		if s.settings().allowUnmocked {
			return true
		}
	}
	return false
}

func (r *Request) reject(err error) {
	r.engine.observers.notify(Notification{Type: NotifyNoMatch, Request: r.ctx, Err: err})
	r.outcome = requestlog.OutcomeNoMatch
	r.fail(err)
}

// fail delivers err as the request's terminal error.
func (r *Request) fail(err error) {
	if r.state == StateAborted {
		return
	}
	if !r.emitFinish() {
		return
	}
	if r.outcome == "" {
		r.outcome = requestlog.OutcomeError
	}
	r.state = StateDone
	r.stopPending()
	r.settle(r.outcome, err)
	r.emit(Event{Type: EventError, Err: err})
	r.emit(Event{Type: EventClose})
}

// complete is reached after the last body chunk.
func (r *Request) complete() {
	r.state = StateDone
	r.stopPending()
	r.settle(r.outcome, nil)
	r.emit(Event{Type: EventEnd})
	r.emit(Event{Type: EventClose})

	if r.interceptor != nil {
		n := Notification{Type: NotifyReplied, Request: r.ctx, Interceptor: r.interceptor, Response: r.response}
		r.interceptor.scope.observers.notify(n)
		r.engine.observers.notify(n)
	}
}

// settle records the request once it reaches a terminal state.
func (r *Request) settle(outcome requestlog.Outcome, err error) {
	if r.settled {
		return
	}
	r.settled = true
	e := r.engine
	e.forget(r)

	entry := &requestlog.Entry{
		ID:        r.ctx.ID,
		Timestamp: r.ctx.Started,
		Method:    r.ctx.Method,
		Origin:    r.ctx.Target.Key(),
		Headers:   r.ctx.Header.Folded(),
		Outcome:   outcome,
	}
	entry.DurationMs = e.loop.Clock().Now().Sub(r.ctx.Started).Milliseconds()
	entry.Path, entry.QueryString = matching.SplitPathQuery(r.ctx.Path)
	entry.Body, entry.BodySize = requestlog.Truncate(r.ctx.Body)
	if r.interceptor != nil {
		entry.InterceptorID = r.interceptor.id
		entry.ScopeID = r.interceptor.scope.id
	}
	if r.response != nil {
		entry.ResponseStatus = r.response.StatusCode
	}
	if err != nil {
		entry.Error = err.Error()
	}
	e.history.Log(entry)
}
