package intercept

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/getmockd/netmock/internal/id"
	"github.com/getmockd/netmock/internal/matching"
	"github.com/getmockd/netmock/pkg/headers"
)

// ReplyFunc computes a response body when a request is answered. It gets
// the request path with query and the request body, decoded as JSON or a
// form when the content type says so, raw string otherwise. Returning a
// Reply sets status, body and headers together; any other value is the
// body.
type ReplyFunc func(path string, body any) any

// ReplyAsyncFunc is the callback form of ReplyFunc. done must be called
// once, from any goroutine, with an error or the result. Later calls are
// ignored.
type ReplyAsyncFunc func(path string, body any, done func(err error, result any))

// HeaderFunc computes a response header value from the request and the
// encoded response body (nil for streamed bodies).
type HeaderFunc func(req *RequestContext, body []byte) string

// HeaderSourceFunc computes raw response header pairs for a request.
type HeaderSourceFunc func(req *RequestContext) []string

// Reply is the status, body and headers triple a reply function may return.
// A zero Status keeps the declared status.
type Reply struct {
	Status int
	Body   any
	Header []string
}

// Interceptor is one declared request-to-response expectation. Builder
// methods record the first declaration error, which Reply reports on the
// scope instead of registering the interceptor.
type Interceptor struct {
	id    string
	scope *Scope
	seq   uint64

	method        string
	pathText      string
	path          matching.Matcher
	query         matching.Matcher
	queryDeclared bool
	queryExact    bool
	encodedQuery  bool
	body          matching.Matcher
	reqHeaders    []matching.HeaderExpectation
	badHeaders    []string

	reply   replySpec
	replied bool

	times           int
	persist         bool
	optional        bool
	delayConnection time.Duration
	delayBody       time.Duration

	err error

	// guarded by engine.registry.mu
	counter int
	removed bool
}

type replySpec struct {
	status       int
	statusSet    bool
	body         any
	fn           ReplyFunc
	async        ReplyAsyncFunc
	err          error
	header       []string
	headerSource HeaderSourceFunc
	headerFns    []namedHeaderFunc
	length       bool
	date         bool
	dateValue    time.Time
}

type namedHeaderFunc struct {
	name string
	fn   HeaderFunc
}

func newInterceptor(s *Scope, method string, path any) *Interceptor {
	cfg := s.settings()
	i := &Interceptor{
		id:           id.Interceptor(),
		scope:        s,
		method:       strings.ToUpper(strings.TrimSpace(method)),
		times:        1,
		persist:      cfg.persist,
		encodedQuery: cfg.encodedQuery,
	}
	if i.method == "" {
		i.setError(errors.New("empty method"))
	}
	i.setPath(path)
	return i
}

// setError records the first error encountered during building.
func (i *Interceptor) setError(err error) {
	if i.err == nil {
		i.err = err
	}
}

func (i *Interceptor) setPath(path any) {
	switch t := path.(type) {
	case string:
		if !strings.HasPrefix(t, "/") {
			i.setError(fmt.Errorf("path %q must begin with a slash", t))
			return
		}
		i.pathText = t
		i.path = matching.StringMatch{Value: t}
		if p, raw, ok := strings.Cut(t, "?"); ok {
			i.pathText = p + "?" + raw
			i.query = matching.StructuredMatch{Value: matching.ParseQuery(raw), Exact: true}
			i.queryDeclared = true
			i.queryExact = true
		}
	case *regexp.Regexp:
		if t == nil {
			i.setError(errors.New("nil path regular expression"))
			return
		}
		i.pathText = "/" + t.String() + "/"
		i.path = matching.RegexMatch{Re: t}
	case func(string) bool:
		if t == nil {
			i.setError(errors.New("nil path function"))
			return
		}
		i.pathText = "<function>"
		i.path = matching.FunctionMatch{Fn: func(v any) bool {
			s, _ := v.(string)
			return t(s)
		}}
	case matching.Matcher:
		i.pathText = t.String()
		i.path = t
	default:
		i.setError(fmt.Errorf("unsupported path of type %T", path))
	}
}

// Err returns the first declaration error, or nil.
func (i *Interceptor) Err() error { return i.err }

// ID returns the interceptor identifier.
func (i *Interceptor) ID() string { return i.id }

// Scope returns the owning scope.
func (i *Interceptor) Scope() *Scope { return i.scope }

// Method returns the upper-cased method.
func (i *Interceptor) Method() string { return i.method }

// Path returns the declared path as text.
func (i *Interceptor) Path() string { return i.pathText }

// Key identifies the expectation: method, target key and path.
func (i *Interceptor) Key() string {
	return i.method + " " + i.scope.target.Key() + i.pathText
}

// String is the form used by PendingMocks and ActiveMocks.
func (i *Interceptor) String() string {
	return i.Key()
}

// Counter returns how many requests consumed the interceptor.
func (i *Interceptor) Counter() int {
	i.scope.engine.registry.mu.RLock()
	defer i.scope.engine.registry.mu.RUnlock()
	return i.counter
}

// Persisted reports whether the interceptor is never exhausted.
func (i *Interceptor) Persisted() bool { return i.persist }

// IsOptional reports whether the interceptor is excluded from completeness checks.
func (i *Interceptor) IsOptional() bool { return i.optional }

func (i *Interceptor) exhaustedLocked() bool {
	return !i.persist && i.counter >= i.times
}

// Body sets the body expectation: a string (line endings normalized except
// for multipart), []byte, *regexp.Regexp, func(any) bool, func(string) bool,
// or a map, slice or struct compared type-strictly with the JSON or form
// decoded body.
func (i *Interceptor) Body(v any) *Interceptor {
	if i.body != nil {
		i.setError(errors.New("body expectation already declared"))
		return i
	}
	m, err := matching.BodyMatcher(v)
	if err != nil {
		i.setError(err)
		return i
	}
	i.body = m
	return i
}

// BodyJSONPath matches the JSON body with JSONPath conditions. A condition
// value of map{"exists": bool} tests presence only.
func (i *Interceptor) BodyJSONPath(conditions map[string]any) *Interceptor {
	if err := matching.ValidateJSONPath(conditions); err != nil {
		i.setError(err)
		return i
	}
	return i.Body(matching.JSONPathMatch{Conditions: conditions})
}

// Query declares a query expectation: a map or url.Values compared key by
// key (extra request keys allowed), a raw query string, true for any query,
// or a func(map[string]any) bool.
func (i *Interceptor) Query(v any) *Interceptor {
	return i.setQuery(v, false)
}

// QueryExact is Query with extra request keys rejected.
func (i *Interceptor) QueryExact(v any) *Interceptor {
	return i.setQuery(v, true)
}

// AnyQuery accepts any query string.
func (i *Interceptor) AnyQuery() *Interceptor {
	return i.setQuery(true, false)
}

// EncodedQuery marks declared query keys and values as already percent-encoded.
// It must precede Query.
func (i *Interceptor) EncodedQuery() *Interceptor {
	i.encodedQuery = true
	return i
}

func (i *Interceptor) setQuery(v any, exact bool) *Interceptor {
	if i.queryDeclared {
		i.setError(errors.New("query expectation already declared"))
		return i
	}

	switch t := v.(type) {
	case bool:
		if !t {
			i.setError(errors.New("query(false) is not a valid expectation"))
			return i
		}
		i.query = matching.AnyMatch{}
	case func(map[string]any) bool:
		if t == nil {
			i.setError(errors.New("nil query function"))
			return i
		}
		i.query = matching.FunctionMatch{Fn: func(v any) bool {
			m, _ := v.(map[string]any)
			return t(m)
		}}
	case string:
		i.query = matching.StructuredMatch{Value: matching.ParseQuery(strings.TrimPrefix(t, "?")), Exact: exact}
	default:
		spec, err := matching.QuerySpec(v, i.encodedQuery)
		if err != nil {
			i.setError(err)
			return i
		}
		i.query = matching.StructuredMatch{Value: spec, Exact: exact}
	}
	i.queryDeclared = true
	i.queryExact = exact
	return i
}

// MatchHeader requires a request header. Value may be a string, number,
// *regexp.Regexp, func(string) bool or matching.Matcher.
func (i *Interceptor) MatchHeader(name string, value any) *Interceptor {
	exp, err := headerExpectation(name, value)
	if err != nil {
		i.setError(err)
		return i
	}
	i.reqHeaders = append(i.reqHeaders, exp)
	return i
}

// BasicAuth requires an Authorization header with the given credentials.
func (i *Interceptor) BasicAuth(user, pass string) *Interceptor {
	token := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
	return i.MatchHeader("Authorization", "Basic "+token)
}

// BadHeaders fails the match when any of the named headers is present.
func (i *Interceptor) BadHeaders(names ...string) *Interceptor {
	i.badHeaders = append(i.badHeaders, names...)
	return i
}

// Times sets how many requests the interceptor answers. n <= 0 is treated
// as 1.
func (i *Interceptor) Times(n int) *Interceptor {
	if n <= 0 {
		i.scope.engine.logger.Warn("invalid times argument, using 1", "key", i.Key(), "times", n)
		n = 1
	}
	i.times = n
	return i
}

// Once is Times(1).
func (i *Interceptor) Once() *Interceptor { return i.Times(1) }

// Twice is Times(2).
func (i *Interceptor) Twice() *Interceptor { return i.Times(2) }

// Thrice is Times(3).
func (i *Interceptor) Thrice() *Interceptor { return i.Times(3) }

// Persist makes the interceptor answer any number of requests.
func (i *Interceptor) Persist(on bool) *Interceptor {
	i.persist = on
	return i
}

// Optional excludes the interceptor from IsDone and PendingMocks.
func (i *Interceptor) Optional(on bool) *Interceptor {
	i.optional = on
	return i
}

// DelayConnection defers the connect events by d.
func (i *Interceptor) DelayConnection(d time.Duration) *Interceptor {
	if d < 0 {
		i.setError(fmt.Errorf("negative connection delay %s", d))
		return i
	}
	i.delayConnection = d
	return i
}

// Delay is DelayConnection.
func (i *Interceptor) Delay(d time.Duration) *Interceptor {
	return i.DelayConnection(d)
}

// DelayBody defers the body data by d, measured from the start of playback.
func (i *Interceptor) DelayBody(d time.Duration) *Interceptor {
	if d < 0 {
		i.setError(fmt.Errorf("negative body delay %s", d))
		return i
	}
	i.delayBody = d
	return i
}

// ReplyHeader adds a response header whose value is computed per request.
func (i *Interceptor) ReplyHeader(name string, fn HeaderFunc) *Interceptor {
	if strings.TrimSpace(name) == "" || fn == nil {
		i.setError(errors.New("ReplyHeader: name and function are required"))
		return i
	}
	i.reply.headerFns = append(i.reply.headerFns, namedHeaderFunc{name: name, fn: fn})
	return i
}

// ReplyHeaders adds response header pairs computed per request.
func (i *Interceptor) ReplyHeaders(fn HeaderSourceFunc) *Interceptor {
	if fn == nil {
		i.setError(errors.New("ReplyHeaders: nil function"))
		return i
	}
	i.reply.headerSource = fn
	return i
}

// ReplyContentLength adds a Content-Length header computed from the body.
func (i *Interceptor) ReplyContentLength() *Interceptor {
	i.reply.length = true
	return i
}

// ReplyDate adds a Date header. A zero t uses the engine clock at reply time.
func (i *Interceptor) ReplyDate(t time.Time) *Interceptor {
	i.reply.date = true
	i.reply.dateValue = t
	return i
}

// Reply registers the interceptor answering with status, body and raw
// header pairs. A zero status means 200. Body may be a string, []byte,
// json.RawMessage, io.Reader (streamed) or any JSON-encodable value.
func (i *Interceptor) Reply(status int, body any, header ...string) *Scope {
	i.reply.body = body
	return i.register(status, header)
}

// ReplyFunc registers the interceptor answering with the result of fn.
func (i *Interceptor) ReplyFunc(status int, fn ReplyFunc, header ...string) *Scope {
	if fn == nil {
		i.setError(errors.New("ReplyFunc: nil function"))
	}
	i.reply.fn = fn
	return i.register(status, header)
}

// ReplyAsync registers the interceptor answering with the result passed
// to done. An error answers with the declared status, or 500, and the
// error text as body.
func (i *Interceptor) ReplyAsync(status int, fn ReplyAsyncFunc, header ...string) *Scope {
	if fn == nil {
		i.setError(errors.New("ReplyAsync: nil function"))
	}
	i.reply.async = fn
	return i.register(status, header)
}

// ReplyWithError registers the interceptor failing matching requests with
// err delivered as the request error.
func (i *Interceptor) ReplyWithError(err error) *Scope {
	if err == nil {
		i.setError(errors.New("ReplyWithError: nil error"))
	}
	i.reply.err = err
	return i.register(0, nil)
}

func (i *Interceptor) register(status int, header []string) *Scope {
	s := i.scope
	if i.replied {
		s.addErr(fmt.Errorf("%s: %w", i.Key(), ErrAlreadyReplied))
		return s
	}
	i.replied = true

	if status != 0 {
		if status < 100 || status > 999 {
			i.setError(fmt.Errorf("invalid status code %d", status))
		}
		i.reply.status = status
		i.reply.statusSet = true
	} else {
		i.reply.status = 200
	}
	if len(header) > 0 {
		if _, err := headers.FromRaw(header); err != nil {
			i.setError(err)
		}
		i.reply.header = header
	}

	if s.broken {
		return s
	}
	if i.err != nil {
		s.addErr(fmt.Errorf("%s: %w", i.Key(), i.err))
		return s
	}
	s.engine.registry.Register(i)
	return s
}
