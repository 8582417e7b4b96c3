package testing

import (
	"net/http"
	"strings"
	"testing"

	"github.com/getmockd/netmock/pkg/intercept"
	"github.com/getmockd/netmock/pkg/requestlog"
)

// Mock is a test helper owning an intercept.Engine for one test.
type Mock struct {
	t         testing.TB
	engine    *intercept.Engine
	client    *http.Client
	checkDone bool
}

// Option configures a Mock.
type Option func(*mockOptions)

type mockOptions struct {
	engineOpts       []intercept.Option
	allow            []any
	netConnect       bool
	skipDoneCheck    bool
	defaultTransport bool
}

// WithEngineOptions passes options to intercept.New.
func WithEngineOptions(opts ...intercept.Option) Option {
	return func(o *mockOptions) {
		o.engineOpts = append(o.engineOpts, opts...)
	}
}

// WithNetConnect lets unmatched requests reach the given hosts, or every
// host when allow is empty.
func WithNetConnect(allow ...any) Option {
	return func(o *mockOptions) {
		o.netConnect = true
		o.allow = allow
	}
}

// WithoutDoneCheck disables the pending-expectation check at cleanup.
func WithoutDoneCheck() Option {
	return func(o *mockOptions) {
		o.skipDoneCheck = true
	}
}

// WithDefaultTransport routes http.DefaultTransport through the engine
// until cleanup. Tests using it must not run in parallel.
func WithDefaultTransport() Option {
	return func(o *mockOptions) {
		o.defaultTransport = true
	}
}

// New creates an active engine for t. It is reset and closed when the test
// completes; if the test has not already failed, pending expectations are
// reported with t.Errorf.
func New(t testing.TB, opts ...Option) *Mock {
	t.Helper()

	var o mockOptions
	for _, opt := range opts {
		opt(&o)
	}

	e := intercept.New(o.engineOpts...)
	if o.netConnect {
		if err := e.EnableNetConnect(o.allow...); err != nil {
			e.Close()
			t.Fatalf("invalid net connect allow-list: %v", err)
		}
	} else {
		e.DisableNetConnect()
	}
	if o.defaultTransport {
		e.InstallDefaultTransport()
	}

	m := &Mock{
		t:         t,
		engine:    e,
		client:    &http.Client{Transport: e.Transport()},
		checkDone: !o.skipDoneCheck,
	}
	t.Cleanup(m.cleanup)
	return m
}

func (m *Mock) cleanup() {
	if m.checkDone && !m.t.Failed() {
		if pending := m.engine.PendingMocks(); len(pending) > 0 {
			m.t.Errorf("netmock: %d expectation(s) not satisfied:\n  %s", len(pending), strings.Join(pending, "\n  "))
		}
	}
	m.engine.Reset()
	m.engine.Close()
}

// Engine returns the underlying engine for advanced use cases.
func (m *Mock) Engine() *intercept.Engine {
	return m.engine
}

// Client returns an http.Client whose transport is the engine.
func (m *Mock) Client() *http.Client {
	return m.client
}

// Scope declares expectations for origin.
func (m *Mock) Scope(origin string, opts ...intercept.ScopeOption) *intercept.Scope {
	return m.engine.Scope(origin, opts...)
}

// Load defines the files matched by patterns, failing the test on error.
func (m *Mock) Load(patterns ...string) []*intercept.Scope {
	m.t.Helper()
	scopes, err := m.engine.Load(patterns...)
	if err != nil {
		m.t.Fatalf("loading definitions: %v", err)
	}
	return scopes
}

// Reset clears all scopes and recorded requests.
// Use this between test cases to start fresh.
func (m *Mock) Reset() {
	m.engine.Reset()
}

// Requests returns all recorded requests for assertions.
// Requests are returned in reverse chronological order (newest first).
func (m *Mock) Requests() []RequestLog {
	entries := m.engine.Requests(nil)
	result := make([]RequestLog, len(entries))
	for i, entry := range entries {
		result[i] = newRequestLog(entry)
	}
	return result
}

// AssertDone asserts that every expectation was satisfied.
func (m *Mock) AssertDone(t testing.TB) {
	t.Helper()

	if err := m.engine.Done(); err != nil {
		t.Errorf("%v", err)
	}
}

// AssertCalled asserts that an endpoint was called at least once.
func (m *Mock) AssertCalled(t testing.TB, method, path string) {
	t.Helper()

	count := m.countCalls(method, path)
	if count == 0 {
		t.Errorf("expected %s %s to be called, but it was not called", method, path)
	}
}

// AssertCalledTimes asserts that an endpoint was called exactly n times.
func (m *Mock) AssertCalledTimes(t testing.TB, method, path string, times int) {
	t.Helper()

	count := m.countCalls(method, path)
	if count != times {
		t.Errorf("expected %s %s to be called %d times, but was called %d times",
			method, path, times, count)
	}
}

// AssertNotCalled asserts that an endpoint was not called.
func (m *Mock) AssertNotCalled(t testing.TB, method, path string) {
	t.Helper()

	count := m.countCalls(method, path)
	if count > 0 {
		t.Errorf("expected %s %s to not be called, but it was called %d times",
			method, path, count)
	}
}

// AssertNoUnmatched asserts that no request was rejected for lack of a
// matching interceptor.
func (m *Mock) AssertNoUnmatched(t testing.TB) {
	t.Helper()

	for _, entry := range m.engine.Requests(&requestlog.Filter{Outcome: requestlog.OutcomeNoMatch}) {
		t.Errorf("unmatched request %s %s%s: %s", entry.Method, entry.Origin, entry.Path, entry.Error)
	}
}

// countCalls counts answered requests for a method/path combination.
func (m *Mock) countCalls(method, path string) int {
	entries := m.engine.Requests(&requestlog.Filter{
		Method:  strings.ToUpper(method),
		Outcome: requestlog.OutcomeMatched,
	})

	count := 0
	for _, entry := range entries {
		if matchesPath(entry.Path, path) {
			count++
		}
	}
	return count
}

// matchesPath checks if a request path matches the expected path pattern.
// Supports exact matching and path parameters ({id} patterns).
func matchesPath(actual, expected string) bool {
	if actual == expected {
		return true
	}

	actualParts := strings.Split(actual, "/")
	expectedParts := strings.Split(expected, "/")

	if len(actualParts) != len(expectedParts) {
		return false
	}

	for i := range expectedParts {
		exp := expectedParts[i]
		if strings.HasPrefix(exp, "{") && strings.HasSuffix(exp, "}") {
			continue // any value matches a path parameter
		}
		if exp != actualParts[i] {
			return false
		}
	}

	return true
}
