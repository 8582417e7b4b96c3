package intercept

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/netmock/pkg/requestlog"
)

func TestEventOrder(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want []EventType
	}{
		{
			name: "http",
			url:  "http://example.test/users",
			want: []EventType{EventSocket, EventConnect, EventFinish, EventResponse, EventData, EventEnd, EventClose},
		},
		{
			name: "https",
			url:  "https://example.test/users",
			want: []EventType{EventSocket, EventConnect, EventSecureConnect, EventFinish, EventResponse, EventData, EventEnd, EventClose},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			origin := "http://example.test"
			if tt.name == "https" {
				origin = "https://example.test"
			}
			h.engine.Scope(origin).Get("/users").Reply(200, "[]")

			r, rec := h.get(tt.url)
			assert.Equal(t, tt.want, rec.types())
			assert.Equal(t, "[]", rec.body())
			assert.Equal(t, StateDone, r.State())
			assert.NotNil(t, r.Interceptor())
		})
	}
}

func TestEventOrderEmptyBody(t *testing.T) {
	h := newHarness(t)
	h.engine.Scope("http://example.test").Head("/").Reply(204, nil)

	_, rec := h.send(RequestOptions{Method: http.MethodHead, URL: "http://example.test/"}, "")
	assert.Equal(t, []EventType{EventSocket, EventConnect, EventFinish, EventResponse, EventEnd, EventClose}, rec.types())
	assert.Equal(t, 204, rec.status())
}

func TestEventOrderNoMatch(t *testing.T) {
	h := newHarness(t)
	h.engine.Scope("http://example.test").Get("/a").Reply(200, "a")

	r, rec := h.get("http://example.test/b")
	assert.Equal(t, []EventType{EventSocket, EventConnect, EventFinish, EventError, EventClose}, rec.types())
	assert.Equal(t, CodeNoMatch, CodeOf(rec.err()))
	assert.ErrorIs(t, rec.err(), ErrNoMatch)
	assert.Contains(t, rec.err().Error(), "GET http://example.test/b")
	assert.Equal(t, StateDone, r.State())
}

func TestNewRequestErrors(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name string
		opts RequestOptions
	}{
		{"unsupported protocol", RequestOptions{URL: "ftp://example.test/"}},
		{"missing host", RequestOptions{Protocol: "http", Path: "/"}},
		{"bad url", RequestOptions{URL: "http://[::1"}},
		{"header conflict", RequestOptions{
			URL:    "http://example.test/",
			Header: map[string][]string{"X-A": {"1"}, "x-a": {"2"}},
		}},
		{"odd raw headers", RequestOptions{URL: "http://example.test/", RawHeader: []string{"X-A"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.NewRequest(tt.opts)
			assert.Error(t, err)
		})
	}
}

func TestRequestOptionsParts(t *testing.T) {
	h := newHarness(t)
	h.engine.Scope("http://example.test:8080").Get("/p").Query(map[string]any{"a": "1"}).Reply(200, "ok")

	r, rec := h.send(RequestOptions{Protocol: "HTTP", Host: "Example.Test", Port: 8080, Path: "/p?a=1"}, "")
	assert.Equal(t, 200, rec.status())
	assert.Equal(t, "GET", r.Context().Method)
	assert.Equal(t, "example.test:8080", r.Context().Header.Get("host"))
	assert.Equal(t, "http://example.test:8080/p?a=1", r.Context().URL())
}

func TestAbortIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.engine.Scope("http://example.test").Get("/").Reply(200, "ok")

	r, rec := h.start(RequestOptions{URL: "http://example.test/"})
	r.Abort()
	r.Abort()
	r.Abort()
	h.loop.RunPending()

	assert.Equal(t, []EventType{EventAbort, EventError, EventClose}, rec.types())
	assert.Equal(t, CodeConnReset, CodeOf(rec.err()))
	assert.ErrorIs(t, rec.err(), ErrConnReset)
	assert.Equal(t, StateAborted, r.State())
	assert.Zero(t, h.engine.Outstanding())

	// nothing was consumed
	assert.False(t, h.engine.IsDone())

	entries := h.engine.Requests(nil)
	require.Len(t, entries, 1)
	assert.Equal(t, requestlog.OutcomeAborted, entries[0].Outcome)
}

func TestAbortAfterCompletion(t *testing.T) {
	h := newHarness(t)
	h.engine.Scope("http://example.test").Get("/").Reply(200, "ok")

	r, rec := h.get("http://example.test/")
	require.True(t, rec.closed())
	r.Abort()
	h.loop.RunPending()

	assert.Equal(t, EventAbort, rec.events[len(rec.events)-1].Type)
	assert.Equal(t, 1, rec.count(EventAbort))
	assert.Zero(t, rec.count(EventError))
	assert.Equal(t, 1, rec.count(EventClose))
	assert.Equal(t, StateDone, r.State())
}

func TestAbortAfterResponseStarted(t *testing.T) {
	h := newHarness(t)
	h.engine.Scope("http://example.test").Get("/").DelayBody(time.Second).Reply(200, "late")

	r, rec := h.get("http://example.test/")
	require.Equal(t, 200, rec.status())
	r.Abort()
	h.loop.RunPending()
	h.clock.Advance(time.Second)
	h.loop.RunPending()

	assert.Equal(t, []EventType{EventSocket, EventConnect, EventFinish, EventResponse, EventAbort, EventClose}, rec.types())
	assert.Empty(t, rec.body())
	assert.Zero(t, h.clock.Pending())
}

func TestWriteAfterEnd(t *testing.T) {
	h := newHarness(t)
	h.engine.Scope("http://example.test").Post("/").Reply(200, "ok")

	r, _ := h.start(RequestOptions{Method: "POST", URL: "http://example.test/"})
	require.NoError(t, r.End([]byte("body")))

	var cbErr error
	called := false
	err := r.Write([]byte("more"), func(err error) {
		called = true
		cbErr = err
	})
	assert.Equal(t, CodeWriteAfterEnd, CodeOf(err))
	assert.ErrorIs(t, err, ErrWriteAfterEnd)

	assert.NoError(t, r.End(nil), "ending twice without data")
	assert.Equal(t, CodeWriteAfterEnd, CodeOf(r.End([]byte("x"))))
	assert.Equal(t, CodeHeadersSent, CodeOf(r.SetHeader("X-Late", "1")))

	h.loop.RunPending()
	assert.True(t, called)
	assert.Equal(t, CodeWriteAfterEnd, CodeOf(cbErr))
	assert.Equal(t, "body", string(r.Context().Body))
}

func TestWriteAfterAbort(t *testing.T) {
	h := newHarness(t)
	r, _ := h.start(RequestOptions{URL: "http://example.test/"})
	r.Abort()
	assert.Equal(t, CodeStreamDestroyed, CodeOf(r.Write([]byte("x"), nil)))
	assert.Equal(t, CodeStreamDestroyed, CodeOf(r.End(nil)))
	h.loop.RunPending()
}

func TestZeroLengthWrite(t *testing.T) {
	h := newHarness(t)
	r, _ := h.start(RequestOptions{Method: "POST", URL: "http://example.test/"})

	called := false
	var cbErr error
	require.NoError(t, r.Write(nil, func(err error) {
		called = true
		cbErr = err
	}))
	assert.Equal(t, StateCreated, r.State())

	h.loop.RunPending()
	assert.True(t, called)
	assert.NoError(t, cbErr)
	assert.Empty(t, r.Context().Body)
	r.Abort()
	h.loop.RunPending()
}

func TestBodyWrittenInChunks(t *testing.T) {
	h := newHarness(t)
	h.engine.Scope("http://example.test").Post("/", "hello world").Reply(201, "ok")

	r, rec := h.start(RequestOptions{Method: "POST", URL: "http://example.test/"})
	require.NoError(t, r.Write([]byte("hello "), nil))
	assert.Equal(t, StateWriting, r.State())
	require.NoError(t, r.SetHeader("X-Chunked", "yes"))
	h.loop.RunPending()
	assert.Equal(t, []EventType{EventSocket, EventConnect}, rec.types())

	require.NoError(t, r.End([]byte("world")))
	h.loop.RunPending()
	assert.Equal(t, 201, rec.status())
	assert.Equal(t, "yes", r.Context().Header.Get("x-chunked"))
}

func TestDelayConnection(t *testing.T) {
	h := newHarness(t)
	h.engine.Scope("http://example.test").Get("/").DelayConnection(2 * time.Second).Reply(200, "ok")

	_, rec := h.get("http://example.test/")
	assert.Equal(t, []EventType{EventSocket}, rec.types())

	h.clock.Advance(time.Second)
	h.loop.RunPending()
	assert.Equal(t, []EventType{EventSocket}, rec.types())

	h.clock.Advance(time.Second)
	h.loop.RunPending()
	assert.Equal(t, []EventType{EventSocket, EventConnect, EventFinish, EventResponse, EventData, EventEnd, EventClose}, rec.types())
}

func TestAbortCancelsDelays(t *testing.T) {
	h := newHarness(t)
	h.engine.Scope("http://example.test").Get("/").Delay(time.Minute).Reply(200, "ok")

	r, rec := h.get("http://example.test/")
	require.Equal(t, 1, h.clock.Pending())

	r.Abort()
	h.loop.RunPending()
	assert.Zero(t, h.clock.Pending())

	h.clock.Advance(time.Hour)
	h.loop.RunPending()
	assert.Equal(t, []EventType{EventSocket, EventAbort, EventError, EventClose}, rec.types())
}

func TestDelayBody(t *testing.T) {
	h := newHarness(t)
	h.engine.Scope("http://example.test").Get("/").DelayBody(1500 * time.Millisecond).Reply(200, "slow")

	_, rec := h.get("http://example.test/")
	assert.Equal(t, []EventType{EventSocket, EventConnect, EventFinish, EventResponse}, rec.types())

	h.clock.Advance(1500 * time.Millisecond)
	h.loop.RunPending()
	assert.Equal(t, "slow", rec.body())
	assert.True(t, rec.closed())

	entries := h.engine.Requests(nil)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1500), entries[0].DurationMs)
}

func TestSubscribeUnsubscribe(t *testing.T) {
	h := newHarness(t)
	h.engine.Scope("http://example.test").Get("/").Reply(200, "ok")

	r, rec := h.start(RequestOptions{URL: "http://example.test/"})
	other := &recorder{}
	cancel := r.Subscribe(other.add)
	cancel()
	require.NoError(t, r.End(nil))
	h.loop.RunPending()

	assert.Empty(t, other.events)
	assert.True(t, rec.closed())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "matching", StateMatching.String())
	assert.Equal(t, "State(42)", State(42).String())
}

func TestErrorFormatting(t *testing.T) {
	ctx := &RequestContext{Method: "GET"}
	err := newError(CodeConnReset, "abort", ctx, ErrConnReset)
	assert.Contains(t, err.Error(), "ECONNRESET")
	assert.True(t, errors.Is(err, ErrConnReset))
	assert.Empty(t, CodeOf(errors.New("plain")))
}

func TestOutstandingRequestsShareTimes(t *testing.T) {
	tests := []struct {
		name       string
		secondEnds bool
	}{
		{"first ends first", false},
		{"second ends first", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			s := h.engine.Scope(origin)
			s.Get("/slot").Times(1).Reply(201, "slot")
			s.Get("/slot").Persist(true).Reply(202, "fallback")

			r1, rec1 := h.start(RequestOptions{Method: http.MethodGet, URL: origin + "/slot"})
			r2, rec2 := h.start(RequestOptions{Method: http.MethodGet, URL: origin + "/slot"})
			h.loop.RunPending()
			require.Equal(t, 0, rec1.count(EventFinish))
			require.Equal(t, 0, rec2.count(EventFinish))

			winner, loser := rec1, rec2
			if tt.secondEnds {
				winner, loser = rec2, rec1
				require.NoError(t, r2.End(nil))
				require.NoError(t, r1.End(nil))
			} else {
				require.NoError(t, r1.End(nil))
				require.NoError(t, r2.End(nil))
			}
			h.loop.RunPending()

			assert.Equal(t, 201, winner.status())
			assert.Equal(t, "slot", winner.body())
			assert.Equal(t, 202, loser.status())
			assert.Equal(t, "fallback", loser.body())
			assert.True(t, h.engine.IsDone())
		})
	}
}

func TestConsumedSinceSnapshotFallsThrough(t *testing.T) {
	h := newHarness(t)
	s := h.engine.Scope(origin)

	var first *Interceptor
	first = s.Post("/").Body(func(any) bool {
		// Another request takes the only slot between snapshot and commit.
		require.True(t, h.engine.registry.Consume(first))
		return true
	})
	first.Reply(201, "first")
	s.Post("/").Reply(202, "fallback")

	r, rec := h.post(origin+"/", "text/plain", "payload")
	assert.Equal(t, 202, rec.status())
	assert.Equal(t, "fallback", rec.body())
	assert.NotSame(t, first, r.Interceptor())
	assert.Equal(t, 1, first.Counter())
	assert.True(t, h.engine.IsDone())
}
