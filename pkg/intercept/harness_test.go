package intercept

import (
	"bytes"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/getmockd/netmock/internal/eventloop"
)

// harness drives an engine on a caller-owned loop with a manual clock.
// Net connect starts disabled so nothing reaches the network.
type harness struct {
	t      *testing.T
	clock  *eventloop.ManualClock
	loop   *eventloop.Loop
	engine *Engine
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	clock := eventloop.NewManualClock()
	loop := eventloop.New(eventloop.WithClock(clock))
	e := New(append([]Option{WithLoop(loop)}, opts...)...)
	e.DisableNetConnect()
	t.Cleanup(func() {
		e.Close()
		loop.RunPending()
	})
	return &harness{t: t, clock: clock, loop: loop, engine: e}
}

// start creates a request and records its events without ending it.
func (h *harness) start(opts RequestOptions) (*Request, *recorder) {
	h.t.Helper()
	r, err := h.engine.NewRequest(opts)
	require.NoError(h.t, err)
	rec := &recorder{}
	r.Subscribe(rec.add)
	return r, rec
}

// send writes body, ends the request and runs the loop until idle.
func (h *harness) send(opts RequestOptions, body string) (*Request, *recorder) {
	h.t.Helper()
	r, rec := h.start(opts)
	if body != "" {
		require.NoError(h.t, r.Write([]byte(body), nil))
	}
	require.NoError(h.t, r.End(nil))
	h.loop.RunPending()
	return r, rec
}

func (h *harness) get(url string) (*Request, *recorder) {
	h.t.Helper()
	return h.send(RequestOptions{Method: http.MethodGet, URL: url}, "")
}

func (h *harness) post(url, contentType, body string) (*Request, *recorder) {
	h.t.Helper()
	return h.send(RequestOptions{
		Method: http.MethodPost,
		URL:    url,
		Header: map[string][]string{"Content-Type": {contentType}},
	}, body)
}

// drain runs the loop until cond holds, for work finishing on other goroutines.
func (h *harness) drain(cond func() bool) {
	h.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		h.loop.RunPending()
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	h.t.Fatal("condition not reached")
}

type recorder struct {
	events []Event
}

func (rec *recorder) add(ev Event) {
	if ev.Data != nil {
		ev.Data = bytes.Clone(ev.Data)
	}
	rec.events = append(rec.events, ev)
}

func (rec *recorder) types() []EventType {
	out := make([]EventType, len(rec.events))
	for i, ev := range rec.events {
		out[i] = ev.Type
	}
	return out
}

func (rec *recorder) count(t EventType) int {
	n := 0
	for _, ev := range rec.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func (rec *recorder) closed() bool {
	return rec.count(EventClose) > 0
}

func (rec *recorder) response() *Response {
	for _, ev := range rec.events {
		if ev.Type == EventResponse {
			return ev.Response
		}
	}
	return nil
}

func (rec *recorder) status() int {
	if res := rec.response(); res != nil {
		return res.StatusCode
	}
	return 0
}

func (rec *recorder) body() string {
	var b bytes.Buffer
	for _, ev := range rec.events {
		if ev.Type == EventData {
			b.Write(ev.Data)
		}
	}
	return b.String()
}

func (rec *recorder) err() error {
	for _, ev := range rec.events {
		if ev.Type == EventError {
			return ev.Err
		}
	}
	return nil
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
