package intercept

import (
	"bytes"
	"context"
	"net/http"
	"slices"

	"github.com/getmockd/netmock/pkg/headers"
	"github.com/getmockd/netmock/pkg/requestlog"
)

// passthrough sends the buffered request to the real network and relays
// the outcome as events.
func (r *Request) passthrough() {
	e := r.engine
	r.state = StatePassthrough
	r.outcome = requestlog.OutcomePassthrough
	if !r.emitFinish() {
		return
	}
	e.logger.Debug("passing through", "request", r.ctx.ID, "method", r.ctx.Method, "url", r.ctx.URL())

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if e.passthroughTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), e.passthroughTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	r.cancels = append(r.cancels, cancel)

	req, err := http.NewRequestWithContext(ctx, r.ctx.Method, r.ctx.URL(), bytes.NewReader(bytes.Clone(r.ctx.Body)))
	if err != nil {
		r.outcome = requestlog.OutcomeError
		r.fail(err)
		return
	}
	req.Header = r.ctx.Header.HTTP()
	if host := req.Header.Get("Host"); host != "" {
		req.Host = host
		req.Header.Del("Host")
	}
	req.ContentLength = int64(len(r.ctx.Body))

	rt := e.passthroughTransport()
	go func() {
		res, err := rt.RoundTrip(req)
		e.loop.Post(func() {
			if r.state == StateAborted {
				if res != nil {
					_ = res.Body.Close()
				}
				return
			}
			if err != nil {
				r.outcome = requestlog.OutcomeError
				r.fail(err)
				return
			}
			r.relay(ctx, res)
		})
	}()
}

func (r *Request) relay(ctx context.Context, res *http.Response) {
	raw := rawHeaderPairs(res.Header)
	folded, err := headers.Fold(raw)
	if err != nil {
		_ = res.Body.Close()
		r.fail(err)
		return
	}
	r.response = &Response{StatusCode: res.StatusCode, Header: folded, RawHeader: raw}
	r.responseStarted = true
	if !r.emitLive(Event{Type: EventResponse, Response: r.response}) {
		_ = res.Body.Close()
		return
	}
	r.pipe(ctx, res.Body)
}

// rawHeaderPairs flattens h into name/value pairs with names sorted.
func rawHeaderPairs(h http.Header) []string {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	slices.Sort(names)

	raw := make([]string, 0, 2*len(h))
	for _, name := range names {
		for _, v := range h[name] {
			raw = append(raw, name, v)
		}
	}
	return raw
}
