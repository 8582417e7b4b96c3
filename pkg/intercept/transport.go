package intercept

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
)

// Transport is an http.RoundTripper that routes requests through an
// Engine. When the engine is inactive requests go straight to its
// pass-through transport.
//
// The engine's loop must be running: an engine built WithLoop needs its
// caller to run the loop for RoundTrip to return.
type Transport struct {
	engine *Engine
}

type roundTripResult struct {
	res *Response
	err error
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	e := t.engine
	if !e.IsActive() {
		return e.passthroughTransport().RoundTrip(req)
	}

	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
	}

	opts := RequestOptions{
		Method: req.Method,
		URL:    req.URL.String(),
		Header: req.Header.Clone(),
	}
	if req.Host != "" && req.Host != req.URL.Host {
		if opts.Header == nil {
			opts.Header = make(http.Header)
		}
		opts.Header["Host"] = []string{req.Host}
	}

	results := make(chan roundTripResult, 1)
	buf := newBodyBuffer()
	var handle *Request // loop goroutine only

	e.loop.Post(func() {
		r, err := e.NewRequest(opts)
		if err != nil {
			results <- roundTripResult{err: err}
			return
		}
		handle = r
		delivered := false
		r.Subscribe(func(ev Event) {
			switch ev.Type {
			case EventResponse:
				delivered = true
				results <- roundTripResult{res: ev.Response}
			case EventData:
				buf.write(ev.Data)
			case EventEnd:
				buf.finish(io.EOF)
			case EventError:
				if !delivered {
					delivered = true
					results <- roundTripResult{err: ev.Err}
					return
				}
				buf.finish(ev.Err)
			case EventClose:
				buf.finish(io.ErrUnexpectedEOF)
			}
		})
		if len(body) > 0 {
			_ = r.Write(body, nil)
		}
		_ = r.End(nil)
	})

	abort := func() {
		e.loop.Post(func() {
			if handle != nil {
				handle.Abort()
			}
		})
	}

	select {
	case out := <-results:
		if out.err != nil {
			return nil, out.err
		}
		buf.onClose = abort
		go func() {
			select {
			case <-req.Context().Done():
				abort()
				buf.finish(req.Context().Err())
			case <-buf.done:
			}
		}()
		return httpResponse(req, out.res, buf), nil
	case <-req.Context().Done():
		abort()
		return nil, req.Context().Err()
	}
}

func httpResponse(req *http.Request, res *Response, body io.ReadCloser) *http.Response {
	length := int64(-1)
	if cl := res.Header.Get("content-length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			length = n
		}
	}

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", res.StatusCode, http.StatusText(res.StatusCode)),
		StatusCode:    res.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        res.Header.HTTP(),
		Body:          body,
		ContentLength: length,
		Request:       req,
	}
}

var errBodyClosed = errors.New("netmock: read on closed response body")

// bodyBuffer receives data events without blocking the loop and hands
// them to a reader goroutine.
type bodyBuffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    bytes.Buffer
	err    error
	closed bool
	done   chan struct{}

	// onClose aborts the request when the reader gives up early.
	onClose func()
}

func newBodyBuffer() *bodyBuffer {
	b := &bodyBuffer{done: make(chan struct{})}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *bodyBuffer) write(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil || b.closed {
		return
	}
	b.buf.Write(p)
	b.cond.Broadcast()
}

// finish sets the error returned once buffered data is drained. Only the
// first call has an effect.
func (b *bodyBuffer) finish(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return
	}
	b.err = err
	close(b.done)
	b.cond.Broadcast()
}

func (b *bodyBuffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.buf.Len() == 0 && b.err == nil && !b.closed {
		b.cond.Wait()
	}
	if b.closed {
		return 0, errBodyClosed
	}
	if b.buf.Len() > 0 {
		return b.buf.Read(p)
	}
	return 0, b.err
}

func (b *bodyBuffer) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	unfinished := b.err == nil
	onClose := b.onClose
	b.cond.Broadcast()
	b.mu.Unlock()

	if unfinished {
		if onClose != nil {
			onClose()
		}
		b.finish(errBodyClosed)
	}
	return nil
}
