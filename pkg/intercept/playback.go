package intercept

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/getmockd/netmock/internal/matching"
	"github.com/getmockd/netmock/pkg/headers"
	"github.com/getmockd/netmock/pkg/requestlog"
)

// streamChunkSize bounds one data event of a streamed body.
const streamChunkSize = 32 * 1024

// play answers the request with i's reply.
func (r *Request) play(i *Interceptor) {
	r.state = StateResponding
	r.outcome = requestlog.OutcomeMatched
	if !r.emitFinish() {
		return
	}

	spec := i.reply
	start := r.engine.loop.Clock().Now()

	switch {
	case spec.err != nil:
		r.fail(spec.err)
	case spec.fn != nil:
		result, err := r.callReply(func() any { return spec.fn(r.ctx.Path, r.decodedBody()) })
		if err != nil {
			r.outcome = requestlog.OutcomeError
			r.fail(err)
			return
		}
		r.respond(i, start, result)
	case spec.async != nil:
		var once sync.Once
		done := func(err error, result any) {
			once.Do(func() {
				r.post(func() {
					if r.state != StateResponding {
						return
					}
					if err != nil {
						status := 500
						if spec.statusSet {
							status = spec.status
						}
						r.respond(i, start, Reply{Status: status, Body: err.Error()})
						return
					}
					r.respond(i, start, result)
				})
			})
		}
		if _, err := r.callReply(func() any {
			spec.async(r.ctx.Path, r.decodedBody(), done)
			return nil
		}); err != nil {
			once.Do(func() {})
			r.outcome = requestlog.OutcomeError
			r.fail(err)
		}
	default:
		r.respond(i, start, spec.body)
	}
}

// callReply runs a user reply function, converting a panic into an error.
func (r *Request) callReply(fn func() any) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = newError(CodeReplyFunctionPanic, "reply", r.ctx, fmt.Errorf("reply function panicked: %v", p))
		}
	}()
	return fn(), nil
}

func (r *Request) decodedBody() any {
	return matching.DecodeBody(r.ctx.Header.Get("content-type"), r.ctx.Body)
}

// respond emits the response head and schedules the body.
func (r *Request) respond(i *Interceptor, start time.Time, result any) {
	spec := i.reply
	status := spec.status
	body := result
	var extra []string

	switch rep := result.(type) {
	case Reply:
		if rep.Status != 0 {
			status = rep.Status
		}
		body, extra = rep.Body, rep.Header
	case *Reply:
		body = nil
		if rep != nil {
			if rep.Status != 0 {
				status = rep.Status
			}
			body, extra = rep.Body, rep.Header
		}
	}

	payload, stream, isJSON, err := encodeBody(body)
	if err != nil {
		r.outcome = requestlog.OutcomeError
		r.fail(newError("", "reply", r.ctx, err))
		return
	}

	raw, err := r.replyHeaders(i, payload, stream != nil, isJSON, extra)
	if err != nil {
		if stream != nil {
			closeReader(stream)
		}
		r.outcome = requestlog.OutcomeError
		r.fail(newError("", "reply", r.ctx, err))
		return
	}
	h, err := headers.FromRaw(raw)
	if err != nil {
		if stream != nil {
			closeReader(stream)
		}
		r.outcome = requestlog.OutcomeError
		r.fail(newError("", "reply", r.ctx, err))
		return
	}

	r.response = &Response{StatusCode: status, Header: h.Folded(), RawHeader: raw, Interceptor: i}
	r.responseStarted = true
	if !r.emitLive(Event{Type: EventResponse, Response: r.response}) {
		if stream != nil {
			closeReader(stream)
		}
		return
	}

	delay := i.delayBody - r.engine.loop.Clock().Now().Sub(start)
	if stream != nil {
		r.after(delay, func() { r.pipe(context.Background(), stream) })
		return
	}
	r.after(delay, func() {
		if len(payload) > 0 && !r.emitLive(Event{Type: EventData, Data: payload}) {
			return
		}
		r.complete()
	})
}

// replyHeaders merges scope defaults, declared and computed headers.
func (r *Request) replyHeaders(i *Interceptor, payload []byte, streaming, isJSON bool, extra []string) ([]string, error) {
	spec := i.reply

	own := append([]string(nil), spec.header...)
	if spec.headerSource != nil {
		own = append(own, spec.headerSource(r.ctx)...)
	}
	own = append(own, extra...)
	if len(own)%2 != 0 {
		return nil, headers.ErrOddRawHeaders
	}

	declared := make(map[string]bool)
	for k := 0; k < len(own); k += 2 {
		declared[strings.ToLower(own[k])] = true
	}
	for _, hf := range spec.headerFns {
		declared[strings.ToLower(hf.name)] = true
	}

	var raw []string
	defaults := i.scope.settings().defaultHeaders
	for k := 0; k+1 < len(defaults); k += 2 {
		if !declared[strings.ToLower(defaults[k])] {
			raw = append(raw, defaults[k], defaults[k+1])
		}
	}
	raw = append(raw, own...)
	for _, hf := range spec.headerFns {
		raw = append(raw, hf.name, hf.fn(r.ctx, payload))
	}

	has := func(name string) bool {
		for k := 0; k < len(raw); k += 2 {
			if strings.EqualFold(raw[k], name) {
				return true
			}
		}
		return false
	}
	if isJSON && !has("content-type") {
		raw = append(raw, "Content-Type", "application/json")
	}
	if spec.length && !streaming && !has("content-length") {
		raw = append(raw, "Content-Length", strconv.Itoa(len(payload)))
	}
	if spec.date && !has("date") {
		t := spec.dateValue
		if t.IsZero() {
			t = r.engine.loop.Clock().Now()
		}
		raw = append(raw, "Date", t.UTC().Format(http.TimeFormat))
	}
	return raw, nil
}

// encodeBody turns a declared body into bytes or a stream. Values other
// than strings, bytes and readers are JSON encoded.
func encodeBody(body any) (payload []byte, stream io.Reader, isJSON bool, err error) {
	switch t := body.(type) {
	case nil:
		return nil, nil, false, nil
	case string:
		return []byte(t), nil, false, nil
	case []byte:
		return t, nil, false, nil
	case json.RawMessage:
		return t, nil, true, nil
	case io.Reader:
		return nil, t, false, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, nil, false, fmt.Errorf("encode response body: %w", err)
	}
	return data, nil, true, nil
}

// pipe relays src as data events from a reader goroutine. The request's
// abort cancels ctx and closes src.
func (r *Request) pipe(parent context.Context, src io.Reader) {
	ctx, cancel := context.WithCancel(parent)
	r.cancels = append(r.cancels, cancel)
	stop := context.AfterFunc(ctx, func() { closeReader(src) })

	go func() {
		defer stop()
		defer closeReader(src)
		buf := make([]byte, streamChunkSize)
		for {
			n, err := src.Read(buf)
			if ctx.Err() != nil {
				return
			}
			if n > 0 {
				chunk := bytes.Clone(buf[:n])
				r.post(func() { r.emitLive(Event{Type: EventData, Data: chunk}) })
			}
			if err == io.EOF {
				r.post(r.complete)
				return
			}
			if err != nil {
				r.post(func() { r.fail(err) })
				return
			}
		}
	}()
}

func closeReader(src io.Reader) {
	if c, ok := src.(io.Closer); ok {
		_ = c.Close()
	}
}
