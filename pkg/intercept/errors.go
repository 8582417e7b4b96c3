package intercept

import (
	"errors"
	"fmt"
)

// Error codes carried by *Error.
const (
	CodeNoMatch            = "ERR_NETMOCK_NO_MATCH"
	CodeNetConnectDenied   = "ENETUNREACH"
	CodeConnReset          = "ECONNRESET"
	CodeWriteAfterEnd      = "ERR_STREAM_WRITE_AFTER_END"
	CodeStreamDestroyed    = "ERR_STREAM_DESTROYED"
	CodeHeadersSent        = "ERR_HTTP_HEADERS_SENT"
	CodeReplyFunctionPanic = "ERR_NETMOCK_REPLY_PANIC"
)

// Sentinel errors matched by *Error through errors.Is.
var (
	ErrNoMatch              = errors.New("no match for request")
	ErrNetConnectNotAllowed = errors.New("net connect not allowed")
	ErrConnReset            = errors.New("socket hang up")
	ErrWriteAfterEnd        = errors.New("write after end")
	ErrStreamDestroyed      = errors.New("cannot write after the request was aborted")
	ErrHeadersSent          = errors.New("cannot set headers after the body has ended")

	// ErrAlreadyReplied is reported when a reply is declared twice on one interceptor.
	ErrAlreadyReplied = errors.New("interceptor already has a reply")
)

// Error is the error delivered through a request's error event, or
// returned by the request method that caused it.
type Error struct {
	// Code is a stable identifier such as CodeNoMatch.
	Code string
	// Op is the operation that failed: "match", "connect", "write", "reply".
	Op     string
	Method string
	URL    string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Err.Error()
	switch e.Code {
	case CodeNoMatch:
		return fmt.Sprintf("netmock: %s %s %s", msg, e.Method, e.URL)
	case CodeNetConnectDenied:
		return fmt.Sprintf("netmock: %s (%s %s)", msg, e.Method, e.URL)
	}
	if e.Code != "" {
		return fmt.Sprintf("netmock: %s: %s", e.Code, msg)
	}
	return "netmock: " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf returns the Code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func newError(code, op string, r *RequestContext, err error) *Error {
	e := &Error{Code: code, Op: op, Err: err}
	if r != nil {
		e.Method = r.Method
		e.URL = r.URL()
	}
	return e
}
