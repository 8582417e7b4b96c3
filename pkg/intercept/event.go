package intercept

import (
	"github.com/getmockd/netmock/pkg/headers"
)

// EventType names an event emitted by a Request.
type EventType string

// Events, in the order a successful replayed request emits them.
const (
	EventSocket        EventType = "socket"
	EventConnect       EventType = "connect"
	EventSecureConnect EventType = "secureConnect"
	EventFinish        EventType = "finish"
	EventResponse      EventType = "response"
	EventData          EventType = "data"
	EventEnd           EventType = "end"
	EventAbort         EventType = "abort"
	EventError         EventType = "error"
	EventClose         EventType = "close"
)

// Event is delivered to Request subscribers on the loop goroutine.
type Event struct {
	Type EventType
	// Response is set on EventResponse.
	Response *Response
	// Data is set on EventData. It must not be retained after the callback.
	Data []byte
	// Err is set on EventError.
	Err error
}

// Response describes the response head delivered on EventResponse.
type Response struct {
	StatusCode int
	// Header is the folded view: one entry per lower-cased name.
	Header headers.Folded
	// RawHeader keeps the original name/value pairs in order.
	RawHeader []string
	// Interceptor is the interceptor that produced the response, nil when
	// the request passed through to the network.
	Interceptor *Interceptor
}
