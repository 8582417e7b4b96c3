package requestlog

import "time"

// MaxBodySize is the number of body bytes kept on an Entry.
const MaxBodySize = 10 * 1024

// Outcome describes how the engine settled a request.
type Outcome string

// Outcomes.
const (
	OutcomeMatched     Outcome = "matched"
	OutcomePassthrough Outcome = "passthrough"
	OutcomeNoMatch     Outcome = "no_match"
	OutcomeAborted     Outcome = "aborted"
	OutcomeError       Outcome = "error"
)

// Entry captures the details of one intercepted request and its outcome.
type Entry struct {
	// ID is the request identifier assigned by the engine.
	ID string `json:"id"`

	// Timestamp is when the request was created.
	Timestamp time.Time `json:"timestamp"`

	// Method is the upper-cased request method.
	Method string `json:"method"`

	// Origin is the normalized target, e.g. "https://example.test:443".
	Origin string `json:"origin"`

	// Path is the request path without the query string.
	Path string `json:"path"`

	// QueryString is the raw query string.
	QueryString string `json:"queryString,omitempty"`

	// Headers are the request headers after folding.
	Headers map[string][]string `json:"headers,omitempty"`

	// Body is the request body (truncated to MaxBodySize).
	Body string `json:"body,omitempty"`

	// BodySize is the original body size in bytes.
	BodySize int `json:"bodySize"`

	// Outcome is how the request was settled.
	Outcome Outcome `json:"outcome"`

	// InterceptorID is the ID of the interceptor that answered, if any.
	InterceptorID string `json:"interceptorId,omitempty"`

	// ScopeID is the ID of the scope owning InterceptorID.
	ScopeID string `json:"scopeId,omitempty"`

	// ResponseStatus is the status code delivered, zero if none was.
	ResponseStatus int `json:"responseStatus,omitempty"`

	// DurationMs is the time between creation and settlement.
	DurationMs int64 `json:"durationMs"`

	// Error contains the error delivered to the caller, if any.
	Error string `json:"error,omitempty"`
}

// Truncate returns body cut to MaxBodySize and the original length.
func Truncate(body []byte) (string, int) {
	if len(body) > MaxBodySize {
		return string(body[:MaxBodySize]), len(body)
	}
	return string(body), len(body)
}
