package definition

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// DefaultStatus is used when neither status nor reply is set.
const DefaultStatus = http.StatusOK

// Definition is one recorded or hand-written expectation.
type Definition struct {
	// Scope is the target origin, "proto://host[:port]".
	Scope string `json:"scope"`
	// Method defaults to GET.
	Method string `json:"method,omitempty"`
	// Path is the path, with an optional query matched exactly.
	Path string `json:"path"`
	// Body is the request body expectation: a string or a JSON value.
	Body any `json:"body,omitempty"`

	Status int `json:"status,omitempty"`
	// Reply is the legacy status field, a numeric string.
	Reply json.RawMessage `json:"reply,omitempty"`

	// Response is the response body: a string or a JSON value, or a hex
	// string when ResponseIsBinary.
	Response         any  `json:"response,omitempty"`
	ResponseIsBinary bool `json:"responseIsBinary,omitempty"`

	Headers    map[string]string `json:"headers,omitempty"`
	RawHeaders []string          `json:"rawHeaders,omitempty"`

	ReqHeaders map[string]string `json:"reqheaders,omitempty"`
	BadHeaders []string          `json:"badheaders,omitempty"`

	FilteringPath        *Filter `json:"filteringPath,omitempty"`
	FilteringRequestBody *Filter `json:"filteringRequestBody,omitempty"`

	Times    int     `json:"times,omitempty"`
	Persist  bool    `json:"persist,omitempty"`
	Optional bool    `json:"optional,omitempty"`
	Options  Options `json:"options,omitempty"`

	// Source names the file the definition came from.
	Source string `json:"-"`
}

// Options are scope options.
type Options struct {
	AllowUnmocked bool `json:"allowUnmocked,omitempty"`
}

// Filter is a regular expression rewrite applied before matching.
type Filter struct {
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement,omitempty"`
}

// Compile returns the filter's expression.
func (f *Filter) Compile() (*regexp.Regexp, error) {
	re, err := regexp.Compile(f.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid filter pattern %q: %w", f.Pattern, err)
	}
	return re, nil
}

// MethodOrDefault returns the upper-cased method, GET if unset.
func (d *Definition) MethodOrDefault() string {
	if d.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(d.Method)
}

// StatusCode returns Status, else the legacy Reply, else DefaultStatus.
func (d *Definition) StatusCode() (int, error) {
	if d.Status != 0 {
		return d.Status, nil
	}
	if len(d.Reply) == 0 {
		return DefaultStatus, nil
	}

	raw := string(d.Reply)
	var s string
	if err := json.Unmarshal(d.Reply, &s); err == nil {
		raw = s
	}
	code, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || code < 100 || code > 999 {
		return 0, fmt.Errorf("reply %s must be a numeric status", string(d.Reply))
	}
	return code, nil
}

// ResponseBody returns the response body: bytes for binary responses,
// the string or decoded JSON value otherwise.
func (d *Definition) ResponseBody() (any, error) {
	if !d.ResponseIsBinary {
		return d.Response, nil
	}
	s, ok := d.Response.(string)
	if !ok {
		return nil, errors.New("binary response must be a hex string")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("binary response: %w", err)
	}
	return b, nil
}

// RequestBody returns the body expectation, nil when there is none.
func (d *Definition) RequestBody() any {
	if s, ok := d.Body.(string); ok && s == "" {
		return nil
	}
	return d.Body
}

// ReplyHeaders returns RawHeaders followed by Headers sorted by name.
func (d *Definition) ReplyHeaders() []string {
	raw := append([]string(nil), d.RawHeaders...)
	names := make([]string, 0, len(d.Headers))
	for name := range d.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		raw = append(raw, name, d.Headers[name])
	}
	return raw
}

// Validate checks what the schema cannot: numeric reply, odd raw headers,
// filter expressions and binary bodies.
func (d *Definition) Validate() error {
	var errs []error
	if _, err := d.StatusCode(); err != nil {
		errs = append(errs, err)
	}
	if len(d.RawHeaders)%2 != 0 {
		errs = append(errs, errors.New("rawHeaders must hold name/value pairs"))
	}
	if _, err := d.ResponseBody(); err != nil {
		errs = append(errs, err)
	}
	for _, f := range []*Filter{d.FilteringPath, d.FilteringRequestBody} {
		if f == nil {
			continue
		}
		if _, err := f.Compile(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// String renders "METHOD scope+path".
func (d *Definition) String() string {
	return d.MethodOrDefault() + " " + strings.TrimSuffix(d.Scope, "/") + d.Path
}
