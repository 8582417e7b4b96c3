package matching

import (
	"fmt"
	"reflect"
	"regexp"
)

// Kind identifies a Matcher variant.
type Kind int

// Matcher kinds.
const (
	KindString Kind = iota + 1
	KindRegex
	KindFunction
	KindStructured
	KindJSONPath
	KindAny
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindRegex:
		return "regex"
	case KindFunction:
		return "function"
	case KindStructured:
		return "structured"
	case KindJSONPath:
		return "jsonpath"
	case KindAny:
		return "any"
	default:
		return "unknown"
	}
}

// Matcher is a declared expectation for one request attribute.
type Matcher interface {
	Kind() Kind
	// String describes the matcher for pending-mock listings.
	String() string
}

// StringMatch compares against a literal value.
type StringMatch struct {
	Value string
}

// RegexMatch tests a regular expression.
type RegexMatch struct {
	Re *regexp.Regexp
}

// FunctionMatch calls a predicate. The argument type depends on the
// attribute: the decoded body for bodies, the parsed query for queries, the
// header value (or nil when absent) for headers, the path for paths.
type FunctionMatch struct {
	Fn func(v any) bool
}

// StructuredMatch compares nested maps and slices. Exact rejects keys in the
// actual value that the expectation does not name.
type StructuredMatch struct {
	Value any
	Exact bool
}

// JSONPathMatch evaluates JSONPath expressions against a JSON body. A value
// of {"exists": bool} checks presence only.
type JSONPathMatch struct {
	Conditions map[string]any
}

// AnyMatch accepts every value.
type AnyMatch struct{}

func (StringMatch) Kind() Kind     { return KindString }
func (RegexMatch) Kind() Kind      { return KindRegex }
func (FunctionMatch) Kind() Kind   { return KindFunction }
func (StructuredMatch) Kind() Kind { return KindStructured }
func (JSONPathMatch) Kind() Kind   { return KindJSONPath }
func (AnyMatch) Kind() Kind        { return KindAny }

func (m StringMatch) String() string { return m.Value }
func (m RegexMatch) String() string  { return "/" + m.Re.String() + "/" }
func (FunctionMatch) String() string { return "<function>" }
func (m StructuredMatch) String() string {
	return fmt.Sprintf("%v", m.Value)
}
func (m JSONPathMatch) String() string { return fmt.Sprintf("jsonpath%v", m.Conditions) }
func (AnyMatch) String() string        { return "*" }

// ValueMatcher converts a declared scalar expectation (header value, path)
// into a Matcher. Accepted: string, *regexp.Regexp, func(string) bool,
// func(any) bool, fmt.Stringer, numbers, booleans and Matcher values.
func ValueMatcher(v any) (Matcher, error) {
	switch t := v.(type) {
	case nil:
		return nil, fmt.Errorf("nil matcher value")
	case Matcher:
		return t, nil
	case string:
		return StringMatch{Value: t}, nil
	case *regexp.Regexp:
		if t == nil {
			return nil, fmt.Errorf("nil regular expression")
		}
		return RegexMatch{Re: t}, nil
	case func(string) bool:
		return FunctionMatch{Fn: func(v any) bool {
			s, _ := v.(string)
			return t(s)
		}}, nil
	case func(any) bool:
		return FunctionMatch{Fn: t}, nil
	case fmt.Stringer:
		return StringMatch{Value: t.String()}, nil
	}
	if s, ok := formatScalar(v); ok {
		return StringMatch{Value: s}, nil
	}
	return nil, fmt.Errorf("unsupported matcher value of type %T", v)
}

// BodyMatcher converts a declared body expectation into a Matcher.
// Strings and []byte become StringMatch, regular expressions RegexMatch,
// predicates FunctionMatch, and maps, slices and structs StructuredMatch.
func BodyMatcher(v any) (Matcher, error) {
	switch t := v.(type) {
	case nil:
		return nil, fmt.Errorf("nil body matcher")
	case Matcher:
		return t, nil
	case string:
		return StringMatch{Value: t}, nil
	case []byte:
		return StringMatch{Value: string(t)}, nil
	case *regexp.Regexp:
		if t == nil {
			return nil, fmt.Errorf("nil regular expression")
		}
		return RegexMatch{Re: t}, nil
	case func(any) bool:
		return FunctionMatch{Fn: t}, nil
	case func(string) bool:
		return FunctionMatch{Fn: func(v any) bool {
			s, ok := v.(string)
			return ok && t(s)
		}}, nil
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Pointer:
		norm, err := normalizeExpected(v)
		if err != nil {
			return nil, fmt.Errorf("invalid body expectation: %w", err)
		}
		return StructuredMatch{Value: norm, Exact: true}, nil
	}
	return nil, fmt.Errorf("unsupported body matcher of type %T", v)
}
