// Package matching decides whether an intercepted request satisfies a
// declared expectation.
//
// Every check is a pure predicate. A failed parse (invalid JSON body,
// undecodable escape) is a non-match, never an error.
//
// Declared values are represented by the Matcher variants:
//
//   - StringMatch: exact comparison after the normalization of the attribute
//     being checked (percent-decoding for paths, line endings for bodies)
//   - RegexMatch: a compiled regular expression tested against the raw value
//   - FunctionMatch: a caller supplied predicate
//   - StructuredMatch: a nested map/slice value compared structurally
//   - JSONPathMatch: JSONPath conditions evaluated against a JSON body
//   - AnyMatch: accepts anything
//
// The checks are:
//
//   - Target: protocol, hostname (case-insensitive, IDNA normalized) and port,
//     or a host pattern (regex, glob or predicate)
//   - Method: case-insensitive equality
//   - Path and query: see MatchPath and MatchQuery
//   - Headers: required (MatchHeader) and forbidden (MatchBadHeaders)
//   - Body: MatchBody
package matching
