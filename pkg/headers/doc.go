// Package headers normalizes HTTP header fields for interception.
//
// Field names are compared and stored case-insensitively while the original
// spelling and multiplicity of every value is kept, so the raw name/value
// sequence can always be reconstructed.
//
// Folding turns a raw sequence into the single-value-per-name view a client
// observes:
//
//   - set-cookie collects every value into a list
//   - singleton fields (content-type, content-length, host, ...) keep the
//     first value and drop duplicates
//   - cookie values are joined with "; "
//   - every other field is joined with ", "
package headers
