package definition

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON string

// Schema returns the embedded JSON Schema text.
func Schema() string { return schemaJSON }

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("definition.json", strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	return compiler.Compile("definition.json")
})

// SchemaError lists every schema violation of a document.
type SchemaError struct {
	Violations []Violation
}

// Violation is one schema failure at an instance location.
type Violation struct {
	// Location is a JSON pointer into the document, "" for the root.
	Location string
	Message  string
}

func (e *SchemaError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		loc := v.Location
		if loc == "" {
			loc = "/"
		}
		parts[i] = loc + ": " + v.Message
	}
	return "schema validation failed: " + strings.Join(parts, "; ")
}

// ValidateDocument validates a decoded JSON document (as produced by
// encoding/json into an any) against the schema.
func ValidateDocument(doc any) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}
	err = schema.Validate(doc)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	out := &SchemaError{}
	collectViolations(verr, out)
	return out
}

// collectViolations flattens the leaves of the validation error tree.
func collectViolations(err *jsonschema.ValidationError, out *SchemaError) {
	if len(err.Causes) == 0 {
		out.Violations = append(out.Violations, Violation{Location: err.InstanceLocation, Message: err.Message})
		return
	}
	for _, cause := range err.Causes {
		collectViolations(cause, out)
	}
}
