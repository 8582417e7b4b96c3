package headers

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by constructors and mutators.
var (
	ErrOddRawHeaders     = errors.New("raw headers must be provided as an array with an even number of items: [fieldName, value, ...]")
	ErrHeaderConflict    = errors.New("header field name conflict")
	ErrInvalidHeaderName = errors.New("invalid header field name")
)

// ConflictError reports two spellings of the same field name in one input map.
type ConflictError struct {
	Name  string
	Other string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("failed to convert header keys to lower case due to field name conflict: %s (%q and %q)",
		lower(e.Name), e.Name, e.Other)
}

// Is makes errors.Is(err, ErrHeaderConflict) hold.
func (e *ConflictError) Is(target error) bool {
	return target == ErrHeaderConflict
}
