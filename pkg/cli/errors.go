package cli

import "errors"

// Common CLI errors
var (
	ErrNoDefinitions  = errors.New("no definition files given: pass glob patterns or set definitions in the config file")
	ErrNoFilesMatched = errors.New("no definition files matched")
)

// ExitError ends the command with Code. Err, when set, is printed to
// stderr; a nil Err means the command already reported the failure.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return "exit status"
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }
