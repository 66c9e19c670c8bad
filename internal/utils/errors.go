package utils

import "fmt"

// ValidationError reports malformed input reaching the record builder. It
// signals a contract violation by the caller, not a user mistake.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// BackendFailure reports that the completion backend was unreachable or
// errored. Callers recover by substituting a placeholder answer.
type BackendFailure struct {
	Backend string
	Reason  string
	Err     error
}

func (e *BackendFailure) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("backend %s: %s", e.Backend, e.Reason)
	}
	return fmt.Sprintf("backend %s: %s: %v", e.Backend, e.Reason, e.Err)
}

func (e *BackendFailure) Unwrap() error {
	return e.Err
}

// IOFailure reports that an incident record could not be persisted.
type IOFailure struct {
	Op   string
	Path string
	Err  error
}

func (e *IOFailure) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: io failure", e.Op, e.Path)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOFailure) Unwrap() error {
	return e.Err
}

// NewIOFailure constructs an IOFailure.
func NewIOFailure(op, path string, err error) error {
	return &IOFailure{Op: op, Path: path, Err: err}
}
