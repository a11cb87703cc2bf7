package schema

import (
	"errors"
	"fmt"
)

// ErrSchema is wrapped by every error describing a malformed schema.
var ErrSchema = errors.New("schema error")

// Error reports a malformed or ambiguous schema. Path is the dotted field
// path ("lines[].amount") or empty for document-level problems.
type Error struct {
	Path string
	Msg  string
}

func (e *Error) Error() string {
	if e.Path == "" {
		return "schema: " + e.Msg
	}
	return fmt.Sprintf("schema: field %q: %s", e.Path, e.Msg)
}

func (e *Error) Unwrap() error {
	return ErrSchema
}

func errorf(path, format string, args ...any) error {
	return &Error{Path: path, Msg: fmt.Sprintf(format, args...)}
}
