package store

import (
	"errors"
	"fmt"
	"strings"
)

// NotFoundError reports an identifier the store cannot resolve. Kind names
// what was looked up ("package" or "path") so the CLI can tell a mistyped
// package name apart from a path that is already gone.
type NotFoundError struct {
	Kind string
	Name string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// CommandError wraps a store control command failure with the stderr it
// produced, which is usually the only diagnostic the store gives.
type CommandError struct {
	Cmd    string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	if msg := strings.TrimSpace(e.Stderr); msg != "" {
		return fmt.Sprintf("%s: %v: %s", e.Cmd, e.Err, msg)
	}
	return fmt.Sprintf("%s: %v", e.Cmd, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
