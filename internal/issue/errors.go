package issue

import (
	"errors"
	"fmt"
)

var errTitleRequired = errors.New("title is required")

// Kind enumerates the typed failures an Issue Client operation can
// produce.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindInvalid    Kind = "invalid_input"
	KindToolError  Kind = "tool_error"
	KindParseError Kind = "parse_error"
)

// Error is the typed failure returned by every Client operation.
type Error struct {
	Kind   Kind
	Op     string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("bd %s: %s (%s)", e.Op, e.Stderr, e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("bd %s: %v (%s)", e.Op, e.Err, e.Kind)
	}
	return fmt.Sprintf("bd %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}
