package container

import (
	"errors"
	"fmt"
)

// Error codes reported by the container.
const (
	CodeNotBound     = "NOT_BOUND"
	CodeTypeMismatch = "TYPE_MISMATCH"
	CodeCircular     = "CIRCULAR"
	CodeConstruction = "CONSTRUCTION"
)

// Error describes a failed resolution.
type Error struct {
	Code  string
	Alias string
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("container: %s %q", e.Code, e.Alias)
	}
	return fmt.Sprintf("container: %s %q: %v", e.Code, e.Alias, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code so callers can test with errors.Is(err, &Error{Code: ...}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Alias == "" || t.Alias == e.Alias)
}

// IsNotBound reports whether the outermost container error in err is a not-bound failure.
func IsNotBound(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Code == CodeNotBound
}
