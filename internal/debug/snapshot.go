// Package debug captures unhandled errors as snapshots that can be logged, persisted
// and rendered by the active dispatcher.
package debug

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FatalError wraps a value recovered from a panic.
type FatalError struct {
	Value any
	Stack []byte
}

// NewFatalError captures the current stack for a recovered value.
func NewFatalError(value any) *FatalError {
	return &FatalError{Value: value, Stack: debug.Stack()}
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes a recovered error value.
func (e *FatalError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Snapshot describes one unhandled error.
type Snapshot struct {
	ID          string
	Type        string
	Message     string
	Err         error
	Stack       string
	Time        time.Time
	Environment string
}

// NewSnapshot captures err. The stack comes from a FatalError when err carries one,
// otherwise from the caller.
func NewSnapshot(err error, environment string) *Snapshot {
	s := &Snapshot{
		ID:          uuid.NewString(),
		Type:        errorType(err),
		Message:     err.Error(),
		Err:         err,
		Time:        time.Now(),
		Environment: environment,
	}

	var fatal *FatalError
	if errors.As(err, &fatal) && len(fatal.Stack) > 0 {
		s.Stack = string(fatal.Stack)
	} else {
		s.Stack = string(debug.Stack())
	}
	return s
}

// errorType names the most specific error in the chain that is not a plain wrapper.
func errorType(err error) string {
	var fatal *FatalError
	if errors.As(err, &fatal) {
		if inner, ok := fatal.Value.(error); ok {
			return fmt.Sprintf("%T", inner)
		}
		return "panic"
	}

	for {
		name := fmt.Sprintf("%T", err)
		if name != "*fmt.wrapError" && name != "*fmt.wrapErrors" {
			return name
		}
		next := errors.Unwrap(err)
		if next == nil {
			return name
		}
		err = next
	}
}

// Render formats the snapshot as plain text.
func (s *Snapshot) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n", s.Type, s.Message)
	fmt.Fprintf(&b, "snapshot: %s\n", s.ID)
	fmt.Fprintf(&b, "time: %s\n", s.Time.Format(time.RFC3339))
	if s.Environment != "" {
		fmt.Fprintf(&b, "environment: %s\n", s.Environment)
	}
	if s.Stack != "" {
		b.WriteString("\n")
		b.WriteString(s.Stack)
		if !strings.HasSuffix(s.Stack, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Describe returns the snapshot as a JSON friendly map. The stack is only included when
// withStack is set.
func (s *Snapshot) Describe(withStack bool) map[string]any {
	out := map[string]any{
		"id":      s.ID,
		"type":    s.Type,
		"message": s.Message,
		"time":    s.Time.Format(time.RFC3339),
	}
	if withStack {
		out["stack"] = strings.Split(strings.TrimRight(s.Stack, "\n"), "\n")
	}
	return out
}
