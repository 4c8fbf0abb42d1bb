// Package memory stores runtime data such as cached configuration and compiled metadata.
package memory

import (
	"errors"
	"strings"
)

// ErrNotFound is returned by LoadData when nothing is stored under a name.
var ErrNotFound = errors.New("memory: data not found")

// Memory persists small, JSON-encodable runtime values.
//
// An empty location stores data in the application cache scoped by application id;
// a non-empty location stores data verbatim under that directory.
type Memory interface {
	LoadData(name, location string) (any, error)
	LoadInto(name, location string, dst any) error
	SaveData(name string, data any, location string) error
	Filename(name, location string) string
}

// escapeName flattens path separators so nested names map onto a single file or key.
func escapeName(name string) string {
	return strings.NewReplacer("/", "-", "\\", "-").Replace(name)
}
