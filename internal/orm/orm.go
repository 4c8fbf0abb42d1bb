// Package orm provides typed repositories, selectors and explicitly loaded relations
// on top of gorm.
package orm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/helixframework/helix/internal/infrastructure/persistence"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// ErrNotPersisted is returned when an operation needs a record with a primary key
var ErrNotPersisted = errors.New("record has no primary key")

// ORM hands out gorm sessions for the configured database connections
type ORM struct {
	databases *persistence.Provider
}

// New creates an ORM over the database provider
func New(databases *persistence.Provider) *ORM {
	return &ORM{databases: databases}
}

// DB returns a gorm session for the named connection, the default one when name is empty
func (o *ORM) DB(name string) (*gorm.DB, error) {
	db, err := o.databases.Database(name)
	if err != nil {
		return nil, err
	}
	return db.DB, nil
}

// Repo builds a repository of T on the named connection
func Repo[T any](o *ORM, connection string) (*Repository[T], error) {
	db, err := o.DB(connection)
	if err != nil {
		return nil, err
	}
	return NewRepository[T](db), nil
}

// Validator is implemented by records that check themselves before being saved.
// The returned map holds a message per invalid field.
type Validator interface {
	Validate() map[string]string
}

// ValidationError lists invalid fields of a record
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// parseSchema returns the gorm schema of model using db's naming strategy and cache
func parseSchema(db *gorm.DB, model any) (*schema.Schema, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return nil, fmt.Errorf("failed to parse schema of %T: %w", model, err)
	}
	return stmt.Schema, nil
}

func lookupField(s *schema.Schema, name string) (*schema.Field, error) {
	if f := s.LookUpField(name); f != nil {
		return f, nil
	}
	return nil, fmt.Errorf("%s has no field %q", s.Name, name)
}

func primaryField(s *schema.Schema) (*schema.Field, error) {
	if s.PrioritizedPrimaryField != nil {
		return s.PrioritizedPrimaryField, nil
	}
	if len(s.PrimaryFields) > 0 {
		return s.PrimaryFields[0], nil
	}
	return nil, fmt.Errorf("%s has no primary key", s.Name)
}

func withContext(ctx context.Context, db *gorm.DB) *gorm.DB {
	if ctx == nil {
		return db
	}
	return db.WithContext(ctx)
}
