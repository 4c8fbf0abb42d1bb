package orm

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// Repository reads and writes records of type T
type Repository[T any] struct {
	db *gorm.DB
}

// NewRepository creates a repository of T over db
func NewRepository[T any](db *gorm.DB) *Repository[T] {
	return &Repository[T]{db: db}
}

// DB returns the underlying gorm handle
func (r *Repository[T]) DB() *gorm.DB {
	return r.db
}

func (r *Repository[T]) schema() (*schema.Schema, error) {
	return parseSchema(r.db, new(T))
}

// Find starts a selector, optionally filtered by gorm inline conditions
func (r *Repository[T]) Find(conds ...any) *Selector[T] {
	s := newSelector[T](r.db)
	if len(conds) > 0 {
		return s.Where(conds[0], conds[1:]...)
	}
	return s
}

// FindByPK loads a record by primary key. A missing record is returned as nil without error.
func (r *Repository[T]) FindByPK(ctx context.Context, id any) (*T, error) {
	s, err := r.schema()
	if err != nil {
		return nil, err
	}
	pk, err := primaryField(s)
	if err != nil {
		return nil, err
	}

	var record T
	err = withContext(ctx, r.db).
		Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: pk.DBName}, Value: id}).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Create builds a new, unsaved record from field values keyed by field or column name
func (r *Repository[T]) Create(fields map[string]any) (*T, error) {
	s, err := r.schema()
	if err != nil {
		return nil, err
	}

	record := new(T)
	rv := reflect.ValueOf(record).Elem()
	for name, value := range fields {
		f, err := lookupField(s, name)
		if err != nil {
			return nil, err
		}
		if err := f.Set(context.Background(), rv, value); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", name, err)
		}
	}
	return record, nil
}

// Assign sets the fields of record that exist on its schema. Unknown keys and the
// primary key are skipped; values that cannot be converted are reported as a
// ValidationError.
func (r *Repository[T]) Assign(record *T, fields map[string]any) error {
	s, err := r.schema()
	if err != nil {
		return err
	}

	rv := reflect.ValueOf(record).Elem()
	invalid := make(map[string]string)
	for name, value := range fields {
		f := s.LookUpField(name)
		if f == nil || f.PrimaryKey || f.DBName == "" {
			continue
		}
		if err := f.Set(context.Background(), rv, value); err != nil {
			invalid[name] = "Invalid value"
		}
	}
	if len(invalid) > 0 {
		return &ValidationError{Fields: invalid}
	}
	return nil
}

// PrimaryKey returns the primary key value of record
func (r *Repository[T]) PrimaryKey(record *T) (any, error) {
	s, err := r.schema()
	if err != nil {
		return nil, err
	}
	pk, err := primaryField(s)
	if err != nil {
		return nil, err
	}
	value, _ := pk.ValueOf(context.Background(), reflect.ValueOf(record).Elem())
	return value, nil
}

// Save validates and inserts or updates record
func (r *Repository[T]) Save(ctx context.Context, record *T) error {
	if v, ok := any(record).(Validator); ok {
		if fields := v.Validate(); len(fields) > 0 {
			return &ValidationError{Fields: fields}
		}
	}
	return withContext(ctx, r.db).Save(record).Error
}

// Delete removes record. Records without a primary key are rejected.
func (r *Repository[T]) Delete(ctx context.Context, record *T) error {
	loaded, err := r.IsLoaded(record)
	if err != nil {
		return err
	}
	if !loaded {
		return ErrNotPersisted
	}
	return withContext(ctx, r.db).Delete(record).Error
}

// Count returns the number of records matching the inline conditions
func (r *Repository[T]) Count(ctx context.Context, conds ...any) (int64, error) {
	return r.Find(conds...).Count(ctx)
}

// IsLoaded reports whether record carries a non-zero primary key
func (r *Repository[T]) IsLoaded(record *T) (bool, error) {
	s, err := r.schema()
	if err != nil {
		return false, err
	}
	return isLoaded(s, record)
}

func isLoaded(s *schema.Schema, record any) (bool, error) {
	pk, err := primaryField(s)
	if err != nil {
		return false, err
	}
	_, zero := pk.ValueOf(context.Background(), reflect.Indirect(reflect.ValueOf(record)))
	return !zero, nil
}
