package orm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Selector builds a query over T. Every method returns a new selector.
type Selector[T any] struct {
	db  *gorm.DB
	err error
}

func newSelector[T any](db *gorm.DB) *Selector[T] {
	return &Selector[T]{db: db.Model(new(T)).Session(&gorm.Session{})}
}

// with wraps db in a fresh session so later chain calls clone its statement
func (s *Selector[T]) with(db *gorm.DB) *Selector[T] {
	return &Selector[T]{db: db.Session(&gorm.Session{}), err: s.err}
}

// Where adds a condition using gorm's condition syntax
func (s *Selector[T]) Where(query any, args ...any) *Selector[T] {
	return s.with(s.db.Where(query, args...))
}

// OrderBy sorts by a column of T. The direction defaults to descending unless it is "asc".
func (s *Selector[T]) OrderBy(column, direction string) *Selector[T] {
	sch, err := parseSchema(s.db, new(T))
	if err == nil {
		_, err = lookupField(sch, column)
	}
	if err != nil {
		next := s.with(s.db)
		next.err = errors.Join(s.err, fmt.Errorf("invalid sort column: %w", err))
		return next
	}

	f := sch.LookUpField(column)
	return s.with(s.db.Order(clause.OrderByColumn{
		Column: clause.Column{Table: clause.CurrentTable, Name: f.DBName},
		Desc:   sortDescending(direction),
	}))
}

func sortDescending(direction string) bool {
	return !strings.EqualFold(strings.TrimSpace(direction), "asc")
}

// Limit caps the number of returned records
func (s *Selector[T]) Limit(n int) *Selector[T] {
	return s.with(s.db.Limit(n))
}

// Offset skips the first n records
func (s *Selector[T]) Offset(n int) *Selector[T] {
	return s.with(s.db.Offset(n))
}

// All returns every matching record
func (s *Selector[T]) All(ctx context.Context) ([]T, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]T, 0)
	if err := withContext(ctx, s.db).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// First returns the first matching record or nil when nothing matches
func (s *Selector[T]) First(ctx context.Context) (*T, error) {
	if s.err != nil {
		return nil, s.err
	}
	var record T
	res := withContext(ctx, s.db).Limit(1).Find(&record)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &record, nil
}

// Count counts matching records ignoring limit and offset
func (s *Selector[T]) Count(ctx context.Context) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	var total int64
	if err := withContext(ctx, s.db).Limit(-1).Offset(-1).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// Paginate returns page (1-based) of size records
func (s *Selector[T]) Paginate(ctx context.Context, page, size int) (Page[T], error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}

	total, err := s.Count(ctx)
	if err != nil {
		return Page[T]{}, err
	}
	items, err := s.Limit(size).Offset((page - 1) * size).All(ctx)
	if err != nil {
		return Page[T]{}, err
	}
	return newPage(items, page, size, total), nil
}
