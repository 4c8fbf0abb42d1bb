package orm

import (
	"context"
	"fmt"
	"reflect"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// Keys defines how a relation joins parent and child: the parent's InnerKey column
// matches the child's OuterKey column.
type Keys struct {
	InnerKey string
	OuterKey string
}

// Loaded is the result of loading a single-record relation
type Loaded[C any] struct {
	Value *C
	Found bool
}

// relation holds the shared key resolution of every relation kind
type relation[P, C any] struct {
	db   *gorm.DB
	keys Keys
}

type resolvedKeys struct {
	parent *schema.Schema
	inner  *schema.Field
	outer  *schema.Field
}

func (r relation[P, C]) resolve() (*resolvedKeys, error) {
	parent, err := parseSchema(r.db, new(P))
	if err != nil {
		return nil, err
	}
	child, err := parseSchema(r.db, new(C))
	if err != nil {
		return nil, err
	}
	inner, err := lookupField(parent, r.keys.InnerKey)
	if err != nil {
		return nil, err
	}
	outer, err := lookupField(child, r.keys.OuterKey)
	if err != nil {
		return nil, err
	}
	return &resolvedKeys{parent: parent, inner: inner, outer: outer}, nil
}

// innerValue returns the parent's join value. ok is false when the parent has not been
// loaded or the join value is zero, in which case nothing can be related to it.
func innerValue[P any](k *resolvedKeys, parent *P) (value any, ok bool, err error) {
	if parent == nil {
		return nil, false, nil
	}
	loaded, err := isLoaded(k.parent, parent)
	if err != nil || !loaded {
		return nil, false, err
	}
	value, zero := k.inner.ValueOf(context.Background(), reflect.ValueOf(parent).Elem())
	if zero {
		return nil, false, nil
	}
	return value, true, nil
}

func outerValue[C any](k *resolvedKeys, child *C) any {
	value, _ := k.outer.ValueOf(context.Background(), reflect.ValueOf(child).Elem())
	return value
}

func (k *resolvedKeys) column() clause.Column {
	return clause.Column{Table: clause.CurrentTable, Name: k.outer.DBName}
}

// fetch loads every child whose outer key is in values
func (r relation[P, C]) fetch(ctx context.Context, k *resolvedKeys, values []any) ([]C, error) {
	out := make([]C, 0)
	if len(values) == 0 {
		return out, nil
	}

	query := withContext(ctx, r.db).Model(new(C))
	if len(values) == 1 {
		query = query.Where(clause.Eq{Column: k.column(), Value: values[0]})
	} else {
		query = query.Where(clause.IN{Column: k.column(), Values: values})
	}
	if err := query.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to load relation: %w", err)
	}
	return out, nil
}

// keysOf collects the distinct join values of parents, keeping one entry per parent
func (r relation[P, C]) keysOf(k *resolvedKeys, parents []P) ([]string, []any, error) {
	perParent := make([]string, len(parents))
	seen := make(map[string]bool)
	var values []any
	for i := range parents {
		value, ok, err := innerValue(k, &parents[i])
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			continue
		}
		key := joinKey(value)
		perParent[i] = key
		if !seen[key] {
			seen[key] = true
			values = append(values, value)
		}
	}
	return perParent, values, nil
}

// joinKey normalises key values so that, for example, int64 and uint columns compare equal
func joinKey(v any) string {
	return fmt.Sprint(v)
}

// HasOne relates a parent to at most one child holding the parent's key
type HasOne[P, C any] struct {
	relation[P, C]
}

// NewHasOne defines a has-one relation. Empty keys default to the parent's id and
// the child's <parent>_id column.
func NewHasOne[P, C any](db *gorm.DB, keys Keys) (*HasOne[P, C], error) {
	keys, err := defaultKeys[P](db, keys, false)
	if err != nil {
		return nil, err
	}
	return &HasOne[P, C]{relation[P, C]{db: db, keys: keys}}, nil
}

// Load fetches the child of parent
func (r *HasOne[P, C]) Load(ctx context.Context, parent *P) (Loaded[C], error) {
	return loadOne(ctx, r.relation, parent)
}

// LoadMany fetches the children of every parent with one query. The result is aligned
// with parents.
func (r *HasOne[P, C]) LoadMany(ctx context.Context, parents []P) ([]Loaded[C], error) {
	return loadOneBatch(ctx, r.relation, parents)
}

// Keys returns the join columns
func (r *HasOne[P, C]) Keys() Keys { return r.keys }

// BelongsTo relates a child to the parent record its key points at
type BelongsTo[P, C any] struct {
	relation[P, C]
}

// NewBelongsTo defines a belongs-to relation where P holds the key of C. Empty keys
// default to P's <c>_id column and C's id.
func NewBelongsTo[P, C any](db *gorm.DB, keys Keys) (*BelongsTo[P, C], error) {
	keys, err := defaultKeys[C](db, keys, true)
	if err != nil {
		return nil, err
	}
	return &BelongsTo[P, C]{relation[P, C]{db: db, keys: keys}}, nil
}

// Load fetches the record parent belongs to
func (r *BelongsTo[P, C]) Load(ctx context.Context, parent *P) (Loaded[C], error) {
	return loadOne(ctx, r.relation, parent)
}

// LoadMany resolves the related record of every parent with one query
func (r *BelongsTo[P, C]) LoadMany(ctx context.Context, parents []P) ([]Loaded[C], error) {
	return loadOneBatch(ctx, r.relation, parents)
}

// Keys returns the join columns
func (r *BelongsTo[P, C]) Keys() Keys { return r.keys }

// HasMany relates a parent to every child holding the parent's key
type HasMany[P, C any] struct {
	relation[P, C]
}

// NewHasMany defines a has-many relation with the same key defaults as NewHasOne
func NewHasMany[P, C any](db *gorm.DB, keys Keys) (*HasMany[P, C], error) {
	keys, err := defaultKeys[P](db, keys, false)
	if err != nil {
		return nil, err
	}
	return &HasMany[P, C]{relation[P, C]{db: db, keys: keys}}, nil
}

// Load fetches every child of parent
func (r *HasMany[P, C]) Load(ctx context.Context, parent *P) ([]C, error) {
	k, err := r.resolve()
	if err != nil {
		return nil, err
	}
	value, ok, err := innerValue(k, parent)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []C{}, nil
	}
	return r.fetch(ctx, k, []any{value})
}

// LoadMany fetches the children of every parent with one query, aligned with parents
func (r *HasMany[P, C]) LoadMany(ctx context.Context, parents []P) ([][]C, error) {
	k, err := r.resolve()
	if err != nil {
		return nil, err
	}
	perParent, values, err := r.keysOf(k, parents)
	if err != nil {
		return nil, err
	}
	children, err := r.fetch(ctx, k, values)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]C)
	for i := range children {
		key := joinKey(outerValue(k, &children[i]))
		grouped[key] = append(grouped[key], children[i])
	}

	out := make([][]C, len(parents))
	for i, key := range perParent {
		out[i] = append([]C{}, grouped[key]...)
	}
	return out, nil
}

// Keys returns the join columns
func (r *HasMany[P, C]) Keys() Keys { return r.keys }

func loadOne[P, C any](ctx context.Context, r relation[P, C], parent *P) (Loaded[C], error) {
	k, err := r.resolve()
	if err != nil {
		return Loaded[C]{}, err
	}
	value, ok, err := innerValue(k, parent)
	if err != nil || !ok {
		return Loaded[C]{}, err
	}

	var child C
	res := withContext(ctx, r.db).
		Where(clause.Eq{Column: k.column(), Value: value}).
		Limit(1).
		Find(&child)
	if res.Error != nil {
		return Loaded[C]{}, fmt.Errorf("failed to load relation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return Loaded[C]{}, nil
	}
	return Loaded[C]{Value: &child, Found: true}, nil
}

func loadOneBatch[P, C any](ctx context.Context, r relation[P, C], parents []P) ([]Loaded[C], error) {
	k, err := r.resolve()
	if err != nil {
		return nil, err
	}
	perParent, values, err := r.keysOf(k, parents)
	if err != nil {
		return nil, err
	}
	children, err := r.fetch(ctx, k, values)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]*C, len(children))
	for i := range children {
		key := joinKey(outerValue(k, &children[i]))
		if _, exists := byKey[key]; !exists {
			byKey[key] = &children[i]
		}
	}

	out := make([]Loaded[C], len(parents))
	for i, key := range perParent {
		if key == "" {
			continue
		}
		if child, ok := byKey[key]; ok {
			out[i] = Loaded[C]{Value: child, Found: true}
		}
	}
	return out, nil
}

// defaultKeys fills missing keys from owner's primary key and table name. For
// belongs-to relations the owner is the related record and the keys are swapped.
func defaultKeys[O any](db *gorm.DB, keys Keys, belongsTo bool) (Keys, error) {
	if keys.InnerKey != "" && keys.OuterKey != "" {
		return keys, nil
	}
	owner, err := parseSchema(db, new(O))
	if err != nil {
		return keys, err
	}
	pk, err := primaryField(owner)
	if err != nil {
		return keys, err
	}
	foreign := db.NamingStrategy.ColumnName("", owner.Name) + "_" + pk.DBName

	local, remote := pk.DBName, foreign
	if belongsTo {
		local, remote = foreign, pk.DBName
	}
	if keys.InnerKey == "" {
		keys.InnerKey = local
	}
	if keys.OuterKey == "" {
		keys.OuterKey = remote
	}
	return keys, nil
}
