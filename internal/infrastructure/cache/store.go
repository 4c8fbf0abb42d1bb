// Package cache provides named key/value stores with TTL for application code.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Store keeps encoded values under string keys.
type Store interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Has(ctx context.Context, key string) (bool, error)
	Flush(ctx context.Context) error
	Close() error
}

// Get decodes the JSON value stored under key into dst.
func Get(ctx context.Context, s Store, key string, dst any) error {
	raw, err := s.GetBytes(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return nil
}

// Set stores value JSON encoded under key. A zero ttl keeps the value until deleted.
func Set(ctx context.Context, s Store, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	return s.SetBytes(ctx, key, raw, ttl)
}

// Remember returns the cached value of key, computing and storing it with fn on a miss.
func Remember[T any](ctx context.Context, s Store, key string, ttl time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var value T
	err := Get(ctx, s, key, &value)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, ErrMiss) {
		return value, err
	}

	value, err = fn(ctx)
	if err != nil {
		return value, err
	}
	if err := Set(ctx, s, key, value, ttl); err != nil {
		return value, err
	}
	return value, nil
}
