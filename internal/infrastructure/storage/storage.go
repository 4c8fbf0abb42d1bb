// Package storage provides named buckets for application files on local disk or S3.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
)

// ErrObjectNotFound is returned when a key does not exist in a bucket.
var ErrObjectNotFound = errors.New("storage: object not found")

// Bucket stores objects under slash separated keys.
type Bucket interface {
	Name() string
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	Size(ctx context.Context, key string) (int64, error)
	URL(ctx context.Context, key string) (string, error)
}

func validateKey(key string) (string, error) {
	key = strings.TrimLeft(strings.ReplaceAll(key, "\\", "/"), "/")
	if key == "" {
		return "", errors.New("storage key is required")
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", errors.New("storage key must not contain '..'")
		}
	}
	return key, nil
}

func joinURL(base, key string) string {
	if base == "" {
		return "/" + key
	}
	return strings.TrimSuffix(base, "/") + "/" + key
}
