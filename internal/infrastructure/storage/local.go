package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"

	"github.com/helixframework/helix/internal/infrastructure/files"
)

// LocalBucket keeps objects in a directory through the file manager.
type LocalBucket struct {
	name      string
	files     *files.Manager
	directory string
	publicURL string
}

// NewLocalBucket creates a bucket rooted at directory. Object URLs are publicURL/key.
func NewLocalBucket(name string, fm *files.Manager, directory, publicURL string) *LocalBucket {
	return &LocalBucket{name: name, files: fm, directory: directory, publicURL: publicURL}
}

// Name implements Bucket.
func (b *LocalBucket) Name() string { return b.name }

func (b *LocalBucket) filename(key string) (string, error) {
	key, err := validateKey(key)
	if err != nil {
		return "", err
	}
	return path.Join(b.directory, key), nil
}

// Put implements Bucket.
func (b *LocalBucket) Put(_ context.Context, key string, body io.Reader, _ string) error {
	filename, err := b.filename(key)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	return b.files.Write(filename, data, files.Runtime, true)
}

// Open implements Bucket.
func (b *LocalBucket) Open(_ context.Context, key string) (io.ReadCloser, error) {
	filename, err := b.filename(key)
	if err != nil {
		return nil, err
	}
	data, err := b.files.Read(filename)
	if err != nil {
		if errors.Is(err, files.ErrNotFound) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Exists implements Bucket.
func (b *LocalBucket) Exists(_ context.Context, key string) (bool, error) {
	filename, err := b.filename(key)
	if err != nil {
		return false, err
	}
	return b.files.Exists(filename), nil
}

// Delete implements Bucket.
func (b *LocalBucket) Delete(_ context.Context, key string) error {
	filename, err := b.filename(key)
	if err != nil {
		return err
	}
	return b.files.Delete(filename)
}

// Size implements Bucket.
func (b *LocalBucket) Size(_ context.Context, key string) (int64, error) {
	filename, err := b.filename(key)
	if err != nil {
		return 0, err
	}
	size, err := b.files.Size(filename)
	if errors.Is(err, files.ErrNotFound) {
		return 0, ErrObjectNotFound
	}
	return size, err
}

// URL implements Bucket.
func (b *LocalBucket) URL(_ context.Context, key string) (string, error) {
	key, err := validateKey(key)
	if err != nil {
		return "", err
	}
	return joinURL(b.publicURL, key), nil
}

var _ Bucket = (*LocalBucket)(nil)
