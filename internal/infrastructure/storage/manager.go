package storage

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	infraconfig "github.com/helixframework/helix/internal/infrastructure/config"
	"github.com/helixframework/helix/internal/infrastructure/files"
	"go.uber.org/zap"
)

// Manager opens configured buckets on first use.
type Manager struct {
	cfg    infraconfig.StorageConfig
	files  *files.Manager
	root   string
	logger *zap.Logger

	mu      sync.Mutex
	buckets map[string]Bucket
}

// NewManager creates a bucket manager. Relative local directories resolve against root.
func NewManager(cfg infraconfig.StorageConfig, fm *files.Manager, root string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:     cfg,
		files:   fm,
		root:    root,
		logger:  logger,
		buckets: make(map[string]Bucket),
	}
}

// Register adds a ready bucket.
func (m *Manager) Register(bucket Bucket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[bucket.Name()] = bucket
}

// Default returns the default bucket.
func (m *Manager) Default() (Bucket, error) {
	return m.Bucket(m.cfg.Default)
}

// Bucket returns the bucket called name.
func (m *Manager) Bucket(name string) (Bucket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if bucket, ok := m.buckets[name]; ok {
		return bucket, nil
	}

	cfg, ok := m.cfg.Buckets[name]
	if !ok {
		return nil, fmt.Errorf("storage: bucket %q is not configured", name)
	}

	var bucket Bucket
	switch cfg.Driver {
	case "local":
		directory := cfg.Directory
		if !filepath.IsAbs(directory) {
			directory = filepath.Join(m.root, directory)
		}
		bucket = NewLocalBucket(name, m.files, directory, cfg.PublicURL)
	case "s3":
		s3Bucket, err := NewS3Bucket(name, S3Config{
			Bucket:       cfg.Bucket,
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			AccessKey:    cfg.AccessKey,
			SecretKey:    cfg.SecretKey,
			Prefix:       cfg.Prefix,
			PublicURL:    cfg.PublicURL,
			UsePathStyle: cfg.UsePathStyle,
		}, WithLogger(m.logger.With(zap.String("bucket", name))))
		if err != nil {
			return nil, fmt.Errorf("storage: bucket %q: %w", name, err)
		}
		bucket = s3Bucket
	default:
		return nil, fmt.Errorf("storage: bucket %q has unsupported driver %q", name, cfg.Driver)
	}

	m.buckets[name] = bucket
	return bucket, nil
}

// Names lists the configured bucket names.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	for name := range m.cfg.Buckets {
		seen[name] = true
	}
	for name := range m.buckets {
		seen[name] = true
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
