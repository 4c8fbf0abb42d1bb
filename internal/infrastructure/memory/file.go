package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/helixframework/helix/internal/infrastructure/files"
	"go.uber.org/zap"
)

const extension = ".json"

// FileMemory keeps runtime data in JSON files.
type FileMemory struct {
	files         *files.Manager
	cache         string
	applicationID func() uint32
	logger        *zap.Logger
}

// FileOption configures a FileMemory.
type FileOption func(*FileMemory)

// WithLogger sets the logger used to report decode failures.
func WithLogger(logger *zap.Logger) FileOption {
	return func(m *FileMemory) {
		m.logger = logger
	}
}

// NewFileMemory creates file-backed memory writing unscoped data into cacheDir.
// applicationID is consulted on every call so environment switches take effect.
func NewFileMemory(fm *files.Manager, cacheDir string, applicationID func() uint32, opts ...FileOption) *FileMemory {
	m := &FileMemory{
		files:         fm,
		cache:         cacheDir,
		applicationID: applicationID,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Filename returns the file that holds name.
func (m *FileMemory) Filename(name, location string) string {
	name = escapeName(name)
	if location != "" {
		return filepath.Join(location, name+extension)
	}
	return filepath.Join(m.cache, name+"-"+strconv.FormatUint(uint64(m.applicationID()), 10)+extension)
}

// LoadData decodes the stored value into generic JSON types.
func (m *FileMemory) LoadData(name, location string) (any, error) {
	var data any
	if err := m.LoadInto(name, location, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// LoadInto decodes the stored value into dst.
func (m *FileMemory) LoadInto(name, location string, dst any) error {
	filename := m.Filename(name, location)
	raw, err := m.files.Read(filename)
	if err != nil {
		if errors.Is(err, files.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		m.logger.Warn("discarding corrupted runtime data",
			zap.String("name", name),
			zap.String("filename", filename),
			zap.Error(err),
		)
		return ErrNotFound
	}
	return nil
}

// SaveData encodes data and writes it, creating directories as needed.
func (m *FileMemory) SaveData(name string, data any, location string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("memory: encode %s: %w", name, err)
	}
	return m.files.Write(m.Filename(name, location), raw, files.Runtime, true)
}

// Time returns the modification time of the file holding name.
func (m *FileMemory) Time(name, location string) (int64, error) {
	mtime, err := m.files.Time(m.Filename(name, location))
	if err != nil {
		return 0, err
	}
	return mtime.UnixNano(), nil
}

var _ Memory = (*FileMemory)(nil)
