package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/helixframework/helix/internal/infrastructure/files"
	"github.com/helixframework/helix/internal/infrastructure/memory"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// sectionExtensions are probed in order when locating a section file.
var sectionExtensions = []string{"toml", "yaml", "yml", "json"}

// ConfiguratorError is returned when a configuration section cannot be loaded.
type ConfiguratorError struct {
	Section  string
	Filename string
	Err      error
}

func (e *ConfiguratorError) Error() string {
	if e.Filename == "" {
		return fmt.Sprintf("unable to load %q configuration: %v", e.Section, e.Err)
	}
	return fmt.Sprintf("unable to load %q configuration from %s: %v", e.Section, e.Filename, e.Err)
}

func (e *ConfiguratorError) Unwrap() error {
	return e.Err
}

// ErrSectionNotFound is wrapped by ConfiguratorError when no file backs a section.
var ErrSectionNotFound = errors.New("configuration file not found")

// Configurator loads component configuration sections from the config directory.
//
// A section "views" lives in <directory>/views.toml (or .yaml/.yml/.json). Top-level keys
// of <directory>/<environment>/views.<ext> replace those of the base file. Loaded
// sections are cached in runtime memory and reloaded once a source file changes.
type Configurator struct {
	files       *files.Manager
	memory      memory.Memory
	directory   string
	environment func() string
	logger      *zap.Logger

	mu sync.Mutex
}

// cachedSection is the runtime memory envelope of a section.
type cachedSection struct {
	Modified int64          `json:"modified"`
	Data     map[string]any `json:"data"`
}

// ConfiguratorOption configures a Configurator.
type ConfiguratorOption func(*Configurator)

// WithLogger sets the configurator logger.
func WithLogger(logger *zap.Logger) ConfiguratorOption {
	return func(c *Configurator) {
		c.logger = logger
	}
}

// WithMemory enables caching of loaded sections in runtime memory.
func WithMemory(m memory.Memory) ConfiguratorOption {
	return func(c *Configurator) {
		c.memory = m
	}
}

// NewConfigurator creates a configurator reading sections from directory.
func NewConfigurator(fm *files.Manager, directory string, environment func() string, opts ...ConfiguratorOption) *Configurator {
	c := &Configurator{
		files:       fm,
		directory:   directory,
		environment: environment,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Directory returns the configuration directory.
func (c *Configurator) Directory() string {
	return c.directory
}

// GetConfig returns the merged content of section.
func (c *Configurator) GetConfig(section string) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	source, ok := c.locate(c.directory, section)
	if !ok {
		return nil, &ConfiguratorError{Section: section, Err: ErrSectionNotFound}
	}
	override, hasOverride := c.locate(filepath.Join(c.directory, c.environment()), section)

	modified, err := c.modified(source)
	if err != nil {
		return nil, &ConfiguratorError{Section: section, Filename: source, Err: err}
	}
	if hasOverride {
		if overrideModified, err := c.modified(override); err == nil && overrideModified > modified {
			modified = overrideModified
		}
	}

	cacheID := cacheName(section)
	if c.memory != nil {
		var cached cachedSection
		err := c.memory.LoadInto(cacheID, "", &cached)
		switch {
		case err == nil && cached.Modified >= modified:
			return cached.Data, nil
		case err == nil:
			c.logger.Debug("configuration changed, reloading", zap.String("section", section))
		case !errors.Is(err, memory.ErrNotFound):
			c.logger.Warn("unable to read cached configuration", zap.String("section", section), zap.Error(err))
		}
	}

	data, err := c.read(source)
	if err != nil {
		return nil, &ConfiguratorError{Section: section, Filename: source, Err: err}
	}
	if hasOverride {
		overrideData, err := c.read(override)
		if err != nil {
			return nil, &ConfiguratorError{Section: section, Filename: override, Err: err}
		}
		for key, value := range overrideData {
			data[key] = value
		}
	}

	if data, err = normalize(data); err != nil {
		return nil, &ConfiguratorError{Section: section, Filename: source, Err: err}
	}

	if c.memory != nil {
		if err := c.memory.SaveData(cacheID, cachedSection{Modified: modified, Data: data}, ""); err != nil {
			c.logger.Warn("unable to cache configuration", zap.String("section", section), zap.Error(err))
		}
	}

	return data, nil
}

// Sections lists the sections available in the configuration directory.
func (c *Configurator) Sections() ([]string, error) {
	filenames, err := c.files.GetFiles(c.directory, "")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, filename := range filenames {
		rel := c.files.RelativePath(filename, c.directory)
		if strings.Contains(rel, "/") {
			continue
		}
		ext := files.Extension(rel)
		if !slices.Contains(sectionExtensions, ext) {
			continue
		}
		seen[strings.TrimSuffix(rel, "."+ext)] = true
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// Section decodes a configuration section into T.
func Section[T any](c *Configurator, section string) (T, error) {
	var out T
	data, err := c.GetConfig(section)
	if err != nil {
		return out, err
	}
	if err := Decode(data, &out); err != nil {
		return out, &ConfiguratorError{Section: section, Err: err}
	}
	return out, nil
}

// Decode maps generic configuration data onto dst using viper's mapstructure rules.
func Decode(data map[string]any, dst any) error {
	v := viper.New()
	if err := v.MergeConfigMap(data); err != nil {
		return err
	}
	return v.Unmarshal(dst)
}

func (c *Configurator) locate(directory, section string) (string, bool) {
	for _, ext := range sectionExtensions {
		filename := filepath.Join(directory, section+"."+ext)
		if c.files.Exists(filename) {
			return filename, true
		}
	}
	return "", false
}

func (c *Configurator) modified(filename string) (int64, error) {
	mtime, err := c.files.Time(filename)
	if err != nil {
		return 0, err
	}
	return mtime.UnixNano(), nil
}

func (c *Configurator) read(filename string) (map[string]any, error) {
	v := viper.New()
	v.SetFs(c.files.Fs())
	v.SetConfigFile(filename)
	if ext := files.Extension(filename); ext == "yml" {
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return v.AllSettings(), nil
}

func cacheName(section string) string {
	return "config-" + strings.ReplaceAll(section, "/", "-")
}

// normalize converts decoder specific values to plain JSON types, so a section reads
// the same whether it comes from the source file or from runtime memory.
func normalize(data map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
