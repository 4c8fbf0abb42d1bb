// Package core ties the framework components together: directories, environment,
// the container, component bindings and dispatching.
package core

import (
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/helixframework/helix/internal/core/container"
	"github.com/helixframework/helix/internal/debug"
	"github.com/helixframework/helix/internal/infrastructure/config"
	"github.com/helixframework/helix/internal/infrastructure/files"
	"github.com/helixframework/helix/internal/infrastructure/logger"
	"github.com/helixframework/helix/internal/infrastructure/memory"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Application environments
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvStaging     = "staging"
	EnvTesting     = "testing"
)

// Mode selects the default dispatcher
type Mode int

const (
	ModeConsole Mode = iota
	ModeHTTP
)

func (m Mode) String() string {
	if m == ModeHTTP {
		return "http"
	}
	return "console"
}

// Bootloader configures the core after its bindings are registered
type Bootloader func(c *Core) error

// Core is one application instance. All state lives on the instance.
type Core struct {
	mu          sync.RWMutex
	directories map[string]string
	environment string
	appID       uint32
	location    *time.Location
	mode        Mode
	dispatcher  Dispatcher

	container    *container.Container
	files        *files.Manager
	settings     *config.Config
	logger       *zap.Logger
	memory       memory.Memory
	configurator *config.Configurator
	reporter     *debug.Reporter
	stderr       io.Writer

	bootloaders []Bootloader
	bootstrap   func(c *Core) error

	closeMu sync.Mutex
	closers []func() error
}

// Option configures a Core
type Option func(*Core)

// WithEnvironment forces the environment instead of reading it from settings or the
// runtime/environment file.
func WithEnvironment(env string) Option {
	return func(c *Core) {
		c.environment = env
	}
}

// WithMode selects the default dispatcher used by Start
func WithMode(mode Mode) Option {
	return func(c *Core) {
		c.mode = mode
	}
}

// WithFiles sets the file manager, an OS backed one is used otherwise
func WithFiles(fm *files.Manager) Option {
	return func(c *Core) {
		c.files = fm
	}
}

// WithSettings skips loading helix.toml
func WithSettings(settings *config.Config) Option {
	return func(c *Core) {
		c.settings = settings
	}
}

// WithLogger sets the root logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Core) {
		c.logger = l
	}
}

// WithBootloaders appends bootloaders run by Init in order
func WithBootloaders(bootloaders ...Bootloader) Option {
	return func(c *Core) {
		c.bootloaders = append(c.bootloaders, bootloaders...)
	}
}

// WithBootstrap sets the application bootstrap run by Init after the bootloaders
func WithBootstrap(fn func(c *Core) error) Option {
	return func(c *Core) {
		c.bootstrap = fn
	}
}

// WithStderr redirects snapshots that no dispatcher handles
func WithStderr(w io.Writer) Option {
	return func(c *Core) {
		c.stderr = w
	}
}

// New creates a core for dirs without registering component bindings. Most
// applications use Init.
func New(dirs Directories, opts ...Option) (*Core, error) {
	if dirs.Root == "" {
		return nil, &CoreError{Code: CodeInvalidDirectory, Message: "root directory is required"}
	}

	c := &Core{
		container: container.New(),
		location:  time.UTC,
		stderr:    os.Stderr,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.files == nil {
		c.files = files.New(afero.NewOsFs())
	}

	dirs = dirs.withDefaults()
	c.directories = dirs.aliases()

	if c.settings == nil {
		settings, err := config.LoadFs(c.files.Fs(), dirs.Root, dirs.Config)
		if err != nil {
			return nil, err
		}
		c.settings = settings
	}

	c.environment = c.detectEnvironment()
	c.appID = applicationID(dirs.Root, c.environment)

	if err := c.SetTimezone(c.settings.App.Timezone); err != nil {
		return nil, err
	}

	if c.logger == nil {
		l, err := logger.New(&logger.Config{
			Level:  c.settings.Log.Level,
			Format: c.settings.Log.Format,
			Output: c.settings.Log.Output,
			Name:   c.settings.App.Name,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		c.logger = l
	}

	mem, err := c.newMemory()
	if err != nil {
		return nil, err
	}
	c.memory = mem

	c.configurator = config.NewConfigurator(c.files, dirs.Config, c.Environment,
		config.WithLogger(logger.Component(c.logger, "config")),
		config.WithMemory(mem),
	)

	var reporterOpts []debug.ReporterOption
	if c.settings.Debug.Snapshots {
		reporterOpts = append(reporterOpts, debug.WithDirectory(c.files, c.directories[DirSnapshots], c.settings.Debug.MaxSnapshots))
	}
	c.reporter = debug.NewReporter(logger.Component(c.logger, "snapshots"), reporterOpts...)

	return c, nil
}

func (c *Core) newMemory() (memory.Memory, error) {
	switch c.settings.Memory.Driver {
	case "redis":
		mem, err := memory.NewRedisMemory(memory.RedisConfig{
			Host:     c.settings.Redis.Host,
			Port:     c.settings.Redis.Port,
			Password: c.settings.Redis.Password,
			DB:       c.settings.Redis.DB,
			Prefix:   c.settings.Memory.Prefix,
			TTL:      c.settings.Memory.TTL,
		}, c.ApplicationID)
		if err != nil {
			return nil, err
		}
		c.onClose(mem.Close)
		return mem, nil
	default:
		return memory.NewFileMemory(c.files, c.directories[DirCache], c.ApplicationID,
			memory.WithLogger(logger.Component(c.logger, "memory"))), nil
	}
}

func (c *Core) detectEnvironment() string {
	if c.environment != "" {
		return c.environment
	}
	if c.settings.App.Env != "" {
		return c.settings.App.Env
	}
	data, err := c.files.Read(path.Join(c.directories[DirRuntime], "environment"))
	if err == nil {
		if env := strings.TrimSpace(string(data)); env != "" {
			return env
		}
	}
	return EnvDevelopment
}

func applicationID(root, environment string) uint32 {
	return crc32.ChecksumIEEE([]byte(root + environment))
}

// Environment returns the active environment name
func (c *Core) Environment() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.environment
}

// IsProduction reports whether the production environment is active
func (c *Core) IsProduction() bool {
	return c.Environment() == EnvProduction
}

// SetEnvironment switches the environment. The application id, and with it the runtime
// memory namespace, only changes when regenerateID is set.
func (c *Core) SetEnvironment(env string, regenerateID bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.environment = env
	if regenerateID {
		c.appID = applicationID(c.directories[DirRoot], env)
	}
}

// ApplicationID identifies the application root and environment
func (c *Core) ApplicationID() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.appID
}

// SetTimezone changes the application timezone
func (c *Core) SetTimezone(name string) error {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return &CoreError{Code: CodeInvalidTimezone, Message: fmt.Sprintf("invalid timezone value '%s'", name), Err: err}
	}
	c.mu.Lock()
	c.location = loc
	c.mu.Unlock()
	return nil
}

// Timezone returns the timezone name
func (c *Core) Timezone() string {
	return c.Location().String()
}

// Location returns the timezone location
func (c *Core) Location() *time.Location {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.location
}

// Mode returns the default dispatcher mode
func (c *Core) Mode() Mode {
	return c.mode
}

// GetConfig returns a configuration section
func (c *Core) GetConfig(section string) (map[string]any, error) {
	return c.configurator.GetConfig(section)
}

// LoadData reads runtime data saved with SaveData
func (c *Core) LoadData(name string) (any, error) {
	return c.memory.LoadData(name, "")
}

// SaveData stores runtime data for the application id
func (c *Core) SaveData(name string, data any) error {
	return c.memory.SaveData(name, data, "")
}

// Container returns the core container
func (c *Core) Container() *container.Container { return c.container }

// Logger returns the root logger
func (c *Core) Logger() *zap.Logger { return c.logger }

// Files returns the file manager
func (c *Core) Files() *files.Manager { return c.files }

// Memory returns the runtime memory
func (c *Core) Memory() memory.Memory { return c.memory }

// Configurator returns the section configurator
func (c *Core) Configurator() *config.Configurator { return c.configurator }

// Settings returns the application settings
func (c *Core) Settings() *config.Config { return c.settings }

// Reporter returns the snapshot reporter
func (c *Core) Reporter() *debug.Reporter { return c.reporter }

func (c *Core) onClose(fn func() error) {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	c.closers = append(c.closers, fn)
}

// Close releases opened components in reverse order of construction
func (c *Core) Close() error {
	c.closeMu.Lock()
	closers := c.closers
	c.closers = nil
	c.closeMu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	_ = c.logger.Sync()
	return errors.Join(errs...)
}
