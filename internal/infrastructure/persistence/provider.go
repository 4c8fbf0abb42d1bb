package persistence

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	infraconfig "github.com/helixframework/helix/internal/infrastructure/config"
	"github.com/helixframework/helix/internal/infrastructure/logger"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// Provider hands out named connections, opening each on first use.
type Provider struct {
	cfg      infraconfig.DatabaseConfig
	baseDir  string
	logger   *zap.Logger
	logLevel gormlogger.LogLevel
	hooks    []func(*Database) error

	mu        sync.Mutex
	databases map[string]*Database
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithLogger routes query logs of every connection into logger.
func WithLogger(l *zap.Logger, level gormlogger.LogLevel) ProviderOption {
	return func(p *Provider) {
		p.logger = l
		p.logLevel = level
	}
}

// WithBaseDir resolves relative sqlite database files against dir.
func WithBaseDir(dir string) ProviderOption {
	return func(p *Provider) {
		p.baseDir = dir
	}
}

// WithOpenHook runs fn on every newly opened connection, e.g. to register gorm plugins.
// A failing hook closes the connection.
func WithOpenHook(fn func(*Database) error) ProviderOption {
	return func(p *Provider) {
		p.hooks = append(p.hooks, fn)
	}
}

// WithDatabase registers an already opened connection.
func WithDatabase(db *Database) ProviderOption {
	return func(p *Provider) {
		p.databases[db.Name] = db
	}
}

// NewProvider creates a connection provider.
func NewProvider(cfg infraconfig.DatabaseConfig, opts ...ProviderOption) *Provider {
	p := &Provider{
		cfg:       cfg,
		logger:    zap.NewNop(),
		logLevel:  gormlogger.Warn,
		databases: make(map[string]*Database),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Default returns the default connection.
func (p *Provider) Default() (*Database, error) {
	return p.Database(p.cfg.Default)
}

// DefaultName returns the name of the default connection.
func (p *Provider) DefaultName() string {
	return p.cfg.Default
}

// Database returns the connection called name. An empty name means the default one.
func (p *Provider) Database(name string) (*Database, error) {
	if name == "" {
		name = p.cfg.Default
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if db, ok := p.databases[name]; ok {
		return db, nil
	}

	cfg, ok := p.cfg.Connections[name]
	if !ok {
		return nil, fmt.Errorf("database connection %q is not configured", name)
	}

	db, err := Open(name, cfg, p.dsn(cfg), logger.NewGormLogger(p.logger, name, p.logLevel))
	if err != nil {
		return nil, err
	}
	for _, hook := range p.hooks {
		if err := hook(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("database %q: %w", name, err)
		}
	}
	p.logger.Debug("database connection opened", zap.String("connection", name), zap.String("driver", cfg.Driver))

	p.databases[name] = db
	return db, nil
}

func (p *Provider) dsn(cfg infraconfig.ConnectionConfig) string {
	dsn := cfg.ConnectionString()
	if cfg.Driver != "sqlite" || p.baseDir == "" {
		return dsn
	}
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") || filepath.IsAbs(dsn) {
		return dsn
	}
	return filepath.Join(p.baseDir, dsn)
}

// Names lists the configured connection names.
func (p *Provider) Names() []string {
	names := make([]string, 0, len(p.cfg.Connections))
	for name := range p.cfg.Connections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every opened connection.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for name, db := range p.databases {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	p.databases = make(map[string]*Database)
	return errors.Join(errs...)
}
