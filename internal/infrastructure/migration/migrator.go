// Package migration applies versioned SQL migrations and keeps a history of when each
// one was executed.
package migration

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/helixframework/helix/internal/infrastructure/files"
	"github.com/helixframework/helix/internal/infrastructure/persistence"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned when the migration directory or history table is missing.
var ErrNotConfigured = errors.New("migrations are not configured, run migrate:init first")

// Config holds migrator settings
type Config struct {
	Directory string
	Table     string
}

// Migrator runs migrations found in a directory against one database connection
type Migrator struct {
	db     *persistence.Database
	files  *files.Manager
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Migrator
type Option func(*Migrator)

// WithLogger sets the migrator logger
func WithLogger(logger *zap.Logger) Option {
	return func(m *Migrator) {
		m.logger = logger
	}
}

// WithClock overrides the time source used for history records and new migration versions
func WithClock(now func() time.Time) Option {
	return func(m *Migrator) {
		m.now = now
	}
}

// New creates a Migrator
func New(db *persistence.Database, fm *files.Manager, cfg Config, opts ...Option) *Migrator {
	if cfg.Table == "" {
		cfg.Table = "migrations"
	}
	m := &Migrator{
		db:     db,
		files:  fm,
		cfg:    cfg,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Directory returns the migrations directory
func (m *Migrator) Directory() string {
	return m.cfg.Directory
}

// IsConfigured reports whether the migrations directory and history table both exist
func (m *Migrator) IsConfigured() bool {
	return m.files.IsDir(m.cfg.Directory) && m.db.DB.Migrator().HasTable(m.cfg.Table)
}

// Init creates the migrations directory and the history table
func (m *Migrator) Init(ctx context.Context) error {
	if err := m.files.EnsureDir(m.cfg.Directory); err != nil {
		return err
	}
	if err := m.history(ctx).AutoMigrate(&historyRecord{}); err != nil {
		return fmt.Errorf("failed to create migration history table: %w", err)
	}
	m.logger.Info("Migrations initialised",
		zap.String("directory", m.cfg.Directory),
		zap.String("table", m.cfg.Table),
	)
	return nil
}

// Run applies up to steps pending migrations (0 = all) and returns the ones executed
func (m *Migrator) Run(ctx context.Context, steps int) ([]Status, error) {
	if !m.IsConfigured() {
		return nil, ErrNotConfigured
	}

	engine, err := m.open()
	if err != nil {
		return nil, err
	}
	defer m.close(engine)

	known, err := m.catalog()
	if err != nil {
		return nil, err
	}

	var executed []Status
	for steps == 0 || len(executed) < steps {
		if err := ctx.Err(); err != nil {
			return executed, err
		}

		start := time.Now()
		err := engine.Steps(1)
		if isExhausted(err) {
			break
		}
		if err != nil {
			return executed, fmt.Errorf("migration up failed: %w", err)
		}

		version, err := m.version(engine)
		if err != nil {
			return executed, err
		}
		status := known.status(version)
		status.State = StateExecuted
		status.TimeExecuted = m.now()

		if err := m.record(ctx, status); err != nil {
			return executed, err
		}
		m.logger.Info("Migration executed",
			zap.Uint("version", version),
			zap.String("name", status.Name),
			zap.Duration("elapsed", time.Since(start)),
		)
		executed = append(executed, status)
	}

	if len(executed) == 0 {
		m.logger.Info("No migrations to apply")
	}
	return executed, nil
}

// Rollback reverts the last executed migration. It returns nil when nothing was executed.
func (m *Migrator) Rollback(ctx context.Context) (*Status, error) {
	if !m.IsConfigured() {
		return nil, ErrNotConfigured
	}

	engine, err := m.open()
	if err != nil {
		return nil, err
	}
	defer m.close(engine)

	current, err := m.version(engine)
	if err != nil {
		return nil, err
	}
	if current == 0 {
		m.logger.Info("No migrations to roll back")
		return nil, nil
	}

	known, err := m.catalog()
	if err != nil {
		return nil, err
	}

	if err := engine.Steps(-1); err != nil {
		if isExhausted(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("migration down failed: %w", err)
	}

	if err := m.forget(ctx, current); err != nil {
		return nil, err
	}

	status := known.status(current)
	status.State = StatePending
	m.logger.Info("Migration rolled back", zap.Uint("version", current), zap.String("name", status.Name))
	return &status, nil
}

// Version returns the current schema version, 0 when nothing was applied
func (m *Migrator) Version() (uint, bool, error) {
	engine, err := m.open()
	if err != nil {
		return 0, false, err
	}
	defer m.close(engine)

	version, dirty, err := engine.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// Force sets the migration version without running migrations.
// Use with caution - this is for fixing dirty database state
func (m *Migrator) Force(version int) error {
	engine, err := m.open()
	if err != nil {
		return err
	}
	defer m.close(engine)

	m.logger.Warn("Forcing migration version", zap.Int("version", version))
	if err := engine.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}
	return nil
}

func (m *Migrator) version(engine *migrate.Migrate) (uint, error) {
	version, dirty, err := engine.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("database is dirty at version %d, fix it and force the version", version)
	}
	return version, nil
}

// open builds a golang-migrate engine reading migrations through the file manager's
// filesystem and writing through its own database connection.
func (m *Migrator) open() (*migrate.Migrate, error) {
	dir, err := filepath.Abs(m.cfg.Directory)
	if err != nil {
		return nil, err
	}
	fsys := afero.NewIOFS(afero.NewBasePathFs(m.files.Fs(), "/"))
	source, err := iofs.New(fs.FS(fsys), strings.TrimPrefix(filepath.ToSlash(dir), "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to open migration source: %w", err)
	}

	url, err := databaseURL(m.db)
	if err != nil {
		return nil, err
	}
	engine, err := migrate.NewWithSourceInstance("iofs", source, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	engine.Log = &migrateLogger{logger: m.logger}
	return engine, nil
}

func (m *Migrator) close(engine *migrate.Migrate) {
	sourceErr, dbErr := engine.Close()
	if sourceErr != nil {
		m.logger.Warn("failed to close migration source", zap.Error(sourceErr))
	}
	if dbErr != nil {
		m.logger.Warn("failed to close migration database", zap.Error(dbErr))
	}
}

func databaseURL(db *persistence.Database) (string, error) {
	switch db.Driver {
	case "postgres":
		return db.DSN, nil
	case "sqlite":
		if db.DSN == ":memory:" || strings.HasPrefix(db.DSN, "file::memory:") {
			return "", errors.New("migrations require a file backed sqlite database")
		}
		return "sqlite3://" + strings.TrimPrefix(db.DSN, "file:"), nil
	default:
		return "", fmt.Errorf("migrations are not supported for driver %q", db.Driver)
	}
}

// isExhausted reports whether golang-migrate ran out of migrations in the requested direction.
func isExhausted(err error) bool {
	if err == nil {
		return false
	}
	var short migrate.ErrShortLimit
	return errors.Is(err, migrate.ErrNoChange) || errors.Is(err, fs.ErrNotExist) || errors.As(err, &short)
}

type migrateLogger struct {
	logger *zap.Logger
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.logger.Sugar().Debugf(strings.TrimSpace(format), v...)
}

func (l *migrateLogger) Verbose() bool {
	return l.logger.Core().Enabled(zap.DebugLevel)
}
