package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/helixframework/helix/internal/core/container"
	"github.com/helixframework/helix/internal/infrastructure/cache"
	"github.com/helixframework/helix/internal/infrastructure/config"
	"github.com/helixframework/helix/internal/infrastructure/encrypter"
	"github.com/helixframework/helix/internal/infrastructure/logger"
	"github.com/helixframework/helix/internal/infrastructure/migration"
	"github.com/helixframework/helix/internal/infrastructure/persistence"
	"github.com/helixframework/helix/internal/infrastructure/storage"
	"github.com/helixframework/helix/internal/infrastructure/telemetry"
	"github.com/helixframework/helix/internal/infrastructure/translator"
	"github.com/helixframework/helix/internal/orm"
	"github.com/helixframework/helix/internal/views"
	"go.uber.org/zap"
)

// Version is reported by app:info and attached to traces
const Version = "0.4.0"

// Component aliases
const (
	AliasCore      = "core"
	AliasContainer = "container"
	AliasConfig    = "config"
	AliasSettings  = "settings"
	AliasMemory    = "memory"
	AliasFiles     = "files"
	AliasLogger    = "logger"
	AliasCache     = "cache"
	AliasStorage   = "storage"
	AliasDBAL      = "dbal"
	AliasORM       = "orm"
	AliasMigrator  = "migrator"
	AliasViews     = "views"
	AliasI18n      = "i18n"
	AliasEncrypter = "encrypter"
	AliasTelemetry = "telemetry"
	AliasConsole   = "console"
	AliasHTTP      = "http"
)

// Dispatcher bindings the console and http aliases point at. Dispatcher packages bind
// their constructors under these keys.
const (
	ConsoleDispatcherBinding = "dispatcher.console"
	HTTPDispatcherBinding    = "dispatcher.http"
)

// Init creates the core, registers every component binding, runs the bootloaders in
// order and finally the application bootstrap.
func Init(dirs Directories, opts ...Option) (*Core, error) {
	c, err := New(dirs, opts...)
	if err != nil {
		return nil, err
	}
	c.registerBindings()

	for i, boot := range c.bootloaders {
		if err := boot(c); err != nil {
			return nil, &CoreError{Code: CodeBootload, Message: fmt.Sprintf("bootloader #%d failed", i+1), Err: err}
		}
	}
	if c.bootstrap != nil {
		if err := c.bootstrap(c); err != nil {
			return nil, &CoreError{Code: CodeBootload, Message: "bootstrap failed", Err: err}
		}
	}

	c.logger.Debug("Core initialised",
		zap.String("environment", c.Environment()),
		zap.String("root", c.MustDirectory(DirRoot)),
	)
	return c, nil
}

func (c *Core) registerBindings() {
	ct := c.container

	ct.Instance(AliasCore, c)
	ct.Instance(AliasContainer, ct)
	ct.Instance(AliasFiles, c.files)
	ct.Instance(AliasLogger, c.logger)
	ct.Instance(AliasMemory, c.memory)
	ct.Instance(AliasConfig, c.configurator)
	ct.Instance(AliasSettings, c.settings)

	ct.Singleton(AliasCache, func(*container.Container, container.Params) (any, error) {
		s := c.settings
		p := cache.NewProvider(cache.Config{
			Default:         s.Cache.Default,
			Prefix:          s.Cache.Prefix,
			CleanupInterval: s.Cache.CleanupInterval,
			Redis: cache.RedisConfig{
				Host:     s.Redis.Host,
				Port:     s.Redis.Port,
				Password: s.Redis.Password,
				DB:       s.Redis.DB,
			},
		}, cache.WithLogger(logger.Component(c.logger, "cache")))
		c.onClose(p.Close)
		return p, nil
	})

	ct.Singleton(AliasStorage, func(*container.Container, container.Params) (any, error) {
		return storage.NewManager(c.settings.Storage, c.files, c.MustDirectory(DirRoot), logger.Component(c.logger, "storage")), nil
	})

	ct.Singleton(AliasDBAL, func(ct *container.Container, _ container.Params) (any, error) {
		tp, err := container.Resolve[*telemetry.TracerProvider](ct, AliasTelemetry)
		if err != nil {
			return nil, err
		}
		p := persistence.NewProvider(c.settings.Database,
			persistence.WithLogger(c.logger, logger.GormLevel(c.settings.Log.Level)),
			persistence.WithBaseDir(c.MustDirectory(DirRoot)),
			persistence.WithOpenHook(func(db *persistence.Database) error {
				return tp.TraceDatabase(db.DB, db.Driver, !c.IsProduction())
			}),
		)
		c.onClose(p.Close)
		return p, nil
	})

	ct.Singleton(AliasORM, func(ct *container.Container, _ container.Params) (any, error) {
		dbal, err := container.Resolve[*persistence.Provider](ct, AliasDBAL)
		if err != nil {
			return nil, err
		}
		return orm.New(dbal), nil
	})

	ct.Singleton(AliasMigrator, func(ct *container.Container, _ container.Params) (any, error) {
		dbal, err := container.Resolve[*persistence.Provider](ct, AliasDBAL)
		if err != nil {
			return nil, err
		}
		db, err := dbal.Database(c.settings.Migration.Connection)
		if err != nil {
			return nil, err
		}
		return migration.New(db, c.files, migration.Config{
			Directory: c.MustDirectory(DirMigrations),
			Table:     c.settings.Migration.Table,
		}, migration.WithLogger(logger.Component(c.logger, "migrations"))), nil
	})

	ct.Singleton(AliasI18n, func(*container.Container, container.Params) (any, error) {
		cfg := translator.Config{Directory: c.MustDirectory(DirLocales)}
		if err := c.optionalSection("i18n", &cfg); err != nil {
			return nil, err
		}
		return translator.New(c.files, cfg, logger.Component(c.logger, "i18n"))
	})

	views.RegisterProcessors(ct)
	ct.Singleton(AliasViews, func(ct *container.Container, _ container.Params) (any, error) {
		cfg := views.DefaultConfig(c.MustDirectory(DirViews), c.MustDirectory(DirCache)+"/views")
		if err := c.optionalSection("views", &cfg); err != nil {
			return nil, err
		}
		i18n, err := container.Resolve[*translator.Translator](ct, AliasI18n)
		if err != nil {
			return nil, err
		}
		return views.NewManager(cfg, c.files, ct, c.Environment,
			views.WithTranslator(i18n),
			views.WithLogger(logger.Component(c.logger, "views")),
		), nil
	})

	ct.Singleton(AliasEncrypter, func(*container.Container, container.Params) (any, error) {
		if c.settings.Encrypter.Key == "" {
			return nil, errors.New("encrypter.key is not configured")
		}
		return encrypter.New(c.settings.Encrypter.Key)
	})

	ct.Singleton(AliasTelemetry, func(*container.Container, container.Params) (any, error) {
		tp, err := telemetry.NewTracerProvider(context.Background(), c.settings.Telemetry, Version, logger.Component(c.logger, "telemetry"))
		if err != nil {
			return nil, err
		}
		c.onClose(func() error { return tp.Shutdown(context.Background()) })
		return tp, nil
	})

	ct.Alias(AliasConsole, ConsoleDispatcherBinding)
	ct.Alias(AliasHTTP, HTTPDispatcherBinding)
}

// optionalSection decodes a configuration section into dst, leaving dst untouched
// when the section has no file.
func (c *Core) optionalSection(section string, dst any) error {
	data, err := c.configurator.GetConfig(section)
	if errors.Is(err, config.ErrSectionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return config.Decode(data, dst)
}

// Cache returns the cache store provider
func (c *Core) Cache() (*cache.Provider, error) {
	return container.Resolve[*cache.Provider](c.container, AliasCache)
}

// Storage returns the storage bucket manager
func (c *Core) Storage() (*storage.Manager, error) {
	return container.Resolve[*storage.Manager](c.container, AliasStorage)
}

// Databases returns the database provider
func (c *Core) Databases() (*persistence.Provider, error) {
	return container.Resolve[*persistence.Provider](c.container, AliasDBAL)
}

// ORM returns the ORM
func (c *Core) ORM() (*orm.ORM, error) {
	return container.Resolve[*orm.ORM](c.container, AliasORM)
}

// Migrator returns the migrator of the migration connection
func (c *Core) Migrator() (*migration.Migrator, error) {
	return container.Resolve[*migration.Migrator](c.container, AliasMigrator)
}

// Views returns the view manager
func (c *Core) Views() (*views.Manager, error) {
	return container.Resolve[*views.Manager](c.container, AliasViews)
}

// Translator returns the translator
func (c *Core) Translator() (*translator.Translator, error) {
	return container.Resolve[*translator.Translator](c.container, AliasI18n)
}

// Encrypter returns the encrypter built from encrypter.key
func (c *Core) Encrypter() (*encrypter.Encrypter, error) {
	return container.Resolve[*encrypter.Encrypter](c.container, AliasEncrypter)
}

// Telemetry returns the tracer provider
func (c *Core) Telemetry() (*telemetry.TracerProvider, error) {
	return container.Resolve[*telemetry.TracerProvider](c.container, AliasTelemetry)
}
