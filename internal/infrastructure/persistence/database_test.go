package persistence

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	infraconfig "github.com/helixframework/helix/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockDatabase creates a Database instance with a mocked SQL connection
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true, DisableAutomaticPing: true})
	require.NoError(t, err)

	return &Database{Name: "default", Driver: "postgres", DB: gormDB}, mock, mockDB
}

func TestDatabase_Ping(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	mock.ExpectPing()
	require.NoError(t, db.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	assert.Error(t, db.Ping(context.Background()))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Transaction(t *testing.T) {
	t.Run("commits", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE users SET active = true`).WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectCommit()

		err := db.Transaction(context.Background(), func(tx *gorm.DB) error {
			return tx.Exec("UPDATE users SET active = true").Error
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := db.Transaction(context.Background(), func(*gorm.DB) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDatabase_Stats(t *testing.T) {
	db, _, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	stats, err := db.Stats()
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, stats.OpenConnections, 0)
}

func TestProvider_SQLite(t *testing.T) {
	dir := t.TempDir()
	p := NewProvider(infraconfig.DatabaseConfig{
		Default: "default",
		Connections: map[string]infraconfig.ConnectionConfig{
			"default": {Driver: "sqlite", DSN: "app.db", MaxOpenConns: 1, MaxIdleConns: 1},
			"memory":  {Driver: "sqlite", DSN: ":memory:", MaxOpenConns: 1, MaxIdleConns: 1},
		},
	}, WithBaseDir(dir))
	defer p.Close()

	db, err := p.Default()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", db.Driver)
	require.NoError(t, db.DB.Exec("CREATE TABLE items (id INTEGER PRIMARY KEY)").Error)
	assert.FileExists(t, filepath.Join(dir, "app.db"))

	again, err := p.Database("")
	require.NoError(t, err)
	assert.Same(t, db, again)

	mem, err := p.Database("memory")
	require.NoError(t, err)
	assert.NoError(t, mem.Ping(context.Background()))

	assert.Equal(t, []string{"default", "memory"}, p.Names())

	_, err = p.Database("reporting")
	assert.Error(t, err)
}

func TestProvider_UnsupportedDriver(t *testing.T) {
	p := NewProvider(infraconfig.DatabaseConfig{
		Default:     "default",
		Connections: map[string]infraconfig.ConnectionConfig{"default": {Driver: "mssql"}},
	})
	_, err := p.Default()
	assert.Error(t, err)
}

func TestProvider_OpenHook(t *testing.T) {
	cfg := infraconfig.DatabaseConfig{
		Default: "default",
		Connections: map[string]infraconfig.ConnectionConfig{
			"default": {Driver: "sqlite", DSN: ":memory:", MaxOpenConns: 1, MaxIdleConns: 1},
		},
	}

	var opened []string
	p := NewProvider(cfg, WithOpenHook(func(db *Database) error {
		opened = append(opened, db.Name)
		return nil
	}))
	defer p.Close()

	_, err := p.Default()
	require.NoError(t, err)
	_, err = p.Default()
	require.NoError(t, err)
	assert.Equal(t, []string{"default"}, opened)

	failing := NewProvider(cfg, WithOpenHook(func(*Database) error { return errors.New("plugin failed") }))
	_, err = failing.Default()
	assert.ErrorContains(t, err, "plugin failed")
}
