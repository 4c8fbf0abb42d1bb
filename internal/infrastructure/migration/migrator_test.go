package migration

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	infraconfig "github.com/helixframework/helix/internal/infrastructure/config"
	"github.com/helixframework/helix/internal/infrastructure/files"
	"github.com/helixframework/helix/internal/infrastructure/persistence"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	migrator *Migrator
	db       *persistence.Database
	files    *files.Manager
	dir      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()

	db, err := persistence.Open("default", infraconfig.ConnectionConfig{
		Driver:       "sqlite",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, filepath.Join(root, "app.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	fm := files.New(afero.NewOsFs())
	dir := filepath.Join(root, "migrations")
	clock := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	m := New(db, fm, Config{Directory: dir}, WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
	return &fixture{migrator: m, db: db, files: fm, dir: dir}
}

func (f *fixture) write(t *testing.T, name, up, down string) {
	t.Helper()
	require.NoError(t, f.files.Write(filepath.Join(f.dir, name+".up.sql"), []byte(up), files.ReadOnly, true))
	require.NoError(t, f.files.Write(filepath.Join(f.dir, name+".down.sql"), []byte(down), files.ReadOnly, true))
}

func (f *fixture) hasTable(name string) bool {
	return f.db.DB.Migrator().HasTable(name)
}

func TestMigrator_NotConfigured(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.False(t, f.migrator.IsConfigured())

	_, err := f.migrator.Migrations(ctx)
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = f.migrator.Run(ctx, 0)
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = f.migrator.Rollback(ctx)
	assert.ErrorIs(t, err, ErrNotConfigured)

	require.NoError(t, f.migrator.Init(ctx))
	assert.True(t, f.migrator.IsConfigured())
	assert.True(t, f.hasTable("migrations"))

	list, err := f.migrator.Migrations(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMigrator_RunAndRollback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.migrator.Init(ctx))

	f.write(t, "20240101000000_create_users",
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT);",
		"DROP TABLE users;")
	f.write(t, "20240102000000_create_posts",
		"CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER);",
		"DROP TABLE posts;")

	list, err := f.migrator.Migrations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "create_users", list[0].Name)
	assert.Equal(t, "20240101000000_create_users.up.sql", list[0].Filename)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), list[0].TimeCreated)
	assert.True(t, list[0].Pending())
	assert.True(t, list[1].Pending())

	executed, err := f.migrator.Run(ctx, 1)
	require.NoError(t, err)
	require.Len(t, executed, 1)
	assert.Equal(t, uint(20240101000000), executed[0].Version)
	assert.True(t, f.hasTable("users"))
	assert.False(t, f.hasTable("posts"))

	executed, err = f.migrator.Run(ctx, 0)
	require.NoError(t, err)
	require.Len(t, executed, 1)
	assert.Equal(t, "create_posts", executed[0].Name)
	assert.True(t, f.hasTable("posts"))

	executed, err = f.migrator.Run(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, executed)

	list, err = f.migrator.Migrations(ctx)
	require.NoError(t, err)
	for _, s := range list {
		assert.Equal(t, StateExecuted, s.State, s.Name)
		assert.False(t, s.TimeExecuted.IsZero())
	}

	rolled, err := f.migrator.Rollback(ctx)
	require.NoError(t, err)
	require.NotNil(t, rolled)
	assert.Equal(t, "create_posts", rolled.Name)
	assert.False(t, f.hasTable("posts"))
	assert.True(t, f.hasTable("users"))

	list, err = f.migrator.Migrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateExecuted, list[0].State)
	assert.Equal(t, StatePending, list[1].State)

	version, dirty, err := f.migrator.Version()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(20240101000000), version)

	_, err = f.migrator.Rollback(ctx)
	require.NoError(t, err)
	rolled, err = f.migrator.Rollback(ctx)
	require.NoError(t, err)
	assert.Nil(t, rolled)
}

func TestMigrator_RunStopsOnBrokenMigration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.migrator.Init(ctx))

	f.write(t, "20240101000000_ok", "CREATE TABLE ok (id INTEGER);", "DROP TABLE ok;")
	f.write(t, "20240102000000_broken", "CREATE TABLE;", "SELECT 1;")

	executed, err := f.migrator.Run(ctx, 0)
	assert.Error(t, err)
	require.Len(t, executed, 1)
	assert.Equal(t, "ok", executed[0].Name)
}

func TestMigrator_CatalogIgnoresForeignFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.migrator.Init(ctx))

	f.write(t, "20240101000000_first", "SELECT 1;", "SELECT 1;")
	require.NoError(t, f.files.Write(filepath.Join(f.dir, "README.sql"), []byte("--"), files.ReadOnly, true))
	require.NoError(t, f.files.Write(filepath.Join(f.dir, "nested", "20240105000000_x.up.sql"), []byte("--"), files.ReadOnly, true))

	list, err := f.migrator.Migrations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "first", list[0].Name)
}

func TestMigrator_Create(t *testing.T) {
	f := newFixture(t)

	created, err := f.migrator.Create("Add Users Table", "users and their roles")
	require.NoError(t, err)
	assert.Equal(t, "20240301100001", created.Version)
	assert.Equal(t, "add_users_table", created.Name)
	assert.Equal(t, filepath.ToSlash(filepath.Join(f.dir, "20240301100001_add_users_table.up.sql")), created.UpPath)

	up, err := f.files.Read(created.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- Migration: add_users_table")
	assert.Contains(t, string(up), "-- Description: users and their roles")
	assert.Contains(t, string(up), "Write your UP migration SQL here")

	down, err := f.files.Read(created.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "(Rollback)")
	assert.Contains(t, string(down), "Write your DOWN migration SQL here")

	_, err = f.migrator.Create("!!!", "")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add users table", "add_users_table"},
		{"Add-Users-Table", "add_users_table"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"multiple___underscores", "multiple_underscores"},
		{"_leading", "leading"},
		{"trailing_", "trailing"},
		{"v2 schema", "v2_schema"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestDatabaseURL(t *testing.T) {
	url, err := databaseURL(&persistence.Database{Driver: "sqlite", DSN: "/tmp/app.db"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite3:///tmp/app.db", url)

	url, err = databaseURL(&persistence.Database{Driver: "postgres", DSN: "postgres://u:p@localhost:5432/app?sslmode=disable"})
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost:5432/app?sslmode=disable", url)

	_, err = databaseURL(&persistence.Database{Driver: "sqlite", DSN: ":memory:"})
	assert.Error(t, err)
}
