// Package testutil provides helpers shared by the dispatcher and command tests: cores
// on in-memory or temporary filesystems, and HTTP request helpers.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/helixframework/helix/internal/core"
	"github.com/helixframework/helix/internal/infrastructure/files"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MemoryRoot is the root directory of cores created by NewCore
const MemoryRoot = "/app"

// SQLiteSettings configures a single-connection sqlite database inside the root
const SQLiteSettings = `
[app]
name = "demo"

[database.connections.default]
driver = "sqlite"
dsn = "app.db"
max_open_conns = 1
max_idle_conns = 1
`

// NewCore initialises a core rooted at MemoryRoot on an in-memory filesystem. Logs go
// to the test log and snapshots without a dispatcher are discarded.
func NewCore(t *testing.T, opts ...core.Option) *core.Core {
	t.Helper()
	return initCore(t, MemoryRoot, files.NewMemory(), opts)
}

// NewDiskCore initialises a core rooted at a temporary directory holding settings as
// helix.toml, and returns the root
func NewDiskCore(t *testing.T, settings string, opts ...core.Option) (*core.Core, string) {
	t.Helper()
	root := t.TempDir()
	WriteFile(t, root, "helix.toml", settings)
	return initCore(t, root, files.New(afero.NewOsFs()), opts), root
}

func initCore(t *testing.T, root string, fm *files.Manager, opts []core.Option) *core.Core {
	t.Helper()
	opts = append([]core.Option{
		core.WithFiles(fm),
		core.WithLogger(zaptest.NewLogger(t)),
		core.WithStderr(&bytes.Buffer{}),
	}, opts...)

	c, err := core.Init(core.Directories{Root: root}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// WriteFile writes content to name below root, creating parent directories
func WriteFile(t *testing.T, root, name, content string) {
	t.Helper()
	filename := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(filename), 0o755))
	require.NoError(t, os.WriteFile(filename, []byte(content), 0o644))
}
