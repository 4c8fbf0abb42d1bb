package config

import (
	"errors"
	"testing"
	"time"

	"github.com/helixframework/helix/internal/infrastructure/files"
	"github.com/helixframework/helix/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type configuratorFixture struct {
	files  *files.Manager
	memory *memory.FileMemory
	env    string
	c      *Configurator
}

func newConfiguratorFixture(t *testing.T) *configuratorFixture {
	t.Helper()
	f := &configuratorFixture{files: files.NewMemory(), env: "development"}
	f.memory = memory.NewFileMemory(f.files, "/app/runtime/cache", func() uint32 { return 1 })
	f.c = NewConfigurator(f.files, "/app/config", func() string { return f.env }, WithMemory(f.memory))
	return f
}

func (f *configuratorFixture) write(t *testing.T, filename, content string, at time.Time) {
	t.Helper()
	require.NoError(t, f.files.Write(filename, []byte(content), files.ReadOnly, true))
	require.NoError(t, f.files.Touch(filename, at))
}

func TestConfigurator_GetConfig(t *testing.T) {
	f := newConfiguratorFixture(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f.write(t, "/app/config/views.toml", "extension = \"tpl\"\ndepth = 3\n\n[cache]\nenabled = true\n", base)

	data, err := f.c.GetConfig("views")
	require.NoError(t, err)
	assert.Equal(t, "tpl", data["extension"])
	assert.Equal(t, float64(3), data["depth"])
	assert.Equal(t, map[string]any{"enabled": true}, data["cache"])

	assert.True(t, f.files.Exists(f.memory.Filename("config-views", "")))
}

func TestConfigurator_EnvironmentOverride(t *testing.T) {
	f := newConfiguratorFixture(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f.write(t, "/app/config/views.toml", "extension = \"tpl\"\n\n[cache]\nenabled = true\ndirectory = \"/cache\"\n", base)
	f.write(t, "/app/config/production/views.yaml", "cache:\n  enabled: false\n", base)

	f.env = "production"
	data, err := f.c.GetConfig("views")
	require.NoError(t, err)

	assert.Equal(t, "tpl", data["extension"])
	// Overrides replace whole top-level keys.
	assert.Equal(t, map[string]any{"enabled": false}, data["cache"])
}

func TestConfigurator_ReloadsChangedSource(t *testing.T) {
	f := newConfiguratorFixture(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f.write(t, "/app/config/app.json", `{"name": "first"}`, base)

	data, err := f.c.GetConfig("app")
	require.NoError(t, err)
	assert.Equal(t, "first", data["name"])

	// Same mtime: the cached copy wins even though content differs.
	f.write(t, "/app/config/app.json", `{"name": "second"}`, base)
	data, err = f.c.GetConfig("app")
	require.NoError(t, err)
	assert.Equal(t, "first", data["name"])

	f.write(t, "/app/config/app.json", `{"name": "third"}`, base.Add(time.Minute))
	data, err = f.c.GetConfig("app")
	require.NoError(t, err)
	assert.Equal(t, "third", data["name"])
}

func TestConfigurator_MissingSection(t *testing.T) {
	f := newConfiguratorFixture(t)

	_, err := f.c.GetConfig("absent")
	require.Error(t, err)

	var cfgErr *ConfiguratorError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "absent", cfgErr.Section)
	assert.ErrorIs(t, err, ErrSectionNotFound)
}

func TestConfigurator_SectionsAndDecode(t *testing.T) {
	f := newConfiguratorFixture(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f.write(t, "/app/config/views.toml", "extension = \"tpl\"\n[namespaces]\ndefault = [\"/app/views\"]\n", base)
	f.write(t, "/app/config/i18n.yml", "default: en\n", base)
	f.write(t, "/app/config/production/views.toml", "extension = \"html\"\n", base)
	f.write(t, "/app/config/README.md", "notes", base)

	sections, err := f.c.Sections()
	require.NoError(t, err)
	assert.Equal(t, []string{"i18n", "views"}, sections)

	type viewsSection struct {
		Extension  string
		Namespaces map[string][]string
	}
	decoded, err := Section[viewsSection](f.c, "views")
	require.NoError(t, err)
	assert.Equal(t, "tpl", decoded.Extension)
	assert.Equal(t, []string{"/app/views"}, decoded.Namespaces["default"])
}
