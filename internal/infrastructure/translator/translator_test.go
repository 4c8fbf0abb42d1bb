package translator

import (
	"testing"

	"github.com/helixframework/helix/internal/infrastructure/files"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTranslator(t *testing.T) *Translator {
	t.Helper()
	fm := files.NewMemory()
	require.NoError(t, fm.Write("/app/locales/ru.toml", []byte(`
"Welcome" = "Добро пожаловать"
"Hello, {{.Name}}" = "Привет, {{.Name}}"
`), files.ReadOnly, true))
	require.NoError(t, fm.Write("/app/locales/de.yaml", []byte("Welcome: Willkommen\n"), files.ReadOnly, true))
	require.NoError(t, fm.Write("/app/locales/README.md", []byte("ignored"), files.ReadOnly, true))

	tr, err := New(fm, Config{Directory: "/app/locales"}, nil)
	require.NoError(t, err)
	return tr
}

func TestTranslator_Translate(t *testing.T) {
	tr := newTranslator(t)

	assert.Equal(t, "en", tr.Language())
	assert.Equal(t, []string{"de", "ru"}, tr.Languages())
	assert.Equal(t, "Welcome", tr.Translate("Welcome"))

	require.NoError(t, tr.SetLanguage("ru"))
	assert.Equal(t, "Добро пожаловать", tr.Translate("Welcome"))
	assert.Equal(t, "Привет, Ann", tr.TranslateWith("Hello, {{.Name}}", map[string]any{"Name": "Ann"}))
	assert.Equal(t, "Untranslated", tr.Translate("Untranslated"))

	require.NoError(t, tr.SetLanguage("de"))
	assert.Equal(t, "Willkommen", tr.Translate("Welcome"))
}

func TestTranslator_SetLanguageValidates(t *testing.T) {
	tr := newTranslator(t)
	assert.Error(t, tr.SetLanguage("not a tag!"))
	assert.Equal(t, "en", tr.Language())
}

func TestTranslator_Localizer(t *testing.T) {
	tr := newTranslator(t)
	msg, err := tr.Localizer("ru").Localize(&i18n.LocalizeConfig{MessageID: "Welcome"})
	require.NoError(t, err)
	assert.Equal(t, "Добро пожаловать", msg)
	assert.Equal(t, "en", tr.Language())
}

func TestNew_MissingDirectory(t *testing.T) {
	tr, err := New(files.NewMemory(), Config{Directory: "/absent", Default: "fr"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "fr", tr.Language())
	assert.Empty(t, tr.Languages())
	assert.Equal(t, "text", tr.Translate("text"))
}
