// Package translator loads message catalogs from the locales directory and translates
// interface strings for the active language.
package translator

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"sync"

	"github.com/helixframework/helix/internal/infrastructure/files"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Config describes where catalogs live and which language to start with.
type Config struct {
	Directory string
	Default   string // default language, "en" when empty
	Fallback  string // language used for missing messages, Default when empty
}

// Translator translates message ids. A message id is the untranslated text itself, so
// missing translations degrade to the original text.
type Translator struct {
	bundle    *i18n.Bundle
	fallback  language.Tag
	logger    *zap.Logger
	languages []string

	mu        sync.RWMutex
	language  language.Tag
	localizer *i18n.Localizer
}

// New loads every *.toml, *.yaml, *.yml and *.json catalog found in cfg.Directory.
// Catalog file names carry their language, as go-i18n expects: "ru.toml", "active.de.yaml".
func New(fm *files.Manager, cfg Config, logger *zap.Logger) (*Translator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Default == "" {
		cfg.Default = "en"
	}
	if cfg.Fallback == "" {
		cfg.Fallback = cfg.Default
	}

	fallback, err := language.Parse(cfg.Fallback)
	if err != nil {
		return nil, fmt.Errorf("translator: fallback language: %w", err)
	}
	initial, err := language.Parse(cfg.Default)
	if err != nil {
		return nil, fmt.Errorf("translator: default language: %w", err)
	}

	bundle := i18n.NewBundle(fallback)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)
	bundle.RegisterUnmarshalFunc("yml", yaml.Unmarshal)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	t := &Translator{bundle: bundle, fallback: fallback, logger: logger}

	catalogs, err := fm.GetFiles(cfg.Directory, "")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, filename := range catalogs {
		switch files.Extension(filename) {
		case "toml", "yaml", "yml", "json":
		default:
			continue
		}
		data, err := fm.Read(filename)
		if err != nil {
			return nil, err
		}
		catalog, err := bundle.ParseMessageFileBytes(data, path.Base(filename))
		if err != nil {
			return nil, fmt.Errorf("translator: %s: %w", filename, err)
		}
		seen[catalog.Tag.String()] = true
	}
	for tag := range seen {
		t.languages = append(t.languages, tag)
	}
	sort.Strings(t.languages)

	t.setLanguage(initial)
	return t, nil
}

// Language returns the active language tag.
func (t *Translator) Language() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.language.String()
}

// Languages lists languages that have at least one catalog.
func (t *Translator) Languages() []string {
	return append([]string(nil), t.languages...)
}

// SetLanguage switches the active language. The tag must be a valid BCP 47 tag.
func (t *Translator) SetLanguage(tag string) error {
	parsed, err := language.Parse(tag)
	if err != nil {
		return fmt.Errorf("translator: invalid language %q: %w", tag, err)
	}
	t.setLanguage(parsed)
	return nil
}

func (t *Translator) setLanguage(tag language.Tag) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.language = tag
	t.localizer = i18n.NewLocalizer(t.bundle, tag.String(), t.fallback.String())
}

// Translate returns text in the active language, or text itself when no catalog has it.
func (t *Translator) Translate(text string) string {
	return t.TranslateWith(text, nil)
}

// TranslateWith translates text and executes it as a template against data.
func (t *Translator) TranslateWith(text string, data map[string]any) string {
	t.mu.RLock()
	localizer := t.localizer
	t.mu.RUnlock()

	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    text,
		TemplateData: data,
		DefaultMessage: &i18n.Message{
			ID:    text,
			Other: text,
		},
	})
	if err != nil {
		t.logger.Debug("translation failed", zap.String("text", text), zap.Error(err))
		return text
	}
	return msg
}

// Localizer returns a localizer for an explicit language, leaving the active one untouched.
func (t *Translator) Localizer(tag string) *i18n.Localizer {
	return i18n.NewLocalizer(t.bundle, tag, t.fallback.String())
}
