package migration

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"
	"text/template"
	"time"

	"github.com/helixframework/helix/internal/infrastructure/files"
	"go.uber.org/zap"
)

var (
	upTemplate = template.Must(template.New("up").Parse(`-- Migration: {{.Name}}
-- Created: {{.Timestamp}}
{{- if .Description}}
-- Description: {{.Description}}
{{- end}}

-- Write your UP migration SQL here

`))

	downTemplate = template.Must(template.New("down").Parse(`-- Migration: {{.Name}} (Rollback)
-- Created: {{.Timestamp}}

-- Write your DOWN migration SQL here

`))
)

// ErrInvalidName is returned when a migration name has no usable characters
var ErrInvalidName = errors.New("migration name must contain letters or digits")

// Created describes a generated migration file pair
type Created struct {
	Version     string
	Name        string
	Description string
	Timestamp   string
	UpPath      string
	DownPath    string
}

// Create writes an empty up/down migration pair versioned by the current time
func (m *Migrator) Create(name, description string) (*Created, error) {
	slug := sanitizeName(name)
	if slug == "" {
		return nil, ErrInvalidName
	}
	if err := m.files.EnsureDir(m.cfg.Directory); err != nil {
		return nil, err
	}

	now := m.now().UTC()
	version := now.Format(VersionLayout)
	base := path.Join(m.files.NormalizePath(m.cfg.Directory), version+"_"+slug)

	c := &Created{
		Version:     version,
		Name:        slug,
		Description: strings.TrimSpace(description),
		Timestamp:   now.Format(time.RFC3339),
		UpPath:      base + ".up.sql",
		DownPath:    base + ".down.sql",
	}
	if m.files.Exists(c.UpPath) || m.files.Exists(c.DownPath) {
		return nil, fmt.Errorf("migration %s already exists", path.Base(base))
	}

	if err := m.writeTemplate(c.UpPath, upTemplate, c); err != nil {
		return nil, fmt.Errorf("failed to create up migration: %w", err)
	}
	if err := m.writeTemplate(c.DownPath, downTemplate, c); err != nil {
		_ = m.files.Delete(c.UpPath)
		return nil, fmt.Errorf("failed to create down migration: %w", err)
	}

	m.logger.Info("Migration created", zap.String("version", version), zap.String("name", slug))
	return c, nil
}

func (m *Migrator) writeTemplate(filename string, tmpl *template.Template, data *Created) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return err
	}
	return m.files.Write(filename, buf.Bytes(), files.ReadOnly, true)
}

// sanitizeName lowercases name, drops punctuation and joins words with underscores
func sanitizeName(name string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			pending = true
		}
	}
	return b.String()
}
