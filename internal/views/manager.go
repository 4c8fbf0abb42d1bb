// Package views locates view templates, compiles them through a processor pipeline
// into a cache directory and renders the compiled output.
package views

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/helixframework/helix/internal/core/container"
	"github.com/helixframework/helix/internal/infrastructure/files"
	"go.uber.org/zap"
)

// ErrViewNotFound is returned when no namespace directory holds the requested view
var ErrViewNotFound = errors.New("view not found")

// Translator translates view text for the active language
type Translator interface {
	Translate(text string) string
	Language() string
}

// DependencyFunc returns a value compiled views depend on. Views are compiled once per
// distinct set of dependency values.
type DependencyFunc func() string

// Manager is the entry point for compiling and rendering views
type Manager struct {
	cfg        Config
	files      *files.Manager
	container  *container.Container
	translator Translator
	logger     *zap.Logger

	mu           sync.RWMutex
	dependencies map[string]DependencyFunc
	templates    map[string]parsedTemplate
}

type parsedTemplate struct {
	modified time.Time
	tmpl     *template.Template
}

// Option configures a Manager
type Option func(*Manager)

// WithTranslator sets the translator used by the translator processor and the language dependency
func WithTranslator(t Translator) Option {
	return func(m *Manager) {
		m.translator = t
	}
}

// WithLogger sets the manager logger
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithDependency registers an additional compile-time dependency
func WithDependency(name string, fn DependencyFunc) Option {
	return func(m *Manager) {
		m.dependencies[name] = fn
	}
}

// NewManager creates a view manager. Processors are resolved from c by the
// "views.processor.<name>" alias.
func NewManager(cfg Config, fm *files.Manager, c *container.Container, environment func() string, opts ...Option) *Manager {
	cfg.applyDefaults()
	m := &Manager{
		cfg:          cfg,
		files:        fm,
		container:    c,
		logger:       zap.NewNop(),
		dependencies: map[string]DependencyFunc{},
		templates:    map[string]parsedTemplate{},
	}
	m.dependencies["environment"] = environment
	m.dependencies["language"] = func() string {
		if m.translator == nil {
			return ""
		}
		return m.translator.Language()
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Config returns the active configuration
func (m *Manager) Config() Config {
	return m.cfg
}

// Files returns the file manager views are read and written with
func (m *Manager) Files() *files.Manager {
	return m.files
}

// Translator returns the configured translator, nil when none was set
func (m *Manager) Translator() Translator {
	return m.translator
}

// Logger returns the manager logger
func (m *Manager) Logger() *zap.Logger {
	return m.logger
}

// AddNamespace appends a directory to a namespace
func (m *Manager) AddNamespace(namespace, directory string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.Namespaces[namespace] = append(m.cfg.Namespaces[namespace], directory)
}

// Namespaces returns the configured namespace names, sorted
func (m *Manager) Namespaces() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.cfg.Namespaces))
	for ns := range m.cfg.Namespaces {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// AddDependency registers a compile-time dependency
func (m *Manager) AddDependency(name string, fn DependencyFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dependencies[name] = fn
}

// Dependencies returns dependency values ordered by dependency name
func (m *Manager) Dependencies() []string {
	names, values := m.dependencyValues()
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = values[name]
	}
	return out
}

// DependencyMap returns the current dependency values by name
func (m *Manager) DependencyMap() map[string]string {
	_, values := m.dependencyValues()
	return values
}

func (m *Manager) dependencyValues() ([]string, map[string]string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.dependencies))
	values := make(map[string]string, len(m.dependencies))
	for name, fn := range m.dependencies {
		names = append(names, name)
		if fn != nil {
			values[name] = fn()
		}
	}
	sort.Strings(names)
	return names, values
}

// ParseName splits "namespace:view" into its parts, defaulting the namespace
func ParseName(name string) (namespace, view string) {
	if ns, v, ok := strings.Cut(name, ":"); ok {
		return ns, v
	}
	return DefaultNamespace, name
}

// Filename locates the source file of a view
func (m *Manager) Filename(namespace, view string) (string, error) {
	m.mu.RLock()
	dirs, ok := m.cfg.Namespaces[namespace]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: undefined namespace %q", ErrViewNotFound, namespace)
	}

	name := strings.TrimSuffix(view, "."+m.cfg.Extension) + "." + m.cfg.Extension
	for _, dir := range dirs {
		filename := path.Join(m.files.NormalizePath(dir), name)
		if m.files.Exists(filename) {
			return filename, nil
		}
	}
	return "", fmt.Errorf("%w: %s:%s", ErrViewNotFound, namespace, view)
}

// Views lists the view names of a namespace, without extension
func (m *Manager) Views(namespace string) ([]string, error) {
	m.mu.RLock()
	dirs, ok := m.cfg.Namespaces[namespace]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: undefined namespace %q", ErrViewNotFound, namespace)
	}

	seen := map[string]bool{}
	var out []string
	for _, dir := range dirs {
		found, err := m.files.GetFiles(dir, m.cfg.Extension)
		if err != nil {
			return nil, err
		}
		for _, filename := range found {
			view := strings.TrimSuffix(m.files.RelativePath(filename, dir), "."+m.cfg.Extension)
			if !seen[view] {
				seen[view] = true
				out = append(out, view)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// Compiler creates a compiler for a view
func (m *Manager) Compiler(namespace, view string) (*Compiler, error) {
	filename, err := m.Filename(namespace, view)
	if err != nil {
		return nil, err
	}
	return &Compiler{views: m, namespace: namespace, view: view, filename: filename}, nil
}

// Compile compiles a view unless an up to date compiled file exists and returns the
// compiled filename.
func (m *Manager) Compile(namespace, view string) (string, error) {
	compiler, err := m.Compiler(namespace, view)
	if err != nil {
		return "", err
	}
	if !compiler.IsCompiled() {
		if _, err := compiler.Compile(); err != nil {
			return "", err
		}
	}
	return compiler.CompiledFilename(), nil
}

// CompileAll recompiles every view of every namespace
func (m *Manager) CompileAll() ([]string, error) {
	var compiled []string
	var errs []error
	for _, ns := range m.Namespaces() {
		views, err := m.Views(ns)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, view := range views {
			compiler, err := m.Compiler(ns, view)
			if err == nil {
				_, err = compiler.Compile()
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("%s:%s: %w", ns, view, err))
				continue
			}
			compiled = append(compiled, ns+":"+view)
		}
	}
	return compiled, errors.Join(errs...)
}

// Render compiles (when needed) and executes the "namespace:view" template into w
func (m *Manager) Render(ctx context.Context, w io.Writer, name string, data any) error {
	namespace, view := ParseName(name)
	filename, err := m.Compile(namespace, view)
	if err != nil {
		return err
	}

	tmpl, err := m.template(filename)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	return nil
}

// RenderString renders a view into a string
func (m *Manager) RenderString(ctx context.Context, name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := m.Render(ctx, &buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// template parses a compiled file, reusing the parsed template while the file is unchanged
func (m *Manager) template(filename string) (*template.Template, error) {
	modified, err := m.files.Time(filename)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	cached, ok := m.templates[filename]
	m.mu.RUnlock()
	if ok && cached.modified.Equal(modified) {
		return cached.tmpl, nil
	}

	source, err := m.files.Read(filename)
	if err != nil {
		return nil, err
	}
	tmpl, err := template.New(path.Base(filename)).Parse(string(source))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	m.mu.Lock()
	m.templates[filename] = parsedTemplate{modified: modified, tmpl: tmpl}
	m.mu.Unlock()
	return tmpl, nil
}
