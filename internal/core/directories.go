package core

import (
	"path"
	"sort"
	"strings"
)

// Directory aliases
const (
	DirRoot        = "root"
	DirPublic      = "public"
	DirLibraries   = "libraries"
	DirFramework   = "framework"
	DirApplication = "application"
	DirRuntime     = "runtime"
	DirConfig      = "config"
	DirCache       = "cache"
	DirViews       = "views"
	DirMigrations  = "migrations"
	DirLocales     = "locales"
	DirSnapshots   = "snapshots"
)

// Directories lists the application directories. Root is required; Application defaults
// to root/application and everything else is derived from those two.
type Directories struct {
	Root        string
	Public      string
	Libraries   string
	Framework   string
	Application string
	Runtime     string
	Config      string
	Cache       string
	Views       string
	Migrations  string
	Locales     string
}

func (d Directories) withDefaults() Directories {
	d.Root = clean(d.Root)
	d.Application = orDefault(d.Application, path.Join(d.Root, "application"))
	d.Public = orDefault(d.Public, path.Join(d.Root, "webroot"))
	d.Libraries = orDefault(d.Libraries, path.Join(d.Root, "vendor"))
	d.Config = orDefault(d.Config, path.Join(d.Application, "config"))
	d.Runtime = orDefault(d.Runtime, path.Join(d.Application, "runtime"))
	d.Cache = orDefault(d.Cache, path.Join(d.Runtime, "cache"))
	d.Views = orDefault(d.Views, path.Join(d.Application, "views"))
	d.Migrations = orDefault(d.Migrations, path.Join(d.Application, "migrations"))
	d.Locales = orDefault(d.Locales, path.Join(d.Application, "locales"))
	return d
}

func (d Directories) aliases() map[string]string {
	out := map[string]string{
		DirRoot:        d.Root,
		DirPublic:      d.Public,
		DirLibraries:   d.Libraries,
		DirApplication: d.Application,
		DirRuntime:     d.Runtime,
		DirConfig:      d.Config,
		DirCache:       d.Cache,
		DirViews:       d.Views,
		DirMigrations:  d.Migrations,
		DirLocales:     d.Locales,
		DirSnapshots:   path.Join(d.Runtime, "snapshots"),
	}
	if d.Framework != "" {
		out[DirFramework] = clean(d.Framework)
	}
	return out
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return clean(value)
}

func clean(dir string) string {
	dir = strings.ReplaceAll(dir, "\\", "/")
	if dir == "" {
		return "."
	}
	return path.Clean(dir)
}

// Directory returns the directory registered under alias
func (c *Core) Directory(alias string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	dir, ok := c.directories[alias]
	if !ok {
		return "", &CoreError{Code: CodeInvalidDirectory, Message: "undefined directory alias '" + alias + "'"}
	}
	return dir, nil
}

// MustDirectory is Directory for aliases that are always defined
func (c *Core) MustDirectory(alias string) string {
	dir, err := c.Directory(alias)
	if err != nil {
		panic(err)
	}
	return dir
}

// SetDirectory overrides or adds a directory alias
func (c *Core) SetDirectory(alias, dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.directories[alias] = clean(dir)
}

// Directories returns a copy of every directory alias
func (c *Core) Directories() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.directories))
	for k, v := range c.directories {
		out[k] = v
	}
	return out
}

// DirectoryAliases returns the defined directory aliases, sorted
func (c *Core) DirectoryAliases() []string {
	dirs := c.Directories()
	out := make([]string, 0, len(dirs))
	for alias := range dirs {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}
