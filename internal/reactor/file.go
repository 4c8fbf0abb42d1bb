// Package reactor generates Go source for controllers, services and requests. Sources
// are assembled as go/ast nodes and printed with go/format.
package reactor

import (
	"bytes"
	"errors"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/helixframework/helix/internal/infrastructure/files"
)

// ModulePath is the import path of the framework packages generated code refers to
const ModulePath = "github.com/helixframework/helix"

var (
	// ErrExists is returned when a generated file would overwrite an existing one
	ErrExists = errors.New("reactor: file already exists")
	// ErrInvalidName is returned for names that do not form a Go identifier
	ErrInvalidName = errors.New("reactor: invalid name")
)

var (
	versionSuffix = regexp.MustCompile(`^v[0-9]+$`)
	gopkgSuffix   = regexp.MustCompile(`\.v[0-9]+$`)
)

// knownPackages resolve type qualifiers without an explicit import
var knownPackages = map[string]string{
	"context": "context",
	"http":    "net/http",
	"time":    "time",
	"core":    ModulePath + "/internal/core",
	"dto":     ModulePath + "/internal/interfaces/http/dto",
	"orm":     ModulePath + "/internal/orm",
	"gorm":    "gorm.io/gorm",
	"zap":     "go.uber.org/zap",
}

type declaration struct {
	doc  []string
	node ast.Decl
}

// File is one generated Go source file
type File struct {
	pkg      string
	comment  []string
	imports  map[string]string // path -> package name
	packages map[string]string // package name -> path
	decls    []declaration
}

// NewFile creates an empty file of package pkg. Extra import paths make their packages
// available as type qualifiers.
func NewFile(pkg string, imports ...string) *File {
	f := &File{
		pkg:      pkg,
		imports:  make(map[string]string),
		packages: make(map[string]string),
	}
	for name, p := range knownPackages {
		f.packages[name] = p
	}
	for _, p := range imports {
		f.packages[PackageName(p)] = p
	}
	return f
}

// PackageName derives the package name from an import path, skipping major version
// suffixes: "github.com/redis/go-redis/v9" has package "redis".
func PackageName(importPath string) string {
	parts := strings.Split(strings.Trim(importPath, "/"), "/")
	name := parts[len(parts)-1]
	if versionSuffix.MatchString(name) && len(parts) > 1 {
		name = parts[len(parts)-2]
	}
	name = gopkgSuffix.ReplaceAllString(name, "")
	name = strings.TrimPrefix(name, "go-")
	return strings.NewReplacer("-", "", ".", "").Replace(name)
}

// Package returns the package clause name
func (f *File) Package() string {
	return f.pkg
}

// SetComment sets the comment lines printed above the package clause
func (f *File) SetComment(lines ...string) {
	f.comment = lines
}

// Import adds importPath and returns the name it is referred to by
func (f *File) Import(importPath string) (string, error) {
	name := PackageName(importPath)
	if existing, ok := f.imports[importPath]; ok {
		return existing, nil
	}
	for p, n := range f.imports {
		if n == name {
			return "", fmt.Errorf("reactor: package name %q of %s is already used by %s", name, importPath, p)
		}
	}
	f.imports[importPath] = name
	f.packages[name] = importPath
	return name, nil
}

// Imports returns the imported paths, sorted
func (f *File) Imports() []string {
	out := make([]string, 0, len(f.imports))
	for p := range f.imports {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// ParseType parses a type expression such as "*orm.Repository[models.User]" and
// imports the packages it qualifies with.
func (f *File) ParseType(typ string) (ast.Expr, error) {
	x, err := parser.ParseExpr(typ)
	if err != nil {
		return nil, fmt.Errorf("reactor: invalid type %q: %w", typ, err)
	}
	if err := f.use(x); err != nil {
		return nil, err
	}
	return x, nil
}

// use imports every package a type expression refers to
func (f *File) use(x ast.Expr) error {
	var err error
	ast.Inspect(x, func(n ast.Node) bool {
		if err != nil {
			return false
		}
		s, ok := n.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		qualifier, ok := s.X.(*ast.Ident)
		if !ok {
			return true
		}
		p, known := f.packages[qualifier.Name]
		if !known {
			err = fmt.Errorf("reactor: unknown package %q, pass its import path", qualifier.Name)
			return false
		}
		_, err = f.Import(p)
		return false
	})
	return err
}

// AddDecl appends a declaration preceded by doc comment lines
func (f *File) AddDecl(node ast.Decl, doc ...string) {
	f.decls = append(f.decls, declaration{doc: doc, node: node})
}

// Render prints the file as gofmt formatted source
func (f *File) Render() ([]byte, error) {
	fset := token.NewFileSet()
	var buf bytes.Buffer

	writeComment(&buf, f.comment)
	fmt.Fprintf(&buf, "package %s\n", f.pkg)

	if err := f.renderImports(&buf, fset); err != nil {
		return nil, err
	}

	for _, d := range f.decls {
		buf.WriteString("\n")
		writeComment(&buf, d.doc)
		if err := format.Node(&buf, fset, d.node); err != nil {
			return nil, fmt.Errorf("reactor: print declaration: %w", err)
		}
		buf.WriteString("\n")
	}

	out, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("reactor: format source: %w", err)
	}
	return out, nil
}

func writeComment(buf *bytes.Buffer, lines []string) {
	for _, line := range lines {
		if line == "" {
			buf.WriteString("//\n")
			continue
		}
		buf.WriteString("// " + line + "\n")
	}
}

// renderImports prints standard library imports first, then the rest
func (f *File) renderImports(buf *bytes.Buffer, fset *token.FileSet) error {
	if len(f.imports) == 0 {
		return nil
	}

	var std, other []string
	for _, p := range f.Imports() {
		if strings.Contains(strings.SplitN(p, "/", 2)[0], ".") {
			other = append(other, p)
		} else {
			std = append(std, p)
		}
	}

	buf.WriteString("\nimport (\n")
	for i, group := range [][]string{std, other} {
		if i > 0 && len(std) > 0 && len(group) > 0 {
			buf.WriteString("\n")
		}
		for _, p := range group {
			spec := &ast.ImportSpec{Path: &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(p)}}
			if f.imports[p] != path.Base(p) {
				spec.Name = ident(f.imports[p])
			}
			buf.WriteString("\t")
			if err := format.Node(buf, fset, spec); err != nil {
				return fmt.Errorf("reactor: print import: %w", err)
			}
			buf.WriteString("\n")
		}
	}
	buf.WriteString(")\n")
	return nil
}

// Write renders the file into filename. Existing files are never overwritten.
func (f *File) Write(fm *files.Manager, filename string) error {
	if fm.Exists(filename) {
		return fmt.Errorf("%w: %s", ErrExists, filename)
	}
	data, err := f.Render()
	if err != nil {
		return err
	}
	return fm.Write(filename, data, files.ReadOnly, true)
}
