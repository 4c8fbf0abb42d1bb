package reactor

import (
	"fmt"
	"go/ast"
	"go/token"

	"github.com/helixframework/helix/internal/infrastructure/files"
)

type dependency struct {
	name string
	typ  ast.Expr
}

type embedded struct {
	name string // field name used in the constructor literal
	typ  ast.Expr
	init ast.Expr
}

type methodDecl struct {
	doc  []string
	node *ast.FuncDecl
}

// prototype is a struct with constructor injected dependencies, shared by the service
// and controller generators
type prototype struct {
	file     *File
	name     string
	receiver string
	doc      []string
	embeds   []embedded
	deps     []dependency
	setup    []ast.Stmt
	methods  []methodDecl
}

func newPrototype(pkg, name, receiver string, imports []string) (*prototype, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return &prototype{
		file:     NewFile(pkg, imports...),
		name:     Camel(name),
		receiver: receiver,
	}, nil
}

// Name returns the generated type name
func (p *prototype) Name() string {
	return p.name
}

// File returns the file being generated
func (p *prototype) File() *File {
	return p.file
}

// AddDependency adds a field of type typ set by the constructor parameter name.
// Adding the same name twice keeps the first type.
func (p *prototype) AddDependency(name, typ string) error {
	if !token.IsIdentifier(name) {
		return fmt.Errorf("%w: dependency %q", ErrInvalidName, name)
	}
	for _, d := range p.deps {
		if d.name == name {
			return nil
		}
	}
	x, err := p.file.ParseType(typ)
	if err != nil {
		return err
	}
	p.deps = append(p.deps, dependency{name: name, typ: x})
	return nil
}

// Dependencies returns the dependency names in declaration order
func (p *prototype) Dependencies() []string {
	out := make([]string, len(p.deps))
	for i, d := range p.deps {
		out[i] = d.name
	}
	return out
}

func (p *prototype) addMethod(node *ast.FuncDecl, doc ...string) {
	p.methods = append(p.methods, methodDecl{doc: doc, node: node})
}

func (p *prototype) structDecl() *ast.GenDecl {
	list := make([]*ast.Field, 0, len(p.embeds)+len(p.deps))
	for _, e := range p.embeds {
		list = append(list, field("", e.typ))
	}
	for _, d := range p.deps {
		list = append(list, field(d.name, d.typ))
	}
	return typeDecl(p.name, &ast.StructType{Fields: fields(list...)})
}

func (p *prototype) constructor() *ast.FuncDecl {
	params := make([]*ast.Field, 0, len(p.deps))
	elts := make([]ast.Expr, 0, len(p.embeds)+len(p.deps))
	for _, e := range p.embeds {
		elts = append(elts, keyValue(e.name, e.init))
	}
	for _, d := range p.deps {
		params = append(params, field(d.name, d.typ))
		elts = append(elts, keyValue(d.name, ident(d.name)))
	}

	value := addr(composite(ident(p.name), elts...))
	result := fields(field("", star(ident(p.name))))

	if len(p.setup) == 0 {
		return function("New"+p.name, fields(params...), result, ret(value))
	}
	body := []ast.Stmt{define([]string{p.receiver}, value)}
	body = append(body, p.setup...)
	body = append(body, ret(ident(p.receiver)))
	return function("New"+p.name, fields(params...), result, body...)
}

func (p *prototype) build() *File {
	f := p.file
	clone := *f
	clone.decls = append([]declaration(nil), f.decls...)
	clone.AddDecl(p.structDecl(), p.doc...)
	clone.AddDecl(p.constructor(), fmt.Sprintf("New%s creates %s with its dependencies.", p.name, article(p.name)))
	for _, m := range p.methods {
		clone.AddDecl(m.node, m.doc...)
	}
	return &clone
}

// Render prints the generated source
func (p *prototype) Render() ([]byte, error) {
	return p.build().Render()
}

// Write renders the source into filename, failing with ErrExists when it exists
func (p *prototype) Write(fm *files.Manager, filename string) error {
	return p.build().Write(fm, filename)
}

// ServiceGenerator generates a service struct with its dependencies and constructor
type ServiceGenerator struct {
	*prototype
}

// NewServiceGenerator creates a generator of <Name>Service in package pkg. imports make
// extra packages available to dependency types.
func NewServiceGenerator(pkg, name string, imports ...string) (*ServiceGenerator, error) {
	p, err := newPrototype(pkg, name+"_service", "s", imports)
	if err != nil {
		return nil, err
	}
	p.doc = []string{p.name + " implements " + LowerCamel(name) + " operations."}
	return &ServiceGenerator{prototype: p}, nil
}

func article(name string) string {
	switch name[0] {
	case 'A', 'E', 'I', 'O', 'U':
		return "an " + name
	default:
		return "a " + name
	}
}
