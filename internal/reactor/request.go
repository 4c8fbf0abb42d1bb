package reactor

import (
	"fmt"
	"go/ast"
	"go/token"
	"strconv"

	"github.com/helixframework/helix/internal/infrastructure/files"
)

// RequestField describes one field of a generated request
type RequestField struct {
	Name string
	Type string
	// Rules is the validator tag, e.g. "required,email"
	Rules string
}

// RequestGenerator generates a request struct validated with go-playground/validator
// tags and a Fields method returning its values keyed by field name
type RequestGenerator struct {
	file   *File
	name   string
	fields []*ast.Field
	keys   []string
	names  []string
}

// NewRequestGenerator creates a generator of <Name>Request in package pkg
func NewRequestGenerator(pkg, name string, imports ...string) (*RequestGenerator, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return &RequestGenerator{file: NewFile(pkg, imports...), name: Camel(name) + "Request"}, nil
}

// Name returns the generated type name
func (g *RequestGenerator) Name() string {
	return g.name
}

// AddField adds a field. The JSON key is the snake case name.
func (g *RequestGenerator) AddField(f RequestField) error {
	if !validName(f.Name) {
		return fmt.Errorf("%w: field %q", ErrInvalidName, f.Name)
	}
	name, key := Camel(f.Name), Snake(f.Name)
	for _, existing := range g.names {
		if existing == name {
			return fmt.Errorf("reactor: field %q is already defined", f.Name)
		}
	}

	typ := f.Type
	if typ == "" {
		typ = "string"
	}
	x, err := g.file.ParseType(typ)
	if err != nil {
		return err
	}

	tag := fmt.Sprintf("json:%s", strconv.Quote(key))
	if f.Rules != "" {
		tag += fmt.Sprintf(" validate:%s", strconv.Quote(f.Rules))
	}
	sf := field(name, x)
	sf.Tag = &ast.BasicLit{Kind: token.STRING, Value: "`" + tag + "`"}

	g.fields = append(g.fields, sf)
	g.keys = append(g.keys, key)
	g.names = append(g.names, name)
	return nil
}

func (g *RequestGenerator) build() *File {
	f := *g.file
	f.decls = append([]declaration(nil), g.file.decls...)

	f.AddDecl(typeDecl(g.name, &ast.StructType{Fields: fields(g.fields...)}),
		g.name+" is validated input bound from action params.")

	elts := make([]ast.Expr, len(g.keys))
	for i, key := range g.keys {
		elts[i] = &ast.KeyValueExpr{Key: str(key), Value: sel("r", g.names[i])}
	}
	fieldsMethod := method("r", g.name, "Fields", fields(),
		fields(field("", mapOf(ident("string"), ident("any")))),
		ret(composite(mapOf(ident("string"), ident("any")), elts...)),
	)
	f.AddDecl(fieldsMethod, "Fields returns the request values keyed by entity field.")
	return &f
}

// Render prints the generated source
func (g *RequestGenerator) Render() ([]byte, error) {
	return g.build().Render()
}

// Write renders the source into filename, failing with ErrExists when it exists
func (g *RequestGenerator) Write(fm *files.Manager, filename string) error {
	return g.build().Write(fm, filename)
}
