package reactor

import (
	"fmt"
	"go/ast"
	"go/token"
	"strings"

	"github.com/helixframework/helix/internal/infrastructure/files"
)

// CRUDPageSize is the page size of generated retrieve actions
const CRUDPageSize = 50

// ControllerGenerator generates a controller embedding core.BaseController whose
// constructor registers the controller actions
type ControllerGenerator struct {
	*prototype
	controller string
	actions    []string
}

// NewControllerGenerator creates a generator of <Name>Controller in package pkg.
// imports make extra packages available to dependency and request types.
func NewControllerGenerator(pkg, name string, imports ...string) (*ControllerGenerator, error) {
	p, err := newPrototype(pkg, name+"_controller", "c", imports)
	if err != nil {
		return nil, err
	}
	for _, pkgPath := range []string{"context", knownPackages["core"]} {
		if _, err := p.file.Import(pkgPath); err != nil {
			return nil, err
		}
	}
	p.doc = []string{p.name + " handles " + LowerCamel(name) + " actions."}
	p.embeds = []embedded{{
		name: "BaseController",
		typ:  sel("core", "BaseController"),
		init: call(sel("core", "NewBaseController"), str(Snake(name))),
	}}
	return &ControllerGenerator{prototype: p, controller: Snake(name)}, nil
}

// Actions returns the registered action names
func (g *ControllerGenerator) Actions() []string {
	return append([]string(nil), g.actions...)
}

// SetDefaultAction changes the action executed for an empty action name
func (g *ControllerGenerator) SetDefaultAction(action string) {
	g.setup = append(g.setup, assign(sel(g.receiver, "DefaultAction"), str(action)))
}

// AddAction adds an action method with the given body; the constructor registers it
// under action.
func (g *ControllerGenerator) AddAction(action string, body []ast.Stmt, doc ...string) error {
	if !validName(action) {
		return fmt.Errorf("%w: action %q", ErrInvalidName, action)
	}
	for _, a := range g.actions {
		if a == action {
			return fmt.Errorf("reactor: action %q is already defined", action)
		}
	}

	name := Camel(action)
	params := fields(
		field("ctx", sel("context", "Context")),
		field("params", mapOf(ident("string"), ident("any"))),
	)
	results := fields(field("", ident("any")), field("", ident("error")))
	g.addMethod(method(g.receiver, g.name, name, params, results, body...), doc...)

	g.setup = append(g.setup, exprStmt(call(sel(g.receiver, "HandleAction"), str(action), sel(g.receiver, name))))
	g.actions = append(g.actions, action)
	return nil
}

func (g *ControllerGenerator) build() (*File, error) {
	if len(g.actions) == 0 {
		err := g.AddAction("index", []ast.Stmt{ret(str(""), ident("nil"))},
			"Index is the default action.")
		if err != nil {
			return nil, err
		}
	}
	return g.prototype.build(), nil
}

// Render prints the generated source
func (g *ControllerGenerator) Render() ([]byte, error) {
	f, err := g.build()
	if err != nil {
		return nil, err
	}
	return f.Render()
}

// Write renders the source into filename, failing with ErrExists when it exists
func (g *ControllerGenerator) Write(fm *files.Manager, filename string) error {
	f, err := g.build()
	if err != nil {
		return err
	}
	return f.Write(fm, filename)
}

// CreateCRUD adds retrieve, show, update, create and delete actions over the service of
// entity name. serviceType must provide the orm.Repository methods; requestType, when
// not empty, is a request struct with a Fields method that is bound and validated
// before update and create.
func (g *ControllerGenerator) CreateCRUD(name, serviceType, requestType string) error {
	if !validName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	plural := Plural(name)
	if err := g.AddDependency(plural, serviceType); err != nil {
		return err
	}

	var request ast.Expr
	if requestType != "" {
		x, err := g.file.ParseType(strings.TrimPrefix(requestType, "*"))
		if err != nil {
			return err
		}
		request = x
	}
	for _, pkgPath := range []string{"net/http", knownPackages["dto"]} {
		if _, err := g.file.Import(pkgPath); err != nil {
			return err
		}
	}

	c := crud{receiver: g.receiver, service: plural, request: request}
	actions := []struct {
		name string
		body []ast.Stmt
		doc  string
	}{
		{"retrieve", c.retrieve(), fmt.Sprintf("Retrieve lists %s, %d per page.", plural, CRUDPageSize)},
		{"show", c.show(), fmt.Sprintf("Show fetches one of %s by id.", plural)},
		{"update", c.update(), fmt.Sprintf("Update changes one of %s.", plural)},
		{"create", c.create(), fmt.Sprintf("Create adds one to %s.", plural)},
		{"delete", c.delete(), fmt.Sprintf("Delete removes one of %s by id.", plural)},
	}

	g.SetDefaultAction("retrieve")
	for _, a := range actions {
		if err := g.AddAction(a.name, a.body, a.doc); err != nil {
			return err
		}
	}
	return nil
}

// crud builds the bodies of generated CRUD actions
type crud struct {
	receiver string
	service  string
	request  ast.Expr
}

func (c crud) serviceCall(name string, args ...ast.Expr) *ast.CallExpr {
	return call(sel(c.receiver, c.service, name), args...)
}

func (c crud) retrieve() []ast.Stmt {
	paginate := call(
		&ast.SelectorExpr{X: c.serviceCall("Find"), Sel: ident("Paginate")},
		ident("ctx"),
		call(sel("dto", "IntParam"), ident("params"), str("page"), integer(1)),
		integer(CRUDPageSize),
	)
	return []ast.Stmt{
		define([]string{"page", "err"}, paginate),
		ifErr(ident("nil"), ident("err")),
		ret(call(sel("dto", "NewPageResponse"), ident("page")), ident("nil")),
	}
}

// load fetches the entity of params["id"] or fails with 404
func (c crud) load() []ast.Stmt {
	return []ast.Stmt{
		define([]string{"entity", "err"}, c.serviceCall("FindByPK", ident("ctx"), index(ident("params"), str("id")))),
		ifErr(ident("nil"), ident("err")),
		ifStmt(nil, binary(ident("entity"), token.EQL, ident("nil")),
			ret(ident("nil"), call(sel("dto", "NotFound")))),
	}
}

// input binds the request, returning the expression of the entity fields
func (c crud) input() ([]ast.Stmt, ast.Expr) {
	if c.request == nil {
		return nil, ident("params")
	}
	return []ast.Stmt{
		varDecl("request", c.request),
		checked(call(sel("dto", "Bind"), ident("params"), addr(ident("request"))), ident("nil"), ident("err")),
	}, call(sel("request", "Fields"))
}

func (c crud) save() ast.Stmt {
	return checked(c.serviceCall("Save", ident("ctx"), ident("entity")),
		ident("nil"), call(sel("dto", "FromValidation"), ident("err")))
}

func status(code, message string, id ast.Expr) ast.Expr {
	elts := []ast.Expr{
		keyValue("Status", sel("http", code)),
		keyValue("Message", str(message)),
	}
	if id != nil {
		elts = append(elts, keyValue("ID", id))
	}
	return composite(sel("dto", "Status"), elts...)
}

func (c crud) show() []ast.Stmt {
	body := c.load()
	return append(body, ret(call(sel("dto", "NewSuccessResponse"), ident("entity")), ident("nil")))
}

func (c crud) update() []ast.Stmt {
	body := c.load()
	bind, values := c.input()
	body = append(body, bind...)
	body = append(body,
		checked(c.serviceCall("Assign", ident("entity"), values),
			ident("nil"), call(sel("dto", "FromValidation"), ident("err"))),
		c.save(),
		ret(status("StatusNoContent", "Updated", nil), ident("nil")),
	)
	return body
}

func (c crud) create() []ast.Stmt {
	bind, values := c.input()
	body := append([]ast.Stmt(nil), bind...)
	if c.request != nil {
		body = append(body,
			define([]string{"entity", "err"}, c.serviceCall("Create", values)),
			ifErr(ident("nil"), call(sel("dto", "FromValidation"), ident("err"))),
		)
	} else {
		body = append(body,
			define([]string{"entity", "err"}, c.serviceCall("Create", ident("nil"))),
			ifErr(ident("nil"), ident("err")),
			checked(c.serviceCall("Assign", ident("entity"), values),
				ident("nil"), call(sel("dto", "FromValidation"), ident("err"))),
		)
	}
	return append(body,
		c.save(),
		define([]string{"id", "err"}, c.serviceCall("PrimaryKey", ident("entity"))),
		ifErr(ident("nil"), ident("err")),
		ret(status("StatusCreated", "Created", ident("id")), ident("nil")),
	)
}

func (c crud) delete() []ast.Stmt {
	body := c.load()
	return append(body,
		checked(c.serviceCall("Delete", ident("ctx"), ident("entity")),
			ident("nil"), call(sel("dto", "ServerError"), call(sel("err", "Error")))),
		ret(status("StatusNoContent", "Deleted", nil), ident("nil")),
	)
}
