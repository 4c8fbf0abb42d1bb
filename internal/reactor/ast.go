package reactor

import (
	"go/ast"
	"go/token"
	"strconv"
)

func ident(name string) *ast.Ident {
	return ast.NewIdent(name)
}

// sel builds x.a.b.c
func sel(x string, names ...string) ast.Expr {
	var expr ast.Expr = ident(x)
	for _, name := range names {
		expr = &ast.SelectorExpr{X: expr, Sel: ident(name)}
	}
	return expr
}

func call(fun ast.Expr, args ...ast.Expr) *ast.CallExpr {
	return &ast.CallExpr{Fun: fun, Args: args}
}

func str(s string) *ast.BasicLit {
	return &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(s)}
}

func integer(n int) *ast.BasicLit {
	return &ast.BasicLit{Kind: token.INT, Value: strconv.Itoa(n)}
}

func star(x ast.Expr) *ast.StarExpr {
	return &ast.StarExpr{X: x}
}

func addr(x ast.Expr) *ast.UnaryExpr {
	return &ast.UnaryExpr{Op: token.AND, X: x}
}

func index(x ast.Expr, key ast.Expr) *ast.IndexExpr {
	return &ast.IndexExpr{X: x, Index: key}
}

func keyValue(key string, value ast.Expr) *ast.KeyValueExpr {
	return &ast.KeyValueExpr{Key: ident(key), Value: value}
}

func composite(typ ast.Expr, elts ...ast.Expr) *ast.CompositeLit {
	return &ast.CompositeLit{Type: typ, Elts: elts}
}

func define(lhs []string, rhs ...ast.Expr) *ast.AssignStmt {
	return assignment(token.DEFINE, lhs, rhs...)
}

func assign(lhs ast.Expr, rhs ast.Expr) *ast.AssignStmt {
	return &ast.AssignStmt{Lhs: []ast.Expr{lhs}, Tok: token.ASSIGN, Rhs: []ast.Expr{rhs}}
}

func assignment(tok token.Token, lhs []string, rhs ...ast.Expr) *ast.AssignStmt {
	exprs := make([]ast.Expr, len(lhs))
	for i, name := range lhs {
		exprs[i] = ident(name)
	}
	return &ast.AssignStmt{Lhs: exprs, Tok: tok, Rhs: rhs}
}

func ret(results ...ast.Expr) *ast.ReturnStmt {
	return &ast.ReturnStmt{Results: results}
}

func exprStmt(x ast.Expr) *ast.ExprStmt {
	return &ast.ExprStmt{X: x}
}

func varDecl(name string, typ ast.Expr) *ast.DeclStmt {
	return &ast.DeclStmt{Decl: &ast.GenDecl{
		Tok:   token.VAR,
		Specs: []ast.Spec{&ast.ValueSpec{Names: []*ast.Ident{ident(name)}, Type: typ}},
	}}
}

func binary(x ast.Expr, op token.Token, y ast.Expr) *ast.BinaryExpr {
	return &ast.BinaryExpr{X: x, Op: op, Y: y}
}

func ifStmt(init ast.Stmt, cond ast.Expr, body ...ast.Stmt) *ast.IfStmt {
	return &ast.IfStmt{Init: init, Cond: cond, Body: &ast.BlockStmt{List: body}}
}

// ifErr builds "if err != nil { return results... }"
func ifErr(results ...ast.Expr) *ast.IfStmt {
	return ifStmt(nil, binary(ident("err"), token.NEQ, ident("nil")), ret(results...))
}

// checked builds "if err := call; err != nil { return results... }"
func checked(call ast.Expr, results ...ast.Expr) *ast.IfStmt {
	s := ifErr(results...)
	s.Init = define([]string{"err"}, call)
	return s
}

func field(name string, typ ast.Expr) *ast.Field {
	f := &ast.Field{Type: typ}
	if name != "" {
		f.Names = []*ast.Ident{ident(name)}
	}
	return f
}

func fields(list ...*ast.Field) *ast.FieldList {
	return &ast.FieldList{List: list}
}

func typeDecl(name string, typ ast.Expr) *ast.GenDecl {
	return &ast.GenDecl{
		Tok:   token.TYPE,
		Specs: []ast.Spec{&ast.TypeSpec{Name: ident(name), Type: typ}},
	}
}

// method declares func (recv *recvType) name(params) results { body }
func method(recv, recvType, name string, params, results *ast.FieldList, body ...ast.Stmt) *ast.FuncDecl {
	return &ast.FuncDecl{
		Recv: fields(field(recv, star(ident(recvType)))),
		Name: ident(name),
		Type: &ast.FuncType{Params: params, Results: results},
		Body: &ast.BlockStmt{List: body},
	}
}

func function(name string, params, results *ast.FieldList, body ...ast.Stmt) *ast.FuncDecl {
	return &ast.FuncDecl{
		Name: ident(name),
		Type: &ast.FuncType{Params: params, Results: results},
		Body: &ast.BlockStmt{List: body},
	}
}

// mapOf builds map[key]value
func mapOf(key, value ast.Expr) *ast.MapType {
	return &ast.MapType{Key: key, Value: value}
}
