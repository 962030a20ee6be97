package compiler

import (
	"context"
	"testing"

	"github.com/chazu/aul/pkg/ast"
	"github.com/chazu/aul/pkg/bytecode"
	"github.com/chazu/aul/vm"
)

// Tree builders. Values read by operators carry NoRef; assignment targets
// do not.

func num(n int32) *ast.IntLiteral { return &ast.IntLiteral{Value: n} }
func str(s string) *ast.StringLiteral { return &ast.StringLiteral{Value: s} }
func boolean(b bool) *ast.BoolLiteral { return &ast.BoolLiteral{Value: b} }
func val(name string) *ast.VarN { return &ast.VarN{Name: name, NoRefVal: true} }
func ref(name string) *ast.VarN { return &ast.VarN{Name: name} }
func par(n int) *ast.ParN { return &ast.ParN{N: n, NoRefVal: true} }
func ret(xs ...ast.Expr) *ast.Return { return &ast.Return{Exprs: xs} }
func block(ss ...ast.Node) *ast.Block { return &ast.Block{Statements: ss} }
func call(name string, args ...ast.Expr) *ast.Call {
	return &ast.Call{Name: name, Args: args}
}

func bin(op ast.OpID, lhs, rhs ast.Expr) *ast.BinaryOp {
	return &ast.BinaryOp{Op: op, LHS: lhs, RHS: rhs}
}

func set(name string, x ast.Expr) *ast.BinaryOp {
	return bin(ast.OpSet, ref(name), x)
}

func decl(name string, x ast.Expr) *ast.Declaration {
	return &ast.Declaration{Type: ast.DeclVar, Name: name, Value: x}
}

func function(name string, params []string, body ...ast.Node) *ast.Function {
	proto := &ast.Prototype{Name: name, Access: ast.AccessPublic}
	for _, p := range params {
		proto.Params = append(proto.Params, ast.Param{Name: p})
	}
	return &ast.Function{Proto: proto, Body: block(body...)}
}

func script(level ast.Strictness, nodes ...ast.Node) *ast.Script {
	root := &ast.Script{}
	if level > ast.NonStrict {
		root.Statements = append(root.Statements, &ast.StrictDirective{Level: level})
	}
	root.Statements = append(root.Statements, nodes...)
	return root
}

// linkOne registers root as a global script on a fresh engine and links.
func linkOne(t *testing.T, root *ast.Script) (*vm.Engine, *vm.Script) {
	t.Helper()
	e := NewEngine(vm.Config{})
	s, err := e.AddScript("test.c", ast.NoID, root, nil)
	if err != nil {
		t.Fatalf("AddScript failed: %v", err)
	}
	if _, err := e.Link(); err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	return e, s
}

// mustLink is linkOne for scripts that have to compile cleanly.
func mustLink(t *testing.T, root *ast.Script) (*vm.Engine, *vm.Script) {
	t.Helper()
	e, s := linkOne(t, root)
	if n := e.LastSummary().Errors; n != 0 {
		t.Fatalf("link reported %d error(s): %v", n, e.Diagnostics())
	}
	return e, s
}

func funcOf(t *testing.T, e *vm.Engine, s *vm.Script, name string) *vm.Function {
	t.Helper()
	f := e.Func(e.GetFunc(s.ID, name))
	if f == nil {
		t.Fatalf("function %s not found", name)
	}
	return f
}

func codeOf(t *testing.T, e *vm.Engine, s *vm.Script, name string) bytecode.Code {
	t.Helper()
	return funcOf(t, e, s, name).Code
}

func run(t *testing.T, e *vm.Engine, s *vm.Script, name string, args ...vm.Value) vm.Value {
	t.Helper()
	v, err := e.Call(context.Background(), e.GetFunc(s.ID, name), nil, args)
	if err != nil {
		t.Fatalf("Call(%s) failed: %v", name, err)
	}
	return v
}
