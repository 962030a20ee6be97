package vm_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/chazu/aul/compiler"
	"github.com/chazu/aul/pkg/ast"
	"github.com/chazu/aul/vm"
)

func num(n int32) *ast.IntLiteral { return &ast.IntLiteral{Value: n} }
func str(s string) *ast.StringLiteral { return &ast.StringLiteral{Value: s} }
func val(name string) *ast.VarN { return &ast.VarN{Name: name, NoRefVal: true} }
func ref(name string) *ast.VarN { return &ast.VarN{Name: name} }
func par(n int) *ast.ParN { return &ast.ParN{N: n, NoRefVal: true} }
func ret(xs ...ast.Expr) *ast.Return { return &ast.Return{Exprs: xs} }
func block(ss ...ast.Node) *ast.Block { return &ast.Block{Statements: ss} }

func bin(op ast.OpID, lhs, rhs ast.Expr) *ast.BinaryOp {
	return &ast.BinaryOp{Op: op, LHS: lhs, RHS: rhs}
}

func call(name string, args ...ast.Expr) *ast.Call {
	return &ast.Call{Name: name, Args: args}
}

func decl(name string, x ast.Expr) *ast.Declaration {
	return &ast.Declaration{Type: ast.DeclVar, Name: name, Value: x}
}

func fn(name string, params []string, body ...ast.Node) *ast.Function {
	return fnAccess(ast.AccessPublic, name, params, body...)
}

func fnAccess(access ast.Access, name string, params []string, body ...ast.Node) *ast.Function {
	proto := &ast.Prototype{Name: name, Access: access}
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

// source is one script to register.
type source struct {
	name string
	def  string // "" for a script without a definition
	root *ast.Script
}

func newEngine(t *testing.T, cfg vm.Config, sources ...source) *vm.Engine {
	t.Helper()
	e := compiler.NewEngine(cfg)
	for _, src := range sources {
		def := ast.NoID
		if src.def != "" {
			def = ast.MustParseID(src.def)
		}
		if _, err := e.AddScript(src.name, def, src.root, nil); err != nil {
			t.Fatalf("AddScript(%s) failed: %v", src.name, err)
		}
	}
	if _, err := e.Link(); err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	return e
}

// linked is newEngine for sources that must link without errors.
func linked(t *testing.T, sources ...source) *vm.Engine {
	t.Helper()
	e := newEngine(t, vm.Config{}, sources...)
	if n := e.LastSummary().Errors; n != 0 {
		t.Fatalf("link reported %d error(s): %v", n, e.Diagnostics())
	}
	return e
}

func lookup(t *testing.T, e *vm.Engine, full string) vm.FuncID {
	t.Helper()
	f := e.FindFunc(full)
	if f == nil {
		t.Fatalf("FindFunc(%q) = nil", full)
	}
	return f.ID
}

func callOK(t *testing.T, e *vm.Engine, full string, this vm.Object, args ...vm.Value) vm.Value {
	t.Helper()
	v, err := e.Call(context.Background(), lookup(t, e, full), this, args)
	if err != nil {
		t.Fatalf("%s failed: %v", full, err)
	}
	return v
}

// callFault runs full and expects an execution error containing msg.
func callFault(t *testing.T, e *vm.Engine, full string, msg string, args ...vm.Value) {
	t.Helper()
	_, err := e.Call(context.Background(), lookup(t, e, full), nil, args)
	var xe *vm.ExecError
	if !errors.As(err, &xe) {
		t.Fatalf("%s returned %v, want an *ExecError", full, err)
	}
	if !strings.Contains(xe.Msg, msg) {
		t.Errorf("%s failed with %q, want it to contain %q", full, xe.Msg, msg)
	}
}

func hasDiagnostic(e *vm.Engine, sev vm.Severity, msg string) bool {
	for _, d := range e.Diagnostics() {
		if d.Severity == sev && strings.Contains(d.Msg, msg) {
			return true
		}
	}
	return false
}
