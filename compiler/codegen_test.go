package compiler

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/chazu/aul/pkg/ast"
	"github.com/chazu/aul/pkg/bytecode"
	"github.com/chazu/aul/vm"
)

func expectCode(t *testing.T, got bytecode.Code, want bytecode.Code) {
	t.Helper()
	if !got.Equal(want) {
		t.Errorf("code =\n%s\nwant\n%s", got.Disassemble(), want.Disassemble())
	}
}

func TestCompileReturnSum(t *testing.T) {
	e, s := mustLink(t, script(ast.Strict3,
		function("F", []string{"a"}, ret(bin(ast.OpSum, par(0), num(1)))),
	))
	expectCode(t, codeOf(t, e, s, "F"), bytecode.Code{
		{Op: bytecode.OpParNV, X: 0},
		{Op: bytecode.OpInt, X: 1},
		{Op: bytecode.OpSum, X: int64(ast.OpSum)},
		{Op: bytecode.OpReturn},
		{Op: bytecode.OpEOFN},
	})
	if got := run(t, e, s, "F", vm.Int(41)); got.AsInt() != 42 {
		t.Errorf("F(41) = %s, want 42", got)
	}
}

func TestCompileZeroLiteral(t *testing.T) {
	tests := []struct {
		level ast.Strictness
		want  bytecode.Code
	}{
		{ast.NonStrict, bytecode.Code{{Op: bytecode.OpStack, X: 1}, {Op: bytecode.OpReturn}, {Op: bytecode.OpEOFN}}},
		{ast.Strict2, bytecode.Code{{Op: bytecode.OpStack, X: 1}, {Op: bytecode.OpReturn}, {Op: bytecode.OpEOFN}}},
		{ast.Strict3, bytecode.Code{{Op: bytecode.OpInt, X: 0}, {Op: bytecode.OpReturn}, {Op: bytecode.OpEOFN}}},
	}
	for _, tt := range tests {
		e, s := mustLink(t, script(tt.level, function("F", nil, ret(num(0)))))
		expectCode(t, codeOf(t, e, s, "F"), tt.want)
	}
}

func TestCompileDiscardedZeroFolds(t *testing.T) {
	e, s := mustLink(t, script(ast.NonStrict, function("F", nil, num(0))))
	expectCode(t, codeOf(t, e, s, "F"), bytecode.Code{
		{Op: bytecode.OpNil},
		{Op: bytecode.OpReturn},
		{Op: bytecode.OpEOFN},
	})
}

func TestCompileEmptyElse(t *testing.T) {
	e, s := mustLink(t, script(ast.Strict3,
		function("F", []string{"a"}, &ast.If{Condition: par(0), Then: ret(num(1)), Else: block()}),
	))
	expectCode(t, codeOf(t, e, s, "F"), bytecode.Code{
		{Op: bytecode.OpParNV, X: 0},
		{Op: bytecode.OpCondN, X: 3},
		{Op: bytecode.OpInt, X: 1},
		{Op: bytecode.OpReturn},
		{Op: bytecode.OpNil},
		{Op: bytecode.OpReturn},
		{Op: bytecode.OpEOFN},
	})
	if got := run(t, e, s, "F", vm.Bool(true)); got.AsInt() != 1 {
		t.Errorf("F(true) = %s, want 1", got)
	}
	if got := run(t, e, s, "F", vm.Bool(false)); !got.IsNil() {
		t.Errorf("F(false) = %s, want nil", got)
	}
}

func TestCompileLogicalOperators(t *testing.T) {
	body := ret(bin(ast.OpAnd, par(0), par(1)))

	e, s := mustLink(t, script(ast.Strict2, function("F", []string{"a", "b"}, body)))
	expectCode(t, codeOf(t, e, s, "F"), bytecode.Code{
		{Op: bytecode.OpParNV, X: 0},
		{Op: bytecode.OpJumpAnd, X: 2},
		{Op: bytecode.OpParNV, X: 1},
		{Op: bytecode.OpReturn},
		{Op: bytecode.OpEOFN},
	})
	if got := run(t, e, s, "F", vm.Int(0), vm.Int(7)); got.Type() != ast.TypeInt || got.AsInt() != 0 {
		t.Errorf("0 && 7 = %s, want 0", got)
	}
	if got := run(t, e, s, "F", vm.Int(3), vm.Int(7)); got.AsInt() != 7 {
		t.Errorf("3 && 7 = %s, want 7", got)
	}

	e, s = mustLink(t, script(ast.Strict1, function("F", []string{"a", "b"}, ret(bin(ast.OpAnd, par(0), par(1))))))
	expectCode(t, codeOf(t, e, s, "F"), bytecode.Code{
		{Op: bytecode.OpParNV, X: 0},
		{Op: bytecode.OpParNV, X: 1},
		{Op: bytecode.OpAnd, X: int64(ast.OpAnd)},
		{Op: bytecode.OpReturn},
		{Op: bytecode.OpEOFN},
	})
	if got := run(t, e, s, "F", vm.Int(3), vm.Int(7)); got.Type() != ast.TypeBool || !got.AsBool() {
		t.Errorf("3 && 7 = %s, want true", got)
	}
}

func TestCompileEqualityByStrictness(t *testing.T) {
	tests := []struct {
		level ast.Strictness
		op    bytecode.Opcode
	}{
		{ast.NonStrict, bytecode.OpEqualIdent},
		{ast.Strict1, bytecode.OpEqualIdent},
		{ast.Strict2, bytecode.OpEqual},
		{ast.Strict3, bytecode.OpEqual},
	}
	for _, tt := range tests {
		e, s := mustLink(t, script(tt.level,
			function("F", []string{"a", "b"}, ret(bin(ast.OpEqual, par(0), par(1)))),
		))
		if got := codeOf(t, e, s, "F")[2].Op; got != tt.op {
			t.Errorf("strict %d: == compiled to %s, want %s", tt.level, got, tt.op)
		}
	}
}

func TestCompileCallPadsArguments(t *testing.T) {
	e, s := mustLink(t, script(ast.Strict3,
		function("G", []string{"a", "b"}, ret(bin(ast.OpSub, par(0), par(1)))),
		function("F", nil, ret(call("G", num(10)))),
	))
	g := funcOf(t, e, s, "G")
	expectCode(t, codeOf(t, e, s, "F"), bytecode.Code{
		{Op: bytecode.OpInt, X: 10},
		{Op: bytecode.OpStack, X: bytecode.MaxPar - 1},
		{Op: bytecode.OpFunc, X: int64(g.ID)},
		{Op: bytecode.OpReturn},
		{Op: bytecode.OpEOFN},
	})
}

func TestCompileSafeNavigation(t *testing.T) {
	nav := &ast.PropertyAccess{NoRefVal: true, NilTestVal: true, Object: par(0), Property: "x"}
	e, s := mustLink(t, script(ast.Strict3, function("F", []string{"m"}, ret(nav))))

	code := codeOf(t, e, s, "F")
	key, ok := e.Strings().Lookup("x")
	if !ok {
		t.Fatalf("property name was not interned")
	}
	expectCode(t, code, bytecode.Code{
		{Op: bytecode.OpParNV, X: 0},
		{Op: bytecode.OpJumpNil, X: 3},
		{Op: bytecode.OpMapAV, X: int64(key)},
		{Op: bytecode.OpDeref},
		{Op: bytecode.OpReturn},
		{Op: bytecode.OpEOFN},
	})

	if got := run(t, e, s, "F"); !got.IsNil() {
		t.Errorf("nil?.x = %s, want nil", got)
	}
	m := vm.NewMap()
	m.Set(vm.String("x"), vm.Int(5))
	if got := run(t, e, s, "F", vm.MapValue(m)); got.AsInt() != 5 {
		t.Errorf("{x: 5}?.x = %s, want 5", got)
	}
}

func TestCompileLoops(t *testing.T) {
	// var i = 0, n = 0; while (true) { if (++i > 10) break; if (i % 2) continue; n += i; } return n;
	whileBody := block(
		&ast.If{Condition: bin(ast.OpGreaterThan, &ast.UnaryOp{Op: ast.OpPreInc, Operand: ref("i")}, num(10)), Then: &ast.Break{}},
		&ast.If{Condition: bin(ast.OpMod, val("i"), num(2)), Then: &ast.Continue{}},
		bin(ast.OpAddIt, ref("n"), val("i")),
	)
	// for (var k = 0; k < 4; k++) n += k;
	forLoop := &ast.For{
		Init:      decl("k", num(0)),
		Condition: bin(ast.OpLessThan, val("k"), num(4)),
		After:     &ast.UnaryOp{Op: ast.OpPostInc, Operand: ref("k")},
		Body:      bin(ast.OpAddIt, ref("m"), val("k")),
	}
	// for (var x in [1, 2, 3]) { if (x == 2) continue; m += x * 100; }
	each := &ast.ForEach{
		Init:     decl("x", nil),
		Iterable: &ast.ArrayLiteral{Elements: []ast.Expr{num(1), num(2), num(3)}},
		Body: block(
			&ast.If{Condition: bin(ast.OpEqual, val("x"), num(2)), Then: &ast.Continue{}},
			bin(ast.OpAddIt, ref("m"), bin(ast.OpMul, val("x"), num(100))),
		),
	}
	for _, level := range []ast.Strictness{ast.NonStrict, ast.Strict2, ast.Strict3} {
		e, s := mustLink(t, script(level,
			function("Evens", nil,
				decl("i", num(0)), decl("n", num(0)),
				&ast.While{Condition: boolean(true), Body: whileBody},
				ret(val("n")),
			),
			function("Mixed", nil,
				decl("m", num(0)),
				forLoop,
				each,
				ret(val("m")),
			),
		))
		for _, name := range []string{"Evens", "Mixed"} {
			if _, err := bytecode.Verify(codeOf(t, e, s, name), e.Arity); err != nil {
				t.Errorf("strict %d: Verify(%s) failed: %v\n%s", level, name, err, codeOf(t, e, s, name).Disassemble())
			}
		}
		if got := run(t, e, s, "Evens"); got.AsInt() != 30 {
			t.Errorf("strict %d: Evens() = %s, want 30", level, got)
		}
		if got := run(t, e, s, "Mixed"); got.AsInt() != 406 {
			t.Errorf("strict %d: Mixed() = %s, want 406", level, got)
		}
	}
}

func TestCompileMapForeach(t *testing.T) {
	// var sum = 0; for (var k, v in {a: 1, b: 2}) sum += v; return sum;
	each := &ast.ForEach{
		Init: &ast.Declarations{Decls: []*ast.Declaration{decl("k", nil), decl("v", nil)}},
		Iterable: &ast.MapLiteral{Entries: []ast.KeyValue{
			{Key: str("a"), Value: num(1)},
			{Key: str("b"), Value: num(2)},
		}},
		Body: block(
			bin(ast.OpAddIt, ref("sum"), val("v")),
			bin(ast.OpConcatIt, ref("keys"), val("k")),
		),
	}
	e, s := mustLink(t, script(ast.Strict3,
		function("F", nil, decl("sum", num(0)), decl("keys", str("")), each,
			ret(bin(ast.OpConcat, val("keys"), val("sum")))),
	))
	if _, err := bytecode.Verify(codeOf(t, e, s, "F"), e.Arity); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if got := run(t, e, s, "F"); got.AsString() != "ab3" {
		t.Errorf("F() = %s, want \"ab3\"", got)
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name  string
		level ast.Strictness
		body  []ast.Node
		msg   string
	}{
		{"undefined", ast.Strict3, []ast.Node{ret(call("Nope"))}, "undefined function: Nope"},
		{"break", ast.Strict3, []ast.Node{&ast.Break{}}, "'break' is only allowed inside loops"},
		{"continue", ast.Strict3, []ast.Node{&ast.If{Condition: par(0), Then: &ast.Continue{}}}, "'continue' is only allowed inside loops"},
		{"inherited", ast.NonStrict, []ast.Node{ret(&ast.Inherited{Name: "F"})}, "inherited disabled; use #strict syntax!"},
		{"no inherited", ast.Strict2, []ast.Node{ret(&ast.Inherited{Name: "F"})}, "inherited function not found"},
		{"static decl", ast.Strict3, []ast.Node{&ast.Declaration{Type: ast.DeclStatic, Name: "g"}}, "unexpected global declaration inside function"},
		{"parser error", ast.Strict3, []ast.Node{&ast.Error{Message: "';' expected"}}, "';' expected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, s := linkOne(t, script(tt.level, function("F", []string{"a"}, tt.body...)))
			if n := e.LastSummary().Errors; n != 1 {
				t.Fatalf("link reported %d error(s), want 1: %v", n, e.Diagnostics())
			}
			found := false
			for _, d := range e.Diagnostics() {
				if d.Severity == vm.SeverityError && strings.Contains(d.Msg, tt.msg) {
					found = true
				}
			}
			if !found {
				t.Errorf("no diagnostic containing %q in %v", tt.msg, e.Diagnostics())
			}

			code := codeOf(t, e, s, "F")
			if code.Count(bytecode.OpErr) != 1 || code[len(code)-1].Op != bytecode.OpEOFN {
				t.Errorf("failed code is not an ERR stub:\n%s", code.Disassemble())
			}
			if _, err := bytecode.Verify(code, e.Arity); err != nil {
				t.Errorf("Verify failed on ERR stub: %v", err)
			}
			_, err := e.Call(context.Background(), e.GetFunc(s.ID, "F"), nil, []vm.Value{vm.Bool(true)})
			var xe *vm.ExecError
			if !errors.As(err, &xe) || !strings.Contains(xe.Msg, "syntax error") {
				t.Errorf("calling a failed function returned %v, want a syntax error", err)
			}
		})
	}
}

func TestGenerateReportsCompileError(t *testing.T) {
	e, s := linkOne(t, script(ast.Strict3, function("F", nil, ret(call("Missing")))))
	_, err := Generate(e, funcOf(t, e, s, "F"), s)
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("Generate returned %v, want a *CompileError", err)
	}
	if ce.Func != "game F" {
		t.Errorf("CompileError.Func = %q, want \"game F\"", ce.Func)
	}
	if !strings.HasPrefix(ce.Error(), "ERROR: undefined function: Missing") {
		t.Errorf("Error() = %q", ce.Error())
	}
}

func TestCompileAccessDenied(t *testing.T) {
	ssss := ast.MustParseID("SSSS")
	secret := function("Secret", nil, ret(num(1)))
	secret.Proto.Access = ast.AccessPrivate
	viaNS := &ast.IndirectCall{Callee: &ast.C4IDLiteral{Value: ssss}, Namespace: ssss, Name: "Secret"}

	e := NewEngine(vm.Config{})
	if _, err := e.AddScript("s.c", ssss, script(ast.Strict3, secret), nil); err != nil {
		t.Fatalf("AddScript failed: %v", err)
	}
	s, err := e.AddScript("game.c", ast.NoID, script(ast.Strict3, function("F", nil, ret(viaNS))), nil)
	if err != nil {
		t.Fatalf("AddScript failed: %v", err)
	}
	if _, err := e.Link(); err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	diags := e.Diagnostics()
	if n := e.LastSummary().Errors; n != 1 || !strings.Contains(diags[len(diags)-1].Msg, "insufficient access level") {
		t.Fatalf("link reported %d error(s): %v", n, diags)
	}
	expectCode(t, codeOf(t, e, s, "F"), bytecode.Code{
		{Op: bytecode.OpC4ID, X: int64(uint32(ssss))},
		{Op: bytecode.OpErr},
		{Op: bytecode.OpEOFN},
	})
}

func TestCompileFailsafeInheritedWithoutBase(t *testing.T) {
	safe := &ast.Inherited{FailSafe: true, Name: "F", Args: []ast.Expr{num(5), num(6)}}
	tests := []struct {
		name string
		body []ast.Node
		want bytecode.Code
	}{
		{"statement", []ast.Node{safe, ret(num(1))}, bytecode.Code{
			{Op: bytecode.OpInt, X: 5},
			{Op: bytecode.OpInt, X: 6},
			{Op: bytecode.OpStack, X: -2},
			{Op: bytecode.OpInt, X: 1},
			{Op: bytecode.OpReturn},
			{Op: bytecode.OpEOFN},
		}},
		{"value", []ast.Node{ret(safe)}, bytecode.Code{
			{Op: bytecode.OpInt, X: 5},
			{Op: bytecode.OpInt, X: 6},
			{Op: bytecode.OpStack, X: -2},
			{Op: bytecode.OpStack, X: 1},
			{Op: bytecode.OpReturn},
			{Op: bytecode.OpEOFN},
		}},
		{"no arguments", []ast.Node{ret(&ast.Inherited{FailSafe: true, Name: "F"})}, bytecode.Code{
			{Op: bytecode.OpStack, X: 1},
			{Op: bytecode.OpReturn},
			{Op: bytecode.OpEOFN},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, s := mustLink(t, script(ast.Strict3, function("F", []string{"a", "b"}, tt.body...)))
			expectCode(t, codeOf(t, e, s, "F"), tt.want)
			if got := run(t, e, s, "F"); tt.name == "statement" && got.AsInt() != 1 {
				t.Errorf("F() = %s, want 1", got)
			} else if tt.name != "statement" && !got.IsNil() {
				t.Errorf("F() = %s, want nil", got)
			}
		})
	}
}

func TestCompileStringsAreHeldUntilUnlink(t *testing.T) {
	e, s := mustLink(t, script(ast.Strict3,
		function("A", nil, ret(str("hello"))),
		function("B", nil, ret(str("hello"))),
	))
	a, b := codeOf(t, e, s, "A"), codeOf(t, e, s, "B")
	if a[0].Op != bytecode.OpString || a[0].X != b[0].X {
		t.Fatalf("identical literals got different handles: %d vs %d", a[0].X, b[0].X)
	}
	id := vm.StringID(a[0].X)
	if !e.Strings().IsHeld(id) {
		t.Errorf("literal is not held after link")
	}

	e.UnLink()
	if e.Strings().IsHeld(id) {
		t.Errorf("literal is still held after unlink")
	}
	if _, err := e.Link(); err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	if got := codeOf(t, e, s, "A"); !got.Equal(a) {
		t.Errorf("relinked code differs:\n%s\nwas\n%s", got.Disassemble(), a.Disassemble())
	}
	if got := run(t, e, s, "B"); got.AsString() != "hello" {
		t.Errorf("B() = %s, want \"hello\"", got)
	}
}

func TestCompileFailsafeIndirectCall(t *testing.T) {
	// return a->~Unknown(1, 2);
	callee := &ast.IndirectCall{Callee: par(0), FailSafe: true, Name: "Unknown", Args: []ast.Expr{num(1), num(2)}}
	e, s := mustLink(t, script(ast.Strict3, function("F", []string{"a"}, ret(callee))))
	code := codeOf(t, e, s, "F")
	if code.Count(bytecode.OpCallFS) != 0 {
		t.Errorf("failsafe call to an unknown name still calls:\n%s", code.Disassemble())
	}
	if _, err := bytecode.Verify(code, e.Arity); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if got := run(t, e, s, "F", vm.Int(1)); !got.IsNil() {
		t.Errorf("failsafe call = %s, want nil", got)
	}
}

func TestCompileWithoutCompilerFails(t *testing.T) {
	e := vm.NewEngine(vm.Config{})
	if _, err := e.AddScript("x.c", ast.NoID, script(ast.Strict3), nil); err != nil {
		t.Fatalf("AddScript failed: %v", err)
	}
	if _, err := e.Link(); err == nil {
		t.Errorf("Link without a compiler succeeded")
	}
	if !Install(e).HasCompiler() {
		t.Errorf("Install did not set the compiler")
	}
}
