package compiler

import (
	"fmt"

	"github.com/chazu/aul/pkg/ast"
	"github.com/chazu/aul/pkg/bytecode"
	"github.com/chazu/aul/vm"
)

// ---------------------------------------------------------------------------
// Codegen: compile one function body to bytecode
// ---------------------------------------------------------------------------

// CompileError reports why a function body could not be compiled. The code
// produced up to that point ends in an ERR stub.
type CompileError struct {
	Func string
	Pos  int32
	Msg  string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("ERROR: %s (in %s:%d)", e.Msg, e.Func, e.Pos)
}

// abort unwinds the walk after ERR has been emitted.
type abort struct{ err *CompileError }

type loopControl struct {
	brk bool
	pos int
}

type loop struct {
	stack    int
	controls []loopControl
}

// generator holds the state of one Generate call.
type generator struct {
	e      *vm.Engine
	fn     *vm.Function
	scope  *vm.Script
	strict ast.Strictness

	b     bytecode.Builder
	stack int
	loops []*loop

	// safe navigation: JUMPNIL chunks of the chain being compiled
	navDepth int
	nilJumps []int
}

func newGenerator(e *vm.Engine, fn *vm.Function, scope *vm.Script) *generator {
	g := &generator{e: e, fn: fn, scope: scope, strict: ast.MaxStrict}
	if org := e.Script(fn.OrgScript); org != nil {
		g.strict = org.Strict
	}
	return g
}

// Generate compiles the body of fn, resolving names against scope. The
// returned code has no implicit return or EOFN; see Compile.
func Generate(e *vm.Engine, fn *vm.Function, scope *vm.Script) (bytecode.Code, error) {
	g := newGenerator(e, fn, scope)
	err := g.body()
	return g.b.Code().Clone(), err
}

// body walks the function body, converting an abort into its error.
func (g *generator) body() (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		a, ok := r.(abort)
		if !ok {
			panic(r)
		}
		err = a.err
	}()
	if g.fn.Decl == nil || g.fn.Decl.Body == nil {
		return nil
	}
	g.block(g.fn.Decl.Body)
	return nil
}

// ---------------------------------------------------------------------------
// Emission
// ---------------------------------------------------------------------------

// emit appends one chunk, tracking the stack depth. Zero INT and BOOL
// literals become STACK 1 below #strict 3 so they can fold with
// neighbouring stack adjustments.
func (g *generator) emit(pos int32, op bytecode.Opcode, x int64) {
	g.stack += bytecode.StackDelta(op, x, g.e.Arity)
	if (op == bytecode.OpInt || op == bytecode.OpBool) && x == 0 && g.strict < ast.Strict3 {
		op, x = bytecode.OpStack, 1
	}
	g.b.Append(bytecode.Chunk{Op: op, X: x, Pos: pos})
}

func (g *generator) pos() int {
	return g.b.Len()
}

// jumpHere returns the current position and keeps the next chunk from
// being folded into its predecessor.
func (g *generator) jumpHere() int {
	g.b.MarkJumpTarget()
	return g.pos()
}

// setJumpHere points the jump at at the current position.
func (g *generator) setJumpHere(at int) {
	g.b.At(at).X = int64(g.pos() - at)
	g.b.MarkJumpTarget()
}

func (g *generator) setJump(at, where int) {
	g.b.At(at).X = int64(where - at)
}

func (g *generator) addJump(pos int32, op bytecode.Opcode, where int) {
	g.emit(pos, op, int64(where-g.pos()))
}

func (g *generator) pushLoop() {
	g.loops = append(g.loops, &loop{stack: g.stack})
}

func (g *generator) popLoop() *loop {
	l := g.loops[len(g.loops)-1]
	g.loops = g.loops[:len(g.loops)-1]
	return l
}

// addLoopControl emits break or continue: restore the loop's stack depth,
// then a jump patched when the loop is closed.
func (g *generator) addLoopControl(pos int32, brk bool) {
	if len(g.loops) == 0 {
		if brk {
			g.fail(pos, "'break' is only allowed inside loops")
		}
		g.fail(pos, "'continue' is only allowed inside loops")
	}
	l := g.loops[len(g.loops)-1]
	if l.stack != g.stack {
		g.emit(pos, bytecode.OpStack, int64(l.stack-g.stack))
	}
	l.controls = append(l.controls, loopControl{brk: brk, pos: g.pos()})
	g.emit(pos, bytecode.OpJump, 0)
}

// closeLoop patches the controls of the innermost loop: breaks land at the
// current position, continues at cont.
func (g *generator) closeLoop(cont int) {
	for _, c := range g.popLoop().controls {
		if c.brk {
			g.setJumpHere(c.pos)
		} else {
			g.setJump(c.pos, cont)
		}
	}
}

// fail makes every unpatched jump land on an ERR stub and aborts.
func (g *generator) fail(pos int32, format string, args ...any) {
	code := g.b.Code()
	for i := range code {
		if code[i].Op.IsJump() && code[i].X == 0 {
			code[i].X = int64(len(code) - i)
		}
	}
	g.emit(pos, bytecode.OpErr, 0)
	panic(abort{&CompileError{
		Func: g.e.FullName(g.fn),
		Pos:  pos,
		Msg:  fmt.Sprintf(format, args...),
	}})
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (g *generator) block(b *ast.Block) {
	for _, s := range b.Statements {
		g.statement(s)
	}
}

// statement compiles n; expressions used as statements drop their value.
func (g *generator) statement(n ast.Node) {
	switch n := n.(type) {
	case nil:
	case *ast.Error:
		g.fail(n.PosVal, "%s", n.Message)
	case ast.Expr:
		g.expr(n)
		g.emit(n.Position(), bytecode.OpStack, -1)
	case *ast.Block:
		g.block(n)
	case *ast.Declaration:
		g.declaration(n)
	case *ast.Declarations:
		for _, d := range n.Decls {
			g.declaration(d)
		}
	case *ast.Return:
		g.returnStmt(n)
	case *ast.If:
		g.ifStmt(n)
	case *ast.While:
		g.whileStmt(n)
	case *ast.For:
		g.forStmt(n)
	case *ast.ForEach:
		g.forEach(n)
	case *ast.Break:
		g.addLoopControl(n.PosVal, true)
	case *ast.Continue:
		g.addLoopControl(n.PosVal, false)
	case *ast.Nop:
	default:
		g.fail(n.Position(), "%v: %s", ast.ErrUnknownNode, n.Kind())
	}
}

func (g *generator) declaration(d *ast.Declaration) {
	if d.Type != ast.DeclVar {
		g.fail(d.PosVal, "unexpected %s declaration inside function", d.Type)
	}
	if d.Value == nil {
		return
	}
	g.expr(d.Value)
	g.emit(d.PosVal, bytecode.OpIVarN, int64(g.varSlot(d.PosVal, d.Name)))
}

func (g *generator) returnStmt(n *ast.Return) {
	if len(n.Exprs) == 0 {
		g.nilValue(n.PosVal, n.PreferStack)
	} else {
		for _, x := range n.Exprs {
			g.expr(x)
		}
		if len(n.Exprs) > 1 {
			g.emit(n.PosVal, bytecode.OpStack, -int64(len(n.Exprs)-1))
		}
	}
	g.emit(n.PosVal, bytecode.OpReturn, 0)
}

func (g *generator) ifStmt(n *ast.If) {
	g.expr(n.Condition)
	cond := g.pos()
	g.emit(n.PosVal, bytecode.OpCondN, 0)
	g.statement(n.Then)

	if n.Else == nil {
		g.setJumpHere(cond)
		return
	}
	jump := g.pos()
	g.emit(n.PosVal, bytecode.OpJump, 0)
	g.setJumpHere(cond)
	start := g.pos()
	g.statement(n.Else)
	if start == g.pos() {
		// empty else: drop the jump over it
		g.b.RemoveLast()
		g.b.At(cond).X--
		return
	}
	g.setJumpHere(jump)
}

func (g *generator) whileStmt(n *ast.While) {
	start := g.jumpHere()
	g.expr(n.Condition)
	cond := g.pos()
	g.emit(n.PosVal, bytecode.OpCondN, 0)

	g.pushLoop()
	g.statement(n.Body)
	g.addJump(n.PosVal, bytecode.OpJump, start)
	g.setJumpHere(cond)
	g.closeLoop(start)
}

func (g *generator) forStmt(n *ast.For) {
	g.statement(n.Init)

	condition, body, out, incr := -1, -1, -1, -1
	if n.Condition != nil {
		condition = g.jumpHere()
		g.expr(n.Condition)
		out = g.pos()
		g.emit(n.PosVal, bytecode.OpCondN, 0)
	}
	if n.After != nil {
		body = g.pos()
		g.emit(n.PosVal, bytecode.OpJump, 0)
		incr = g.jumpHere()
		g.statement(n.After)
		if condition >= 0 {
			g.addJump(n.PosVal, bytecode.OpJump, condition)
		}
	}

	g.pushLoop()
	bodyPos := g.jumpHere()
	if body >= 0 {
		g.setJumpHere(body)
	}
	g.statement(n.Body)

	back := bodyPos
	switch {
	case incr >= 0:
		back = incr
	case condition >= 0:
		back = condition
	}
	g.addJump(n.PosVal, bytecode.OpJump, back)
	if out >= 0 {
		g.setJumpHere(out)
	}
	g.closeLoop(back)
}

// forEach keeps the container and a cursor on the stack while the body
// runs; map loops also keep the slot of the value variable.
func (g *generator) forEach(n *ast.ForEach) {
	g.statement(n.Init)
	g.expr(n.Iterable)

	var slot int
	forMap := false
	switch init := n.Init.(type) {
	case *ast.Declarations:
		if len(init.Decls) < 2 {
			g.fail(n.PosVal, "for: key and value variable expected")
		}
		forMap = true
		slot = g.varSlot(n.PosVal, init.Decls[0].Name)
		g.emit(n.PosVal, bytecode.OpInt, int64(g.varSlot(n.PosVal, init.Decls[1].Name)))
	case *ast.Declaration:
		slot = g.varSlot(n.PosVal, init.Name)
	default:
		g.fail(n.PosVal, "for: variable declaration expected")
	}
	g.emit(n.PosVal, bytecode.OpInt, 0)

	start := g.pos()
	if forMap {
		g.emit(n.PosVal, bytecode.OpForeachMapNext, int64(slot))
	} else {
		g.emit(n.PosVal, bytecode.OpForeachNext, int64(slot))
	}
	exit := g.pos()
	g.emit(n.PosVal, bytecode.OpJump, 0)

	g.pushLoop()
	g.statement(n.Body)
	g.addJump(n.PosVal, bytecode.OpJump, start)
	g.setJumpHere(exit)
	g.closeLoop(start)

	if forMap {
		g.emit(n.PosVal, bytecode.OpStack, -3)
	} else {
		g.emit(n.PosVal, bytecode.OpStack, -2)
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (g *generator) nilValue(pos int32, preferStack bool) {
	if preferStack {
		g.emit(pos, bytecode.OpStack, 1)
	} else {
		g.emit(pos, bytecode.OpNil, 0)
	}
}

// str interns s and pins it until the next unlink.
func (g *generator) str(s string) int64 {
	t := g.e.Strings()
	id, ok := t.Lookup(s)
	if !ok || !t.IsHeld(id) {
		id = t.Intern(s)
		t.Hold(id)
	}
	return int64(id)
}

func (g *generator) expr(x ast.Expr) {
	switch n := x.(type) {
	case *ast.Nil:
		g.nilValue(n.PosVal, n.PreferStack)
	case *ast.IntLiteral:
		g.emit(n.PosVal, bytecode.OpInt, int64(n.Value))
	case *ast.BoolLiteral:
		var b int64
		if n.Value {
			b = 1
		}
		g.emit(n.PosVal, bytecode.OpBool, b)
	case *ast.StringLiteral:
		g.emit(n.PosVal, bytecode.OpString, g.str(n.Value))
	case *ast.C4IDLiteral:
		g.emit(n.PosVal, bytecode.OpC4ID, int64(uint32(n.Value)))
	case *ast.ArrayLiteral:
		for _, el := range n.Elements {
			g.isolated(el)
		}
		g.emit(n.PosVal, bytecode.OpArray, int64(len(n.Elements)))
	case *ast.MapLiteral:
		for _, kv := range n.Entries {
			g.isolated(kv.Key)
			g.isolated(kv.Value)
		}
		g.emit(n.PosVal, bytecode.OpMap, int64(len(n.Entries)))
	case *ast.GlobalConstant:
		g.constant(n)

	case *ast.ParN:
		g.emit(n.PosVal, pick(n.NoRefVal, bytecode.OpParNV, bytecode.OpParNR), int64(n.N))
	case *ast.Par:
		g.isolated(n.Index)
		g.emit(n.PosVal, pick(n.NoRefVal, bytecode.OpParV, bytecode.OpParR), 0)
	case *ast.VarN:
		g.emit(n.PosVal, pick(n.NoRefVal, bytecode.OpVarNV, bytecode.OpVarNR), int64(g.varSlot(n.PosVal, n.Name)))
	case *ast.Var:
		g.isolated(n.Index)
		g.emit(n.PosVal, pick(n.NoRefVal, bytecode.OpVarV, bytecode.OpVarR), 0)
	case *ast.LocalN:
		i := g.scope.LocalIndex(n.Name)
		if i < 0 {
			g.fail(n.PosVal, "unknown identifier: %s", n.Name)
		}
		g.emit(n.PosVal, pick(n.NoRefVal, bytecode.OpLocalNV, bytecode.OpLocalNR), int64(i))
	case *ast.GlobalN:
		i := g.e.GlobalIndex(n.Name)
		if i < 0 {
			g.fail(n.PosVal, "unknown identifier: %s", n.Name)
		}
		g.emit(n.PosVal, pick(n.NoRefVal, bytecode.OpGlobalNV, bytecode.OpGlobalNR), int64(i))

	case *ast.UnaryOp:
		g.isolated(n.Operand)
		g.emit(n.PosVal, n.Op.Def().Code, int64(n.Op))
	case *ast.BinaryOp:
		g.binary(n)

	case *ast.ReturnAsParam:
		if n.Value != nil {
			g.isolated(n.Value)
		} else {
			g.nilValue(n.PosVal, n.PreferStack)
		}
		g.emit(n.PosVal, bytecode.OpReturn, 0)
	case *ast.ExprIf:
		g.exprIf(n)

	case *ast.Call:
		g.call(n)
	case *ast.Inherited:
		g.inherited(n)
	case *ast.ArrayAccess, *ast.ArrayAppend, *ast.PropertyAccess, *ast.IndirectCall:
		g.navigation(x)
	case *ast.This:
		g.emit(n.PosVal, bytecode.OpThis, 0)

	case *ast.Error:
		g.fail(n.PosVal, "%s", n.Message)
	case nil:
		g.fail(0, "expression expected")
	default:
		g.fail(x.Position(), "%v: %s", ast.ErrUnknownNode, x.Kind())
	}
}

func pick(noRef bool, v, r bytecode.Opcode) bytecode.Opcode {
	if noRef {
		return v
	}
	return r
}

func (g *generator) varSlot(pos int32, name string) int {
	i := g.fn.VarIndex(name)
	if i < 0 {
		g.fail(pos, "internal error: var definition: var not found in variable table")
	}
	return i
}

// constant emits the literal a global constant stands for.
func (g *generator) constant(n *ast.GlobalConstant) {
	if n.Value != nil {
		g.expr(n.Value)
		return
	}
	v, ok := g.e.GetGlobalConstant(n.Name)
	if !ok {
		g.fail(n.PosVal, "unknown identifier: %s", n.Name)
	}
	switch v.Type() {
	case ast.TypeAny:
		g.emit(n.PosVal, bytecode.OpNil, 0)
	case ast.TypeInt:
		g.emit(n.PosVal, bytecode.OpInt, int64(v.AsInt()))
	case ast.TypeBool:
		g.emit(n.PosVal, bytecode.OpBool, int64(v.AsInt()))
	case ast.TypeID:
		g.emit(n.PosVal, bytecode.OpC4ID, int64(uint32(v.AsID())))
	case ast.TypeString:
		g.emit(n.PosVal, bytecode.OpString, g.str(v.AsString()))
	default:
		g.fail(n.PosVal, "internal error: constant %s has undefined type %s", n.Name, v.Type())
	}
}

func (g *generator) binary(n *ast.BinaryOp) {
	g.isolated(n.LHS)

	op := n.Op.Def().Code
	cond := g.pos()
	jump := false
	switch {
	case op == bytecode.OpNilCoalescingIt:
		g.emit(n.PosVal, bytecode.OpNilCoalescingIt, 0)
		jump = true
	case op == bytecode.OpNilCoalescing:
		g.emit(n.PosVal, bytecode.OpJumpNotNil, 0)
		jump = true
	case (op == bytecode.OpAnd || op == bytecode.OpOr) && g.strict >= ast.Strict2:
		g.emit(n.PosVal, pick(op == bytecode.OpAnd, bytecode.OpJumpAnd, bytecode.OpJumpOr), 0)
		jump = true
	case op == bytecode.OpEqual && g.strict < ast.Strict2:
		op = bytecode.OpEqualIdent
	case op == bytecode.OpNotEqual && g.strict < ast.Strict2:
		op = bytecode.OpNotEqualIdent
	}

	g.isolated(n.RHS)

	if !jump {
		g.emit(n.PosVal, op, int64(n.Op))
		return
	}
	if op == bytecode.OpNilCoalescingIt {
		g.emit(n.PosVal, bytecode.OpSet, int64(n.Op))
	}
	g.setJumpHere(cond)
}

func (g *generator) exprIf(n *ast.ExprIf) {
	g.isolated(n.Condition)
	cond := g.pos()
	g.emit(n.PosVal, bytecode.OpCondN, 0)
	depth := g.stack
	g.isolated(n.Then)
	jump := g.pos()
	g.emit(n.PosVal, bytecode.OpJump, 0)
	g.setJumpHere(cond)
	g.stack = depth
	if n.Else != nil {
		g.isolated(n.Else)
	} else {
		g.emit(n.PosVal, bytecode.OpNil, 0)
	}
	g.setJumpHere(jump)
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// call compiles a direct call. Non-strict scripts calling their own name
// from an overloading function reach the overloaded version.
func (g *generator) call(n *ast.Call) {
	var id vm.FuncID
	switch {
	case g.strict == ast.NonStrict && g.fn.OwnerOverloaded != 0 && n.Name == g.fn.Name:
		id = g.fn.OwnerOverloaded
	case g.fn.Owner == vm.EngineScope:
		id = g.e.GetFuncRecursive(vm.EngineScope, n.Name)
	default:
		id = g.e.GetFuncRecursive(g.scope.ID, n.Name)
	}
	if id == 0 {
		g.fail(n.PosVal, "undefined function: %s", n.Name)
	}
	g.checkAccess(n.PosVal, id)
	g.funcCall(n.PosVal, id, n.Args)
}

// checkAccess fails the compile when the declaring script of the function
// being compiled may not call id. CALLs retargeted at run time are
// checked again by the executor.
func (g *generator) checkAccess(pos int32, id vm.FuncID) {
	if f := g.e.Func(id); f != nil && !g.e.CanCall(f, g.fn.OrgScript) {
		g.fail(pos, "insufficient access level")
	}
}

func (g *generator) inherited(n *ast.Inherited) {
	if g.strict == ast.NonStrict {
		g.fail(n.PosVal, "inherited disabled; use #strict syntax!")
	}
	if g.fn.OwnerOverloaded != 0 {
		g.funcCall(n.PosVal, g.fn.OwnerOverloaded, n.Args)
		return
	}
	if !n.FailSafe {
		g.fail(n.PosVal, "inherited function not found, use _inherited to call failsafe")
	}
	for _, a := range n.Args {
		g.isolated(a)
	}
	if len(n.Args) > 0 {
		g.emit(n.PosVal, bytecode.OpStack, -int64(len(n.Args)))
	}
	g.emit(n.PosVal, bytecode.OpStack, 1)
}

// funcCall pads or trims the arguments to the callee's parameter count
// and emits FUNC.
func (g *generator) funcCall(pos int32, id vm.FuncID, args []ast.Expr) {
	for _, a := range args {
		g.isolated(a)
	}
	if n := g.e.Arity(int64(id)); n != len(args) {
		g.emit(pos, bytecode.OpStack, int64(n-len(args)))
	}
	g.emit(pos, bytecode.OpFunc, int64(id))
}

// indirectCall compiles target->Name(args). The function named here is
// only a starting point; the executor picks the version visible from the
// target's definition.
func (g *generator) indirectCall(n *ast.IndirectCall) {
	var id vm.FuncID
	op := pick(n.FailSafe, bytecode.OpCallFS, bytecode.OpCall)
	switch {
	case n.Global:
		id = g.e.GetFunc(vm.EngineScope, n.Name)
		op = bytecode.OpCallGlobal
	case n.Namespace != ast.NoID:
		def := g.e.ScriptByDef(n.Namespace)
		if def == nil {
			g.fail(n.PosVal, "direct object call: def not found: %s", n.Namespace)
		}
		id = g.e.GetSFunc(def.ID, n.Name, ast.AccessPrivate, true)
		if id == 0 && !n.FailSafe {
			g.fail(n.PosVal, "direct object call: function %s::%s not found", n.Namespace, n.Name)
		}
	default:
		id = g.e.FuncMap().GetFirstFunc(n.Name)
	}

	for _, a := range n.Args {
		g.isolated(a)
	}
	if id == 0 {
		if n.FailSafe {
			// nothing to call: evaluate the arguments and yield nil
			g.emit(n.PosVal, bytecode.OpStack, -int64(len(n.Args)+1))
			g.emit(n.PosVal, bytecode.OpStack, 1)
			return
		}
		g.fail(n.PosVal, "direct object call: function %s not found", n.Name)
	}
	g.checkAccess(n.PosVal, id)
	if len(n.Args) > bytecode.MaxPar {
		g.fail(n.PosVal, "too many parameters for %s (max %d)", n.Name, bytecode.MaxPar)
	}
	if len(n.Args) != bytecode.MaxPar {
		g.emit(n.PosVal, bytecode.OpStack, int64(bytecode.MaxPar-len(n.Args)))
	}
	if n.Namespace != ast.NoID {
		g.emit(n.PosVal, bytecode.OpCallNS, int64(uint32(n.Namespace)))
	}
	g.emit(n.PosVal, op, int64(id))
}

// ---------------------------------------------------------------------------
// Navigation
// ---------------------------------------------------------------------------

// isolated compiles a subexpression that is not the receiver of the
// navigation chain being compiled, so its own ?-tests stay its own.
func (g *generator) isolated(x ast.Expr) {
	depth, jumps := g.navDepth, g.nilJumps
	g.navDepth, g.nilJumps = 0, nil
	g.expr(x)
	g.navDepth, g.nilJumps = depth, jumps
}

// navigation compiles [], [] append, .name and -> chains. A nil-testing
// link jumps past the rest of the chain when its receiver is nil; the
// chain then yields a value rather than a reference.
func (g *generator) navigation(x ast.Expr) {
	outer := g.navDepth == 0
	g.navDepth++
	defer func() { g.navDepth-- }()

	switch n := x.(type) {
	case *ast.ArrayAccess:
		g.receiver(n.LHS, n.NilTestVal)
		g.isolated(n.RHS)
		g.emit(n.PosVal, pick(n.NoRefVal, bytecode.OpArrayAV, bytecode.OpArrayAR), 0)
	case *ast.ArrayAppend:
		g.receiver(n.Array, n.NilTestVal)
		g.emit(n.PosVal, bytecode.OpArrayAppend, 0)
	case *ast.PropertyAccess:
		key := g.str(n.Property)
		g.receiver(n.Object, n.NilTestVal)
		g.emit(n.PosVal, pick(n.NoRefVal, bytecode.OpMapAV, bytecode.OpMapAR), key)
	case *ast.IndirectCall:
		if n.Callee != nil {
			g.receiver(n.Callee, n.NilTestVal)
		} else {
			// room for the result; global calls have no target
			g.emit(n.PosVal, bytecode.OpStack, 1)
		}
		g.indirectCall(n)
	}

	if outer && len(g.nilJumps) > 0 {
		g.emit(x.Position(), bytecode.OpDeref, 0)
		for _, j := range g.nilJumps {
			g.setJumpHere(j)
		}
		g.nilJumps = nil
	}
}

func (g *generator) receiver(x ast.Expr, nilTest bool) {
	switch x.(type) {
	case *ast.ArrayAccess, *ast.ArrayAppend, *ast.PropertyAccess, *ast.IndirectCall:
		g.navigation(x)
	default:
		g.isolated(x)
	}
	if nilTest {
		g.nilJumps = append(g.nilJumps, g.pos())
		g.emit(x.Position(), bytecode.OpJumpNil, 0)
	}
}
