package vm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/aul/pkg/ast"
	"github.com/chazu/aul/pkg/bytecode"
)

// Context is what a host function sees of the running script.
type Context struct {
	Engine *Engine
	Obj    Object    // nil in definition and global calls
	Def    *Script   // definition of the call, or nil
	Caller *Function // calling script function, nil for Engine.Call

	ctx context.Context
}

// Ctx returns the context.Context the call runs under.
func (c *Context) Ctx() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// frame is one activation of a script function.
type frame struct {
	fn     *Function
	obj    Object
	def    *Script
	strict ast.Strictness

	pars    []Value // fixed length, referenced by PARN_R
	vars    []Value // fixed length, referenced by VARN_R
	numVars []*Value
	stack   []Value
	pc      int
}

// run is the state shared by all activations of one Engine.Call.
type run struct {
	e     *Engine
	ctx   context.Context
	depth int
	held  int // operand values held by suspended activations
	steps int64
}

// execFault unwinds a failed call to Engine.Call.
type execFault struct{ err *ExecError }

// Call runs fn with this as the context object. Missing arguments are
// nil; script functions always receive MaxPar parameters.
func (e *Engine) Call(ctx context.Context, id FuncID, this Object, args []Value) (res Value, err error) {
	fn := e.Func(id)
	if fn == nil {
		return Nil, ErrUnknownFunction
	}
	if fn.IsScript() {
		if s := e.CompileScope(fn); s == nil || !s.IsReady() || len(fn.Code) == 0 {
			return Nil, ErrNotReady
		}
	}
	if len(args) > fn.ParCount() {
		return Nil, fmt.Errorf("vm: %s takes %d parameter(s), got %d", e.FullName(fn), fn.ParCount(), len(args))
	}
	if ctx == nil {
		ctx = context.Background()
	}
	pars := make([]Value, fn.ParCount())
	copy(pars, args)

	var def *Script
	if this != nil {
		def = e.ScriptByDef(this.Def())
	} else if owner := e.Script(fn.Owner); owner != nil && owner.Def != ast.NoID {
		def = owner
	}

	r := &run{e: e, ctx: ctx}
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		f, ok := rec.(execFault)
		if !ok {
			panic(rec)
		}
		e.log.Error(f.err.Msg, "func", f.err.Func, "pos", f.err.Pos)
		res, err = Nil, f.err
	}()
	return r.invoke(nil, fn, this, def, pars).Deref(), nil
}

// fail aborts the whole call with an error located at the current
// instruction of fr.
func (r *run) fail(fr *frame, format string, args ...any) {
	err := &ExecError{Msg: fmt.Sprintf(format, args...)}
	if fr != nil {
		err.Func = r.e.FullName(fr.fn)
		if fr.pc >= 0 && fr.pc < len(fr.fn.Code) {
			err.Pos = fr.fn.Code[fr.pc].Pos
		}
	}
	panic(execFault{err})
}

func (r *run) strictOf(fn *Function) ast.Strictness {
	if s := r.e.Script(fn.OrgScript); s != nil {
		return s.Strict
	}
	return ast.MaxStrict
}

// invoke converts the parameters and runs fn. caller is nil for calls
// from Go.
func (r *run) invoke(caller *frame, fn *Function, obj Object, def *Script, args []Value) Value {
	e := r.e
	r.depth++
	defer func() { r.depth-- }()
	if r.depth > e.cfg.MaxCallDepth {
		r.fail(caller, "context stack overflow!")
	}

	eager := caller != nil && caller.strict < ast.Strict3
	zeroNil := eager && fn.IsScript() && r.strictOf(fn) >= ast.Strict3
	for i := range args {
		t := fn.ParType(i)
		if eager && t != ast.TypeRef && !args[i].AsBool() {
			args[i] = Nil
		}
		v, ok := args[i].ConvertTo(t)
		if !ok {
			r.fail(caller, "call to \"%s\" parameter %d: got \"%s\", but expected \"%s\"!",
				fn.Name, i+1, args[i].Deref().TypeName(), t)
		}
		if zeroNil && v.IsNil() {
			switch t {
			case ast.TypeInt:
				v = Int(0)
			case ast.TypeBool:
				v = Bool(false)
			}
		}
		args[i] = v
	}

	if e.cfg.Trace {
		e.log.Debugf("T%s %s(%s)", strings.Repeat(">", r.depth), e.FullName(fn), joinValues(args))
	}

	var res Value
	if !fn.IsScript() {
		c := &Context{Engine: e, Obj: obj, Def: def, ctx: r.ctx}
		if caller != nil {
			c.Caller = caller.fn
		}
		v, err := fn.Host(c, args)
		if err != nil {
			var xe *ExecError
			if errors.As(err, &xe) {
				panic(execFault{xe})
			}
			r.fail(caller, "%s: %v", fn.Name, err)
		}
		res = v
	} else {
		if len(fn.Code) == 0 {
			r.fail(caller, "function \"%s\" is not compiled", fn.Name)
		}
		fr := &frame{
			fn:     fn,
			obj:    obj,
			def:    def,
			strict: r.strictOf(fn),
			pars:   make([]Value, bytecode.MaxPar),
			vars:   make([]Value, len(fn.VarNames)),
		}
		copy(fr.pars, args)
		res = r.exec(fr)
	}

	if e.cfg.Trace {
		e.log.Debugf("T%s %s returned %s", strings.Repeat(">", r.depth), fn.Name, res.String())
	}
	return res
}

func joinValues(vals []Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

// ---------------------------------------------------------------------------
// Operand stack helpers
// ---------------------------------------------------------------------------

func (r *run) push(fr *frame, v Value) {
	if r.held+len(fr.stack) >= r.e.cfg.MaxValueStack {
		r.fail(fr, "internal error: value stack overflow!")
	}
	fr.stack = append(fr.stack, v)
}

func (r *run) pop(fr *frame, n int) {
	if n > len(fr.stack) {
		r.fail(fr, "internal error: value stack underflow!")
	}
	for i := len(fr.stack) - n; i < len(fr.stack); i++ {
		fr.stack[i] = Nil
	}
	fr.stack = fr.stack[:len(fr.stack)-n]
}

// at returns the address of the value depth slots below the top (0 is
// the top).
func (r *run) at(fr *frame, depth int) *Value {
	i := len(fr.stack) - 1 - depth
	if i < 0 {
		r.fail(fr, "internal error: value stack underflow!")
	}
	return &fr.stack[i]
}

// ---------------------------------------------------------------------------
// Operand checks
// ---------------------------------------------------------------------------

// checkOp validates an operand used by value. Below #strict 3 a falsy
// operand counts as nil.
func (r *run) checkOp(fr *frame, v Value, want ast.ValueType, op ast.OpID, side string, allowAny bool) Value {
	strict3 := fr.strict >= ast.Strict3
	if !strict3 && want != ast.TypeRef && !v.AsBool() {
		v = Nil
	}
	cv, ok := v.ConvertTo(want)
	if !ok {
		r.fail(fr, "operator \"%s\"%s: got \"%s\", but expected \"%s\"!", op, side, v.Deref().TypeName(), want)
	}
	if !allowAny && strict3 && cv.IsNil() {
		r.fail(fr, "operator \"%s\"%s: got nil, but expected \"%s\"!", op, side, want)
	}
	return cv
}

// checkRef validates an operand that must reference a variable of type
// want and returns the variable.
func (r *run) checkRef(fr *frame, v Value, want ast.ValueType, op ast.OpID, side string, allowAny bool) *Value {
	if !v.IsRef() {
		r.fail(fr, "operator \"%s\"%s: got \"%s\", but expected \"%s&\"!", op, side, v.TypeName(), want)
	}
	p := v.target()
	strict3 := fr.strict >= ast.Strict3
	if !strict3 && !p.AsBool() {
		*p = Nil
	}
	if _, ok := p.ConvertTo(want); !ok {
		r.fail(fr, "operator \"%s\"%s: got \"%s&\", but expected \"%s&\"!", op, side, p.TypeName(), want)
	}
	if !allowAny && strict3 && p.IsNil() {
		r.fail(fr, "operator \"%s\"%s: got nil, but expected \"%s\"!", op, side, want)
	}
	return p
}

// binaryOps checks and returns both operands of a value operator.
func (r *run) binaryOps(fr *frame, op ast.OpID, allowAny bool) (Value, Value) {
	def := op.Def()
	b := r.checkOp(fr, *r.at(fr, 0), def.Type2, op, " right side", allowAny)
	a := r.checkOp(fr, *r.at(fr, 1), def.Type1, op, " left side", allowAny)
	return a, b
}

// assignOps checks the operands of a compound assignment: a reference to
// an int and an int.
func (r *run) assignOps(fr *frame, op ast.OpID) (*Value, int32) {
	b := r.checkOp(fr, *r.at(fr, 0), op.Def().Type2, op, " right side", false)
	p := r.checkRef(fr, *r.at(fr, 1), ast.TypeInt, op, " left side", false)
	return p, b.AsInt()
}

// ---------------------------------------------------------------------------
// Integer arithmetic
// ---------------------------------------------------------------------------

func pow(base, exp int32) int32 {
	if exp < 0 {
		return 0
	}
	result := int32(1)
	for exp > 0 {
		if exp&1 != 0 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}

// Shift counts are taken modulo 32.
func shl(a, b int32) int32 { return a << (uint32(b) & 31) }
func shr(a, b int32) int32 { return a >> (uint32(b) & 31) }

func div(a, b int32) int32 {
	if b == 0 {
		return 0
	}
	return a / b
}

func mod(a, b int32) int32 {
	if b == 0 {
		return 0
	}
	return a % b
}

func arith(op bytecode.Opcode, a, b int32) int32 {
	switch op {
	case bytecode.OpPow, bytecode.OpPowIt:
		return pow(a, b)
	case bytecode.OpDiv, bytecode.OpDivIt:
		return div(a, b)
	case bytecode.OpMul, bytecode.OpMulIt:
		return a * b
	case bytecode.OpMod, bytecode.OpModIt:
		return mod(a, b)
	case bytecode.OpSub, bytecode.OpDec:
		return a - b
	case bytecode.OpSum, bytecode.OpInc:
		return a + b
	case bytecode.OpLeftShift, bytecode.OpLeftShiftIt:
		return shl(a, b)
	case bytecode.OpRightShift, bytecode.OpRightShiftIt:
		return shr(a, b)
	case bytecode.OpBitAnd, bytecode.OpAndIt:
		return a & b
	case bytecode.OpBitXOr, bytecode.OpXOrIt:
		return a ^ b
	case bytecode.OpBitOr, bytecode.OpOrIt:
		return a | b
	}
	return 0
}

// ---------------------------------------------------------------------------
// Execution loop
// ---------------------------------------------------------------------------

func (r *run) tick(fr *frame) {
	r.steps++
	if b := r.e.cfg.StepBudget; b > 0 && r.steps > b {
		r.fail(fr, "step budget of %d exhausted", b)
	}
	if r.steps&0x3ff == 0 {
		if err := r.ctx.Err(); err != nil {
			r.fail(fr, "execution cancelled: %v", err)
		}
	}
}

// exec runs one activation to its RETURN and yields the return value.
func (r *run) exec(fr *frame) Value {
	e := r.e
	code := fr.fn.Code
	for {
		if fr.pc < 0 || fr.pc >= len(code) {
			r.fail(fr, "internal error: code position %d out of range", fr.pc)
		}
		r.tick(fr)
		ch := code[fr.pc]
		next := fr.pc + 1

		switch ch.Op {
		// ============ Literals and stack ============
		case bytecode.OpNil:
			r.push(fr, Nil)
		case bytecode.OpInt:
			r.push(fr, Int(int32(ch.X)))
		case bytecode.OpBool:
			r.push(fr, Bool(ch.X != 0))
		case bytecode.OpString:
			s, ok := e.strings.Value(StringID(ch.X))
			if !ok {
				r.fail(fr, "internal error: unknown string %d", ch.X)
			}
			r.push(fr, String(s))
		case bytecode.OpC4ID:
			r.push(fr, IDValue(ast.ID(uint32(ch.X))))
		case bytecode.OpThis:
			r.push(fr, ObjectValue(fr.obj))
		case bytecode.OpStack:
			if ch.X < 0 {
				r.pop(fr, int(-ch.X))
			}
			for i := int64(0); i < ch.X; i++ {
				r.push(fr, Nil)
			}
		case bytecode.OpDeref:
			top := r.at(fr, 0)
			*top = top.Deref()

		case bytecode.OpArray:
			n := int(ch.X)
			if n > len(fr.stack) {
				r.fail(fr, "internal error: value stack underflow!")
			}
			vals := make([]Value, n)
			for i, v := range fr.stack[len(fr.stack)-n:] {
				vals[i] = v.Deref()
			}
			r.pop(fr, n)
			r.push(fr, ArrayOf(vals...))
		case bytecode.OpMap:
			n := int(ch.X) * 2
			if n > len(fr.stack) {
				r.fail(fr, "internal error: value stack underflow!")
			}
			m := NewMap()
			items := fr.stack[len(fr.stack)-n:]
			for i := 0; i < n; i += 2 {
				m.Set(items[i].Deref(), items[i+1].Deref())
			}
			r.pop(fr, n)
			r.push(fr, MapValue(m))

		// ============ Variables ============
		case bytecode.OpParNR, bytecode.OpParNV:
			if ch.X < 0 || int(ch.X) >= len(fr.pars) {
				r.fail(fr, "internal error: parameter %d out of range", ch.X)
			}
			if ch.Op == bytecode.OpParNR {
				r.push(fr, refTo(&fr.pars[ch.X]))
			} else {
				r.push(fr, fr.pars[ch.X])
			}
		case bytecode.OpVarNR, bytecode.OpVarNV:
			if ch.X < 0 || int(ch.X) >= len(fr.vars) {
				r.fail(fr, "internal error: variable %d out of range", ch.X)
			}
			if ch.Op == bytecode.OpVarNR {
				r.push(fr, refTo(&fr.vars[ch.X]))
			} else {
				r.push(fr, fr.vars[ch.X])
			}
		case bytecode.OpLocalNR, bytecode.OpLocalNV:
			p := r.local(fr, int(ch.X))
			if ch.Op == bytecode.OpLocalNR {
				r.push(fr, refTo(p))
			} else {
				r.push(fr, *p)
			}
		case bytecode.OpGlobalNR, bytecode.OpGlobalNV:
			p := e.Global(int(ch.X))
			if p == nil {
				r.fail(fr, "internal error: global variable %d out of range", ch.X)
			}
			if ch.Op == bytecode.OpGlobalNR {
				r.push(fr, refTo(p))
			} else {
				r.push(fr, *p)
			}
		case bytecode.OpIVarN:
			if ch.X < 0 || int(ch.X) >= len(fr.vars) {
				r.fail(fr, "internal error: variable %d out of range", ch.X)
			}
			fr.vars[ch.X] = r.at(fr, 0).Deref()
			r.pop(fr, 1)

		case bytecode.OpVarR, bytecode.OpVarV:
			top := r.at(fr, 0)
			idx, ok := top.ConvertTo(ast.TypeInt)
			if !ok {
				r.fail(fr, "Var: index of type %s, int expected!", top.Deref().TypeName())
			}
			n := int(idx.AsInt())
			if n < 0 {
				r.fail(fr, "Var: index %d out of range!", n)
			}
			for n >= len(fr.numVars) {
				fr.numVars = append(fr.numVars, &Value{})
			}
			if ch.Op == bytecode.OpVarR {
				*top = refTo(fr.numVars[n])
			} else {
				*top = *fr.numVars[n]
			}
		case bytecode.OpParR, bytecode.OpParV:
			top := r.at(fr, 0)
			idx, ok := top.ConvertTo(ast.TypeInt)
			if !ok {
				r.fail(fr, "Par: index of type %s, int expected!", top.Deref().TypeName())
			}
			n := int(idx.AsInt())
			switch {
			case n < 0 || n >= len(fr.pars):
				*top = Nil
			case ch.Op == bytecode.OpParR:
				*top = refTo(&fr.pars[n])
			default:
				*top = fr.pars[n]
			}

		// ============ Containers ============
		case bytecode.OpArrayAR, bytecode.OpArrayAV:
			res := r.index(fr, r.at(fr, 1).Deref(), r.at(fr, 0).Deref(), ch.Op == bytecode.OpArrayAR)
			r.pop(fr, 1)
			*r.at(fr, 0) = res
		case bytecode.OpMapAR, bytecode.OpMapAV:
			key, _ := e.strings.Value(StringID(ch.X))
			top := r.at(fr, 0)
			*top = r.member(fr, top.Deref(), key, ch.Op == bytecode.OpMapAR)
		case bytecode.OpArrayAppend:
			top := r.at(fr, 0)
			v := top.Deref()
			if v.Type() != ast.TypeArray {
				r.fail(fr, "array append accesss: can't access %s as an array!", v.TypeName())
			}
			*top = refTo(v.arr.slot(v.arr.Len()))

		// ============ Unary operators ============
		case bytecode.OpInc1, bytecode.OpDec1:
			op := ast.OpID(ch.X)
			p := r.checkRef(fr, *r.at(fr, 0), ast.TypeInt, op, "", false)
			if ch.Op == bytecode.OpInc1 {
				*p = Int(p.AsInt() + 1)
			} else {
				*p = Int(p.AsInt() - 1)
			}
		case bytecode.OpInc1Postfix, bytecode.OpDec1Postfix:
			op := ast.OpID(ch.X)
			top := r.at(fr, 0)
			p := r.checkRef(fr, *top, ast.TypeInt, op, "", false)
			old := p.AsInt()
			if ch.Op == bytecode.OpInc1Postfix {
				*p = Int(old + 1)
			} else {
				*p = Int(old - 1)
			}
			*top = Int(old)
		case bytecode.OpBitNot:
			top := r.at(fr, 0)
			v := r.checkOp(fr, *top, ast.TypeInt, ast.OpID(ch.X), "", false)
			*top = Int(^v.AsInt())
		case bytecode.OpNeg:
			top := r.at(fr, 0)
			v := r.checkOp(fr, *top, ast.TypeInt, ast.OpID(ch.X), "", false)
			*top = Int(-v.AsInt())
		case bytecode.OpNot:
			top := r.at(fr, 0)
			v := r.checkOp(fr, *top, ast.TypeBool, ast.OpID(ch.X), "", true)
			*top = Bool(!v.AsBool())

		// ============ Binary operators ============
		case bytecode.OpPow, bytecode.OpDiv, bytecode.OpMul, bytecode.OpMod,
			bytecode.OpSub, bytecode.OpSum, bytecode.OpLeftShift, bytecode.OpRightShift,
			bytecode.OpBitAnd, bytecode.OpBitXOr, bytecode.OpBitOr:
			a, b := r.binaryOps(fr, ast.OpID(ch.X), false)
			r.pop(fr, 1)
			*r.at(fr, 0) = Int(arith(ch.Op, a.AsInt(), b.AsInt()))
		case bytecode.OpLessThan, bytecode.OpLessThanEqual, bytecode.OpGreaterThan, bytecode.OpGreaterThanEqual:
			a, b := r.binaryOps(fr, ast.OpID(ch.X), false)
			x, y := a.AsInt(), b.AsInt()
			var res bool
			switch ch.Op {
			case bytecode.OpLessThan:
				res = x < y
			case bytecode.OpLessThanEqual:
				res = x <= y
			case bytecode.OpGreaterThan:
				res = x > y
			default:
				res = x >= y
			}
			r.pop(fr, 1)
			*r.at(fr, 0) = Bool(res)
		case bytecode.OpEqualIdent, bytecode.OpNotEqualIdent, bytecode.OpEqual, bytecode.OpNotEqual:
			a, b := r.binaryOps(fr, ast.OpID(ch.X), true)
			strict := fr.strict
			if ch.Op == bytecode.OpEqualIdent || ch.Op == bytecode.OpNotEqualIdent {
				strict = ast.NonStrict
			}
			eq := a.Equals(b, strict)
			if ch.Op == bytecode.OpNotEqualIdent || ch.Op == bytecode.OpNotEqual {
				eq = !eq
			}
			r.pop(fr, 1)
			*r.at(fr, 0) = Bool(eq)
		case bytecode.OpSEqual, bytecode.OpSNEqual:
			a, b := r.binaryOps(fr, ast.OpID(ch.X), true)
			eq := a.AsString() == b.AsString()
			if ch.Op == bytecode.OpSNEqual {
				eq = !eq
			}
			r.pop(fr, 1)
			*r.at(fr, 0) = Bool(eq)
		case bytecode.OpAnd, bytecode.OpOr:
			a, b := r.binaryOps(fr, ast.OpID(ch.X), true)
			res := a.AsBool() && b.AsBool()
			if ch.Op == bytecode.OpOr {
				res = a.AsBool() || b.AsBool()
			}
			r.pop(fr, 1)
			*r.at(fr, 0) = Bool(res)
		case bytecode.OpConcat:
			r.concat(fr, ast.OpID(ch.X), false)

		// ============ Assignment ============
		case bytecode.OpPowIt, bytecode.OpMulIt, bytecode.OpDivIt, bytecode.OpModIt,
			bytecode.OpInc, bytecode.OpDec, bytecode.OpLeftShiftIt, bytecode.OpRightShiftIt,
			bytecode.OpAndIt, bytecode.OpOrIt, bytecode.OpXOrIt:
			p, b := r.assignOps(fr, ast.OpID(ch.X))
			*p = Int(arith(ch.Op, p.AsInt(), b))
			r.pop(fr, 1)
		case bytecode.OpConcatIt:
			r.concat(fr, ast.OpID(ch.X), true)
		case bytecode.OpSet:
			op := ast.OpID(ch.X)
			if !op.Valid() {
				op = ast.OpSet
			}
			left := r.checkOp(fr, *r.at(fr, 1), ast.TypeRef, op, " left side", true)
			*left.target() = r.at(fr, 0).Deref()
			r.pop(fr, 1)
		case bytecode.OpNilCoalescingIt:
			top := *r.at(fr, 0)
			if !top.IsRef() {
				r.fail(fr, "operator \"??=\" left side: got \"%s\", but expected \"&\"!", top.TypeName())
			}
			if !top.target().IsNil() {
				next = fr.pc + int(ch.X)
			}

		// ============ Jumps ============
		case bytecode.OpJump:
			next = fr.pc + int(ch.X)
		case bytecode.OpJumpAnd:
			if !r.at(fr, 0).AsBool() {
				next = fr.pc + int(ch.X)
			} else {
				r.pop(fr, 1)
			}
		case bytecode.OpJumpOr:
			if r.at(fr, 0).AsBool() {
				next = fr.pc + int(ch.X)
			} else {
				r.pop(fr, 1)
			}
		case bytecode.OpJumpNil:
			top := r.at(fr, 0)
			if top.Deref().IsNil() {
				*top = Nil
				next = fr.pc + int(ch.X)
			}
		case bytecode.OpJumpNotNil:
			if !r.at(fr, 0).Deref().IsNil() {
				next = fr.pc + int(ch.X)
			} else {
				r.pop(fr, 1)
			}
		case bytecode.OpCondN:
			cond := r.at(fr, 0).AsBool()
			r.pop(fr, 1)
			if !cond {
				next = fr.pc + int(ch.X)
			}

		// ============ Loops ============
		case bytecode.OpForeachNext:
			counter := r.at(fr, 0)
			i := int(counter.AsInt())
			arr := r.at(fr, 1).Deref()
			if i == 0 && arr.Type() != ast.TypeArray {
				r.fail(fr, "for: array expected, but got %s!", arr.TypeName())
			}
			if arr.arr == nil || i >= arr.arr.Len() {
				break
			}
			r.setVar(fr, ch.X, arr.arr.At(i))
			*counter = Int(int32(i + 1))
			next = fr.pc + 2
		case bytecode.OpForeachMapNext:
			iter := r.at(fr, 0)
			i := int(iter.AsInt())
			m := r.at(fr, 2).Deref()
			if i == 0 && m.Type() != ast.TypeMap {
				r.fail(fr, "for: map expected, but got %s!", m.TypeName())
			}
			if i == 0 {
				i = 1
			}
			idx := i - 1
			if m.m == nil || idx >= m.m.Len() {
				break
			}
			k, v := m.m.Entry(idx)
			r.setVar(fr, ch.X, k)
			r.setVar(fr, int64(r.at(fr, 1).AsInt()), v)
			*iter = Int(int32(idx + 2))
			next = fr.pc + 2

		// ============ Calls ============
		case bytecode.OpFunc:
			r.callDirect(fr, FuncID(ch.X))
		case bytecode.OpCall, bytecode.OpCallFS, bytecode.OpCallGlobal:
			r.callTarget(fr, ch)
		case bytecode.OpCallNS:

		case bytecode.OpReturn:
			v := *r.at(fr, 0)
			if !fr.fn.ReturnRef {
				v = v.Deref()
			}
			return v

		// ============ Faults ============
		case bytecode.OpEOFN:
			r.fail(fr, "function didn't return")
		case bytecode.OpErr:
			r.fail(fr, "syntax error: see previous parser error for details.")
		case bytecode.OpEOF:
			r.fail(fr, "internal error: end of script reached")
		default:
			r.fail(fr, "internal error: unexpected opcode %s", ch.Op)
		}
		fr.pc = next
	}
}

func (r *run) setVar(fr *frame, slot int64, v Value) {
	if slot < 0 || int(slot) >= len(fr.vars) {
		r.fail(fr, "internal error: variable %d out of range", slot)
	}
	fr.vars[slot] = v.Deref()
}

// local returns the storage of an object-local variable of the running
// function's definition.
func (r *run) local(fr *frame, slot int) *Value {
	if fr.obj == nil {
		r.fail(fr, "can't access local variables in a definition call!")
	}
	owner := r.e.scripts[fr.fn.Owner]
	name := ""
	if slot >= 0 && slot < len(owner.LocalNamed) {
		name = owner.LocalNamed[slot]
	}
	if owner.Def != fr.obj.Def() {
		objScript := r.e.ScriptByDef(fr.obj.Def())
		if fr.strict >= ast.Strict3 || objScript == nil || slot >= len(objScript.LocalNamed) {
			r.fail(fr, "can't access local variable \"%s\" after ChangeDef!", name)
		}
	}
	p := fr.obj.Local(slot)
	if p == nil {
		r.fail(fr, "internal error: local variable %d out of range", slot)
	}
	return p
}

// index implements container[index].
func (r *run) index(fr *frame, c, idx Value, asRef bool) Value {
	switch c.Type() {
	case ast.TypeAny:
		r.fail(fr, "indexed access [index]: array, map or string expected, but got nil")
	case ast.TypeObject:
		if idx.Type() != ast.TypeString {
			r.fail(fr, "indexed access on object: only string keys are allowed")
		}
		return r.objectLocal(c.obj, idx.s, asRef)
	case ast.TypeArray:
		n, ok := idx.ConvertTo(ast.TypeInt)
		if !ok {
			r.fail(fr, "array access: index of type %s, int expected!", idx.TypeName())
		}
		i := int(n.AsInt())
		if i < 0 {
			r.fail(fr, "array access: index %d out of range!", i)
		}
		if asRef {
			return refTo(c.arr.slot(i))
		}
		return c.arr.At(i)
	case ast.TypeMap:
		if asRef {
			return refTo(c.m.slot(idx))
		}
		v, _ := c.m.Get(idx)
		return v
	case ast.TypeString:
		if idx.Type() != ast.TypeInt {
			r.fail(fr, "indexed string access: index of type %s, int expected!", idx.TypeName())
		}
		i := int(idx.i)
		if i < 0 {
			i += len(c.s)
		}
		if i < 0 || i >= len(c.s) {
			return Nil
		}
		return String(c.s[i : i+1])
	}
	r.fail(fr, "indexed access: can't access %s by index!", c.TypeName())
	return Nil
}

// member implements container.key.
func (r *run) member(fr *frame, c Value, key string, asRef bool) Value {
	switch c.Type() {
	case ast.TypeAny:
		r.fail(fr, "map access with .: map expected, but got nil!")
	case ast.TypeMap:
		k := String(key)
		if asRef {
			return refTo(c.m.slot(k))
		}
		v, _ := c.m.Get(k)
		return v
	case ast.TypeObject:
		return r.objectLocal(c.obj, key, asRef)
	}
	r.fail(fr, "map access with .: map expected, but got \"%s\"!", c.TypeName())
	return Nil
}

func (r *run) objectLocal(o Object, name string, asRef bool) Value {
	p := r.e.LocalByName(o, name)
	switch {
	case p == nil:
		return Nil
	case asRef:
		return refTo(p)
	}
	return *p
}

// concat implements .. and ..=: maps merge, arrays append, scalars join
// as strings. The plain operator never modifies its left operand.
func (r *run) concat(fr *frame, op ast.OpID, assign bool) {
	var target *Value
	var a Value
	if assign {
		left := r.checkOp(fr, *r.at(fr, 1), ast.TypeRef, op, " left side", true)
		target = left.target()
		a = *target
	} else {
		a = r.checkOp(fr, *r.at(fr, 1), ast.TypeAny, op, " left side", true)
	}
	b := r.checkOp(fr, *r.at(fr, 0), ast.TypeAny, op, " right side", true)

	var res Value
	switch a.Type() {
	case ast.TypeMap:
		bm := r.checkOp(fr, b, ast.TypeMap, op, " right side", true)
		m := a.m
		if !assign {
			m = m.clone()
		}
		if bm.m != nil {
			for i := 0; i < bm.m.Len(); i++ {
				k, v := bm.m.Entry(i)
				m.Set(k, v)
			}
		}
		res = MapValue(m)
	case ast.TypeArray:
		ba := r.checkOp(fr, b, ast.TypeArray, op, " right side", true)
		arr := a.arr
		if !assign {
			arr = arr.clone()
		}
		if ba.arr != nil {
			for _, v := range ba.arr.Elements() {
				arr.Append(v)
			}
		}
		res = ArrayValue(arr)
	default:
		s1, ok := a.text()
		if !ok {
			r.fail(fr, "operator \"%s\" left side: can not convert \"%s\" to \"string\", \"array\" or \"map\"!", op, a.Type())
		}
		s2, ok := b.text()
		if !ok {
			r.fail(fr, "operator \"%s\" right side: can not convert \"%s\" to \"string\"!", op, b.Type())
		}
		res = String(s1 + s2)
	}

	r.pop(fr, 1)
	if assign {
		*target = res
		return
	}
	*r.at(fr, 0) = res
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// callDirect implements FUNC: the arguments are the top ParCount values
// and the call runs in the caller's object context.
func (r *run) callDirect(fr *frame, id FuncID) {
	fn := r.e.Func(id)
	if fn == nil {
		r.fail(fr, "internal error: unknown function %d", id)
	}
	if fn.IsScript() && !r.e.CanCall(fn, fr.fn.OrgScript) {
		r.fail(fr, "Insufficient access level for function \"%s\"!", fn.Name)
	}
	n := fn.ParCount()
	if n > len(fr.stack) {
		r.fail(fr, "internal error: value stack underflow!")
	}
	args := append([]Value(nil), fr.stack[len(fr.stack)-n:]...)
	res := r.nested(fr, fn, fr.obj, fr.def, args)
	r.pop(fr, n)
	r.push(fr, res)
}

// callTarget implements CALL, CALLFS and CALLGLOBAL: a target slot
// followed by MaxPar arguments.
func (r *run) callTarget(fr *frame, ch bytecode.Chunk) {
	e := r.e
	global := ch.Op == bytecode.OpCallGlobal
	if len(fr.stack) < bytecode.MaxPar+1 {
		r.fail(fr, "internal error: value stack underflow!")
	}
	target := r.at(fr, bytecode.MaxPar)
	named := e.Func(FuncID(ch.X))
	if named == nil {
		r.fail(fr, "internal error: unknown function %d", ch.X)
	}

	var obj Object
	var def *Script
	scope := ScriptID(-1)
	if !global {
		t := target.Deref()
		if !t.AsBool() {
			r.fail(fr, "Object call: target is zero!")
		}
		if t.Type() == ast.TypeObject {
			obj = t.obj
			def = e.ScriptByDef(obj.Def())
		} else if id, ok := t.ConvertTo(ast.TypeID); ok && id.Type() == ast.TypeID {
			def = e.ScriptByDef(id.AsID())
			if def == nil {
				r.fail(fr, "Definition call: Definition for id %s not found!", id.AsID())
			}
		} else {
			r.fail(fr, "Object call: Invalid target type %s, expected object or id!", t.TypeName())
		}
		if def != nil {
			scope = def.ID
		}
	}

	fn := e.Func(e.topOverload(named.ID))
	if !global {
		fn = e.Func(e.FindSameNameFunc(fn, scope))
		if fn == nil && ch.Op == bytecode.OpCallFS {
			r.pop(fr, bytecode.MaxPar)
			*r.at(fr, 0) = Nil
			return
		}
	}
	if fn == nil {
		if obj != nil {
			r.fail(fr, "Object call: No function \"%s\" in object \"%s\"!", named.Name, target.Deref().String())
		}
		name := "(unknown)"
		if def != nil {
			name = def.Name
		}
		r.fail(fr, "Definition call: No function \"%s\" in definition \"%s\"!", named.Name, name)
	}
	if fn.IsScript() && !e.CanCall(fn, fr.fn.OrgScript) {
		r.fail(fr, "Insufficient access level for function \"%s\"!", fn.Name)
	}

	n := fn.ParCount()
	args := make([]Value, n)
	copy(args, fr.stack[len(fr.stack)-bytecode.MaxPar:])
	res := r.nested(fr, fn, obj, def, args)
	r.pop(fr, bytecode.MaxPar)
	*r.at(fr, 0) = res
}

// nested runs a call made from fr, accounting for the values fr holds.
func (r *run) nested(fr *frame, fn *Function, obj Object, def *Script, args []Value) Value {
	n := len(fr.stack)
	r.held += n
	defer func() { r.held -= n }()
	return r.invoke(fr, fn, obj, def, args)
}
