package ast

import (
	"fmt"

	"github.com/chazu/aul/pkg/bytecode"
	"github.com/fxamacker/cbor/v2"
)

// WireVersion identifies the CBOR layout written by Marshal.
const WireVersion uint16 = 1

// wireFile is the top-level envelope of a serialized tree.
type wireFile struct {
	Version uint16    `cbor:"Version"`
	Root    *wireNode `cbor:"Root"`
}

// wireNode is a flat union of every node's fields. Keys follow the
// naming used by the engine's own tree serializer.
type wireNode struct {
	Kind        string    `cbor:"Kind"`
	Position    int32     `cbor:"Position,omitempty"`
	Type        ValueType `cbor:"Type,omitempty"`
	NoRef       bool      `cbor:"NoRef,omitempty"`
	NilTest     bool      `cbor:"NilTest,omitempty"`
	PreferStack bool      `cbor:"PreferStack,omitempty"`
	FailSafe    bool      `cbor:"FailSafe,omitempty"`
	GlobalCall  bool      `cbor:"GlobalCall,omitempty"`
	NoWarn      bool      `cbor:"NoWarn,omitempty"`
	Int         int64     `cbor:"Int,omitempty"`
	Bool        bool      `cbor:"Bool,omitempty"`
	String      string    `cbor:"String,omitempty"`
	ID          ID        `cbor:"ID,omitempty"`
	Identifier  string    `cbor:"Identifier,omitempty"`
	Operator    OpID      `cbor:"Operator,omitempty"`
	Description string    `cbor:"Description,omitempty"`

	Prototype    *wireProto  `cbor:"Prototype,omitempty"`
	Value        *wireNode   `cbor:"Value,omitempty"`
	Expression   *wireNode   `cbor:"Expression,omitempty"`
	LHS          *wireNode   `cbor:"LHS,omitempty"`
	RHS          *wireNode   `cbor:"RHS,omitempty"`
	Callee       *wireNode   `cbor:"Callee,omitempty"`
	Condition    *wireNode   `cbor:"Condition,omitempty"`
	Then         *wireNode   `cbor:"Then,omitempty"`
	Else         *wireNode   `cbor:"Else,omitempty"`
	Init         *wireNode   `cbor:"Init,omitempty"`
	After        *wireNode   `cbor:"After,omitempty"`
	Body         *wireNode   `cbor:"Body,omitempty"`
	Iterable     *wireNode   `cbor:"Iterable,omitempty"`
	Statements   []*wireNode `cbor:"Statements,omitempty"`
	Expressions  []*wireNode `cbor:"Expressions,omitempty"`
	Arguments    []*wireNode `cbor:"Arguments,omitempty"`
	Declarations []*wireNode `cbor:"Declarations,omitempty"`
	Entries      []wireEntry `cbor:"Entries,omitempty"`
}

type wireEntry struct {
	Key   *wireNode `cbor:"Key"`
	Value *wireNode `cbor:"Value"`
}

type wireParam struct {
	Type  ValueType `cbor:"Type,omitempty"`
	Name  string    `cbor:"Name"`
	IsRef bool      `cbor:"IsRef,omitempty"`
}

type wireProto struct {
	Position   int32       `cbor:"Position,omitempty"`
	ReturnType ValueType   `cbor:"ReturnType,omitempty"`
	ReturnRef  bool        `cbor:"ReturnRef,omitempty"`
	Access     Access      `cbor:"Access,omitempty"`
	Name       string      `cbor:"Name"`
	Parameters []wireParam `cbor:"Parameters,omitempty"`
}

// Marshal serializes the tree rooted at n to canonical CBOR.
func Marshal(n Node) ([]byte, error) {
	root, err := toWire(n)
	if err != nil {
		return nil, err
	}
	return bytecode.Marshal(&wireFile{Version: WireVersion, Root: root})
}

// Unmarshal decodes a tree written by Marshal.
func Unmarshal(data []byte) (Node, error) {
	var f wireFile
	if err := cbor.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("ast: unmarshal: %w", err)
	}
	if f.Version != WireVersion {
		return nil, fmt.Errorf("ast: unsupported wire version %d", f.Version)
	}
	if f.Root == nil {
		return nil, fmt.Errorf("ast: unmarshal: empty tree")
	}
	return fromWire(f.Root)
}

// UnmarshalScript decodes a tree whose root must be a Script.
func UnmarshalScript(data []byte) (*Script, error) {
	n, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	s, ok := n.(*Script)
	if !ok {
		return nil, fmt.Errorf("ast: root is %s, want Script", n.Kind())
	}
	return s, nil
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

func toWire(n Node) (*wireNode, error) {
	if n == nil || isNilNode(n) {
		return nil, nil
	}
	w := &wireNode{Kind: n.Kind().String(), Position: n.Position()}
	var err error
	child := func(c Node) *wireNode {
		if err != nil {
			return nil
		}
		var cw *wireNode
		cw, err = toWire(c)
		return cw
	}
	exprs := func(es []Expr) []*wireNode {
		out := make([]*wireNode, 0, len(es))
		for _, e := range es {
			out = append(out, child(e))
		}
		return out
	}
	stmts := func(ss []Node) []*wireNode {
		out := make([]*wireNode, 0, len(ss))
		for _, s := range ss {
			out = append(out, child(s))
		}
		return out
	}

	switch n := n.(type) {
	case *Nil:
		w.PreferStack = n.PreferStack
	case *IntLiteral:
		w.Int = int64(n.Value)
	case *BoolLiteral:
		w.Bool = n.Value
	case *StringLiteral:
		w.String = n.Value
	case *C4IDLiteral:
		w.ID = n.Value
	case *ArrayLiteral:
		w.Expressions = exprs(n.Elements)
	case *MapLiteral:
		for _, kv := range n.Entries {
			w.Entries = append(w.Entries, wireEntry{Key: child(kv.Key), Value: child(kv.Value)})
		}
	case *GlobalConstant:
		w.Identifier = n.Name
		w.Value = child(n.Value)
	case *ParN:
		w.Type, w.NoRef, w.Int = n.TypeVal, n.NoRefVal, int64(n.N)
	case *Par:
		w.Type, w.NoRef = n.TypeVal, n.NoRefVal
		w.Expression = child(n.Index)
	case *VarN:
		w.Type, w.NoRef, w.Identifier = n.TypeVal, n.NoRefVal, n.Name
	case *Var:
		w.Type, w.NoRef = n.TypeVal, n.NoRefVal
		w.Expression = child(n.Index)
	case *LocalN:
		w.Type, w.NoRef, w.Identifier = n.TypeVal, n.NoRefVal, n.Name
	case *GlobalN:
		w.Type, w.NoRef, w.Identifier = n.TypeVal, n.NoRefVal, n.Name
	case *Declaration:
		w.Int, w.Identifier = int64(n.Type), n.Name
		w.Value = child(n.Value)
	case *Declarations:
		for _, d := range n.Decls {
			w.Declarations = append(w.Declarations, child(d))
		}
	case *UnaryOp:
		w.Operator = n.Op
		w.Expression = child(n.Operand)
	case *BinaryOp:
		w.Operator = n.Op
		w.LHS, w.RHS = child(n.LHS), child(n.RHS)
	case *Prototype:
		w.Prototype = protoToWire(n)
	case *Function:
		w.Description = n.Description
		if n.Proto != nil {
			w.Prototype = protoToWire(n.Proto)
		}
		w.Body = child(n.Body)
	case *Block:
		w.Statements = stmts(n.Statements)
	case *Script:
		w.Statements = stmts(n.Statements)
	case *Include:
		w.ID, w.NoWarn = n.ID, n.NoWarn
	case *Append:
		w.ID, w.NoWarn = n.ID, n.NoWarn
	case *StrictDirective:
		w.Int = int64(n.Level)
	case *Return:
		w.PreferStack = n.PreferStack
		w.Expressions = exprs(n.Exprs)
	case *ReturnAsParam:
		w.Type, w.PreferStack = n.TypeVal, n.PreferStack
		w.Expression = child(n.Value)
	case *Call:
		w.Type, w.Identifier = n.TypeVal, n.Name
		w.Arguments = exprs(n.Args)
	case *Inherited:
		w.Type, w.Identifier, w.FailSafe = n.TypeVal, n.Name, n.FailSafe
		w.Arguments = exprs(n.Args)
	case *ArrayAccess:
		w.Type, w.NoRef, w.NilTest = n.TypeVal, n.NoRefVal, n.NilTestVal
		w.LHS, w.RHS = child(n.LHS), child(n.RHS)
	case *ArrayAppend:
		w.Type, w.NilTest = n.TypeVal, n.NilTestVal
		w.Expression = child(n.Array)
	case *PropertyAccess:
		w.Type, w.NoRef, w.NilTest, w.Identifier = n.TypeVal, n.NoRefVal, n.NilTestVal, n.Property
		w.Expression = child(n.Object)
	case *IndirectCall:
		w.Type, w.NilTest, w.GlobalCall, w.FailSafe = n.TypeVal, n.NilTestVal, n.Global, n.FailSafe
		w.ID, w.Identifier = n.Namespace, n.Name
		w.Callee = child(n.Callee)
		w.Arguments = exprs(n.Args)
	case *If:
		w.Condition, w.Then, w.Else = child(n.Condition), child(n.Then), child(n.Else)
	case *ExprIf:
		w.Type = n.TypeVal
		w.Condition, w.Then, w.Else = child(n.Condition), child(n.Then), child(n.Else)
	case *While:
		w.Condition, w.Body = child(n.Condition), child(n.Body)
	case *For:
		w.Init, w.Condition, w.After, w.Body = child(n.Init), child(n.Condition), child(n.After), child(n.Body)
	case *ForEach:
		w.Init, w.Iterable, w.Body = child(n.Init), child(n.Iterable), child(n.Body)
	case *Error:
		w.String = n.Message
	case *Break, *Continue, *This, *Nop:
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownNode, n)
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func protoToWire(p *Prototype) *wireProto {
	wp := &wireProto{
		Position:   p.PosVal,
		ReturnType: p.ReturnType,
		ReturnRef:  p.ReturnRef,
		Access:     p.Access,
		Name:       p.Name,
	}
	for _, par := range p.Params {
		wp.Parameters = append(wp.Parameters, wireParam{Type: par.Type, Name: par.Name, IsRef: par.IsRef})
	}
	return wp
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

// decoder keeps the first error so conversions can be written inline.
type decoder struct {
	err error
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf("ast: "+format, args...)
	}
}

func (d *decoder) node(w *wireNode) Node {
	if w == nil || d.err != nil {
		return nil
	}
	n, err := fromWire(w)
	if err != nil {
		d.err = err
		return nil
	}
	return n
}

func (d *decoder) expr(w *wireNode) Expr {
	n := d.node(w)
	if n == nil {
		return nil
	}
	e, ok := n.(Expr)
	if !ok {
		d.fail("%s is not an expression", n.Kind())
		return nil
	}
	return e
}

func (d *decoder) exprs(ws []*wireNode) []Expr {
	out := make([]Expr, 0, len(ws))
	for _, w := range ws {
		if e := d.expr(w); e != nil {
			out = append(out, e)
		}
	}
	return out
}

func (d *decoder) stmts(ws []*wireNode) []Node {
	out := make([]Node, 0, len(ws))
	for _, w := range ws {
		if n := d.node(w); n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (d *decoder) block(w *wireNode) *Block {
	n := d.node(w)
	if n == nil {
		return nil
	}
	b, ok := n.(*Block)
	if !ok {
		d.fail("function body is %s, want Block", n.Kind())
	}
	return b
}

func protoFromWire(wp *wireProto) *Prototype {
	if wp == nil {
		return nil
	}
	p := &Prototype{
		PosVal:     wp.Position,
		ReturnType: wp.ReturnType,
		ReturnRef:  wp.ReturnRef,
		Access:     wp.Access,
		Name:       wp.Name,
	}
	for _, par := range wp.Parameters {
		p.Params = append(p.Params, Param{Type: par.Type, Name: par.Name, IsRef: par.IsRef})
	}
	return p
}

func fromWire(w *wireNode) (Node, error) {
	kind, ok := KindByName(w.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: kind %q", ErrUnknownNode, w.Kind)
	}
	d := &decoder{}
	pos := w.Position
	var n Node

	switch kind {
	case KindNil:
		n = &Nil{PosVal: pos, PreferStack: w.PreferStack}
	case KindIntLiteral:
		n = &IntLiteral{PosVal: pos, Value: int32(w.Int)}
	case KindBoolLiteral:
		n = &BoolLiteral{PosVal: pos, Value: w.Bool}
	case KindStringLiteral:
		n = &StringLiteral{PosVal: pos, Value: w.String}
	case KindC4IDLiteral:
		n = &C4IDLiteral{PosVal: pos, Value: w.ID}
	case KindArrayLiteral:
		n = &ArrayLiteral{PosVal: pos, Elements: d.exprs(w.Expressions)}
	case KindMapLiteral:
		m := &MapLiteral{PosVal: pos}
		for _, e := range w.Entries {
			m.Entries = append(m.Entries, KeyValue{Key: d.expr(e.Key), Value: d.expr(e.Value)})
		}
		n = m
	case KindGlobalConstant:
		n = &GlobalConstant{PosVal: pos, Name: w.Identifier, Value: d.expr(w.Value)}
	case KindParameterRef:
		n = &ParN{PosVal: pos, TypeVal: w.Type, NoRefVal: w.NoRef, N: int(w.Int)}
	case KindParameterExpr:
		n = &Par{PosVal: pos, TypeVal: w.Type, NoRefVal: w.NoRef, Index: d.expr(w.Expression)}
	case KindVarRef:
		n = &VarN{PosVal: pos, TypeVal: w.Type, NoRefVal: w.NoRef, Name: w.Identifier}
	case KindVarExpr:
		n = &Var{PosVal: pos, TypeVal: w.Type, NoRefVal: w.NoRef, Index: d.expr(w.Expression)}
	case KindLocalRef:
		n = &LocalN{PosVal: pos, TypeVal: w.Type, NoRefVal: w.NoRef, Name: w.Identifier}
	case KindGlobalRef:
		n = &GlobalN{PosVal: pos, TypeVal: w.Type, NoRefVal: w.NoRef, Name: w.Identifier}
	case KindDeclaration:
		n = &Declaration{PosVal: pos, Type: DeclType(w.Int), Name: w.Identifier, Value: d.expr(w.Value)}
	case KindDeclarationList:
		ds := &Declarations{PosVal: pos}
		for _, dw := range w.Declarations {
			dn := d.node(dw)
			decl, ok := dn.(*Declaration)
			if !ok {
				d.fail("declaration list holds %v", dn)
				break
			}
			ds.Decls = append(ds.Decls, decl)
		}
		n = ds
	case KindUnaryOp:
		if !w.Operator.Valid() {
			d.fail("invalid operator id %d", w.Operator)
		}
		n = &UnaryOp{PosVal: pos, Op: w.Operator, Operand: d.expr(w.Expression)}
	case KindBinaryOp:
		if !w.Operator.Valid() {
			d.fail("invalid operator id %d", w.Operator)
		}
		n = &BinaryOp{PosVal: pos, Op: w.Operator, LHS: d.expr(w.LHS), RHS: d.expr(w.RHS)}
	case KindPrototype:
		p := protoFromWire(w.Prototype)
		if p == nil {
			p = &Prototype{}
		}
		p.PosVal = pos
		n = p
	case KindFunction:
		n = &Function{PosVal: pos, Description: w.Description, Proto: protoFromWire(w.Prototype), Body: d.block(w.Body)}
	case KindBlock:
		n = &Block{PosVal: pos, Statements: d.stmts(w.Statements)}
	case KindScript:
		n = &Script{PosVal: pos, Statements: d.stmts(w.Statements)}
	case KindInclude:
		n = &Include{PosVal: pos, ID: w.ID, NoWarn: w.NoWarn}
	case KindAppend:
		n = &Append{PosVal: pos, ID: w.ID, NoWarn: w.NoWarn}
	case KindStrictDirective:
		n = &StrictDirective{PosVal: pos, Level: Strictness(w.Int)}
	case KindReturn:
		n = &Return{PosVal: pos, PreferStack: w.PreferStack, Exprs: d.exprs(w.Expressions)}
	case KindReturnAsParam:
		n = &ReturnAsParam{PosVal: pos, TypeVal: w.Type, PreferStack: w.PreferStack, Value: d.expr(w.Expression)}
	case KindCall:
		n = &Call{PosVal: pos, TypeVal: w.Type, Name: w.Identifier, Args: d.exprs(w.Arguments)}
	case KindInheritedCall:
		n = &Inherited{PosVal: pos, TypeVal: w.Type, Name: w.Identifier, FailSafe: w.FailSafe, Args: d.exprs(w.Arguments)}
	case KindArrayAccess:
		n = &ArrayAccess{PosVal: pos, TypeVal: w.Type, NoRefVal: w.NoRef, NilTestVal: w.NilTest, LHS: d.expr(w.LHS), RHS: d.expr(w.RHS)}
	case KindArrayAppend:
		n = &ArrayAppend{PosVal: pos, TypeVal: w.Type, NilTestVal: w.NilTest, Array: d.expr(w.Expression)}
	case KindPropertyAccess:
		n = &PropertyAccess{PosVal: pos, TypeVal: w.Type, NoRefVal: w.NoRef, NilTestVal: w.NilTest, Property: w.Identifier, Object: d.expr(w.Expression)}
	case KindIndirectCall:
		n = &IndirectCall{
			PosVal: pos, TypeVal: w.Type, NilTestVal: w.NilTest,
			Global: w.GlobalCall, FailSafe: w.FailSafe, Namespace: w.ID, Name: w.Identifier,
			Callee: d.expr(w.Callee), Args: d.exprs(w.Arguments),
		}
	case KindIf:
		n = &If{PosVal: pos, Condition: d.expr(w.Condition), Then: d.node(w.Then), Else: d.node(w.Else)}
	case KindExprIf:
		n = &ExprIf{PosVal: pos, TypeVal: w.Type, Condition: d.expr(w.Condition), Then: d.expr(w.Then), Else: d.expr(w.Else)}
	case KindWhile:
		n = &While{PosVal: pos, Condition: d.expr(w.Condition), Body: d.node(w.Body)}
	case KindFor:
		n = &For{PosVal: pos, Init: d.node(w.Init), Condition: d.expr(w.Condition), After: d.node(w.After), Body: d.node(w.Body)}
	case KindForEach:
		n = &ForEach{PosVal: pos, Init: d.node(w.Init), Iterable: d.expr(w.Iterable), Body: d.node(w.Body)}
	case KindBreak:
		n = &Break{PosVal: pos}
	case KindContinue:
		n = &Continue{PosVal: pos}
	case KindThis:
		n = &This{PosVal: pos}
	case KindNop:
		n = &Nop{PosVal: pos}
	case KindError:
		n = &Error{PosVal: pos, Message: w.String}
	default:
		return nil, fmt.Errorf("%w: kind %s", ErrUnknownNode, kind)
	}
	if d.err != nil {
		return nil, d.err
	}
	return n, nil
}
