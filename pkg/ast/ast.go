package ast

import "errors"

// ErrUnknownNode is returned by consumers that meet a node type they do
// not handle.
var ErrUnknownNode = errors.New("ast: unknown node")

// Node is the interface implemented by all AST nodes. The set of
// implementations is closed; consumers switch over the concrete types.
type Node interface {
	Kind() Kind
	Position() int32 // byte offset into the script source
	node()           // marker method
}

// Expr is the interface for expression nodes. An expression used where a
// statement is expected leaves one value that the generator discards.
type Expr interface {
	Node
	ValueType() ValueType
	expr() // marker method
}

// RefExpr is implemented by expressions that produce a reference unless
// NoRef is set.
type RefExpr interface {
	Expr
	NoRef() bool
	setNoRef()
}

// NilTester is implemented by navigation expressions that may short-cut
// to nil when their receiver is nil.
type NilTester interface {
	Expr
	NilTest() bool
}

// SetNoRef marks e to be evaluated for its value. Array and property
// access propagate the flag to their receiver. Expressions that never
// produce references are returned unchanged.
func SetNoRef(e Expr) Expr {
	if r, ok := e.(RefExpr); ok {
		r.setNoRef()
	}
	return e
}

// ---------------------------------------------------------------------------
// Literals
// ---------------------------------------------------------------------------

// Nil is the nil literal. PreferStack lowers it to STACK 1 so it can merge
// with neighbouring stack adjustments.
type Nil struct {
	PosVal      int32
	PreferStack bool
}

func (n *Nil) Kind() Kind           { return KindNil }
func (n *Nil) Position() int32      { return n.PosVal }
func (n *Nil) ValueType() ValueType { return TypeAny }
func (n *Nil) node()                {}
func (n *Nil) expr()                {}

// IntLiteral is an integer constant.
type IntLiteral struct {
	PosVal int32
	Value  int32
}

func (n *IntLiteral) Kind() Kind           { return KindIntLiteral }
func (n *IntLiteral) Position() int32      { return n.PosVal }
func (n *IntLiteral) ValueType() ValueType { return TypeInt }
func (n *IntLiteral) node()                {}
func (n *IntLiteral) expr()                {}

// BoolLiteral is true or false.
type BoolLiteral struct {
	PosVal int32
	Value  bool
}

func (n *BoolLiteral) Kind() Kind           { return KindBoolLiteral }
func (n *BoolLiteral) Position() int32      { return n.PosVal }
func (n *BoolLiteral) ValueType() ValueType { return TypeBool }
func (n *BoolLiteral) node()                {}
func (n *BoolLiteral) expr()                {}

// StringLiteral is a string constant.
type StringLiteral struct {
	PosVal int32
	Value  string
}

func (n *StringLiteral) Kind() Kind           { return KindStringLiteral }
func (n *StringLiteral) Position() int32      { return n.PosVal }
func (n *StringLiteral) ValueType() ValueType { return TypeString }
func (n *StringLiteral) node()                {}
func (n *StringLiteral) expr()                {}

// C4IDLiteral is a definition id constant.
type C4IDLiteral struct {
	PosVal int32
	Value  ID
}

func (n *C4IDLiteral) Kind() Kind           { return KindC4IDLiteral }
func (n *C4IDLiteral) Position() int32      { return n.PosVal }
func (n *C4IDLiteral) ValueType() ValueType { return TypeID }
func (n *C4IDLiteral) node()                {}
func (n *C4IDLiteral) expr()                {}

// ArrayLiteral builds an array from its elements.
type ArrayLiteral struct {
	PosVal   int32
	Elements []Expr
}

func (n *ArrayLiteral) Kind() Kind           { return KindArrayLiteral }
func (n *ArrayLiteral) Position() int32      { return n.PosVal }
func (n *ArrayLiteral) ValueType() ValueType { return TypeArray }
func (n *ArrayLiteral) node()                {}
func (n *ArrayLiteral) expr()                {}

// KeyValue is one entry of a map literal.
type KeyValue struct {
	Key   Expr
	Value Expr
}

// MapLiteral builds a map from key/value pairs.
type MapLiteral struct {
	PosVal  int32
	Entries []KeyValue
}

func (n *MapLiteral) Kind() Kind           { return KindMapLiteral }
func (n *MapLiteral) Position() int32      { return n.PosVal }
func (n *MapLiteral) ValueType() ValueType { return TypeMap }
func (n *MapLiteral) node()                {}
func (n *MapLiteral) expr()                {}

// GlobalConstant is a use of a named global constant. Value holds the
// constant's literal, substituted by the parser.
type GlobalConstant struct {
	PosVal int32
	Name   string
	Value  Expr
}

func (n *GlobalConstant) Kind() Kind           { return KindGlobalConstant }
func (n *GlobalConstant) Position() int32      { return n.PosVal }
func (n *GlobalConstant) node()                {}
func (n *GlobalConstant) expr()                {}

func (n *GlobalConstant) ValueType() ValueType {
	if n.Value == nil {
		return TypeAny
	}
	return n.Value.ValueType()
}

// ---------------------------------------------------------------------------
// Variables
// ---------------------------------------------------------------------------

// ParN is a parameter accessed by index.
type ParN struct {
	PosVal   int32
	TypeVal  ValueType
	NoRefVal bool
	N        int
}

func (n *ParN) Kind() Kind           { return KindParameterRef }
func (n *ParN) Position() int32      { return n.PosVal }
func (n *ParN) ValueType() ValueType { return n.TypeVal }
func (n *ParN) NoRef() bool          { return n.NoRefVal }
func (n *ParN) setNoRef()            { n.NoRefVal = true }
func (n *ParN) node()                {}
func (n *ParN) expr()                {}

// Par is Par(index) with a computed index.
type Par struct {
	PosVal   int32
	TypeVal  ValueType
	NoRefVal bool
	Index    Expr
}

func (n *Par) Kind() Kind           { return KindParameterExpr }
func (n *Par) Position() int32      { return n.PosVal }
func (n *Par) ValueType() ValueType { return n.TypeVal }
func (n *Par) NoRef() bool          { return n.NoRefVal }
func (n *Par) setNoRef()            { n.NoRefVal = true }
func (n *Par) node()                {}
func (n *Par) expr()                {}

// VarN is a function variable accessed by name.
type VarN struct {
	PosVal   int32
	TypeVal  ValueType
	NoRefVal bool
	Name     string
}

func (n *VarN) Kind() Kind           { return KindVarRef }
func (n *VarN) Position() int32      { return n.PosVal }
func (n *VarN) ValueType() ValueType { return n.TypeVal }
func (n *VarN) NoRef() bool          { return n.NoRefVal }
func (n *VarN) setNoRef()            { n.NoRefVal = true }
func (n *VarN) node()                {}
func (n *VarN) expr()                {}

// Var is Var(index) with a computed index.
type Var struct {
	PosVal   int32
	TypeVal  ValueType
	NoRefVal bool
	Index    Expr
}

func (n *Var) Kind() Kind           { return KindVarExpr }
func (n *Var) Position() int32      { return n.PosVal }
func (n *Var) ValueType() ValueType { return n.TypeVal }
func (n *Var) NoRef() bool          { return n.NoRefVal }
func (n *Var) setNoRef()            { n.NoRefVal = true }
func (n *Var) node()                {}
func (n *Var) expr()                {}

// LocalN is an object local declared in the script.
type LocalN struct {
	PosVal   int32
	TypeVal  ValueType
	NoRefVal bool
	Name     string
}

func (n *LocalN) Kind() Kind           { return KindLocalRef }
func (n *LocalN) Position() int32      { return n.PosVal }
func (n *LocalN) ValueType() ValueType { return n.TypeVal }
func (n *LocalN) NoRef() bool          { return n.NoRefVal }
func (n *LocalN) setNoRef()            { n.NoRefVal = true }
func (n *LocalN) node()                {}
func (n *LocalN) expr()                {}

// GlobalN is an engine-wide static variable.
type GlobalN struct {
	PosVal   int32
	TypeVal  ValueType
	NoRefVal bool
	Name     string
}

func (n *GlobalN) Kind() Kind           { return KindGlobalRef }
func (n *GlobalN) Position() int32      { return n.PosVal }
func (n *GlobalN) ValueType() ValueType { return n.TypeVal }
func (n *GlobalN) NoRef() bool          { return n.NoRefVal }
func (n *GlobalN) setNoRef()            { n.NoRefVal = true }
func (n *GlobalN) node()                {}
func (n *GlobalN) expr()                {}

// ---------------------------------------------------------------------------
// Declarations and directives
// ---------------------------------------------------------------------------

// DeclType selects the storage of a declaration.
type DeclType uint8

const (
	DeclLocal       DeclType = iota // local
	DeclStatic                      // static
	DeclStaticConst                 // static const
	DeclVar                         // var
)

func (d DeclType) String() string {
	switch d {
	case DeclLocal:
		return "local"
	case DeclStatic:
		return "global"
	case DeclStaticConst:
		return "global.const"
	case DeclVar:
		return "var"
	}
	return "decl"
}

// Declaration introduces one named variable, optionally initialised.
type Declaration struct {
	PosVal int32
	Type   DeclType
	Name   string
	Value  Expr
}

func (n *Declaration) Kind() Kind      { return KindDeclaration }
func (n *Declaration) Position() int32 { return n.PosVal }
func (n *Declaration) node()           {}

// Declarations is a comma separated declaration statement.
type Declarations struct {
	PosVal int32
	Decls  []*Declaration
}

func (n *Declarations) Kind() Kind      { return KindDeclarationList }
func (n *Declarations) Position() int32 { return n.PosVal }
func (n *Declarations) node()           {}

// Names returns the declared identifiers in order.
func (n *Declarations) Names() []string {
	names := make([]string, len(n.Decls))
	for i, d := range n.Decls {
		names[i] = d.Name
	}
	return names
}

// Param is one formal parameter of a prototype.
type Param struct {
	Type  ValueType
	Name  string
	IsRef bool
}

// Prototype is a function signature.
type Prototype struct {
	PosVal     int32
	ReturnType ValueType
	ReturnRef  bool
	Access     Access
	Name       string
	Params     []Param
}

func (n *Prototype) Kind() Kind      { return KindPrototype }
func (n *Prototype) Position() int32 { return n.PosVal }
func (n *Prototype) node()           {}

// Function is a function definition.
type Function struct {
	PosVal      int32
	Description string
	Proto       *Prototype
	Body        *Block
}

func (n *Function) Kind() Kind      { return KindFunction }
func (n *Function) Position() int32 { return n.PosVal }
func (n *Function) node()           {}

// Include is #include ID.
type Include struct {
	PosVal int32
	ID     ID
	NoWarn bool
}

func (n *Include) Kind() Kind      { return KindInclude }
func (n *Include) Position() int32 { return n.PosVal }
func (n *Include) node()           {}

// Append is #appendto ID, or #appendto * when ID is AllIDs.
type Append struct {
	PosVal int32
	ID     ID
	NoWarn bool
}

func (n *Append) Kind() Kind      { return KindAppend }
func (n *Append) Position() int32 { return n.PosVal }
func (n *Append) node()           {}

// StrictDirective is #strict N.
type StrictDirective struct {
	PosVal int32
	Level  Strictness
}

func (n *StrictDirective) Kind() Kind      { return KindStrictDirective }
func (n *StrictDirective) Position() int32 { return n.PosVal }
func (n *StrictDirective) node()           {}

// Script is the root of a parsed script.
type Script struct {
	PosVal     int32
	Statements []Node
}

func (n *Script) Kind() Kind      { return KindScript }
func (n *Script) Position() int32 { return n.PosVal }
func (n *Script) node()           {}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

// UnaryOp applies a prefix or postfix operator.
type UnaryOp struct {
	PosVal  int32
	Op      OpID
	Operand Expr
}

func (n *UnaryOp) Kind() Kind           { return KindUnaryOp }
func (n *UnaryOp) Position() int32      { return n.PosVal }
func (n *UnaryOp) ValueType() ValueType { return n.Op.Def().Result }
func (n *UnaryOp) node()                {}
func (n *UnaryOp) expr()                {}

// BinaryOp applies an infix operator, including assignments.
type BinaryOp struct {
	PosVal int32
	Op     OpID
	LHS    Expr
	RHS    Expr
}

func (n *BinaryOp) Kind() Kind           { return KindBinaryOp }
func (n *BinaryOp) Position() int32      { return n.PosVal }
func (n *BinaryOp) ValueType() ValueType { return n.Op.Def().Result }
func (n *BinaryOp) node()                {}
func (n *BinaryOp) expr()                {}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// Block is a braced statement list.
type Block struct {
	PosVal     int32
	Statements []Node
}

func (n *Block) Kind() Kind      { return KindBlock }
func (n *Block) Position() int32 { return n.PosVal }
func (n *Block) node()           {}

// Return returns the last of its expressions. Extra expressions are
// evaluated for their side effects.
type Return struct {
	PosVal      int32
	Exprs       []Expr
	PreferStack bool
}

func (n *Return) Kind() Kind      { return KindReturn }
func (n *Return) Position() int32 { return n.PosVal }
func (n *Return) node()           {}

// ReturnAsParam is the old-style return(expr) used inside expressions.
type ReturnAsParam struct {
	PosVal      int32
	TypeVal     ValueType
	Value       Expr
	PreferStack bool
}

func (n *ReturnAsParam) Kind() Kind           { return KindReturnAsParam }
func (n *ReturnAsParam) Position() int32      { return n.PosVal }
func (n *ReturnAsParam) ValueType() ValueType { return n.TypeVal }
func (n *ReturnAsParam) node()                {}
func (n *ReturnAsParam) expr()                {}

// If is a conditional statement. Then and Else may be nil.
type If struct {
	PosVal    int32
	Condition Expr
	Then      Node
	Else      Node
}

func (n *If) Kind() Kind      { return KindIf }
func (n *If) Position() int32 { return n.PosVal }
func (n *If) node()           {}

// While is a pre-tested loop. Body may be nil.
type While struct {
	PosVal    int32
	Condition Expr
	Body      Node
}

func (n *While) Kind() Kind      { return KindWhile }
func (n *While) Position() int32 { return n.PosVal }
func (n *While) node()           {}

// For is a C-style loop. Every clause may be nil.
type For struct {
	PosVal    int32
	Init      Node
	Condition Expr
	After     Node
	Body      Node
}

func (n *For) Kind() Kind      { return KindFor }
func (n *For) Position() int32 { return n.PosVal }
func (n *For) node()           {}

// ForEach iterates an array (Init is a *Declaration) or a map (Init is
// *Declarations naming the key and value variables).
type ForEach struct {
	PosVal   int32
	Init     Node
	Iterable Expr
	Body     Node
}

func (n *ForEach) Kind() Kind      { return KindForEach }
func (n *ForEach) Position() int32 { return n.PosVal }
func (n *ForEach) node()           {}

// Break leaves the innermost loop.
type Break struct {
	PosVal int32
}

func (n *Break) Kind() Kind      { return KindBreak }
func (n *Break) Position() int32 { return n.PosVal }
func (n *Break) node()           {}

// Continue restarts the innermost loop.
type Continue struct {
	PosVal int32
}

func (n *Continue) Kind() Kind      { return KindContinue }
func (n *Continue) Position() int32 { return n.PosVal }
func (n *Continue) node()           {}

// Nop is an empty statement.
type Nop struct {
	PosVal int32
}

func (n *Nop) Kind() Kind      { return KindNop }
func (n *Nop) Position() int32 { return n.PosVal }
func (n *Nop) node()           {}

// Error marks a place where the parser gave up. It may stand for a
// statement or an expression.
type Error struct {
	PosVal  int32
	Message string
}

func (n *Error) Kind() Kind           { return KindError }
func (n *Error) Position() int32      { return n.PosVal }
func (n *Error) ValueType() ValueType { return TypeAny }
func (n *Error) node()                {}
func (n *Error) expr()                {}

// ---------------------------------------------------------------------------
// Calls and navigation
// ---------------------------------------------------------------------------

// Call is a direct call resolved at compile time.
type Call struct {
	PosVal  int32
	TypeVal ValueType
	Name    string
	Args    []Expr
}

func (n *Call) Kind() Kind           { return KindCall }
func (n *Call) Position() int32      { return n.PosVal }
func (n *Call) ValueType() ValueType { return n.TypeVal }
func (n *Call) node()                {}
func (n *Call) expr()                {}

// Inherited calls the function this one overloads. FailSafe selects
// _inherited, which evaluates to nil when there is nothing to call.
type Inherited struct {
	PosVal   int32
	TypeVal  ValueType
	Name     string
	Args     []Expr
	FailSafe bool
}

func (n *Inherited) Kind() Kind           { return KindInheritedCall }
func (n *Inherited) Position() int32      { return n.PosVal }
func (n *Inherited) ValueType() ValueType { return n.TypeVal }
func (n *Inherited) node()                {}
func (n *Inherited) expr()                {}

// ArrayAccess is lhs[rhs].
type ArrayAccess struct {
	PosVal     int32
	TypeVal    ValueType
	NoRefVal   bool
	NilTestVal bool
	LHS        Expr
	RHS        Expr
}

func (n *ArrayAccess) Kind() Kind           { return KindArrayAccess }
func (n *ArrayAccess) Position() int32      { return n.PosVal }
func (n *ArrayAccess) ValueType() ValueType { return n.TypeVal }
func (n *ArrayAccess) NoRef() bool          { return n.NoRefVal }
func (n *ArrayAccess) NilTest() bool        { return n.NilTestVal }
func (n *ArrayAccess) node()                {}
func (n *ArrayAccess) expr()                {}

func (n *ArrayAccess) setNoRef() {
	n.NoRefVal = true
	n.LHS = SetNoRef(n.LHS)
}

// ArrayAppend is array[], a reference to a new last element.
type ArrayAppend struct {
	PosVal     int32
	TypeVal    ValueType
	NilTestVal bool
	Array      Expr
}

func (n *ArrayAppend) Kind() Kind           { return KindArrayAppend }
func (n *ArrayAppend) Position() int32      { return n.PosVal }
func (n *ArrayAppend) ValueType() ValueType { return n.TypeVal }
func (n *ArrayAppend) NilTest() bool        { return n.NilTestVal }
func (n *ArrayAppend) node()                {}
func (n *ArrayAppend) expr()                {}

// PropertyAccess is object.property on a map.
type PropertyAccess struct {
	PosVal     int32
	TypeVal    ValueType
	NoRefVal   bool
	NilTestVal bool
	Object     Expr
	Property   string
}

func (n *PropertyAccess) Kind() Kind           { return KindPropertyAccess }
func (n *PropertyAccess) Position() int32      { return n.PosVal }
func (n *PropertyAccess) ValueType() ValueType { return n.TypeVal }
func (n *PropertyAccess) NoRef() bool          { return n.NoRefVal }
func (n *PropertyAccess) NilTest() bool        { return n.NilTestVal }
func (n *PropertyAccess) node()                {}
func (n *PropertyAccess) expr()                {}

func (n *PropertyAccess) setNoRef() {
	n.NoRefVal = true
	n.Object = SetNoRef(n.Object)
}

// IndirectCall is target->Name(args), target->~Name(args),
// target->ID::Name(args) or global->Name(args). Callee is nil for global
// calls.
type IndirectCall struct {
	PosVal     int32
	TypeVal    ValueType
	NilTestVal bool
	Global     bool
	Callee     Expr
	FailSafe   bool
	Namespace  ID
	Name       string
	Args       []Expr
}

func (n *IndirectCall) Kind() Kind           { return KindIndirectCall }
func (n *IndirectCall) Position() int32      { return n.PosVal }
func (n *IndirectCall) ValueType() ValueType { return n.TypeVal }
func (n *IndirectCall) NilTest() bool        { return n.NilTestVal }
func (n *IndirectCall) node()                {}
func (n *IndirectCall) expr()                {}

// ExprIf is the conditional expression. A missing Else yields nil.
type ExprIf struct {
	PosVal    int32
	TypeVal   ValueType
	Condition Expr
	Then      Expr
	Else      Expr
}

func (n *ExprIf) Kind() Kind           { return KindExprIf }
func (n *ExprIf) Position() int32      { return n.PosVal }
func (n *ExprIf) ValueType() ValueType { return n.TypeVal }
func (n *ExprIf) node()                {}
func (n *ExprIf) expr()                {}

// This is the context object of the running call.
type This struct {
	PosVal int32
}

func (n *This) Kind() Kind           { return KindThis }
func (n *This) Position() int32      { return n.PosVal }
func (n *This) ValueType() ValueType { return TypeObject }
func (n *This) node()                {}
func (n *This) expr()                {}
