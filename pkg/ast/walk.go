package ast

// Children returns the direct sub-nodes of n in source order. Absent
// optional children are skipped.
func Children(n Node) []Node {
	var out []Node
	add := func(c Node) {
		if c != nil && !isNilNode(c) {
			out = append(out, c)
		}
	}
	addExprs := func(es []Expr) {
		for _, e := range es {
			add(e)
		}
	}

	switch n := n.(type) {
	case *Script:
		for _, s := range n.Statements {
			add(s)
		}
	case *Block:
		for _, s := range n.Statements {
			add(s)
		}
	case *ArrayLiteral:
		addExprs(n.Elements)
	case *MapLiteral:
		for _, kv := range n.Entries {
			add(kv.Key)
			add(kv.Value)
		}
	case *GlobalConstant:
		add(n.Value)
	case *Par:
		add(n.Index)
	case *Var:
		add(n.Index)
	case *Declaration:
		add(n.Value)
	case *Declarations:
		for _, d := range n.Decls {
			add(d)
		}
	case *UnaryOp:
		add(n.Operand)
	case *BinaryOp:
		add(n.LHS)
		add(n.RHS)
	case *Function:
		add(n.Proto)
		add(n.Body)
	case *Return:
		addExprs(n.Exprs)
	case *ReturnAsParam:
		add(n.Value)
	case *Call:
		addExprs(n.Args)
	case *Inherited:
		addExprs(n.Args)
	case *ArrayAccess:
		add(n.LHS)
		add(n.RHS)
	case *ArrayAppend:
		add(n.Array)
	case *PropertyAccess:
		add(n.Object)
	case *IndirectCall:
		add(n.Callee)
		addExprs(n.Args)
	case *If:
		add(n.Condition)
		add(n.Then)
		add(n.Else)
	case *ExprIf:
		add(n.Condition)
		add(n.Then)
		add(n.Else)
	case *While:
		add(n.Condition)
		add(n.Body)
	case *For:
		add(n.Init)
		add(n.Condition)
		add(n.After)
		add(n.Body)
	case *ForEach:
		add(n.Init)
		add(n.Iterable)
		add(n.Body)
	}
	return out
}

// Inspect traverses the tree rooted at n in depth-first order, calling f
// for each node. Children are skipped when f returns false.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || isNilNode(n) || !f(n) {
		return
	}
	for _, c := range Children(n) {
		Inspect(c, f)
	}
}

// isNilNode catches typed nil pointers stored in an interface, which
// optional fields such as Block bodies commonly hold.
func isNilNode(n Node) bool {
	switch n := n.(type) {
	case *Block:
		return n == nil
	case *Prototype:
		return n == nil
	case *Declaration:
		return n == nil
	}
	return false
}

// VarNames returns the names declared with var anywhere in body, in first
// declaration order and without duplicates, including foreach variables.
func VarNames(body Node) []string {
	var names []string
	seen := make(map[string]bool)
	Inspect(body, func(n Node) bool {
		if d, ok := n.(*Declaration); ok && d.Type == DeclVar && !seen[d.Name] {
			seen[d.Name] = true
			names = append(names, d.Name)
		}
		return true
	})
	return names
}
