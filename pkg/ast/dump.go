package ast

import (
	"fmt"
	"strings"
)

// Dump renders the tree rooted at n as a tab-indented s-expression.
func Dump(n Node) string {
	return strings.Join(DumpLines(n), "\n")
}

// DumpLines is Dump split into lines.
func DumpLines(n Node) []string {
	if n == nil || isNilNode(n) {
		return nil
	}
	return dump(n)
}

func indent(lines []string) []string {
	for i, l := range lines {
		lines[i] = "\t" + l
	}
	return lines
}

// wrap produces "(header", the indented children and ")".
func wrap(header string, children ...Node) []string {
	out := []string{"(" + header}
	for _, c := range children {
		if c == nil || isNilNode(c) {
			continue
		}
		out = append(out, indent(dump(c))...)
	}
	return append(out, ")")
}

func wrapExprs(header string, es []Expr) []string {
	nodes := make([]Node, len(es))
	for i, e := range es {
		nodes[i] = e
	}
	return wrap(header, nodes...)
}

// named renders "(name" plus the indented child when child is present.
func named(name string, child Node) []string {
	if child == nil || isNilNode(child) {
		return nil
	}
	return wrap(name, child)
}

func refSuffix(noRef bool) string {
	if noRef {
		return ""
	}
	return ".ref"
}

// literal returns the one-line form of a constant literal.
func literal(n Node) (string, bool) {
	switch n := n.(type) {
	case *Nil:
		return "(nil)", true
	case *IntLiteral:
		return fmt.Sprintf("(int.const %d)", n.Value), true
	case *BoolLiteral:
		return fmt.Sprintf("(bool.const %t)", n.Value), true
	case *C4IDLiteral:
		return fmt.Sprintf("(id.const %s)", n.Value), true
	case *StringLiteral:
		return fmt.Sprintf("(string.const %q)", n.Value), true
	}
	return "", false
}

func dump(n Node) []string {
	if lit, ok := literal(n); ok {
		return []string{lit}
	}

	switch n := n.(type) {
	case *Script:
		return wrap("script", n.Statements...)
	case *Block:
		return wrap("block", n.Statements...)
	case *ArrayLiteral:
		return wrapExprs("array.const", n.Elements)
	case *MapLiteral:
		out := []string{"(map.const"}
		for _, kv := range n.Entries {
			out = append(out, indent(named("key", kv.Key))...)
			out = append(out, indent(named("value", kv.Value))...)
		}
		return append(out, ")")
	case *GlobalConstant:
		if lit, ok := literal(n.Value); ok {
			return []string{fmt.Sprintf("(global.const.get %q %s)", n.Name, lit)}
		}
		return wrap(fmt.Sprintf("global.const.get %q", n.Name), n.Value)
	case *ParN:
		return []string{fmt.Sprintf("(par.get%s %d)", refSuffix(n.NoRefVal), n.N)}
	case *VarN:
		return []string{fmt.Sprintf("(var.get%s %q)", refSuffix(n.NoRefVal), n.Name)}
	case *Par:
		return wrap("par.get.expr"+refSuffix(n.NoRefVal), n.Index)
	case *Var:
		return wrap("var.get.expr"+refSuffix(n.NoRefVal), n.Index)
	case *LocalN:
		return []string{fmt.Sprintf("(local.get%s %q)", refSuffix(n.NoRefVal), n.Name)}
	case *GlobalN:
		return []string{fmt.Sprintf("(global.get%s %q)", refSuffix(n.NoRefVal), n.Name)}
	case *Declaration:
		if n.Value == nil {
			return []string{fmt.Sprintf("(%s %q)", n.Type, n.Name)}
		}
		if lit, ok := literal(n.Value); ok {
			return []string{fmt.Sprintf("(%s %q %s)", n.Type, n.Name, lit)}
		}
		return wrap(fmt.Sprintf("%s %q", n.Type, n.Name), n.Value)
	case *Declarations:
		nodes := make([]Node, len(n.Decls))
		for i, d := range n.Decls {
			nodes[i] = d
		}
		return wrap("declare", nodes...)
	case *UnaryOp:
		return wrap(fmt.Sprintf("op.unary %q", n.Op.String()), n.Operand)
	case *BinaryOp:
		return wrap(fmt.Sprintf("op.binary %q", n.Op.String()), n.LHS, n.RHS)
	case *Prototype:
		return nil
	case *Function:
		name, access := "", AccessPublic
		if n.Proto != nil {
			name, access = n.Proto.Name, n.Proto.Access
		}
		return wrap(fmt.Sprintf("func %q %s", name, access), n.Body)
	case *Include:
		return []string{fmt.Sprintf("(include %s%s)", n.ID, noWarn(n.NoWarn))}
	case *Append:
		return []string{fmt.Sprintf("(appendto %s%s)", n.ID, noWarn(n.NoWarn))}
	case *StrictDirective:
		return []string{fmt.Sprintf("(strict %d)", n.Level)}
	case *Return:
		header := "return"
		if n.PreferStack {
			header += " preferstack"
		}
		if len(n.Exprs) == 0 {
			return []string{"(" + header, "\t(nil)", ")"}
		}
		return wrapExprs(header, n.Exprs)
	case *ReturnAsParam:
		header := "returnparam"
		if n.PreferStack {
			header += " preferstack"
		}
		if n.Value == nil {
			return []string{"(" + header, "\t(nil)", ")"}
		}
		return wrap(header, n.Value)
	case *Call:
		return wrapExprs(fmt.Sprintf("call %q", n.Name), n.Args)
	case *Inherited:
		header := fmt.Sprintf("inherited %q", n.Name)
		if n.FailSafe {
			header += " failsafe"
		}
		return wrapExprs(header, n.Args)
	case *ArrayAccess:
		return wrap("array.access"+refSuffix(n.NoRefVal), n.LHS, n.RHS)
	case *ArrayAppend:
		return wrap("array.append", n.Array)
	case *PropertyAccess:
		return wrap(fmt.Sprintf("property.access%s %q", refSuffix(n.NoRefVal), n.Property), n.Object)
	case *IndirectCall:
		header := fmt.Sprintf("icall %q", n.Name)
		if n.Namespace != NoID {
			header += " " + n.Namespace.String()
		}
		if n.Global {
			header += " global"
		}
		if n.FailSafe {
			header += " failsafe"
		}
		nodes := make([]Node, 0, len(n.Args)+1)
		if !n.Global && n.Callee != nil {
			nodes = append(nodes, n.Callee)
		}
		for _, a := range n.Args {
			nodes = append(nodes, a)
		}
		return wrap(header, nodes...)
	case *If:
		return ifLines(n.Condition, n.Then, n.Else)
	case *ExprIf:
		var then, other Node
		if n.Then != nil {
			then = n.Then
		}
		if n.Else != nil {
			other = n.Else
		}
		return ifLines(n.Condition, then, other)
	case *While:
		return section("while", named("condition", n.Condition), named("body", n.Body))
	case *For:
		var cond Node
		if n.Condition != nil {
			cond = n.Condition
		}
		return section("for", named("init", n.Init), named("condition", cond), named("after", n.After), named("body", n.Body))
	case *ForEach:
		return section("foreach", named("init", n.Init), named("iterable", n.Iterable), named("body", n.Body))
	case *Break:
		return []string{"(break)"}
	case *Continue:
		return []string{"(continue)"}
	case *This:
		return []string{"(this)"}
	case *Nop:
		return []string{"(nop)"}
	case *Error:
		return []string{"(error)"}
	}
	return []string{fmt.Sprintf("(%s)", n.Kind())}
}

func noWarn(b bool) string {
	if b {
		return " nowarn"
	}
	return ""
}

func section(header string, parts ...[]string) []string {
	out := []string{"(" + header}
	for _, p := range parts {
		out = append(out, indent(p)...)
	}
	return append(out, ")")
}

func ifLines(cond Expr, then, other Node) []string {
	var c Node
	if cond != nil {
		c = cond
	}
	return section("if", named("condition", c), named("then", then), named("else", other))
}
