package ast

import (
	"strings"
	"testing"
)

func sampleScript() *Script {
	body := &Block{Statements: []Node{
		&Declarations{Decls: []*Declaration{{Type: DeclVar, Name: "i", Value: &IntLiteral{Value: 0}}}},
		&While{
			Condition: &BinaryOp{Op: OpLessThan, LHS: &VarN{Name: "i", NoRefVal: true}, RHS: &ParN{N: 0, NoRefVal: true}},
			Body: &Block{Statements: []Node{
				&UnaryOp{Op: OpPreInc, Operand: &VarN{Name: "i"}},
			}},
		},
		&If{
			Condition: &BoolLiteral{Value: true},
			Then:      &Return{Exprs: []Expr{&VarN{Name: "i", NoRefVal: true}}},
		},
		&Return{},
	}}
	return &Script{Statements: []Node{
		&StrictDirective{Level: Strict2},
		&Include{ID: MustParseID("BASE")},
		&Append{ID: AllIDs, NoWarn: true},
		&Declarations{Decls: []*Declaration{{Type: DeclLocal, Name: "count"}}},
		&Function{
			Proto: &Prototype{Access: AccessPublic, Name: "Count", Params: []Param{{Type: TypeInt, Name: "n"}}},
			Body:  body,
		},
	}}
}

func TestDumpScript(t *testing.T) {
	want := strings.Join([]string{
		`(script`,
		`	(strict 2)`,
		`	(include BASE)`,
		`	(appendto * nowarn)`,
		`	(declare`,
		`		(local "count")`,
		`	)`,
		`	(func "Count" public`,
		`		(block`,
		`			(declare`,
		`				(var "i" (int.const 0))`,
		`			)`,
		`			(while`,
		`				(condition`,
		`					(op.binary "<"`,
		`						(var.get "i")`,
		`						(par.get 0)`,
		`					)`,
		`				)`,
		`				(body`,
		`					(block`,
		`						(op.unary "++"`,
		`							(var.get.ref "i")`,
		`						)`,
		`					)`,
		`				)`,
		`			)`,
		`			(if`,
		`				(condition`,
		`					(bool.const true)`,
		`				)`,
		`				(then`,
		`					(return`,
		`						(var.get "i")`,
		`					)`,
		`				)`,
		`			)`,
		`			(return`,
		`				(nil)`,
		`			)`,
		`		)`,
		`	)`,
		`)`,
	}, "\n")

	if got := Dump(sampleScript()); got != want {
		t.Errorf("Dump() =\n%s\nwant\n%s", got, want)
	}
}

func TestDumpExpressions(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want string
	}{
		{"nil", &Nil{}, "(nil)"},
		{"id", &C4IDLiteral{Value: MustParseID("CLNK")}, "(id.const CLNK)"},
		{"string", &StringLiteral{Value: "a\"b"}, `(string.const "a\"b")`},
		{"constant", &GlobalConstant{Name: "C4D_All", Value: &IntLiteral{Value: 127}}, `(global.const.get "C4D_All" (int.const 127))`},
		{"local", &LocalN{Name: "x", NoRefVal: true}, `(local.get "x")`},
		{"global ref", &GlobalN{Name: "g"}, `(global.get.ref "g")`},
		{"break", &Break{}, "(break)"},
		{"this", &This{}, "(this)"},
		{"icall", &IndirectCall{Global: true, FailSafe: true, Name: "f"}, "(icall \"f\" global failsafe\n)"},
		{"inherited", &Inherited{Name: "Init", FailSafe: true, Args: []Expr{&IntLiteral{Value: 1}}}, "(inherited \"Init\" failsafe\n\t(int.const 1)\n)"},
		{"property", &PropertyAccess{Object: &ParN{N: 1, NoRefVal: true}, Property: "x", NoRefVal: true}, "(property.access \"x\"\n\t(par.get 1)\n)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Dump(tt.node); got != tt.want {
				t.Errorf("Dump() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestDumpNil(t *testing.T) {
	if got := Dump(nil); got != "" {
		t.Errorf("Dump(nil) = %q", got)
	}
	var b *Block
	if got := DumpLines(b); got != nil {
		t.Errorf("DumpLines(typed nil) = %v", got)
	}
}
