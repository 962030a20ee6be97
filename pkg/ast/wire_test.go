package ast

import (
	"errors"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func TestWireRoundTripScript(t *testing.T) {
	script := sampleScript()
	script.Statements = append(script.Statements, &Function{
		Description: "mixed bag",
		Proto:       &Prototype{Access: AccessGlobal, Name: "Mix", ReturnRef: true, Params: []Param{{Name: "obj", IsRef: true}}},
		Body: &Block{Statements: []Node{
			&IndirectCall{Callee: &ParN{N: 0}, FailSafe: true, Namespace: MustParseID("CLNK"), Name: "Hit", Args: []Expr{&StringLiteral{Value: "ouch"}}},
			&ForEach{
				Init:     &Declarations{Decls: []*Declaration{{Type: DeclVar, Name: "k"}, {Type: DeclVar, Name: "v"}}},
				Iterable: &MapLiteral{Entries: []KeyValue{{Key: &StringLiteral{Value: "a"}, Value: &ArrayLiteral{Elements: []Expr{&Nil{}}}}}},
				Body:     &Continue{},
			},
			&BinaryOp{Op: OpNilCoalescingIt, LHS: &PropertyAccess{Object: &LocalN{Name: "count"}, Property: "p", NilTestVal: true}, RHS: &This{}},
			&Return{Exprs: []Expr{&ExprIf{Condition: &Inherited{Name: "Mix"}, Then: &C4IDLiteral{Value: AllIDs}}}, PreferStack: true},
		}},
	})

	data, err := Marshal(script)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	got, err := UnmarshalScript(data)
	if err != nil {
		t.Fatalf("UnmarshalScript failed: %v", err)
	}
	if Dump(got) != Dump(script) {
		t.Errorf("round trip changed the tree:\n%s\nwant\n%s", Dump(got), Dump(script))
	}

	again, err := Marshal(got)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(again) != string(data) {
		t.Error("encoding is not deterministic")
	}

	fn := got.Statements[len(got.Statements)-1].(*Function)
	if fn.Proto.Access != AccessGlobal || !fn.Proto.Params[0].IsRef || fn.Description != "mixed bag" {
		t.Errorf("prototype lost fields: %+v", fn.Proto)
	}
	prop := fn.Body.Statements[2].(*BinaryOp).LHS.(*PropertyAccess)
	if !prop.NilTest() {
		t.Error("NilTest flag lost")
	}
}

func TestWireRejectsUnknownKind(t *testing.T) {
	data, err := cbor.Marshal(&wireFile{Version: WireVersion, Root: &wireNode{Kind: "Lambda"}})
	if err != nil {
		t.Fatalf("cbor.Marshal failed: %v", err)
	}
	if _, err := Unmarshal(data); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("Unmarshal() error = %v, want ErrUnknownNode", err)
	}
}

func TestWireRejectsMisplacedStatement(t *testing.T) {
	root := &wireNode{Kind: "BinaryOp", Operator: OpSum, LHS: &wireNode{Kind: "Break"}, RHS: &wireNode{Kind: "IntLiteral", Int: 1}}
	data, err := cbor.Marshal(&wireFile{Version: WireVersion, Root: root})
	if err != nil {
		t.Fatalf("cbor.Marshal failed: %v", err)
	}
	if _, err := Unmarshal(data); err == nil {
		t.Error("Unmarshal accepted a statement as an operand")
	}
}

func TestWireRejectsVersion(t *testing.T) {
	data, err := cbor.Marshal(&wireFile{Version: WireVersion + 1, Root: &wireNode{Kind: "Nop"}})
	if err != nil {
		t.Fatalf("cbor.Marshal failed: %v", err)
	}
	if _, err := Unmarshal(data); err == nil {
		t.Error("Unmarshal accepted a future version")
	}
	if _, err := UnmarshalScript(mustMarshal(t, &Nop{})); err == nil {
		t.Error("UnmarshalScript accepted a non-script root")
	}
}

func mustMarshal(t *testing.T, n Node) []byte {
	t.Helper()
	data, err := Marshal(n)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	return data
}
