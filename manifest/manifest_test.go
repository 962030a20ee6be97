package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/aul/compiler"
	"github.com/chazu/aul/pkg/ast"
	"github.com/chazu/aul/vm"
	"github.com/chazu/aul/vm/dist"
)

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

// writeAST stores a strict 3 script whose function name returns value.
func writeAST(t *testing.T, dir, file, name string, value ast.Expr) {
	t.Helper()
	root := &ast.Script{Statements: []ast.Node{
		&ast.StrictDirective{Level: ast.Strict3},
		&ast.Function{
			Proto: &ast.Prototype{Name: name, Access: ast.AccessPublic},
			Body:  &ast.Block{Statements: []ast.Node{&ast.Return{Exprs: []ast.Expr{value}}}},
		},
	}}
	data, err := ast.Marshal(root)
	if err != nil {
		t.Fatalf("ast.Marshal: %v", err)
	}
	writeFile(t, dir, file, data)
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, []byte(`
globals = ["Round"]

[project]
name = "demo"
version = "0.1.0"

[engine]
max-call-depth = 64
step-budget = 100000
warnings-as-errors = true

[[script]]
name = "Objects/Clonk.c"
def = "CLNK"
ast = "clonk.ast"
source = "Clonk.c"
encoding = "windows-1252"

[[script]]
ast = "scenario.ast"

[constants]
MaxEnergy = 100
Debug = false

[cache]
enabled = true
`))

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Project.Name != "demo" || m.Project.Version != "0.1.0" {
		t.Errorf("project = %+v", m.Project)
	}
	cfg := m.EngineConfig()
	if cfg.MaxCallDepth != 64 || cfg.StepBudget != 100000 || !m.Engine.WarningsAsErrors {
		t.Errorf("engine = %+v", m.Engine)
	}
	if len(m.Scripts) != 2 {
		t.Fatalf("scripts count = %d, want 2", len(m.Scripts))
	}
	if s := m.Scripts[0]; s.Name != "Objects/Clonk.c" || s.Def != "CLNK" || s.Encoding != "windows-1252" {
		t.Errorf("first script = %+v", s)
	}
	if m.Scripts[1].Name != "scenario.ast" {
		t.Errorf("unnamed script defaults to %q, want its ast file", m.Scripts[1].Name)
	}
	if m.Constants["MaxEnergy"] != int64(100) || m.Constants["Debug"] != false {
		t.Errorf("constants = %v", m.Constants)
	}
	if len(m.Globals) != 1 || m.Globals[0] != "Round" {
		t.Errorf("globals = %v", m.Globals)
	}
	if !m.Cache.Enabled || m.CachePath() != filepath.Join(m.Dir, ".aul", "codecache.db") {
		t.Errorf("cache = %+v at %s", m.Cache, m.CachePath())
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name, toml, want string
	}{
		{"syntax", "[project\n", "parse error"},
		{"script without ast", "[[script]]\nname = \"a.c\"\n", "has no ast file"},
		{"bad encoding", "[[script]]\nast = \"a.ast\"\nencoding = \"ebcdic\"\n", "unknown source encoding"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, FileName, []byte(tt.toml))
			_, err := Load(dir)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() = %v, want an error containing %q", err, tt.want)
			}
		})
	}
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load of a directory without aul.toml succeeded")
	}
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, []byte("[project]\nname = \"root\"\n"))
	sub := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(sub)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil || m.Project.Name != "root" {
		t.Fatalf("FindAndLoad() = %+v", m)
	}
}

func TestApplyLinksProjectWithDependencies(t *testing.T) {
	root := t.TempDir()
	lib := filepath.Join(root, "lib")
	game := filepath.Join(root, "game")

	writeFile(t, lib, FileName, []byte(`
[[script]]
name = "Base.c"
def = "BASE"
ast = "base.ast"

[constants]
Bonus = 7
`))
	writeAST(t, lib, "base.ast", "Value", &ast.GlobalConstant{Name: "Bonus"})

	writeFile(t, game, FileName, []byte(`
globals = ["Round"]

[dependencies]
lib = { path = "../lib" }

[[script]]
name = "Main.c"
ast = "main.ast"
source = "Main.c"
encoding = "latin1"
`))
	writeAST(t, game, "main.ast", "Main", &ast.BinaryOp{
		Op:  ast.OpSum,
		LHS: &ast.IndirectCall{Callee: &ast.C4IDLiteral{Value: ast.MustParseID("BASE")}, Name: "Value"},
		RHS: &ast.IntLiteral{Value: 1},
	})
	writeFile(t, game, "Main.c", []byte("func Main() {\n  return BASE->Value() + 1;\n}\n"))

	m, err := Load(game)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	e := compiler.NewEngine(m.EngineConfig())
	loaded, err := m.Apply(e)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(loaded) != 2 || loaded[0].Script.Name != "Base.c" || loaded[1].Script.Name != "Main.c" {
		t.Fatalf("Apply registered %v, want the dependency first", loaded)
	}
	if e.GlobalIndex("Round") < 0 {
		t.Error("global variable Round not registered")
	}

	sum, err := e.Link()
	if err != nil || sum.Errors != 0 {
		t.Fatalf("Link: %v, %v", err, e.Diagnostics())
	}
	if sum.Lines != 4 {
		t.Errorf("Lines = %d, want 4 from Main.c", sum.Lines)
	}
	f := e.FindFunc("game Main")
	if f == nil {
		t.Fatal("game Main not found")
	}
	v, err := e.Call(t.Context(), f.ID, nil, nil)
	if err != nil || v.AsInt() != 8 {
		t.Errorf("Main() = %s, %v; want 8", v, err)
	}
}

func TestResolveDetectsCycles(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a")
	b := filepath.Join(root, "b")
	writeFile(t, a, FileName, []byte("[project]\nname = \"a\"\n[dependencies]\nb = { path = \"../b\" }\n"))
	writeFile(t, b, FileName, []byte("[project]\nname = \"b\"\n[dependencies]\na = { path = \"../a\" }\n"))

	m, err := Load(a)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	_, err = m.Resolve()
	if err == nil || !strings.Contains(err.Error(), "a -> b -> a") {
		t.Errorf("Resolve() = %v, want a cycle a -> b -> a", err)
	}
}

func TestResolveLoadsSharedDependencyOnce(t *testing.T) {
	root := t.TempDir()
	for name, deps := range map[string]string{
		"app":  "x = { path = \"../x\" }\ny = { path = \"../y\" }\n",
		"x":    "base = { path = \"../base\" }\n",
		"y":    "base = { path = \"../base\" }\n",
		"base": "",
	} {
		writeFile(t, filepath.Join(root, name), FileName,
			[]byte("[project]\nname = \""+name+"\"\n[dependencies]\n"+deps))
	}
	m, err := Load(filepath.Join(root, "app"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	deps, err := m.Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	var names []string
	for _, d := range deps {
		names = append(names, d.Manifest.Project.Name)
	}
	if strings.Join(names, ",") != "base,x,y" {
		t.Errorf("load order = %v, want base,x,y", names)
	}
}

func TestConstantValues(t *testing.T) {
	tests := []struct {
		in   any
		want vm.Value
		ok   bool
	}{
		{int64(5), vm.Int(5), true},
		{true, vm.Bool(true), true},
		{"x", vm.String("x"), true},
		{int64(1) << 40, vm.Nil, false},
		{1.5, vm.Nil, false},
	}
	for _, tt := range tests {
		got, err := constantValue(tt.in)
		if (err == nil) != tt.ok || (tt.ok && !got.Equals(tt.want, ast.Strict3)) {
			t.Errorf("constantValue(%v) = %s, %v", tt.in, got, err)
		}
	}
}

func TestCapabilityPolicy(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, []byte(`
[sync]
allow = ["Log", "global Sound"]
deny = ["Sound"]
ban-threshold = 5
`))
	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Sync.BanThreshold != 5 {
		t.Errorf("ban-threshold = %d, want 5", m.Sync.BanThreshold)
	}
	p := m.CapabilityPolicy()
	tests := []struct {
		host string
		ok   bool
	}{
		{"global Log", true},
		{"global Sound", false},
		{"global Exec", false},
	}
	for _, tt := range tests {
		err := p.Check(&dist.CapabilityManifest{Required: []string{tt.host}})
		if (err == nil) != tt.ok {
			t.Errorf("Check(%s) = %v, want ok=%v", tt.host, err, tt.ok)
		}
	}

	open := (&Manifest{}).CapabilityPolicy()
	if err := open.Check(&dist.CapabilityManifest{Required: []string{"global Exec"}}); err != nil {
		t.Errorf("a manifest without [sync] refused %v", err)
	}
}
