package emit

import (
	"strings"
	"testing"

	"github.com/shellc-lang/shellc/internal/shellir"
)

func mustEmit(t *testing.T, mod *shellir.Module, cfg Config) string {
	t.Helper()
	out, err := Emit(mod, cfg)
	if err != nil {
		t.Fatalf("Emit returned error: %v", err)
	}
	return out
}

func TestEmitPrologue(t *testing.T) {
	mod := &shellir.Module{
		Entry: "main",
		Functions: []*shellir.FunctionDef{
			{Name: "main", Body: []shellir.Stmt{&shellir.Return{}}},
		},
	}
	out := mustEmit(t, mod, DefaultConfig())
	lines := strings.SplitN(out, "\n", 3)
	if lines[0] != "#!/bin/sh" {
		t.Fatalf("first line = %q, want #!/bin/sh", lines[0])
	}
	if lines[1] != "set -euf" {
		t.Fatalf("second line = %q, want set -euf", lines[1])
	}
}

func TestEmitEmptyBlockUsesNoop(t *testing.T) {
	mod := &shellir.Module{
		Entry: "main",
		Functions: []*shellir.FunctionDef{
			{Name: "main", Body: []shellir.Stmt{
				&shellir.If{Cond: shellir.BoolVal{Value: true}, Then: nil},
				&shellir.Return{},
			}},
		},
	}
	out := mustEmit(t, mod, Config{EmitRuntimeHelpers: false, NegationStyle: BangCommand})
	if !strings.Contains(out, "\t:\n") {
		t.Fatalf("expected empty if-body to emit a bare ':', got:\n%s", out)
	}
}

func TestEmitBoolAssignLiteral(t *testing.T) {
	mod := &shellir.Module{
		Entry: "main",
		Functions: []*shellir.FunctionDef{
			{Name: "main", Body: []shellir.Stmt{
				&shellir.Assign{Name: "flag", Value: shellir.BoolVal{Value: true}},
				&shellir.Assign{Name: "off", Value: shellir.BoolVal{Value: false}},
				&shellir.Return{},
			}},
		},
	}
	out := mustEmit(t, mod, Config{EmitRuntimeHelpers: false, NegationStyle: BangCommand})
	if !strings.Contains(out, "flag=1\n") {
		t.Fatalf("expected flag=1, got:\n%s", out)
	}
	if !strings.Contains(out, "off=\n") {
		t.Fatalf("expected off= (empty), got:\n%s", out)
	}
}

func TestEmitCmpAssignUsesIfElse(t *testing.T) {
	mod := &shellir.Module{
		Entry: "main",
		Functions: []*shellir.FunctionDef{
			{Name: "main", Body: []shellir.Stmt{
				&shellir.Assign{Name: "ok", Value: shellir.Cmp{
					Op:    shellir.NumEq,
					Left:  shellir.VarRef{Name: "x", Type: shellir.Int},
					Right: shellir.IntVal{Value: 5},
				}},
				&shellir.Return{},
			}},
		},
	}
	out := mustEmit(t, mod, Config{EmitRuntimeHelpers: false, NegationStyle: BangCommand})
	if !strings.Contains(out, `if [ "$x" -eq 5 ]; then`) {
		t.Fatalf("expected numeric comparison test, got:\n%s", out)
	}
	if !strings.Contains(out, "ok=1") || !strings.Contains(out, "ok=\n") {
		t.Fatalf("expected both branches of bool assign, got:\n%s", out)
	}
}

func TestEmitNegationStyles(t *testing.T) {
	mod := &shellir.Module{
		Entry: "main",
		Functions: []*shellir.FunctionDef{
			{Name: "main", Body: []shellir.Stmt{
				&shellir.If{
					Cond: shellir.LogicalNot{Operand: shellir.VarRef{Name: "v", Type: shellir.Bool}},
					Then: []shellir.Stmt{&shellir.Return{}},
				},
				&shellir.Return{},
			}},
		},
	}

	bang := mustEmit(t, mod, Config{EmitRuntimeHelpers: false, NegationStyle: BangCommand})
	if !strings.Contains(bang, `! [ -n "$v" ]`) {
		t.Fatalf("expected bang-command negation, got:\n%s", bang)
	}

	z := mustEmit(t, mod, Config{EmitRuntimeHelpers: false, NegationStyle: TestZ})
	if !strings.Contains(z, `[ -z "$v" ]`) {
		t.Fatalf("expected test-z negation, got:\n%s", z)
	}
}

func TestEmitReturnValueConvention(t *testing.T) {
	mod := &shellir.Module{
		Entry: "main",
		Functions: []*shellir.FunctionDef{
			{Name: "add", Body: []shellir.Stmt{
				&shellir.Return{Value: shellir.Arith{Op: shellir.Add,
					Left: shellir.VarRef{Name: "a", Type: shellir.Int}, Right: shellir.VarRef{Name: "b", Type: shellir.Int}}},
			}},
			{Name: "main", Body: []shellir.Stmt{
				&shellir.Assign{Name: "sum", Value: shellir.Call{Name: "add",
					Args: []shellir.Value{shellir.IntVal{Value: 1}, shellir.IntVal{Value: 2}}, Type: shellir.Int}},
				&shellir.Return{},
			}},
		},
	}
	out := mustEmit(t, mod, Config{EmitRuntimeHelpers: false, NegationStyle: BangCommand})
	if !strings.Contains(out, "__ret_add=$(( a + b ))") {
		t.Fatalf("expected stash into __ret_add, got:\n%s", out)
	}
	if !strings.Contains(out, `sum="$__ret_add"`) {
		t.Fatalf("expected call-site read of __ret_add, got:\n%s", out)
	}
	if !strings.Contains(out, "\nmain\n") {
		t.Fatalf("expected trailing bare call to entry, got:\n%s", out)
	}
}

func TestEmitEntryReturnAlwaysZero(t *testing.T) {
	mod := &shellir.Module{
		Entry: "main",
		Functions: []*shellir.FunctionDef{
			{Name: "main", Body: []shellir.Stmt{
				&shellir.Return{Value: shellir.IntVal{Value: 7}},
			}},
		},
	}
	out := mustEmit(t, mod, Config{EmitRuntimeHelpers: false, NegationStyle: BangCommand})
	if strings.Contains(out, "__ret_main") {
		t.Fatalf("entry function must not stash a return value, got:\n%s", out)
	}
	if !strings.Contains(out, "return 0") {
		t.Fatalf("expected bare return 0, got:\n%s", out)
	}
}

func TestEmitMultilineStringLiteralVerbatim(t *testing.T) {
	mod := &shellir.Module{
		Entry: "main",
		Functions: []*shellir.FunctionDef{
			{Name: "main", Body: []shellir.Stmt{
				&shellir.Assign{Name: "msg", Value: shellir.StrVal{Value: "line one\nline two"}},
				&shellir.Return{},
			}},
		},
	}
	out := mustEmit(t, mod, Config{EmitRuntimeHelpers: false, NegationStyle: BangCommand})
	if !strings.Contains(out, "msg=\"line one\nline two\"") {
		t.Fatalf("expected embedded newline to pass through verbatim, got:\n%s", out)
	}
}

func TestEmitConcatFlattensFragments(t *testing.T) {
	mod := &shellir.Module{
		Entry: "main",
		Functions: []*shellir.FunctionDef{
			{Name: "main", Body: []shellir.Stmt{
				&shellir.Assign{Name: "g", Value: shellir.Concat{Parts: []shellir.Value{
					shellir.StrVal{Value: "hello "},
					shellir.VarRef{Name: "name", Type: shellir.Str},
				}}},
				&shellir.Return{},
			}},
		},
	}
	out := mustEmit(t, mod, Config{EmitRuntimeHelpers: false, NegationStyle: BangCommand})
	if !strings.Contains(out, `g="hello $name"`) {
		t.Fatalf("expected flattened concat, got:\n%s", out)
	}
}

func TestEmitConcatRejectsCallFragment(t *testing.T) {
	mod := &shellir.Module{
		Entry: "main",
		Functions: []*shellir.FunctionDef{
			{Name: "main", Body: []shellir.Stmt{
				&shellir.Assign{Name: "g", Value: shellir.Concat{Parts: []shellir.Value{
					shellir.Call{Name: "helper", Type: shellir.Str},
				}}},
				&shellir.Return{},
			}},
		},
	}
	_, err := Emit(mod, Config{EmitRuntimeHelpers: false, NegationStyle: BangCommand})
	if err == nil {
		t.Fatal("expected an error for a Call embedded in a Concat")
	}
	emitErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *emit.Error, got %T", err)
	}
	if emitErr.Kind != "EmitterError" {
		t.Fatalf("expected EmitterError, got %s", emitErr.Kind)
	}
}

func TestEmitRuntimeHelpersIncludedByDefault(t *testing.T) {
	mod := &shellir.Module{
		Entry:     "main",
		Functions: []*shellir.FunctionDef{{Name: "main", Body: []shellir.Stmt{&shellir.Return{}}}},
	}
	out := mustEmit(t, mod, DefaultConfig())
	for _, want := range []string{"echo() {", "concat() {", "env_var_or() {", "exit_with() {"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected runtime helper %q in output, got:\n%s", want, out)
		}
	}
}

func TestEmitOmitsRuntimeHelpersWhenDisabled(t *testing.T) {
	mod := &shellir.Module{
		Entry:     "main",
		Functions: []*shellir.FunctionDef{{Name: "main", Body: []shellir.Stmt{&shellir.Return{}}}},
	}
	out := mustEmit(t, mod, Config{EmitRuntimeHelpers: false, NegationStyle: BangCommand})
	if strings.Contains(out, "env_var_or() {") {
		t.Fatalf("did not expect runtime helpers, got:\n%s", out)
	}
}

func TestEmitIsDeterministic(t *testing.T) {
	mod := &shellir.Module{
		Entry: "main",
		Functions: []*shellir.FunctionDef{
			{Name: "main", Body: []shellir.Stmt{
				&shellir.Assign{Name: "x", Value: shellir.IntVal{Value: 42}},
				&shellir.Return{},
			}},
		},
	}
	a := mustEmit(t, mod, DefaultConfig())
	b := mustEmit(t, mod, DefaultConfig())
	if a != b {
		t.Fatal("Emit is not deterministic across identical calls")
	}
}

func TestEscapeShellDoubleEscapesSpecialChars(t *testing.T) {
	got := escapeShellDouble(`a"b\c` + "`d$e")
	want := `a\"b\\c\` + "`d\\$e"
	if got != want {
		t.Fatalf("escapeShellDouble() = %q, want %q", got, want)
	}
}
