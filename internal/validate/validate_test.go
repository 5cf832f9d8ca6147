package validate

import (
	"testing"

	"github.com/shellc-lang/shellc/internal/ast"
	"github.com/shellc-lang/shellc/internal/lexer"
	"github.com/shellc-lang/shellc/internal/parser"
)

func parseProgram(t *testing.T, input string) *ast.Program {
	t.Helper()
	l := lexer.New(input)
	p := parser.New(l)
	prog := p.ParseProgram()
	if len(p.Errors()) != 0 {
		t.Fatalf("parser errors: %v", p.Errors())
	}
	return prog
}

func TestValidateAcceptsMinimalProgram(t *testing.T) {
	prog := parseProgram(t, `fn main() { return; }`)
	if err := Validate(prog, DefaultConfig()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateRejectsMissingEntry(t *testing.T) {
	prog := parseProgram(t, `fn other() { return; }`)
	err := Validate(prog, DefaultConfig())
	if err == nil {
		t.Fatal("expected an error for a missing entry point")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if !hasKind(ve.Errors, "EntryPointInvalid") {
		t.Fatalf("expected EntryPointInvalid violation, got %v", ve.Errors)
	}
}

func TestValidateRejectsEntryWithParams(t *testing.T) {
	prog := parseProgram(t, `fn main(x: Int) { return; }`)
	err := Validate(prog, DefaultConfig())
	ve := err.(*ValidationError)
	if !hasKind(ve.Errors, "EntryPointInvalid") {
		t.Fatalf("expected EntryPointInvalid for entry with params, got %v", ve.Errors)
	}
}

func TestValidateRejectsEntryWithNonUnitReturn(t *testing.T) {
	prog := parseProgram(t, `fn main() -> Int { return 0; }`)
	err := Validate(prog, DefaultConfig())
	ve := err.(*ValidationError)
	if !hasKind(ve.Errors, "EntryPointInvalid") {
		t.Fatalf("expected EntryPointInvalid for non-unit entry return, got %v", ve.Errors)
	}
}

func TestValidateRejectsDuplicateFunction(t *testing.T) {
	prog := parseProgram(t, `fn helper() { return; } fn helper() { return; } fn main() { return; }`)
	err := Validate(prog, DefaultConfig())
	ve := err.(*ValidationError)
	if !hasKind(ve.Errors, "DuplicateDefinition") {
		t.Fatalf("expected DuplicateDefinition, got %v", ve.Errors)
	}
}

func TestValidateRejectsUnknownIdentifier(t *testing.T) {
	prog := parseProgram(t, `fn main() { let x = y; return; }`)
	err := Validate(prog, DefaultConfig())
	ve := err.(*ValidationError)
	if !hasKind(ve.Errors, "UnknownIdentifier") {
		t.Fatalf("expected UnknownIdentifier, got %v", ve.Errors)
	}
}

func TestValidateRejectsReservedIdentifier(t *testing.T) {
	prog := parseProgram(t, `fn main() { let IFS = "x"; return; }`)
	err := Validate(prog, DefaultConfig())
	ve := err.(*ValidationError)
	if !hasKind(ve.Errors, "InvalidIdentifier") {
		t.Fatalf("expected InvalidIdentifier for reserved name, got %v", ve.Errors)
	}
}

func TestValidateRejectsDunderPrefixedIdentifier(t *testing.T) {
	prog := parseProgram(t, `fn main() { let __x = 1; return; }`)
	err := Validate(prog, DefaultConfig())
	ve := err.(*ValidationError)
	if !hasKind(ve.Errors, "InvalidIdentifier") {
		t.Fatalf("expected InvalidIdentifier for a __-prefixed name, got %v", ve.Errors)
	}
}

func TestValidateRejectsWrongHelperArity(t *testing.T) {
	prog := parseProgram(t, `fn main() { echo("a", "b"); return; }`)
	err := Validate(prog, DefaultConfig())
	ve := err.(*ValidationError)
	if !hasKind(ve.Errors, "UnsupportedConstruct") {
		t.Fatalf("expected UnsupportedConstruct for wrong helper arity, got %v", ve.Errors)
	}
}

func TestValidateAcceptsHelperCall(t *testing.T) {
	prog := parseProgram(t, `fn main() { echo("hello"); return; }`)
	if err := Validate(prog, DefaultConfig()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateFlagsExcessiveRecursionDepth(t *testing.T) {
	prog := parseProgram(t, `
		fn a() { b(); return; }
		fn b() { a(); return; }
		fn main() { a(); return; }
	`)
	err := Validate(prog, Config{MaxRecursionDepth: 1})
	if err == nil {
		t.Fatal("expected an error for recursion exceeding the configured depth")
	}
	ve := err.(*ValidationError)
	if !hasKind(ve.Errors, "UnsupportedConstruct") {
		t.Fatalf("expected UnsupportedConstruct for excessive recursion, got %v", ve.Errors)
	}
}

func TestValidateAllowsRecursionWithinLimit(t *testing.T) {
	prog := parseProgram(t, `
		fn countdown(n: Int) { if n > 0 { countdown(n - 1); } return; }
		fn main() { countdown(3); return; }
	`)
	if err := Validate(prog, DefaultConfig()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestComputeStatsCountsFunctionsLiteralsAndHelpers(t *testing.T) {
	prog := parseProgram(t, `
		fn helper() { return; }
		fn main() {
			let x = 5;
			let y = "hi";
			echo(y);
			helper();
			return;
		}
	`)
	if err := Validate(prog, DefaultConfig()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	stats := ComputeStats(prog)
	if stats.FunctionCount != 2 {
		t.Fatalf("expected 2 functions, got %d", stats.FunctionCount)
	}
	if stats.LiteralCount != 2 {
		t.Fatalf("expected 2 literals, got %d", stats.LiteralCount)
	}
	if stats.HelpersUsed["echo"] != 1 {
		t.Fatalf("expected echo used once, got %d", stats.HelpersUsed["echo"])
	}
}

func hasKind(violations []*Violation, kind string) bool {
	for _, v := range violations {
		if v.Kind == kind {
			return true
		}
	}
	return false
}
