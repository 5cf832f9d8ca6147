// Package shellc is the stable external surface of the compiler: the
// Parse/Validate/Lower/Emit/Verify phase functions plus the composed
// Compile entry point. Everything under internal/ is an implementation
// detail; callers (the CLI, tests, and any future embedder) depend only on
// this package.
package shellc

import (
	"github.com/shellc-lang/shellc/internal/ast"
	cerr "github.com/shellc-lang/shellc/internal/errors"
	"github.com/shellc-lang/shellc/internal/emit"
	"github.com/shellc-lang/shellc/internal/lexer"
	"github.com/shellc-lang/shellc/internal/lower"
	"github.com/shellc-lang/shellc/internal/parser"
	"github.com/shellc-lang/shellc/internal/shellir"
	"github.com/shellc-lang/shellc/internal/validate"
	"github.com/shellc-lang/shellc/internal/verify"
)

// Config is the full set of configurable behavior across every phase.
type Config struct {
	// MaxRecursionDepth bounds the validator's static call-depth check.
	MaxRecursionDepth int
	// EmitRuntimeHelpers includes the echo/concat/env_var_or/exit_with
	// shell functions in the emitted prologue.
	EmitRuntimeHelpers bool
	// NegationStyle picks the rendered form of unary `!` on a variable.
	NegationStyle emit.NegationStyle
	// VerifyAfterEmit runs the verifier over Compile's own output before
	// returning it, surfacing any violation as an error rather than
	// silently handing back a script that fails the compiler's own
	// structural guarantees.
	VerifyAfterEmit bool
	// File names the source for error messages; empty is fine for
	// in-memory compiles.
	File string
}

// DefaultConfig returns the documented defaults for every open question:
// a recursion limit of 100, runtime helpers included, BangCommand
// negation, and verification enabled.
func DefaultConfig() Config {
	return Config{
		MaxRecursionDepth:  validate.DefaultMaxRecursionDepth,
		EmitRuntimeHelpers: true,
		NegationStyle:      emit.BangCommand,
		VerifyAfterEmit:    true,
	}
}

func (c Config) validateConfig() validate.Config {
	depth := c.MaxRecursionDepth
	if depth <= 0 {
		depth = validate.DefaultMaxRecursionDepth
	}
	return validate.Config{MaxRecursionDepth: depth}
}

func (c Config) emitConfig() emit.Config {
	return emit.Config{EmitRuntimeHelpers: c.EmitRuntimeHelpers, NegationStyle: c.NegationStyle}
}

// Parse lexes and parses source into an AST. Lexical and syntax errors from
// both phases are collected together into a single *errors.MultiError;
// neither phase stops at the first mistake.
func Parse(source string, cfg Config) (*ast.Program, error) {
	lx := lexer.New(source)
	p := parser.New(lx)
	prog := p.ParseProgram()

	var errs []*cerr.CompilerError
	for _, le := range lx.Errors() {
		errs = append(errs, cerr.NewCompilerError(cerr.StageParse, le.Pos, le.Message, source, cfg.File))
	}
	for _, pe := range p.Errors() {
		errs = append(errs, cerr.NewCompilerError(cerr.StageParse, pe.Pos, pe.Message, source, cfg.File))
	}
	if len(errs) > 0 {
		return nil, &cerr.MultiError{Errors: errs}
	}
	return prog, nil
}

// Validate checks prog against the restricted-language rules, returning
// every violation found in a single *errors.MultiError.
func Validate(prog *ast.Program, source string, cfg Config) error {
	err := validate.Validate(prog, cfg.validateConfig())
	if err == nil {
		return nil
	}
	verr := err.(*validate.ValidationError)
	errs := make([]*cerr.CompilerError, len(verr.Errors))
	for i, v := range verr.Errors {
		errs[i] = cerr.NewCompilerError(cerr.StageValidate, v.Pos, v.Message, source, cfg.File)
	}
	return &cerr.MultiError{Errors: errs}
}

// Lower translates a validated program into the shell IR. Unlike Parse and
// Validate, a lowering failure is a single fatal error: the pass stops at
// the first type mismatch or unsupported shape it finds.
func Lower(prog *ast.Program, source string, cfg Config) (*shellir.Module, error) {
	mod, err := lower.Lower(prog)
	if err != nil {
		le := err.(*lower.Error)
		return nil, cerr.NewCompilerError(cerr.StageLower, le.Pos, le.Message, source, cfg.File)
	}
	return mod, nil
}

// Emit renders mod as POSIX shell text.
func Emit(mod *shellir.Module, cfg Config) (string, error) {
	script, err := emit.Emit(mod, cfg.emitConfig())
	if err != nil {
		ee := err.(*emit.Error)
		return "", cerr.NewCompilerError(cerr.StageEmit, lexer.Position{Line: 1, Column: 1}, ee.Message, "", cfg.File)
	}
	return script, nil
}

// Verify runs the structural checks in internal/verify against script.
func Verify(script string, mod *shellir.Module, cfg Config) error {
	if err := verify.Verify(script, mod, cfg.emitConfig()); err != nil {
		ve := err.(*verify.Error)
		return cerr.NewCompilerError(cerr.StageVerify, lexer.Position{Line: 1, Column: 1}, ve.Error(), "", cfg.File)
	}
	return nil
}

// Compile runs the full pipeline over source and returns the emitted
// script. Each phase's error, if any, is returned immediately — the first
// failing phase is fatal and later phases never run, so a caller either
// gets a complete, verified script or an error, never a partial script.
func Compile(source string, cfg Config) (string, error) {
	prog, err := Parse(source, cfg)
	if err != nil {
		return "", err
	}
	if err := Validate(prog, source, cfg); err != nil {
		return "", err
	}
	mod, err := Lower(prog, source, cfg)
	if err != nil {
		return "", err
	}
	script, err := Emit(mod, cfg)
	if err != nil {
		return "", err
	}
	if cfg.VerifyAfterEmit {
		if err := Verify(script, mod, cfg); err != nil {
			return "", err
		}
	}
	return script, nil
}
