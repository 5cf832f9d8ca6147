// Package emit turns a shellir.Module into POSIX shell text. It owns a
// single output buffer threaded through recursive emit calls; emission is
// a pure function of the module and the configuration.
package emit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shellc-lang/shellc/internal/shellir"
)

// NegationStyle picks the emitted form of a `!`-negated truthiness test on
// a bare variable. Both values are logically equivalent; only the rendered
// token shape differs.
type NegationStyle int

const (
	// BangCommand renders `! <var>` negation as a bang-guarded -n test:
	// `! [ -n "$v" ]`. The default.
	BangCommand NegationStyle = iota
	// TestZ renders the same negation directly as `[ -z "$v" ]`.
	TestZ
)

// Config controls the emitter's configurable behavior.
type Config struct {
	// EmitRuntimeHelpers includes the fixed-semantics shell functions for
	// echo/concat/env_var_or/exit_with in the prologue. Default true.
	EmitRuntimeHelpers bool
	// NegationStyle picks the rendered form of `!` on a bare variable.
	NegationStyle NegationStyle
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{EmitRuntimeHelpers: true, NegationStyle: BangCommand}
}

// Error reports a node shape the emitter has no rendering rule for. This
// always indicates a bug upstream in lowering, not a user-facing source
// error, so it carries no source span.
type Error struct {
	Kind    string // EmitterError
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }

const indentUnit = "\t"

type emitter struct {
	cfg        Config
	buf        strings.Builder
	err        *Error
	curFunc    string
	curIsEntry bool
}

// Emit renders mod as a complete POSIX shell script: fixed shebang and
// `set -euf` prologue, optional runtime-helper shell functions, one shell
// function per IR FunctionDef in source order, and a trailing bare call to
// the entry function. Emit is a pure function of (mod, cfg) — no
// timestamps, randomness, or map-iteration-order dependence — satisfying
// the determinism property the verifier checks independently.
func Emit(mod *shellir.Module, cfg Config) (string, error) {
	e := &emitter{cfg: cfg}
	e.writeLine(0, "#!/bin/sh")
	e.writeLine(0, "set -euf")
	e.blank()

	if cfg.EmitRuntimeHelpers {
		e.emitRuntimeHelpers()
		e.blank()
	}

	for _, fn := range mod.Functions {
		e.emitFunction(fn, fn.Name == mod.Entry)
		e.blank()
		if e.err != nil {
			return "", e.err
		}
	}

	e.writeLine(0, mod.Entry)
	return e.buf.String(), nil
}

func (e *emitter) fail(format string, args ...any) {
	if e.err == nil {
		e.err = &Error{Kind: "EmitterError", Message: fmt.Sprintf(format, args...)}
	}
}

func (e *emitter) writeLine(level int, text string) {
	if e.err != nil {
		return
	}
	e.buf.WriteString(strings.Repeat(indentUnit, level))
	e.buf.WriteString(text)
	e.buf.WriteByte('\n')
}

func (e *emitter) blank() {
	if e.err != nil {
		return
	}
	e.buf.WriteByte('\n')
}

// emitRuntimeHelpers injects the four fixed-semantics runtime helpers.
// The two that produce a value, concat and env_var_or, follow the
// return-via-variable convention (__ret_<name>) so call sites that use a
// helper's result read it the same way they would a user function's; echo
// and exit_with set no result variable.
func (e *emitter) emitRuntimeHelpers() {
	e.writeLine(0, "echo() {")
	e.writeLine(1, `printf '%s\n' "$1"`)
	e.writeLine(0, "}")
	e.blank()

	e.writeLine(0, "concat() {")
	e.writeLine(1, `__ret_concat="$1$2"`)
	e.writeLine(0, "}")
	e.blank()

	// env_var_or's first argument is an environment variable NAME, looked
	// up indirectly. POSIX sh has no ${!name} form, so the lookup goes
	// through eval: the outer double quotes escape "$" ahead of "${" so
	// eval's argument is the literal text "__ev=${<name>:-}", and eval's
	// own parse performs the real expansion against that name.
	e.writeLine(0, "env_var_or() {")
	e.writeLine(1, `eval "__ev=\${$1:-}"`)
	e.writeLine(1, `if [ -n "$__ev" ]; then`)
	e.writeLine(2, `__ret_env_var_or="$__ev"`)
	e.writeLine(1, "else")
	e.writeLine(2, `__ret_env_var_or="$2"`)
	e.writeLine(1, "fi")
	e.writeLine(0, "}")
	e.blank()

	e.writeLine(0, "exit_with() {")
	e.writeLine(1, `exit "$1"`)
	e.writeLine(0, "}")
}

func (e *emitter) emitFunction(fn *shellir.FunctionDef, isEntry bool) {
	e.curFunc = fn.Name
	e.curIsEntry = isEntry
	e.writeLine(0, fn.Name+"() {")
	e.emitBlock(1, fn.Body)
	e.writeLine(0, "}")
}

func (e *emitter) emitBlock(level int, stmts []shellir.Stmt) {
	if len(stmts) == 0 {
		// POSIX requires at least one command between `then`/`{` and its
		// close; ":" is the standard no-op.
		e.writeLine(level, ":")
		return
	}
	for _, s := range stmts {
		e.emitStmt(level, s)
		if e.err != nil {
			return
		}
	}
}

func (e *emitter) emitStmt(level int, s shellir.Stmt) {
	switch st := s.(type) {
	case *shellir.Assign:
		e.emitAssign(level, st)
	case *shellir.If:
		e.emitIf(level, st)
	case *shellir.ExprStmt:
		e.emitExprStmt(level, st)
	case *shellir.Return:
		e.emitReturn(level, st)
	default:
		e.fail("no emission rule for statement type %T", s)
	}
}

func (e *emitter) emitIf(level int, s *shellir.If) {
	test, ok := e.renderTest(s.Cond)
	if !ok {
		return
	}
	e.writeLine(level, fmt.Sprintf("if %s; then", test))
	e.emitBlock(level+1, s.Then)
	if s.Else != nil {
		e.writeLine(level, "else")
		e.emitBlock(level+1, s.Else)
	}
	e.writeLine(level, "fi")
}

func (e *emitter) emitExprStmt(level int, s *shellir.ExprStmt) {
	switch v := s.Value.(type) {
	case shellir.Call:
		line, ok := e.renderCallLine(v)
		if !ok {
			return
		}
		e.writeLine(level, line)
	case shellir.Cmp, shellir.LogicalAnd, shellir.LogicalOr, shellir.LogicalNot:
		test, ok := e.renderTest(s.Value)
		if !ok {
			return
		}
		e.writeLine(level, test)
	default:
		rendered, ok := e.renderValue(s.Value, false)
		if !ok {
			return
		}
		e.writeLine(level, ": "+rendered)
	}
}

// emitAssign renders `name=<value>`. Bool-shaped values have no direct
// shell literal form beyond the 1/"" truthy-string convention this emitter
// uses for variables, so a Cmp/Logical* value is lowered through an
// if/else that sets the variable from a POSIX test's exit status.
func (e *emitter) emitAssign(level int, a *shellir.Assign) {
	switch v := a.Value.(type) {
	case shellir.BoolVal:
		e.writeLine(level, fmt.Sprintf("%s=%s", a.Name, boolAssignLiteral(v.Value)))
	case shellir.Cmp, shellir.LogicalAnd, shellir.LogicalOr, shellir.LogicalNot:
		e.emitBoolAssign(level, a.Name, a.Value)
	case shellir.Call:
		e.emitCallAssign(level, a.Name, v)
	default:
		rendered, ok := e.renderValue(a.Value, false)
		if !ok {
			return
		}
		e.writeLine(level, fmt.Sprintf("%s=%s", a.Name, rendered))
	}
}

func (e *emitter) emitBoolAssign(level int, name string, cond shellir.Value) {
	test, ok := e.renderTest(cond)
	if !ok {
		return
	}
	e.writeLine(level, fmt.Sprintf("if %s; then", test))
	e.writeLine(level+1, name+"=1")
	e.writeLine(level, "else")
	e.writeLine(level+1, name+"=")
	e.writeLine(level, "fi")
}

func (e *emitter) emitCallAssign(level int, name string, call shellir.Call) {
	line, ok := e.renderCallLine(call)
	if !ok {
		return
	}
	e.writeLine(level, line)
	if call.Type == shellir.Unit {
		e.writeLine(level, name+"=")
		return
	}
	e.writeLine(level, fmt.Sprintf("%s=\"$__ret_%s\"", name, call.Name))
}

// emitReturn implements the return-via-variable convention: a non-entry
// function's `return v;` stashes v into __ret_<function> immediately
// before `return 0`; the entry function (required to return unit) and a
// bare `return;` both lower to a plain `return 0`.
func (e *emitter) emitReturn(level int, s *shellir.Return) {
	if s.Value == nil || e.curIsEntry {
		e.writeLine(level, "return 0")
		return
	}

	retVar := "__ret_" + e.curFunc
	switch v := s.Value.(type) {
	case shellir.BoolVal:
		e.writeLine(level, fmt.Sprintf("%s=%s", retVar, boolAssignLiteral(v.Value)))
	case shellir.Cmp, shellir.LogicalAnd, shellir.LogicalOr, shellir.LogicalNot:
		e.emitBoolAssign(level, retVar, s.Value)
	case shellir.Call:
		line, ok := e.renderCallLine(v)
		if !ok {
			return
		}
		e.writeLine(level, line)
		if v.Type == shellir.Unit {
			e.writeLine(level, retVar+"=")
		} else {
			e.writeLine(level, fmt.Sprintf("%s=\"$__ret_%s\"", retVar, v.Name))
		}
	default:
		rendered, ok := e.renderValue(s.Value, false)
		if !ok {
			return
		}
		e.writeLine(level, fmt.Sprintf("%s=%s", retVar, rendered))
	}
	e.writeLine(level, "return 0")
}

func (e *emitter) renderCallLine(call shellir.Call) (string, bool) {
	parts := []string{call.Name}
	for _, a := range call.Args {
		rendered, ok := e.renderValue(a, false)
		if !ok {
			return "", false
		}
		parts = append(parts, rendered)
	}
	return strings.Join(parts, " "), true
}

// renderValue renders v in general value position: arith selects between
// the quoted-string/command-argument form and the bare arithmetic-context
// form (inside $(( )), variables render as bare n, not "$n").
func (e *emitter) renderValue(v shellir.Value, arith bool) (string, bool) {
	switch val := v.(type) {
	case shellir.StrVal:
		if arith {
			e.fail("string value used in an arithmetic context")
			return "", false
		}
		return quoteShellString(val.Value), true

	case shellir.IntVal:
		return strconv.FormatInt(val.Value, 10), true

	case shellir.BoolVal:
		if arith {
			e.fail("bool value used in an arithmetic context")
			return "", false
		}
		return quoteShellString(boolAssignLiteral(val.Value)), true

	case shellir.VarRef:
		if arith {
			// named variables appear bare inside $(( )); positional
			// parameters ("1", "2", ...) have no bare form and keep the $.
			if isPositional(val.Name) {
				return "$" + val.Name, true
			}
			return val.Name, true
		}
		return `"$` + val.Name + `"`, true

	case shellir.Concat:
		return e.renderConcat(val)

	case shellir.Arith:
		l, lok := e.renderValue(val.Left, true)
		r, rok := e.renderValue(val.Right, true)
		if !lok || !rok {
			return "", false
		}
		return fmt.Sprintf("$(( %s %s %s ))", l, arithSym(val.Op), r), true

	default:
		e.fail("%T cannot be rendered as a value", v)
		return "", false
	}
}

// renderConcat flattens a Concat into a single double-quoted span when
// every part is a literal/variable/arithmetic fragment. A Call, Cmp, or
// Logical* fragment can't be inlined into one expression position (each
// needs its own statement to invoke or test), so those are rejected as an
// EmitterError rather than silently producing unsafe or wrong shell.
func (e *emitter) renderConcat(c shellir.Concat) (string, bool) {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, part := range c.Parts {
		frag, ok := e.concatFragment(part)
		if !ok {
			return "", false
		}
		sb.WriteString(frag)
	}
	sb.WriteByte('"')
	return sb.String(), true
}

func (e *emitter) concatFragment(v shellir.Value) (string, bool) {
	switch val := v.(type) {
	case shellir.StrVal:
		return escapeShellDouble(val.Value), true
	case shellir.IntVal:
		return strconv.FormatInt(val.Value, 10), true
	case shellir.BoolVal:
		return boolAssignLiteral(val.Value), true
	case shellir.VarRef:
		return "$" + val.Name, true
	case shellir.Concat:
		var sb strings.Builder
		for _, p := range val.Parts {
			frag, ok := e.concatFragment(p)
			if !ok {
				return "", false
			}
			sb.WriteString(frag)
		}
		return sb.String(), true
	case shellir.Arith:
		rendered, ok := e.renderValue(val, false)
		if !ok {
			return "", false
		}
		// $(( ... )) is itself legal inside a double-quoted span.
		return rendered, true
	default:
		e.fail("%T cannot be embedded in a string concatenation", v)
		return "", false
	}
}

// renderTest renders v as the `<cond-test>` form that follows `if `/`&&`/
// `||`/`!` — the boolean-shaped subset of Value.
func (e *emitter) renderTest(v shellir.Value) (string, bool) {
	switch val := v.(type) {
	case shellir.Cmp:
		l, lok := e.renderValue(val.Left, false)
		r, rok := e.renderValue(val.Right, false)
		if !lok || !rok {
			return "", false
		}
		sym, ok := cmpSym(val.Op)
		if !ok {
			e.fail("unknown comparison operator")
			return "", false
		}
		return fmt.Sprintf("[ %s %s %s ]", l, sym, r), true

	case shellir.LogicalAnd:
		l, lok := e.renderTest(val.Left)
		r, rok := e.renderTest(val.Right)
		if !lok || !rok {
			return "", false
		}
		return l + " && " + r, true

	case shellir.LogicalOr:
		l, lok := e.renderTest(val.Left)
		r, rok := e.renderTest(val.Right)
		if !lok || !rok {
			return "", false
		}
		return l + " || " + r, true

	case shellir.LogicalNot:
		return e.renderNegation(val.Operand)

	case shellir.BoolVal:
		if val.Value {
			return "true", true
		}
		return "false", true

	case shellir.VarRef:
		return fmt.Sprintf(`[ -n "$%s" ]`, val.Name), true

	case shellir.Call:
		return e.renderCallLine(val)

	default:
		e.fail("%T is not a boolean-shaped test", v)
		return "", false
	}
}

func (e *emitter) renderNegation(operand shellir.Value) (string, bool) {
	if v, ok := operand.(shellir.VarRef); ok {
		switch e.cfg.NegationStyle {
		case TestZ:
			return fmt.Sprintf(`[ -z "$%s" ]`, v.Name), true
		default:
			return fmt.Sprintf(`! [ -n "$%s" ]`, v.Name), true
		}
	}
	test, ok := e.renderTest(operand)
	if !ok {
		return "", false
	}
	return "! " + test, true
}

func cmpSym(op shellir.CmpOp) (string, bool) {
	switch op {
	case shellir.NumEq:
		return "-eq", true
	case shellir.NumNe:
		return "-ne", true
	case shellir.NumGt:
		return "-gt", true
	case shellir.NumGe:
		return "-ge", true
	case shellir.NumLt:
		return "-lt", true
	case shellir.NumLe:
		return "-le", true
	case shellir.StrEq:
		return "=", true
	case shellir.StrNe:
		return "!=", true
	default:
		return "", false
	}
}

func arithSym(op shellir.ArithOp) string {
	switch op {
	case shellir.Add:
		return "+"
	case shellir.Sub:
		return "-"
	case shellir.Mul:
		return "*"
	case shellir.Div:
		return "/"
	case shellir.Mod:
		return "%"
	default:
		return "?"
	}
}

// isPositional reports whether name is a positional parameter reference
// (a non-empty run of decimal digits, such as "1") rather than a named
// shell variable.
func isPositional(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// boolAssignLiteral is the shell-level encoding of a Bool value stored in
// a variable: "1" for true, "" for false. Chosen so that the truthiness
// test for a bare variable, `[ -n "$n" ]`, is correct without any extra
// translation at the test site.
func boolAssignLiteral(b bool) string {
	if b {
		return "1"
	}
	return ""
}

// escapeShellDouble backslash-escapes the four characters POSIX treats
// specially inside a double-quoted string: " \ ` $. Every other byte,
// including literal newlines, passes through verbatim; POSIX double quotes
// permit embedded newlines, so multi-line literals need no translation.
func escapeShellDouble(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '"', '\\', '`', '$':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func quoteShellString(s string) string {
	return `"` + escapeShellDouble(s) + `"`
}
