// Package validate checks a restricted-language Program against the
// rules the later pipeline stages depend on: a well-shaped entry point,
// fully resolved calls, shell-legal identifiers, and a bounded recursion
// depth. It follows an accumulate-don't-stop discipline, gathering every
// violation in one pass instead of aborting at the first.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shellc-lang/shellc/internal/ast"
	"github.com/shellc-lang/shellc/internal/lexer"
)

// ValidationError collects every violation found in one validation pass.
// It implements the error interface so callers can treat validate's
// result as a normal Go error while still inspecting individual failures.
type ValidationError struct {
	Errors []*Violation
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("validation failed with %d error(s): %s (and %d more)",
		len(e.Errors), e.Errors[0].Error(), len(e.Errors)-1)
}

// Violation is a single rule violation with source position.
type Violation struct {
	Kind    string // UnsupportedConstruct, UnknownIdentifier, EntryPointInvalid, DuplicateDefinition, InvalidIdentifier
	Message string
	Pos     lexer.Position
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s at %s", v.Kind, v.Message, v.Pos.String())
}

// Reserved holds shell-reserved identifiers that source programs may not
// bind, matching the shell's own special variables plus positional names.
var Reserved = map[string]bool{
	"IFS": true, "PATH": true, "PS1": true, "_": true,
	"0": true, "1": true, "2": true, "3": true, "4": true,
	"5": true, "6": true, "7": true, "8": true, "9": true,
}

// HelperSignature describes a runtime helper's fixed arity and the types
// the lowering and validation passes check call sites against.
type HelperSignature struct {
	Params []ast.Type
	Return ast.Type
}

// HelperSignatures is the closed set of runtime helper functions a call may
// resolve to when no user-defined function of that name exists.
var HelperSignatures = map[string]HelperSignature{
	"echo":       {Params: []ast.Type{ast.Str}, Return: ast.Unit},
	"concat":     {Params: []ast.Type{ast.Str, ast.Str}, Return: ast.Str},
	"env_var_or": {Params: []ast.Type{ast.Str, ast.Str}, Return: ast.Str},
	"exit_with":  {Params: []ast.Type{ast.Int}, Return: ast.Unit},
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DefaultMaxRecursionDepth is the static recursion depth above which a
// call chain is flagged.
const DefaultMaxRecursionDepth = 100

// Config controls the validator's configurable limits.
type Config struct {
	MaxRecursionDepth int
}

// DefaultConfig returns a Config with the documented defaults.
func DefaultConfig() Config {
	return Config{MaxRecursionDepth: DefaultMaxRecursionDepth}
}

type validator struct {
	cfg       Config
	functions map[string]*ast.Function
	errors    []*Violation
}

// Validate checks prog against the restricted-language rules and returns
// either a nil error (prog is usable as-is) or a *ValidationError listing
// every violation found.
func Validate(prog *ast.Program, cfg Config) error {
	v := &validator{cfg: cfg, functions: make(map[string]*ast.Function)}

	for _, fn := range prog.Functions {
		if existing, ok := v.functions[fn.Name]; ok {
			v.addError("DuplicateDefinition", fmt.Sprintf("function %q already defined at %s", fn.Name, existing.Pos()), fn.Pos())
			continue
		}
		v.functions[fn.Name] = fn
	}

	v.checkIdentifier(prog.Entry, nil)
	entry, ok := v.functions[prog.Entry]
	if !ok {
		v.addError("EntryPointInvalid", fmt.Sprintf("entry function %q is not defined", prog.Entry), posZero())
	} else {
		if len(entry.Params) != 0 {
			v.addError("EntryPointInvalid", fmt.Sprintf("entry function %q must take no parameters", prog.Entry), entry.Pos())
		}
		if entry.ReturnType != ast.Unit {
			v.addError("EntryPointInvalid", fmt.Sprintf("entry function %q must return unit", prog.Entry), entry.Pos())
		}
	}

	for _, fn := range prog.Functions {
		v.checkIdentifier(fn.Name, fn)
		seen := map[string]bool{}
		for _, param := range fn.Params {
			v.checkIdentifier(param.Name, fn)
			if seen[param.Name] {
				v.addError("DuplicateDefinition", fmt.Sprintf("duplicate parameter %q in function %q", param.Name, fn.Name), fn.Pos())
			}
			seen[param.Name] = true
		}
		scope := newScope(nil)
		for _, param := range fn.Params {
			scope.bind(param.Name, param.Type)
		}
		v.checkBlock(fn.Body, scope)
	}

	v.checkRecursion()

	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}

func (v *validator) addError(kind, msg string, pos lexer.Position) {
	v.errors = append(v.errors, &Violation{Kind: kind, Message: msg, Pos: pos})
}

func (v *validator) checkIdentifier(name string, node ast.Node) {
	if name == "" || !identRe.MatchString(name) {
		v.addError("InvalidIdentifier", fmt.Sprintf("identifier %q is not a legal shell name", name), posOf(node))
		return
	}
	if Reserved[name] {
		v.addError("InvalidIdentifier", fmt.Sprintf("identifier %q collides with a reserved shell name", name), posOf(node))
	}
	// the __ prefix belongs to generated variables (__ret_<fn>,
	// __tmp_<fn>_<n>, the helpers' own scratch names).
	if strings.HasPrefix(name, "__") {
		v.addError("InvalidIdentifier", fmt.Sprintf("identifier %q uses the reserved __ prefix", name), posOf(node))
	}
}

// scope tracks which identifiers are bound in the current and enclosing
// blocks, resolved by name rather than by pointer (the AST has no
// back-references from use to binding site).
type scope struct {
	parent *scope
	names  map[string]ast.Type
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, names: make(map[string]ast.Type)}
}

func (s *scope) bind(name string, typ ast.Type) { s.names[name] = typ }

func (s *scope) resolve(name string) (ast.Type, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if t, ok := cur.names[name]; ok {
			return t, true
		}
	}
	return ast.Unknown, false
}

func (v *validator) checkBlock(b *ast.Block, parent *scope) {
	s := newScope(parent)
	for _, stmt := range b.Statements {
		v.checkStmt(stmt, s)
	}
}

func (v *validator) checkStmt(stmt ast.Statement, s *scope) {
	switch st := stmt.(type) {
	case *ast.LetStmt:
		v.checkIdentifier(st.Name, st)
		v.checkExpr(st.Value, s)
		s.bind(st.Name, st.Type)
	case *ast.ExprStmt:
		if st.Expr != nil {
			v.checkExpr(st.Expr, s)
		}
	case *ast.IfStmt:
		v.checkExpr(st.Cond, s)
		v.checkBlock(st.Then, s)
		if st.Else != nil {
			v.checkBlock(st.Else, s)
		}
	case *ast.ReturnStmt:
		if st.Value != nil {
			v.checkExpr(st.Value, s)
		}
	default:
		v.addError("UnsupportedConstruct", fmt.Sprintf("unsupported statement type %T", stmt), posOf(stmt))
	}
}

func (v *validator) checkExpr(expr ast.Expression, s *scope) {
	switch e := expr.(type) {
	case *ast.Ident:
		if _, ok := s.resolve(e.Name); !ok {
			v.addError("UnknownIdentifier", fmt.Sprintf("identifier %q is not defined in this scope", e.Name), e.Pos())
		}
	case *ast.IntLiteral, *ast.StrLiteral, *ast.BoolLiteral:
		// literals always valid
	case *ast.BinaryExpr:
		v.checkExpr(e.Left, s)
		v.checkExpr(e.Right, s)
	case *ast.UnaryExpr:
		v.checkExpr(e.Operand, s)
	case *ast.CallExpr:
		if fn, isFn := v.functions[e.Name]; isFn {
			if len(e.Args) != len(fn.Params) {
				v.addError("UnsupportedConstruct", fmt.Sprintf("call to %q passes %d argument(s), expected %d", e.Name, len(e.Args), len(fn.Params)), e.Pos())
			}
		} else if sig, isHelper := HelperSignatures[e.Name]; isHelper {
			if len(e.Args) != len(sig.Params) {
				v.addError("UnsupportedConstruct", fmt.Sprintf("call to helper %q passes %d argument(s), expected %d", e.Name, len(e.Args), len(sig.Params)), e.Pos())
			}
		} else {
			v.addError("UnknownIdentifier", fmt.Sprintf("call to undefined function or helper %q", e.Name), e.Pos())
		}
		for _, arg := range e.Args {
			v.checkExpr(arg, s)
		}
	case *ast.BlockExpr:
		v.checkBlock(e.Block, s)
	default:
		v.addError("UnsupportedConstruct", fmt.Sprintf("unsupported expression type %T", expr), posOf(expr))
	}
}

// checkRecursion walks the static call graph from each function and flags
// any chain whose depth exceeds the configured limit. Mutual recursion is
// allowed; only the depth is bounded.
func (v *validator) checkRecursion() {
	for name, fn := range v.functions {
		depth := v.maxCallDepth(name, map[string]bool{}, 0)
		if depth > v.cfg.MaxRecursionDepth {
			v.addError("UnsupportedConstruct",
				fmt.Sprintf("function %q has a static call depth of %d, exceeding the configured limit of %d", name, depth, v.cfg.MaxRecursionDepth),
				fn.Pos())
		}
	}
}

func (v *validator) maxCallDepth(name string, visiting map[string]bool, depth int) int {
	if visiting[name] {
		// a cycle was found; stop descending here so the chain is counted
		// up to the repeated call rather than looping forever.
		return depth
	}
	fn, ok := v.functions[name]
	if !ok {
		return depth
	}
	visiting[name] = true
	defer delete(visiting, name)

	max := depth
	walkCalls(fn.Body, func(callee string) {
		if _, isFn := v.functions[callee]; !isFn {
			return
		}
		d := v.maxCallDepth(callee, visiting, depth+1)
		if d > max {
			max = d
		}
	})
	return max
}

func walkCalls(b *ast.Block, visit func(name string)) {
	for _, stmt := range b.Statements {
		walkStmtCalls(stmt, visit)
	}
}

func walkStmtCalls(stmt ast.Statement, visit func(name string)) {
	switch st := stmt.(type) {
	case *ast.LetStmt:
		walkExprCalls(st.Value, visit)
	case *ast.ExprStmt:
		if st.Expr != nil {
			walkExprCalls(st.Expr, visit)
		}
	case *ast.IfStmt:
		walkExprCalls(st.Cond, visit)
		walkCalls(st.Then, visit)
		if st.Else != nil {
			walkCalls(st.Else, visit)
		}
	case *ast.ReturnStmt:
		if st.Value != nil {
			walkExprCalls(st.Value, visit)
		}
	}
}

func walkExprCalls(expr ast.Expression, visit func(name string)) {
	switch e := expr.(type) {
	case *ast.CallExpr:
		visit(e.Name)
		for _, arg := range e.Args {
			walkExprCalls(arg, visit)
		}
	case *ast.BinaryExpr:
		walkExprCalls(e.Left, visit)
		walkExprCalls(e.Right, visit)
	case *ast.UnaryExpr:
		walkExprCalls(e.Operand, visit)
	case *ast.BlockExpr:
		walkCalls(e.Block, visit)
	}
}

func posOf(n ast.Node) lexer.Position {
	if n == nil {
		return posZero()
	}
	return n.Pos()
}

func posZero() lexer.Position {
	return lexer.Position{Line: 1, Column: 1}
}

// Stats is a small struct-of-counts static complexity report over an
// already-validated Program: function count, the deepest static call
// chain found, how many literal and variable-reference expressions the
// program contains, and which runtime helpers it actually calls. This is
// a diagnostic aid surfaced by `shellc parse --stats`, never a gate — it
// runs independently of Validate and never produces an error.
type Stats struct {
	FunctionCount int
	MaxCallDepth  int
	LiteralCount  int
	VariableCount int
	HelpersUsed   map[string]int
}

// ComputeStats walks prog and tallies Stats. It assumes prog is at least
// well-formed enough to walk (every Function has a non-nil Body), which
// holds for every function the parser returns.
func ComputeStats(prog *ast.Program) *Stats {
	s := &Stats{HelpersUsed: make(map[string]int)}
	s.FunctionCount = len(prog.Functions)

	functions := make(map[string]*ast.Function, len(prog.Functions))
	for _, fn := range prog.Functions {
		functions[fn.Name] = fn
	}

	for _, fn := range prog.Functions {
		walkStatsBlock(fn.Body, s)
		depth := statsCallDepth(fn.Name, functions, map[string]bool{})
		if depth > s.MaxCallDepth {
			s.MaxCallDepth = depth
		}
	}
	return s
}

func walkStatsBlock(b *ast.Block, s *Stats) {
	for _, stmt := range b.Statements {
		walkStatsStmt(stmt, s)
	}
}

func walkStatsStmt(stmt ast.Statement, s *Stats) {
	switch st := stmt.(type) {
	case *ast.LetStmt:
		walkStatsExpr(st.Value, s)
	case *ast.ExprStmt:
		if st.Expr != nil {
			walkStatsExpr(st.Expr, s)
		}
	case *ast.IfStmt:
		walkStatsExpr(st.Cond, s)
		walkStatsBlock(st.Then, s)
		if st.Else != nil {
			walkStatsBlock(st.Else, s)
		}
	case *ast.ReturnStmt:
		if st.Value != nil {
			walkStatsExpr(st.Value, s)
		}
	}
}

func walkStatsExpr(expr ast.Expression, s *Stats) {
	switch e := expr.(type) {
	case *ast.IntLiteral, *ast.StrLiteral, *ast.BoolLiteral:
		s.LiteralCount++
	case *ast.Ident:
		s.VariableCount++
	case *ast.BinaryExpr:
		walkStatsExpr(e.Left, s)
		walkStatsExpr(e.Right, s)
	case *ast.UnaryExpr:
		walkStatsExpr(e.Operand, s)
	case *ast.CallExpr:
		if _, isHelper := HelperSignatures[e.Name]; isHelper {
			s.HelpersUsed[e.Name]++
		}
		for _, arg := range e.Args {
			walkStatsExpr(arg, s)
		}
	case *ast.BlockExpr:
		walkStatsBlock(e.Block, s)
	}
}

func statsCallDepth(name string, functions map[string]*ast.Function, visiting map[string]bool) int {
	if visiting[name] {
		return 0
	}
	fn, ok := functions[name]
	if !ok {
		return 0
	}
	visiting[name] = true
	defer delete(visiting, name)

	max := 0
	walkCalls(fn.Body, func(callee string) {
		if _, isFn := functions[callee]; !isFn {
			return
		}
		d := 1 + statsCallDepth(callee, functions, visiting)
		if d > max {
			max = d
		}
	})
	return max
}
