// Package lower translates a validated restricted-language Program into
// the typed shell-semantic IR (internal/shellir). This is the heart of
// the pipeline: a type-directed pass that decides, for each expression,
// whether shell must treat it as a string or an integer, and chooses the
// corresponding IR node shape.
package lower

import (
	"fmt"
	"strconv"

	"github.com/shellc-lang/shellc/internal/ast"
	"github.com/shellc-lang/shellc/internal/lexer"
	"github.com/shellc-lang/shellc/internal/shellir"
	"github.com/shellc-lang/shellc/internal/validate"
)

// Error reports a lowering failure: either a type mismatch the validator
// could not have caught (it does not do full type inference) or an AST
// shape lowering has no rule for.
type Error struct {
	Kind    string // TypeMismatch, ComparisonInConcatenation, UnsupportedLowering
	Message string
	Pos     lexer.Position
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s at %s", e.Kind, e.Message, e.Pos.String()) }

// binding maps a source identifier to the shell name it reads from and its
// static type. For a let-bound variable the shell name is the identifier
// itself; for a function parameter it is the positional parameter ("1",
// "2", ...) — positionals are saved and restored across function calls by
// the shell, which keeps recursive calls from clobbering each other's
// arguments the way named globals would.
type binding struct {
	shellName string
	typ       ast.Type
}

type typeScope struct {
	parent *typeScope
	names  map[string]binding
}

func newTypeScope(parent *typeScope) *typeScope {
	return &typeScope{parent: parent, names: make(map[string]binding)}
}

func (s *typeScope) bind(name string, t ast.Type) {
	s.names[name] = binding{shellName: name, typ: t}
}

func (s *typeScope) bindParam(name string, t ast.Type, index int) {
	s.names[name] = binding{shellName: strconv.Itoa(index + 1), typ: t}
}

func (s *typeScope) lookup(name string) (binding, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if b, ok := cur.names[name]; ok {
			return b, true
		}
	}
	return binding{}, false
}

type lowerer struct {
	functions map[string]*ast.Function
	err       *Error

	// curFunc/tmpCount name the compiler temporaries (__tmp_<fn>_<n>)
	// that hoisted sub-expressions assign into; pending holds those
	// synthetic assignments until the enclosing statement flushes them.
	curFunc  string
	tmpCount int
	pending  []shellir.Stmt
}

func toIRType(t ast.Type) shellir.Type {
	switch t {
	case ast.Int:
		return shellir.Int
	case ast.Str:
		return shellir.Str
	case ast.Bool:
		return shellir.Bool
	case ast.Unit:
		return shellir.Unit
	default:
		return shellir.Unknown
	}
}

// Lower converts prog into an IR Module. prog is assumed to have already
// passed validate.Validate; Lower does not re-check shell-identifier
// legality or entry-point shape.
func Lower(prog *ast.Program) (*shellir.Module, error) {
	l := &lowerer{functions: make(map[string]*ast.Function)}
	for _, fn := range prog.Functions {
		l.functions[fn.Name] = fn
	}

	mod := &shellir.Module{Entry: prog.Entry}
	for _, fn := range prog.Functions {
		irFn := l.lowerFunction(fn)
		if l.err != nil {
			return nil, l.err
		}
		mod.Functions = append(mod.Functions, irFn)
	}
	return mod, nil
}

func (l *lowerer) fail(kind string, pos lexer.Position, format string, args ...any) {
	if l.err == nil {
		l.err = &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Pos: pos}
	}
}

func (l *lowerer) lowerFunction(fn *ast.Function) *shellir.FunctionDef {
	l.curFunc = fn.Name
	l.tmpCount = 0
	l.pending = nil

	scope := newTypeScope(nil)
	for i, p := range fn.Params {
		scope.bindParam(p.Name, p.Type, i)
	}
	body := l.lowerBlock(fn.Body, scope)
	return &shellir.FunctionDef{Name: fn.Name, Body: body}
}

// drainPending returns the synthetic assignments accumulated while
// lowering the current statement's expressions, in evaluation order, and
// resets the buffer. The caller emits them immediately before the
// statement that consumes their variables.
func (l *lowerer) drainPending() []shellir.Stmt {
	out := l.pending
	l.pending = nil
	return out
}

// hoistTemp assigns v to a fresh compiler temporary and returns the
// variable reference that stands in for it in expression position.
func (l *lowerer) hoistTemp(v shellir.Value, t ast.Type) shellir.Value {
	name := fmt.Sprintf("__tmp_%s_%d", l.curFunc, l.tmpCount)
	l.tmpCount++
	l.pending = append(l.pending, &shellir.Assign{Name: name, Value: v})
	return shellir.VarRef{Name: name, Type: toIRType(t)}
}

// hoistArg prepares v for use inside a larger expression (a call argument
// or an arithmetic/comparison/concatenation operand). A Call and the
// boolean-shaped test nodes have statement-level emission forms only, so
// they move into a synthetic assignment and the operand position reads
// the temporary instead.
func (l *lowerer) hoistArg(v shellir.Value, t ast.Type) shellir.Value {
	switch v.(type) {
	case shellir.Call, shellir.Cmp, shellir.LogicalAnd, shellir.LogicalOr, shellir.LogicalNot:
		return l.hoistTemp(v, t)
	}
	return v
}

// hoistCond prepares v for test position (an if condition or a logical
// operand). Comparisons and logical combinators render directly as POSIX
// tests and stay inline, but a Call moves out: its result lives in a
// __ret_ variable, not in its exit status, so testing the invocation
// itself would always succeed.
func (l *lowerer) hoistCond(v shellir.Value, t ast.Type) shellir.Value {
	if _, ok := v.(shellir.Call); ok {
		return l.hoistTemp(v, t)
	}
	return v
}

func (l *lowerer) hoistOperand(op ast.BinaryOp, v shellir.Value, t ast.Type) shellir.Value {
	if op == ast.OpAnd || op == ast.OpOr {
		return l.hoistCond(v, t)
	}
	return l.hoistArg(v, t)
}

func (l *lowerer) lowerBlock(b *ast.Block, parent *typeScope) []shellir.Stmt {
	scope := newTypeScope(parent)
	var out []shellir.Stmt
	for _, stmt := range b.Statements {
		out = append(out, l.lowerStmt(stmt, scope)...)
		if l.err != nil {
			return out
		}
	}
	return out
}

// lowerStmt lowers one source statement into its IR statement, preceded
// by any synthetic assignments its expressions hoisted.
func (l *lowerer) lowerStmt(stmt ast.Statement, scope *typeScope) []shellir.Stmt {
	switch st := stmt.(type) {
	case *ast.LetStmt:
		val, typ := l.lowerExpr(st.Value, scope)
		if st.Type != ast.Unknown && st.Type != typ {
			l.fail("TypeMismatch", st.Pos(), "let %q declared as %s but initializer is %s", st.Name, st.Type, typ)
			return nil
		}
		scope.bind(st.Name, typ)
		return append(l.drainPending(), &shellir.Assign{Name: st.Name, Value: val})

	case *ast.ExprStmt:
		if st.Expr == nil {
			return nil
		}
		val, _ := l.lowerExpr(st.Expr, scope)
		return append(l.drainPending(), &shellir.ExprStmt{Value: val})

	case *ast.IfStmt:
		cond, condType := l.lowerExpr(st.Cond, scope)
		if condType != ast.Bool {
			l.fail("TypeMismatch", st.Pos(), "if condition must be Bool, got %s", condType)
			return nil
		}
		cond = l.hoistCond(cond, condType)
		// the condition's hoisted assignments must run before the if, not
		// leak into the branch bodies lowered below.
		lead := l.drainPending()
		then := l.lowerBlock(st.Then, scope)
		var els []shellir.Stmt
		if st.Else != nil {
			els = l.lowerBlock(st.Else, scope)
		}
		return append(lead, &shellir.If{Cond: cond, Then: then, Else: els})

	case *ast.ReturnStmt:
		if st.Value == nil {
			return []shellir.Stmt{&shellir.Return{}}
		}
		val, _ := l.lowerExpr(st.Value, scope)
		return append(l.drainPending(), &shellir.Return{Value: val})

	default:
		l.fail("UnsupportedLowering", posOf(stmt), "no lowering rule for statement type %T", stmt)
		return nil
	}
}

// lowerExpr lowers expr and returns both the IR value and its static
// source-level type, which callers use to pick operator IR shapes.
func (l *lowerer) lowerExpr(expr ast.Expression, scope *typeScope) (shellir.Value, ast.Type) {
	switch e := expr.(type) {
	case *ast.IntLiteral:
		return shellir.IntVal{Value: e.Value}, ast.Int

	case *ast.StrLiteral:
		return shellir.StrVal{Value: e.Value}, ast.Str

	case *ast.BoolLiteral:
		return shellir.BoolVal{Value: e.Value}, ast.Bool

	case *ast.Ident:
		b, ok := scope.lookup(e.Name)
		if !ok {
			return shellir.VarRef{Name: e.Name, Type: shellir.Unknown}, ast.Unknown
		}
		return shellir.VarRef{Name: b.shellName, Type: toIRType(b.typ)}, b.typ

	case *ast.UnaryExpr:
		return l.lowerUnary(e, scope)

	case *ast.BinaryExpr:
		return l.lowerBinary(e, scope)

	case *ast.CallExpr:
		return l.lowerCall(e, scope)

	default:
		l.fail("UnsupportedLowering", posOf(expr), "no lowering rule for expression type %T", expr)
		return nil, ast.Unknown
	}
}

// lowerCall resolves the callee's declared signature — a user function's
// Params/ReturnType or a runtime helper's fixed HelperSignature — and type
// checks each argument against it. The result carries the callee's real
// return type rather than always Unit, so `let x: Str = concat(a, b);` and
// the return-via-variable convention both have a usable static type to
// lower against.
func (l *lowerer) lowerCall(e *ast.CallExpr, scope *typeScope) (shellir.Value, ast.Type) {
	var args []shellir.Value
	var argTypes []ast.Type
	for _, a := range e.Args {
		v, t := l.lowerExpr(a, scope)
		if l.err != nil {
			return nil, ast.Unknown
		}
		// a nested call or comparison can't render inline in argument
		// position; hoisting here, before the next argument lowers, keeps
		// the hoisted assignments in source evaluation order.
		args = append(args, l.hoistArg(v, t))
		argTypes = append(argTypes, t)
	}

	retType := ast.Unit
	var paramTypes []ast.Type
	if fn, ok := l.functions[e.Name]; ok {
		retType = fn.ReturnType
		for _, p := range fn.Params {
			paramTypes = append(paramTypes, p.Type)
		}
	} else if sig, ok := validate.HelperSignatures[e.Name]; ok {
		retType = sig.Return
		paramTypes = sig.Params
	}

	for i, t := range argTypes {
		if i >= len(paramTypes) {
			break
		}
		if paramTypes[i] != ast.Unknown && t != paramTypes[i] {
			l.fail("TypeMismatch", e.Pos(), "call to %q argument %d: expected %s, got %s", e.Name, i+1, paramTypes[i], t)
			return nil, ast.Unknown
		}
	}

	// concat is pure string concatenation, so a call to the helper (when no
	// user function shadows it) folds straight into a Concat value instead
	// of a runtime invocation.
	if _, userFn := l.functions[e.Name]; !userFn && e.Name == "concat" && len(args) == 2 {
		return foldConcat(args[0], args[1]), ast.Str
	}

	return shellir.Call{Name: e.Name, Args: args, Type: toIRType(retType)}, retType
}

// foldConcat joins two string-shaped values, collapsing adjacent literals.
func foldConcat(left, right shellir.Value) shellir.Value {
	if ls, ok := left.(shellir.StrVal); ok {
		if rs, ok := right.(shellir.StrVal); ok {
			return shellir.StrVal{Value: ls.Value + rs.Value}
		}
	}
	return shellir.Concat{Parts: []shellir.Value{left, right}}
}

// foldArith evaluates an arithmetic node whose operands are both integer
// literals. Div and Mod stay unfolded: division by zero must keep its
// runtime behavior in the emitted script rather than fail at compile time.
func foldArith(op shellir.ArithOp, left, right shellir.Value) (shellir.Value, bool) {
	lv, lok := left.(shellir.IntVal)
	rv, rok := right.(shellir.IntVal)
	if !lok || !rok {
		return nil, false
	}
	switch op {
	case shellir.Add:
		return shellir.IntVal{Value: lv.Value + rv.Value}, true
	case shellir.Sub:
		return shellir.IntVal{Value: lv.Value - rv.Value}, true
	case shellir.Mul:
		return shellir.IntVal{Value: lv.Value * rv.Value}, true
	default:
		return nil, false
	}
}

func (l *lowerer) lowerUnary(e *ast.UnaryExpr, scope *typeScope) (shellir.Value, ast.Type) {
	operand, operandType := l.lowerExpr(e.Operand, scope)
	switch e.Op {
	case ast.OpNot:
		if operandType != ast.Bool {
			l.fail("TypeMismatch", e.Pos(), "unary ! requires a Bool operand, got %s", operandType)
			return nil, ast.Unknown
		}
		return shellir.LogicalNot{Operand: l.hoistCond(operand, operandType)}, ast.Bool
	case ast.OpNeg:
		if operandType != ast.Int {
			l.fail("TypeMismatch", e.Pos(), "unary - requires an Int operand, got %s", operandType)
			return nil, ast.Unknown
		}
		return shellir.Arith{Op: shellir.Sub, Left: shellir.IntVal{Value: 0}, Right: l.hoistArg(operand, operandType)}, ast.Int
	default:
		l.fail("UnsupportedLowering", e.Pos(), "unknown unary operator")
		return nil, ast.Unknown
	}
}

func posOf(n ast.Node) lexer.Position {
	if n == nil {
		return lexer.Position{Line: 1, Column: 1}
	}
	return n.Pos()
}

var arithOps = map[ast.BinaryOp]shellir.ArithOp{
	ast.OpAdd: shellir.Add,
	ast.OpSub: shellir.Sub,
	ast.OpMul: shellir.Mul,
	ast.OpDiv: shellir.Div,
	ast.OpMod: shellir.Mod,
}

var numCmpOps = map[ast.BinaryOp]shellir.CmpOp{
	ast.OpLt: shellir.NumLt,
	ast.OpLe: shellir.NumLe,
	ast.OpGt: shellir.NumGt,
	ast.OpGe: shellir.NumGe,
}

func (l *lowerer) lowerBinary(e *ast.BinaryExpr, scope *typeScope) (shellir.Value, ast.Type) {
	left, leftType := l.lowerExpr(e.Left, scope)
	if l.err != nil {
		return nil, ast.Unknown
	}
	left = l.hoistOperand(e.Op, left, leftType)
	right, rightType := l.lowerExpr(e.Right, scope)
	if l.err != nil {
		return nil, ast.Unknown
	}
	right = l.hoistOperand(e.Op, right, rightType)

	switch e.Op {
	case ast.OpAdd:
		// "+" is overloaded: Int+Int is arithmetic, Str+Str is
		// concatenation. There is no dedicated concatenation token in the
		// surface syntax, so the parser always emits OpAdd and this pass
		// is the single place that resolves it to Arith or Concat.
		if leftType == ast.Int && rightType == ast.Int {
			if folded, ok := foldArith(shellir.Add, left, right); ok {
				return folded, ast.Int
			}
			return shellir.Arith{Op: shellir.Add, Left: left, Right: right}, ast.Int
		}
		if leftType == ast.Str && rightType == ast.Str {
			return foldConcat(left, right), ast.Str
		}
		l.fail("TypeMismatch", e.Pos(), "+ requires Int x Int or Str x Str operands, got %s x %s", leftType, rightType)
		return nil, ast.Unknown

	case ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpMod:
		if leftType != ast.Int || rightType != ast.Int {
			l.fail("TypeMismatch", e.Pos(), "%s requires Int x Int operands, got %s x %s", e.Op, leftType, rightType)
			return nil, ast.Unknown
		}
		if folded, ok := foldArith(arithOps[e.Op], left, right); ok {
			return folded, ast.Int
		}
		return shellir.Arith{Op: arithOps[e.Op], Left: left, Right: right}, ast.Int

	case ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		if leftType != ast.Int || rightType != ast.Int {
			l.fail("TypeMismatch", e.Pos(), "%s requires Int x Int operands, got %s x %s", e.Op, leftType, rightType)
			return nil, ast.Unknown
		}
		return shellir.Cmp{Op: numCmpOps[e.Op], Left: left, Right: right}, ast.Bool

	case ast.OpEq, ast.OpNe:
		if leftType != rightType || (leftType != ast.Int && leftType != ast.Str) {
			l.fail("TypeMismatch", e.Pos(), "%s requires two Int or two Str operands, got %s x %s", e.Op, leftType, rightType)
			return nil, ast.Unknown
		}
		// A string literal that merely looks like an integer (e.g. "42")
		// stays Str-typed: comparing it against an Int variable is a
		// TypeMismatch above, never a silent coercion.
		numeric := leftType == ast.Int
		var op shellir.CmpOp
		switch {
		case e.Op == ast.OpEq && numeric:
			op = shellir.NumEq
		case e.Op == ast.OpNe && numeric:
			op = shellir.NumNe
		case e.Op == ast.OpEq:
			op = shellir.StrEq
		default:
			op = shellir.StrNe
		}
		return shellir.Cmp{Op: op, Left: left, Right: right}, ast.Bool

	case ast.OpAnd:
		if leftType != ast.Bool || rightType != ast.Bool {
			l.fail("TypeMismatch", e.Pos(), "&& requires Bool x Bool operands, got %s x %s", leftType, rightType)
			return nil, ast.Unknown
		}
		return shellir.LogicalAnd{Left: left, Right: right}, ast.Bool

	case ast.OpOr:
		if leftType != ast.Bool || rightType != ast.Bool {
			l.fail("TypeMismatch", e.Pos(), "|| requires Bool x Bool operands, got %s x %s", leftType, rightType)
			return nil, ast.Unknown
		}
		return shellir.LogicalOr{Left: left, Right: right}, ast.Bool

	case ast.OpConcat:
		// reserved operator with no surface syntax yet; kept so the enum
		// stays exhaustively handled.
		return foldConcat(left, right), ast.Str

	default:
		l.fail("UnsupportedLowering", e.Pos(), "unknown binary operator %s", e.Op)
		return nil, ast.Unknown
	}
}
