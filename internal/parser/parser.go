// Package parser implements a Pratt parser that turns a token stream from
// internal/lexer into the restricted AST defined by internal/ast.
package parser

import (
	"fmt"
	"strconv"

	"github.com/shellc-lang/shellc/internal/ast"
	"github.com/shellc-lang/shellc/internal/lexer"
)

// precedence levels, lowest to highest.
const (
	_ int = iota
	LOWEST
	LOGICAL_OR  // ||
	LOGICAL_AND // &&
	EQUALS      // == !=
	LESSGREATER // < > <= >=
	CONCAT      // ++
	SUM         // + -
	PRODUCT     // * / %
	PREFIX      // -x !x
	CALL        // fn(x)
)

var precedences = map[lexer.TokenType]int{
	lexer.OR_OR:    LOGICAL_OR,
	lexer.AND_AND:  LOGICAL_AND,
	lexer.EQ:       EQUALS,
	lexer.NOT_EQ:   EQUALS,
	lexer.LT:       LESSGREATER,
	lexer.LE:       LESSGREATER,
	lexer.GT:       LESSGREATER,
	lexer.GE:       LESSGREATER,
	lexer.PLUS:     SUM,
	lexer.MINUS:    SUM,
	lexer.ASTERISK: PRODUCT,
	lexer.SLASH:    PRODUCT,
	lexer.PERCENT:  PRODUCT,
	lexer.LPAREN:   CALL,
}

var binaryOps = map[lexer.TokenType]ast.BinaryOp{
	lexer.PLUS:     ast.OpAdd,
	lexer.MINUS:    ast.OpSub,
	lexer.ASTERISK: ast.OpMul,
	lexer.SLASH:    ast.OpDiv,
	lexer.PERCENT:  ast.OpMod,
	lexer.EQ:       ast.OpEq,
	lexer.NOT_EQ:   ast.OpNe,
	lexer.LT:       ast.OpLt,
	lexer.LE:       ast.OpLe,
	lexer.GT:       ast.OpGt,
	lexer.GE:       ast.OpGe,
	lexer.AND_AND:  ast.OpAnd,
	lexer.OR_OR:    ast.OpOr,
}

// ParseErr records a single syntax error with its source position.
type ParseErr struct {
	Message string
	Pos     lexer.Position
}

func (e ParseErr) Error() string {
	return fmt.Sprintf("%s at %s", e.Message, e.Pos.String())
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// Parser consumes tokens from a Lexer and builds a restricted-language AST.
// It follows the accumulate-don't-stop discipline: a syntax error is
// recorded and parsing continues to the next statement boundary so a
// single source file can report more than one mistake per run.
type Parser struct {
	l      *lexer.Lexer
	errors []ParseErr

	curToken  lexer.Token
	peekToken lexer.Token

	prefixParseFns map[lexer.TokenType]prefixParseFn
	infixParseFns  map[lexer.TokenType]infixParseFn
}

// New creates a Parser over the given Lexer and primes the two-token
// lookahead window.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}

	p.prefixParseFns = map[lexer.TokenType]prefixParseFn{
		lexer.IDENT:  p.parseIdentOrCall,
		lexer.INT:    p.parseIntLiteral,
		lexer.STRING: p.parseStrLiteral,
		lexer.TRUE:   p.parseBoolLiteral,
		lexer.FALSE:  p.parseBoolLiteral,
		lexer.BANG:   p.parsePrefixExpr,
		lexer.MINUS:  p.parsePrefixExpr,
		lexer.LPAREN: p.parseGroupedExpr,
	}

	p.infixParseFns = map[lexer.TokenType]infixParseFn{
		lexer.PLUS:     p.parseInfixExpr,
		lexer.MINUS:    p.parseInfixExpr,
		lexer.ASTERISK: p.parseInfixExpr,
		lexer.SLASH:    p.parseInfixExpr,
		lexer.PERCENT:  p.parseInfixExpr,
		lexer.EQ:       p.parseInfixExpr,
		lexer.NOT_EQ:   p.parseInfixExpr,
		lexer.LT:       p.parseInfixExpr,
		lexer.LE:       p.parseInfixExpr,
		lexer.GT:       p.parseInfixExpr,
		lexer.GE:       p.parseInfixExpr,
		lexer.AND_AND:  p.parseInfixExpr,
		lexer.OR_OR:    p.parseInfixExpr,
	}

	p.nextToken()
	p.nextToken()
	return p
}

// Errors returns all syntax errors accumulated during parsing.
func (p *Parser) Errors() []ParseErr { return p.errors }

func (p *Parser) addError(msg string, pos lexer.Position) {
	p.errors = append(p.errors, ParseErr{Message: msg, Pos: pos})
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t lexer.TokenType) bool { return p.peekToken.Type == t }

func (p *Parser) expectPeek(t lexer.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf("expected next token to be %s, got %s instead", t, p.peekToken.Type), p.peekToken.Pos)
	return false
}

func (p *Parser) peekPrecedence() int {
	if pr, ok := precedences[p.peekToken.Type]; ok {
		return pr
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if pr, ok := precedences[p.curToken.Type]; ok {
		return pr
	}
	return LOWEST
}

// ParseProgram parses the entire token stream into a Program. The entry
// function is fixed by convention to be named "main"; the validator is
// responsible for confirming it exists and has the right shape.
func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{Entry: "main"}

	for !p.curTokenIs(lexer.EOF) {
		if p.curTokenIs(lexer.FN) {
			start := p.curToken.Pos
			if fn := p.parseFunction(); fn != nil {
				program.Functions = append(program.Functions, fn)
				p.nextToken()
			} else {
				// parseFunction stopped somewhere inside a malformed
				// definition, not necessarily at a function boundary;
				// skipToNextFunction leaves curToken on the next 'fn' (or
				// EOF). If parseFunction failed without consuming anything,
				// curToken is still this 'fn', so step past it first.
				if p.curToken.Pos == start {
					p.nextToken()
				}
				p.skipToNextFunction()
			}
		} else {
			p.addError(fmt.Sprintf("expected function definition, got %s", p.curToken.Type), p.curToken.Pos)
			p.skipToNextFunction()
		}
	}

	return program
}

// skipToNextFunction advances past tokens until it finds the start of the
// next function definition or EOF, so one malformed top-level item doesn't
// abort the whole parse.
func (p *Parser) skipToNextFunction() {
	for !p.curTokenIs(lexer.FN) && !p.curTokenIs(lexer.EOF) {
		p.nextToken()
	}
}

func (p *Parser) parseType() ast.Type {
	switch p.curToken.Type {
	case lexer.TYPE_INT:
		return ast.Int
	case lexer.TYPE_STR:
		return ast.Str
	case lexer.TYPE_BOOL:
		return ast.Bool
	default:
		p.addError(fmt.Sprintf("expected a type name, got %s", p.curToken.Type), p.curToken.Pos)
		return ast.Unknown
	}
}

func (p *Parser) parseFunction() *ast.Function {
	fn := &ast.Function{Token: p.curToken}

	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	fn.Name = p.curToken.Literal

	if !p.expectPeek(lexer.LPAREN) {
		return nil
	}

	fn.Params = p.parseParamList()
	if fn.Params == nil && !p.curTokenIs(lexer.RPAREN) {
		return nil
	}

	fn.ReturnType = ast.Unit
	if p.peekTokenIs(lexer.MINUS) {
		// "->" is lexed as MINUS then GT; accept that two-token sequence.
		p.nextToken()
		if !p.expectPeek(lexer.GT) {
			return nil
		}
		p.nextToken()
		fn.ReturnType = p.parseType()
		p.nextToken()
	}

	if !p.curTokenIs(lexer.LBRACE) {
		if !p.expectPeek(lexer.LBRACE) {
			return nil
		}
	}

	fn.Body = p.parseBlock()
	return fn
}

func (p *Parser) parseParamList() []ast.Param {
	var params []ast.Param

	if p.peekTokenIs(lexer.RPAREN) {
		p.nextToken()
		return params
	}

	p.nextToken()
	for {
		if !p.curTokenIs(lexer.IDENT) {
			p.addError(fmt.Sprintf("expected parameter name, got %s", p.curToken.Type), p.curToken.Pos)
			return nil
		}
		name := p.curToken.Literal
		if !p.expectPeek(lexer.COLON) {
			return nil
		}
		p.nextToken()
		typ := p.parseType()
		params = append(params, ast.Param{Name: name, Type: typ})

		if p.peekTokenIs(lexer.COMMA) {
			p.nextToken()
			p.nextToken()
			continue
		}
		break
	}

	if !p.expectPeek(lexer.RPAREN) {
		return nil
	}
	return params
}

func (p *Parser) parseBlock() *ast.Block {
	block := &ast.Block{Token: p.curToken}
	p.nextToken()

	for !p.curTokenIs(lexer.RBRACE) && !p.curTokenIs(lexer.EOF) {
		if stmt := p.parseStatement(); stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		p.nextToken()
	}

	if !p.curTokenIs(lexer.RBRACE) {
		p.addError("unterminated block, expected '}'", p.curToken.Pos)
	}
	return block
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case lexer.LET:
		return p.parseLetStmt()
	case lexer.IF:
		return p.parseIfStmt()
	case lexer.RETURN:
		return p.parseReturnStmt()
	default:
		return p.parseExprStmt()
	}
}

func (p *Parser) parseLetStmt() ast.Statement {
	stmt := &ast.LetStmt{Token: p.curToken}

	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	stmt.Name = p.curToken.Literal

	if p.peekTokenIs(lexer.COLON) {
		p.nextToken()
		p.nextToken()
		stmt.Type = p.parseType()
	}

	if !p.expectPeek(lexer.ASSIGN) {
		return nil
	}
	p.nextToken()
	stmt.Value = p.parseExpression(LOWEST)

	if p.peekTokenIs(lexer.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseIfStmt() ast.Statement {
	stmt := &ast.IfStmt{Token: p.curToken}

	p.nextToken()
	stmt.Cond = p.parseExpression(LOWEST)

	if !p.expectPeek(lexer.LBRACE) {
		return nil
	}
	stmt.Then = p.parseBlock()

	if p.peekTokenIs(lexer.ELSE) {
		p.nextToken()
		if p.peekTokenIs(lexer.IF) {
			p.nextToken()
			nested := p.parseIfStmt()
			if nested == nil {
				return nil
			}
			stmt.Else = &ast.Block{
				Token:      p.curToken,
				Statements: []ast.Statement{nested},
			}
			return stmt
		}
		if !p.expectPeek(lexer.LBRACE) {
			return nil
		}
		stmt.Else = p.parseBlock()
	}

	return stmt
}

func (p *Parser) parseReturnStmt() ast.Statement {
	stmt := &ast.ReturnStmt{Token: p.curToken}

	if p.peekTokenIs(lexer.SEMICOLON) {
		p.nextToken()
		return stmt
	}

	p.nextToken()
	stmt.Value = p.parseExpression(LOWEST)

	if p.peekTokenIs(lexer.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseExprStmt() ast.Statement {
	stmt := &ast.ExprStmt{Token: p.curToken}
	stmt.Expr = p.parseExpression(LOWEST)

	if p.peekTokenIs(lexer.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix, ok := p.prefixParseFns[p.curToken.Type]
	if !ok {
		p.addError(fmt.Sprintf("no prefix parse function for %s", p.curToken.Type), p.curToken.Pos)
		return nil
	}
	left := prefix()

	for !p.peekTokenIs(lexer.SEMICOLON) && precedence < p.peekPrecedence() {
		infix, ok := p.infixParseFns[p.peekToken.Type]
		if !ok {
			return left
		}
		p.nextToken()
		left = infix(left)
	}

	return left
}

func (p *Parser) parseIdentOrCall() ast.Expression {
	ident := &ast.Ident{Token: p.curToken, Name: p.curToken.Literal}
	if !p.peekTokenIs(lexer.LPAREN) {
		return ident
	}
	p.nextToken()
	return p.parseCallExpr(ident)
}

func (p *Parser) parseCallExpr(fn *ast.Ident) ast.Expression {
	call := &ast.CallExpr{Token: fn.Token, Name: fn.Name}
	call.Args = p.parseArgList()
	return call
}

func (p *Parser) parseArgList() []ast.Expression {
	var args []ast.Expression

	if p.peekTokenIs(lexer.RPAREN) {
		p.nextToken()
		return args
	}

	p.nextToken()
	args = append(args, p.parseExpression(LOWEST))

	for p.peekTokenIs(lexer.COMMA) {
		p.nextToken()
		p.nextToken()
		args = append(args, p.parseExpression(LOWEST))
	}

	if !p.expectPeek(lexer.RPAREN) {
		return nil
	}
	return args
}

func (p *Parser) parseIntLiteral() ast.Expression {
	lit := &ast.IntLiteral{Token: p.curToken}
	val, err := strconv.ParseInt(p.curToken.Literal, 10, 64)
	if err != nil {
		p.addError(fmt.Sprintf("invalid integer literal: %s", p.curToken.Literal), p.curToken.Pos)
		return nil
	}
	lit.Value = val
	return lit
}

func (p *Parser) parseStrLiteral() ast.Expression {
	return &ast.StrLiteral{Token: p.curToken, Value: p.curToken.Literal}
}

func (p *Parser) parseBoolLiteral() ast.Expression {
	return &ast.BoolLiteral{Token: p.curToken, Value: p.curTokenIs(lexer.TRUE)}
}

func (p *Parser) parsePrefixExpr() ast.Expression {
	expr := &ast.UnaryExpr{Token: p.curToken}
	if p.curTokenIs(lexer.BANG) {
		expr.Op = ast.OpNot
	} else {
		expr.Op = ast.OpNeg
	}
	p.nextToken()
	expr.Operand = p.parseExpression(PREFIX)
	return expr
}

func (p *Parser) parseInfixExpr(left ast.Expression) ast.Expression {
	expr := &ast.BinaryExpr{Token: p.curToken, Left: left}
	op, ok := binaryOps[p.curToken.Type]
	if !ok {
		p.addError(fmt.Sprintf("unknown binary operator: %s", p.curToken.Type), p.curToken.Pos)
		return nil
	}
	expr.Op = op

	precedence := p.curPrecedence()
	p.nextToken()
	expr.Right = p.parseExpression(precedence)
	return expr
}

func (p *Parser) parseGroupedExpr() ast.Expression {
	p.nextToken()
	expr := p.parseExpression(LOWEST)
	if !p.expectPeek(lexer.RPAREN) {
		return nil
	}
	return expr
}
