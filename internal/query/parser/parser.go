package parser

import (
	"fmt"
	"strconv"
)

// ParseError represents a parsing error with location information.
type ParseError struct {
	Message  string
	Position int
	Token    Token
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at position %d: %s (got %q)", e.Position, e.Message, e.Token.Literal)
}

// Parser parses a predicate expression into an AST.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
}

// NewParser creates a new Parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	// Read two tokens to initialize curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses input as a single expression. Trailing input is an error.
func Parse(input string) (Expression, error) {
	p := NewParser(input)
	if p.curTokenIs(TokenEOF) {
		return nil, p.errorf("empty expression")
	}
	expr, err := p.parseExpression(precLowest)
	if err != nil {
		return nil, err
	}
	if !p.curTokenIs(TokenEOF) {
		return nil, p.errorf("unexpected token after expression")
	}
	return expr, nil
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) errorf(format string, args ...interface{}) *ParseError {
	msg := fmt.Sprintf(format, args...)
	if p.curTokenIs(TokenError) {
		msg = "invalid input"
		if p.curToken.Literal == "unterminated string" {
			msg = p.curToken.Literal
		}
	}
	return &ParseError{Message: msg, Position: p.curToken.Pos, Token: p.curToken}
}

// expect consumes the current token if it has type t.
func (p *Parser) expect(t TokenType, context string) error {
	if !p.curTokenIs(t) {
		return p.errorf("expected %s %s", t, context)
	}
	p.nextToken()
	return nil
}

// Operator precedence levels
const (
	precLowest  = 0
	precOr      = 1
	precAnd     = 2
	precNot     = 3
	precCompare = 4
	precAdd     = 5
	precMul     = 6
	precUnary   = 7
)

// getPrecedence returns the infix precedence of the current token.
func (p *Parser) getPrecedence() int {
	switch p.curToken.Type {
	case TokenOr:
		return precOr
	case TokenAnd:
		return precAnd
	case TokenEq, TokenNe, TokenLt, TokenGt, TokenLe, TokenGe, TokenLike, TokenIn, TokenBetween:
		return precCompare
	case TokenNot:
		// only as NOT IN / NOT LIKE / NOT BETWEEN
		switch p.peekToken.Type {
		case TokenIn, TokenLike, TokenBetween:
			return precCompare
		}
		return precLowest
	case TokenPlus, TokenMinus:
		return precAdd
	case TokenStar, TokenSlash:
		return precMul
	default:
		return precLowest
	}
}

// parseExpression parses an expression with operator precedence.
func (p *Parser) parseExpression(precedence int) (Expression, error) {
	left, err := p.parsePrefixExpression()
	if err != nil {
		return nil, err
	}

	for !p.curTokenIs(TokenEOF) && precedence < p.getPrecedence() {
		left, err = p.parseInfixExpression(left)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (p *Parser) parsePrefixExpression() (Expression, error) {
	switch p.curToken.Type {
	case TokenIdent:
		return p.parseIdentifierOrFunction()
	case TokenNumber:
		return p.parseNumber()
	case TokenString:
		lit := &Literal{Value: p.curToken.Literal}
		p.nextToken()
		return lit, nil
	case TokenTrue, TokenFalse:
		lit := &Literal{Value: p.curTokenIs(TokenTrue)}
		p.nextToken()
		return lit, nil
	case TokenLParen:
		return p.parseGroupedExpression()
	case TokenNot:
		p.nextToken()
		operand, err := p.parseExpression(precNot)
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Operator: "NOT", Operand: operand}, nil
	case TokenMinus:
		p.nextToken()
		operand, err := p.parseExpression(precUnary)
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Operator: "-", Operand: operand}, nil
	default:
		return nil, p.errorf("unexpected token in expression")
	}
}

func (p *Parser) parseIdentifierOrFunction() (Expression, error) {
	name, pos := p.curToken.Literal, p.curToken.Pos
	p.nextToken()
	if !p.curTokenIs(TokenLParen) {
		return &Identifier{Name: name, Pos: pos}, nil
	}
	p.nextToken() // Skip (

	var args []Expression
	if !p.curTokenIs(TokenRParen) {
		for {
			arg, err := p.parseExpression(precLowest)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if !p.curTokenIs(TokenComma) {
				break
			}
			p.nextToken()
		}
	}
	if err := p.expect(TokenRParen, "after function arguments"); err != nil {
		return nil, err
	}
	return &FunctionCall{Name: name, Args: args, Pos: pos}, nil
}

func (p *Parser) parseNumber() (Expression, error) {
	val, err := strconv.ParseFloat(p.curToken.Literal, 64)
	if err != nil {
		return nil, p.errorf("invalid number")
	}
	p.nextToken()
	return &Literal{Value: val}, nil
}

func (p *Parser) parseGroupedExpression() (Expression, error) {
	p.nextToken() // Skip (
	expr, err := p.parseExpression(precLowest)
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenRParen, "to close group"); err != nil {
		return nil, err
	}
	return &ParenExpr{Expr: expr}, nil
}

func (p *Parser) parseInfixExpression(left Expression) (Expression, error) {
	switch p.curToken.Type {
	case TokenAnd, TokenOr, TokenEq, TokenNe, TokenLt, TokenGt, TokenLe, TokenGe,
		TokenPlus, TokenMinus, TokenStar, TokenSlash:
		return p.parseBinaryExpression(left)
	case TokenLike:
		return p.parseLikeExpression(left, false)
	case TokenIn:
		return p.parseInExpression(left, false)
	case TokenBetween:
		return p.parseBetweenExpression(left, false)
	case TokenNot:
		p.nextToken() // Skip NOT
		switch p.curToken.Type {
		case TokenIn:
			return p.parseInExpression(left, true)
		case TokenLike:
			return p.parseLikeExpression(left, true)
		default:
			return p.parseBetweenExpression(left, true)
		}
	default:
		return left, nil
	}
}

func (p *Parser) parseBinaryExpression(left Expression) (Expression, error) {
	op := p.curToken.Type.String()
	precedence := p.getPrecedence()
	p.nextToken()

	right, err := p.parseExpression(precedence)
	if err != nil {
		return nil, err
	}
	return &BinaryExpr{Left: left, Operator: op, Right: right}, nil
}

func (p *Parser) parseLikeExpression(left Expression, not bool) (Expression, error) {
	p.nextToken() // Skip LIKE
	pattern, err := p.parseExpression(precCompare)
	if err != nil {
		return nil, err
	}
	return &LikeExpr{Expr: left, Pattern: pattern, Not: not}, nil
}

func (p *Parser) parseInExpression(left Expression, not bool) (Expression, error) {
	p.nextToken() // Skip IN
	if err := p.expect(TokenLParen, "after IN"); err != nil {
		return nil, err
	}

	var values []Expression
	for {
		val, err := p.parseExpression(precLowest)
		if err != nil {
			return nil, err
		}
		values = append(values, val)
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	if err := p.expect(TokenRParen, "after IN values"); err != nil {
		return nil, err
	}
	return &InExpr{Expr: left, Values: values, Not: not}, nil
}

func (p *Parser) parseBetweenExpression(left Expression, not bool) (Expression, error) {
	p.nextToken() // Skip BETWEEN
	low, err := p.parseExpression(precCompare)
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenAnd, "in BETWEEN expression"); err != nil {
		return nil, err
	}
	high, err := p.parseExpression(precCompare)
	if err != nil {
		return nil, err
	}
	return &BetweenExpr{Expr: left, Low: low, High: high, Not: not}, nil
}
