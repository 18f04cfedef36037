// Package parser parses row predicate expressions into an AST.
//
// The language is a closed boolean expression grammar: column references,
// literals, comparisons, arithmetic, IN, BETWEEN, LIKE and calls to a fixed
// set of helper functions. Keywords are case-insensitive; the symbolic forms
// &&, || and ! are accepted alongside AND, OR and NOT.
package parser

import (
	"fmt"
	"strings"
	"unicode"
)

// TokenType represents the type of a lexical token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError
	TokenIdent
	TokenNumber
	TokenString

	// Keywords
	TokenAnd
	TokenOr
	TokenNot
	TokenIn
	TokenBetween
	TokenLike
	TokenTrue
	TokenFalse

	// Operators
	TokenEq     // = or ==
	TokenNe     // <> or !=
	TokenLt     // <
	TokenGt     // >
	TokenLe     // <=
	TokenGe     // >=
	TokenPlus   // +
	TokenMinus  // -
	TokenStar   // *
	TokenSlash  // /
	TokenComma  // ,
	TokenLParen // (
	TokenRParen // )
)

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string
	Pos     int // Position in input
}

// String returns a string representation of the token.
func (t Token) String() string {
	return fmt.Sprintf("Token{%s, %q, %d}", t.Type.String(), t.Literal, t.Pos)
}

var tokenNames = map[TokenType]string{
	TokenEOF:     "EOF",
	TokenError:   "ERROR",
	TokenIdent:   "IDENT",
	TokenNumber:  "NUMBER",
	TokenString:  "STRING",
	TokenAnd:     "AND",
	TokenOr:      "OR",
	TokenNot:     "NOT",
	TokenIn:      "IN",
	TokenBetween: "BETWEEN",
	TokenLike:    "LIKE",
	TokenTrue:    "TRUE",
	TokenFalse:   "FALSE",
	TokenEq:      "=",
	TokenNe:      "<>",
	TokenLt:      "<",
	TokenGt:      ">",
	TokenLe:      "<=",
	TokenGe:      ">=",
	TokenPlus:    "+",
	TokenMinus:   "-",
	TokenStar:    "*",
	TokenSlash:   "/",
	TokenComma:   ",",
	TokenLParen:  "(",
	TokenRParen:  ")",
}

// String returns the string representation of a TokenType.
func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// keywords maps upper-cased keywords to their token types.
var keywords = map[string]TokenType{
	"AND":     TokenAnd,
	"OR":      TokenOr,
	"NOT":     TokenNot,
	"IN":      TokenIn,
	"BETWEEN": TokenBetween,
	"LIKE":    TokenLike,
	"TRUE":    TokenTrue,
	"FALSE":   TokenFalse,
}

// Lexer tokenizes expression input.
type Lexer struct {
	input   string
	pos     int  // Current position in input
	readPos int  // Reading position (after current char)
	ch      byte // Current character
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

// two consumes a second character when it matches next and returns the
// matching token type.
func (l *Lexer) two(next byte, pair, single TokenType) (TokenType, string) {
	if l.peekChar() == next {
		first := l.ch
		l.readChar()
		return pair, string([]byte{first, next})
	}
	return single, string(l.ch)
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	start := l.pos
	tok := Token{Pos: start}

	switch l.ch {
	case '=':
		tok.Type, tok.Literal = l.two('=', TokenEq, TokenEq)
	case '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			tok.Type, tok.Literal = TokenLe, "<="
		case '>':
			l.readChar()
			tok.Type, tok.Literal = TokenNe, "<>"
		default:
			tok.Type, tok.Literal = TokenLt, "<"
		}
	case '>':
		tok.Type, tok.Literal = l.two('=', TokenGe, TokenGt)
	case '!':
		tok.Type, tok.Literal = l.two('=', TokenNe, TokenNot)
	case '&':
		tok.Type, tok.Literal = l.two('&', TokenAnd, TokenError)
	case '|':
		tok.Type, tok.Literal = l.two('|', TokenOr, TokenError)
	case '+':
		tok.Type, tok.Literal = TokenPlus, "+"
	case '-':
		tok.Type, tok.Literal = TokenMinus, "-"
	case '*':
		tok.Type, tok.Literal = TokenStar, "*"
	case '/':
		tok.Type, tok.Literal = TokenSlash, "/"
	case ',':
		tok.Type, tok.Literal = TokenComma, ","
	case '(':
		tok.Type, tok.Literal = TokenLParen, "("
	case ')':
		tok.Type, tok.Literal = TokenRParen, ")"
	case '\'', '"':
		tok = l.readString(l.ch)
	case 0:
		tok.Type = TokenEOF
	default:
		switch {
		case isLetter(l.ch) || l.ch == '_':
			return l.readIdentifier()
		case isDigit(l.ch) || (l.ch == '.' && isDigit(l.peekChar())):
			return l.readNumber()
		default:
			tok.Type, tok.Literal = TokenError, string(l.ch)
		}
	}

	l.readChar()
	return tok
}

// readIdentifier reads an identifier or keyword.
func (l *Lexer) readIdentifier() Token {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' || l.ch == '.' {
		l.readChar()
	}
	literal := l.input[start:l.pos]

	if tokType, ok := keywords[strings.ToUpper(literal)]; ok {
		return Token{Type: tokType, Literal: strings.ToUpper(literal), Pos: start}
	}
	return Token{Type: TokenIdent, Literal: literal, Pos: start}
}

// readNumber reads a decimal literal with an optional exponent.
func (l *Lexer) readNumber() Token {
	start := l.pos
	hasDecimal := false
	for isDigit(l.ch) || (l.ch == '.' && !hasDecimal) {
		if l.ch == '.' {
			hasDecimal = true
		}
		l.readChar()
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			l.readChar()
			l.readChar()
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
	return Token{Type: TokenNumber, Literal: l.input[start:l.pos], Pos: start}
}

// readString reads a literal enclosed in quote; a doubled quote is an
// escaped quote. The closing quote is consumed by NextToken.
func (l *Lexer) readString(quote byte) Token {
	start := l.pos
	l.readChar() // opening quote

	var sb strings.Builder
	for {
		switch {
		case l.ch == 0:
			return Token{Type: TokenError, Literal: "unterminated string", Pos: start}
		case l.ch == quote && l.peekChar() == quote:
			sb.WriteByte(quote)
			l.readChar()
		case l.ch == quote:
			return Token{Type: TokenString, Literal: sb.String(), Pos: start}
		default:
			sb.WriteByte(l.ch)
		}
		l.readChar()
	}
}

// Tokenize returns all tokens from the input, ending at EOF or the first error.
func (l *Lexer) Tokenize() []Token {
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			break
		}
	}
	return tokens
}

func isLetter(ch byte) bool {
	return ch < 0x80 && unicode.IsLetter(rune(ch))
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
