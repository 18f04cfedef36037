package parser

import (
	"testing"
)

func TestLexer(t *testing.T) {
	tests := []struct {
		input    string
		expected []TokenType
	}{
		{
			"type = 'SNP'",
			[]TokenType{TokenIdent, TokenEq, TokenString, TokenEOF},
		},
		{
			"gt('S1') != homRef && qual >= 30",
			[]TokenType{TokenIdent, TokenLParen, TokenString, TokenRParen, TokenNe, TokenIdent, TokenAnd, TokenIdent, TokenGe, TokenNumber, TokenEOF},
		},
		{
			"Chr NOT IN ('1', \"2\") or !flag",
			[]TokenType{TokenIdent, TokenNot, TokenIn, TokenLParen, TokenString, TokenComma, TokenString, TokenRParen, TokenOr, TokenNot, TokenIdent, TokenEOF},
		},
		{
			"a <> .5e-3 || b <= 1",
			[]TokenType{TokenIdent, TokenNe, TokenNumber, TokenOr, TokenIdent, TokenLe, TokenNumber, TokenEOF},
		},
		{
			"a & b",
			[]TokenType{TokenIdent, TokenError},
		},
	}

	for _, tt := range tests {
		lexer := NewLexer(tt.input)
		tokens := lexer.Tokenize()

		if len(tokens) != len(tt.expected) {
			t.Errorf("input %q: expected %d tokens, got %d", tt.input, len(tt.expected), len(tokens))
			continue
		}

		for i, tok := range tokens {
			if tok.Type != tt.expected[i] {
				t.Errorf("input %q: token %d: expected %s, got %s", tt.input, i, tt.expected[i], tok.Type)
			}
		}
	}
}

func TestLexerStrings(t *testing.T) {
	tokens := NewLexer(`'it''s' "say ""hi"""`).Tokenize()
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens, got %d", len(tokens))
	}
	if tokens[0].Literal != "it's" {
		t.Errorf("expected it's, got %q", tokens[0].Literal)
	}
	if tokens[1].Literal != `say "hi"` {
		t.Errorf(`expected say "hi", got %q`, tokens[1].Literal)
	}

	tokens = NewLexer("'open").Tokenize()
	if last := tokens[len(tokens)-1]; last.Type != TokenError || last.Literal != "unterminated string" {
		t.Errorf("expected unterminated string error, got %v", last)
	}
}

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"a = 1", "(a = 1)"},
		{"a == 1", "(a = 1)"},
		{"a != 1", "(a <> 1)"},
		{"a = 1 OR b = 2 AND c = 3", "((a = 1) OR ((b = 2) AND (c = 3)))"},
		{"a = 1 || b = 2 && c = 3", "((a = 1) OR ((b = 2) AND (c = 3)))"},
		{"(a = 1 OR b = 2) AND c = 3", "((((a = 1) OR (b = 2))) AND (c = 3))"},
		{"NOT a = 1 AND b", "(NOT (a = 1) AND b)"},
		{"!flag", "NOT flag"},
		{"a + b * 2 > 10", "((a + (b * 2)) > 10)"},
		{"a - b - c", "((a - b) - c)"},
		{"-a < 3", "(- a < 3)"},
		{"x BETWEEN 1 AND 5 AND y", "(x BETWEEN 1 AND 5 AND y)"},
		{"x NOT BETWEEN 1 AND 5", "x NOT BETWEEN 1 AND 5"},
		{"g IN ('A', 'B')", "g IN ('A', 'B')"},
		{"g NOT IN (1)", "g NOT IN (1)"},
		{"Gene_name LIKE 'BRCA%'", "Gene_name LIKE 'BRCA%'"},
		{"Gene_name NOT LIKE 'BRCA%'", "Gene_name NOT LIKE 'BRCA%'"},
		{"NOT g IN ('A')", "NOT g IN ('A')"},
		{"isHet(gt('S1')) AND TRUE", "(isHet(gt('S1')) AND TRUE)"},
		{"col(3) = 'x'", "(col(3) = 'x')"},
		{"f()", "f()"},
	}

	for _, tt := range tests {
		expr, err := Parse(tt.input)
		if err != nil {
			t.Errorf("input %q: unexpected error: %v", tt.input, err)
			continue
		}
		if got := expr.String(); got != tt.expected {
			t.Errorf("input %q: expected %s, got %s", tt.input, tt.expected, got)
		}
	}
}

func TestParseLiterals(t *testing.T) {
	expr, err := Parse("qual >= 1.5e1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bin, ok := expr.(*BinaryExpr)
	if !ok {
		t.Fatalf("expected BinaryExpr, got %T", expr)
	}
	lit, ok := bin.Right.(*Literal)
	if !ok {
		t.Fatalf("expected Literal, got %T", bin.Right)
	}
	if v, ok := lit.Value.(float64); !ok || v != 15 {
		t.Errorf("expected 15, got %v", lit.Value)
	}
	id, ok := bin.Left.(*Identifier)
	if !ok || id.Name != "qual" || id.Pos != 0 {
		t.Errorf("expected identifier qual at 0, got %v", bin.Left)
	}

	expr, err = Parse("false")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lit, ok := expr.(*Literal); !ok || lit.Value != false {
		t.Errorf("expected FALSE literal, got %v", expr)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"",
		"a =",
		"a = 1)",
		"(a = 1",
		"a IN 1",
		"a IN ()",
		"a BETWEEN 1",
		"f(a,",
		"a = 'open",
		"a & b",
		"a b",
		"= 1",
	}

	for _, input := range tests {
		_, err := Parse(input)
		if err == nil {
			t.Errorf("input %q: expected error", input)
			continue
		}
		if _, ok := err.(*ParseError); !ok {
			t.Errorf("input %q: expected *ParseError, got %T", input, err)
		}
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := Parse("a = 1 b")
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if pe.Position != 6 || pe.Token.Literal != "b" {
		t.Errorf("expected error at b (6), got %d %q", pe.Position, pe.Token.Literal)
	}
}

func TestReferences(t *testing.T) {
	expr, err := Parse("type = 'SNP' AND 30 < qual AND Chr NOT IN ('X') AND (gt('S1') LIKE 'A%' OR isHet(gt('S2')))")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	refs := References(expr)
	expected := []Reference{
		{Column: "type", Operator: "="},
		{Column: "qual", Operator: ">"},
		{Column: "Chr", Operator: "IN", Not: true},
		{Column: "gt('S1')", Operator: "LIKE"},
		{Column: "isHet(gt('S2'))", Operator: "CALL"},
	}
	if len(refs) != len(expected) {
		t.Fatalf("expected %d references, got %d: %v", len(expected), len(refs), refs)
	}
	for i := range refs {
		if refs[i] != expected[i] {
			t.Errorf("reference %d: expected %v, got %v", i, expected[i], refs[i])
		}
	}
}

func TestColumns(t *testing.T) {
	expr, err := Parse("a + b > a AND c BETWEEN low AND 3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cols := Columns(expr)
	expected := []string{"a", "b", "c", "low"}
	if len(cols) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, cols)
	}
	for i := range cols {
		if cols[i] != expected[i] {
			t.Errorf("column %d: expected %s, got %s", i, expected[i], cols[i])
		}
	}
}
