package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// Expression represents an expression in the AST.
type Expression interface {
	expressionNode()
	String() string
}

// BinaryExpr represents a binary operation (e.g., a = b, a AND b, a + b).
// Operator is normalized: && is AND, || is OR, == is =, != is <>.
type BinaryExpr struct {
	Left     Expression
	Operator string
	Right    Expression
}

func (b *BinaryExpr) expressionNode() {}

func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left.String(), b.Operator, b.Right.String())
}

// UnaryExpr represents NOT x or -x.
type UnaryExpr struct {
	Operator string
	Operand  Expression
}

func (u *UnaryExpr) expressionNode() {}

func (u *UnaryExpr) String() string {
	return fmt.Sprintf("%s %s", u.Operator, u.Operand.String())
}

// Identifier is a bare name: an annotation column or a genotype constant.
type Identifier struct {
	Name string
	Pos  int
}

func (i *Identifier) expressionNode() {}

func (i *Identifier) String() string { return i.Name }

// Literal represents a string, number or boolean literal.
type Literal struct {
	Value interface{}
}

func (l *Literal) expressionNode() {}

func (l *Literal) String() string {
	switch v := l.Value.(type) {
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// FunctionCall represents a helper call such as gt('S1') or col(3).
type FunctionCall struct {
	Name string
	Args []Expression
	Pos  int
}

func (f *FunctionCall) expressionNode() {}

func (f *FunctionCall) String() string {
	return fmt.Sprintf("%s(%s)", f.Name, joinExprs(f.Args))
}

// InExpr represents x IN (a, b, c).
type InExpr struct {
	Expr   Expression
	Values []Expression
	Not    bool
}

func (i *InExpr) expressionNode() {}

func (i *InExpr) String() string {
	op := "IN"
	if i.Not {
		op = "NOT IN"
	}
	return fmt.Sprintf("%s %s (%s)", i.Expr.String(), op, joinExprs(i.Values))
}

// BetweenExpr represents x BETWEEN low AND high, inclusive.
type BetweenExpr struct {
	Expr Expression
	Low  Expression
	High Expression
	Not  bool
}

func (b *BetweenExpr) expressionNode() {}

func (b *BetweenExpr) String() string {
	op := "BETWEEN"
	if b.Not {
		op = "NOT BETWEEN"
	}
	return fmt.Sprintf("%s %s %s AND %s", b.Expr.String(), op, b.Low.String(), b.High.String())
}

// LikeExpr represents x LIKE 'pat%'. % matches any run, _ one character.
type LikeExpr struct {
	Expr    Expression
	Pattern Expression
	Not     bool
}

func (l *LikeExpr) expressionNode() {}

func (l *LikeExpr) String() string {
	op := "LIKE"
	if l.Not {
		op = "NOT LIKE"
	}
	return fmt.Sprintf("%s %s %s", l.Expr.String(), op, l.Pattern.String())
}

// ParenExpr represents a parenthesized expression.
type ParenExpr struct {
	Expr Expression
}

func (p *ParenExpr) expressionNode() {}

func (p *ParenExpr) String() string {
	return fmt.Sprintf("(%s)", p.Expr.String())
}

func joinExprs(exprs []Expression) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}
