package compiler

import (
	"strconv"
	"strings"

	"github.com/teerjk/VarSifter-sub000/internal/query/parser"
)

// ordered maps a three-way comparison result through op.
func ordered(op string, c int) bool {
	switch op {
	case "=":
		return c == 0
	case "<>":
		return c != 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	default:
		return c >= 0
	}
}

func cmpFloat(x, y float64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

func isEquality(op string) bool { return op == "=" || op == "<>" }

func mirror(op string) string {
	switch op {
	case "<":
		return ">"
	case "<=":
		return ">="
	case ">":
		return "<"
	case ">=":
		return "<="
	default:
		return op
	}
}

// compare compiles left op right. Booleans only support equality. A number
// on either side makes the comparison numeric. A cell compared for equality
// with a string constant compares dictionary codes; other orderings use the
// numeric view when both sides have one and fall back to text.
func (b *binder) compare(op string, left, right operand, src *parser.BinaryExpr) (operand, error) {
	switch op {
	case "=", "<>", "<", "<=", ">", ">=":
	default:
		return operand{}, compileError("unsupported operator %s", op)
	}

	if left.kind == kindBool || right.kind == kindBool {
		if left.kind != right.kind || !isEquality(op) {
			return operand{}, compileError("cannot apply %s to %s and %s", op, left.kind, right.kind)
		}
		l, r := left.test, right.test
		return boolOperand(func(row int) bool { return (l(row) == r(row)) == (op == "=") }), nil
	}

	if left.kind == kindNumber || right.kind == kindNumber {
		l, err := b.number(left, src.Left)
		if err != nil {
			return operand{}, err
		}
		r, err := b.number(right, src.Right)
		if err != nil {
			return operand{}, err
		}
		return boolOperand(func(row int) bool {
			x, ok := l(row)
			if !ok {
				return false
			}
			y, ok := r(row)
			return ok && ordered(op, cmpFloat(x, y))
		}), nil
	}

	// keep a cell on the left
	if right.kind == kindCell && left.kind != kindCell {
		left, right = right, left
		src = &parser.BinaryExpr{Left: src.Right, Operator: mirror(op), Right: src.Left}
		op = mirror(op)
	}

	if left.kind == kindCell && isEquality(op) {
		if s, ok := right.literalString(); ok {
			want, found := left.tbl.CodeOf(s)
			code := left.code
			eq := op == "="
			if !found {
				return boolOperand(func(int) bool { return !eq }), nil
			}
			return boolOperand(func(row int) bool { return (code(row) == want) == eq }), nil
		}
		if right.kind == kindCell && right.tbl == left.tbl {
			l, r := left.code, right.code
			eq := op == "="
			return boolOperand(func(row int) bool { return (l(row) == r(row)) == eq }), nil
		}
	}

	lt, err := b.textOf(left, src.Left)
	if err != nil {
		return operand{}, err
	}
	rt, err := b.textOf(right, src.Right)
	if err != nil {
		return operand{}, err
	}
	if isEquality(op) {
		eq := op == "="
		return boolOperand(func(row int) bool { return (lt(row) == rt(row)) == eq }), nil
	}

	ln, _ := b.number(left, src.Left)
	rn, _ := b.number(right, src.Right)
	return boolOperand(func(row int) bool {
		if x, ok := ln(row); ok {
			if y, ok := rn(row); ok {
				return ordered(op, cmpFloat(x, y))
			}
		}
		return ordered(op, strings.Compare(lt(row), rt(row)))
	}), nil
}

func (b *binder) between(e *parser.BetweenExpr) (operand, error) {
	x, err := b.compile(e.Expr)
	if err != nil {
		return operand{}, err
	}
	low, err := b.compile(e.Low)
	if err != nil {
		return operand{}, err
	}
	high, err := b.compile(e.High)
	if err != nil {
		return operand{}, err
	}

	lower, err := b.compare(">=", x, low, &parser.BinaryExpr{Left: e.Expr, Operator: ">=", Right: e.Low})
	if err != nil {
		return operand{}, err
	}
	upper, err := b.compare("<=", x, high, &parser.BinaryExpr{Left: e.Expr, Operator: "<=", Right: e.High})
	if err != nil {
		return operand{}, err
	}
	lo, hi, not := lower.test, upper.test, e.Not
	return boolOperand(func(row int) bool { return (lo(row) && hi(row)) != not }), nil
}

// in compiles x IN (...). Every list entry must be a constant. Against a
// cell the string entries become a code set fixed at compile time.
func (b *binder) in(e *parser.InExpr) (operand, error) {
	x, err := b.compile(e.Expr)
	if err != nil {
		return operand{}, err
	}
	var strs []string
	var nums []float64
	for _, v := range e.Values {
		op, err := b.compile(v)
		if err != nil {
			return operand{}, err
		}
		if s, ok := op.literalString(); ok {
			strs = append(strs, s)
		} else if f, ok := op.literalNumber(); ok {
			nums = append(nums, f)
		} else {
			return operand{}, compileError("IN list entry %s is not a constant", v)
		}
	}

	not := e.Not
	numSet := make(map[float64]bool, len(nums))
	for _, f := range nums {
		numSet[f] = true
	}

	switch x.kind {
	case kindCell:
		codes := newCodeSet()
		for _, s := range strs {
			if code, ok := x.tbl.CodeOf(s); ok {
				codes.add(code)
			}
		}
		code, tbl := x.code, x.tbl
		return boolOperand(func(row int) bool {
			c := code(row)
			hit := codes.has(c)
			if !hit && len(numSet) > 0 {
				v, ok := tbl.Numeric(c)
				hit = ok && numSet[v]
			}
			return hit != not
		}), nil
	case kindNumber:
		for _, s := range strs {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				numSet[f] = true
			}
		}
		num := x.num
		return boolOperand(func(row int) bool {
			v, ok := num(row)
			return (ok && numSet[v]) != not
		}), nil
	case kindString:
		textSet := make(map[string]bool, len(strs)+len(nums))
		for _, s := range strs {
			textSet[s] = true
		}
		for _, f := range nums {
			textSet[strconv.FormatFloat(f, 'g', -1, 64)] = true
		}
		text := x.text
		return boolOperand(func(row int) bool { return textSet[text(row)] != not }), nil
	default:
		return operand{}, compileError("%s is a %s and cannot be used with IN", e.Expr, x.kind)
	}
}

// like compiles x LIKE 'pattern'. Cells are matched once per distinct code.
func (b *binder) like(e *parser.LikeExpr) (operand, error) {
	x, err := b.compile(e.Expr)
	if err != nil {
		return operand{}, err
	}
	p, err := b.compile(e.Pattern)
	if err != nil {
		return operand{}, err
	}
	pattern, ok := p.literalString()
	if !ok {
		return operand{}, compileError("LIKE pattern %s must be a string constant", e.Pattern)
	}
	re, err := likePattern(pattern)
	if err != nil {
		return operand{}, compileError("invalid LIKE pattern %q: %v", pattern, err)
	}

	not := e.Not
	if x.kind == kindCell {
		match := matchCodes(x.tbl, re.MatchString)
		code := x.code
		return boolOperand(func(row int) bool { return match(code(row)) != not }), nil
	}
	text, err := b.textOf(x, e.Expr)
	if err != nil {
		return operand{}, err
	}
	return boolOperand(func(row int) bool { return re.MatchString(text(row)) != not }), nil
}
