package compiler

import (
	"strconv"
	"strings"

	"github.com/teerjk/VarSifter-sub000/internal/config"
	"github.com/teerjk/VarSifter-sub000/internal/dict"
	vserrors "github.com/teerjk/VarSifter-sub000/internal/errors"
	"github.com/teerjk/VarSifter-sub000/internal/query/parser"
	"github.com/teerjk/VarSifter-sub000/internal/store"
	"github.com/teerjk/VarSifter-sub000/pkg/types"
)

type valueKind int

const (
	kindBool valueKind = iota
	kindNumber
	kindString
	kindCell // a dictionary code read from the store
)

func (k valueKind) String() string {
	switch k {
	case kindBool:
		return "boolean"
	case kindNumber:
		return "number"
	case kindString:
		return "string"
	default:
		return "cell"
	}
}

// operand is a compiled sub-expression. Exactly one reader is set, matching
// kind. Numeric readers report false for missing or non-numeric values.
type operand struct {
	kind valueKind
	test func(row int) bool
	num  func(row int) (float64, bool)
	text func(row int) string
	code func(row int) int32
	tbl  dict.Table

	lit interface{} // literal value, when the operand is a constant
}

func boolOperand(fn func(row int) bool) operand { return operand{kind: kindBool, test: fn} }

func numberOperand(fn func(row int) (float64, bool)) operand {
	return operand{kind: kindNumber, num: fn}
}

func (o operand) literalString() (string, bool) {
	s, ok := o.lit.(string)
	return s, ok
}

func (o operand) literalNumber() (float64, bool) {
	f, ok := o.lit.(float64)
	return f, ok
}

// binder resolves names against one store while compiling.
type binder struct {
	st  *store.Store
	cfg *config.Config
}

func newBinder(st *store.Store, cfg *config.Config) *binder {
	return &binder{st: st, cfg: cfg}
}

func compileError(format string, args ...interface{}) error {
	return vserrors.Newf(vserrors.ErrCategoryQuery, vserrors.CodeCompileError, format, args...)
}

func (b *binder) compile(expr parser.Expression) (operand, error) {
	switch e := expr.(type) {
	case *parser.Literal:
		return literalOperand(e), nil
	case *parser.Identifier:
		return b.identifier(e)
	case *parser.ParenExpr:
		return b.compile(e.Expr)
	case *parser.UnaryExpr:
		return b.unary(e)
	case *parser.BinaryExpr:
		return b.binary(e)
	case *parser.FunctionCall:
		return b.call(e)
	case *parser.InExpr:
		return b.in(e)
	case *parser.BetweenExpr:
		return b.between(e)
	case *parser.LikeExpr:
		return b.like(e)
	default:
		return operand{}, compileError("unsupported expression %s", expr)
	}
}

func literalOperand(l *parser.Literal) operand {
	switch v := l.Value.(type) {
	case bool:
		return operand{kind: kindBool, test: func(int) bool { return v }, lit: v}
	case float64:
		return operand{kind: kindNumber, num: func(int) (float64, bool) { return v, true }, lit: v}
	default:
		s, _ := v.(string)
		return operand{kind: kindString, text: func(int) string { return s }, lit: s}
	}
}

// predicate returns op as a row test. Numbers are true when present and
// non-zero.
func (b *binder) predicate(op operand, src parser.Expression) (func(row int) bool, error) {
	switch op.kind {
	case kindBool:
		return op.test, nil
	case kindNumber:
		num := op.num
		return func(row int) bool {
			v, ok := num(row)
			return ok && v != 0
		}, nil
	default:
		return nil, compileError("%s is a %s, not a condition", src, op.kind)
	}
}

// number returns a numeric reader for op. Cells use the dictionary's
// numeric view; strings are parsed per row.
func (b *binder) number(op operand, src parser.Expression) (func(row int) (float64, bool), error) {
	switch op.kind {
	case kindNumber:
		return op.num, nil
	case kindCell:
		code, tbl := op.code, op.tbl
		return func(row int) (float64, bool) { return tbl.Numeric(code(row)) }, nil
	case kindString:
		if s, ok := op.literalString(); ok {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			return func(int) (float64, bool) { return v, err == nil }, nil
		}
		text := op.text
		return func(row int) (float64, bool) {
			v, err := strconv.ParseFloat(text(row), 64)
			return v, err == nil
		}, nil
	default:
		return nil, compileError("%s is a %s, not a number", src, op.kind)
	}
}

// textOf returns a string reader for op. Cells decode through their
// dictionary.
func (b *binder) textOf(op operand, src parser.Expression) (func(row int) string, error) {
	switch op.kind {
	case kindString:
		return op.text, nil
	case kindCell:
		code, tbl := op.code, op.tbl
		return func(row int) string { return tbl.ValueOf(code(row)) }, nil
	case kindNumber:
		num := op.num
		return func(row int) string {
			v, ok := num(row)
			if !ok {
				return ""
			}
			return strconv.FormatFloat(v, 'g', -1, 64)
		}, nil
	default:
		return nil, compileError("%s is a %s, not a value", src, op.kind)
	}
}

// genotypeConstants are the per-row decoded genotypes built from the row's
// reference and variant alleles. They shadow columns of the same name.
var genotypeConstants = map[string]func(ref, alt string) string{
	"homRef": func(ref, _ string) string { return types.FormatGenotype(ref, ref) },
	"homVar": func(_, alt string) string { return types.FormatGenotype(alt, alt) },
	"het":    func(ref, alt string) string { return types.FormatGenotype(ref, alt) },
	"hemRef": func(ref, _ string) string { return ref },
	"hemVar": func(_, alt string) string { return alt },
}

func (b *binder) identifier(id *parser.Identifier) (operand, error) {
	if build, ok := genotypeConstants[id.Name]; ok {
		refCol, altCol, err := b.alleleColumns(id.Name)
		if err != nil {
			return operand{}, err
		}
		st := b.st
		return operand{kind: kindString, text: func(row int) string {
			return build(st.DecodeAnnotation(row, refCol), st.DecodeAnnotation(row, altCol))
		}}, nil
	}
	return b.column(id.Name)
}

// alleleColumns resolves the reference and variant allele columns that
// genotype classification depends on.
func (b *binder) alleleColumns(user string) (refCol, altCol int, err error) {
	refCol = b.st.ColumnIndex(b.cfg.Columns.RefAllele)
	altCol = b.st.ColumnIndex(b.cfg.Columns.VarAllele)
	if refCol < 0 || altCol < 0 {
		return 0, 0, compileError("%s needs the %q and %q columns",
			user, b.cfg.Columns.RefAllele, b.cfg.Columns.VarAllele)
	}
	return refCol, altCol, nil
}

func (b *binder) column(name string) (operand, error) {
	col := b.st.ColumnIndex(name)
	if col < 0 {
		return operand{}, vserrors.Newf(vserrors.ErrCategoryQuery, vserrors.CodeUnknownColumn,
			"unknown column %q", name)
	}
	return b.columnAt(col), nil
}

func (b *binder) columnAt(col int) operand {
	st := b.st
	return operand{
		kind: kindCell,
		code: func(row int) int32 { return st.Annotation(row, col) },
		tbl:  st.ColumnDict(col),
	}
}

func (b *binder) sampleCell(smp, field int) operand {
	st := b.st
	return operand{
		kind: kindCell,
		code: func(row int) int32 { return st.Sample(row, smp, field) },
		tbl:  st.FieldDict(field),
	}
}

func (b *binder) unary(u *parser.UnaryExpr) (operand, error) {
	inner, err := b.compile(u.Operand)
	if err != nil {
		return operand{}, err
	}
	switch u.Operator {
	case "NOT":
		test, err := b.predicate(inner, u.Operand)
		if err != nil {
			return operand{}, err
		}
		return boolOperand(func(row int) bool { return !test(row) }), nil
	case "-":
		if v, ok := inner.literalNumber(); ok {
			return literalOperand(&parser.Literal{Value: -v}), nil
		}
		num, err := b.number(inner, u.Operand)
		if err != nil {
			return operand{}, err
		}
		return numberOperand(func(row int) (float64, bool) {
			v, ok := num(row)
			return -v, ok
		}), nil
	default:
		return operand{}, compileError("unsupported operator %s", u.Operator)
	}
}

func (b *binder) binary(e *parser.BinaryExpr) (operand, error) {
	left, err := b.compile(e.Left)
	if err != nil {
		return operand{}, err
	}
	right, err := b.compile(e.Right)
	if err != nil {
		return operand{}, err
	}

	switch e.Operator {
	case "AND", "OR":
		l, err := b.predicate(left, e.Left)
		if err != nil {
			return operand{}, err
		}
		r, err := b.predicate(right, e.Right)
		if err != nil {
			return operand{}, err
		}
		if e.Operator == "AND" {
			return boolOperand(func(row int) bool { return l(row) && r(row) }), nil
		}
		return boolOperand(func(row int) bool { return l(row) || r(row) }), nil
	case "+", "-", "*", "/":
		return b.arithmetic(e, left, right)
	default:
		return b.compare(e.Operator, left, right, e)
	}
}

func (b *binder) arithmetic(e *parser.BinaryExpr, left, right operand) (operand, error) {
	l, err := b.number(left, e.Left)
	if err != nil {
		return operand{}, err
	}
	r, err := b.number(right, e.Right)
	if err != nil {
		return operand{}, err
	}

	var apply func(x, y float64) (float64, bool)
	switch e.Operator {
	case "+":
		apply = func(x, y float64) (float64, bool) { return x + y, true }
	case "-":
		apply = func(x, y float64) (float64, bool) { return x - y, true }
	case "*":
		apply = func(x, y float64) (float64, bool) { return x * y, true }
	default:
		// division by zero yields a missing value rather than Inf
		apply = func(x, y float64) (float64, bool) { return x / y, y != 0 }
	}
	return numberOperand(func(row int) (float64, bool) {
		x, ok := l(row)
		if !ok {
			return 0, false
		}
		y, ok := r(row)
		if !ok {
			return 0, false
		}
		return apply(x, y)
	}), nil
}
