package compiler

import (
	"math"
	"strings"

	"github.com/teerjk/VarSifter-sub000/internal/dict"
	vserrors "github.com/teerjk/VarSifter-sub000/internal/errors"
	"github.com/teerjk/VarSifter-sub000/internal/query/parser"
	"github.com/teerjk/VarSifter-sub000/internal/store"
	"github.com/teerjk/VarSifter-sub000/pkg/types"
)

func (b *binder) call(f *parser.FunctionCall) (operand, error) {
	switch strings.ToLower(f.Name) {
	case "col":
		if err := arity(f, 1); err != nil {
			return operand{}, err
		}
		return b.colCall(f.Args[0])
	case "gt":
		if err := arity(f, 1); err != nil {
			return operand{}, err
		}
		smp, err := b.sampleArg(f.Args[0])
		if err != nil {
			return operand{}, err
		}
		return b.sampleCell(smp, store.GenotypeField), nil
	case "field":
		if err := arity(f, 2); err != nil {
			return operand{}, err
		}
		smp, err := b.sampleArg(f.Args[0])
		if err != nil {
			return operand{}, err
		}
		field, err := b.fieldArg(f.Args[1])
		if err != nil {
			return operand{}, err
		}
		return b.sampleCell(smp, field), nil
	case "ishet":
		if err := arity(f, 1); err != nil {
			return operand{}, err
		}
		return b.genotypeTest(f, func(z types.Zygosity) bool { return z == types.ZygHet })
	case "ishom":
		if err := arity(f, 1); err != nil {
			return operand{}, err
		}
		return b.genotypeTest(f, func(z types.Zygosity) bool { return z == types.ZygHomRef || z == types.ZygHomVar })
	case "has":
		if err := arity(f, 2); err != nil {
			return operand{}, err
		}
		return b.has(f.Args[0], f.Args[1])
	default:
		return operand{}, compileError("unknown function %s", f.Name)
	}
}

func arity(f *parser.FunctionCall, n int) error {
	if len(f.Args) != n {
		return compileError("%s takes %d argument(s), got %d", f.Name, n, len(f.Args))
	}
	return nil
}

// constant compiles arg and requires a string or whole-number literal.
func (b *binder) constant(arg parser.Expression) (name string, index int, isIndex bool, err error) {
	op, err := b.compile(arg)
	if err != nil {
		return "", 0, false, err
	}
	if s, ok := op.literalString(); ok {
		return s, 0, false, nil
	}
	if v, ok := op.literalNumber(); ok && v == math.Trunc(v) {
		return "", int(v), true, nil
	}
	return "", 0, false, compileError("%s must be a name or an index", arg)
}

func (b *binder) colCall(arg parser.Expression) (operand, error) {
	// a bare identifier names the column directly: col(Gene_name)
	if id, ok := arg.(*parser.Identifier); ok {
		return b.column(id.Name)
	}
	name, idx, isIndex, err := b.constant(arg)
	if err != nil {
		return operand{}, err
	}
	if !isIndex {
		return b.column(name)
	}
	if idx < 0 || idx >= b.st.NumColumns() {
		return operand{}, vserrors.Newf(vserrors.ErrCategoryQuery, vserrors.CodeUnknownColumn,
			"column index %d out of range [0,%d)", idx, b.st.NumColumns())
	}
	return b.columnAt(idx), nil
}

func (b *binder) sampleArg(arg parser.Expression) (int, error) {
	var name string
	var idx int
	var isIndex bool
	if id, ok := arg.(*parser.Identifier); ok {
		name = id.Name
	} else {
		var err error
		if name, idx, isIndex, err = b.constant(arg); err != nil {
			return 0, err
		}
	}
	n := len(b.st.Samples())
	if isIndex {
		if idx < 0 || idx >= n {
			return 0, vserrors.Newf(vserrors.ErrCategoryQuery, vserrors.CodeUnknownSample,
				"sample index %d out of range [0,%d)", idx, n)
		}
		return idx, nil
	}
	smp := b.st.SampleIndex(name)
	if smp < 0 {
		return 0, vserrors.Newf(vserrors.ErrCategoryQuery, vserrors.CodeUnknownSample, "unknown sample %q", name)
	}
	return smp, nil
}

func (b *binder) fieldArg(arg parser.Expression) (int, error) {
	name, _, isIndex, err := b.constant(arg)
	if err != nil {
		return 0, err
	}
	if isIndex {
		return 0, compileError("sample field %s must be named", arg)
	}
	field := b.st.SampleFieldIndex(name)
	if field < 0 {
		return 0, vserrors.Newf(vserrors.ErrCategoryQuery, vserrors.CodeUnknownColumn, "unknown sample field %q", name)
	}
	return field, nil
}

type zygKey struct{ gt, ref, alt int32 }

// genotypeTest classifies the genotype argument of f against the row's
// reference and variant alleles and applies test to the zygosity.
// Genotype cells are classified once per distinct (genotype, ref, variant)
// code triple.
func (b *binder) genotypeTest(f *parser.FunctionCall, test func(types.Zygosity) bool) (operand, error) {
	arg := f.Args[0]
	g, err := b.compile(arg)
	if err != nil {
		return operand{}, err
	}
	refCol, altCol, err := b.alleleColumns(f.Name)
	if err != nil {
		return operand{}, err
	}
	st := b.st
	refs, alts := st.ColumnDict(refCol), st.ColumnDict(altCol)

	if g.kind == kindCell {
		code, tbl := g.code, g.tbl
		seen := make(map[zygKey]bool)
		return boolOperand(func(row int) bool {
			k := zygKey{gt: code(row), ref: st.Annotation(row, refCol), alt: st.Annotation(row, altCol)}
			if v, ok := seen[k]; ok {
				return v
			}
			v := test(types.ClassifyGenotype(tbl.ValueOf(k.gt), refs.ValueOf(k.ref), alts.ValueOf(k.alt)))
			seen[k] = v
			return v
		}), nil
	}
	text, err := b.textOf(g, arg)
	if err != nil {
		return operand{}, err
	}
	return boolOperand(func(row int) bool {
		ref := refs.ValueOf(st.Annotation(row, refCol))
		alt := alts.ValueOf(st.Annotation(row, altCol))
		return test(types.ClassifyGenotype(text(row), ref, alt))
	}), nil
}

// has reports whether a multi-valued cell carries token. On other columns
// it is plain equality.
func (b *binder) has(colArg, tokenArg parser.Expression) (operand, error) {
	col, err := b.compile(colArg)
	if err != nil {
		return operand{}, err
	}
	if col.kind != kindCell {
		return operand{}, compileError("has() needs a column, got %s", colArg)
	}
	tok, err := b.compile(tokenArg)
	if err != nil {
		return operand{}, err
	}
	token, ok := tok.literalString()
	if !ok {
		return operand{}, compileError("has() token %s must be a string constant", tokenArg)
	}

	code := col.code
	if mt, ok := col.tbl.(*dict.MultiTable); ok {
		bit, found := mt.TokenBit(token)
		if !found {
			return boolOperand(func(int) bool { return false }), nil
		}
		return boolOperand(func(row int) bool { return code(row)&bit != 0 }), nil
	}
	want, found := col.tbl.CodeOf(token)
	if !found {
		return boolOperand(func(int) bool { return false }), nil
	}
	return boolOperand(func(row int) bool { return code(row) == want }), nil
}
