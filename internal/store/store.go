// Package store implements the columnar variant store: an annotation matrix
// and a sample cube of dictionary codes, the row inclusion mask, and the
// dense output view derived from it.
package store

import (
	"github.com/google/uuid"

	"github.com/teerjk/VarSifter-sub000/internal/dict"
	vserrors "github.com/teerjk/VarSifter-sub000/internal/errors"
	"github.com/teerjk/VarSifter-sub000/internal/mask"
	"github.com/teerjk/VarSifter-sub000/pkg/types"
)

// Store holds the rows of one load (or of a subset of one). Row data is
// immutable after construction; only the mask and view change.
//
// A Store is driven by one caller at a time.
type Store struct {
	id     uuid.UUID
	parent *Store
	schema *Schema

	rows     int
	nCols    int
	nSamples int
	nFields  int

	// annot is row-major: annot[row*nCols+col]
	annot []int32
	// cube is indexed (row*nSamples+sample)*nFields+field
	cube []int32

	mask *mask.Mask
	view *View
}

func newStore(schema *Schema, parent *Store, rows int, annot, cube []int32) *Store {
	s := &Store{
		id:       uuid.New(),
		parent:   parent,
		schema:   schema,
		rows:     rows,
		nCols:    len(schema.columns),
		nSamples: len(schema.samples),
		nFields:  len(schema.fields),
		annot:    annot,
		cube:     cube,
	}
	s.mask = mask.All(rows)
	s.view = buildView(s, s.mask)
	return s
}

// ID returns the store's identity.
func (s *Store) ID() uuid.UUID { return s.id }

// Parent returns the store this one was derived from, or nil.
func (s *Store) Parent() *Store { return s.parent }

// ParentID returns the parent's identity, or uuid.Nil for a root store.
func (s *Store) ParentID() uuid.UUID {
	if s.parent == nil {
		return uuid.Nil
	}
	return s.parent.id
}

// Schema returns the shared dictionary arena.
func (s *Store) Schema() *Schema { return s.schema }

func (s *Store) NumRows() int                   { return s.rows }
func (s *Store) NumColumns() int                { return s.nCols }
func (s *Store) Columns() []types.ColumnDef     { return s.schema.columns }
func (s *Store) Samples() []types.SampleDef     { return s.schema.samples }
func (s *Store) SampleFields() []types.FieldDef { return s.schema.fields }

func (s *Store) ColumnIndex(name string) int      { return s.schema.ColumnIndex(name) }
func (s *Store) SampleIndex(name string) int      { return s.schema.SampleIndex(name) }
func (s *Store) SampleFieldIndex(name string) int { return s.schema.FieldIndex(name) }

func (s *Store) ColumnKind(col int) types.ColumnKind { return s.schema.columns[col].Kind }
func (s *Store) ColumnDict(col int) dict.Table       { return s.schema.dicts[col] }
func (s *Store) FieldDict(f int) dict.Table          { return s.schema.fieldDicts[f] }

// Annotation returns the code stored for (row, col).
func (s *Store) Annotation(row, col int) int32 {
	return s.annot[row*s.nCols+col]
}

// AnnotationRow returns the codes of one row. The slice aliases the store.
func (s *Store) AnnotationRow(row int) []int32 {
	return s.annot[row*s.nCols : (row+1)*s.nCols]
}

// Sample returns the code stored for field f of sample smp in row.
func (s *Store) Sample(row, smp, f int) int32 {
	return s.cube[(row*s.nSamples+smp)*s.nFields+f]
}

// SampleRow returns every sample code of one row, sample-major. The slice
// aliases the store.
func (s *Store) SampleRow(row int) []int32 {
	w := s.nSamples * s.nFields
	return s.cube[row*w : (row+1)*w]
}

// DecodeAnnotation returns the literal value of (row, col).
func (s *Store) DecodeAnnotation(row, col int) string {
	return s.schema.dicts[col].ValueOf(s.Annotation(row, col))
}

// DecodeSample returns the literal value of field f of sample smp in row.
func (s *Store) DecodeSample(row, smp, f int) string {
	return s.schema.fieldDicts[f].ValueOf(s.Sample(row, smp, f))
}

// Genotype returns the decoded genotype of sample smp in row.
func (s *Store) Genotype(row, smp int) string {
	return s.DecodeSample(row, smp, GenotypeField)
}

// Mask returns a copy of the current row inclusion mask.
func (s *Store) Mask() *mask.Mask { return s.mask.Clone() }

// SetMask replaces the row inclusion mask and rebuilds the output view.
// A mask over a different row count is rejected and the store is unchanged.
func (s *Store) SetMask(m *mask.Mask) error {
	if m.Size() != s.rows {
		return vserrors.Newf(vserrors.ErrCategoryFilter, vserrors.CodeRowCountMismatch,
			"mask covers %d rows, store has %d", m.Size(), s.rows)
	}
	s.mask = m.Clone()
	s.view = buildView(s, s.mask)
	return nil
}

// ResetMask selects every row again.
func (s *Store) ResetMask() {
	s.mask = mask.All(s.rows)
	s.view = buildView(s, s.mask)
}

// View returns the output view for the current mask.
func (s *Store) View() *View { return s.view }

// Subset derives a child store holding copies of the given rows' codes. The
// child shares this store's Schema and records this store as its parent.
func (s *Store) Subset(rows []int) (*Store, error) {
	annot := make([]int32, 0, len(rows)*s.nCols)
	w := s.nSamples * s.nFields
	cube := make([]int32, 0, len(rows)*w)
	for _, r := range rows {
		if r < 0 || r >= s.rows {
			return nil, vserrors.Newf(vserrors.ErrCategoryInternal, vserrors.CodeUnexpected,
				"subset row %d out of range [0,%d)", r, s.rows)
		}
		annot = append(annot, s.AnnotationRow(r)...)
		cube = append(cube, s.SampleRow(r)...)
	}
	return newStore(s.schema, s, len(rows), annot, cube), nil
}

// SubsetMasked derives a child store from the currently masked rows.
func (s *Store) SubsetMasked() *Store {
	child, _ := s.Subset(s.mask.Rows())
	return child
}
