package store

import "github.com/teerjk/VarSifter-sub000/internal/mask"

// View is the dense re-pack of the rows selected by a store's mask, in
// original row order. It is read-only; when every row is selected it
// aliases the store's arrays instead of copying them.
type View struct {
	rows     []int
	annot    []int32
	cube     []int32
	nCols    int
	rowWidth int
}

func buildView(s *Store, m *mask.Mask) *View {
	v := &View{
		nCols:    s.nCols,
		rowWidth: s.nSamples * s.nFields,
	}
	if m.IsFull() {
		v.rows = make([]int, s.rows)
		for i := range v.rows {
			v.rows[i] = i
		}
		v.annot = s.annot
		v.cube = s.cube
		return v
	}

	n := m.Count()
	v.rows = make([]int, 0, n)
	v.annot = make([]int32, 0, n*v.nCols)
	v.cube = make([]int32, 0, n*v.rowWidth)
	m.ForEach(func(row int) bool {
		v.rows = append(v.rows, row)
		v.annot = append(v.annot, s.AnnotationRow(row)...)
		v.cube = append(v.cube, s.SampleRow(row)...)
		return true
	})
	return v
}

// Len returns the number of rows in the view.
func (v *View) Len() int { return len(v.rows) }

// Row maps a view position to the store row it came from.
func (v *View) Row(i int) int { return v.rows[i] }

// Rows returns the store rows in view order.
func (v *View) Rows() []int { return v.rows }

// Annotation returns the code at view position i, column col.
func (v *View) Annotation(i, col int) int32 {
	return v.annot[i*v.nCols+col]
}

// AnnotationRow returns the annotation codes at view position i.
func (v *View) AnnotationRow(i int) []int32 {
	return v.annot[i*v.nCols : (i+1)*v.nCols]
}

// SampleRow returns the sample codes at view position i, sample-major.
func (v *View) SampleRow(i int) []int32 {
	return v.cube[i*v.rowWidth : (i+1)*v.rowWidth]
}
