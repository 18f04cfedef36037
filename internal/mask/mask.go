// Package mask implements the row inclusion mask: one bit per row of a store.
package mask

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// Mask is a set of selected rows over a fixed universe [0, Size()).
type Mask struct {
	rb   *roaring.Bitmap
	size int
}

// All returns a mask with every row selected.
func All(size int) *Mask {
	rb := roaring.New()
	if size > 0 {
		rb.AddRange(0, uint64(size))
	}
	return &Mask{rb: rb, size: size}
}

// None returns a mask with no row selected.
func None(size int) *Mask {
	return &Mask{rb: roaring.New(), size: size}
}

// FromRows builds a mask from row indices. Indices outside the universe are ignored.
func FromRows(size int, rows ...int) *Mask {
	m := None(size)
	for _, r := range rows {
		m.Set(r)
	}
	return m
}

// Size returns the universe size (the store's row count).
func (m *Mask) Size() int { return m.size }

// Set selects row.
func (m *Mask) Set(row int) {
	if row >= 0 && row < m.size {
		m.rb.Add(uint32(row))
	}
}

// Clear deselects row.
func (m *Mask) Clear(row int) {
	if row >= 0 && row < m.size {
		m.rb.Remove(uint32(row))
	}
}

// Contains reports whether row is selected.
func (m *Mask) Contains(row int) bool {
	return row >= 0 && row < m.size && m.rb.Contains(uint32(row))
}

// Count returns the number of selected rows.
func (m *Mask) Count() int {
	return int(m.rb.GetCardinality())
}

// IsFull reports whether every row is selected.
func (m *Mask) IsFull() bool {
	return m.Count() == m.size
}

// And intersects other into m. Masks of different sizes intersect over the
// smaller universe.
func (m *Mask) And(other *Mask) {
	m.rb.And(other.rb)
	if other.size < m.size {
		m.rb.RemoveRange(uint64(other.size), uint64(m.size))
	}
}

// Or unions other into m, clipped to m's universe.
func (m *Mask) Or(other *Mask) {
	m.rb.Or(other.rb)
	m.rb.RemoveRange(uint64(m.size), uint64(1)<<32)
}

// SubsetOf reports whether every row selected in m is selected in other.
func (m *Mask) SubsetOf(other *Mask) bool {
	return roaring.AndNot(m.rb, other.rb).IsEmpty()
}

// Clone returns an independent copy.
func (m *Mask) Clone() *Mask {
	return &Mask{rb: m.rb.Clone(), size: m.size}
}

// Rows returns the selected rows in ascending order.
func (m *Mask) Rows() []int {
	out := make([]int, 0, m.Count())
	it := m.rb.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}

// ForEach calls fn for each selected row in ascending order until fn returns false.
func (m *Mask) ForEach(fn func(row int) bool) {
	it := m.rb.Iterator()
	for it.HasNext() {
		if !fn(int(it.Next())) {
			return
		}
	}
}

// Equal reports whether both masks select the same rows over the same universe.
func (m *Mask) Equal(other *Mask) bool {
	return m.size == other.size && m.rb.Equals(other.rb)
}
