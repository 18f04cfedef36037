package store

import (
	vserrors "github.com/teerjk/VarSifter-sub000/internal/errors"
)

// Builder accumulates rows of codes for a new store. Ingest sizes it from
// the pass-one row count so the arrays are allocated once.
type Builder struct {
	schema   *Schema
	nCols    int
	rowWidth int
	rows     int
	annot    []int32
	cube     []int32
}

// NewBuilder creates a builder for the schema's current columns, samples and
// fields. The schema layout must not change while the builder is in use.
func NewBuilder(schema *Schema, expectedRows int) *Builder {
	nCols := len(schema.columns)
	w := len(schema.samples) * len(schema.fields)
	return &Builder{
		schema:   schema,
		nCols:    nCols,
		rowWidth: w,
		annot:    make([]int32, 0, expectedRows*nCols),
		cube:     make([]int32, 0, expectedRows*w),
	}
}

// AppendRow adds one row. samples is sample-major:
// samples[sample*numFields+field].
func (b *Builder) AppendRow(annot, samples []int32) error {
	if len(annot) != b.nCols || len(samples) != b.rowWidth {
		return vserrors.Newf(vserrors.ErrCategoryIngest, vserrors.CodeMalformedRow,
			"row %d has %d annotation and %d sample codes, expected %d and %d",
			b.rows, len(annot), len(samples), b.nCols, b.rowWidth)
	}
	b.annot = append(b.annot, annot...)
	b.cube = append(b.cube, samples...)
	b.rows++
	return nil
}

// Rows returns the number of rows appended so far.
func (b *Builder) Rows() int { return b.rows }

// Build returns the finished store with every row selected.
func (b *Builder) Build() *Store {
	return newStore(b.schema, nil, b.rows, b.annot, b.cube)
}
