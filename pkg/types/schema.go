// Package types provides core data types shared by the variant store packages.
package types

import "fmt"

// ColumnKind is the semantic type of a column, fixed once at ingest.
type ColumnKind int

const (
	// KindIdentity columns hold small integers; the code is the value itself.
	KindIdentity ColumnKind = iota

	// KindString columns map arbitrary text to dense codes.
	KindString

	// KindFloat columns map floating values to dense codes.
	KindFloat

	// KindMulti columns hold delimiter-separated token sets encoded as bitmasks.
	KindMulti
)

// String returns the lower-case name of the kind.
func (k ColumnKind) String() string {
	switch k {
	case KindIdentity:
		return "identity"
	case KindString:
		return "string"
	case KindFloat:
		return "float"
	case KindMulti:
		return "multi"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// IsNumeric reports whether values of this kind compare numerically.
func (k ColumnKind) IsNumeric() bool {
	return k == KindIdentity || k == KindFloat
}

// ColumnDef describes one annotation column.
type ColumnDef struct {
	// Name is the unique (possibly suffixed) column name
	Name string `json:"name"`

	// SourceName is the header text before renames and suffixing
	SourceName string `json:"source_name"`

	// Kind is the semantic type resolved at ingest
	Kind ColumnKind `json:"kind"`
}

// FieldDef describes one per-sample field. Field 0 is always the genotype.
type FieldDef struct {
	// Name is the field type suffix (e.g. "score", "coverage"); empty for the genotype
	Name string `json:"name"`

	// Kind is the semantic type shared by every sample for this field
	Kind ColumnKind `json:"kind"`
}

// SampleDef describes one sample.
type SampleDef struct {
	// Name is the sample name from the header
	Name string `json:"name"`

	// DisplayName is the name shown to users; a rename table may change it
	DisplayName string `json:"display_name"`
}

// CellRef locates one column of the source file inside the store.
// Sample is -1 for annotation columns.
type CellRef struct {
	Column int `json:"column"`
	Sample int `json:"sample"`
	Field  int `json:"field"`
}

// IsSample reports whether the reference points into the sample cube.
func (c CellRef) IsSample() bool {
	return c.Sample >= 0
}
