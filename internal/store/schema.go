package store

import (
	"github.com/teerjk/VarSifter-sub000/internal/dict"
	"github.com/teerjk/VarSifter-sub000/pkg/types"
)

// GenotypeField is the index of the genotype in every sample's field list.
const GenotypeField = 0

// Schema is the dictionary arena of a store family. It owns the column and
// sample metadata and every Dictionary Table; parent and subset stores hold
// the same *Schema so codes never need remapping.
//
// A Schema is mutated only while ingest builds it.
type Schema struct {
	columns  []types.ColumnDef
	colIndex map[string]int
	dicts    []dict.Table

	samples     []types.SampleDef
	sampleIndex map[string]int

	fields     []types.FieldDef
	fieldIndex map[string]int
	fieldDicts []dict.Table

	layout   []types.CellRef
	comments []string
	format   string
}

// NewSchema creates an empty schema. The genotype field is always present.
func NewSchema() *Schema {
	s := &Schema{
		colIndex:    make(map[string]int),
		sampleIndex: make(map[string]int),
		fieldIndex:  make(map[string]int),
	}
	s.AddField(types.FieldDef{Name: "", Kind: types.KindString}, dict.NewStringTable())
	return s
}

// AddColumn registers an annotation column and returns its index.
func (s *Schema) AddColumn(def types.ColumnDef, tbl dict.Table) int {
	idx := len(s.columns)
	s.columns = append(s.columns, def)
	s.dicts = append(s.dicts, tbl)
	s.colIndex[def.Name] = idx
	return idx
}

// AddSample registers a sample and returns its index.
func (s *Schema) AddSample(name string) int {
	idx := len(s.samples)
	s.samples = append(s.samples, types.SampleDef{Name: name, DisplayName: name})
	s.sampleIndex[name] = idx
	return idx
}

// AddField registers a per-sample field and returns its index.
func (s *Schema) AddField(def types.FieldDef, tbl dict.Table) int {
	idx := len(s.fields)
	s.fields = append(s.fields, def)
	s.fieldDicts = append(s.fieldDicts, tbl)
	s.fieldIndex[def.Name] = idx
	return idx
}

// SetLayout records the source file's column order.
func (s *Schema) SetLayout(layout []types.CellRef) { s.layout = layout }

// AddComment keeps a comment line for re-emission on export.
func (s *Schema) AddComment(line string) { s.comments = append(s.comments, line) }

// SetFormat records the input format ("tsv" or "vcf").
func (s *Schema) SetFormat(format string) { s.format = format }

// Format returns the input format.
func (s *Schema) Format() string { return s.format }

// RenameSample changes the display name of a sample. It reports false when
// no sample has that name.
func (s *Schema) RenameSample(name, display string) bool {
	idx, ok := s.sampleIndex[name]
	if !ok {
		return false
	}
	s.samples[idx].DisplayName = display
	return true
}

func (s *Schema) Columns() []types.ColumnDef { return s.columns }
func (s *Schema) Samples() []types.SampleDef { return s.samples }
func (s *Schema) Fields() []types.FieldDef   { return s.fields }
func (s *Schema) Layout() []types.CellRef    { return s.layout }
func (s *Schema) Comments() []string         { return s.comments }

// ColumnIndex resolves an annotation column by name, or -1.
func (s *Schema) ColumnIndex(name string) int {
	if idx, ok := s.colIndex[name]; ok {
		return idx
	}
	return -1
}

// SampleIndex resolves a sample by name or display name, or -1.
func (s *Schema) SampleIndex(name string) int {
	if idx, ok := s.sampleIndex[name]; ok {
		return idx
	}
	for i, sd := range s.samples {
		if sd.DisplayName == name {
			return i
		}
	}
	return -1
}

// FieldIndex resolves a per-sample field by name, or -1. The genotype is
// reachable as "" or "genotype".
func (s *Schema) FieldIndex(name string) int {
	if name == "genotype" {
		return GenotypeField
	}
	if idx, ok := s.fieldIndex[name]; ok {
		return idx
	}
	return -1
}

// ColumnDict returns the dictionary of annotation column col.
func (s *Schema) ColumnDict(col int) dict.Table { return s.dicts[col] }

// FieldDict returns the dictionary of per-sample field f.
func (s *Schema) FieldDict(f int) dict.Table { return s.fieldDicts[f] }

// Header renders the column names in source layout order.
func (s *Schema) Header() []string {
	out := make([]string, len(s.layout))
	for i, ref := range s.layout {
		out[i] = s.CellName(ref)
	}
	return out
}

// CellName renders a layout entry the way the primary format names it.
func (s *Schema) CellName(ref types.CellRef) string {
	if !ref.IsSample() {
		return s.columns[ref.Column].Name
	}
	name := s.samples[ref.Sample].Name + ".NA"
	if ref.Field != GenotypeField {
		name += "." + s.fields[ref.Field].Name
	}
	return name
}
