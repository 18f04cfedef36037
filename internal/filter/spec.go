// Package filter computes row inclusion masks from a filter specification.
//
// Every active category contributes its own row bitmap which is intersected
// into a mask that starts with every row included. The gene-name pattern and
// the quality thresholds always take part; their defaults match every row.
// Activating more categories can therefore only shrink the result.
package filter

import "slices"

// Category names, as used in results, logs and statistics.
const (
	CategoryVariantType    = "variant_type"
	CategoryDBSNP          = "dbsnp"
	CategoryHomRecessive   = "hom_recessive"
	CategoryDominant       = "dominant"
	CategoryInconsistent   = "inconsistent"
	CategoryCompoundHet    = "compound_het"
	CategoryAffectedNormal = "affected_normal"
	CategoryCaseControl    = "case_control"
	CategoryGeneInclude    = "gene_include"
	CategoryGeneExclude    = "gene_exclude"
	CategoryBED            = "bed"
	CategoryGenePattern    = "gene_pattern"
	CategoryQuality        = "quality"
	CategoryCoverageRatio  = "coverage_ratio"
	CategoryExpression     = "expression"
)

// Spec is an immutable filter specification. The zero value keeps every row.
type Spec struct {
	// VariantTypes keeps rows whose type cell carries any of these tokens
	VariantTypes []string

	// ExcludeDBSNP keeps rows without a dbSNP identifier
	ExcludeDBSNP bool

	// Precomputed flag columns; each keeps rows whose flag is set
	FlagHomRecessive bool
	FlagDominant     bool
	FlagInconsistent bool

	// CompoundHet keeps rows with a compound-heterozygous linkage list
	CompoundHet bool

	AffectedNormal *AffectedNormalSpec
	CaseControl    *CaseControlSpec

	GeneIncludeFile string
	GeneExcludeFile string
	BEDFile         string

	// GenePattern is a case-insensitive regular expression searched in the
	// gene name. Empty matches every row.
	GenePattern string

	// MinGenotypeQuality keeps rows where at least MinQualitySamples samples
	// have a score at or above it. 0 disables the gate.
	MinGenotypeQuality float64
	MinQualitySamples  int

	// MinCoverageRatio keeps rows where at least MinRatioSamples samples have
	// score/coverage at or above it. 0 disables the gate.
	MinCoverageRatio float64
	MinRatioSamples  int

	// Expression is a custom row predicate.
	Expression string
}

// SamplePair names one affected sample and its matched normal.
type SamplePair struct {
	Affected string `json:"affected" yaml:"affected"`
	Normal   string `json:"normal" yaml:"normal"`
}

// AffectedNormalSpec keeps rows where at least MinDiffering pairs have
// differing, known, quality-passing genotypes.
type AffectedNormalSpec struct {
	Pairs        []SamplePair
	MinDiffering int
	MinQuality   float64
}

// CaseControlSpec keeps rows where at least MinCases cases and at most
// MaxControls controls carry the variant with a passing quality.
type CaseControlSpec struct {
	Cases       []string
	Controls    []string
	MinCases    int
	MaxControls int
	MinQuality  float64
}

// Active lists the categories the caller enabled, in evaluation order.
// The gene pattern and quality gates are not included; they always apply.
func (s Spec) Active() []string {
	var out []string
	add := func(on bool, name string) {
		if on {
			out = append(out, name)
		}
	}
	add(len(s.VariantTypes) > 0, CategoryVariantType)
	add(s.ExcludeDBSNP, CategoryDBSNP)
	add(s.FlagHomRecessive, CategoryHomRecessive)
	add(s.FlagDominant, CategoryDominant)
	add(s.FlagInconsistent, CategoryInconsistent)
	add(s.CompoundHet, CategoryCompoundHet)
	add(s.AffectedNormal != nil, CategoryAffectedNormal)
	add(s.CaseControl != nil, CategoryCaseControl)
	add(s.GeneIncludeFile != "", CategoryGeneInclude)
	add(s.GeneExcludeFile != "", CategoryGeneExclude)
	add(s.BEDFile != "", CategoryBED)
	add(s.Expression != "", CategoryExpression)
	return out
}

// Includes reports whether s activates every category other activates.
func (s Spec) Includes(other Spec) bool {
	mine := s.Active()
	for _, c := range other.Active() {
		if !slices.Contains(mine, c) {
			return false
		}
	}
	return true
}
