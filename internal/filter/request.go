package filter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	vserrors "github.com/teerjk/VarSifter-sub000/internal/errors"
)

// Request is the raw form of a filter specification, as a form or a YAML
// file produces it. Thresholds are text and are parsed by Spec.
type Request struct {
	VariantTypes     []string `json:"variant_types" yaml:"variant_types"`
	ExcludeDBSNP     bool     `json:"exclude_dbsnp" yaml:"exclude_dbsnp"`
	FlagHomRecessive bool     `json:"hom_recessive" yaml:"hom_recessive"`
	FlagDominant     bool     `json:"dominant" yaml:"dominant"`
	FlagInconsistent bool     `json:"inconsistent" yaml:"inconsistent"`
	CompoundHet      bool     `json:"compound_het" yaml:"compound_het"`

	AffectedNormal *AffectedNormalRequest `json:"affected_normal" yaml:"affected_normal"`
	CaseControl    *CaseControlRequest    `json:"case_control" yaml:"case_control"`

	GeneIncludeFile string `json:"gene_include_file" yaml:"gene_include_file"`
	GeneExcludeFile string `json:"gene_exclude_file" yaml:"gene_exclude_file"`
	BEDFile         string `json:"bed_file" yaml:"bed_file"`
	GenePattern     string `json:"gene_pattern" yaml:"gene_pattern"`

	MinGenotypeQuality string `json:"min_genotype_quality" yaml:"min_genotype_quality"`
	MinQualitySamples  string `json:"min_quality_samples" yaml:"min_quality_samples"`
	MinCoverageRatio   string `json:"min_coverage_ratio" yaml:"min_coverage_ratio"`
	MinRatioSamples    string `json:"min_ratio_samples" yaml:"min_ratio_samples"`

	Expression string `json:"expression" yaml:"expression"`
}

// AffectedNormalRequest is the raw affected-vs-normal section.
type AffectedNormalRequest struct {
	Pairs        []SamplePair `json:"pairs" yaml:"pairs"`
	MinDiffering string       `json:"min_differing" yaml:"min_differing"`
	MinQuality   string       `json:"min_quality" yaml:"min_quality"`
}

// CaseControlRequest is the raw case/control section.
type CaseControlRequest struct {
	Cases       []string `json:"cases" yaml:"cases"`
	Controls    []string `json:"controls" yaml:"controls"`
	MinCases    string   `json:"min_cases" yaml:"min_cases"`
	MaxControls string   `json:"max_controls" yaml:"max_controls"`
	MinQuality  string   `json:"min_quality" yaml:"min_quality"`
}

// Threshold defaults used when a field is empty or does not parse.
const (
	DefaultMinDiffering  = 1
	DefaultMinCases      = 1
	DefaultMaxControls   = 0
	DefaultMinSamples    = 1
	DefaultMinQuality    = 0.0
	DefaultCoverageRatio = 0.0
)

// LoadRequest reads a request from a YAML or JSON file.
func LoadRequest(path string) (*Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, vserrors.Wrap(vserrors.ErrCategoryFilter, vserrors.CodeAuxFile, "cannot read filter request", err)
	}

	var req Request
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &req)
	default:
		err = yaml.Unmarshal(data, &req)
	}
	if err != nil {
		return nil, vserrors.Wrap(vserrors.ErrCategoryFilter, vserrors.CodeAuxFile,
			fmt.Sprintf("cannot parse filter request %s", path), err)
	}
	return &req, nil
}

// Spec converts the request into a Spec. A threshold that fails to parse
// falls back to its default and is logged; it never fails the conversion.
func (r *Request) Spec(logger *zap.Logger) Spec {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := thresholdParser{logger: logger}

	s := Spec{
		VariantTypes:       trimAll(r.VariantTypes),
		ExcludeDBSNP:       r.ExcludeDBSNP,
		FlagHomRecessive:   r.FlagHomRecessive,
		FlagDominant:       r.FlagDominant,
		FlagInconsistent:   r.FlagInconsistent,
		CompoundHet:        r.CompoundHet,
		GeneIncludeFile:    strings.TrimSpace(r.GeneIncludeFile),
		GeneExcludeFile:    strings.TrimSpace(r.GeneExcludeFile),
		BEDFile:            strings.TrimSpace(r.BEDFile),
		GenePattern:        strings.TrimSpace(r.GenePattern),
		MinGenotypeQuality: p.floatValue("min_genotype_quality", r.MinGenotypeQuality, DefaultMinQuality),
		MinQualitySamples:  p.intValue("min_quality_samples", r.MinQualitySamples, DefaultMinSamples),
		MinCoverageRatio:   p.floatValue("min_coverage_ratio", r.MinCoverageRatio, DefaultCoverageRatio),
		MinRatioSamples:    p.intValue("min_ratio_samples", r.MinRatioSamples, DefaultMinSamples),
		Expression:         strings.TrimSpace(r.Expression),
	}

	if an := r.AffectedNormal; an != nil {
		s.AffectedNormal = &AffectedNormalSpec{
			Pairs:        an.Pairs,
			MinDiffering: p.intValue("affected_normal.min_differing", an.MinDiffering, DefaultMinDiffering),
			MinQuality:   p.floatValue("affected_normal.min_quality", an.MinQuality, DefaultMinQuality),
		}
	}
	if cc := r.CaseControl; cc != nil {
		s.CaseControl = &CaseControlSpec{
			Cases:       trimAll(cc.Cases),
			Controls:    trimAll(cc.Controls),
			MinCases:    p.intValue("case_control.min_cases", cc.MinCases, DefaultMinCases),
			MaxControls: p.intValue("case_control.max_controls", cc.MaxControls, DefaultMaxControls),
			MinQuality:  p.floatValue("case_control.min_quality", cc.MinQuality, DefaultMinQuality),
		}
	}
	return s
}

type thresholdParser struct {
	logger *zap.Logger
}

func (p thresholdParser) intValue(field, text string, def int) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return def
	}
	v, err := strconv.Atoi(text)
	if err != nil {
		p.warn(field, text, def, err)
		return def
	}
	return v
}

func (p thresholdParser) floatValue(field, text string, def float64) float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return def
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		p.warn(field, text, def, err)
		return def
	}
	return v
}

func (p thresholdParser) warn(field, text string, def any, cause error) {
	err := vserrors.NewFilterError(vserrors.CodeInvalidThreshold,
		fmt.Sprintf("%s: %q is not a number", field, text), cause)
	p.logger.Warn("invalid threshold, using default",
		zap.String("field", field),
		zap.Any("default", def),
		zap.Error(err))
}

func trimAll(in []string) []string {
	var out []string
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
