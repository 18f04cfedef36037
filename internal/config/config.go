// Package config provides unified configuration for the variant store and its CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the unified configuration.
type Config struct {
	// Logging configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Ingest configuration
	Ingest IngestConfig `json:"ingest" yaml:"ingest"`

	// Columns names the annotation columns with a fixed meaning
	Columns ColumnsConfig `json:"columns" yaml:"columns"`

	// Samples configures per-sample field conventions
	Samples SamplesConfig `json:"samples" yaml:"samples"`

	// Pairing configuration
	Pairing PairingConfig `json:"pairing" yaml:"pairing"`

	// Filter configuration
	Filter FilterConfig `json:"filter" yaml:"filter"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `json:"level" yaml:"level"`

	// Format is json or console
	Format string `json:"format" yaml:"format"`
}

// IngestConfig holds ingest settings.
type IngestConfig struct {
	// CommentMarker prefixes lines kept verbatim and skipped as data
	CommentMarker string `json:"comment_marker" yaml:"comment_marker"`

	// MultiValuedColumns are columns encoded as token bitmasks when not numeric
	MultiValuedColumns []string `json:"multi_valued_columns" yaml:"multi_valued_columns"`

	// MultiValueDelimiters separate tokens inside a multi-valued cell
	MultiValueDelimiters string `json:"multi_value_delimiters" yaml:"multi_value_delimiters"`

	// MaxNameSuffix bounds the _2, _3, ... suffixes used to de-duplicate column names
	MaxNameSuffix int `json:"max_name_suffix" yaml:"max_name_suffix"`

	// RequiredHeaders must all be present after legacy renames
	RequiredHeaders []string `json:"required_headers" yaml:"required_headers"`

	// LegacyRenames maps old header names to current ones
	LegacyRenames map[string]string `json:"legacy_renames" yaml:"legacy_renames"`

	// VCFFieldRenames maps FORMAT IDs to sample field names
	VCFFieldRenames map[string]string `json:"vcf_field_renames" yaml:"vcf_field_renames"`

	// RenameSuffix is appended to an input path to find the sample rename sidecar
	RenameSuffix string `json:"rename_suffix" yaml:"rename_suffix"`
}

// ColumnsConfig names columns the filter, pairing and query components rely on.
type ColumnsConfig struct {
	Chromosome       string `json:"chromosome" yaml:"chromosome"`
	LeftFlank        string `json:"left_flank" yaml:"left_flank"`
	RightFlank       string `json:"right_flank" yaml:"right_flank"`
	Gene             string `json:"gene" yaml:"gene"`
	Type             string `json:"type" yaml:"type"`
	MutationType     string `json:"mutation_type" yaml:"mutation_type"`
	RefAllele        string `json:"ref_allele" yaml:"ref_allele"`
	VarAllele        string `json:"var_allele" yaml:"var_allele"`
	DBID             string `json:"dbid" yaml:"dbid"`
	Index            string `json:"index" yaml:"index"`
	Linkage          string `json:"linkage" yaml:"linkage"`
	FlagHomRecessive string `json:"flag_hom_recessive" yaml:"flag_hom_recessive"`
	FlagDominant     string `json:"flag_dominant" yaml:"flag_dominant"`
	FlagInconsistent string `json:"flag_inconsistent" yaml:"flag_inconsistent"`
}

// SamplesConfig holds per-sample field conventions.
type SamplesConfig struct {
	// ScoreField is the genotype quality field used by quality gates
	ScoreField string `json:"score_field" yaml:"score_field"`

	// CoverageField is the read depth field used by ratio gates
	CoverageField string `json:"coverage_field" yaml:"coverage_field"`
}

// PairingConfig holds compound-record pairing settings.
type PairingConfig struct {
	// Projection lists the annotation columns emitted per record; the first
	// two identify the anchor and are dropped for partners
	Projection []string `json:"projection" yaml:"projection"`
}

// FilterConfig holds filter engine settings.
type FilterConfig struct {
	// NotApplicable lists cell values meaning "no value" in flag and linkage columns
	NotApplicable []string `json:"not_applicable" yaml:"not_applicable"`
}

// StorageConfig holds storage configuration.
type StorageConfig struct {
	// BaseDir resolves relative input and output paths; empty means the working directory
	BaseDir string `json:"base_dir" yaml:"base_dir"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Ingest: IngestConfig{
			CommentMarker:        "#",
			MultiValuedColumns:   []string{"type"},
			MultiValueDelimiters: ",/",
			MaxNameSuffix:        99,
			RequiredHeaders: []string{
				"Chr", "LeftFlank", "RightFlank", "Gene_name",
				"type", "muttype", "ref_allele", "var_allele",
			},
			LegacyRenames: map[string]string{
				"refseq": "Gene_name",
				"RS#":    "dbID",
			},
			VCFFieldRenames: map[string]string{
				"GQ": "score",
				"DP": "coverage",
			},
			RenameSuffix: ".map",
		},
		Columns: ColumnsConfig{
			Chromosome:       "Chr",
			LeftFlank:        "LeftFlank",
			RightFlank:       "RightFlank",
			Gene:             "Gene_name",
			Type:             "type",
			MutationType:     "muttype",
			RefAllele:        "ref_allele",
			VarAllele:        "var_allele",
			DBID:             "dbID",
			Index:            "Index",
			Linkage:          "MendHetRec",
			FlagHomRecessive: "MendHomRec",
			FlagDominant:     "MendDom",
			FlagInconsistent: "MendBad",
		},
		Samples: SamplesConfig{
			ScoreField:    "score",
			CoverageField: "coverage",
		},
		Pairing: PairingConfig{
			Projection: []string{
				"Gene_name", "Chr", "Index", "LeftFlank", "RightFlank",
				"ref_allele", "var_allele", "type", "muttype",
			},
		},
		Filter: FilterConfig{
			NotApplicable: []string{"0", "-", "", "NA", "."},
		},
	}
}

// Resolve fills zero values with defaults after a partial file or env load.
func (c *Config) Resolve() {
	def := DefaultConfig()

	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}

	if c.Ingest.CommentMarker == "" {
		c.Ingest.CommentMarker = def.Ingest.CommentMarker
	}
	if c.Ingest.MultiValueDelimiters == "" {
		c.Ingest.MultiValueDelimiters = def.Ingest.MultiValueDelimiters
	}
	if c.Ingest.MaxNameSuffix == 0 {
		c.Ingest.MaxNameSuffix = def.Ingest.MaxNameSuffix
	}
	if c.Ingest.MultiValuedColumns == nil {
		c.Ingest.MultiValuedColumns = def.Ingest.MultiValuedColumns
	}
	if c.Ingest.RequiredHeaders == nil {
		c.Ingest.RequiredHeaders = def.Ingest.RequiredHeaders
	}
	if c.Ingest.LegacyRenames == nil {
		c.Ingest.LegacyRenames = def.Ingest.LegacyRenames
	}
	if c.Ingest.VCFFieldRenames == nil {
		c.Ingest.VCFFieldRenames = def.Ingest.VCFFieldRenames
	}
	if c.Ingest.RenameSuffix == "" {
		c.Ingest.RenameSuffix = def.Ingest.RenameSuffix
	}

	if c.Columns == (ColumnsConfig{}) {
		c.Columns = def.Columns
	}

	if c.Samples.ScoreField == "" {
		c.Samples.ScoreField = def.Samples.ScoreField
	}
	if c.Samples.CoverageField == "" {
		c.Samples.CoverageField = def.Samples.CoverageField
	}

	if len(c.Pairing.Projection) == 0 {
		c.Pairing.Projection = def.Pairing.Projection
	}
	if c.Filter.NotApplicable == nil {
		c.Filter.NotApplicable = def.Filter.NotApplicable
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid logging.level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("invalid logging.format: %s (must be json or console)", c.Logging.Format)
	}

	if c.Ingest.CommentMarker == "" {
		return fmt.Errorf("ingest.comment_marker is required")
	}

	if c.Ingest.MaxNameSuffix < 2 {
		return fmt.Errorf("ingest.max_name_suffix must be at least 2, got %d", c.Ingest.MaxNameSuffix)
	}

	if strings.ContainsAny(c.Ingest.MultiValueDelimiters, "\t\n") {
		return fmt.Errorf("ingest.multi_value_delimiters must not contain tab or newline")
	}

	if len(c.Pairing.Projection) < 2 {
		return fmt.Errorf("pairing.projection needs at least the two anchor fields, got %d", len(c.Pairing.Projection))
	}

	if c.Samples.ScoreField == c.Samples.CoverageField {
		return fmt.Errorf("samples.score_field and samples.coverage_field must differ")
	}

	return nil
}

// IsMultiValued reports whether a column name is configured as multi-valued.
func (c *Config) IsMultiValued(column string) bool {
	for _, name := range c.Ingest.MultiValuedColumns {
		if name == column {
			return true
		}
	}
	return false
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the VARSIFTER_ prefix; list values are comma-separated.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("VARSIFTER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("VARSIFTER_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Ingest configuration
	if v := os.Getenv("VARSIFTER_COMMENT_MARKER"); v != "" {
		cfg.Ingest.CommentMarker = v
	}
	if v := os.Getenv("VARSIFTER_MULTI_VALUED_COLUMNS"); v != "" {
		cfg.Ingest.MultiValuedColumns = splitList(v)
	}
	if v := os.Getenv("VARSIFTER_MULTI_VALUE_DELIMITERS"); v != "" {
		cfg.Ingest.MultiValueDelimiters = v
	}
	if v := os.Getenv("VARSIFTER_MAX_NAME_SUFFIX"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Ingest.MaxNameSuffix)
	}

	// Sample configuration
	if v := os.Getenv("VARSIFTER_SCORE_FIELD"); v != "" {
		cfg.Samples.ScoreField = v
	}
	if v := os.Getenv("VARSIFTER_COVERAGE_FIELD"); v != "" {
		cfg.Samples.CoverageField = v
	}

	// Column configuration
	if v := os.Getenv("VARSIFTER_LINKAGE_COLUMN"); v != "" {
		cfg.Columns.Linkage = v
	}
	if v := os.Getenv("VARSIFTER_INDEX_COLUMN"); v != "" {
		cfg.Columns.Index = v
	}

	// Pairing configuration
	if v := os.Getenv("VARSIFTER_PAIRING_PROJECTION"); v != "" {
		cfg.Pairing.Projection = splitList(v)
	}

	// Storage configuration
	if v := os.Getenv("VARSIFTER_BASE_DIR"); v != "" {
		cfg.Storage.BaseDir = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
