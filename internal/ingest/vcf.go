package ingest

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/teerjk/VarSifter-sub000/internal/config"
	vserrors "github.com/teerjk/VarSifter-sub000/internal/errors"
	"github.com/teerjk/VarSifter-sub000/internal/storage"
	"github.com/teerjk/VarSifter-sub000/pkg/types"
)

const (
	vcfFixedColumns = 8 // CHROM POS ID REF ALT QUAL FILTER INFO
	vcfMissing      = "."
	vcfFlagSet      = "1"
	vcfFlagUnset    = "0"
)

// MetaField is one ##INFO or ##FORMAT declaration.
type MetaField struct {
	ID          string
	Number      string
	Type        string
	Description string
}

// vcfSource presents a VCF file in the primary shape: fixed annotation
// columns, one column per INFO field, then <s>.NA and <s>.NA.<field> per
// sample.
type vcfSource struct {
	fs     storage.FileStorage
	path   string
	cfg    *config.Config
	logger *zap.Logger

	infos   []MetaField
	formats []MetaField // excluding GT
	fields  []string    // sample field names for formats, after renames
	samples []string

	// hints keyed by header text
	hints      map[string]types.ColumnKind
	fieldHints map[string]types.ColumnKind
}

func newVCFSource(fs storage.FileStorage, path string, cfg *config.Config, logger *zap.Logger) *vcfSource {
	return &vcfSource{fs: fs, path: path, cfg: cfg, logger: logger}
}

func (s *vcfSource) format() Format { return FormatVCF }

func (s *vcfSource) kindHint(column string) (types.ColumnKind, bool) {
	k, ok := s.hints[column]
	return k, ok
}

func (s *vcfSource) fieldHint(field string) (types.ColumnKind, bool) {
	k, ok := s.fieldHints[field]
	return k, ok
}

func (s *vcfSource) scan(ctx context.Context, v visitor) error {
	r, err := openInput(ctx, s.fs, s.path)
	if err != nil {
		return err
	}
	defer r.Close()

	s.infos, s.formats, s.samples = nil, nil, nil
	headerSeen := false

	err = eachLine(r, func(lineNo int, line string) error {
		switch {
		case lineNo == 1:
			if !strings.HasPrefix(line, vcfMarker) {
				return vserrors.Newf(vserrors.ErrCategoryIngest, vserrors.CodeBadFormat,
					"%s: first line must start with %s", s.path, vcfMarker)
			}
			return nil
		case strings.HasPrefix(line, "##INFO="):
			s.infos = append(s.infos, parseMeta(strings.TrimPrefix(line, "##INFO=")))
			return nil
		case strings.HasPrefix(line, "##FORMAT="):
			if m := parseMeta(strings.TrimPrefix(line, "##FORMAT=")); m.ID != "GT" {
				s.formats = append(s.formats, m)
			}
			return nil
		case strings.HasPrefix(line, "##"):
			return nil
		case strings.HasPrefix(line, "#CHROM"):
			headerSeen = true
			cols := strings.Split(line, "\t")
			if len(cols) > vcfFixedColumns+1 {
				s.samples = cols[vcfFixedColumns+1:]
			}
			s.logger.Debug("vcf header",
				zap.String("path", s.path),
				zap.Int("info_fields", len(s.infos)),
				zap.Int("format_fields", len(s.formats)),
				zap.Int("samples", len(s.samples)))
			return v.header(s.header())
		case line == "":
			return nil
		}

		if !headerSeen {
			return vserrors.Newf(vserrors.ErrCategoryIngest, vserrors.CodeBadFormat,
				"line %d: data before the #CHROM header", lineNo)
		}
		cells, err := s.convert(lineNo, strings.Split(line, "\t"))
		if err != nil {
			return err
		}
		return v.row(lineNo, cells)
	})
	if err != nil {
		return err
	}
	if !headerSeen {
		return vserrors.Newf(vserrors.ErrCategoryIngest, vserrors.CodeBadFormat, "%s has no #CHROM header", s.path)
	}
	return nil
}

// header builds the synthesized primary header and the kind hints.
func (s *vcfSource) header() []string {
	c := s.cfg.Columns
	cols := []string{
		c.Chromosome, c.LeftFlank, c.RightFlank, c.Gene, c.Type, c.MutationType,
		c.DBID, c.RefAllele, c.VarAllele, "qual", "filter",
	}
	s.hints = map[string]types.ColumnKind{
		c.Gene:         types.KindString,
		c.MutationType: types.KindString,
		c.DBID:         types.KindString,
		"filter":       types.KindString,
	}

	for _, info := range s.infos {
		cols = append(cols, info.ID)
		switch info.Type {
		case "Flag":
			s.hints[info.ID] = types.KindIdentity
		case "String", "Character":
			s.hints[info.ID] = types.KindString
		}
	}

	s.fields = s.fields[:0]
	s.fieldHints = make(map[string]types.ColumnKind)
	for _, f := range s.formats {
		name := f.ID
		if renamed, ok := s.cfg.Ingest.VCFFieldRenames[name]; ok {
			name = renamed
		}
		s.fields = append(s.fields, name)
		// "." is legal in any sample field, so per-sample probing would
		// disagree across samples; sample fields stay text with a numeric view.
		s.fieldHints[name] = types.KindString
	}

	for _, smp := range s.samples {
		cols = append(cols, smp+sampleMarker)
		for _, f := range s.fields {
			cols = append(cols, smp+sampleMarker+"."+f)
		}
	}
	return cols
}

// convert turns one VCF data line into primary-shape cells.
func (s *vcfSource) convert(lineNo int, raw []string) ([]string, error) {
	want := vcfFixedColumns
	if len(s.samples) > 0 {
		want += 1 + len(s.samples)
	}
	if len(raw) != want {
		return nil, vserrors.Newf(vserrors.ErrCategoryIngest, vserrors.CodeMalformedRow,
			"line %d has %d columns, expected %d", lineNo, len(raw), want)
	}

	chrom, posText, id, ref, alt, qual, filter, info := raw[0], raw[1], raw[2], raw[3], raw[4], raw[5], raw[6], raw[7]
	pos, err := strconv.Atoi(posText)
	if err != nil {
		return nil, vserrors.Newf(vserrors.ErrCategoryIngest, vserrors.CodeMalformedRow,
			"line %d: POS %q is not an integer", lineNo, posText)
	}

	alts := strings.Split(alt, ",")
	cells := make([]string, 0, 11+len(s.infos)+len(s.samples)*(1+len(s.fields)))
	cells = append(cells,
		chrom,
		strconv.Itoa(pos-1),
		strconv.Itoa(pos+len(ref)),
		"-",
		"-",
		mutationType(ref, alts),
		id, ref, alt, qual, filter,
	)
	cells = append(cells, s.infoCells(info)...)

	if len(s.samples) == 0 {
		return cells, nil
	}

	keys := strings.Split(raw[vcfFixedColumns], ":")
	alleles := append([]string{ref}, alts...)
	for i := range s.samples {
		values := strings.Split(raw[vcfFixedColumns+1+i], ":")
		byKey := make(map[string]string, len(keys))
		for k, key := range keys {
			if k < len(values) {
				byKey[key] = values[k]
			}
		}

		gt, err := decodeGenotype(byKey["GT"], alleles)
		if err != nil {
			return nil, vserrors.Newf(vserrors.ErrCategoryIngest, vserrors.CodeMalformedRow,
				"line %d sample %s: %v", lineNo, s.samples[i], err)
		}
		cells = append(cells, gt)
		for _, f := range s.formats {
			v, ok := byKey[f.ID]
			if !ok || v == "" {
				v = vcfMissing
			}
			cells = append(cells, v)
		}
	}
	return cells, nil
}

func (s *vcfSource) infoCells(info string) []string {
	values := make(map[string]string)
	if info != vcfMissing {
		for _, kv := range strings.Split(info, ";") {
			if k, v, ok := strings.Cut(kv, "="); ok {
				values[k] = v
			} else if kv != "" {
				values[kv] = ""
			}
		}
	}

	out := make([]string, len(s.infos))
	for i, m := range s.infos {
		v, ok := values[m.ID]
		switch {
		case m.Type == "Flag" && ok:
			out[i] = vcfFlagSet
		case m.Type == "Flag":
			out[i] = vcfFlagUnset
		case !ok || v == "":
			out[i] = vcfMissing
		default:
			out[i] = v
		}
	}
	return out
}

// mutationType is SNP when every allele is a single base and INDEL otherwise.
func mutationType(ref string, alts []string) string {
	if len(ref) != 1 {
		return "INDEL"
	}
	for _, a := range alts {
		if len(a) != 1 {
			return "INDEL"
		}
	}
	return "SNP"
}

// decodeGenotype maps allele indices ("0/1", "1|1", "1") to allele strings.
// Any missing index makes the whole call unknown.
func decodeGenotype(gt string, alleles []string) (string, error) {
	if gt == "" || gt == vcfMissing {
		return types.UnknownGenotype, nil
	}
	parts := strings.FieldsFunc(gt, func(r rune) bool { return r == '/' || r == '|' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == vcfMissing {
			return types.UnknownGenotype, nil
		}
		idx, err := strconv.Atoi(p)
		if err != nil || idx < 0 || idx >= len(alleles) {
			return "", fmt.Errorf("genotype %q has invalid allele index %q", gt, p)
		}
		out = append(out, alleles[idx])
	}
	return types.FormatGenotype(out...), nil
}

// parseMeta parses `<ID=DP,Number=1,Type=Integer,Description="Read depth">`.
func parseMeta(body string) MetaField {
	body = strings.TrimSuffix(strings.TrimPrefix(body, "<"), ">")
	var m MetaField
	for len(body) > 0 {
		key, rest, ok := strings.Cut(body, "=")
		if !ok {
			break
		}
		var value string
		if strings.HasPrefix(rest, `"`) {
			end := strings.Index(rest[1:], `"`)
			if end < 0 {
				value, rest = rest[1:], ""
			} else {
				value, rest = rest[1:end+1], rest[end+2:]
			}
			rest = strings.TrimPrefix(rest, ",")
		} else {
			value, rest, _ = strings.Cut(rest, ",")
		}
		switch key {
		case "ID":
			m.ID = value
		case "Number":
			m.Number = value
		case "Type":
			m.Type = value
		case "Description":
			m.Description = value
		}
		body = rest
	}
	return m
}
