// Package ingest builds stores from delimited variant files and writes them back.
//
// Loading is two-pass. The first pass validates the row shape, probes every
// column's semantic type and counts rows; the second pass routes every cell
// through its column's now-fixed dictionary into pre-sized arrays. All
// failures during a load are fatal: no partial store is returned.
package ingest

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teerjk/VarSifter-sub000/internal/config"
	"github.com/teerjk/VarSifter-sub000/internal/dict"
	vserrors "github.com/teerjk/VarSifter-sub000/internal/errors"
	"github.com/teerjk/VarSifter-sub000/internal/logging"
	"github.com/teerjk/VarSifter-sub000/internal/storage"
	"github.com/teerjk/VarSifter-sub000/internal/store"
	"github.com/teerjk/VarSifter-sub000/pkg/types"
)

// Format names an input format.
type Format string

const (
	FormatTSV Format = "tsv"
	FormatVCF Format = "vcf"
)

const vcfMarker = "##fileformat=VCF"

// visitor receives the parsed content of one pass over a source.
type visitor struct {
	comment func(line string)
	header  func(cols []string) error
	row     func(lineNo int, cells []string) error
}

// source produces header and rows in the primary (tab-separated) shape.
type source interface {
	scan(ctx context.Context, v visitor) error
	format() Format
	// kindHint forces the kind of a header column; ok is false to probe.
	kindHint(column string) (types.ColumnKind, bool)
	// fieldHint forces the kind of a per-sample field; ok is false to probe.
	fieldHint(field string) (types.ColumnKind, bool)
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logging.OrNop(logger)
	}
}

// Loader reads variant files into stores.
type Loader struct {
	cfg    *config.Config
	fs     storage.FileStorage
	logger *zap.Logger
}

// NewLoader creates a loader reading through fs.
func NewLoader(cfg *config.Config, fs storage.FileStorage, opts ...LoaderOption) *Loader {
	l := &Loader{cfg: cfg, fs: fs, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load detects the format of path, builds a store and applies the sample
// rename sidecar when one exists.
func (l *Loader) Load(ctx context.Context, path string) (*store.Store, error) {
	format, err := l.Detect(ctx, path)
	if err != nil {
		return nil, err
	}
	if format == FormatVCF {
		return l.LoadVCF(ctx, path)
	}
	return l.LoadTSV(ctx, path)
}

// Detect reports VCF when the first line carries the VCF marker or the
// name ends in .vcf, and TSV otherwise.
func (l *Loader) Detect(ctx context.Context, path string) (Format, error) {
	if strings.HasSuffix(strings.ToLower(storage.TrimCompression(path)), ".vcf") {
		return FormatVCF, nil
	}
	first, err := readFirstLine(ctx, l.fs, path)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(first, vcfMarker) {
		return FormatVCF, nil
	}
	return FormatTSV, nil
}

// LoadTSV loads the primary tab-separated format.
func (l *Loader) LoadTSV(ctx context.Context, path string) (*store.Store, error) {
	return l.load(ctx, path, &tsvSource{fs: l.fs, path: path, marker: l.cfg.Ingest.CommentMarker})
}

// LoadVCF loads a VCF file.
func (l *Loader) LoadVCF(ctx context.Context, path string) (*store.Store, error) {
	return l.load(ctx, path, newVCFSource(l.fs, path, l.cfg, l.logger))
}

func (l *Loader) load(ctx context.Context, path string, src source) (*store.Store, error) {
	start := time.Now()

	var (
		plan     *headerPlan
		probes   []probe
		comments []string
		rows     int
	)

	// Pass 1: shape, types, row count.
	err := src.scan(ctx, visitor{
		comment: func(line string) { comments = append(comments, line) },
		header: func(cols []string) error {
			p, err := planHeader(cols, l.cfg)
			if err != nil {
				return err
			}
			plan = p
			probes = make([]probe, len(cols))
			for i := range probes {
				probes[i] = newProbe()
			}
			return nil
		},
		row: func(lineNo int, cells []string) error {
			if plan == nil {
				return vserrors.Newf(vserrors.ErrCategoryIngest, vserrors.CodeMissingHeader,
					"line %d precedes the header row", lineNo)
			}
			if len(cells) != len(plan.refs) {
				return vserrors.Newf(vserrors.ErrCategoryIngest, vserrors.CodeMalformedRow,
					"line %d has %d columns, header has %d", lineNo, len(cells), len(plan.refs))
			}
			for i, c := range cells {
				probes[i].observe(c)
			}
			rows++
			if rows%10000 == 0 {
				return ctx.Err()
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	schema, err := l.buildSchema(src, plan, probes)
	if err != nil {
		return nil, err
	}
	schema.SetFormat(string(src.format()))
	for _, c := range comments {
		schema.AddComment(c)
	}

	// Pass 2: encode.
	builder := store.NewBuilder(schema, rows)
	nFields := len(schema.Fields())
	annot := make([]int32, len(schema.Columns()))
	samples := make([]int32, len(schema.Samples())*nFields)
	err = src.scan(ctx, visitor{
		comment: func(string) {},
		header:  func([]string) error { return nil },
		row: func(lineNo int, cells []string) error {
			if len(cells) != len(plan.refs) {
				return vserrors.Newf(vserrors.ErrCategoryIngest, vserrors.CodeMalformedRow,
					"line %d has %d columns, header has %d", lineNo, len(cells), len(plan.refs))
			}
			for i, ref := range plan.refs {
				var (
					tbl  dict.Table
					slot *int32
				)
				if ref.IsSample() {
					tbl = schema.FieldDict(ref.Field)
					slot = &samples[ref.Sample*nFields+ref.Field]
				} else {
					tbl = schema.ColumnDict(ref.Column)
					slot = &annot[ref.Column]
				}
				code, err := tbl.Add(cells[i])
				if err != nil {
					return vserrors.Wrap(vserrors.ErrCategoryIngest, encodeCode(err),
						fmt.Sprintf("line %d column %s", lineNo, schema.CellName(ref)), err)
				}
				*slot = code
			}
			if err := builder.AppendRow(annot, samples); err != nil {
				return err
			}
			if builder.Rows()%10000 == 0 {
				return ctx.Err()
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	st := builder.Build()
	if err := l.applyRenames(ctx, path, schema); err != nil {
		return nil, err
	}

	l.logger.Info("loaded variant file",
		zap.String("path", path),
		zap.String("format", string(src.format())),
		zap.String("store_id", st.ID().String()),
		zap.Int("rows", st.NumRows()),
		zap.Int("columns", st.NumColumns()),
		zap.Int("samples", len(st.Samples())),
		zap.Duration("elapsed", time.Since(start)))
	return st, nil
}

// encodeCode keeps the capacity code of a dictionary failure; anything else
// means the file changed between passes.
func encodeCode(err error) string {
	if vserrors.GetCode(err) == vserrors.CodeDictionaryCapacity {
		return vserrors.CodeDictionaryCapacity
	}
	return vserrors.CodeMalformedRow
}

// buildSchema fixes every column and field kind from the pass-1 probes and
// creates the dictionaries.
func (l *Loader) buildSchema(src source, plan *headerPlan, probes []probe) (*store.Schema, error) {
	if plan == nil {
		return nil, vserrors.New(vserrors.ErrCategoryIngest, vserrors.CodeMissingHeader, "input has no header row")
	}
	schema := store.NewSchema()
	delims := l.cfg.Ingest.MultiValueDelimiters

	colProbe := make([]probe, len(plan.columns))
	fieldProbes := make([][]probe, len(plan.fields)+1)
	for pos, ref := range plan.refs {
		if ref.IsSample() {
			fieldProbes[ref.Field] = append(fieldProbes[ref.Field], probes[pos])
		} else {
			colProbe[ref.Column] = probes[pos]
		}
	}

	for i, def := range plan.columns {
		kind, ok := src.kindHint(def.SourceName)
		if !ok {
			kind = colProbe[i].kind()
			if kind == types.KindString && l.cfg.IsMultiValued(def.Name) {
				kind = types.KindMulti
			}
		}
		def.Kind = kind
		schema.AddColumn(def, dict.New(kind, delims))
	}

	for _, name := range plan.samples {
		schema.AddSample(name)
	}

	for i, name := range plan.fields {
		kind, ok := src.fieldHint(name)
		if !ok {
			var err error
			kind, err = fieldKind(name, fieldProbes[i+1])
			if err != nil {
				return nil, err
			}
		}
		schema.AddField(types.FieldDef{Name: name, Kind: kind}, dict.New(kind, delims))
	}

	schema.SetLayout(plan.refs)
	return schema, nil
}

// fieldKind combines the probes of one field across every sample. Integer
// and float columns promote to float; numeric mixed with text is fatal.
func fieldKind(name string, probes []probe) (types.ColumnKind, error) {
	numeric, text := 0, 0
	allInt := true
	for _, p := range probes {
		switch p.kind() {
		case types.KindIdentity:
			numeric++
		case types.KindFloat:
			numeric++
			allInt = false
		default:
			text++
		}
	}
	switch {
	case numeric > 0 && text > 0:
		return 0, vserrors.Newf(vserrors.ErrCategoryIngest, vserrors.CodeInconsistentSampleTypes,
			"sample field %q is numeric for %d samples and text for %d", name, numeric, text)
	case text > 0:
		return types.KindString, nil
	case allInt:
		return types.KindIdentity, nil
	default:
		return types.KindFloat, nil
	}
}

// probe tracks whether every value of a column is integer- or float-like.
type probe struct {
	seen     int
	allInt   bool
	allFloat bool
}

func newProbe() probe {
	return probe{allInt: true, allFloat: true}
}

func (p *probe) observe(v string) {
	p.seen++
	if p.allInt && !dict.IsCanonicalInt(v) {
		p.allInt = false
	}
	if p.allFloat {
		if f, err := strconv.ParseFloat(v, 64); err != nil || math.IsNaN(f) {
			p.allFloat = false
		}
	}
}

func (p probe) kind() types.ColumnKind {
	switch {
	case p.seen == 0:
		return types.KindString
	case p.allInt:
		return types.KindIdentity
	case p.allFloat:
		return types.KindFloat
	default:
		return types.KindString
	}
}
