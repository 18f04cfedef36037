// Package pairing rebuilds compound-heterozygous row pairs from a linkage list.
//
// A request names row identifiers; the first is the anchor. Every other
// matched row becomes one record holding the anchor's projected fields
// followed by the partner's, minus the two fields that identify the anchor.
package pairing

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/teerjk/VarSifter-sub000/internal/config"
	vserrors "github.com/teerjk/VarSifter-sub000/internal/errors"
	"github.com/teerjk/VarSifter-sub000/internal/logging"
	"github.com/teerjk/VarSifter-sub000/internal/store"
)

// anchorFields is the number of leading projection fields not repeated for partners.
const anchorFields = 2

// PartnerPrefix marks partner fields in Result column names.
const PartnerPrefix = "partner."

// Option configures a Pairer.
type Option func(*Pairer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pairer) {
		p.logger = logging.OrNop(logger)
	}
}

// WithProjection overrides the configured projection.
func WithProjection(columns []string) Option {
	return func(p *Pairer) { p.Projection = columns }
}

// Pairer builds pair records.
type Pairer struct {
	// Projection lists the annotation columns emitted per record
	Projection []string

	idColumn      string
	linkageColumn string
	notApplicable map[string]bool
	logger        *zap.Logger
}

// NewPairer creates a pairer using the configured projection and columns.
func NewPairer(cfg *config.Config, opts ...Option) *Pairer {
	p := &Pairer{
		Projection:    cfg.Pairing.Projection,
		idColumn:      cfg.Columns.Index,
		linkageColumn: cfg.Columns.Linkage,
		notApplicable: make(map[string]bool),
		logger:        zap.NewNop(),
	}
	for _, tok := range cfg.Filter.NotApplicable {
		p.notApplicable[tok] = true
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Record is one anchor/partner pair.
type Record struct {
	Anchor    int // row number
	Partner   int
	AnchorID  int64
	PartnerID int64

	// Values follows Result.Columns
	Values []string

	// Samples holds, per sample, the anchor's fields then the partner's,
	// following Result.SampleColumns. Nil unless sample detail was requested.
	Samples [][]string
}

// Result holds the records for one request.
type Result struct {
	Columns       []string
	SampleColumns []string
	Records       []Record
}

// Pair scans the masked rows of st for the identifiers in request.
// Identifiers not found are ignored; a non-numeric identifier fails the
// call without side effects.
func (p *Pairer) Pair(st *store.Store, request string, withSamples bool) (*Result, error) {
	ids, err := ParseRequest(request)
	if err != nil {
		return nil, err
	}

	anchorCols, partnerCols := p.resolve(st)
	res := &Result{}
	for _, c := range anchorCols {
		res.Columns = append(res.Columns, st.Columns()[c].Name)
	}
	for _, c := range partnerCols {
		res.Columns = append(res.Columns, PartnerPrefix+st.Columns()[c].Name)
	}
	if withSamples {
		res.SampleColumns = sampleColumns(st)
	}

	wanted := make(map[int64]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	rowID := p.rowIdentifier(st)

	// matched[0] is the anchor; the rest keep encounter order
	matched := []int{-1}
	for _, row := range st.View().Rows() {
		id := rowID(row)
		switch {
		case !wanted[id]:
		case id == ids[0] && matched[0] < 0:
			matched[0] = row
		default:
			matched = append(matched, row)
		}
	}
	if matched[0] < 0 {
		p.logger.Debug("pairing anchor not among masked rows", zap.Int64("anchor", ids[0]))
		return res, nil
	}

	anchor := matched[0]
	anchorValues := decode(st, anchor, anchorCols)
	for _, partner := range matched[1:] {
		rec := Record{
			Anchor:    anchor,
			Partner:   partner,
			AnchorID:  rowID(anchor),
			PartnerID: rowID(partner),
			Values:    append(append([]string(nil), anchorValues...), decode(st, partner, partnerCols)...),
		}
		if withSamples {
			rec.Samples = sampleDetail(st, anchor, partner)
		}
		res.Records = append(res.Records, rec)
	}

	p.logger.Debug("paired rows",
		zap.String("request", request),
		zap.Int("matched", len(matched)),
		zap.Int("records", len(res.Records)))
	return res, nil
}

// RequestForRow returns the linkage list stored on row, or false when the
// store has no linkage column or the cell is a not-applicable token.
func (p *Pairer) RequestForRow(st *store.Store, row int) (string, bool) {
	col := st.ColumnIndex(p.linkageColumn)
	if col < 0 || row < 0 || row >= st.NumRows() {
		return "", false
	}
	v := strings.TrimSpace(st.DecodeAnnotation(row, col))
	if p.notApplicable[v] {
		return "", false
	}
	return v, true
}

// ParseRequest parses a comma-separated list of row identifiers.
func ParseRequest(request string) ([]int64, error) {
	parts := strings.Split(request, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, vserrors.Wrap(vserrors.ErrCategoryPairing, vserrors.CodeMalformedLinkage,
				fmt.Sprintf("linkage list %q: %q is not a row identifier", request, part), err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// resolve maps the projection to column indices. Absent columns are skipped.
func (p *Pairer) resolve(st *store.Store) (anchor, partner []int) {
	for i, name := range p.Projection {
		c := st.ColumnIndex(name)
		if c < 0 {
			continue
		}
		anchor = append(anchor, c)
		if i >= anchorFields {
			partner = append(partner, c)
		}
	}
	return anchor, partner
}

// rowIdentifier returns the row's Index value, or its 0-based row number
// when the store has no usable Index column.
func (p *Pairer) rowIdentifier(st *store.Store) func(row int) int64 {
	col := st.ColumnIndex(p.idColumn)
	if col < 0 {
		return func(row int) int64 { return int64(row) }
	}
	tbl := st.ColumnDict(col)
	return func(row int) int64 {
		v, ok := tbl.Numeric(st.Annotation(row, col))
		if !ok || v != math.Trunc(v) {
			return math.MinInt64
		}
		return int64(v)
	}
}

func decode(st *store.Store, row int, cols []int) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = st.DecodeAnnotation(row, c)
	}
	return out
}

func sampleColumns(st *store.Store) []string {
	fields := st.SampleFields()
	out := make([]string, 0, 2*len(fields))
	for _, f := range fields {
		out = append(out, fieldName(f.Name))
	}
	for _, f := range fields {
		out = append(out, PartnerPrefix+fieldName(f.Name))
	}
	return out
}

func fieldName(name string) string {
	if name == "" {
		return "genotype"
	}
	return name
}

func sampleDetail(st *store.Store, anchor, partner int) [][]string {
	nFields := len(st.SampleFields())
	out := make([][]string, len(st.Samples()))
	for s := range out {
		cells := make([]string, 0, 2*nFields)
		for f := 0; f < nFields; f++ {
			cells = append(cells, st.DecodeSample(anchor, s, f))
		}
		for f := 0; f < nFields; f++ {
			cells = append(cells, st.DecodeSample(partner, s, f))
		}
		out[s] = cells
	}
	return out
}
