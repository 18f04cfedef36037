package filter

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teerjk/VarSifter-sub000/internal/config"
	"github.com/teerjk/VarSifter-sub000/internal/dict"
	vserrors "github.com/teerjk/VarSifter-sub000/internal/errors"
	"github.com/teerjk/VarSifter-sub000/internal/logging"
	"github.com/teerjk/VarSifter-sub000/internal/mask"
	"github.com/teerjk/VarSifter-sub000/internal/observability"
	"github.com/teerjk/VarSifter-sub000/internal/storage"
	"github.com/teerjk/VarSifter-sub000/internal/store"
	"github.com/teerjk/VarSifter-sub000/pkg/types"
)

// Evaluator runs a custom row predicate expression over a store.
type Evaluator interface {
	Evaluate(ctx context.Context, st *store.Store, expr string) (*mask.Mask, error)
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logging.OrNop(logger)
	}
}

// WithStats records per-category statistics into stats.
func WithStats(stats *observability.FilterStats) EngineOption {
	return func(e *Engine) { e.stats = stats }
}

// WithEvaluator sets the evaluator used for custom expressions.
func WithEvaluator(ev Evaluator) EngineOption {
	return func(e *Engine) { e.eval = ev }
}

// Engine computes row inclusion masks.
type Engine struct {
	cfg    *config.Config
	fs     storage.FileStorage
	logger *zap.Logger
	stats  *observability.FilterStats
	eval   Evaluator
}

// NewEngine creates an engine reading auxiliary files through fs.
func NewEngine(cfg *config.Config, fs storage.FileStorage, opts ...EngineOption) *Engine {
	e := &Engine{cfg: cfg, fs: fs, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CategoryResult describes one evaluated category.
type CategoryResult struct {
	Name     string
	Kept     int
	Duration time.Duration
}

// Result is the outcome of one filter run.
type Result struct {
	Mask       *mask.Mask
	Kept       int
	Categories []CategoryResult

	// Reported holds recoverable failures that deactivated a category
	// instead of aborting the run.
	Reported []error
}

// category is a planned per-row test.
type category struct {
	name  string
	match func(row int) bool
}

// Apply evaluates spec and installs the resulting mask on st. On error the
// store's mask and view are unchanged.
func (e *Engine) Apply(ctx context.Context, st *store.Store, spec Spec) (*Result, error) {
	res, err := e.Evaluate(ctx, st, spec)
	if err != nil {
		return nil, err
	}
	if err := st.SetMask(res.Mask); err != nil {
		return nil, err
	}
	return res, nil
}

// Evaluate computes the mask for spec without touching st.
func (e *Engine) Evaluate(ctx context.Context, st *store.Store, spec Spec) (*Result, error) {
	start := time.Now()

	aux, err := loadAux(ctx, e.fs, spec)
	if err != nil {
		return nil, err
	}
	cats, err := e.plan(st, spec, aux)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	if spec.Expression != "" {
		if m, err := e.expression(ctx, st, spec.Expression); err != nil {
			e.logger.Warn("custom expression skipped", zap.String("expression", spec.Expression), zap.Error(err))
			res.Reported = append(res.Reported, err)
		} else {
			cats = append(cats, category{name: CategoryExpression, match: m.Contains})
		}
	}

	n := st.NumRows()
	running := mask.All(n)
	for _, c := range cats {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t0 := time.Now()
		keep := mask.None(n)
		running.ForEach(func(row int) bool {
			if c.match(row) {
				keep.Set(row)
			}
			return true
		})
		running.And(keep)

		cr := CategoryResult{Name: c.name, Kept: running.Count(), Duration: time.Since(t0)}
		res.Categories = append(res.Categories, cr)
		if e.stats != nil {
			e.stats.RecordCategory(cr.Name, cr.Kept, cr.Duration)
		}
		e.logger.Debug("filter category applied",
			zap.String("category", cr.Name),
			zap.Int("kept", cr.Kept),
			zap.Duration("duration", cr.Duration))
	}

	res.Mask = running
	res.Kept = running.Count()
	if e.stats != nil {
		e.stats.RecordRun(n, res.Kept, time.Since(start))
	}
	e.logger.Info("filter applied",
		zap.Stringer("store", st.ID()),
		zap.Int("rows", n),
		zap.Int("kept", res.Kept),
		zap.Int("categories", len(res.Categories)),
		zap.Duration("duration", time.Since(start)))
	return res, nil
}

func (e *Engine) expression(ctx context.Context, st *store.Store, expr string) (*mask.Mask, error) {
	if e.eval == nil {
		return nil, vserrors.New(vserrors.ErrCategoryQuery, vserrors.CodeCompileError, "no expression evaluator configured")
	}
	m, err := e.eval.Evaluate(ctx, st, expr)
	if err != nil {
		return nil, err
	}
	if m.Size() != st.NumRows() {
		return nil, vserrors.Newf(vserrors.ErrCategoryQuery, vserrors.CodeRowCountMismatch,
			"expression mask covers %d rows, store has %d", m.Size(), st.NumRows())
	}
	return m, nil
}

// plan resolves every column and sample the spec needs. Any failure here
// aborts the run before a row is examined.
func (e *Engine) plan(st *store.Store, spec Spec, aux *auxFiles) ([]category, error) {
	cols := e.cfg.Columns
	var cats []category

	if len(spec.VariantTypes) > 0 {
		col, err := column(st, cols.Type)
		if err != nil {
			return nil, err
		}
		match := e.variantTypeMatcher(st.ColumnDict(col), spec.VariantTypes)
		cats = append(cats, category{CategoryVariantType, func(row int) bool {
			return match(st.Annotation(row, col))
		}})
	}

	if spec.ExcludeDBSNP {
		col, err := column(st, cols.DBID)
		if err != nil {
			return nil, err
		}
		na := e.notApplicable(st.ColumnDict(col))
		cats = append(cats, category{CategoryDBSNP, func(row int) bool {
			return na[st.Annotation(row, col)]
		}})
	}

	flags := []struct {
		on   bool
		name string
		col  string
	}{
		{spec.FlagHomRecessive, CategoryHomRecessive, cols.FlagHomRecessive},
		{spec.FlagDominant, CategoryDominant, cols.FlagDominant},
		{spec.FlagInconsistent, CategoryInconsistent, cols.FlagInconsistent},
		{spec.CompoundHet, CategoryCompoundHet, cols.Linkage},
	}
	for _, f := range flags {
		if !f.on {
			continue
		}
		col, err := column(st, f.col)
		if err != nil {
			return nil, err
		}
		na := e.notApplicable(st.ColumnDict(col))
		cats = append(cats, category{f.name, func(row int) bool {
			return !na[st.Annotation(row, col)]
		}})
	}

	if an := spec.AffectedNormal; an != nil {
		c, err := e.affectedNormal(st, an)
		if err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	if cc := spec.CaseControl; cc != nil {
		c, err := e.caseControl(st, cc)
		if err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}

	if aux.include != nil || aux.exclude != nil {
		col, err := column(st, cols.Gene)
		if err != nil {
			return nil, err
		}
		tbl := st.ColumnDict(col)
		if set := aux.include; set != nil {
			match := memoize(tbl, set.Contains)
			cats = append(cats, category{CategoryGeneInclude, func(row int) bool {
				return match(st.Annotation(row, col))
			}})
		}
		if set := aux.exclude; set != nil {
			match := memoize(tbl, set.Contains)
			cats = append(cats, category{CategoryGeneExclude, func(row int) bool {
				return !match(st.Annotation(row, col))
			}})
		}
	}

	if aux.bed != nil {
		c, err := bedCategory(st, cols, aux.bed)
		if err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}

	if spec.GenePattern != "" {
		re, err := regexp.Compile("(?i)" + spec.GenePattern)
		if err != nil {
			return nil, vserrors.NewFilterError(vserrors.CodeParseError, "invalid gene pattern "+spec.GenePattern, err)
		}
		col, err := column(st, cols.Gene)
		if err != nil {
			return nil, err
		}
		match := memoize(st.ColumnDict(col), re.MatchString)
		cats = append(cats, category{CategoryGenePattern, func(row int) bool {
			return match(st.Annotation(row, col))
		}})
	}

	if spec.MinGenotypeQuality > 0 {
		gate := e.newQualityGate(st, spec.MinGenotypeQuality)
		need := max(spec.MinQualitySamples, 1)
		nSamples := len(st.Samples())
		cats = append(cats, category{CategoryQuality, func(row int) bool {
			n := 0
			for s := 0; s < nSamples && n < need; s++ {
				if gate.pass(row, s) {
					n++
				}
			}
			return n >= need
		}})
	}

	if spec.MinCoverageRatio > 0 {
		cats = append(cats, e.coverageRatio(st, spec.MinCoverageRatio, max(spec.MinRatioSamples, 1)))
	}
	return cats, nil
}

func (e *Engine) variantTypeMatcher(tbl dict.Table, wanted []string) func(int32) bool {
	isWanted := func(tok string) bool {
		return slices.ContainsFunc(wanted, func(w string) bool { return strings.EqualFold(w, tok) })
	}
	if mt, ok := tbl.(*dict.MultiTable); ok {
		bits := mt.MatchingMask(isWanted)
		return func(code int32) bool { return code&bits != 0 }
	}

	// A type column that was not bitmask encoded is split per distinct value.
	delims := e.cfg.Ingest.MultiValueDelimiters
	return memoize(tbl, func(v string) bool {
		toks := strings.FieldsFunc(v, func(r rune) bool { return strings.ContainsRune(delims, r) })
		return slices.ContainsFunc(toks, isWanted)
	})
}

// notApplicable returns the codes of tbl that spell a "no value" token.
func (e *Engine) notApplicable(tbl dict.Table) map[int32]bool {
	out := make(map[int32]bool, len(e.cfg.Filter.NotApplicable))
	for _, tok := range e.cfg.Filter.NotApplicable {
		if code, ok := tbl.CodeOf(tok); ok {
			out[code] = true
		}
	}
	return out
}

func (e *Engine) affectedNormal(st *store.Store, spec *AffectedNormalSpec) (category, error) {
	type pair struct{ a, n int }
	pairs := make([]pair, 0, len(spec.Pairs))
	for _, p := range spec.Pairs {
		a, err := sample(st, p.Affected)
		if err != nil {
			return category{}, err
		}
		n, err := sample(st, p.Normal)
		if err != nil {
			return category{}, err
		}
		pairs = append(pairs, pair{a, n})
	}

	unknown := unknownGenotype(st)
	gate := e.newQualityGate(st, spec.MinQuality)
	return category{CategoryAffectedNormal, func(row int) bool {
		differing := 0
		for _, p := range pairs {
			ga := st.Sample(row, p.a, store.GenotypeField)
			gn := st.Sample(row, p.n, store.GenotypeField)
			if ga == gn || ga == unknown || gn == unknown {
				continue
			}
			if gate.pass(row, p.a) && gate.pass(row, p.n) {
				differing++
			}
		}
		return differing >= spec.MinDiffering
	}}, nil
}

func (e *Engine) caseControl(st *store.Store, spec *CaseControlSpec) (category, error) {
	cases, err := samples(st, spec.Cases)
	if err != nil {
		return category{}, err
	}
	controls, err := samples(st, spec.Controls)
	if err != nil {
		return category{}, err
	}
	zyg, err := e.newZygosityCache(st)
	if err != nil {
		return category{}, err
	}

	gate := e.newQualityGate(st, spec.MinQuality)
	carriers := func(row int, idx []int) int {
		n := 0
		for _, s := range idx {
			if zyg.of(row, s).CarriesVariant() && gate.pass(row, s) {
				n++
			}
		}
		return n
	}
	return category{CategoryCaseControl, func(row int) bool {
		return carriers(row, cases) >= spec.MinCases && carriers(row, controls) <= spec.MaxControls
	}}, nil
}

func bedCategory(st *store.Store, cols config.ColumnsConfig, idx *Intervals) (category, error) {
	chromCol, err := column(st, cols.Chromosome)
	if err != nil {
		return category{}, err
	}
	posCol, err := column(st, cols.LeftFlank)
	if err != nil {
		return category{}, err
	}

	chromDict, posDict := st.ColumnDict(chromCol), st.ColumnDict(posCol)
	ranges := make(map[int32][]Interval)
	return category{CategoryBED, func(row int) bool {
		left, ok := posDict.Numeric(st.Annotation(row, posCol))
		if !ok {
			return false
		}
		code := st.Annotation(row, chromCol)
		list, seen := ranges[code]
		if !seen {
			list = idx.byChrom[normalizeChrom(chromDict.ValueOf(code))]
			ranges[code] = list
		}
		return containsPos(list, int64(left)+1)
	}}, nil
}

func (e *Engine) coverageRatio(st *store.Store, ratio float64, need int) category {
	sf := e.cfg.Samples
	score, cov := st.SampleFieldIndex(sf.ScoreField), st.SampleFieldIndex(sf.CoverageField)
	if score < 0 || cov < 0 {
		e.logger.Warn("coverage ratio gate without score and coverage fields excludes every row",
			zap.String("score_field", sf.ScoreField), zap.String("coverage_field", sf.CoverageField))
		return category{CategoryCoverageRatio, func(int) bool { return false }}
	}

	scoreDict, covDict := st.FieldDict(score), st.FieldDict(cov)
	nSamples := len(st.Samples())
	return category{CategoryCoverageRatio, func(row int) bool {
		n := 0
		for s := 0; s < nSamples && n < need; s++ {
			q, ok1 := scoreDict.Numeric(st.Sample(row, s, score))
			d, ok2 := covDict.Numeric(st.Sample(row, s, cov))
			if ok1 && ok2 && d > 0 && q/d >= ratio {
				n++
			}
		}
		return n >= need
	}}
}

// qualityGate tests a sample's score against a minimum. A zero minimum
// passes everything; a positive minimum without a score field passes nothing.
type qualityGate struct {
	st    *store.Store
	field int
	tbl   dict.Table
	min   float64
}

func (e *Engine) newQualityGate(st *store.Store, minimum float64) qualityGate {
	g := qualityGate{st: st, field: st.SampleFieldIndex(e.cfg.Samples.ScoreField), min: minimum}
	if g.field >= 0 {
		g.tbl = st.FieldDict(g.field)
	}
	return g
}

func (g qualityGate) pass(row, smp int) bool {
	if g.min <= 0 {
		return true
	}
	if g.field < 0 {
		return false
	}
	v, ok := g.tbl.Numeric(g.st.Sample(row, smp, g.field))
	return ok && v >= g.min
}

type zygKey struct{ gt, ref, alt int32 }

// zygosityCache classifies genotype codes against a row's alleles. Rows
// repeat the same few (genotype, ref, variant) triples.
type zygosityCache struct {
	st             *store.Store
	refCol, varCol int
	gt, refs, alts dict.Table
	cache          map[zygKey]types.Zygosity
}

func (e *Engine) newZygosityCache(st *store.Store) (*zygosityCache, error) {
	refCol, err := column(st, e.cfg.Columns.RefAllele)
	if err != nil {
		return nil, err
	}
	varCol, err := column(st, e.cfg.Columns.VarAllele)
	if err != nil {
		return nil, err
	}
	return &zygosityCache{
		st:     st,
		refCol: refCol,
		varCol: varCol,
		gt:     st.FieldDict(store.GenotypeField),
		refs:   st.ColumnDict(refCol),
		alts:   st.ColumnDict(varCol),
		cache:  make(map[zygKey]types.Zygosity),
	}, nil
}

func (z *zygosityCache) of(row, smp int) types.Zygosity {
	k := zygKey{
		gt:  z.st.Sample(row, smp, store.GenotypeField),
		ref: z.st.Annotation(row, z.refCol),
		alt: z.st.Annotation(row, z.varCol),
	}
	if v, ok := z.cache[k]; ok {
		return v
	}
	v := types.ClassifyGenotype(z.gt.ValueOf(k.gt), z.refs.ValueOf(k.ref), z.alts.ValueOf(k.alt))
	z.cache[k] = v
	return v
}

func containsPos(list []Interval, pos int64) bool {
	lo, hi := 0, len(list)
	for lo < hi {
		mid := (lo + hi) / 2
		if list[mid].End < pos {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo < len(list) && list[lo].Start <= pos
}

// memoize wraps a test over decoded values into a test over codes.
func memoize(tbl dict.Table, test func(string) bool) func(int32) bool {
	seen := make(map[int32]bool)
	return func(code int32) bool {
		if v, ok := seen[code]; ok {
			return v
		}
		v := test(tbl.ValueOf(code))
		seen[code] = v
		return v
	}
}

func unknownGenotype(st *store.Store) int32 {
	if code, ok := st.FieldDict(store.GenotypeField).CodeOf(types.UnknownGenotype); ok {
		return code
	}
	return dict.NotFound
}

func column(st *store.Store, name string) (int, error) {
	col := st.ColumnIndex(name)
	if col < 0 {
		return -1, vserrors.NewFilterError(vserrors.CodeUnknownColumn,
			fmt.Sprintf("column %q not found", name), nil)
	}
	return col, nil
}

func sample(st *store.Store, name string) (int, error) {
	s := st.SampleIndex(name)
	if s < 0 {
		return -1, vserrors.NewFilterError(vserrors.CodeUnknownSample,
			fmt.Sprintf("sample %q not found", name), nil)
	}
	return s, nil
}

func samples(st *store.Store, names []string) ([]int, error) {
	out := make([]int, 0, len(names))
	for _, n := range names {
		s, err := sample(st, n)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
