package filter

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teerjk/VarSifter-sub000/internal/config"
	vserrors "github.com/teerjk/VarSifter-sub000/internal/errors"
	"github.com/teerjk/VarSifter-sub000/internal/ingest"
	"github.com/teerjk/VarSifter-sub000/internal/mask"
	"github.com/teerjk/VarSifter-sub000/internal/observability"
	"github.com/teerjk/VarSifter-sub000/internal/storage"
	"github.com/teerjk/VarSifter-sub000/internal/store"
)

const fixtureHeader = "Index\tChr\tLeftFlank\tRightFlank\tGene_name\ttype\tmuttype\tref_allele\tvar_allele\tdbID\t" +
	"MendHomRec\tMendDom\tMendBad\tMendHetRec\t" +
	"S1.NA\tS1.NA.score\tS1.NA.coverage\tS2.NA\tS2.NA.score\tS2.NA.coverage\tS3.NA\tS3.NA.score\tS3.NA.coverage"

var fixtureRows = []string{
	"10\t1\t99\t100\tBRCA1\tSNP\tSNP\tA\tG\trs1\t1\t0\t0\t10,11,12\tAG\t30\t10\tGG\t40\t20\tAA\t50\t25",
	"11\t1\t199\t200\tBRCA2\tSNP/INDEL\tINDEL\tA\tT\t-\t0\t1\t0\t10,11,12\tAA\t30\t10\tAT\t20\t10\tAT\t60\t30",
	"12\tX\t299\t300\tTP53\tINDEL\tINDEL\tC\tT\trs3\t0\t0\t1\t0\tNA\t0\t0\tCT\t5\t10\tCC\t99\t50",
	"13\tchr2\t499\t500\tEGFR\tSNP\tSNP\tG\tA\t-\t0\t0\t0\t0\tAG\t45\t15\tAG\t45\t15\tGG\t45\t15",
}

type testEnv struct {
	dir    string
	st     *store.Store
	engine *Engine
}

func newEnv(t *testing.T, opts ...EngineOption) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	fs := storage.NewLocalStorage(dir)

	content := fixtureHeader + "\n" + strings.Join(fixtureRows, "\n") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "calls.tsv"), []byte(content), 0644))
	st, err := ingest.NewLoader(cfg, fs).Load(context.Background(), "calls.tsv")
	require.NoError(t, err)

	return &testEnv{dir: dir, st: st, engine: NewEngine(cfg, fs, opts...)}
}

func (e *testEnv) write(t *testing.T, name, content string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(e.dir, name), []byte(content), 0644))
	return name
}

func (e *testEnv) apply(t *testing.T, spec Spec) []int {
	t.Helper()
	res, err := e.engine.Apply(context.Background(), e.st, spec)
	require.NoError(t, err)
	assert.Equal(t, res.Kept, e.st.View().Len())
	return res.Mask.Rows()
}

type stubEvaluator struct {
	rows []int
	err  error
}

func (s stubEvaluator) Evaluate(_ context.Context, st *store.Store, _ string) (*mask.Mask, error) {
	if s.err != nil {
		return nil, s.err
	}
	return mask.FromRows(st.NumRows(), s.rows...), nil
}

func TestApply_EmptySpecKeepsEverything(t *testing.T) {
	env := newEnv(t)
	assert.Equal(t, []int{0, 1, 2, 3}, env.apply(t, Spec{}))
	assert.True(t, env.st.Mask().IsFull())
}

func TestApply_VariantType(t *testing.T) {
	env := newEnv(t)
	assert.Equal(t, []int{1, 2}, env.apply(t, Spec{VariantTypes: []string{"INDEL"}}))
	assert.Equal(t, []int{0, 1, 3}, env.apply(t, Spec{VariantTypes: []string{"snp"}}))
	assert.Equal(t, []int{0, 1, 2, 3}, env.apply(t, Spec{VariantTypes: []string{"SNP", "INDEL"}}))
	assert.Empty(t, env.apply(t, Spec{VariantTypes: []string{"splice"}}))
}

func TestApply_VariantTypeSNPversusSNPIndel(t *testing.T) {
	env := newEnv(t)
	rows := env.apply(t, Spec{VariantTypes: []string{"INDEL"}})
	assert.Contains(t, rows, 1, "SNP/INDEL row carries INDEL")
	assert.NotContains(t, rows, 0, "SNP row does not")
}

func TestApply_DBSNPAndFlags(t *testing.T) {
	env := newEnv(t)
	assert.Equal(t, []int{1, 3}, env.apply(t, Spec{ExcludeDBSNP: true}))
	assert.Equal(t, []int{0}, env.apply(t, Spec{FlagHomRecessive: true}))
	assert.Equal(t, []int{1}, env.apply(t, Spec{FlagDominant: true}))
	assert.Equal(t, []int{2}, env.apply(t, Spec{FlagInconsistent: true}))
	assert.Equal(t, []int{0, 1}, env.apply(t, Spec{CompoundHet: true}))
	assert.Empty(t, env.apply(t, Spec{FlagHomRecessive: true, FlagDominant: true}))
}

func TestApply_CaseControl(t *testing.T) {
	env := newEnv(t)
	cc := &CaseControlSpec{
		Cases:       []string{"S1", "S2"},
		Controls:    []string{"S3"},
		MinCases:    2,
		MaxControls: 0,
		MinQuality:  25,
	}
	assert.Equal(t, []int{0, 3}, env.apply(t, Spec{CaseControl: cc}))

	never := *cc
	never.MaxControls = -1
	assert.Empty(t, env.apply(t, Spec{CaseControl: &never}))

	strict := *cc
	strict.MinQuality = 35
	assert.Equal(t, []int{3}, env.apply(t, Spec{CaseControl: &strict}))

	loose := *cc
	loose.MinCases = 1
	loose.MaxControls = 1
	loose.MinQuality = 0
	assert.Equal(t, []int{0, 1, 2, 3}, env.apply(t, Spec{CaseControl: &loose}))
}

func TestApply_AffectedNormal(t *testing.T) {
	env := newEnv(t)
	an := &AffectedNormalSpec{
		Pairs:        []SamplePair{{Affected: "S1", Normal: "S3"}, {Affected: "S2", Normal: "S3"}},
		MinDiffering: 2,
	}
	assert.Equal(t, []int{0, 3}, env.apply(t, Spec{AffectedNormal: an}))

	one := *an
	one.MinDiffering = 1
	assert.Equal(t, []int{0, 1, 2, 3}, env.apply(t, Spec{AffectedNormal: &one}))

	gated := *an
	gated.MinQuality = 35
	assert.Equal(t, []int{3}, env.apply(t, Spec{AffectedNormal: &gated}))
}

func TestApply_GeneLists(t *testing.T) {
	env := newEnv(t)
	list := env.write(t, "genes.txt", "# panel\nbrca1\n  TP53 \n\n")
	assert.Equal(t, []int{0, 2}, env.apply(t, Spec{GeneIncludeFile: list}))
	assert.Equal(t, []int{1, 3}, env.apply(t, Spec{GeneExcludeFile: list}))
	assert.Empty(t, env.apply(t, Spec{GeneIncludeFile: list, GeneExcludeFile: list}))
}

func TestApply_BED(t *testing.T) {
	env := newEnv(t)
	bed := env.write(t, "regions.bed", "track name=panel\nbrowser position chr1\nchr1\t99\t150\nX 290 300\n")
	assert.Equal(t, []int{0, 2}, env.apply(t, Spec{BEDFile: bed}))

	// half-open end: position 100 is outside [0,99)
	edge := env.write(t, "edge.bed", "1\t0\t99\n")
	assert.Empty(t, env.apply(t, Spec{BEDFile: edge}))
}

func TestApply_GenePattern(t *testing.T) {
	env := newEnv(t)
	assert.Equal(t, []int{0, 1}, env.apply(t, Spec{GenePattern: "^brca"}))
	assert.Equal(t, []int{2}, env.apply(t, Spec{GenePattern: "p5"}))
}

func TestApply_QualityGates(t *testing.T) {
	env := newEnv(t)
	assert.Equal(t, []int{3}, env.apply(t, Spec{MinGenotypeQuality: 45, MinQualitySamples: 2}))
	assert.Equal(t, []int{0, 1, 2, 3}, env.apply(t, Spec{MinGenotypeQuality: 45, MinQualitySamples: 1}))
	assert.Equal(t, []int{0, 1, 3}, env.apply(t, Spec{MinCoverageRatio: 3}))
	assert.Equal(t, []int{0, 1, 2, 3}, env.apply(t, Spec{MinCoverageRatio: 0}))
}

func TestApply_ErrorsLeaveMaskUnchanged(t *testing.T) {
	env := newEnv(t)
	env.apply(t, Spec{FlagDominant: true})
	before := env.st.Mask()

	tests := []struct {
		name string
		spec Spec
		code string
	}{
		{"unknown sample", Spec{CaseControl: &CaseControlSpec{Cases: []string{"nobody"}}}, vserrors.CodeUnknownSample},
		{"missing gene list", Spec{GeneIncludeFile: "missing.txt"}, vserrors.CodeAuxFile},
		{"bad bed", Spec{BEDFile: env.write(t, "bad.bed", "1\t10\n")}, vserrors.CodeAuxFile},
		{"bad pattern", Spec{GenePattern: "("}, vserrors.CodeParseError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.engine.Apply(context.Background(), env.st, tt.spec)
			require.Error(t, err)
			assert.Equal(t, tt.code, vserrors.GetCode(err))
			assert.False(t, vserrors.IsFatal(err))
			assert.True(t, before.Equal(env.st.Mask()))
		})
	}
}

func TestApply_UnknownColumn(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Columns.FlagDominant = "NoSuchFlag"
	env := newEnv(t)
	engine := NewEngine(cfg, storage.NewLocalStorage(env.dir))

	_, err := engine.Apply(context.Background(), env.st, Spec{FlagDominant: true})
	require.Error(t, err)
	assert.Equal(t, vserrors.CodeUnknownColumn, vserrors.GetCode(err))
}

func TestApply_Expression(t *testing.T) {
	env := newEnv(t, WithEvaluator(stubEvaluator{rows: []int{0, 1}}))
	res, err := env.engine.Apply(context.Background(), env.st, Spec{
		VariantTypes: []string{"INDEL"},
		Expression:   "qual > 1",
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, res.Mask.Rows())
	assert.Empty(t, res.Reported)
}

func TestApply_ExpressionFailureIsReported(t *testing.T) {
	failing := vserrors.NewQueryError(vserrors.CodeParseError, "unexpected token")
	env := newEnv(t, WithEvaluator(stubEvaluator{err: failing}))

	res, err := env.engine.Apply(context.Background(), env.st, Spec{
		VariantTypes: []string{"INDEL"},
		Expression:   "qual >",
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, res.Mask.Rows())
	require.Len(t, res.Reported, 1)
	assert.ErrorIs(t, res.Reported[0], failing)

	// without an evaluator the expression is reported too
	plain := newEnv(t)
	res, err = plain.engine.Apply(context.Background(), plain.st, Spec{Expression: "x"})
	require.NoError(t, err)
	assert.Len(t, res.Reported, 1)
	assert.Equal(t, 4, res.Kept)
}

func TestApply_RecordsStats(t *testing.T) {
	stats := observability.NewFilterStats(0)
	env := newEnv(t, WithStats(stats))
	env.apply(t, Spec{VariantTypes: []string{"SNP"}, ExcludeDBSNP: true})

	assert.EqualValues(t, 1, stats.Runs())
	assert.Equal(t, 2, stats.LastRun().Kept)
	cs, ok := stats.Category(CategoryDBSNP)
	require.True(t, ok)
	assert.Equal(t, 2, cs.LastKept)
	assert.Len(t, stats.TopCategories(10), 2)
}

func TestApply_ChildMaskIndependent(t *testing.T) {
	env := newEnv(t)
	child, err := env.st.Subset([]int{1, 2})
	require.NoError(t, err)

	_, err = env.engine.Apply(context.Background(), child, Spec{FlagInconsistent: true})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, child.Mask().Rows())
	assert.True(t, env.st.Mask().IsFull())
}

func TestProperty_FilterMonotonicity(t *testing.T) {
	env := newEnv(t, WithEvaluator(stubEvaluator{rows: []int{0, 2, 3}}))
	genes := env.write(t, "genes.txt", "BRCA1\nBRCA2\nEGFR\n")
	bed := env.write(t, "regions.bed", "chr1 0 1000\nchr2 0 1000\n")

	toggles := []func(*Spec){
		func(s *Spec) { s.VariantTypes = []string{"SNP"} },
		func(s *Spec) { s.ExcludeDBSNP = true },
		func(s *Spec) { s.FlagHomRecessive = true },
		func(s *Spec) { s.FlagDominant = true },
		func(s *Spec) { s.FlagInconsistent = true },
		func(s *Spec) { s.CompoundHet = true },
		func(s *Spec) {
			s.AffectedNormal = &AffectedNormalSpec{Pairs: []SamplePair{{"S1", "S3"}}, MinDiffering: 1}
		},
		func(s *Spec) {
			s.CaseControl = &CaseControlSpec{Cases: []string{"S1", "S2"}, Controls: []string{"S3"}, MinCases: 1}
		},
		func(s *Spec) { s.GeneIncludeFile = genes },
		func(s *Spec) { s.GeneExcludeFile = "genes.txt" },
		func(s *Spec) { s.BEDFile = bed },
		func(s *Spec) { s.Expression = "stub" },
	}
	build := func(on []bool) Spec {
		s := Spec{GenePattern: "[A-Z]", MinGenotypeQuality: 10}
		for i, set := range on {
			if set {
				toggles[i](&s)
			}
		}
		return s
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("activating more categories never grows the mask", prop.ForAll(
		func(base, extra []bool) bool {
			more := make([]bool, len(base))
			for i := range base {
				more[i] = base[i] || extra[i]
			}
			s1, s2 := build(base), build(more)
			if !s2.Includes(s1) {
				return false
			}
			r1, err := env.engine.Evaluate(context.Background(), env.st, s1)
			if err != nil {
				return false
			}
			r2, err := env.engine.Evaluate(context.Background(), env.st, s2)
			if err != nil {
				return false
			}
			return r2.Mask.SubsetOf(r1.Mask)
		},
		gen.SliceOfN(len(toggles), gen.Bool()),
		gen.SliceOfN(len(toggles), gen.Bool()),
	))

	properties.TestingRun(t)
}

func TestRequestSpec(t *testing.T) {
	req := &Request{
		VariantTypes:       []string{" SNP ", ""},
		MinGenotypeQuality: "20",
		MinQualitySamples:  "two",
		MinCoverageRatio:   "",
		CaseControl: &CaseControlRequest{
			Cases:       []string{"S1"},
			Controls:    []string{"S3"},
			MinCases:    "1",
			MaxControls: "x",
			MinQuality:  "12.5",
		},
		AffectedNormal: &AffectedNormalRequest{
			Pairs:        []SamplePair{{Affected: "S1", Normal: "S2"}},
			MinDiffering: "",
		},
	}
	spec := req.Spec(zap.NewNop())

	assert.Equal(t, []string{"SNP"}, spec.VariantTypes)
	assert.Equal(t, 20.0, spec.MinGenotypeQuality)
	assert.Equal(t, DefaultMinSamples, spec.MinQualitySamples)
	assert.Equal(t, DefaultCoverageRatio, spec.MinCoverageRatio)
	require.NotNil(t, spec.CaseControl)
	assert.Equal(t, DefaultMaxControls, spec.CaseControl.MaxControls)
	assert.Equal(t, 12.5, spec.CaseControl.MinQuality)
	require.NotNil(t, spec.AffectedNormal)
	assert.Equal(t, DefaultMinDiffering, spec.AffectedNormal.MinDiffering)
	assert.Equal(t, []string{CategoryVariantType, CategoryAffectedNormal, CategoryCaseControl}, spec.Active())
}

func TestLoadRequest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spec.yaml")
	yml := `
variant_types: [INDEL]
exclude_dbsnp: true
case_control:
  cases: [S1, S2]
  controls: [S3]
  min_cases: "2"
  max_controls: "0"
gene_pattern: brca
expression: "isHet(gt('S1'))"
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0644))
	req, err := LoadRequest(path)
	require.NoError(t, err)

	spec := req.Spec(nil)
	assert.Equal(t, []string{"INDEL"}, spec.VariantTypes)
	assert.True(t, spec.ExcludeDBSNP)
	assert.Equal(t, 2, spec.CaseControl.MinCases)
	assert.Equal(t, "isHet(gt('S1'))", spec.Expression)

	jsonPath := filepath.Join(dir, "spec.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"compound_het": true, "min_genotype_quality": "30"}`), 0644))
	req, err = LoadRequest(jsonPath)
	require.NoError(t, err)
	spec = req.Spec(nil)
	assert.True(t, spec.CompoundHet)
	assert.Equal(t, 30.0, spec.MinGenotypeQuality)

	_, err = LoadRequest(filepath.Join(dir, "missing.yaml"))
	assert.Equal(t, vserrors.CodeAuxFile, vserrors.GetCode(err))
}

func TestLoadBEDAndGeneList(t *testing.T) {
	dir := t.TempDir()
	fs := storage.NewLocalStorage(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "r.bed"), []byte("chr1 10 20\n1 15 30\nchr1 40 50\n"), 0644))

	idx, err := LoadBED(context.Background(), fs, "r.bed")
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len(), "overlapping ranges merge across chr spellings")
	assert.False(t, idx.Contains("1", 10))
	assert.True(t, idx.Contains("chr1", 11))
	assert.True(t, idx.Contains("CHR1", 30))
	assert.False(t, idx.Contains("1", 31))
	assert.True(t, idx.Contains("1", 41))
	assert.False(t, idx.Contains("2", 41))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "g.txt"), []byte("BRCA1\r\n#x\nbrca1\nTp53\n"), 0644))
	set, err := LoadGeneList(context.Background(), fs, "g.txt")
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Contains("brca1"))
	assert.True(t, set.Contains(" TP53"))
	assert.False(t, set.Contains("#x"))
}
