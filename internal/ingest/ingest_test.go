package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teerjk/VarSifter-sub000/internal/config"
	vserrors "github.com/teerjk/VarSifter-sub000/internal/errors"
	"github.com/teerjk/VarSifter-sub000/internal/mask"
	"github.com/teerjk/VarSifter-sub000/internal/storage"
	"github.com/teerjk/VarSifter-sub000/pkg/types"
)

const header = "Index\tChr\tLeftFlank\tRightFlank\trefseq\ttype\tmuttype\tref_allele\tvar_allele\tRS#\tAF\t" +
	"P1.NA\tP1.NA.score\tP1.NA.coverage\tP2.NA\tP2.NA.score\tP2.NA.coverage"

var fixtureRows = []string{
	"0\t1\t99\t101\tBRCA1\tSNP\tSNP\tA\tG\trs1\t0.25\tAG\t30\t12\tAA\t40\t20",
	"1\t1\t199\t201\tBRCA2\tSNP/INDEL\tINDEL\tA\tAT\t-\t0.5\tA:AT\t50\t8\tNA\t0\t0",
	"2\tX\t299\t301\tTP53\tsplice,SNP\tSNP\tC\tT\trs3\t1.50\tTT\t99\t30\tCT\t10\t5",
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func fixture(t *testing.T) string {
	t.Helper()
	content := "# generated for tests\n" + header + "\n" + strings.Join(fixtureRows, "\n") + "\n"
	return writeFile(t, t.TempDir(), "calls.tsv", content)
}

func newTestLoader() *Loader {
	return NewLoader(config.DefaultConfig(), storage.NewLocalStorage(""))
}

func TestLoadTSV(t *testing.T) {
	st, err := newTestLoader().Load(context.Background(), fixture(t))
	require.NoError(t, err)

	assert.Equal(t, 3, st.NumRows())
	assert.Equal(t, 11, st.NumColumns())
	assert.Equal(t, "tsv", st.Schema().Format())
	assert.Equal(t, []string{"# generated for tests"}, st.Schema().Comments())

	// legacy renames
	assert.GreaterOrEqual(t, st.ColumnIndex("Gene_name"), 0)
	assert.GreaterOrEqual(t, st.ColumnIndex("dbID"), 0)
	assert.Equal(t, -1, st.ColumnIndex("refseq"))

	kinds := map[string]types.ColumnKind{
		"Index":     types.KindIdentity,
		"Chr":       types.KindString,
		"LeftFlank": types.KindIdentity,
		"type":      types.KindMulti,
		"muttype":   types.KindString,
		"AF":        types.KindFloat,
	}
	for name, want := range kinds {
		assert.Equal(t, want, st.ColumnKind(st.ColumnIndex(name)), name)
	}

	require.Len(t, st.Samples(), 2)
	assert.Equal(t, []string{"", "score", "coverage"}, fieldNames(st.SampleFields()))
	assert.Equal(t, types.KindIdentity, st.SampleFields()[1].Kind)
	assert.Equal(t, "A:AT", st.Genotype(1, 0))
	assert.Equal(t, "NA", st.Genotype(1, 1))
	assert.Equal(t, "TP53", st.DecodeAnnotation(2, st.ColumnIndex("Gene_name")))
}

func fieldNames(defs []types.FieldDef) []string {
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.Name
	}
	return out
}

func TestExportRoundTrip(t *testing.T) {
	ctx := context.Background()
	fs := storage.NewLocalStorage("")
	in := fixture(t)

	st, err := NewLoader(config.DefaultConfig(), fs).Load(ctx, in)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "out.tsv")
	n, err := Export(ctx, fs, st, out, false)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	renamed := strings.NewReplacer("refseq", "Gene_name", "RS#", "dbID").Replace(header)
	want := "# generated for tests\n" + renamed + "\n" + strings.Join(fixtureRows, "\n") + "\n"
	assert.Equal(t, want, string(data))
}

func TestExportMultiValuedFirstSpelling(t *testing.T) {
	ctx := context.Background()
	fs := storage.NewLocalStorage("")
	rows := append([]string(nil), fixtureRows...)
	rows[0] = strings.Replace(rows[0], "\tSNP\tSNP\t", "\tINDEL/SNP\tSNP\t", 1)
	in := writeFile(t, t.TempDir(), "calls.tsv", header+"\n"+strings.Join(rows, "\n")+"\n")

	st, err := NewLoader(config.DefaultConfig(), fs).Load(ctx, in)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "out.tsv")
	_, err = Export(ctx, fs, st, out, false)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "INDEL/SNP", strings.Split(lines[1], "\t")[5])
	assert.Equal(t, "INDEL/SNP", strings.Split(lines[2], "\t")[5], "same token set reuses the first spelling")
}

func TestExportViewAndCompressed(t *testing.T) {
	ctx := context.Background()
	fs := storage.NewLocalStorage("")
	st, err := NewLoader(config.DefaultConfig(), fs).Load(ctx, fixture(t))
	require.NoError(t, err)
	require.NoError(t, st.SetMask(mask.FromRows(3, 2)))

	out := filepath.Join(t.TempDir(), "view.tsv.gz")
	n, err := Export(ctx, fs, st, out, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// the compressed export loads back with only the selected row
	back, err := NewLoader(config.DefaultConfig(), fs).Load(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, 1, back.NumRows())
	assert.Equal(t, "TP53", back.DecodeAnnotation(0, back.ColumnIndex("Gene_name")))
}

func TestLoadFatalErrors(t *testing.T) {
	base := strings.Split(header, "\t")
	row := strings.Split(fixtureRows[0], "\t")

	tests := []struct {
		name    string
		content string
		code    string
	}{
		{
			name:    "wrong column count",
			content: header + "\n" + fixtureRows[0] + "\n" + "0\t1\t2\n",
			code:    vserrors.CodeMalformedRow,
		},
		{
			name:    "missing required header",
			content: strings.Replace(header, "muttype", "mut", 1) + "\n" + fixtureRows[0] + "\n",
			code:    vserrors.CodeMissingHeader,
		},
		{
			name:    "sample field order differs",
			content: strings.Replace(header, "P2.NA.score\tP2.NA.coverage", "P2.NA.coverage\tP2.NA.score", 1) + "\n",
			code:    vserrors.CodeSampleLayoutMismatch,
		},
		{
			name:    "sample without genotype",
			content: strings.Join(append(base[:11:11], "P1.NA.score"), "\t") + "\n",
			code:    vserrors.CodeSampleLayoutMismatch,
		},
		{
			name: "numeric and text sample field",
			content: header + "\n" +
				strings.Join(append(append([]string{}, row[:12]...), "30", "12", "AA", "high", "20"), "\t") + "\n",
			code: vserrors.CodeInconsistentSampleTypes,
		},
		{
			name:    "empty file",
			content: "# only a comment\n",
			code:    vserrors.CodeMissingHeader,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "bad.tsv", tt.content)
			st, err := newTestLoader().Load(context.Background(), path)
			require.Error(t, err)
			assert.Nil(t, st)
			assert.Equal(t, tt.code, vserrors.GetCode(err))
			assert.True(t, vserrors.IsFatal(err))
		})
	}
}

func TestLoadDictionaryCapacity(t *testing.T) {
	build := func(tokens int) string {
		var b strings.Builder
		b.WriteString("Chr\tLeftFlank\tRightFlank\tGene_name\ttype\tmuttype\tref_allele\tvar_allele\n")
		for i := 0; i < tokens; i++ {
			fmt.Fprintf(&b, "1\t%d\t%d\tG\tt%d\tSNP\tA\tG\n", i, i+2, i)
		}
		return b.String()
	}

	path := writeFile(t, t.TempDir(), "ok.tsv", build(31))
	_, err := newTestLoader().Load(context.Background(), path)
	require.NoError(t, err)

	path = writeFile(t, t.TempDir(), "over.tsv", build(32))
	_, err = newTestLoader().Load(context.Background(), path)
	require.Error(t, err)
	assert.Equal(t, vserrors.CodeDictionaryCapacity, vserrors.GetCode(err))
	assert.True(t, vserrors.IsFatal(err))
}

func TestDuplicateColumnNames(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Ingest.MaxNameSuffix = 3
	head := "Chr\tLeftFlank\tRightFlank\tGene_name\ttype\tmuttype\tref_allele\tvar_allele\tnote\tnote\tnote"
	row := "1\t1\t2\tG\tSNP\tSNP\tA\tG\ta\tb\tc"

	path := writeFile(t, t.TempDir(), "dup.tsv", head+"\n"+row+"\n")
	st, err := NewLoader(cfg, storage.NewLocalStorage("")).Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "c", st.DecodeAnnotation(0, st.ColumnIndex("note_3")))

	path = writeFile(t, t.TempDir(), "dup4.tsv", head+"\tnote\n"+row+"\td\n")
	_, err = NewLoader(cfg, storage.NewLocalStorage("")).Load(context.Background(), path)
	require.Error(t, err)
	assert.Equal(t, vserrors.CodeNameSuffixExhausted, vserrors.GetCode(err))
}

func TestSampleRenameSidecar(t *testing.T) {
	path := fixture(t)
	writeFile(t, filepath.Dir(path), filepath.Base(path)+".map",
		"# sample renames\nP1 = proband\n\nP9=ghost\nbroken line\n")

	st, err := newTestLoader().Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "proband", st.Samples()[0].DisplayName)
	assert.Equal(t, "P2", st.Samples()[1].DisplayName)
	assert.Equal(t, "P1.NA", st.Schema().Header()[11])
}

func TestSampleFieldPromotion(t *testing.T) {
	head := "Chr\tLeftFlank\tRightFlank\tGene_name\ttype\tmuttype\tref_allele\tvar_allele\tA.NA\tA.NA.score\tB.NA\tB.NA.score"
	rows := "1\t1\t2\tG\tSNP\tSNP\tA\tG\tAG\t30\tAA\t12.5\n"
	path := writeFile(t, t.TempDir(), "promo.tsv", head+"\n"+rows)

	st, err := newTestLoader().Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, types.KindFloat, st.SampleFields()[1].Kind)
	assert.Equal(t, "30", st.DecodeSample(0, 0, 1))
	assert.Equal(t, "12.5", st.DecodeSample(0, 1, 1))
}

const vcfFixture = `##fileformat=VCFv4.2
##INFO=<ID=DP,Number=1,Type=Integer,Description="Total depth">
##INFO=<ID=DB,Number=0,Type=Flag,Description="dbSNP membership, build 129">
##INFO=<ID=GENE,Number=1,Type=String,Description="Gene symbol">
##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype">
##FORMAT=<ID=GQ,Number=1,Type=Integer,Description="Genotype quality">
##FORMAT=<ID=DP,Number=1,Type=Integer,Description="Read depth">
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	S1	S2
1	100	rs1	A	G	50	PASS	DP=30;DB;GENE=BRCA1	GT:GQ:DP	0/1:40:12	1/1:35:20
1	200	.	A	AT,C	.	q10	DP=12	GT:GQ:DP	1/2:20:8	./.:.:.
X	300	rs3	C	T	99	PASS	DP=7	GT:GQ	1:60	0:55
`

func TestLoadVCF(t *testing.T) {
	path := writeFile(t, t.TempDir(), "calls.vcf", vcfFixture)
	st, err := newTestLoader().Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "vcf", st.Schema().Format())
	assert.Equal(t, 3, st.NumRows())

	col := func(name string) int {
		idx := st.ColumnIndex(name)
		require.GreaterOrEqual(t, idx, 0, name)
		return idx
	}
	assert.Equal(t, "99", st.DecodeAnnotation(0, col("LeftFlank")))
	assert.Equal(t, "101", st.DecodeAnnotation(0, col("RightFlank")))
	assert.Equal(t, "SNP", st.DecodeAnnotation(0, col("muttype")))
	assert.Equal(t, "INDEL", st.DecodeAnnotation(1, col("muttype")))
	assert.Equal(t, "rs1", st.DecodeAnnotation(0, col("dbID")))
	assert.Equal(t, "1", st.DecodeAnnotation(0, col("DB")))
	assert.Equal(t, "0", st.DecodeAnnotation(1, col("DB")))
	assert.Equal(t, ".", st.DecodeAnnotation(1, col("GENE")))
	assert.Equal(t, types.KindIdentity, st.ColumnKind(col("DP")))

	score := st.SampleFieldIndex("score")
	coverage := st.SampleFieldIndex("coverage")
	require.Equal(t, 1, score)
	require.Equal(t, 2, coverage)

	assert.Equal(t, "AG", st.Genotype(0, 0))
	assert.Equal(t, "GG", st.Genotype(0, 1))
	assert.Equal(t, "AT:C", st.Genotype(1, 0))
	assert.Equal(t, types.UnknownGenotype, st.Genotype(1, 1))
	assert.Equal(t, "T", st.Genotype(2, 0), "haploid calls stay single")
	assert.Equal(t, "40", st.DecodeSample(0, 0, score))
	assert.Equal(t, ".", st.DecodeSample(2, 1, coverage))
}

func TestLoadVCFBadFormat(t *testing.T) {
	path := writeFile(t, t.TempDir(), "calls.vcf", "#CHROM\tPOS\n")
	_, err := newTestLoader().Load(context.Background(), path)
	require.Error(t, err)
	assert.Equal(t, vserrors.CodeBadFormat, vserrors.GetCode(err))

	path = writeFile(t, t.TempDir(), "calls.vcf", strings.Replace(vcfFixture, "0/1:40:12", "0/7:40:12", 1))
	_, err = newTestLoader().Load(context.Background(), path)
	require.Error(t, err)
	assert.Equal(t, vserrors.CodeMalformedRow, vserrors.GetCode(err))
}

func TestDetect(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	l := newTestLoader()

	f, err := l.Detect(ctx, writeFile(t, dir, "a.txt", vcfFixture))
	require.NoError(t, err)
	assert.Equal(t, FormatVCF, f)

	f, err = l.Detect(ctx, writeFile(t, dir, "b.txt", header+"\n"))
	require.NoError(t, err)
	assert.Equal(t, FormatTSV, f)

	_, err = l.Detect(ctx, filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestParseMeta(t *testing.T) {
	m := parseMeta(`<ID=DB,Number=0,Type=Flag,Description="dbSNP, build 129">`)
	assert.Equal(t, MetaField{ID: "DB", Number: "0", Type: "Flag", Description: "dbSNP, build 129"}, m)
}
