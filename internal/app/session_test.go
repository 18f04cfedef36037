package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/teerjk/VarSifter-sub000/internal/config"
	vserrors "github.com/teerjk/VarSifter-sub000/internal/errors"
	"github.com/teerjk/VarSifter-sub000/internal/filter"
	"github.com/teerjk/VarSifter-sub000/internal/storage"
)

const calls = `# cohort A
Index	Chr	LeftFlank	RightFlank	Gene_name	type	muttype	ref_allele	var_allele	dbID	MendHetRec	S1.NA	S1.NA.score	S2.NA	S2.NA.score
10	1	99	100	BRCA1	SNP	SNP	A	G	rs1	10,11	AG	30	GG	40
11	1	199	200	BRCA1	INDEL	INDEL	A	T	-	10,11	AA	30	AT	20
12	X	299	300	TP53	SNP	SNP	C	T	rs3	0	NA	0	CT	5
`

func newSession(t *testing.T) (*Session, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "calls.tsv"), []byte(calls), 0644))

	s, err := New(config.DefaultConfig(), WithStorage(storage.NewLocalStorage(dir)))
	require.NoError(t, err)
	require.NoError(t, s.Open(context.Background(), "calls.tsv"))
	return s, dir
}

func TestSession_RequiresStore(t *testing.T) {
	s, err := New(nil)
	require.NoError(t, err)
	assert.Nil(t, s.Store())

	_, err = s.Filter(context.Background(), filter.Spec{})
	assert.ErrorIs(t, err, ErrNoStore)
	_, err = s.Query(context.Background(), "TRUE")
	assert.ErrorIs(t, err, ErrNoStore)
	_, err = s.Pair("10,11", false)
	assert.ErrorIs(t, err, ErrNoStore)
	_, err = s.Export(context.Background(), "out.tsv", false)
	assert.ErrorIs(t, err, ErrNoStore)
	_, err = s.Subset()
	assert.ErrorIs(t, err, ErrNoStore)
}

func TestSession_OpenFailureKeepsStore(t *testing.T) {
	s, _ := newSession(t)
	before := s.Store()

	err := s.Open(context.Background(), "missing.tsv")
	require.Error(t, err)
	assert.Same(t, before, s.Store())
	assert.Equal(t, "calls.tsv", s.Path())
}

func TestSession_FilterAndQuery(t *testing.T) {
	s, _ := newSession(t)
	ctx := context.Background()

	res, err := s.Filter(ctx, filter.Spec{ExcludeDBSNP: true})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, res.Mask.Rows())
	assert.Equal(t, 1, s.Store().View().Len())

	m, err := s.Query(ctx, "Gene_name = 'BRCA1' AND isHet(gt('S2'))")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, m.Rows())

	m, err = s.Query(ctx, "Chr = 'X' OR LeftFlank < 100")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, m.Rows())
	assert.Equal(t, 2, s.Store().View().Len())

	_, err = s.Query(ctx, "Chr = ")
	require.Error(t, err)
	assert.Equal(t, vserrors.CodeParseError, vserrors.GetCode(err))
	assert.Equal(t, []int{0, 2}, s.Store().Mask().Rows())

	require.NoError(t, s.Reset())
	assert.True(t, s.Store().Mask().IsFull())

	assert.Equal(t, int64(3), s.Stats().Runs())
	top := s.Stats().TopPredicates(1)
	require.Len(t, top, 1)
	assert.Equal(t, "Chr", top[0].Column)
}

func TestSession_FilterRequest(t *testing.T) {
	s, dir := newSession(t)
	path := filepath.Join(dir, "spec.yaml")
	require.NoError(t, os.WriteFile(path, []byte("variant_types: [SNP]\nexpression: \"Chr = '1'\"\n"), 0644))

	res, err := s.FilterRequest(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, res.Mask.Rows())
	assert.Empty(t, res.Reported)
}

func TestSession_Pair(t *testing.T) {
	s, _ := newSession(t)

	res, err := s.Pair("10,11", true)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, 0, res.Records[0].Anchor)
	assert.Equal(t, 1, res.Records[0].Partner)

	byRow, err := s.PairRow(0, false)
	require.NoError(t, err)
	assert.Equal(t, res.Records[0].Values, byRow.Records[0].Values)

	_, err = s.PairRow(2, false)
	assert.Equal(t, vserrors.CodeMalformedLinkage, vserrors.GetCode(err))
}

func TestSession_ExportView(t *testing.T) {
	s, dir := newSession(t)
	ctx := context.Background()

	_, err := s.Query(ctx, "Chr = 'X'")
	require.NoError(t, err)

	n, err := s.Export(ctx, "view.tsv", true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	data, err := os.ReadFile(filepath.Join(dir, "view.tsv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "# cohort A", lines[0])
	assert.True(t, strings.HasPrefix(lines[2], "12\tX\t299"))

	n, err = s.Export(ctx, "all.tsv.gz", false)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSession_ExportLogsChecksum(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "calls.tsv"), []byte(calls), 0644))
	core, logs := observer.New(zap.InfoLevel)
	s, err := New(config.DefaultConfig(),
		WithStorage(storage.NewLocalStorage(dir)),
		WithLogger(zap.New(core)))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Open(ctx, "calls.tsv"))

	_, err = s.Export(ctx, "all.tsv", false)
	require.NoError(t, err)

	exported := logs.FilterMessage("store exported").All()
	require.Len(t, exported, 1)
	sum, ok := exported[0].ContextMap()["md5"].(string)
	require.True(t, ok)
	assert.Len(t, sum, 32)
}

func TestSession_SubsetIsIndependent(t *testing.T) {
	s, _ := newSession(t)
	ctx := context.Background()

	_, err := s.Query(ctx, "Gene_name = 'BRCA1'")
	require.NoError(t, err)

	child, err := s.Subset()
	require.NoError(t, err)
	assert.Equal(t, 2, child.Store().NumRows())
	assert.Equal(t, s.Store().ID(), child.Store().ParentID())

	m, err := child.Query(ctx, "muttype = 'INDEL'")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, m.Rows())
	assert.Equal(t, []int{0, 1}, s.Store().Mask().Rows())
}
