package observability

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCategory(t *testing.T) {
	s := NewFilterStats(time.Hour)
	s.RecordCategory("variant_type", 10, time.Millisecond)
	s.RecordCategory("variant_type", 4, 2*time.Millisecond)
	s.RecordCategory("gene_list", 7, time.Millisecond)

	cs, ok := s.Category("variant_type")
	require.True(t, ok)
	assert.EqualValues(t, 2, cs.Runs)
	assert.Equal(t, 4, cs.LastKept)
	assert.Equal(t, 3*time.Millisecond, cs.Total)

	top := s.TopCategories(5)
	require.Len(t, top, 2)
	assert.Equal(t, "variant_type", top[0].Category)

	_, ok = s.Category("bed")
	assert.False(t, ok)
}

func TestRecordRun(t *testing.T) {
	s := NewFilterStats(time.Hour)
	s.RecordRun(100, 12, time.Second)
	s.RecordRun(100, 3, time.Second)
	assert.EqualValues(t, 2, s.Runs())
	assert.Equal(t, 3, s.LastRun().Kept)
	assert.Equal(t, 100, s.LastRun().Rows)
}

func TestTopPredicatesOrdering(t *testing.T) {
	s := NewFilterStats(time.Hour)
	for i := 0; i < 5; i++ {
		s.RecordPredicate("Gene_name", "LIKE")
	}
	for i := 0; i < 10; i++ {
		s.RecordPredicate("qual", ">")
	}
	s.RecordPredicate("Chr", "=")

	top := s.TopPredicates(2)
	require.Len(t, top, 2)
	assert.Equal(t, "qual", top[0].Column)
	assert.Equal(t, "Gene_name", top[1].Column)
	assert.Equal(t, 5, top[1].Operators["LIKE"])

	// copies are detached from the tracker
	top[0].Operators[">"] = 0
	assert.Equal(t, 10, s.TopPredicates(1)[0].Operators[">"])

	assert.Empty(t, s.TopPredicates(0))
}

func TestRecordConcurrent(t *testing.T) {
	s := NewFilterStats(time.Hour)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.RecordPredicate("qual", ">")
				s.RecordCategory("expression", j, time.Microsecond)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 400, s.TopPredicates(1)[0].Frequency)
	cs, _ := s.Category("expression")
	assert.EqualValues(t, 400, cs.Runs)
}

func TestPrune(t *testing.T) {
	s := NewFilterStats(10 * time.Millisecond)
	s.RecordPredicate("qual", ">")
	s.RecordCategory("bed", 1, 0)
	time.Sleep(20 * time.Millisecond)
	s.RecordPredicate("Chr", "=")
	s.Prune()

	top := s.TopPredicates(10)
	require.Len(t, top, 1)
	assert.Equal(t, "Chr", top[0].Column)
	assert.Empty(t, s.TopCategories(10))
}
