package bloom

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_NoFalseNegatives(t *testing.T) {
	f := NewWithEstimates(500, 0.01)
	for i := 0; i < 500; i++ {
		f.Add(fmt.Sprintf("gene%d", i))
	}
	for i := 0; i < 500; i++ {
		assert.True(t, f.MayContain(fmt.Sprintf("gene%d", i)))
	}
	assert.Equal(t, 500, f.Count())
}

func TestFilter_FalsePositiveRate(t *testing.T) {
	f := NewWithEstimates(1000, 0.01)
	for i := 0; i < 1000; i++ {
		f.Add(fmt.Sprintf("in-%d", i))
	}
	hits := 0
	for i := 0; i < 10000; i++ {
		if f.MayContain(fmt.Sprintf("out-%d", i)) {
			hits++
		}
	}
	assert.Less(t, float64(hits)/10000, 0.05)
	assert.Less(t, f.FalsePositiveRate(), 0.05)
}

func TestOptimalParameters(t *testing.T) {
	bits, hashes := OptimalParameters(1000, 0.01)
	assert.InDelta(t, 9586, bits, 2)
	assert.Equal(t, 7, hashes)

	bits, hashes = OptimalParameters(0, 0)
	assert.Greater(t, bits, 64)
	assert.GreaterOrEqual(t, hashes, 1)

	f := New(1, 0)
	assert.Equal(t, 64, f.NumBits())
	assert.Equal(t, 7, f.NumHashes())
}

func TestFilter_Empty(t *testing.T) {
	f := New(0, 0)
	assert.False(t, f.MayContain("BRCA1"))
	assert.Zero(t, f.FalsePositiveRate())
}
