// Package bloom provides a bloom filter over strings, used to reject most
// non-members of a name set before an exact lookup.
package bloom

import (
	"math"

	"github.com/spaolacci/murmur3"
)

// Filter is a probabilistic string set. MayContain never returns false for
// an added item.
type Filter struct {
	bits      []uint64
	numBits   uint64
	numHashes uint64
	count     int
}

// New creates a filter with at least numBits bits and numHashes hash functions.
func New(numBits, numHashes int) *Filter {
	if numBits <= 0 {
		numBits = 1024
	}
	if numHashes <= 0 {
		numHashes = 7
	}
	words := (numBits + 63) / 64
	return &Filter{
		bits:      make([]uint64, words),
		numBits:   uint64(words * 64),
		numHashes: uint64(numHashes),
	}
}

// NewWithEstimates sizes a filter for expectedItems at the target false
// positive rate.
func NewWithEstimates(expectedItems int, targetFPR float64) *Filter {
	return New(OptimalParameters(expectedItems, targetFPR))
}

// OptimalParameters returns m = -n*ln(p)/ln(2)^2 bits and k = (m/n)*ln(2)
// hash functions.
func OptimalParameters(expectedItems int, targetFPR float64) (numBits, numHashes int) {
	if expectedItems <= 0 {
		expectedItems = 1000
	}
	if targetFPR <= 0 || targetFPR >= 1 {
		targetFPR = 0.01
	}

	n := float64(expectedItems)
	m := -n * math.Log(targetFPR) / (math.Ln2 * math.Ln2)
	numBits = max(int(math.Ceil(m)), 64)
	numHashes = max(int(math.Ceil(m/n*math.Ln2)), 1)
	return numBits, numHashes
}

// Add inserts item.
func (f *Filter) Add(item string) {
	h1, h2 := murmur3.Sum128([]byte(item))
	for i := uint64(0); i < f.numHashes; i++ {
		pos := (h1 + i*h2) % f.numBits
		f.bits[pos/64] |= 1 << (pos % 64)
	}
	f.count++
}

// MayContain reports whether item might have been added. False means
// definitely absent.
func (f *Filter) MayContain(item string) bool {
	h1, h2 := murmur3.Sum128([]byte(item))
	for i := uint64(0); i < f.numHashes; i++ {
		pos := (h1 + i*h2) % f.numBits
		if f.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

func (f *Filter) NumBits() int   { return int(f.numBits) }
func (f *Filter) NumHashes() int { return int(f.numHashes) }
func (f *Filter) Count() int     { return f.count }

// FalsePositiveRate estimates (1 - e^(-k*n/m))^k for the current fill.
func (f *Filter) FalsePositiveRate() float64 {
	if f.count == 0 {
		return 0
	}
	k := float64(f.numHashes)
	n := float64(f.count)
	m := float64(f.numBits)
	return math.Pow(1-math.Exp(-k*n/m), k)
}
