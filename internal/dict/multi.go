package dict

import (
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	vserrors "github.com/teerjk/VarSifter-sub000/internal/errors"
	"github.com/teerjk/VarSifter-sub000/pkg/types"
)

// MaxTokens is the number of distinct tokens a multi-valued column can hold:
// one bit each in an int32 with the sign bit left unused.
const MaxTokens = 31

// DefaultDelimiters separate tokens in a multi-valued cell.
const DefaultDelimiters = ",/"

// MultiTable is the bitmask dictionary for multi-valued cells such as
// "SNP/INDEL". Each distinct token owns one bit; a cell's code is the OR of
// its tokens' bits.
type MultiTable struct {
	delimiters string
	tokens     []string
	bits       map[string]int

	// first raw text seen for each code, so "INDEL/SNP" exports as written
	raw map[int32]string
}

// NewMultiTable creates an empty bitmask dictionary. An empty delimiter set
// falls back to DefaultDelimiters.
func NewMultiTable(delimiters string) *MultiTable {
	if delimiters == "" {
		delimiters = DefaultDelimiters
	}
	return &MultiTable{
		delimiters: delimiters,
		bits:       make(map[string]int),
		raw:        make(map[int32]string),
	}
}

func (t *MultiTable) Kind() types.ColumnKind { return types.KindMulti }

// Delimiters returns the token separators of the table.
func (t *MultiTable) Delimiters() string { return t.delimiters }

func (t *MultiTable) split(value string) []string {
	return strings.FieldsFunc(value, func(r rune) bool {
		return strings.ContainsRune(t.delimiters, r)
	})
}

// Add assigns bits to any new tokens in value and returns the cell code.
// A 32nd distinct token is a fatal DICTIONARY_CAPACITY error.
func (t *MultiTable) Add(value string) (int32, error) {
	var code int32
	for _, tok := range t.split(value) {
		pos, ok := t.bits[tok]
		if !ok {
			if len(t.tokens) >= MaxTokens {
				return NotFound, vserrors.Newf(vserrors.ErrCategoryDictionary, vserrors.CodeDictionaryCapacity,
					"multi-valued column exceeds %d distinct tokens at %q", MaxTokens, tok)
			}
			pos = len(t.tokens)
			t.tokens = append(t.tokens, tok)
			t.bits[tok] = pos
		}
		code |= 1 << uint(pos)
	}
	if _, ok := t.raw[code]; !ok {
		t.raw[code] = value
	}
	return code, nil
}

// CodeOf returns the code for value when every token in it is known.
func (t *MultiTable) CodeOf(value string) (int32, bool) {
	var code int32
	for _, tok := range t.split(value) {
		pos, ok := t.bits[tok]
		if !ok {
			return NotFound, false
		}
		code |= 1 << uint(pos)
	}
	return code, true
}

func (t *MultiTable) ValueOf(code int32) string {
	if s, ok := t.raw[code]; ok {
		return s
	}
	var parts []string
	for pos, tok := range t.tokens {
		if code&(1<<uint(pos)) != 0 {
			parts = append(parts, tok)
		}
	}
	return strings.Join(parts, t.delimiters[:1])
}

// Len returns the number of distinct tokens.
func (t *MultiTable) Len() int { return len(t.tokens) }

// Tokens returns the tokens in bit order.
func (t *MultiTable) Tokens() []string {
	return append([]string(nil), t.tokens...)
}

// SortedValues returns the distinct tokens in lexicographic order.
func (t *MultiTable) SortedValues() []string {
	out := t.Tokens()
	sort.Strings(out)
	return out
}

func (t *MultiTable) Numeric(int32) (float64, bool) { return 0, false }

// TokenBit returns the bit value (not position) owned by token.
func (t *MultiTable) TokenBit(token string) (int32, bool) {
	pos, ok := t.bits[token]
	if !ok {
		return 0, false
	}
	return 1 << uint(pos), true
}

// MatchingCodes returns the bit positions whose token satisfies pred.
func (t *MultiTable) MatchingCodes(pred func(token string) bool) *roaring.Bitmap {
	bm := roaring.New()
	for pos, tok := range t.tokens {
		if pred(tok) {
			bm.Add(uint32(pos))
		}
	}
	return bm
}

// MatchingMask folds MatchingCodes into a single bitmask; a cell matches
// when code&mask != 0.
func (t *MultiTable) MatchingMask(pred func(token string) bool) int32 {
	var mask int32
	it := t.MatchingCodes(pred).Iterator()
	for it.HasNext() {
		mask |= 1 << it.Next()
	}
	return mask
}
