// Package dict implements the per-column value dictionaries of the store.
//
// A dictionary assigns a dense int32 code to each distinct value on first
// encounter. Codes are never reassigned or recycled, so stores derived from
// the same dictionaries can share codes without remapping.
package dict

import (
	"sort"
	"strconv"

	vserrors "github.com/teerjk/VarSifter-sub000/internal/errors"
	"github.com/teerjk/VarSifter-sub000/pkg/types"
)

// NotFound is returned by CodeOf when a value has no code.
const NotFound int32 = -1

// Table is the contract shared by every dictionary variant.
type Table interface {
	// Kind returns the semantic type served by the table.
	Kind() types.ColumnKind

	// Add returns the code for value, assigning a new one on first encounter.
	// Re-adding an existing value returns its code without growing the table.
	Add(value string) (int32, error)

	// CodeOf returns the code for value, or (NotFound, false).
	CodeOf(value string) (int32, bool)

	// ValueOf returns the value a code stands for.
	ValueOf(code int32) string

	// Len returns the number of distinct values.
	Len() int

	// SortedValues returns the distinct values in lexicographic order.
	SortedValues() []string

	// Numeric returns the numeric reading of a code when it has one.
	Numeric(code int32) (float64, bool)
}

// New creates an empty table of the given kind. delimiters is only used by
// multi-valued tables.
func New(kind types.ColumnKind, delimiters string) Table {
	switch kind {
	case types.KindIdentity:
		return NewIdentityTable()
	case types.KindFloat:
		return NewFloatTable()
	case types.KindMulti:
		return NewMultiTable(delimiters)
	default:
		return NewStringTable()
	}
}

// IsCanonicalInt reports whether s is an int32 in canonical decimal form, so
// that storing the integer and printing it back reproduces s exactly.
func IsCanonicalInt(s string) bool {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return false
	}
	return strconv.FormatInt(v, 10) == s
}

// IdentityTable is the dictionary for columns whose cells are already small
// integers: the code is the value.
type IdentityTable struct {
	seen map[int32]struct{}
}

// NewIdentityTable creates an empty identity table.
func NewIdentityTable() *IdentityTable {
	return &IdentityTable{seen: make(map[int32]struct{})}
}

func (t *IdentityTable) Kind() types.ColumnKind { return types.KindIdentity }

func (t *IdentityTable) Add(value string) (int32, error) {
	if !IsCanonicalInt(value) {
		return NotFound, vserrors.Newf(vserrors.ErrCategoryDictionary, vserrors.CodeUnexpected,
			"value %q is not an integer", value)
	}
	v, _ := strconv.ParseInt(value, 10, 32)
	code := int32(v)
	t.seen[code] = struct{}{}
	return code, nil
}

func (t *IdentityTable) CodeOf(value string) (int32, bool) {
	if !IsCanonicalInt(value) {
		return NotFound, false
	}
	v, _ := strconv.ParseInt(value, 10, 32)
	if _, ok := t.seen[int32(v)]; !ok {
		return NotFound, false
	}
	return int32(v), true
}

func (t *IdentityTable) ValueOf(code int32) string {
	return strconv.FormatInt(int64(code), 10)
}

func (t *IdentityTable) Len() int { return len(t.seen) }

func (t *IdentityTable) SortedValues() []string {
	out := make([]string, 0, len(t.seen))
	for v := range t.seen {
		out = append(out, strconv.FormatInt(int64(v), 10))
	}
	sort.Strings(out)
	return out
}

func (t *IdentityTable) Numeric(code int32) (float64, bool) {
	return float64(code), true
}

// StringTable maps arbitrary strings to dense codes.
type StringTable struct {
	values []string
	codes  map[string]int32

	numeric []float64
	hasNum  []bool
}

// NewStringTable creates an empty string table.
func NewStringTable() *StringTable {
	return &StringTable{codes: make(map[string]int32)}
}

func (t *StringTable) Kind() types.ColumnKind { return types.KindString }

func (t *StringTable) Add(value string) (int32, error) {
	if code, ok := t.codes[value]; ok {
		return code, nil
	}
	code := int32(len(t.values))
	t.values = append(t.values, value)
	t.codes[value] = code

	f, err := strconv.ParseFloat(value, 64)
	t.numeric = append(t.numeric, f)
	t.hasNum = append(t.hasNum, err == nil)
	return code, nil
}

func (t *StringTable) CodeOf(value string) (int32, bool) {
	code, ok := t.codes[value]
	if !ok {
		return NotFound, false
	}
	return code, true
}

func (t *StringTable) ValueOf(code int32) string {
	if code < 0 || int(code) >= len(t.values) {
		return ""
	}
	return t.values[code]
}

func (t *StringTable) Len() int { return len(t.values) }

func (t *StringTable) SortedValues() []string {
	out := append([]string(nil), t.values...)
	sort.Strings(out)
	return out
}

// Numeric parses values that look like numbers (e.g. score columns that
// contain an occasional "NA").
func (t *StringTable) Numeric(code int32) (float64, bool) {
	if code < 0 || int(code) >= len(t.values) {
		return 0, false
	}
	return t.numeric[code], t.hasNum[code]
}

// Matching returns the codes whose value satisfies pred.
func (t *StringTable) Matching(pred func(string) bool) []int32 {
	var out []int32
	for code, v := range t.values {
		if pred(v) {
			out = append(out, int32(code))
		}
	}
	return out
}
