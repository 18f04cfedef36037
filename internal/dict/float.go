package dict

import (
	"math"
	"sort"
	"strconv"

	vserrors "github.com/teerjk/VarSifter-sub000/internal/errors"
	"github.com/teerjk/VarSifter-sub000/pkg/types"
)

// FloatTable maps floating point cells to dense codes. Each distinct spelling
// gets its own code so "1.50" and "1.5" both export as written; Numeric
// exposes the parsed value for ordering and equality.
type FloatTable struct {
	values []float64
	text   []string
	codes  map[string]int32

	// first code issued for each numeric value
	byValue map[float64]int32
}

// NewFloatTable creates an empty float table.
func NewFloatTable() *FloatTable {
	return &FloatTable{
		codes:   make(map[string]int32),
		byValue: make(map[float64]int32),
	}
}

func (t *FloatTable) Kind() types.ColumnKind { return types.KindFloat }

// Add parses value and returns its code.
func (t *FloatTable) Add(value string) (int32, error) {
	if code, ok := t.codes[value]; ok {
		return code, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return NotFound, vserrors.Newf(vserrors.ErrCategoryDictionary, vserrors.CodeUnexpected,
			"value %q is not a number", value)
	}
	return t.add(f, value)
}

// AddFloat adds a value that is already numeric.
func (t *FloatTable) AddFloat(f float64) (int32, error) {
	text := strconv.FormatFloat(f, 'g', -1, 64)
	if code, ok := t.codes[text]; ok {
		return code, nil
	}
	return t.add(f, text)
}

func (t *FloatTable) add(f float64, text string) (int32, error) {
	if math.IsNaN(f) {
		return NotFound, vserrors.New(vserrors.ErrCategoryDictionary, vserrors.CodeUnexpected,
			"NaN cannot be stored in a float dictionary")
	}
	code := int32(len(t.values))
	t.values = append(t.values, f)
	t.text = append(t.text, text)
	t.codes[text] = code
	if _, ok := t.byValue[f]; !ok {
		t.byValue[f] = code
	}
	return code, nil
}

// CodeOf looks value up by spelling first, then by numeric value.
func (t *FloatTable) CodeOf(value string) (int32, bool) {
	if code, ok := t.codes[value]; ok {
		return code, true
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return NotFound, false
	}
	code, ok := t.byValue[f]
	if !ok {
		return NotFound, false
	}
	return code, true
}

func (t *FloatTable) ValueOf(code int32) string {
	if code < 0 || int(code) >= len(t.text) {
		return ""
	}
	return t.text[code]
}

// Float returns the numeric value behind a code.
func (t *FloatTable) Float(code int32) float64 {
	return t.values[code]
}

func (t *FloatTable) Len() int { return len(t.values) }

func (t *FloatTable) SortedValues() []string {
	out := append([]string(nil), t.text...)
	sort.Strings(out)
	return out
}

func (t *FloatTable) Numeric(code int32) (float64, bool) {
	if code < 0 || int(code) >= len(t.values) {
		return 0, false
	}
	return t.values[code], true
}
