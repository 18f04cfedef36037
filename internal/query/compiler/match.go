package compiler

import (
	"regexp"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/teerjk/VarSifter-sub000/internal/dict"
)

// codeSet is a set of dictionary codes. Multi-valued codes use the sign bit,
// so codes are stored by their uint32 bit pattern.
type codeSet struct {
	bm *roaring.Bitmap
}

func newCodeSet() codeSet { return codeSet{bm: roaring.New()} }

func (s codeSet) add(code int32)      { s.bm.Add(uint32(code)) }
func (s codeSet) has(code int32) bool { return s.bm.Contains(uint32(code)) }

// matchCodes returns a code test equivalent to pred(tbl.ValueOf(code)).
// String dictionaries are matched up front; other tables are matched lazily
// and remembered per code.
func matchCodes(tbl dict.Table, pred func(string) bool) func(code int32) bool {
	if st, ok := tbl.(*dict.StringTable); ok {
		set := newCodeSet()
		for _, code := range st.Matching(pred) {
			set.add(code)
		}
		return set.has
	}

	memo := make(map[int32]bool)
	return func(code int32) bool {
		hit, ok := memo[code]
		if !ok {
			hit = pred(tbl.ValueOf(code))
			memo[code] = hit
		}
		return hit
	}
}

// likePattern translates a LIKE pattern to an anchored regexp: % matches any
// run of characters and _ exactly one.
func likePattern(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("(?s)^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}
