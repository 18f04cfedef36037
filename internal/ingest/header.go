package ingest

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/teerjk/VarSifter-sub000/internal/config"
	vserrors "github.com/teerjk/VarSifter-sub000/internal/errors"
	"github.com/teerjk/VarSifter-sub000/pkg/types"
)

const sampleMarker = ".NA"

// headerPlan is the resolved meaning of every header position.
type headerPlan struct {
	columns []types.ColumnDef
	samples []string
	fields  []string // per-sample fields after the genotype
	refs    []types.CellRef
}

// splitSampleHeader recognises "<s>.NA" and "<s>.NA.<field>".
func splitSampleHeader(h string) (sample, field string, ok bool) {
	if strings.HasSuffix(h, sampleMarker) && len(h) > len(sampleMarker) {
		return strings.TrimSuffix(h, sampleMarker), "", true
	}
	if i := strings.LastIndex(h, sampleMarker+"."); i > 0 && i+len(sampleMarker)+1 < len(h) {
		return h[:i], h[i+len(sampleMarker)+1:], true
	}
	return "", "", false
}

// planHeader applies legacy renames, de-duplicates annotation names and
// demultiplexes sample columns. Every failure is fatal.
func planHeader(cols []string, cfg *config.Config) (*headerPlan, error) {
	plan := &headerPlan{refs: make([]types.CellRef, len(cols))}

	used := make(map[string]bool, len(cols))
	sampleIdx := make(map[string]int)
	sampleFields := make(map[string][]string)
	hasGenotype := make(map[string]bool)

	type pending struct {
		pos    int
		sample string
		field  string
	}
	var sampleCells []pending

	for pos, raw := range cols {
		h := strings.TrimSpace(raw)
		if sample, field, ok := splitSampleHeader(h); ok {
			if _, seen := sampleIdx[sample]; !seen {
				sampleIdx[sample] = len(plan.samples)
				plan.samples = append(plan.samples, sample)
			}
			if field == "" {
				if hasGenotype[sample] {
					return nil, layoutError("sample %s has two genotype columns", sample)
				}
				hasGenotype[sample] = true
			} else {
				for _, f := range sampleFields[sample] {
					if f == field {
						return nil, layoutError("sample %s repeats field %s", sample, field)
					}
				}
				sampleFields[sample] = append(sampleFields[sample], field)
			}
			sampleCells = append(sampleCells, pending{pos: pos, sample: sample, field: field})
			continue
		}

		name := h
		if renamed, ok := cfg.Ingest.LegacyRenames[name]; ok {
			name = renamed
		}
		unique, err := uniqueName(name, used, cfg.Ingest.MaxNameSuffix)
		if err != nil {
			return nil, err
		}
		used[unique] = true
		plan.refs[pos] = types.CellRef{Column: len(plan.columns), Sample: -1}
		plan.columns = append(plan.columns, types.ColumnDef{Name: unique, SourceName: h})
	}

	if err := checkRequired(used, cfg.Ingest.RequiredHeaders); err != nil {
		return nil, err
	}

	if len(plan.samples) > 0 {
		plan.fields = sampleFields[plan.samples[0]]
		for _, s := range plan.samples {
			if !hasGenotype[s] {
				return nil, layoutError("sample %s has no genotype column %s%s", s, s, sampleMarker)
			}
			if !slices.Equal(sampleFields[s], plan.fields) {
				return nil, layoutError("sample %s fields [%s] differ from [%s]",
					s, strings.Join(sampleFields[s], ","), strings.Join(plan.fields, ","))
			}
		}
	}

	fieldIdx := make(map[string]int, len(plan.fields))
	for i, f := range plan.fields {
		fieldIdx[f] = i + 1
	}
	for _, c := range sampleCells {
		ref := types.CellRef{Column: -1, Sample: sampleIdx[c.sample]}
		if c.field != "" {
			ref.Field = fieldIdx[c.field]
		}
		plan.refs[c.pos] = ref
	}
	return plan, nil
}

// uniqueName returns name, or the first free name_2 ... name_<limit>.
func uniqueName(name string, used map[string]bool, limit int) (string, error) {
	if !used[name] {
		return name, nil
	}
	for i := 2; i <= limit; i++ {
		candidate := fmt.Sprintf("%s_%d", name, i)
		if !used[candidate] {
			return candidate, nil
		}
	}
	return "", vserrors.Newf(vserrors.ErrCategoryIngest, vserrors.CodeNameSuffixExhausted,
		"column name %q repeats more than %d times", name, limit)
}

func checkRequired(present map[string]bool, required []string) error {
	var missing []string
	for _, r := range required {
		if !present[r] {
			missing = append(missing, r)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return vserrors.Newf(vserrors.ErrCategoryIngest, vserrors.CodeMissingHeader,
		"header lacks required columns: %s", strings.Join(missing, ", ")).
		WithDetails(map[string]interface{}{"missing": missing})
}

func layoutError(format string, args ...interface{}) error {
	return vserrors.Newf(vserrors.ErrCategoryIngest, vserrors.CodeSampleLayoutMismatch, format, args...)
}
