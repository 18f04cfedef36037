package filter

import (
	"bufio"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/teerjk/VarSifter-sub000/internal/bloom"
	vserrors "github.com/teerjk/VarSifter-sub000/internal/errors"
	"github.com/teerjk/VarSifter-sub000/internal/storage"
)

// GeneSet is a case-folded set of gene names with a bloom prefilter.
type GeneSet struct {
	prefilter *bloom.Filter
	names     map[string]struct{}
}

// NewGeneSet builds a set from names.
func NewGeneSet(names []string) *GeneSet {
	g := &GeneSet{
		prefilter: bloom.NewWithEstimates(len(names), 0.01),
		names:     make(map[string]struct{}, len(names)),
	}
	for _, n := range names {
		n = foldGene(n)
		if n == "" {
			continue
		}
		if _, ok := g.names[n]; !ok {
			g.names[n] = struct{}{}
			g.prefilter.Add(n)
		}
	}
	return g
}

// Contains reports whether name is in the set, ignoring case and surrounding space.
func (g *GeneSet) Contains(name string) bool {
	name = foldGene(name)
	if !g.prefilter.MayContain(name) {
		return false
	}
	_, ok := g.names[name]
	return ok
}

// Len returns the number of distinct names.
func (g *GeneSet) Len() int { return len(g.names) }

func foldGene(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Interval is a 1-based inclusive genomic range.
type Interval struct {
	Start, End int64
}

// Intervals holds merged, sorted ranges per chromosome.
type Intervals struct {
	byChrom map[string][]Interval
}

// NewIntervals builds an index from raw ranges. Overlapping and adjacent
// ranges on a chromosome are merged.
func NewIntervals(ranges map[string][]Interval) *Intervals {
	grouped := make(map[string][]Interval, len(ranges))
	for chrom, list := range ranges {
		key := normalizeChrom(chrom)
		grouped[key] = append(grouped[key], list...)
	}

	idx := &Intervals{byChrom: make(map[string][]Interval, len(grouped))}
	for chrom, sorted := range grouped {
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

		merged := sorted[:0]
		for _, iv := range sorted {
			if n := len(merged); n > 0 && iv.Start <= merged[n-1].End+1 {
				merged[n-1].End = max(merged[n-1].End, iv.End)
				continue
			}
			merged = append(merged, iv)
		}
		idx.byChrom[chrom] = merged
	}
	return idx
}

// Contains reports whether the 1-based position pos on chrom lies in a range.
func (x *Intervals) Contains(chrom string, pos int64) bool {
	return containsPos(x.byChrom[normalizeChrom(chrom)], pos)
}

// Len returns the number of merged ranges.
func (x *Intervals) Len() int {
	n := 0
	for _, l := range x.byChrom {
		n += len(l)
	}
	return n
}

// normalizeChrom drops a leading "chr" and folds case, so "chrX" matches "X".
func normalizeChrom(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	return strings.TrimPrefix(c, "chr")
}

// auxFiles are the external files a spec refers to, loaded before any row
// is examined.
type auxFiles struct {
	include *GeneSet
	exclude *GeneSet
	bed     *Intervals
}

// loadAux loads every file spec names concurrently. Any failure aborts.
func loadAux(ctx context.Context, fs storage.FileStorage, spec Spec) (*auxFiles, error) {
	aux := &auxFiles{}
	g, ctx := errgroup.WithContext(ctx)

	if spec.GeneIncludeFile != "" {
		g.Go(func() error {
			set, err := LoadGeneList(ctx, fs, spec.GeneIncludeFile)
			aux.include = set
			return err
		})
	}
	if spec.GeneExcludeFile != "" {
		g.Go(func() error {
			set, err := LoadGeneList(ctx, fs, spec.GeneExcludeFile)
			aux.exclude = set
			return err
		})
	}
	if spec.BEDFile != "" {
		g.Go(func() error {
			idx, err := LoadBED(ctx, fs, spec.BEDFile)
			aux.bed = idx
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return aux, nil
}

// LoadGeneList reads one gene name per line. Blank lines and '#' comments
// are skipped.
func LoadGeneList(ctx context.Context, fs storage.FileStorage, path string) (*GeneSet, error) {
	var names []string
	err := readAuxLines(ctx, fs, path, func(_ int, line string) error {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			names = append(names, line)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewGeneSet(names), nil
}

// LoadBED reads whitespace-separated "chrom start end" lines with 0-based
// half-open coordinates and returns 1-based inclusive ranges. Header lines
// (track, browser, '#') are skipped.
func LoadBED(ctx context.Context, fs storage.FileStorage, path string) (*Intervals, error) {
	ranges := make(map[string][]Interval)
	err := readAuxLines(ctx, fs, path, func(lineNo int, line string) error {
		fields := strings.Fields(line)
		if len(fields) == 0 || fields[0] == "track" || fields[0] == "browser" || strings.HasPrefix(fields[0], "#") {
			return nil
		}
		if len(fields) < 3 {
			return fmt.Errorf("line %d: expected chrom, start and end", lineNo)
		}
		start, err1 := strconv.ParseInt(fields[1], 10, 64)
		end, err2 := strconv.ParseInt(fields[2], 10, 64)
		if err1 != nil || err2 != nil || start < 0 || end < start {
			return fmt.Errorf("line %d: invalid range %q-%q", lineNo, fields[1], fields[2])
		}
		if end > start {
			ranges[fields[0]] = append(ranges[fields[0]], Interval{Start: start + 1, End: end})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewIntervals(ranges), nil
}

func readAuxLines(ctx context.Context, fs storage.FileStorage, path string, fn func(lineNo int, line string) error) error {
	r, err := fs.Open(ctx, path)
	if err != nil {
		return vserrors.NewFilterError(vserrors.CodeAuxFile, "cannot open "+path, err)
	}
	defer r.Close()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if lineNo%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := fn(lineNo, strings.TrimRight(sc.Text(), "\r")); err != nil {
			return vserrors.NewFilterError(vserrors.CodeAuxFile, path+": "+err.Error(), err)
		}
	}
	if err := sc.Err(); err != nil {
		return vserrors.NewFilterError(vserrors.CodeAuxFile, "cannot read "+path, err)
	}
	return nil
}
