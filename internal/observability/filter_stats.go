// Package observability tracks how filters and query expressions are used
// over a session.
package observability

import (
	"maps"
	"sort"
	"sync"
	"time"
)

// FilterStats records per-category filter runs and the columns referenced by
// custom query expressions.
type FilterStats struct {
	mu         sync.RWMutex
	categories map[string]*CategoryStats
	predicates map[string]*ColumnStats
	runs       int64
	lastRun    RunStats
	window     time.Duration
}

// CategoryStats holds statistics for one filter category.
type CategoryStats struct {
	Category string
	Runs     int64
	LastKept int
	Total    time.Duration
	LastSeen time.Time
}

// ColumnStats holds statistics for a column referenced by an expression.
type ColumnStats struct {
	Column    string
	Frequency int64
	LastSeen  time.Time
	Operators map[string]int // operator → count (e.g., "=" → 5, "LIKE" → 2)
}

// RunStats summarizes one complete filter run.
type RunStats struct {
	Rows     int
	Kept     int
	Duration time.Duration
	At       time.Time
}

// NewFilterStats creates a tracker. Entries older than window are dropped by Prune.
func NewFilterStats(window time.Duration) *FilterStats {
	return &FilterStats{
		categories: make(map[string]*CategoryStats),
		predicates: make(map[string]*ColumnStats),
		window:     window,
	}
}

// RecordCategory records one evaluation of an active category.
func (s *FilterStats) RecordCategory(category string, kept int, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, ok := s.categories[category]
	if !ok {
		cs = &CategoryStats{Category: category}
		s.categories[category] = cs
	}
	cs.Runs++
	cs.LastKept = kept
	cs.Total += d
	cs.LastSeen = time.Now()
}

// RecordRun records a completed filter run over rows rows.
func (s *FilterStats) RecordRun(rows, kept int, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs++
	s.lastRun = RunStats{Rows: rows, Kept: kept, Duration: d, At: time.Now()}
}

// RecordPredicate records a column reference in a query expression.
func (s *FilterStats) RecordPredicate(column, operator string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, ok := s.predicates[column]
	if !ok {
		cs = &ColumnStats{Column: column, Operators: make(map[string]int)}
		s.predicates[column] = cs
	}
	cs.Frequency++
	cs.LastSeen = time.Now()
	cs.Operators[operator]++
}

// Runs returns the number of completed filter runs.
func (s *FilterStats) Runs() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runs
}

// LastRun returns the summary of the most recent run.
func (s *FilterStats) LastRun() RunStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

// Category returns a copy of the stats for category.
func (s *FilterStats) Category(category string) (CategoryStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cs, ok := s.categories[category]
	if !ok {
		return CategoryStats{}, false
	}
	return *cs, true
}

// TopCategories returns up to n categories, most frequently run first.
func (s *FilterStats) TopCategories(n int) []CategoryStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || len(s.categories) == 0 {
		return []CategoryStats{}
	}
	out := make([]CategoryStats, 0, len(s.categories))
	for _, cs := range s.categories {
		out = append(out, *cs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Runs != out[j].Runs {
			return out[i].Runs > out[j].Runs
		}
		return out[i].Category < out[j].Category
	})
	return out[:min(n, len(out))]
}

// TopPredicates returns up to n expression columns by frequency.
func (s *FilterStats) TopPredicates(n int) []ColumnStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || len(s.predicates) == 0 {
		return []ColumnStats{}
	}
	out := make([]ColumnStats, 0, len(s.predicates))
	for _, cs := range s.predicates {
		c := *cs
		c.Operators = maps.Clone(cs.Operators)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].Column < out[j].Column
	})
	return out[:min(n, len(out))]
}

// Prune removes entries not seen within the window.
func (s *FilterStats) Prune() {
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := time.Now().Add(-s.window)
	for k, cs := range s.categories {
		if cs.LastSeen.Before(threshold) {
			delete(s.categories, k)
		}
	}
	for k, cs := range s.predicates {
		if cs.LastSeen.Before(threshold) {
			delete(s.predicates, k)
		}
	}
}
