package reviews

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemorySearcher ranks in-process reviews by keyword overlap. It backs the
// fixture dataset used when no database is configured.
type MemorySearcher struct {
	mu   sync.RWMutex
	byID map[string][]Review
}

var _ Searcher = (*MemorySearcher)(nil)

func NewMemorySearcher(rows ...Review) *MemorySearcher {
	s := &MemorySearcher{byID: make(map[string][]Review)}
	s.Add(rows...)
	return s
}

func (s *MemorySearcher) Add(rows ...Review) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.byID[r.BusinessID] = append(s.byID[r.BusinessID], r)
	}
}

func (s *MemorySearcher) Search(_ context.Context, q Query) ([]Summary, error) {
	s.mu.RLock()
	candidates := make([]Review, 0, len(s.byID[q.BusinessID]))
	for _, r := range s.byID[q.BusinessID] {
		if r.Stars >= q.MinStars {
			candidates = append(candidates, r)
		}
	}
	s.mu.RUnlock()

	terms := strings.Fields(strings.ToLower(q.Text))
	if len(terms) > 0 {
		for i := range candidates {
			candidates[i].Score = overlap(terms, candidates[i].Text)
		}
		kept := candidates[:0]
		for _, r := range candidates {
			if r.Score > 0 {
				kept = append(kept, r)
			}
		}
		candidates = kept
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Useful != b.Useful {
			return a.Useful > b.Useful
		}
		return a.Date.After(b.Date)
	})

	if n := q.limit(); len(candidates) > n {
		candidates = candidates[:n]
	}
	out := make([]Summary, 0, len(candidates))
	for _, r := range candidates {
		out = append(out, r.Summary())
	}
	return out, nil
}

func overlap(terms []string, text string) float64 {
	lower := strings.ToLower(text)
	hits := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}
