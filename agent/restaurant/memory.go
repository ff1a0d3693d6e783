package restaurant

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryLookup serves the catalog from memory. Used for fixtures, local
// development and tests.
type MemoryLookup struct {
	mu    sync.RWMutex
	items []Restaurant
}

func NewMemoryLookup(items ...Restaurant) *MemoryLookup {
	m := &MemoryLookup{}
	m.Add(items...)
	return m
}

func (m *MemoryLookup) Add(items ...Restaurant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, items...)
	sort.SliceStable(m.items, func(i, j int) bool {
		a, b := m.items[i], m.items[j]
		if a.Stars != b.Stars {
			return a.Stars > b.Stars
		}
		if a.ReviewCount != b.ReviewCount {
			return a.ReviewCount > b.ReviewCount
		}
		return a.BusinessID < b.BusinessID
	})
}

func (m *MemoryLookup) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *MemoryLookup) Search(ctx context.Context, f Filter) ([]Restaurant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Restaurant, 0, f.limit())
	for i := range m.items {
		if !matches(&m.items[i], f) {
			continue
		}
		out = append(out, m.items[i])
		if len(out) == f.limit() {
			break
		}
	}
	return out, nil
}

func (m *MemoryLookup) GetByID(ctx context.Context, id string) (*Restaurant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.items {
		if m.items[i].BusinessID == id {
			r := m.items[i]
			return &r, nil
		}
	}
	return nil, fmt.Errorf("%w: id=%s", ErrNotFound, id)
}

func (m *MemoryLookup) GetByName(ctx context.Context, name, city string) (*Restaurant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil, fmt.Errorf("%w: empty name", ErrNotFound)
	}
	city = strings.TrimSpace(city)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *Restaurant
	for i := range m.items {
		r := &m.items[i]
		if !strings.Contains(strings.ToLower(r.Name), needle) {
			continue
		}
		if city != "" && !strings.EqualFold(r.City, city) {
			continue
		}
		if best == nil || r.ReviewCount > best.ReviewCount ||
			(r.ReviewCount == best.ReviewCount && r.BusinessID < best.BusinessID) {
			best = r
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: name=%q", ErrNotFound, name)
	}
	out := *best
	return &out, nil
}

func matches(r *Restaurant, f Filter) bool {
	if c := strings.ToLower(strings.TrimSpace(f.Cuisine)); c != "" &&
		!strings.Contains(strings.ToLower(r.Categories), c) &&
		!strings.Contains(strings.ToLower(r.Name), c) {
		return false
	}
	if f.City != "" && !strings.EqualFold(r.City, strings.TrimSpace(f.City)) {
		return false
	}
	if f.State != "" && !strings.EqualFold(r.State, strings.TrimSpace(f.State)) {
		return false
	}
	if f.MinStars > 0 && r.Stars < f.MinStars {
		return false
	}
	if f.MaxPrice > 0 {
		tier := r.PriceTier()
		if tier == 0 || tier > f.MaxPrice {
			return false
		}
	}
	for _, a := range f.Amenities {
		if !r.HasAmenity(a) {
			return false
		}
	}
	return true
}
