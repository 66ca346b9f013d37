package app

import (
	"math/rand/v2"
	"sync"
	"time"

	"community_content_bot/internal/domain/content"
	"community_content_bot/internal/domain/delivery"
)

// Selector picks one item from a pool, skipping items delivered within the
// recency window. When every item was used recently it falls back to the
// full pool so a small catalog never stalls a feature.
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector uses rng for picks; nil uses the global source.
func NewSelector(rng *rand.Rand) *Selector {
	return &Selector{rng: rng}
}

// Select returns a uniformly random item from pool minus the items found in
// history within recencyDays of now. recencyDays <= 0 disables the filter.
func (s *Selector) Select(pool []*content.Item, history []*delivery.Entry, recencyDays int, now time.Time) (*content.Item, error) {
	if len(pool) == 0 {
		return nil, ErrEmptyPool
	}

	candidates := pool
	if recencyDays > 0 {
		cutoff := now.AddDate(0, 0, -recencyDays)
		excluded := make(map[string]struct{}, len(history))
		for _, e := range history {
			if !e.DispatchedAt.Before(cutoff) {
				excluded[e.ContentItemID] = struct{}{}
			}
		}

		fresh := make([]*content.Item, 0, len(pool))
		for _, item := range pool {
			if _, used := excluded[item.ID]; !used {
				fresh = append(fresh, item)
			}
		}
		if len(fresh) > 0 {
			candidates = fresh
		}
	}

	return candidates[s.intN(len(candidates))], nil
}

func (s *Selector) intN(n int) int {
	if s.rng == nil {
		return rand.IntN(n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}
