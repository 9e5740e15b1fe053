package core

import (
	"fmt"
	"sync"
)

// PairKey indexes pairwise caches by an unordered pair of robot
// addresses: PairKey(a,b) == PairKey(b,a).
type PairKey struct {
	A, B string
}

// MakePairKey builds the canonical (sorted) key for two addresses.
func MakePairKey(a, b string) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{A: a, B: b}
}

// VisibilityRecord is the cached line-of-sight result for one pair.
// Obstructors holds a single empty string when the path is clear, or
// the first and last obstructing entity names when blocked.
type VisibilityRecord struct {
	Clear       bool
	Obstructors []string
}

// VisibilityCache holds per-pair line-of-sight results. Records are
// recomputed wholesale, never incrementally updated; between
// recomputations cached values are reused verbatim.
type VisibilityCache struct {
	world WorldQuery

	mu      sync.RWMutex
	records map[PairKey]VisibilityRecord
}

// NewVisibilityCache creates an empty cache backed by the given world.
func NewVisibilityCache(world WorldQuery) *VisibilityCache {
	return &VisibilityCache{
		world:   world,
		records: make(map[PairKey]VisibilityRecord),
	}
}

// Recompute issues one line-of-sight query per unordered pair of the
// given addresses and replaces the cache with the results. If any
// world query fails, the whole pass is abandoned and the previous
// records are retained: a broken environment degrades to stale data,
// not to a halted simulation.
func (v *VisibilityCache) Recompute(addresses []string) error {
	fresh := make(map[PairKey]VisibilityRecord, len(addresses)*(len(addresses)-1)/2)

	for i := 0; i < len(addresses); i++ {
		posA, okA := v.world.PositionOf(addresses[i])
		if !okA {
			return fmt.Errorf("visibility recompute: no position for %q", addresses[i])
		}
		for j := i + 1; j < len(addresses); j++ {
			posB, okB := v.world.PositionOf(addresses[j])
			if !okB {
				return fmt.Errorf("visibility recompute: no position for %q", addresses[j])
			}

			clear, obstructors, err := v.world.LineOfSight(posA, posB)
			if err != nil {
				return fmt.Errorf("visibility recompute: %s-%s: %w",
					addresses[i], addresses[j], err)
			}
			fresh[MakePairKey(addresses[i], addresses[j])] = VisibilityRecord{
				Clear:       clear,
				Obstructors: obstructors,
			}
		}
	}

	v.mu.Lock()
	v.records = fresh
	v.mu.Unlock()
	return nil
}

// Record returns the cached result for the unordered pair (a, b).
func (v *VisibilityCache) Record(a, b string) (VisibilityRecord, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	rec, ok := v.records[MakePairKey(a, b)]
	return rec, ok
}

// Snapshot returns a copy of every cached record, keyed by pair. Used
// by the end-of-run visibility export.
func (v *VisibilityCache) Snapshot() map[PairKey]VisibilityRecord {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[PairKey]VisibilityRecord, len(v.records))
	for k, rec := range v.records {
		out[k] = rec
	}
	return out
}
