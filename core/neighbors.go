package core

import (
	"sort"
)

// NeighborGraph derives, per robot, the set of robots within
// communication-qualifying range. Neighborship is a geometric
// prerequisite for any delivery and is independent of the
// per-message drop decision; classification uses only distance and
// cached visibility, so it is symmetric by construction.
type NeighborGraph struct {
	cfg   CommsConfig
	world WorldQuery
	vis   *VisibilityCache
	swarm *Swarm
}

// NewNeighborGraph wires the graph to its collaborators.
func NewNeighborGraph(cfg CommsConfig, world WorldQuery, vis *VisibilityCache, swarm *Swarm) *NeighborGraph {
	return &NeighborGraph{cfg: cfg, world: world, vis: vis, swarm: swarm}
}

// Recompute rebuilds every robot's neighbor set from current
// positions and the visibility cache, then publishes changed sets to
// the owning robots. It returns the total number of unordered
// neighbor pairs.
func (g *NeighborGraph) Recompute() int {
	addresses := g.swarm.Addresses()
	sets := make(map[string][]string, len(addresses))

	pairs := 0
	for i := 0; i < len(addresses); i++ {
		for j := i + 1; j < len(addresses); j++ {
			a, b := addresses[i], addresses[j]
			if g.qualifies(a, b) {
				sets[a] = append(sets[a], b)
				sets[b] = append(sets[b], a)
				pairs++
			}
		}
	}

	for _, addr := range addresses {
		set := sets[addr]
		sort.Strings(set)
		if robot := g.swarm.Get(addr); robot != nil {
			robot.setNeighbors(set)
		}
	}
	return pairs
}

// IsNeighbor reports whether b is in a's current published neighbor
// set. Symmetric: IsNeighbor(a,b) == IsNeighbor(b,a) after any
// recomputation.
func (g *NeighborGraph) IsNeighbor(a, b string) bool {
	robot := g.swarm.Get(a)
	if robot == nil {
		return false
	}
	for _, n := range robot.Neighbors() {
		if n == b {
			return true
		}
	}
	return false
}

// qualifies applies the neighbor thresholds to one unordered pair:
// effective distance (raw distance plus any obstruction penalty)
// must lie within [NeighborDistanceMin, NeighborDistanceMax], with
// negative bounds meaning no limit on that side.
func (g *NeighborGraph) qualifies(a, b string) bool {
	posA, okA := g.world.PositionOf(a)
	posB, okB := g.world.PositionOf(b)
	if !okA || !okB {
		return false
	}

	dist := posA.DistanceTo(posB)

	rec, ok := g.vis.Record(a, b)
	if !ok {
		// No cached visibility yet for this pair; without a LoS
		// verdict the pair cannot qualify.
		return false
	}
	if !rec.Clear {
		if g.cfg.NeighborDistancePenaltyTree < 0 {
			// A negative penalty severs the relation outright.
			return false
		}
		dist += g.cfg.NeighborDistancePenaltyTree
	}

	if g.cfg.NeighborDistanceMin >= 0 && dist < g.cfg.NeighborDistanceMin {
		return false
	}
	if g.cfg.NeighborDistanceMax >= 0 && dist > g.cfg.NeighborDistanceMax {
		return false
	}
	return true
}
