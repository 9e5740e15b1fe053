package core

// LinkQualityModel decides, for a sender/recipient pair already known
// to be neighbors, whether one specific message instance gets
// through. Every evaluation is independent per recipient and per
// message: recipients of the same broadcast share no state.
type LinkQualityModel struct {
	cfg     CommsConfig
	world   WorldQuery
	vis     *VisibilityCache
	outages *OutageScheduler
	rng     *drawSource
}

// NewLinkQualityModel wires the model to its collaborators.
func NewLinkQualityModel(cfg CommsConfig, world WorldQuery, vis *VisibilityCache, outages *OutageScheduler, rng *drawSource) *LinkQualityModel {
	return &LinkQualityModel{cfg: cfg, world: world, vis: vis, outages: outages, rng: rng}
}

// Evaluate decides delivery of a single message from src to dst.
// When the message is dropped, the second return value names the
// reason (one of the Drop* constants).
func (m *LinkQualityModel) Evaluate(src, dst string) (bool, string) {
	// An outage at either endpoint drops unconditionally.
	if m.outages.IsInOutage(src) || m.outages.IsInOutage(dst) {
		return false, DropOutage
	}

	posA, okA := m.world.PositionOf(src)
	posB, okB := m.world.PositionOf(dst)
	if !okA || !okB {
		return false, DropDistance
	}
	dist := posA.DistanceTo(posB)

	rec, ok := m.vis.Record(src, dst)
	if !ok {
		return false, DropObstruction
	}
	if !rec.Clear {
		if m.cfg.CommsDistancePenaltyTree < 0 {
			return false, DropObstruction
		}
		dist += m.cfg.CommsDistancePenaltyTree
	}

	if m.cfg.CommsDistanceMin >= 0 && dist < m.cfg.CommsDistanceMin {
		return false, DropDistance
	}
	if m.cfg.CommsDistanceMax >= 0 && dist > m.cfg.CommsDistanceMax {
		return false, DropDistance
	}

	if p := m.dropProbability(dist); p > 0 && m.rng.Float64() < p {
		return false, DropDraw
	}
	return true, ""
}

// dropProbability interpolates linearly between the configured drop
// probability at zero distance and the one at CommsDistanceMax. With
// an unbounded comms range there is no far anchor to interpolate
// toward, so the near-end probability applies at every distance.
func (m *LinkQualityModel) dropProbability(effectiveDist float64) float64 {
	lo := m.cfg.CommsDropProbabilityMin
	hi := m.cfg.CommsDropProbabilityMax
	if m.cfg.CommsDistanceMax < 0 || hi <= lo {
		return lo
	}

	frac := effectiveDist / m.cfg.CommsDistanceMax
	if frac < 0 {
		frac = 0
	} else if frac > 1 {
		frac = 1
	}
	return lo + (hi-lo)*frac
}
