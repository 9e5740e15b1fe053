package core

import (
	"fmt"
	"time"
)

// Well-known addressing constants. Every robot owns one unicast
// address; the broadcast and multicast addresses are reserved.
const (
	// BroadcastAddr targets every current neighbor of the sender.
	BroadcastAddr = "broadcast"

	// MulticastAddr targets the single supported multicast group.
	// Robots join the group by binding a handler on this address.
	MulticastAddr = "multicast"

	// DefaultPort is used when a sender does not specify one.
	DefaultPort = 4100

	// DefaultMTU is the largest payload (bytes) the broker accepts.
	DefaultMTU = 1500
)

// CommsConfig holds the thresholds of the communication model. A
// negative distance or duration bound means "no limit on that side";
// a negative penalty means an obstruction severs the relation
// outright instead of inflating the distance.
type CommsConfig struct {
	// Neighbor classification thresholds (metres).
	NeighborDistanceMin         float64
	NeighborDistanceMax         float64
	NeighborDistancePenaltyTree float64

	// Per-message delivery thresholds (metres). Typically tighter than
	// the neighbor thresholds: a pair can be neighbors yet still fail
	// to exchange a given message.
	CommsDistanceMin         float64
	CommsDistanceMax         float64
	CommsDistancePenaltyTree float64

	// Drop probability endpoints: interpolated linearly between
	// CommsDropProbabilityMin at zero distance and
	// CommsDropProbabilityMax at CommsDistanceMax.
	CommsDropProbabilityMin float64
	CommsDropProbabilityMax float64

	// Outage model. CommsOutageProbability is a per-second probability
	// of entering an outage, scaled by the elapsed evaluation
	// interval. Negative duration bounds mean an outage never expires
	// on its own.
	CommsOutageProbability float64
	CommsOutageDurationMin time.Duration
	CommsOutageDurationMax time.Duration

	// UpdateRate is how many times per simulated second the expensive
	// O(n^2) visibility/neighbor recomputation runs. Dispatching
	// queued messages still happens every tick.
	UpdateRate float64

	// MTU bounds outgoing payload size in bytes.
	MTU int
}

// DefaultCommsConfig returns the documented defaults: unbounded
// distances, zero penalties and probabilities, one recomputation per
// simulated second, 1500-byte MTU.
func DefaultCommsConfig() CommsConfig {
	return CommsConfig{
		NeighborDistanceMin:         -1,
		NeighborDistanceMax:         -1,
		NeighborDistancePenaltyTree: 0,
		CommsDistanceMin:            -1,
		CommsDistanceMax:            -1,
		CommsDistancePenaltyTree:    0,
		CommsDropProbabilityMin:     0,
		CommsDropProbabilityMax:     0,
		CommsOutageProbability:      0,
		CommsOutageDurationMin:      -1,
		CommsOutageDurationMax:      -1,
		UpdateRate:                  1,
		MTU:                         DefaultMTU,
	}
}

// Warnings returns human-readable configuration warnings. These are
// logged and do not stop the simulation: a questionable configuration
// degrades behavior, it never halts a run.
func (c CommsConfig) Warnings() []string {
	var out []string

	// No more than one line of trees may separate two communicating
	// vehicles: crossing two must push the pair out of range.
	if c.NeighborDistancePenaltyTree > 0 && c.NeighborDistanceMax >= 0 &&
		c.NeighborDistancePenaltyTree*2 <= c.NeighborDistanceMax {
		out = append(out, fmt.Sprintf(
			"neighbor_distance_penalty_tree (%.1f) * 2 should exceed neighbor_distance_max (%.1f)",
			c.NeighborDistancePenaltyTree, c.NeighborDistanceMax))
	}
	if c.CommsDistancePenaltyTree > 0 && c.CommsDistanceMax >= 0 &&
		c.CommsDistancePenaltyTree*2 <= c.CommsDistanceMax {
		out = append(out, fmt.Sprintf(
			"comms_distance_penalty_tree (%.1f) * 2 should exceed comms_distance_max (%.1f)",
			c.CommsDistancePenaltyTree, c.CommsDistanceMax))
	}

	if c.CommsDropProbabilityMin > c.CommsDropProbabilityMax {
		out = append(out, fmt.Sprintf(
			"comms_drop_probability_min (%.3f) exceeds comms_drop_probability_max (%.3f)",
			c.CommsDropProbabilityMin, c.CommsDropProbabilityMax))
	}
	if c.CommsOutageDurationMin >= 0 && c.CommsOutageDurationMax >= 0 &&
		c.CommsOutageDurationMin > c.CommsOutageDurationMax {
		out = append(out, fmt.Sprintf(
			"comms_outage_duration_min (%s) exceeds comms_outage_duration_max (%s)",
			c.CommsOutageDurationMin, c.CommsOutageDurationMax))
	}

	return out
}

// evalInterval converts UpdateRate into the throttling interval for
// the O(n^2) recomputation. A non-positive rate falls back to once
// per simulated second.
func (c CommsConfig) evalInterval() time.Duration {
	if c.UpdateRate <= 0 {
		return time.Second
	}
	return time.Duration(float64(time.Second) / c.UpdateRate)
}

// mtu returns the configured MTU, defaulting when unset.
func (c CommsConfig) mtu() int {
	if c.MTU <= 0 {
		return DefaultMTU
	}
	return c.MTU
}
