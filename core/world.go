package core

import (
	"fmt"
	"sync"
)

// WorldQuery is the geometry interface the comms core consumes. The
// simulation engine refreshes robot positions every tick; the comms
// core never mutates the world through this interface.
type WorldQuery interface {
	// LineOfSight reports whether an unobstructed straight path exists
	// between p1 and p2. A clear result carries a single empty-string
	// placeholder in the obstructor list; a blocked result carries the
	// names of the first and last obstructing entities only.
	LineOfSight(p1, p2 Vec3) (clear bool, obstructors []string, err error)

	// PositionOf returns the current position of the robot with the
	// given address.
	PositionOf(address string) (Vec3, bool)
}

// World is the in-process world model: a set of named solid obstacles
// plus per-robot positions. It implements WorldQuery.
type World struct {
	mu        sync.RWMutex
	obstacles []Box
	positions map[string]Vec3
}

// NewWorld creates an empty world.
func NewWorld() *World {
	return &World{
		positions: make(map[string]Vec3),
	}
}

// AddObstacle registers a solid entity. Obstacles do not move.
func (w *World) AddObstacle(b Box) error {
	if b.Name == "" {
		return fmt.Errorf("AddObstacle: empty obstacle name")
	}
	if b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z {
		return fmt.Errorf("AddObstacle: %q has inverted bounds", b.Name)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.obstacles = append(w.obstacles, b)
	return nil
}

// Obstacles returns a copy of the registered obstacle list.
func (w *World) Obstacles() []Box {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Box, len(w.obstacles))
	copy(out, w.obstacles)
	return out
}

// SetPosition records the current position of a robot. The simulation
// engine calls this once per tick for every robot.
func (w *World) SetPosition(address string, pos Vec3) {
	if address == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.positions[address] = pos
}

// PositionOf returns the last recorded position for the address.
func (w *World) PositionOf(address string) (Vec3, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	pos, ok := w.positions[address]
	return pos, ok
}

// LineOfSight walks the obstacle list and collects entities that the
// segment p1->p2 passes through. Only the first and last obstructing
// names are reported; intermediate obstacles are deliberately dropped,
// so downstream consumers treat the obstruction count as binary.
func (w *World) LineOfSight(p1, p2 Vec3) (bool, []string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var first, last string
	blocked := 0
	for _, b := range w.obstacles {
		if !b.SegmentIntersects(p1, p2) {
			continue
		}
		if blocked == 0 {
			first = b.Name
		}
		last = b.Name
		blocked++
	}

	if blocked == 0 {
		// The empty-string placeholder signals "no obstruction".
		return true, []string{""}, nil
	}
	return false, []string{first, last}, nil
}
