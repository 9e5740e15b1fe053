package core

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrRobotExists   = errors.New("robot already exists")
	ErrRobotNotFound = errors.New("robot not found")
	ErrRobotBadInput = errors.New("invalid robot")
	ErrBadBind       = errors.New("invalid bind address")
)

// HandlerFunc receives an inbound payload delivered to a bound
// endpoint. srcAddress is the unicast address of the sender.
type HandlerFunc func(srcAddress string, payload []byte)

// NeighborObserver is notified whenever the robot's published
// neighbor set changes.
type NeighborObserver func(neighbors []string)

// Robot is a swarm member as the comms core sees it: an immutable
// unicast address, a dispatch table keyed by (address, port), and the
// published neighbor set. Pose lives in the World and is refreshed by
// the simulation engine, not stored here.
//
// The mutex guards the published neighbor list and the dispatch
// table: delivery callbacks may run on a different goroutine than the
// recomputation pass. It is held only across the map/slice access,
// never across a geometry query or a random draw.
type Robot struct {
	address string

	mu        sync.Mutex
	handlers  map[string]HandlerFunc
	neighbors []string
	observers []NeighborObserver
}

// NewRobot creates a robot with the given unicast address.
func NewRobot(address string) *Robot {
	return &Robot{
		address:  address,
		handlers: make(map[string]HandlerFunc),
	}
}

// Address returns the robot's immutable unicast address.
func (r *Robot) Address() string {
	return r.address
}

// Bind registers a handler for (address, port). A robot may only bind
// its own unicast address or the multicast group address; binding the
// multicast address subscribes the robot to that group on the given
// port. Binding the unicast address also makes the robot reachable by
// broadcast on that port.
func (r *Robot) Bind(address string, port int, fn HandlerFunc) error {
	if fn == nil {
		return fmt.Errorf("%w: nil handler", ErrBadBind)
	}
	if address != r.address && address != MulticastAddr {
		return fmt.Errorf("%w: %q is neither %q nor %q",
			ErrBadBind, address, r.address, MulticastAddr)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[endpoint(address, port)] = fn
	return nil
}

// handlerFor returns the handler bound at (address, port), or nil.
func (r *Robot) handlerFor(address string, port int) HandlerFunc {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handlers[endpoint(address, port)]
}

// SubscribedToGroup reports whether the robot has joined the
// multicast group on the given port.
func (r *Robot) SubscribedToGroup(port int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handlers[endpoint(MulticastAddr, port)] != nil
}

// Neighbors returns a copy of the robot's current published neighbor
// set.
func (r *Robot) Neighbors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.neighbors))
	copy(out, r.neighbors)
	return out
}

// OnNeighborUpdate registers an observer for neighbor-set changes.
func (r *Robot) OnNeighborUpdate(fn NeighborObserver) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

// setNeighbors publishes a new neighbor set. The list must be sorted
// by the caller. Observers fire only when the set actually changed,
// and outside the robot's lock.
func (r *Robot) setNeighbors(neighbors []string) {
	r.mu.Lock()
	if equalStrings(r.neighbors, neighbors) {
		r.mu.Unlock()
		return
	}
	r.neighbors = neighbors
	observers := make([]NeighborObserver, len(r.observers))
	copy(observers, r.observers)
	r.mu.Unlock()

	published := make([]string, len(neighbors))
	copy(published, neighbors)
	for _, fn := range observers {
		fn(published)
	}
}

// Swarm is the address -> Robot membership map. Membership is
// externally owned and does not change during a simulation run; the
// comms core holds a non-owning reference.
type Swarm struct {
	mu      sync.RWMutex
	members map[string]*Robot
}

// NewSwarm creates an empty swarm.
func NewSwarm() *Swarm {
	return &Swarm{members: make(map[string]*Robot)}
}

// Add registers a robot. Addresses must be unique and must not
// collide with the reserved broadcast/multicast addresses.
func (s *Swarm) Add(r *Robot) error {
	if r == nil || r.address == "" {
		return fmt.Errorf("%w: nil robot or empty address", ErrRobotBadInput)
	}
	if r.address == BroadcastAddr || r.address == MulticastAddr {
		return fmt.Errorf("%w: %q is a reserved address", ErrRobotBadInput, r.address)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.members[r.address]; exists {
		return fmt.Errorf("%w: %q", ErrRobotExists, r.address)
	}
	s.members[r.address] = r
	return nil
}

// Get returns the robot with the given address, or nil.
func (s *Swarm) Get(address string) *Robot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.members[address]
}

// Size returns the number of members.
func (s *Swarm) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members)
}

// Addresses returns all member addresses in sorted order, so that
// every per-tick iteration over the swarm is deterministic.
func (s *Swarm) Addresses() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.members))
	for addr := range s.members {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

func endpoint(address string, port int) string {
	return fmt.Sprintf("%s:%d", address, port)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
