package core

import (
	"context"
	"sync"
	"time"

	"github.com/signalsfoundry/swarm-comms-simulator/internal/logging"
)

// outageState tracks one robot's temporary inability to send or
// receive. A state with unbounded=true never expires on its own.
type outageState struct {
	inOutage  bool
	unbounded bool
	until     time.Time
}

// OutageScheduler decides, independently per robot, whether it is in
// a communications outage. State mutates only inside Update; queries
// have no side effects.
type OutageScheduler struct {
	cfg CommsConfig
	rng *drawSource
	log logging.Logger

	mu         sync.RWMutex
	states     map[string]*outageState
	lastUpdate time.Time
	hasUpdated bool

	recorder DeliveryRecorder
}

// NewOutageScheduler creates a scheduler with every robot initially
// out of outage.
func NewOutageScheduler(cfg CommsConfig, rng *drawSource, log logging.Logger) *OutageScheduler {
	if log == nil {
		log = logging.Noop()
	}
	return &OutageScheduler{
		cfg:    cfg,
		rng:    rng,
		log:    log,
		states: make(map[string]*outageState),
	}
}

// SetRecorder attaches an optional comms-log sink for outage
// transitions.
func (o *OutageScheduler) SetRecorder(rec DeliveryRecorder) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.recorder = rec
}

// Update runs one evaluation pass at the given simulation time. For
// each robot not in outage it draws a Bernoulli trial with the
// per-second outage probability scaled by the elapsed interval; for
// robots in a bounded outage it clears the state once the deadline
// passes. If simulation time moved backwards (scenario reset) the
// scheduler resynchronizes without evaluating.
func (o *OutageScheduler) Update(simTime time.Time, addresses []string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.hasUpdated && !simTime.After(o.lastUpdate) {
		o.lastUpdate = simTime
		return
	}

	dt := time.Duration(0)
	if o.hasUpdated {
		dt = simTime.Sub(o.lastUpdate)
	}
	o.lastUpdate = simTime
	o.hasUpdated = true

	var transitions []outageTransition
	for _, addr := range addresses {
		st := o.states[addr]
		if st == nil {
			st = &outageState{}
			o.states[addr] = st
		}

		if st.inOutage {
			if !st.unbounded && !simTime.Before(st.until) {
				st.inOutage = false
				transitions = append(transitions, outageTransition{addr, false})
				o.log.Debug(context.Background(), "outage cleared",
					logging.String("address", addr))
			}
			continue
		}

		// The configured probability is per simulated second, so the
		// trial scales with the elapsed interval. A probability of
		// exactly 1.0 triggers deterministically.
		enter := o.cfg.CommsOutageProbability >= 1.0
		if !enter && o.cfg.CommsOutageProbability > 0 && dt > 0 {
			enter = o.rng.Float64() < o.cfg.CommsOutageProbability*dt.Seconds()
		}
		if !enter {
			continue
		}

		st.inOutage = true
		if o.cfg.CommsOutageDurationMin < 0 || o.cfg.CommsOutageDurationMax < 0 {
			st.unbounded = true
		} else {
			st.unbounded = false
			dur := o.rng.Uniform(
				o.cfg.CommsOutageDurationMin.Seconds(),
				o.cfg.CommsOutageDurationMax.Seconds())
			st.until = simTime.Add(time.Duration(dur * float64(time.Second)))
		}
		transitions = append(transitions, outageTransition{addr, true})
		o.log.Debug(context.Background(), "outage started",
			logging.String("address", addr))
	}

	if o.recorder != nil {
		for _, tr := range transitions {
			o.recorder.RecordOutage(simTime, tr.address, tr.entered)
		}
	}
}

// IsInOutage reports whether the robot is currently unable to
// transmit or receive.
func (o *OutageScheduler) IsInOutage(address string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	st := o.states[address]
	return st != nil && st.inOutage
}

// InOutageCount returns how many robots are currently in outage.
func (o *OutageScheduler) InOutageCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	n := 0
	for _, st := range o.states {
		if st.inOutage {
			n++
		}
	}
	return n
}

type outageTransition struct {
	address string
	entered bool
}
