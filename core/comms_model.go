package core

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/swarm-comms-simulator/internal/logging"
)

const tracerName = "swarm-comms"

// CommsModel is the communication core: it owns the outage scheduler,
// the visibility cache, the neighbor graph, the link quality model
// and the message broker, and drives them from a single Update entry
// point invoked once per simulation step.
//
// The expensive O(n^2) visibility/neighbor recomputation is throttled
// to the configured update rate independent of the tick rate; queued
// datagrams are dispatched on every tick.
type CommsModel struct {
	cfg   CommsConfig
	world WorldQuery
	swarm *Swarm
	log   logging.Logger

	outages   *OutageScheduler
	vis       *VisibilityCache
	neighbors *NeighborGraph
	quality   *LinkQualityModel
	broker    *Broker

	tracer  trace.Tracer
	metrics MetricsRecorder

	mu        sync.Mutex
	lastEval  time.Time
	evaluated bool
}

// NewCommsModel builds the comms core for the given world and swarm.
// All stochastic decisions draw from a single generator seeded with
// seed, so a fixed seed replays identical outage and drop decisions.
func NewCommsModel(cfg CommsConfig, world WorldQuery, swarm *Swarm, seed int64, log logging.Logger) *CommsModel {
	if log == nil {
		log = logging.Noop()
	}
	for _, warning := range cfg.Warnings() {
		log.Warn(context.Background(), "comms configuration warning",
			logging.String("detail", warning))
	}

	rng := newDrawSource(seed)
	outages := NewOutageScheduler(cfg, rng, log)
	vis := NewVisibilityCache(world)
	neighbors := NewNeighborGraph(cfg, world, vis, swarm)
	quality := NewLinkQualityModel(cfg, world, vis, outages, rng)
	broker := NewBroker(cfg, swarm, neighbors, quality, log)

	return &CommsModel{
		cfg:       cfg,
		world:     world,
		swarm:     swarm,
		log:       log,
		outages:   outages,
		vis:       vis,
		neighbors: neighbors,
		quality:   quality,
		broker:    broker,
		tracer:    otel.Tracer(tracerName),
	}
}

// SetMetrics attaches a metrics sink to the model and its broker.
func (m *CommsModel) SetMetrics(rec MetricsRecorder) {
	m.mu.Lock()
	m.metrics = rec
	m.mu.Unlock()
	m.broker.SetMetrics(rec)
}

// SetRecorder attaches a comms-log sink to the broker and the outage
// scheduler.
func (m *CommsModel) SetRecorder(rec DeliveryRecorder) {
	m.broker.SetRecorder(rec)
	m.outages.SetRecorder(rec)
}

// Broker returns the message broker robots send through.
func (m *CommsModel) Broker() *Broker {
	return m.broker
}

// Visibility returns the visibility cache (read-only use: snapshots
// and per-pair queries).
func (m *CommsModel) Visibility() *VisibilityCache {
	return m.vis
}

// IsInOutage reports the robot's current outage state.
func (m *CommsModel) IsInOutage(address string) bool {
	return m.outages.IsInOutage(address)
}

// IsNeighbor reports current neighborship between two addresses.
func (m *CommsModel) IsNeighbor(a, b string) bool {
	return m.neighbors.IsNeighbor(a, b)
}

// Update advances the comms model to simTime. When the throttle
// interval has elapsed it re-evaluates outages, recomputes the
// visibility cache and rebuilds neighbor sets (publishing changes to
// the robots); it then dispatches all queued datagrams. Everything
// runs synchronously within the call: once a recomputation begins it
// runs to completion, and no partial work carries across ticks.
func (m *CommsModel) Update(simTime time.Time) {
	ctx, span := m.tracer.Start(context.Background(), "comms.update",
		trace.WithAttributes(attribute.Int("swarm_size", m.swarm.Size())))
	defer span.End()

	if m.shouldRecompute(simTime) {
		m.recompute(ctx, simTime)
	}

	_, dspan := m.tracer.Start(ctx, "comms.dispatch")
	dispatched := m.broker.Dispatch(simTime)
	dspan.SetAttributes(attribute.Int("datagrams", len(dispatched)))
	dspan.End()
}

func (m *CommsModel) shouldRecompute(simTime time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.evaluated && simTime.Sub(m.lastEval) < m.cfg.evalInterval() {
		return false
	}
	m.lastEval = simTime
	m.evaluated = true
	return true
}

func (m *CommsModel) recompute(ctx context.Context, simTime time.Time) {
	_, span := m.tracer.Start(ctx, "comms.recompute")
	defer span.End()

	start := time.Now()
	addresses := m.swarm.Addresses()

	m.outages.Update(simTime, addresses)

	if err := m.vis.Recompute(addresses); err != nil {
		// An environment query failure is fatal to this pass only;
		// the previous visibility and neighbor state stays in effect.
		m.log.Warn(ctx, "visibility recompute failed, retaining cached state",
			logging.String("error", err.Error()))
		span.RecordError(err)
		return
	}

	links := m.neighbors.Recompute()

	m.mu.Lock()
	metrics := m.metrics
	m.mu.Unlock()
	if metrics != nil {
		metrics.SetSwarmGauges(len(addresses), links, m.outages.InOutageCount())
		metrics.ObserveRecompute(time.Since(start))
	}
	span.SetAttributes(attribute.Int("neighbor_links", links))
}
