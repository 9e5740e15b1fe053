package core

import (
	"context"
	"sync"
	"time"

	"github.com/signalsfoundry/swarm-comms-simulator/internal/logging"
)

// Datagram is one addressed message moving through the broker.
// Recipients is filled in during dispatch with the addresses for
// which delivery succeeded.
type Datagram struct {
	SrcAddress string
	DstAddress string
	DstPort    int
	Payload    []byte
	Recipients []string
}

// Broker is the single point of ingress and egress for inter-robot
// communication. SendTo queues outgoing datagrams; Dispatch resolves
// recipients against the neighbor graph, applies the link quality
// model per recipient, and invokes the surviving handlers.
//
// The mutex guards only the queue. Dispatch swaps the queue out under
// the lock and routes without holding it, so a handler can call
// SendTo re-entrantly without deadlocking.
type Broker struct {
	cfg       CommsConfig
	swarm     *Swarm
	neighbors *NeighborGraph
	quality   *LinkQualityModel
	log       logging.Logger

	mu    sync.Mutex
	queue []Datagram

	metrics  MetricsRecorder
	recorder DeliveryRecorder
}

// NewBroker wires the broker to its collaborators.
func NewBroker(cfg CommsConfig, swarm *Swarm, neighbors *NeighborGraph, quality *LinkQualityModel, log logging.Logger) *Broker {
	if log == nil {
		log = logging.Noop()
	}
	return &Broker{
		cfg:       cfg,
		swarm:     swarm,
		neighbors: neighbors,
		quality:   quality,
		log:       log,
	}
}

// SetMetrics attaches an optional metrics sink.
func (b *Broker) SetMetrics(m MetricsRecorder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metrics = m
}

// SetRecorder attaches an optional comms-log sink.
func (b *Broker) SetRecorder(rec DeliveryRecorder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recorder = rec
}

// SendTo submits a payload from srcAddress to dstAddress:port. It
// returns false only on local validation failure: an oversized
// payload or an unknown sender, neither of which has any network
// effect. A true return means "accepted for routing", not delivered;
// delivery is best-effort and resolved at the next dispatch pass.
func (b *Broker) SendTo(srcAddress string, payload []byte, dstAddress string, port int) bool {
	if len(payload) > b.cfg.mtu() {
		b.log.Warn(context.Background(), "payload exceeds MTU, rejected",
			logging.String("src", srcAddress),
			logging.Int("size", len(payload)),
			logging.Int("mtu", b.cfg.mtu()))
		if m := b.metricsSink(); m != nil {
			m.IncDropped(DropOversized)
		}
		return false
	}
	if b.swarm.Get(srcAddress) == nil {
		b.log.Warn(context.Background(), "send from unknown address rejected",
			logging.String("src", srcAddress))
		return false
	}

	data := make([]byte, len(payload))
	copy(data, payload)

	b.mu.Lock()
	b.queue = append(b.queue, Datagram{
		SrcAddress: srcAddress,
		DstAddress: dstAddress,
		DstPort:    port,
		Payload:    data,
	})
	b.mu.Unlock()

	if m := b.metricsSink(); m != nil {
		m.IncSent()
	}
	return true
}

// Send is SendTo with the default port.
func (b *Broker) Send(srcAddress string, payload []byte, dstAddress string) bool {
	return b.SendTo(srcAddress, payload, dstAddress, DefaultPort)
}

// Dispatch routes every queued datagram. For each one it resolves
// candidate recipients from the sender's current neighbor set, runs
// the per-recipient link quality evaluation, appends survivors to the
// datagram's Recipients list and invokes their bound handlers. A
// recipient with no handler at the destination endpoint silently
// misses the message; that is not an error for the sender.
func (b *Broker) Dispatch(simTime time.Time) []Datagram {
	b.mu.Lock()
	pending := b.queue
	b.queue = nil
	metrics := b.metrics
	recorder := b.recorder
	b.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	for i := range pending {
		b.route(&pending[i], metrics)
		if recorder != nil {
			recorder.RecordDatagram(simTime, pending[i])
		}
	}
	return pending
}

func (b *Broker) route(msg *Datagram, metrics MetricsRecorder) {
	for _, dst := range b.resolveCandidates(msg) {
		ok, reason := b.quality.Evaluate(msg.SrcAddress, dst)
		if !ok {
			if metrics != nil {
				metrics.IncDropped(reason)
			}
			continue
		}

		msg.Recipients = append(msg.Recipients, dst)
		if metrics != nil {
			metrics.IncDelivered(1)
		}

		robot := b.swarm.Get(dst)
		if robot == nil {
			continue
		}
		handler := robot.handlerFor(b.handlerAddress(msg, dst), msg.DstPort)
		if handler == nil {
			continue
		}
		handler(msg.SrcAddress, msg.Payload)
	}
}

// resolveCandidates maps the destination address form to concrete
// recipients, all gated on current neighborship with the sender.
func (b *Broker) resolveCandidates(msg *Datagram) []string {
	sender := b.swarm.Get(msg.SrcAddress)
	if sender == nil {
		return nil
	}
	neighbors := sender.Neighbors()

	switch msg.DstAddress {
	case BroadcastAddr:
		return neighbors
	case MulticastAddr:
		var out []string
		for _, addr := range neighbors {
			if robot := b.swarm.Get(addr); robot != nil && robot.SubscribedToGroup(msg.DstPort) {
				out = append(out, addr)
			}
		}
		return out
	default:
		for _, addr := range neighbors {
			if addr == msg.DstAddress {
				return []string{addr}
			}
		}
		if m := b.metricsSink(); m != nil {
			m.IncDropped(DropNotNeighbor)
		}
		return nil
	}
}

// handlerAddress picks the dispatch-table key on the recipient side:
// broadcast datagrams arrive on the recipient's own unicast binding,
// multicast on the group binding, unicast on the addressed binding.
func (b *Broker) handlerAddress(msg *Datagram, recipient string) string {
	switch msg.DstAddress {
	case BroadcastAddr:
		return recipient
	default:
		return msg.DstAddress
	}
}

func (b *Broker) metricsSink() MetricsRecorder {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.metrics
}
