package core

import (
	"sync"
	"time"
)

// countingMetrics is an in-memory MetricsRecorder for assertions.
type countingMetrics struct {
	mu        sync.Mutex
	sent      int
	delivered int
	dropped   map[string]int

	robots, links, outages int
	recomputes             int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{dropped: make(map[string]int)}
}

func (m *countingMetrics) IncSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent++
}

func (m *countingMetrics) IncDelivered(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered += n
}

func (m *countingMetrics) IncDropped(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped[reason]++
}

func (m *countingMetrics) SetSwarmGauges(robots, neighborLinks, outages int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.robots, m.links, m.outages = robots, neighborLinks, outages
}

func (m *countingMetrics) ObserveRecompute(time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recomputes++
}

func (m *countingMetrics) droppedFor(reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped[reason]
}

// memoryRecorder is an in-memory DeliveryRecorder for assertions.
type memoryRecorder struct {
	mu        sync.Mutex
	datagrams []Datagram
	outageLog []string
}

func (r *memoryRecorder) RecordDatagram(_ time.Time, d Datagram) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.datagrams = append(r.datagrams, d)
}

func (r *memoryRecorder) RecordOutage(_ time.Time, address string, entered bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event := address + ":cleared"
	if entered {
		event = address + ":entered"
	}
	r.outageLog = append(r.outageLog, event)
}
