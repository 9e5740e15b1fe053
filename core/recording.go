package core

import "time"

// Drop reasons as recorded by metrics and the comms log. Only
// "oversized" is surfaced to the sender; every other reason is a
// modeled communication loss, not an error.
const (
	DropOversized   = "oversized"
	DropNotNeighbor = "not_neighbor"
	DropOutage      = "outage"
	DropObstruction = "obstruction"
	DropDistance    = "distance"
	DropDraw        = "drop_draw"
)

// MetricsRecorder receives comms counters and gauges. The concrete
// implementation lives in internal/observability; the core only
// depends on this interface so it can run without metrics.
type MetricsRecorder interface {
	IncSent()
	IncDelivered(n int)
	IncDropped(reason string)
	SetSwarmGauges(robots, neighborLinks, outages int)
	ObserveRecompute(d time.Duration)
}

// DeliveryRecorder receives the per-tick comms log: routed datagrams
// with their resolved recipients, and outage transitions. The sqlite
// recorder in internal/recorder implements it.
type DeliveryRecorder interface {
	RecordDatagram(simTime time.Time, d Datagram)
	RecordOutage(simTime time.Time, address string, entered bool)
}
