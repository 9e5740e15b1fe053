package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CommsCollector bundles Prometheus metrics for the comms core and
// provides a ready-to-mount /metrics handler.
type CommsCollector struct {
	gatherer prometheus.Gatherer

	DatagramsSent      prometheus.Counter
	DatagramsDelivered prometheus.Counter
	DatagramsDropped   *prometheus.CounterVec

	SwarmRobots    prometheus.Gauge
	NeighborLinks  prometheus.Gauge
	RobotsInOutage prometheus.Gauge

	RecomputeDuration prometheus.Histogram
}

// NewCommsCollector registers comms Prometheus metrics against the
// provided registerer, defaulting to the global registry when nil.
func NewCommsCollector(reg prometheus.Registerer) (*CommsCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	sent, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "comms_datagrams_sent_total",
		Help: "Total datagrams accepted for routing by the broker.",
	}), "comms_datagrams_sent_total")
	if err != nil {
		return nil, err
	}
	delivered, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "comms_datagrams_delivered_total",
		Help: "Total per-recipient deliveries that passed the link quality model.",
	}), "comms_datagrams_delivered_total")
	if err != nil {
		return nil, err
	}

	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comms_datagrams_dropped_total",
		Help: "Total per-recipient drops, labeled by reason.",
	}, []string{"reason"})
	dropped, err = registerCounterVec(reg, dropped, "comms_datagrams_dropped_total")
	if err != nil {
		return nil, err
	}

	robots, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "comms_swarm_robots",
		Help: "Current number of robots in the swarm membership.",
	}), "comms_swarm_robots")
	if err != nil {
		return nil, err
	}
	links, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "comms_neighbor_links",
		Help: "Current number of unordered neighbor pairs.",
	}), "comms_neighbor_links")
	if err != nil {
		return nil, err
	}
	outages, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "comms_robots_in_outage",
		Help: "Current number of robots in a communications outage.",
	}), "comms_robots_in_outage")
	if err != nil {
		return nil, err
	}

	recompute := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "comms_recompute_duration_seconds",
		Help:    "Wall time of one O(n^2) visibility/neighbor recomputation.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})
	recompute, err = registerHistogram(reg, recompute, "comms_recompute_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &CommsCollector{
		gatherer:           gatherer,
		DatagramsSent:      sent,
		DatagramsDelivered: delivered,
		DatagramsDropped:   dropped,
		SwarmRobots:        robots,
		NeighborLinks:      links,
		RobotsInOutage:     outages,
		RecomputeDuration:  recompute,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *CommsCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// IncSent satisfies the core MetricsRecorder interface so the broker
// can drive counters directly.
func (c *CommsCollector) IncSent() {
	if c == nil || c.DatagramsSent == nil {
		return
	}
	c.DatagramsSent.Inc()
}

func (c *CommsCollector) IncDelivered(n int) {
	if c == nil || c.DatagramsDelivered == nil {
		return
	}
	c.DatagramsDelivered.Add(float64(n))
}

func (c *CommsCollector) IncDropped(reason string) {
	if c == nil || c.DatagramsDropped == nil {
		return
	}
	c.DatagramsDropped.WithLabelValues(reason).Inc()
}

func (c *CommsCollector) SetSwarmGauges(robots, neighborLinks, outages int) {
	if c == nil {
		return
	}
	if c.SwarmRobots != nil {
		c.SwarmRobots.Set(float64(robots))
	}
	if c.NeighborLinks != nil {
		c.NeighborLinks.Set(float64(neighborLinks))
	}
	if c.RobotsInOutage != nil {
		c.RobotsInOutage.Set(float64(outages))
	}
}

func (c *CommsCollector) ObserveRecompute(d time.Duration) {
	if c == nil || c.RecomputeDuration == nil {
		return
	}
	c.RecomputeDuration.Observe(d.Seconds())
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
