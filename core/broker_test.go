package core

import (
	"bytes"
	"testing"
	"time"
)

// brokerFixture builds a fully wired broker over a clear world with
// the given robot positions, with neighbors already recomputed.
func brokerFixture(t *testing.T, cfg CommsConfig, positions map[string]Vec3) (*Broker, *Swarm) {
	t.Helper()

	w := NewWorld()
	s := NewSwarm()
	addresses := make([]string, 0, len(positions))
	for addr, pos := range positions {
		if err := s.Add(NewRobot(addr)); err != nil {
			t.Fatalf("Add error: %v", err)
		}
		w.SetPosition(addr, pos)
		addresses = append(addresses, addr)
	}

	v := NewVisibilityCache(w)
	if err := v.Recompute(addresses); err != nil {
		t.Fatalf("visibility Recompute error: %v", err)
	}
	rng := newDrawSource(1)
	outages := NewOutageScheduler(cfg, rng, nil)
	neighbors := NewNeighborGraph(cfg, w, v, s)
	neighbors.Recompute()
	quality := NewLinkQualityModel(cfg, w, v, outages, rng)
	return NewBroker(cfg, s, neighbors, quality, nil), s
}

func simNow() time.Time {
	return time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
}

func TestBrokerMTUBoundary(t *testing.T) {
	cfg := DefaultCommsConfig()
	cfg.MTU = 100
	b, _ := brokerFixture(t, cfg, map[string]Vec3{
		"a": {0, 0, 1},
		"b": {10, 0, 1},
	})
	metrics := newCountingMetrics()
	b.SetMetrics(metrics)

	if !b.SendTo("a", make([]byte, 100), "b", DefaultPort) {
		t.Fatal("payload of exactly MTU bytes must be accepted")
	}
	if b.SendTo("a", make([]byte, 101), "b", DefaultPort) {
		t.Fatal("payload above MTU must be rejected")
	}
	if metrics.droppedFor(DropOversized) != 1 {
		t.Fatalf("oversized drops = %d, want 1", metrics.droppedFor(DropOversized))
	}

	// The rejected payload never reaches the queue.
	if got := len(b.Dispatch(simNow())); got != 1 {
		t.Fatalf("dispatched %d datagrams, want 1", got)
	}
}

func TestBrokerUnknownSenderRejected(t *testing.T) {
	b, _ := brokerFixture(t, DefaultCommsConfig(), map[string]Vec3{
		"a": {0, 0, 1},
	})

	if b.SendTo("ghost", []byte("x"), "a", DefaultPort) {
		t.Fatal("unknown sender must be rejected")
	}
	if got := len(b.Dispatch(simNow())); got != 0 {
		t.Fatalf("dispatched %d datagrams, want 0", got)
	}
}

func TestBrokerUnicastDelivery(t *testing.T) {
	b, s := brokerFixture(t, DefaultCommsConfig(), map[string]Vec3{
		"a": {0, 0, 1},
		"b": {10, 0, 1},
		"c": {20, 0, 1},
	})

	var gotSrc string
	var gotPayload []byte
	if err := s.Get("b").Bind("b", DefaultPort, func(src string, payload []byte) {
		gotSrc = src
		gotPayload = payload
	}); err != nil {
		t.Fatalf("Bind error: %v", err)
	}

	if !b.Send("a", []byte("hello"), "b") {
		t.Fatal("Send rejected")
	}
	dispatched := b.Dispatch(simNow())
	if len(dispatched) != 1 {
		t.Fatalf("dispatched %d datagrams, want 1", len(dispatched))
	}
	if !equalStrings(dispatched[0].Recipients, []string{"b"}) {
		t.Fatalf("Recipients = %v, want [b]", dispatched[0].Recipients)
	}
	if gotSrc != "a" || !bytes.Equal(gotPayload, []byte("hello")) {
		t.Fatalf("handler got src=%q payload=%q", gotSrc, gotPayload)
	}
}

func TestBrokerUnicastRequiresNeighborship(t *testing.T) {
	cfg := DefaultCommsConfig()
	cfg.NeighborDistanceMax = 15
	b, s := brokerFixture(t, cfg, map[string]Vec3{
		"a": {0, 0, 1},
		"b": {100, 0, 1},
	})
	metrics := newCountingMetrics()
	b.SetMetrics(metrics)

	delivered := false
	if err := s.Get("b").Bind("b", DefaultPort, func(string, []byte) {
		delivered = true
	}); err != nil {
		t.Fatalf("Bind error: %v", err)
	}

	// Accepted for routing: the sender cannot tell the peer is out of
	// range at submission time.
	if !b.Send("a", []byte("x"), "b") {
		t.Fatal("Send should accept the datagram")
	}
	dispatched := b.Dispatch(simNow())
	if len(dispatched) != 1 || len(dispatched[0].Recipients) != 0 {
		t.Fatalf("dispatched = %+v, want one datagram with no recipients", dispatched)
	}
	if delivered {
		t.Fatal("handler fired for a non-neighbor recipient")
	}
	if metrics.droppedFor(DropNotNeighbor) != 1 {
		t.Fatalf("not_neighbor drops = %d, want 1", metrics.droppedFor(DropNotNeighbor))
	}
}

func TestBrokerBroadcast(t *testing.T) {
	b, s := brokerFixture(t, DefaultCommsConfig(), map[string]Vec3{
		"a": {0, 0, 1},
		"b": {10, 0, 1},
		"c": {0, 10, 1},
	})

	heard := map[string]bool{}
	for _, addr := range []string{"b", "c"} {
		a := addr
		if err := s.Get(a).Bind(a, DefaultPort, func(string, []byte) {
			heard[a] = true
		}); err != nil {
			t.Fatalf("Bind error: %v", err)
		}
	}

	if !b.Send("a", []byte("ping"), BroadcastAddr) {
		t.Fatal("Send rejected")
	}
	dispatched := b.Dispatch(simNow())
	if len(dispatched) != 1 {
		t.Fatalf("dispatched %d datagrams, want 1", len(dispatched))
	}
	if !equalStrings(dispatched[0].Recipients, []string{"b", "c"}) {
		t.Fatalf("Recipients = %v, want [b c]", dispatched[0].Recipients)
	}
	if !heard["b"] || !heard["c"] {
		t.Fatalf("heard = %v, want both neighbors", heard)
	}
	// The sender never hears its own broadcast.
	if len(dispatched[0].Recipients) != 2 {
		t.Fatalf("Recipients = %v", dispatched[0].Recipients)
	}
}

func TestBrokerMulticastOnlyReachesSubscribers(t *testing.T) {
	b, s := brokerFixture(t, DefaultCommsConfig(), map[string]Vec3{
		"a": {0, 0, 1},
		"b": {10, 0, 1},
		"c": {0, 10, 1},
	})

	heard := map[string]bool{}
	// b joins the group; c only has a unicast binding.
	if err := s.Get("b").Bind(MulticastAddr, DefaultPort, func(string, []byte) {
		heard["b"] = true
	}); err != nil {
		t.Fatalf("Bind error: %v", err)
	}
	if err := s.Get("c").Bind("c", DefaultPort, func(string, []byte) {
		heard["c"] = true
	}); err != nil {
		t.Fatalf("Bind error: %v", err)
	}

	if !b.Send("a", []byte("group"), MulticastAddr) {
		t.Fatal("Send rejected")
	}
	dispatched := b.Dispatch(simNow())
	if !equalStrings(dispatched[0].Recipients, []string{"b"}) {
		t.Fatalf("Recipients = %v, want [b]", dispatched[0].Recipients)
	}
	if !heard["b"] || heard["c"] {
		t.Fatalf("heard = %v, want only the subscriber", heard)
	}
}

func TestBrokerNoHandlerIsSilent(t *testing.T) {
	b, _ := brokerFixture(t, DefaultCommsConfig(), map[string]Vec3{
		"a": {0, 0, 1},
		"b": {10, 0, 1},
	})
	metrics := newCountingMetrics()
	b.SetMetrics(metrics)

	if !b.Send("a", []byte("x"), "b") {
		t.Fatal("Send rejected")
	}
	dispatched := b.Dispatch(simNow())
	// Delivery succeeded at the network level even though nothing was
	// bound on the receiving side.
	if !equalStrings(dispatched[0].Recipients, []string{"b"}) {
		t.Fatalf("Recipients = %v, want [b]", dispatched[0].Recipients)
	}
	if metrics.delivered != 1 {
		t.Fatalf("delivered = %d, want 1", metrics.delivered)
	}
}

func TestBrokerReentrantSend(t *testing.T) {
	b, s := brokerFixture(t, DefaultCommsConfig(), map[string]Vec3{
		"a": {0, 0, 1},
		"b": {10, 0, 1},
	})

	replies := 0
	if err := s.Get("b").Bind("b", DefaultPort, func(src string, _ []byte) {
		// Replying from inside a delivery callback must not deadlock.
		b.Send("b", []byte("pong"), src)
	}); err != nil {
		t.Fatalf("Bind error: %v", err)
	}
	if err := s.Get("a").Bind("a", DefaultPort, func(string, []byte) {
		replies++
	}); err != nil {
		t.Fatalf("Bind error: %v", err)
	}

	if !b.Send("a", []byte("ping"), "b") {
		t.Fatal("Send rejected")
	}
	// First pass delivers the ping and queues the pong; second pass
	// delivers the pong.
	b.Dispatch(simNow())
	b.Dispatch(simNow().Add(100 * time.Millisecond))
	if replies != 1 {
		t.Fatalf("replies = %d, want 1", replies)
	}
}

func TestBrokerRecordsDatagrams(t *testing.T) {
	b, _ := brokerFixture(t, DefaultCommsConfig(), map[string]Vec3{
		"a": {0, 0, 1},
		"b": {10, 0, 1},
	})
	rec := &memoryRecorder{}
	b.SetRecorder(rec)

	b.Send("a", []byte("x"), "b")
	b.Dispatch(simNow())

	if len(rec.datagrams) != 1 {
		t.Fatalf("recorded %d datagrams, want 1", len(rec.datagrams))
	}
	d := rec.datagrams[0]
	if d.SrcAddress != "a" || d.DstAddress != "b" || d.DstPort != DefaultPort {
		t.Fatalf("recorded datagram = %+v", d)
	}
	if !equalStrings(d.Recipients, []string{"b"}) {
		t.Fatalf("recorded recipients = %v", d.Recipients)
	}
}
