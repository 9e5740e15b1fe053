package core

import (
	"strings"
	"testing"
	"time"
)

func TestLoadScenarioFull(t *testing.T) {
	const doc = `
name: courtyard
seed: 42
comms:
  neighbor_distance_max: 40
  neighbor_distance_penalty_tree: 25
  comms_distance_max: 35
  comms_drop_probability_min: 0.01
  comms_drop_probability_max: 0.25
  comms_outage_probability: 0.02
  comms_outage_duration_min: 1.5
  comms_outage_duration_max: 10
  update_rate: 2
  mtu: 900
obstacles:
  - name: shed
    min: {x: 10, y: -5, z: 0}
    max: {x: 25, y: 5, z: 8}
robots:
  - address: "192.168.2.1"
    position: {x: 0, y: 0, z: 1}
  - address: "192.168.2.2"
    position: {x: 30, y: 0, z: 1}
`
	scenario, err := LoadScenario(strings.NewReader(doc), nil)
	if err != nil {
		t.Fatalf("LoadScenario error: %v", err)
	}

	if scenario.Name != "courtyard" || scenario.Seed != 42 {
		t.Fatalf("scenario header = %q/%d", scenario.Name, scenario.Seed)
	}

	cfg := scenario.Config
	if cfg.NeighborDistanceMax != 40 || cfg.NeighborDistancePenaltyTree != 25 {
		t.Fatalf("neighbor thresholds = %v/%v", cfg.NeighborDistanceMax, cfg.NeighborDistancePenaltyTree)
	}
	if cfg.CommsDropProbabilityMin != 0.01 || cfg.CommsDropProbabilityMax != 0.25 {
		t.Fatalf("drop probabilities = %v/%v", cfg.CommsDropProbabilityMin, cfg.CommsDropProbabilityMax)
	}
	if cfg.CommsOutageDurationMin != 1500*time.Millisecond {
		t.Fatalf("outage duration min = %v, want 1.5s", cfg.CommsOutageDurationMin)
	}
	if cfg.CommsOutageDurationMax != 10*time.Second {
		t.Fatalf("outage duration max = %v, want 10s", cfg.CommsOutageDurationMax)
	}
	if cfg.UpdateRate != 2 || cfg.MTU != 900 {
		t.Fatalf("update_rate/mtu = %v/%d", cfg.UpdateRate, cfg.MTU)
	}
	// Fields absent from the document keep their defaults.
	if cfg.NeighborDistanceMin >= 0 || cfg.CommsDistanceMin >= 0 {
		t.Fatal("absent minimum distances should stay unbounded")
	}

	if got := len(scenario.World.Obstacles()); got != 1 {
		t.Fatalf("obstacles = %d, want 1", got)
	}
	if scenario.Swarm.Size() != 2 {
		t.Fatalf("swarm size = %d, want 2", scenario.Swarm.Size())
	}
	pos, ok := scenario.World.PositionOf("192.168.2.2")
	if !ok || pos != (Vec3{30, 0, 1}) {
		t.Fatalf("robot position = %v, %v", pos, ok)
	}
}

func TestLoadScenarioMissingCommsBlockUsesDefaults(t *testing.T) {
	const doc = `
name: bare
robots:
  - address: "192.168.2.1"
    position: {x: 0, y: 0, z: 0}
`
	scenario, err := LoadScenario(strings.NewReader(doc), nil)
	if err != nil {
		t.Fatalf("LoadScenario error: %v", err)
	}
	if scenario.Config != DefaultCommsConfig() {
		t.Fatalf("config = %+v, want defaults", scenario.Config)
	}
	if scenario.Seed != 0 {
		t.Fatalf("seed = %d, want 0", scenario.Seed)
	}
}

func TestLoadScenarioNegativeDurationStaysUnbounded(t *testing.T) {
	const doc = `
name: permanent
comms:
  comms_outage_probability: 1.0
  comms_outage_duration_min: -1
  comms_outage_duration_max: -1
robots:
  - address: "192.168.2.1"
    position: {x: 0, y: 0, z: 0}
`
	scenario, err := LoadScenario(strings.NewReader(doc), nil)
	if err != nil {
		t.Fatalf("LoadScenario error: %v", err)
	}
	if scenario.Config.CommsOutageDurationMin >= 0 || scenario.Config.CommsOutageDurationMax >= 0 {
		t.Fatal("negative durations must stay negative")
	}
}

func TestLoadScenarioErrors(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"bad yaml", `name: [`},
		{"empty obstacle name", `
obstacles:
  - min: {x: 0, y: 0, z: 0}
    max: {x: 1, y: 1, z: 1}
`},
		{"inverted obstacle bounds", `
obstacles:
  - name: bad
    min: {x: 5, y: 0, z: 0}
    max: {x: 1, y: 1, z: 1}
`},
		{"empty robot address", `
robots:
  - position: {x: 0, y: 0, z: 0}
`},
		{"duplicate robot address", `
robots:
  - address: "192.168.2.1"
    position: {x: 0, y: 0, z: 0}
  - address: "192.168.2.1"
    position: {x: 1, y: 0, z: 0}
`},
		{"reserved robot address", `
robots:
  - address: "broadcast"
    position: {x: 0, y: 0, z: 0}
`},
	}

	for _, tc := range cases {
		if _, err := LoadScenario(strings.NewReader(tc.doc), nil); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}
