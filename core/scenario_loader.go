// core/scenario_loader.go
package core

import (
	"context"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/swarm-comms-simulator/internal/logging"
)

// Scenario is what a declarative world description loads into: the
// world model, the swarm membership, and the comms configuration.
type Scenario struct {
	Name   string
	Seed   int64
	Config CommsConfig
	World  *World
	Swarm  *Swarm
}

// internal YAML shapes - kept unexported so the format can evolve.
type scenarioYAML struct {
	Name      string         `yaml:"name"`
	Seed      *int64         `yaml:"seed"`
	Comms     *commsYAML     `yaml:"comms"`
	Obstacles []obstacleYAML `yaml:"obstacles"`
	Robots    []robotYAML    `yaml:"robots"`
}

// All comms fields are pointers: absent values keep their documented
// defaults, the way the original world description behaves.
type commsYAML struct {
	NeighborDistanceMin         *float64 `yaml:"neighbor_distance_min"`
	NeighborDistanceMax         *float64 `yaml:"neighbor_distance_max"`
	NeighborDistancePenaltyTree *float64 `yaml:"neighbor_distance_penalty_tree"`
	CommsDistanceMin            *float64 `yaml:"comms_distance_min"`
	CommsDistanceMax            *float64 `yaml:"comms_distance_max"`
	CommsDistancePenaltyTree    *float64 `yaml:"comms_distance_penalty_tree"`
	CommsDropProbabilityMin     *float64 `yaml:"comms_drop_probability_min"`
	CommsDropProbabilityMax     *float64 `yaml:"comms_drop_probability_max"`
	CommsOutageProbability      *float64 `yaml:"comms_outage_probability"`
	CommsOutageDurationMin      *float64 `yaml:"comms_outage_duration_min"` // seconds
	CommsOutageDurationMax      *float64 `yaml:"comms_outage_duration_max"` // seconds
	UpdateRate                  *float64 `yaml:"update_rate"`
	MTU                         *int     `yaml:"mtu"`
}

type obstacleYAML struct {
	Name string   `yaml:"name"`
	Min  pointYAML `yaml:"min"`
	Max  pointYAML `yaml:"max"`
}

type robotYAML struct {
	Address  string    `yaml:"address"`
	Position pointYAML `yaml:"position"`
}

type pointYAML struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// LoadScenario reads a YAML scenario from r and builds the world,
// the swarm and the comms configuration. It fails only on YAML or
// structural errors; a missing comms block is a configuration
// warning, logged, with every threshold falling back to its default.
func LoadScenario(r io.Reader, log logging.Logger) (*Scenario, error) {
	if log == nil {
		log = logging.Noop()
	}

	var payload scenarioYAML
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadScenario: decode failed: %w", err)
	}

	cfg := DefaultCommsConfig()
	if payload.Comms == nil {
		log.Warn(context.Background(),
			"scenario has no comms block, using defaults")
	} else {
		applyCommsYAML(&cfg, payload.Comms)
	}

	world := NewWorld()
	for _, o := range payload.Obstacles {
		if o.Name == "" {
			return nil, fmt.Errorf("LoadScenario: obstacle with empty name")
		}
		if err := world.AddObstacle(Box{
			Name: o.Name,
			Min:  Vec3{X: o.Min.X, Y: o.Min.Y, Z: o.Min.Z},
			Max:  Vec3{X: o.Max.X, Y: o.Max.Y, Z: o.Max.Z},
		}); err != nil {
			return nil, fmt.Errorf("LoadScenario: %w", err)
		}
	}

	swarm := NewSwarm()
	for _, rb := range payload.Robots {
		if rb.Address == "" {
			return nil, fmt.Errorf("LoadScenario: robot with empty address")
		}
		if err := swarm.Add(NewRobot(rb.Address)); err != nil {
			return nil, fmt.Errorf("LoadScenario: %w", err)
		}
		world.SetPosition(rb.Address, Vec3{
			X: rb.Position.X,
			Y: rb.Position.Y,
			Z: rb.Position.Z,
		})
	}

	seed := int64(0)
	if payload.Seed != nil {
		seed = *payload.Seed
	}

	return &Scenario{
		Name:   payload.Name,
		Seed:   seed,
		Config: cfg,
		World:  world,
		Swarm:  swarm,
	}, nil
}

func applyCommsYAML(cfg *CommsConfig, y *commsYAML) {
	setF := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setF(&cfg.NeighborDistanceMin, y.NeighborDistanceMin)
	setF(&cfg.NeighborDistanceMax, y.NeighborDistanceMax)
	setF(&cfg.NeighborDistancePenaltyTree, y.NeighborDistancePenaltyTree)
	setF(&cfg.CommsDistanceMin, y.CommsDistanceMin)
	setF(&cfg.CommsDistanceMax, y.CommsDistanceMax)
	setF(&cfg.CommsDistancePenaltyTree, y.CommsDistancePenaltyTree)
	setF(&cfg.CommsDropProbabilityMin, y.CommsDropProbabilityMin)
	setF(&cfg.CommsDropProbabilityMax, y.CommsDropProbabilityMax)
	setF(&cfg.CommsOutageProbability, y.CommsOutageProbability)

	if y.CommsOutageDurationMin != nil {
		cfg.CommsOutageDurationMin = secondsToDuration(*y.CommsOutageDurationMin)
	}
	if y.CommsOutageDurationMax != nil {
		cfg.CommsOutageDurationMax = secondsToDuration(*y.CommsOutageDurationMax)
	}
	if y.UpdateRate != nil {
		cfg.UpdateRate = *y.UpdateRate
	}
	if y.MTU != nil {
		cfg.MTU = *y.MTU
	}
}

// secondsToDuration keeps negative values negative: a negative
// outage duration bound means "no limit".
func secondsToDuration(s float64) time.Duration {
	if s < 0 {
		return -1
	}
	return time.Duration(s * float64(time.Second))
}
