package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/signalsfoundry/swarm-comms-simulator/core"
	"github.com/signalsfoundry/swarm-comms-simulator/internal/logging"
	"github.com/signalsfoundry/swarm-comms-simulator/internal/observability"
	"github.com/signalsfoundry/swarm-comms-simulator/internal/recorder"
	"github.com/signalsfoundry/swarm-comms-simulator/internal/stream"
	"github.com/signalsfoundry/swarm-comms-simulator/timectrl"
)

func main() {
	scenarioPath := flag.String("scenario", "configs/scenario.yaml", "path to the YAML scenario")
	duration := flag.Duration("duration", 60*time.Second, "total simulation duration")
	tick := flag.Duration("tick", 100*time.Millisecond, "tick interval")
	accelerated := flag.Bool("accelerated", true, "run in accelerated mode (vs real-time)")
	seed := flag.Int64("seed", -1, "RNG seed override; -1 keeps the scenario's seed")
	metricsAddr := flag.String("metrics-addr", "", "listen address for /metrics (empty disables)")
	wsAddr := flag.String("ws-addr", "", "listen address for the neighbor websocket stream (empty disables)")
	dbPath := flag.String("db", "", "sqlite comms log path (empty disables)")
	snapshotPath := flag.String("snapshot", "", "visibility snapshot written at the end of the run (empty disables)")

	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "tracing init failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	// ==== Scenario: world, swarm, comms configuration ====

	f, err := os.Open(*scenarioPath)
	if err != nil {
		log.Error(ctx, "open scenario failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
	scenario, err := core.LoadScenario(f, log)
	f.Close()
	if err != nil {
		log.Error(ctx, "load scenario failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
	if *seed >= 0 {
		scenario.Seed = *seed
	}
	log.Info(ctx, "scenario loaded",
		logging.String("name", scenario.Name),
		logging.Int("robots", scenario.Swarm.Size()),
		logging.Int("obstacles", len(scenario.World.Obstacles())),
		logging.Int("seed", int(scenario.Seed)),
	)

	model := core.NewCommsModel(scenario.Config, scenario.World, scenario.Swarm, scenario.Seed, log)

	// ==== Observability + recording surfaces ====

	if *metricsAddr != "" {
		collector, err := observability.NewCommsCollector(nil)
		if err != nil {
			log.Error(ctx, "metrics setup failed", logging.String("error", err.Error()))
			os.Exit(1)
		}
		model.SetMetrics(collector)

		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Error(ctx, "metrics server stopped", logging.String("error", err.Error()))
			}
		}()
		log.Info(ctx, "metrics listening", logging.String("addr", *metricsAddr))
	}

	if *wsAddr != "" {
		hub := stream.NewHub(log)
		defer hub.Close()
		for _, address := range scenario.Swarm.Addresses() {
			addr := address
			scenario.Swarm.Get(addr).OnNeighborUpdate(func(neighbors []string) {
				hub.PublishNeighbors(addr, neighbors)
			})
		}
		go func() {
			if err := http.ListenAndServe(*wsAddr, hub); err != nil {
				log.Error(ctx, "stream server stopped", logging.String("error", err.Error()))
			}
		}()
		log.Info(ctx, "neighbor stream listening", logging.String("addr", *wsAddr))
	}

	if *dbPath != "" {
		rec, err := recorder.Open(*dbPath)
		if err != nil {
			log.Error(ctx, "comms log setup failed", logging.String("error", err.Error()))
			os.Exit(1)
		}
		defer func() {
			if lost := rec.Dropped(); lost > 0 {
				log.Warn(ctx, "comms log records lost to backpressure", logging.Int("records", int(lost)))
			}
			rec.Close()
		}()
		model.SetRecorder(rec)
	}

	// ==== Demo traffic: every robot beacons on the broadcast address ====

	broker := model.Broker()
	received := 0
	for _, address := range scenario.Swarm.Addresses() {
		robot := scenario.Swarm.Get(address)
		if err := robot.Bind(address, core.DefaultPort, func(src string, payload []byte) {
			received++
		}); err != nil {
			log.Error(ctx, "bind failed", logging.String("error", err.Error()))
			os.Exit(1)
		}
		if err := robot.Bind(core.MulticastAddr, core.DefaultPort, func(src string, payload []byte) {
			received++
		}); err != nil {
			log.Error(ctx, "bind failed", logging.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// ==== Time controller driving movement + comms ====

	mode := timectrl.RealTime
	if *accelerated {
		mode = timectrl.Accelerated
	}
	start := time.Now().UTC()
	tc := timectrl.NewTimeController(start, *tick, mode)

	// Robots drift on a slow random walk so visibility and neighbor
	// sets actually change over the run. Movement draws come from a
	// dedicated generator so comms draws stay seed-stable.
	walk := rand.New(rand.NewSource(scenario.Seed + 1))
	addresses := scenario.Swarm.Addresses()
	sent := 0

	tc.AddListener(func(simTime time.Time) {
		for _, address := range addresses {
			pos, ok := scenario.World.PositionOf(address)
			if !ok {
				continue
			}
			angle := walk.Float64() * 2 * math.Pi
			scenario.World.SetPosition(address, core.Vec3{
				X: pos.X + 0.05*math.Cos(angle),
				Y: pos.Y + 0.05*math.Sin(angle),
				Z: pos.Z,
			})
		}

		for _, address := range addresses {
			payload := []byte(fmt.Sprintf("beacon from %s at %s", address, simTime.Format(time.RFC3339Nano)))
			if broker.SendTo(address, payload, core.BroadcastAddr, core.DefaultPort) {
				sent++
			}
		}

		model.Update(simTime)
	})

	log.Info(ctx, "starting simulation",
		logging.String("duration", duration.String()),
		logging.String("tick", tick.String()),
	)
	<-tc.Start(*duration)

	log.Info(ctx, "simulation complete",
		logging.Int("beacons_sent", sent),
		logging.Int("deliveries", received),
	)

	if *snapshotPath != "" {
		snap := recorder.BuildVisibilitySnapshot(scenario.Name, tc.Now(), model.Visibility().Snapshot())
		if err := recorder.WriteVisibilitySnapshot(*snapshotPath, snap); err != nil {
			log.Error(ctx, "snapshot write failed", logging.String("error", err.Error()))
			os.Exit(1)
		}
		log.Info(ctx, "visibility snapshot written",
			logging.String("path", *snapshotPath),
			logging.Int("pairs", len(snap.Pairs)),
		)
	}
}
