package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/golang/geo/r3"
	"github.com/rs/zerolog"

	"github.com/eytandecker/quadpilot/internal/config"
	"github.com/eytandecker/quadpilot/internal/flight"
	"github.com/eytandecker/quadpilot/internal/geo"
	"github.com/eytandecker/quadpilot/internal/logging"
	internalmcp "github.com/eytandecker/quadpilot/internal/mcp"
	"github.com/eytandecker/quadpilot/internal/physics"
	"github.com/eytandecker/quadpilot/internal/simlink"
	"github.com/eytandecker/quadpilot/internal/state"
	"github.com/eytandecker/quadpilot/internal/telemetry"
)

const appName = "quadpilot"

func main() {
	configFile := flag.String("config", os.Getenv("QUADPILOT_CONFIG"), "optional config file (json, yaml or toml)")
	flag.Parse()

	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "%s exited: %v\n", appName, err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	// stdout carries the MCP stdio transport.
	logCfg := logging.Config{Level: cfg.Log.Level, Dir: cfg.Log.Dir}
	if cfg.Graylog.Enabled {
		logCfg.GraylogAddress = cfg.Graylog.Address
	}
	log, sinks, err := logging.New(logCfg, os.Stderr, appName)
	if err != nil {
		return err
	}
	defer sinks.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	metrics, err := telemetry.NewMetrics(nil)
	if err != nil {
		return err
	}
	listeners := telemetry.Listeners{logging.NewEventLogger(log), metrics}
	observers := telemetry.Observers{metrics}

	if cfg.Influx.Enabled {
		in, err := telemetry.NewInflux(ctx, telemetry.InfluxOptions{
			URL:         cfg.Influx.URL,
			Token:       cfg.Influx.Token,
			Org:         cfg.Influx.Org,
			Bucket:      cfg.Influx.Bucket,
			BackupPath:  cfg.Influx.BackupPath,
			SampleEvery: 5,
		}, log)
		if err != nil {
			return err
		}
		defer in.Close()
		listeners = append(listeners, in)
		observers = append(observers, in)
	}

	var journal *telemetry.Journal
	if cfg.Journal.Enabled {
		db, err := telemetry.OpenDB(cfg.Journal.Driver, cfg.Journal.DSN)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		journal, err = telemetry.NewJournal(db, cfg.Journal.QueueSize, log)
		if err != nil {
			return err
		}
		defer journal.Close()
		listeners = append(listeners, journal)
		observers = append(observers, journal)
	}

	var (
		body flight.Physics
		step func(dt float64)
	)
	switch cfg.Physics.Mode {
	case "simlink":
		mgr := state.NewManager(cfg.Polling.StaleThreshold)
		sender := &linkSender{}
		body = simlink.NewBody(mgr, sender)
		go runPollerLoop(ctx, cfg, mgr, sender, log)
	default:
		pc := physics.DefaultConfig()
		pc.Mass = cfg.Physics.Mass
		pc.Gravity = cfg.Physics.Gravity
		pc.ArmLength = cfg.Physics.ArmLength
		pc.Inertia = cfg.Physics.Inertia
		start := cfg.Path[0]
		local := physics.NewBody(pc, r3.Vector{X: start.X, Y: pc.GroundLevel, Z: start.Z})
		body, step = local, local.Step
	}

	gains, hover := cfg.Gains, cfg.Loop.HoverThrust
	ctrl, err := flight.NewController(body, cfg.Path, flight.Options{
		Gains:       &gains,
		HoverThrust: &hover,
		Listener:    listeners,
		Observer:    observers,
		Logger:      log.With().Str("component", "controller").Logger(),
	})
	if err != nil {
		return err
	}
	ctrl.SetFlying(cfg.Loop.AutoFly)

	log.Info().
		Str("physics", cfg.Physics.Mode).
		Int("waypoints", len(cfg.Path)).
		Dur("tick", cfg.Loop.TickInterval).
		Bool("flying", cfg.Loop.AutoFly).
		Msg("quadpilot started")

	go runTickLoop(ctx, ctrl, step, cfg.Loop.TickInterval)

	if !cfg.MCP.Enabled {
		<-ctx.Done()
		return nil
	}

	opts := internalmcp.Options{
		Name:    cfg.MCP.Name,
		Version: cfg.MCP.Version,
		Logger:  log,
	}
	if cfg.Geo.Latitude != 0 || cfg.Geo.Longitude != 0 {
		opts.Projector = geo.NewProjector(geo.Anchor{
			Latitude:  cfg.Geo.Latitude,
			Longitude: cfg.Geo.Longitude,
			Altitude:  cfg.Geo.Altitude,
		})
	}
	if journal != nil {
		opts.Events = journal
	}
	mcpServer := internalmcp.NewServer(ctrl, opts)
	if err := mcpServer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runTickLoop drives the controller at a fixed step. step advances local
// physics after the controller has applied its forces.
func runTickLoop(ctx context.Context, ctrl *flight.Controller, step func(dt float64), interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	dt := interval.Seconds()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ctrl.OnFixedTick(dt)
			if step != nil {
				step(dt)
			}
		}
	}
}

// linkSender forwards forces to whichever client is currently connected.
type linkSender struct {
	client atomic.Pointer[simlink.Client]
}

func (s *linkSender) ApplyForce(force, point r3.Vector) error {
	c := s.client.Load()
	if c == nil {
		return simlink.ErrNotConnected
	}
	return c.ApplyForce(force, point)
}

// runPollerLoop connects to the physics host and polls vehicle state,
// retrying with exponential backoff (1s → 30s cap) on failure.
func runPollerLoop(ctx context.Context, cfg config.Config, mgr *state.Manager, sender *linkSender, log zerolog.Logger) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if err := ctx.Err(); err != nil {
			return
		}

		if err := runPoller(ctx, cfg, mgr, sender, log); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Warn().Err(err).Dur("retry", backoff).Msg("simlink: disconnected")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// runPoller creates a client, registers the state fields, and runs the
// polling loop. Returns when the connection is lost or ctx is done.
func runPoller(ctx context.Context, cfg config.Config, mgr *state.Manager, sender *linkSender, log zerolog.Logger) error {
	client := simlink.NewClient(simlink.Config{
		Host:    cfg.Simlink.Host,
		Port:    cfg.Simlink.Port,
		Timeout: cfg.Simlink.Timeout,
		AppName: cfg.Simlink.AppName,
	})

	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	poller := simlink.NewPoller(client, mgr, simlink.PollerConfig{PollInterval: cfg.Polling.Interval}, log)
	if err := poller.RegisterFields(); err != nil {
		return err
	}

	sender.client.Store(client)
	defer sender.client.Store(nil)
	log.Info().Str("host", cfg.Simlink.Host).Int("port", cfg.Simlink.Port).Msg("simlink: connected")

	return poller.Start(ctx)
}
