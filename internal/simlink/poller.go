package simlink

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/eytandecker/quadpilot/pkg/types"
)

// StateUpdater is implemented by state.Manager.
type StateUpdater interface {
	Update(st types.VehicleState)
}

// PollerConfig holds configuration for the Poller.
type PollerConfig struct {
	PollInterval time.Duration
}

// DefaultPollerConfig returns a PollerConfig polling at the 50 Hz tick rate.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{PollInterval: 20 * time.Millisecond}
}

// Poller requests vehicle state on a fixed interval and feeds every frame
// the engine returns to a StateUpdater.
type Poller struct {
	client  *Client
	updater StateUpdater
	cfg     PollerConfig
	log     zerolog.Logger
}

// NewPoller creates a Poller backed by the given client and updater.
func NewPoller(client *Client, updater StateUpdater, cfg PollerConfig, logger zerolog.Logger) *Poller {
	return &Poller{client: client, updater: updater, cfg: cfg, log: logger.With().Str("component", "simlink").Logger()}
}

// RegisterFields defines every entry of StateFields under DefIDState.
func (p *Poller) RegisterFields() error {
	for _, f := range StateFields {
		if err := p.client.DefineField(DefIDState, f); err != nil {
			return err
		}
	}
	p.log.Debug().Int("fields", len(StateFields)).Msg("state definition registered")
	return nil
}

// Start blocks, sending periodic state requests and processing responses.
// It exits when ctx is cancelled or the connection fails.
func (p *Poller) Start(ctx context.Context) error {
	interval := p.cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollerConfig().PollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	done := make(chan error, 1)
	go p.readLoop(done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-done:
			return err
		case <-ticker.C:
			if err := p.client.RequestState(DefIDState, ReqIDState); err != nil {
				return err
			}
		}
	}
}

func (p *Poller) readLoop(done chan<- error) {
	for {
		h, data, err := p.client.ReadNext()
		if err != nil {
			done <- err
			return
		}
		switch h.Type {
		case MsgVehicleState:
			st, err := ParseStatePayload(data)
			if err != nil {
				p.log.Warn().Err(err).Msg("parse vehicle state")
				continue
			}
			p.updater.Update(st)
		case MsgException:
			p.log.Warn().Uint32("id", h.ID).Str("detail", string(trimNul(data))).Msg("engine exception")
		default:
			p.log.Debug().Uint32("type", h.Type).Msg("ignoring frame")
		}
	}
}

func trimNul(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}
	return b
}
