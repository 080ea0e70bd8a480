package logging

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/eytandecker/quadpilot/internal/flight"
)

// EventLogger is a flight.Listener that logs scene events. Events that repeat
// every tick go through burst samplers.
type EventLogger struct {
	log     zerolog.Logger
	scenery zerolog.Logger
	view    zerolog.Logger

	mode     flight.ViewMode
	modeSeen bool
}

func sampled(l zerolog.Logger) zerolog.Logger {
	return l.Sample(&zerolog.BurstSampler{
		Burst:       5,
		Period:      10 * time.Second,
		NextSampler: &zerolog.BasicSampler{N: 100},
	})
}

// NewEventLogger wraps logger for scene events.
func NewEventLogger(logger zerolog.Logger) *EventLogger {
	l := logger.With().Str("component", "events").Logger()
	return &EventLogger{
		log:     l,
		scenery: sampled(l),
		view:    sampled(l),
	}
}

func (e *EventLogger) OnSceneryActivate() {
	e.scenery.Info().Msg("scenery activate")
}

func (e *EventLogger) OnCaptureAndNotify() {
	e.log.Info().Msg("capture and notify")
}

// OnViewModeChange logs a mode switch or refresh immediately and samples the
// per-tick repeats.
func (e *EventLogger) OnViewModeChange(mode flight.ViewMode, refresh bool) {
	l := &e.view
	if !e.modeSeen || mode != e.mode || refresh {
		l = &e.log
	}
	e.mode, e.modeSeen = mode, true
	l.Info().Stringer("mode", mode).Bool("refresh", refresh).Msg("view mode")
}
