// Package telemetry records flight ticks and scene events to metrics, InfluxDB
// and a SQL journal.
package telemetry

import "github.com/eytandecker/quadpilot/internal/flight"

// Listeners forwards scene events to every member in order.
type Listeners []flight.Listener

func (ls Listeners) OnSceneryActivate() {
	for _, l := range ls {
		l.OnSceneryActivate()
	}
}

func (ls Listeners) OnCaptureAndNotify() {
	for _, l := range ls {
		l.OnCaptureAndNotify()
	}
}

func (ls Listeners) OnViewModeChange(mode flight.ViewMode, refresh bool) {
	for _, l := range ls {
		l.OnViewModeChange(mode, refresh)
	}
}

// Observers forwards tick statuses to every member in order.
type Observers []flight.Observer

func (obs Observers) ObserveTick(st flight.Status) {
	for _, o := range obs {
		o.ObserveTick(st)
	}
}
