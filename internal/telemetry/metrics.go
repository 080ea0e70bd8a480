package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/eytandecker/quadpilot/internal/flight"
)

const instrumentationName = "github.com/eytandecker/quadpilot/internal/telemetry"

// Metrics counts ticks, arrivals, tick anomalies and scene events, and
// records the distance to target.
type Metrics struct {
	ticks     metric.Int64Counter
	arrivals  metric.Int64Counter
	anomalies metric.Int64Counter
	events    metric.Int64Counter
	distance  metric.Float64Histogram
}

// NewMetrics creates the instruments on m, or on the global meter (no-op
// unless a provider is installed) when m is nil.
func NewMetrics(m metric.Meter) (*Metrics, error) {
	if m == nil {
		m = otel.Meter(instrumentationName)
	}

	var (
		mt  Metrics
		err error
	)
	if mt.ticks, err = m.Int64Counter("flight.ticks", metric.WithDescription("Evaluated control ticks")); err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}
	if mt.arrivals, err = m.Int64Counter("flight.arrivals", metric.WithDescription("Waypoints reached")); err != nil {
		return nil, fmt.Errorf("creating arrivals counter: %w", err)
	}
	if mt.anomalies, err = m.Int64Counter("flight.tick.anomalies", metric.WithDescription("Ticks with a non-positive or non-finite duration")); err != nil {
		return nil, fmt.Errorf("creating anomalies counter: %w", err)
	}
	if mt.events, err = m.Int64Counter("flight.scene.events", metric.WithDescription("Scene events raised by the sequencer")); err != nil {
		return nil, fmt.Errorf("creating events counter: %w", err)
	}
	if mt.distance, err = m.Float64Histogram("flight.target.distance", metric.WithDescription("Distance to the current waypoint"), metric.WithUnit("m")); err != nil {
		return nil, fmt.Errorf("creating distance histogram: %w", err)
	}
	return &mt, nil
}

func (m *Metrics) ObserveTick(st flight.Status) {
	ctx := context.Background()
	m.ticks.Add(ctx, 1)
	if st.Advanced {
		m.arrivals.Add(ctx, 1, metric.WithAttributes(attribute.Int("waypoint", st.Cursor.Previous)))
	}
	if st.Anomaly {
		m.anomalies.Add(ctx, 1)
	}
	m.distance.Record(ctx, st.Solution.Distance)
}

func (m *Metrics) event(name string) {
	m.events.Add(context.Background(), 1, metric.WithAttributes(attribute.String("event", name)))
}

func (m *Metrics) OnSceneryActivate()  { m.event("scenery") }
func (m *Metrics) OnCaptureAndNotify() { m.event("capture") }
// OnViewModeChange counts every request, so the view counters advance once
// per flying tick. Refreshes are counted separately.
func (m *Metrics) OnViewModeChange(mode flight.ViewMode, refresh bool) {
	m.event("view_" + mode.String())
	if refresh {
		m.event("view_refresh")
	}
}
