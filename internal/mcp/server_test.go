package mcp_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eytandecker/quadpilot/internal/flight"
	"github.com/eytandecker/quadpilot/internal/geo"
	internalmcp "github.com/eytandecker/quadpilot/internal/mcp"
	"github.com/eytandecker/quadpilot/internal/simlink"
	"github.com/eytandecker/quadpilot/internal/state"
	"github.com/eytandecker/quadpilot/internal/telemetry"
	"github.com/eytandecker/quadpilot/pkg/types"
)

// mockFlight controls what the flight tools see in tests.
type mockFlight struct {
	mu     sync.Mutex
	status flight.Status
	err    error
	flying bool
	path   []r3.Vector
}

func (m *mockFlight) Status() (flight.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.status
	st.Flying = m.flying
	return st, m.err
}

func (m *mockFlight) SetFlying(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flying = on
}

func (m *mockFlight) IsFlying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flying
}

func (m *mockFlight) Path() []r3.Vector { return m.path }

type mockEvents struct {
	events []telemetry.Event
	limit  int
}

func (m *mockEvents) Recent(_ context.Context, limit int) ([]telemetry.Event, error) {
	m.limit = limit
	if limit < len(m.events) {
		return m.events[:limit], nil
	}
	return m.events, nil
}

var sampleStatus = flight.Status{
	Tick:     42,
	Cursor:   flight.Cursor{Previous: 2, Current: 3, SinceArrival: 1.5},
	Target:   r3.Vector{X: 30, Y: 120, Z: 40},
	Position: r3.Vector{X: 10, Y: 118, Z: 20},
	Solution: flight.Solution{Distance: 28.4, YawError: -12},
	Output: flight.Output{
		Thrust: 124,
		Pitch:  3,
		Roll:   -1,
		Yaw:    0.5,
		Motors: [4]float64{types.RearLeft: 120, types.RearRight: 121, types.FrontLeft: 127, types.FrontRight: 128},
	},
}

func connect(t *testing.T, fc internalmcp.FlightControl, opts internalmcp.Options) *mcpsdk.ClientSession {
	t.Helper()
	ctx := context.Background()

	opts.Logger = zerolog.Nop()
	srv := internalmcp.NewServer(fc, opts)
	st, ct := mcpsdk.NewInMemoryTransports()

	_, err := srv.Connect(ctx, st)
	require.NoError(t, err)

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test", Version: "1.0"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

// callTool calls name and decodes the JSON text content.
func callTool(t *testing.T, cs *mcpsdk.ClientSession, name string, args map[string]any) (*mcpsdk.CallToolResult, map[string]any) {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err)
	require.Len(t, res.Content, 1)

	text := res.Content[0].(*mcpsdk.TextContent).Text
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &m))
	return res, m
}

func TestGetFlightStatusSuccess(t *testing.T) {
	fc := &mockFlight{status: sampleStatus, flying: true}
	cs := connect(t, fc, internalmcp.Options{})

	res, m := callTool(t, cs, "get_flight_status", nil)
	require.False(t, res.IsError)

	assert.Equal(t, true, m["flying"])
	assert.Equal(t, 42.0, m["tick"])
	assert.Equal(t, 3.0, m["waypoint"])
	assert.Equal(t, 2.0, m["previous_waypoint"])
	assert.InDelta(t, 1.5, m["since_arrival_s"].(float64), 1e-9)
	assert.InDelta(t, 28.4, m["distance_m"].(float64), 1e-9)
	assert.InDelta(t, -12.0, m["yaw_error_deg"].(float64), 1e-9)
	assert.InDelta(t, 124.0, m["thrust"].(float64), 1e-9)

	pos := m["position"].(map[string]any)
	assert.Equal(t, 10.0, pos["x"])
	assert.Equal(t, 118.0, pos["y"])

	motors := m["motors"].(map[string]any)
	assert.Len(t, motors, 4)
	assert.Equal(t, 128.0, motors["front_right"])
	assert.Equal(t, 120.0, motors["rear_left"])

	_, hasGeo := m["geographic"]
	assert.False(t, hasGeo, "geographic should be omitted without an anchor")

	ts, ok := m["timestamp"].(string)
	require.True(t, ok)
	parsed, err := time.Parse(time.RFC3339, ts)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), parsed, 5*time.Second)
}

func TestGetFlightStatusGeographic(t *testing.T) {
	fc := &mockFlight{status: flight.Status{Position: r3.Vector{Y: 50}}}
	proj := geo.NewProjector(geo.Anchor{Latitude: 47.6, Longitude: -122.3, Altitude: 10})
	cs := connect(t, fc, internalmcp.Options{Projector: proj})

	res, m := callTool(t, cs, "get_flight_status", nil)
	require.False(t, res.IsError)

	g := m["geographic"].(map[string]any)
	assert.InDelta(t, 47.6, g["latitude"].(float64), 1e-6)
	assert.InDelta(t, -122.3, g["longitude"].(float64), 1e-6)
	assert.InDelta(t, 60.0, g["altitude_m"].(float64), 1e-9)
}

func TestGetFlightStatusErrors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		code        string
		recoverable bool
	}{
		{"not started", flight.ErrNotStarted, "NOT_STARTED", true},
		{"stale", state.ErrStale, "DATA_STALE", true},
		{"wrapped stale", fmt.Errorf("sync: %w", state.ErrStale), "DATA_STALE", true},
		{"not connected", simlink.ErrNotConnected, "SIMULATOR_NOT_CONNECTED", true},
		{"link error", &types.SimulatorError{Err: errors.New("reset"), Message: "read", Recoverable: true}, "SIMULATOR_ERROR", true},
		{"unknown", errors.New("some unexpected error"), "UNKNOWN_ERROR", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := connect(t, &mockFlight{err: tt.err}, internalmcp.Options{})
			res, m := callTool(t, cs, "get_flight_status", nil)

			require.True(t, res.IsError)
			assert.Equal(t, tt.code, m["code"])
			assert.Equal(t, tt.recoverable, m["recoverable"])
			assert.Equal(t, false, m["available"])
			assert.NotEmpty(t, m["suggestion"])
		})
	}
}

func TestSetFlying(t *testing.T) {
	fc := &mockFlight{}
	cs := connect(t, fc, internalmcp.Options{})

	res, m := callTool(t, cs, "set_flying", map[string]any{"flying": true})
	require.False(t, res.IsError)
	assert.Equal(t, true, m["flying"])
	assert.Equal(t, true, m["changed"])
	assert.True(t, fc.IsFlying())

	_, m = callTool(t, cs, "set_flying", map[string]any{"flying": true})
	assert.Equal(t, false, m["changed"])

	_, m = callTool(t, cs, "set_flying", map[string]any{"flying": false})
	assert.Equal(t, true, m["changed"])
	assert.False(t, fc.IsFlying())
}

func TestGetFlightPath(t *testing.T) {
	fc := &mockFlight{path: []r3.Vector{{X: 0, Y: 10, Z: 0}, {X: 30, Y: 10, Z: 0}, {X: 30, Y: 10, Z: 40}}}
	proj := geo.NewProjector(geo.Anchor{Latitude: 10, Longitude: 20})
	cs := connect(t, fc, internalmcp.Options{Projector: proj})

	res, m := callTool(t, cs, "get_flight_path", nil)
	require.False(t, res.IsError)

	wps := m["waypoints"].([]any)
	require.Len(t, wps, 3)
	assert.Equal(t, 30.0, wps[1].(map[string]any)["x"])
	assert.InDelta(t, 120.0, m["horizontal_length_m"].(float64), 1e-9)
	assert.Contains(t, m["wkt"], "LINESTRING")
	_, hasGeo := m["geographic"]
	assert.False(t, hasGeo)

	_, m = callTool(t, cs, "get_flight_path", map[string]any{"include_geographic": true})
	pts := m["geographic"].([]any)
	require.Len(t, pts, 3)
	first := pts[0].(map[string]any)
	assert.InDelta(t, 10.0, first["latitude"].(float64), 1e-6)
	assert.InDelta(t, 20.0, first["longitude"].(float64), 1e-6)
	assert.Contains(t, m["geographic_wkt"], "LINESTRING")
}

func TestGetFlightPathSingleWaypoint(t *testing.T) {
	cs := connect(t, &mockFlight{path: []r3.Vector{{X: 5, Y: 10, Z: 5}}}, internalmcp.Options{})

	res, m := callTool(t, cs, "get_flight_path", nil)
	require.True(t, res.IsError)
	assert.Equal(t, "UNKNOWN_ERROR", m["code"])
	assert.Contains(t, m["error"], "route of 1 waypoints")
}

func TestGetFlightEvents(t *testing.T) {
	events := &mockEvents{events: []telemetry.Event{
		{ID: 2, Kind: telemetry.KindArrival, Waypoint: 4, Tick: 90},
		{ID: 1, Kind: telemetry.KindCapture, Waypoint: 3, Tick: 60},
	}}
	cs := connect(t, &mockFlight{}, internalmcp.Options{Events: events})

	res, m := callTool(t, cs, "get_flight_events", map[string]any{"limit": 1})
	require.False(t, res.IsError)
	assert.Equal(t, 1, events.limit)
	list := m["events"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "arrival", list[0].(map[string]any)["kind"])

	callTool(t, cs, "get_flight_events", nil)
	assert.Equal(t, 20, events.limit)
}

func TestFlightEventsToolNeedsJournal(t *testing.T) {
	cs := connect(t, &mockFlight{}, internalmcp.Options{})

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"get_flight_status", "set_flying", "get_flight_path"}, names)
}
