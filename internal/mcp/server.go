package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang/geo/r3"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/eytandecker/quadpilot/internal/flight"
	"github.com/eytandecker/quadpilot/internal/geo"
	"github.com/eytandecker/quadpilot/internal/simlink"
	"github.com/eytandecker/quadpilot/internal/state"
	"github.com/eytandecker/quadpilot/internal/telemetry"
	"github.com/eytandecker/quadpilot/pkg/types"
)

// FlightControl is the subset of flight.Controller used by the MCP server.
type FlightControl interface {
	Status() (flight.Status, error)
	SetFlying(on bool)
	IsFlying() bool
	Path() []r3.Vector
}

// EventSource lists journal events, newest first.
type EventSource interface {
	Recent(ctx context.Context, limit int) ([]telemetry.Event, error)
}

// Options configures the server. Projector and Events are optional; without
// them geographic output and get_flight_events are omitted.
type Options struct {
	Name      string
	Version   string
	Projector *geo.Projector
	Events    EventSource
	Logger    zerolog.Logger
}

// Server wraps the MCP SDK server and exposes the flight controller as tools.
type Server struct {
	sdk    *mcpsdk.Server
	flight FlightControl
	proj   *geo.Projector
	events EventSource
	log    zerolog.Logger
	now    func() time.Time
}

const defaultEventLimit = 20

// NewServer creates a Server and registers its tools.
func NewServer(fc FlightControl, opts Options) *Server {
	if opts.Name == "" {
		opts.Name = "quadpilot"
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}
	s := &Server{
		sdk: mcpsdk.NewServer(&mcpsdk.Implementation{
			Name:    opts.Name,
			Version: opts.Version,
		}, nil),
		flight: fc,
		proj:   opts.Projector,
		events: opts.Events,
		log:    opts.Logger.With().Str("component", "mcp").Logger(),
		now:    time.Now,
	}

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "get_flight_status",
		Description: "Returns the quadcopter's flight mode, waypoint progress, position, distance to target and last motor output.",
	}, s.handleGetFlightStatus)
	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "set_flying",
		Description: "Starts or stops route following. Stopping keeps the waypoint cursor and controller memory.",
	}, s.handleSetFlying)
	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "get_flight_path",
		Description: "Returns the waypoint route as local coordinates, WKT and, when georeferenced, longitude/latitude.",
	}, s.handleGetFlightPath)
	if s.events != nil {
		mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
			Name:        "get_flight_events",
			Description: "Returns recent waypoint arrivals and scene events from the flight journal, newest first.",
		}, s.handleGetFlightEvents)
	}
	return s
}

// Run starts the MCP server over stdio and blocks until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.sdk.Run(ctx, &mcpsdk.StdioTransport{})
}

// Connect connects the server to an existing transport (used in tests).
func (s *Server) Connect(ctx context.Context, t mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	return s.sdk.Connect(ctx, t, nil)
}

// Vector is a JSON-friendly 3D vector.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func vec(v r3.Vector) Vector { return Vector{X: v.X, Y: v.Y, Z: v.Z} }

// GeoPoint is a WGS84 position.
type GeoPoint struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Altitude  float64 `json:"altitude_m"`
}

func (s *Server) geoPoint(v r3.Vector) *GeoPoint {
	if s.proj == nil {
		return nil
	}
	lon, lat, alt := s.proj.Geographic(v)
	return &GeoPoint{Longitude: lon, Latitude: lat, Altitude: alt}
}

type statusInput struct{}

// FlightStatusResponse is the JSON payload of get_flight_status.
type FlightStatusResponse struct {
	Flying           bool               `json:"flying"`
	Tick             uint64             `json:"tick"`
	Waypoint         int                `json:"waypoint"`
	PreviousWaypoint int                `json:"previous_waypoint"`
	SinceArrival     float64            `json:"since_arrival_s"`
	Target           Vector             `json:"target"`
	Position         Vector             `json:"position"`
	Geographic       *GeoPoint          `json:"geographic,omitempty"`
	Distance         float64            `json:"distance_m"`
	YawError         float64            `json:"yaw_error_deg"`
	Thrust           float64            `json:"thrust"`
	Pitch            float64            `json:"pitch"`
	Roll             float64            `json:"roll"`
	Yaw              float64            `json:"yaw"`
	Motors           map[string]float64 `json:"motors"`
	Anomaly          bool               `json:"anomaly"`
	Timestamp        string             `json:"timestamp"`
}

// FlightUnavailableResponse is returned when a tool cannot answer.
type FlightUnavailableResponse struct {
	Available   bool   `json:"available"`
	Error       string `json:"error"`
	Code        string `json:"code"`
	Recoverable bool   `json:"recoverable"`
	Suggestion  string `json:"suggestion"`
	Timestamp   string `json:"timestamp"`
}

func (s *Server) handleGetFlightStatus(
	ctx context.Context,
	req *mcpsdk.CallToolRequest,
	_ statusInput,
) (*mcpsdk.CallToolResult, any, error) {
	st, err := s.flight.Status()
	if err != nil {
		return s.errorResult(err), nil, nil
	}

	resp := FlightStatusResponse{
		Flying:           st.Flying,
		Tick:             st.Tick,
		Waypoint:         st.Cursor.Current,
		PreviousWaypoint: st.Cursor.Previous,
		SinceArrival:     st.Cursor.SinceArrival,
		Target:           vec(st.Target),
		Position:         vec(st.Position),
		Geographic:       s.geoPoint(st.Position),
		Distance:         st.Solution.Distance,
		YawError:         st.Solution.YawError,
		Thrust:           st.Output.Thrust,
		Pitch:            st.Output.Pitch,
		Roll:             st.Output.Roll,
		Yaw:              st.Output.Yaw,
		Motors:           make(map[string]float64, len(types.Motors)),
		Anomaly:          st.Anomaly,
		Timestamp:        s.timestamp(),
	}
	for _, m := range types.Motors {
		resp.Motors[m.String()] = st.Output.Motors[m]
	}
	return s.jsonResult(resp)
}

type setFlyingInput struct {
	Flying bool `json:"flying" jsonschema:"true to follow the route, false to hold"`
}

// SetFlyingResponse is the JSON payload of set_flying.
type SetFlyingResponse struct {
	Flying    bool   `json:"flying"`
	Changed   bool   `json:"changed"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleSetFlying(
	ctx context.Context,
	req *mcpsdk.CallToolRequest,
	input setFlyingInput,
) (*mcpsdk.CallToolResult, any, error) {
	was := s.flight.IsFlying()
	s.flight.SetFlying(input.Flying)
	if was != input.Flying {
		s.log.Info().Bool("flying", input.Flying).Msg("flight mode set over MCP")
	}
	return s.jsonResult(SetFlyingResponse{
		Flying:    input.Flying,
		Changed:   was != input.Flying,
		Timestamp: s.timestamp(),
	})
}

type pathInput struct {
	IncludeGeographic bool `json:"include_geographic,omitempty"`
}

// FlightPathResponse is the JSON payload of get_flight_path.
type FlightPathResponse struct {
	Waypoints        []Vector   `json:"waypoints"`
	WKT              string     `json:"wkt"`
	HorizontalLength float64    `json:"horizontal_length_m"`
	Geographic       []GeoPoint `json:"geographic,omitempty"`
	GeographicWKT    string     `json:"geographic_wkt,omitempty"`
}

func (s *Server) handleGetFlightPath(
	ctx context.Context,
	req *mcpsdk.CallToolRequest,
	input pathInput,
) (*mcpsdk.CallToolResult, any, error) {
	path := s.flight.Path()
	route, err := geo.LocalRoute(path)
	if err != nil {
		return s.errorResult(err), nil, nil
	}
	resp := FlightPathResponse{
		Waypoints:        make([]Vector, len(path)),
		WKT:              route.AsText(),
		HorizontalLength: geo.HorizontalLength(path),
	}
	for i, p := range path {
		resp.Waypoints[i] = vec(p)
	}
	if input.IncludeGeographic && s.proj != nil {
		geoRoute, err := s.proj.Route(path)
		if err != nil {
			return s.errorResult(err), nil, nil
		}
		for _, p := range path {
			resp.Geographic = append(resp.Geographic, *s.geoPoint(p))
		}
		resp.GeographicWKT = geoRoute.AsText()
	}
	return s.jsonResult(resp)
}

type eventsInput struct {
	Limit int `json:"limit,omitempty"`
}

func (s *Server) handleGetFlightEvents(
	ctx context.Context,
	req *mcpsdk.CallToolRequest,
	input eventsInput,
) (*mcpsdk.CallToolResult, any, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultEventLimit
	}
	events, err := s.events.Recent(ctx, limit)
	if err != nil {
		return s.errorResult(err), nil, nil
	}
	return s.jsonResult(map[string]any{"events": events})
}

func (s *Server) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func (s *Server) jsonResult(v any) (*mcpsdk.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, nil, nil
}

func (s *Server) errorResult(err error) *mcpsdk.CallToolResult {
	resp := FlightUnavailableResponse{
		Available: false,
		Error:     err.Error(),
		Timestamp: s.timestamp(),
	}

	switch {
	case errors.Is(err, flight.ErrNotStarted):
		resp.Code = "NOT_STARTED"
		resp.Recoverable = true
		resp.Suggestion = "Call set_flying with flying=true and wait for the first tick."
	case errors.Is(err, state.ErrStale):
		resp.Code = "DATA_STALE"
		resp.Recoverable = true
		resp.Suggestion = "Wait for the physics host to send fresh vehicle state."
	case errors.Is(err, simlink.ErrNotConnected):
		resp.Code = "SIMULATOR_NOT_CONNECTED"
		resp.Recoverable = true
		resp.Suggestion = "Ensure the physics host is running and reachable."
	default:
		var simErr *types.SimulatorError
		if errors.As(err, &simErr) && simErr.Recoverable {
			resp.Code = "SIMULATOR_ERROR"
			resp.Recoverable = true
			resp.Suggestion = "Retry once the link reconnects."
			break
		}
		resp.Code = "UNKNOWN_ERROR"
		resp.Recoverable = false
		resp.Suggestion = "Check application logs for details."
	}

	data, _ := json.Marshal(resp)
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
		IsError: true,
	}
}
