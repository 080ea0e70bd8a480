package flight

import "errors"

var (
	// ErrEmptyPath is returned when a controller is built without waypoints.
	ErrEmptyPath = errors.New("flight: waypoint path is empty")
	// ErrNotStarted is returned by Status before the first flying tick.
	ErrNotStarted = errors.New("flight: no tick evaluated yet")
)
