package flight

import (
	"math"

	"github.com/golang/geo/r3"
)

// Arrival box half-widths.
const (
	ArrivalHorizontal = 8.0
	ArrivalVertical   = 2.0
)

// Path is an ordered, cyclic sequence of waypoints. It is read-only once built.
type Path struct {
	points []r3.Vector
}

// NewPath copies points into a Path. An empty slice is a configuration error.
func NewPath(points []r3.Vector) (Path, error) {
	if len(points) == 0 {
		return Path{}, ErrEmptyPath
	}
	cp := make([]r3.Vector, len(points))
	copy(cp, points)
	return Path{points: cp}, nil
}

// DefaultRoute is the eight-point delivery circuit flown at 120 units altitude.
func DefaultRoute() []r3.Vector {
	return []r3.Vector{
		{X: 0, Y: 120, Z: 0},
		{X: 0, Y: 120, Z: 100},
		{X: -23, Y: 120, Z: 129.4},
		{X: -57.4, Y: 120, Z: 138.8},
		{X: -105.3, Y: 120, Z: 121.7},
		{X: -124.8, Y: 120, Z: 55.5},
		{X: -84.5, Y: 120, Z: 29.2},
		{X: -36.85, Y: 120, Z: 16.61},
	}
}

// Len returns the number of waypoints.
func (p Path) Len() int { return len(p.points) }

// At returns the waypoint at i, wrapping around the path.
func (p Path) At(i int) r3.Vector {
	n := len(p.points)
	return p.points[((i%n)+n)%n]
}

// Points returns a copy of the waypoints.
func (p Path) Points() []r3.Vector {
	cp := make([]r3.Vector, len(p.points))
	copy(cp, p.points)
	return cp
}

// InArrivalBox reports whether the offset to a waypoint lies strictly inside
// the axis-aligned arrival box.
func InArrivalBox(delta r3.Vector) bool {
	return InHorizontalBox(delta) && math.Abs(delta.Y) < ArrivalVertical
}

// InHorizontalBox is InArrivalBox without the vertical test.
func InHorizontalBox(delta r3.Vector) bool {
	return math.Abs(delta.X) < ArrivalHorizontal && math.Abs(delta.Z) < ArrivalHorizontal
}
