package geo

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const earthRadius = 6378137.0

func TestGeographicAtOrigin(t *testing.T) {
	p := NewProjector(Anchor{Latitude: 45, Longitude: 7, Altitude: 300})

	lon, lat, alt := p.Geographic(r3.Vector{})
	assert.InDelta(t, 7, lon, 1e-9)
	assert.InDelta(t, 45, lat, 1e-9)
	assert.InDelta(t, 300, alt, 1e-9)
}

func TestGeographicOffsets(t *testing.T) {
	p := NewProjector(Anchor{Latitude: 45, Longitude: 7})
	perMetre := 180 / (math.Pi * earthRadius)

	lon, lat, alt := p.Geographic(r3.Vector{Y: 120, Z: 1000})
	assert.InDelta(t, 7, lon, 1e-9)
	assert.InDelta(t, 1000*perMetre, lat-45, 1e-6)
	assert.InDelta(t, 120, alt, 1e-9)

	lon, lat, _ = p.Geographic(r3.Vector{X: 1000})
	assert.InDelta(t, 45, lat, 1e-9)
	// East-west degrees shrink with cos(lat).
	assert.InDelta(t, 1000*perMetre/math.Cos(math.Pi/4), lon-7, 1e-6)
}

func TestPoint(t *testing.T) {
	p := NewProjector(Anchor{Latitude: 0, Longitude: 0, Altitude: 10})

	pt, err := p.Point(r3.Vector{Y: 5})
	require.NoError(t, err)
	xy, ok := pt.XY()
	require.True(t, ok)
	assert.InDelta(t, 0, xy.X, 1e-9)
	assert.InDelta(t, 0, xy.Y, 1e-9)
	c, ok := pt.Coordinates()
	require.True(t, ok)
	assert.InDelta(t, 15, c.Z, 1e-9)
}

func TestLocalRouteIsClosedLoop(t *testing.T) {
	pts := []r3.Vector{{X: 0, Y: 10, Z: 0}, {X: 30, Y: 10, Z: 0}, {X: 30, Y: 10, Z: 40}}

	ls, err := LocalRoute(pts)
	require.NoError(t, err)
	assert.Equal(t, 4, ls.Coordinates().Length())
	assert.True(t, ls.IsClosed())
	assert.InDelta(t, 30+40+50, ls.Length(), 1e-9)
	assert.InDelta(t, 120, HorizontalLength(pts), 1e-9)
	wkt := ls.AsText()
	assert.Contains(t, wkt, "LINESTRING Z")
	assert.Contains(t, wkt, "30 40 10")
}

func TestRouteDoesNotAliasInput(t *testing.T) {
	pts := make([]r3.Vector, 2, 8)
	pts[0], pts[1] = r3.Vector{X: 1}, r3.Vector{X: 2}

	_, err := LocalRoute(pts)
	require.NoError(t, err)
	assert.Equal(t, r3.Vector{}, pts[:3][2])
}

func TestEmptyRoute(t *testing.T) {
	ls, err := LocalRoute(nil)
	require.NoError(t, err)
	assert.True(t, ls.IsEmpty())

	ls, err = NewProjector(Anchor{}).Route(nil)
	require.NoError(t, err)
	assert.True(t, ls.IsEmpty())
	assert.Zero(t, HorizontalLength(nil))
}

func TestTwoPointRouteWKT(t *testing.T) {
	ls, err := LocalRoute([]r3.Vector{{X: 0, Y: 10, Z: 0}, {X: 30, Y: 10, Z: 0}})
	require.NoError(t, err)

	wkt := ls.AsText()
	assert.Contains(t, wkt, "30 0 10")
	got, err := geom.UnmarshalWKT(wkt)
	require.NoError(t, err)
	want, err := geom.UnmarshalWKT("LINESTRING Z (0 0 10,30 0 10,0 0 10)")
	require.NoError(t, err)
	assert.True(t, geom.ExactEquals(want, got), "got %s", wkt)
	assert.InDelta(t, 60, HorizontalLength([]r3.Vector{{X: 0, Y: 10}, {X: 30, Y: 10}}), 1e-9)
}

func TestSingleWaypointRouteIsAnError(t *testing.T) {
	_, err := LocalRoute([]r3.Vector{{X: 5, Y: 10, Z: 5}})
	assert.Error(t, err)
	assert.Zero(t, HorizontalLength([]r3.Vector{{X: 5, Y: 10, Z: 5}}))
}

func TestProjectedRoute(t *testing.T) {
	p := NewProjector(Anchor{Latitude: 51.5, Longitude: -0.12})
	ls, err := p.Route([]r3.Vector{{Y: 100}, {Z: 500, Y: 100}})
	require.NoError(t, err)

	start, ok := ls.StartPoint().XY()
	require.True(t, ok)
	assert.InDelta(t, -0.12, start.X, 1e-9)
	assert.InDelta(t, 51.5, start.Y, 1e-9)
	assert.True(t, ls.IsClosed())
}
