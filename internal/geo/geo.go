// Package geo georeferences the local flight frame and exports routes as
// simple-features geometry. The local frame is X east, Y up, Z north, in
// metres from an anchor point.
package geo

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

const (
	sridWGS84       = 4326
	sridWebMercator = 3857
)

// Anchor is the geographic position of the local origin.
type Anchor struct {
	Latitude  float64 // degrees
	Longitude float64 // degrees
	Altitude  float64 // metres above the ellipsoid
}

// Projector maps local coordinates to WGS84.
type Projector struct {
	anchor   Anchor
	originX  float64
	originY  float64
	scale    float64 // Web Mercator stretches distances by 1/cos(lat)
	toLonLat func(x, y, z float64) (lon, lat, h float64)
}

// NewProjector builds a projector for anchor.
func NewProjector(a Anchor) *Projector {
	epsg := wgs84.EPSG()
	x, y, _ := epsg.Transform(sridWGS84, sridWebMercator)(a.Longitude, a.Latitude, 0)
	return &Projector{
		anchor:   a,
		originX:  x,
		originY:  y,
		scale:    1 / math.Cos(a.Latitude*math.Pi/180),
		toLonLat: epsg.Transform(sridWebMercator, sridWGS84),
	}
}

// Anchor returns the configured anchor.
func (p *Projector) Anchor() Anchor { return p.anchor }

// Geographic converts a local position to longitude, latitude and altitude.
func (p *Projector) Geographic(local r3.Vector) (lon, lat, alt float64) {
	lon, lat, _ = p.toLonLat(p.originX+local.X*p.scale, p.originY+local.Z*p.scale, 0)
	return lon, lat, p.anchor.Altitude + local.Y
}

// Point returns local as an XYZ point in longitude, latitude, altitude order.
func (p *Projector) Point(local r3.Vector) (geom.Point, error) {
	lon, lat, alt := p.Geographic(local)
	pt, err := geom.NewPoint(geom.Coordinates{XY: geom.XY{X: lon, Y: lat}, Z: alt, Type: geom.DimXYZ})
	if err != nil {
		return geom.Point{}, fmt.Errorf("point %v: %w", local, err)
	}
	return pt, nil
}

// Route returns the waypoint loop in WGS84 coordinates. The first point is
// repeated at the end since the path wraps. A loop needs two distinct
// waypoints.
func (p *Projector) Route(points []r3.Vector) (geom.LineString, error) {
	return loop(points, p.Geographic)
}

// LocalRoute returns the waypoint loop in local metres with X east, Y north
// and Z altitude.
func LocalRoute(points []r3.Vector) (geom.LineString, error) {
	return loop(points, func(v r3.Vector) (float64, float64, float64) { return v.X, v.Z, v.Y })
}

// HorizontalLength is the length of one lap of the loop, ignoring altitude.
func HorizontalLength(points []r3.Vector) float64 {
	var total float64
	for i, v := range points {
		next := points[(i+1)%len(points)]
		total += math.Hypot(next.X-v.X, next.Z-v.Z)
	}
	return total
}

func loop(points []r3.Vector, project func(r3.Vector) (float64, float64, float64)) (geom.LineString, error) {
	if len(points) == 0 {
		return geom.LineString{}, nil
	}
	flat := make([]float64, 0, (len(points)+1)*3)
	for _, v := range append(points[:len(points):len(points)], points[0]) {
		x, y, z := project(v)
		flat = append(flat, x, y, z)
	}
	ls, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXYZ))
	if err != nil {
		return geom.LineString{}, fmt.Errorf("route of %d waypoints: %w", len(points), err)
	}
	return ls, nil
}
