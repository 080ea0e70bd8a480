package flight

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/eytandecker/quadpilot/pkg/types"
)

var worldUp = r3.Vector{X: 0, Y: 1, Z: 0}

// NormalizeAngle folds Euler angles above 180 degrees into the negative range
// so roll and pitch stay continuous around level flight.
func NormalizeAngle(deg float64) float64 {
	if deg > 180 {
		return -(360 - math.Abs(deg))
	}
	return deg
}

// SignedAngle returns the angle in degrees from a to b around axis, positive
// when a×b points along axis.
func SignedAngle(a, b, axis r3.Vector) float64 {
	return math.Atan2(axis.Dot(a.Cross(b)), a.Dot(b)) * 180 / math.Pi
}

// Solution is the per-tick geometric error between the vehicle and its target.
type Solution struct {
	TargetDelta     r3.Vector
	Distance        float64
	YawError        float64
	RollError       float64
	Pitch           float64
	Roll            float64
	Yaw             float64
	ForwardVelocity float64
	LateralVelocity float64
}

// Solve computes the heading and path-tracking errors for one tick. previous
// is the waypoint last departed from; the segment previous→target is the
// reference line for the roll error.
func Solve(st types.VehicleState, target, previous r3.Vector) Solution {
	delta := target.Sub(st.Position)
	segment := target.Sub(previous)

	return Solution{
		TargetDelta:     delta,
		Distance:        delta.Norm(),
		YawError:        SignedAngle(st.Forward, delta, st.Up),
		RollError:       SignedAngle(segment, delta, worldUp),
		Pitch:           NormalizeAngle(st.Orientation.X),
		Roll:            NormalizeAngle(st.Orientation.Z),
		Yaw:             st.Orientation.Y,
		ForwardVelocity: st.LocalVelocity.Z,
		LateralVelocity: st.LocalVelocity.X,
	}
}
