package types

import "github.com/golang/geo/r3"

// Motor identifies one of the four rotor mounts.
type Motor int

const (
	RearLeft Motor = iota
	RearRight
	FrontLeft
	FrontRight
)

// Motors lists every motor in mixing order.
var Motors = [4]Motor{RearLeft, RearRight, FrontLeft, FrontRight}

func (m Motor) String() string {
	switch m {
	case RearLeft:
		return "rear_left"
	case RearRight:
		return "rear_right"
	case FrontLeft:
		return "front_left"
	case FrontRight:
		return "front_right"
	default:
		return "unknown"
	}
}

// VehicleState is one tick's snapshot of the vehicle as reported by the
// physics engine. Frame is Y-up, Z-forward; Euler angles are in degrees with
// X=pitch, Y=yaw, Z=roll.
type VehicleState struct {
	Position      r3.Vector
	Orientation   r3.Vector
	Forward       r3.Vector
	Up            r3.Vector
	Right         r3.Vector
	LocalVelocity r3.Vector
	Mounts        [4]r3.Vector // world positions, indexed by Motor
}
