package flight

import (
	"github.com/golang/geo/r3"

	"github.com/eytandecker/quadpilot/pkg/types"
)

const (
	// HoverThrust is the per-motor base thrust that holds the stock airframe aloft.
	HoverThrust = 122.0
	// SpinRate converts motor force to propeller degrees per second.
	SpinRate = 15.0
)

// MixInput carries one tick's control signals into the mixer.
type MixInput struct {
	Thrust   float64
	Pitch    float64 // eased
	Roll     float64 // eased
	Yaw      float64
	YawError float64 // decides which diagonal carries the yaw pair
	HoldYaw  bool    // vehicle is inside the horizontal arrival box
	DT       float64
}

// YawReaction is a pair of forward-axis forces at two diagonal mounts. The
// airframe has no rotor counter-torque model, so yaw is approximated by
// pushing one corner forward and the opposite corner backward.
type YawReaction struct {
	Motors [2]types.Motor
	Scale  [2]float64 // multiples of the forward axis
}

// Output is one tick's actuator command.
type Output struct {
	Pitch, Yaw, Roll, Thrust float64

	Motors   [4]float64 // indexed by types.Motor
	Spin     [4]float64 // propeller degrees this tick
	Reaction *YawReaction
	DT       float64
}

// Mix turns control signals into per-motor thrust and the yaw force pair.
func Mix(in MixInput) Output {
	yaw := in.Yaw
	if in.HoldYaw {
		yaw = 0
	}

	out := Output{Pitch: in.Pitch, Yaw: yaw, Roll: in.Roll, Thrust: in.Thrust, DT: in.DT}
	out.Motors[types.RearLeft] = in.Thrust - in.Pitch + in.Roll
	out.Motors[types.RearRight] = in.Thrust - in.Pitch - in.Roll
	out.Motors[types.FrontLeft] = in.Thrust + in.Pitch + in.Roll
	out.Motors[types.FrontRight] = in.Thrust + in.Pitch - in.Roll

	// Rear-left and front-right spin the other way.
	for _, m := range types.Motors {
		spin := out.Motors[m] * SpinRate * in.DT
		if m == types.RearLeft || m == types.FrontRight {
			spin = -spin
		}
		out.Spin[m] = spin
	}

	switch {
	case in.YawError < 0:
		out.Reaction = &YawReaction{
			Motors: [2]types.Motor{types.RearLeft, types.FrontRight},
			Scale:  [2]float64{-yaw, yaw},
		}
	case in.YawError > 0:
		out.Reaction = &YawReaction{
			Motors: [2]types.Motor{types.RearRight, types.FrontLeft},
			Scale:  [2]float64{yaw, -yaw},
		}
	}
	return out
}

// AppliedForce is a world-space force at one motor mount.
type AppliedForce struct {
	Motor types.Motor
	Force r3.Vector
}

// Forces converts the command into world-space forces. Lift acts along up,
// the yaw pair along forward; every force is scaled by the tick duration.
func (o Output) Forces(up, forward r3.Vector) []AppliedForce {
	forces := make([]AppliedForce, 0, 6)
	for _, m := range types.Motors {
		forces = append(forces, AppliedForce{Motor: m, Force: up.Mul(o.Motors[m] * o.DT)})
	}
	if o.Reaction != nil {
		for i, m := range o.Reaction.Motors {
			forces = append(forces, AppliedForce{Motor: m, Force: forward.Mul(o.Reaction.Scale[i] * o.DT)})
		}
	}
	return forces
}
