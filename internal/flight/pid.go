package flight

import "math"

// Channel names one of the seven PID loops. Evaluation order within a tick
// follows the declaration order because later loops consume earlier outputs.
type Channel int

const (
	ChannelDistance Channel = iota
	ChannelVelocity
	ChannelRollTarget
	ChannelPitch
	ChannelYaw
	ChannelRollOutput
	ChannelThrust

	channelCount
)

// Channels lists every channel in evaluation order.
var Channels = [channelCount]Channel{
	ChannelDistance, ChannelVelocity, ChannelRollTarget, ChannelPitch,
	ChannelYaw, ChannelRollOutput, ChannelThrust,
}

func (c Channel) String() string {
	switch c {
	case ChannelDistance:
		return "distance"
	case ChannelVelocity:
		return "velocity"
	case ChannelRollTarget:
		return "roll_target"
	case ChannelPitch:
		return "pitch"
	case ChannelYaw:
		return "yaw"
	case ChannelRollOutput:
		return "roll_output"
	case ChannelThrust:
		return "thrust"
	default:
		return "unknown"
	}
}

// Gains holds the proportional, integral and derivative coefficients.
type Gains struct {
	Kp, Ki, Kd float64
}

// ChannelGains maps every channel to its coefficients.
type ChannelGains [channelCount]Gains

// DefaultGains returns the tuned coefficients for the stock airframe.
func DefaultGains() ChannelGains {
	return ChannelGains{
		ChannelDistance:   {Kp: 1},
		ChannelVelocity:   {Kp: 0.2, Kd: 1},
		ChannelRollTarget: {Kp: 1, Kd: 0.5},
		ChannelPitch:      {Kp: 1, Kd: 0.2},
		ChannelYaw:        {Kp: 2, Kd: 1},
		ChannelRollOutput: {Kp: 1, Kd: 0.2},
		ChannelThrust:     {Kp: 3, Kd: 7},
	}
}

// ChannelState is the persistent memory of one loop.
type ChannelState struct {
	Integral      float64
	PreviousError float64
}

// Bank holds the state of every channel. The zero value is ready to use.
type Bank struct {
	channels [channelCount]ChannelState
}

// State returns a copy of a channel's memory.
func (b *Bank) State(ch Channel) ChannelState {
	return b.channels[ch]
}

// Evaluate runs one PID step on ch and returns its output.
//
// A non-finite error is replaced by 0 before any bookkeeping, so the stored
// previous error is zeroed too. With dt <= 0 the derivative term is dropped;
// callers are expected to report that tick as an anomaly.
func (b *Bank) Evaluate(ch Channel, measured, setPoint, dt float64, g Gains) float64 {
	err := setPoint - measured
	if math.IsNaN(err) || math.IsInf(err, 0) {
		err = 0
	}

	s := &b.channels[ch]
	s.Integral += err * dt

	var derivative float64
	if dt > 0 {
		derivative = (err - s.PreviousError) / dt
	}
	s.PreviousError = err

	return g.Kp*err + g.Ki*s.Integral + g.Kd*derivative
}
