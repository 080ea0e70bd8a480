// Package physics is a minimal rigid-body engine for headless flights. It
// integrates gravity and point forces with semi-implicit Euler steps and
// reports attitude the way a Y-up, Z-forward game engine does.
package physics

import (
	"math"
	"sync"

	"github.com/golang/geo/r3"

	"github.com/eytandecker/quadpilot/pkg/types"
)

// Config holds the airframe constants.
type Config struct {
	Mass      float64 // kg
	Gravity   float64 // m/s², applied along -Y
	ArmLength float64 // m, centre to each rotor along both body axes
	Inertia   float64 // kg·m², scalar moment about every axis
	// Exponential damping rates, 1/s.
	LinearDamping  float64
	AngularDamping float64
	GroundLevel    float64
}

// DefaultConfig is tuned so hover thrust at a 50 Hz tick balances gravity.
func DefaultConfig() Config {
	return Config{
		Mass:           1,
		Gravity:        9.81,
		ArmLength:      1,
		Inertia:        0.5,
		LinearDamping:  0.2,
		AngularDamping: 5,
		GroundLevel:    0,
	}
}

// mountOffsets places each rotor in body coordinates (x right, z forward).
// The airframe carries its rotors rotated half a turn: the pair named rear
// sits ahead of the centre and the pair named left sits on the right.
var mountOffsets = [4]struct{ x, z float64 }{
	types.RearLeft:   {x: 1, z: 1},
	types.RearRight:  {x: -1, z: 1},
	types.FrontLeft:  {x: 1, z: -1},
	types.FrontRight: {x: -1, z: -1},
}

// Body is a rigid body with an orthonormal attitude basis. It is safe for
// concurrent use.
type Body struct {
	mu  sync.Mutex
	cfg Config

	position   r3.Vector
	velocity   r3.Vector
	angularVel r3.Vector // world frame, rad/s

	forward, up, right r3.Vector

	force  r3.Vector
	torque r3.Vector
}

// NewBody creates a level body at rest at position, facing +Z.
func NewBody(cfg Config, position r3.Vector) *Body {
	if cfg.Mass <= 0 {
		cfg.Mass = 1
	}
	if cfg.Inertia <= 0 {
		cfg.Inertia = cfg.Mass / 2
	}
	return &Body{
		cfg:      cfg,
		position: position,
		forward:  r3.Vector{Z: 1},
		up:       r3.Vector{Y: 1},
		right:    r3.Vector{X: 1},
	}
}

func (b *Body) Position() r3.Vector {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.position
}

func (b *Body) Velocity() r3.Vector {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.velocity
}

func (b *Body) Forward() r3.Vector {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.forward
}

func (b *Body) Up() r3.Vector {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.up
}

func (b *Body) Right() r3.Vector {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.right
}

// LocalVelocity returns the velocity in body axes: X right, Y up, Z forward.
func (b *Body) LocalVelocity() r3.Vector {
	b.mu.Lock()
	defer b.mu.Unlock()
	return r3.Vector{X: b.velocity.Dot(b.right), Y: b.velocity.Dot(b.up), Z: b.velocity.Dot(b.forward)}
}

// Orientation returns Euler angles in degrees within [0, 360): X is pitch
// (nose down positive), Y is yaw, Z is roll (right side up positive).
func (b *Body) Orientation() r3.Vector {
	b.mu.Lock()
	defer b.mu.Unlock()
	pitch := math.Asin(clamp(-b.forward.Y, -1, 1))
	yaw := math.Atan2(b.forward.X, b.forward.Z)
	roll := math.Atan2(b.right.Y, b.up.Y)
	return r3.Vector{X: wrapDegrees(pitch), Y: wrapDegrees(yaw), Z: wrapDegrees(roll)}
}

// MotorMount returns the world position of motor m.
func (b *Body) MotorMount(m types.Motor) r3.Vector {
	b.mu.Lock()
	defer b.mu.Unlock()
	o := mountOffsets[m]
	arm := b.cfg.ArmLength
	return b.position.Add(b.right.Mul(o.x * arm)).Add(b.forward.Mul(o.z * arm))
}

// ApplyForceAtPoint accumulates a world force and the torque it produces
// about the centre of mass until the next Step.
func (b *Body) ApplyForceAtPoint(force, point r3.Vector) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.force = b.force.Add(force)
	b.torque = b.torque.Add(point.Sub(b.position).Cross(force))
	return nil
}

// State returns a full snapshot.
func (b *Body) State() types.VehicleState {
	st := types.VehicleState{
		Position:      b.Position(),
		Orientation:   b.Orientation(),
		Forward:       b.Forward(),
		Up:            b.Up(),
		Right:         b.Right(),
		LocalVelocity: b.LocalVelocity(),
	}
	for _, m := range types.Motors {
		st.Mounts[m] = b.MotorMount(m)
	}
	return st
}

// Step advances the body by dt seconds and clears the accumulators.
func (b *Body) Step(dt float64) {
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	cfg := b.cfg
	accel := b.force.Mul(1 / cfg.Mass).Add(r3.Vector{Y: -cfg.Gravity})
	b.velocity = b.velocity.Add(accel.Mul(dt)).Mul(math.Exp(-cfg.LinearDamping * dt))
	b.position = b.position.Add(b.velocity.Mul(dt))

	if b.position.Y < cfg.GroundLevel {
		b.position.Y = cfg.GroundLevel
		if b.velocity.Y < 0 {
			b.velocity.Y = 0
		}
	}

	b.angularVel = b.angularVel.Add(b.torque.Mul(dt / cfg.Inertia)).Mul(math.Exp(-cfg.AngularDamping * dt))
	if w := b.angularVel.Norm(); w > 0 {
		axis := b.angularVel.Mul(1 / w)
		angle := w * dt
		b.forward = rotate(b.forward, axis, angle)
		b.up = rotate(b.up, axis, angle)
		b.orthonormalize()
	}

	b.force = r3.Vector{}
	b.torque = r3.Vector{}
}

// orthonormalize keeps forward and up unit length and perpendicular, and
// rebuilds right from them.
func (b *Body) orthonormalize() {
	b.forward = b.forward.Normalize()
	b.up = b.up.Sub(b.forward.Mul(b.up.Dot(b.forward))).Normalize()
	b.right = b.up.Cross(b.forward)
}

// rotate turns v about a unit axis by angle radians (Rodrigues).
func rotate(v, axis r3.Vector, angle float64) r3.Vector {
	c, s := math.Cos(angle), math.Sin(angle)
	return v.Mul(c).Add(axis.Cross(v).Mul(s)).Add(axis.Mul(axis.Dot(v) * (1 - c)))
}

func wrapDegrees(rad float64) float64 {
	d := math.Mod(rad*180/math.Pi, 360)
	if d < 0 {
		d += 360
	}
	return d
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
