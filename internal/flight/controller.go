package flight

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/golang/geo/r3"
	"github.com/rs/zerolog"

	"github.com/eytandecker/quadpilot/pkg/types"
)

// Physics is the rigid-body engine that owns the vehicle.
type Physics interface {
	Position() r3.Vector
	Orientation() r3.Vector
	Forward() r3.Vector
	Up() r3.Vector
	LocalVelocity() r3.Vector
	MotorMount(m types.Motor) r3.Vector
	ApplyForceAtPoint(force, point r3.Vector) error
}

// Syncer is implemented by physics backends that must refresh a snapshot
// before it can be read, such as a remote link. An error skips the tick.
type Syncer interface {
	Sync() error
}

// Observer receives the status of every evaluated tick.
type Observer interface {
	ObserveTick(st Status)
}

// Status is the published result of the latest evaluated tick.
type Status struct {
	Flying   bool
	Tick     uint64
	Cursor   Cursor
	Advanced bool
	Target   r3.Vector
	Position r3.Vector
	Solution Solution
	Ease     float64
	Output   Output
	// Anomaly is set when dt was zero, negative or not finite.
	Anomaly bool
}

// Options configures a Controller. Nil pointers select DefaultGains and
// HoverThrust; a non-nil HoverThrust is used as given, including 0.
type Options struct {
	Gains       *ChannelGains
	HoverThrust *float64
	Listener    Listener
	Observer    Observer
	Logger      zerolog.Logger
}

// Controller is the tick driver. OnFixedTick must be called from a single
// goroutine; SetFlying, IsFlying and Status are safe from any goroutine.
type Controller struct {
	physics   Physics
	sequencer *Sequencer
	bank      Bank
	gains     ChannelGains
	hover     float64
	observer  Observer
	log       zerolog.Logger

	flying atomic.Bool
	tick   uint64

	mu      sync.RWMutex
	status  Status
	lastErr error
}

// NewController wires a controller to physics and a waypoint list.
func NewController(physics Physics, waypoints []r3.Vector, opts Options) (*Controller, error) {
	path, err := NewPath(waypoints)
	if err != nil {
		return nil, err
	}

	gains := DefaultGains()
	if opts.Gains != nil {
		gains = *opts.Gains
	}
	hover := HoverThrust
	if opts.HoverThrust != nil {
		hover = *opts.HoverThrust
	}

	return &Controller{
		physics:   physics,
		sequencer: NewSequencer(path, opts.Listener),
		gains:     gains,
		hover:     hover,
		observer:  opts.Observer,
		log:       opts.Logger,
		lastErr:   ErrNotStarted,
	}, nil
}

// SetFlying toggles between grounded and flying. Cursor and integrators are
// kept across a grounded interval.
func (c *Controller) SetFlying(on bool) {
	if c.flying.Swap(on) != on {
		c.log.Info().Bool("flying", on).Msg("flight mode changed")
	}
}

// IsFlying reports the current flight mode.
func (c *Controller) IsFlying() bool { return c.flying.Load() }

// Path returns the configured waypoints.
func (c *Controller) Path() []r3.Vector { return c.sequencer.path.Points() }

// Seek jumps the cursor to waypoint i. Call it from the tick goroutine only.
func (c *Controller) Seek(i int) { c.sequencer.Seek(i) }

// Cursor returns the navigation cursor. Call it from the tick goroutine only.
func (c *Controller) Cursor() Cursor { return c.sequencer.Cursor() }

// Channel returns the memory of one PID loop. Call it from the tick goroutine only.
func (c *Controller) Channel(ch Channel) ChannelState { return c.bank.State(ch) }

// Status returns the latest published tick. The error is ErrNotStarted
// before the first evaluated tick, or the reason the last tick was skipped.
func (c *Controller) Status() (Status, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := c.status
	st.Flying = c.flying.Load()
	return st, c.lastErr
}

// OnFixedTick evaluates one control step of duration dt seconds.
func (c *Controller) OnFixedTick(dt float64) {
	if !c.flying.Load() {
		return
	}

	if s, ok := c.physics.(Syncer); ok {
		if err := s.Sync(); err != nil {
			c.log.Warn().Err(err).Msg("skipping tick: vehicle state unavailable")
			c.setErr(err)
			return
		}
	}

	anomaly := dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0)
	if anomaly {
		c.log.Warn().Float64("dt", dt).Msg("non-positive tick duration, derivative terms dropped")
	}

	st := readState(c.physics)
	target := c.sequencer.Target()
	sol := Solve(st, target, c.sequencer.Previous())

	// Arrival is decided before control so the arrival tick starts the ease
	// ramp at zero. The rest of the tick still steers toward target.
	advanced := c.sequencer.Advance(sol.TargetDelta)
	if advanced {
		cur := c.sequencer.Cursor()
		c.log.Debug().Int("previous", cur.Previous).Int("current", cur.Current).Msg("waypoint reached")
	}
	ease := Ease(c.sequencer.Cursor().SinceArrival, dt)

	g := &c.gains
	distOut := c.bank.Evaluate(ChannelDistance, 0, sol.Distance, dt, g[ChannelDistance])
	velOut := c.bank.Evaluate(ChannelVelocity, sol.ForwardVelocity, distOut, dt, g[ChannelVelocity])
	rollTarget := c.bank.Evaluate(ChannelRollTarget, 0, sol.RollError, dt, g[ChannelRollTarget])
	pitchOut := c.bank.Evaluate(ChannelPitch, sol.Pitch, velOut, dt, g[ChannelPitch])
	yawOut := c.bank.Evaluate(ChannelYaw, 0, sol.YawError, dt, g[ChannelYaw])
	rollOut := c.bank.Evaluate(ChannelRollOutput, sol.Roll, -rollTarget, dt, g[ChannelRollOutput])
	thrustOut := c.bank.Evaluate(ChannelThrust, st.Position.Y, target.Y, dt, g[ChannelThrust])

	out := Mix(MixInput{
		Thrust:   c.hover + thrustOut,
		Pitch:    pitchOut * ease,
		Roll:     rollOut * ease,
		Yaw:      yawOut,
		YawError: sol.YawError,
		HoldYaw:  InHorizontalBox(sol.TargetDelta),
		DT:       dt,
	})

	for _, f := range out.Forces(st.Up, st.Forward) {
		if err := c.physics.ApplyForceAtPoint(f.Force, st.Mounts[f.Motor]); err != nil {
			c.log.Error().Err(err).Stringer("motor", f.Motor).Msg("apply force")
		}
	}

	if !anomaly {
		c.sequencer.Elapse(dt)
	}
	c.sequencer.Fire()
	cur := c.sequencer.Cursor()

	c.tick++
	status := Status{
		Flying:   true,
		Tick:     c.tick,
		Cursor:   cur,
		Advanced: advanced,
		Target:   target,
		Position: st.Position,
		Solution: sol,
		Ease:     ease,
		Output:   out,
		Anomaly:  anomaly,
	}
	c.mu.Lock()
	c.status = status
	c.lastErr = nil
	c.mu.Unlock()

	if c.observer != nil {
		c.observer.ObserveTick(status)
	}
}

func (c *Controller) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

func readState(p Physics) types.VehicleState {
	st := types.VehicleState{
		Position:      p.Position(),
		Orientation:   p.Orientation(),
		Forward:       p.Forward(),
		Up:            p.Up(),
		LocalVelocity: p.LocalVelocity(),
	}
	for _, m := range types.Motors {
		st.Mounts[m] = p.MotorMount(m)
	}
	return st
}
