package simlink

import (
	"sync"

	"github.com/golang/geo/r3"

	"github.com/eytandecker/quadpilot/pkg/types"
)

// StateSource returns the freshest cached vehicle state. state.Manager
// implements it.
type StateSource interface {
	GetState() (types.VehicleState, error)
}

// ForceSender delivers force commands to the engine. Client implements it.
type ForceSender interface {
	ApplyForce(force, point r3.Vector) error
}

// Body exposes a remote vehicle as a controller physics backend. Sync takes a
// snapshot of the cached state; the accessors read that snapshot so one
// control tick sees a consistent vehicle.
type Body struct {
	src    StateSource
	sender ForceSender

	mu   sync.RWMutex
	snap types.VehicleState
}

// NewBody creates a Body reading from src and writing through sender.
func NewBody(src StateSource, sender ForceSender) *Body {
	return &Body{src: src, sender: sender}
}

// Sync refreshes the snapshot. It fails when the cache is empty or stale.
func (b *Body) Sync() error {
	st, err := b.src.GetState()
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.snap = st
	b.mu.Unlock()
	return nil
}

func (b *Body) snapshot() types.VehicleState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap
}

func (b *Body) Position() r3.Vector                { return b.snapshot().Position }
func (b *Body) Orientation() r3.Vector             { return b.snapshot().Orientation }
func (b *Body) Forward() r3.Vector                 { return b.snapshot().Forward }
func (b *Body) Up() r3.Vector                      { return b.snapshot().Up }
func (b *Body) LocalVelocity() r3.Vector           { return b.snapshot().LocalVelocity }
func (b *Body) MotorMount(m types.Motor) r3.Vector { return b.snapshot().Mounts[m] }

// ApplyForceAtPoint forwards one force command to the engine.
func (b *Body) ApplyForceAtPoint(force, point r3.Vector) error {
	return b.sender.ApplyForce(force, point)
}
