package state

import (
	"sync"
	"time"

	"github.com/eytandecker/quadpilot/pkg/types"
)

// Manager holds a concurrent-safe cache of the latest vehicle state reported
// by a remote physics engine.
type Manager struct {
	mu             sync.RWMutex
	state          types.VehicleState
	updates        uint64
	lastUpdated    time.Time
	staleThreshold time.Duration
	now            func() time.Time
}

// NewManager creates a Manager with the given stale threshold.
// A zero threshold disables staleness checking.
func NewManager(staleThreshold time.Duration) *Manager {
	return &Manager{staleThreshold: staleThreshold, now: time.Now}
}

// Update stores a new state and records the current time.
func (m *Manager) Update(st types.VehicleState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = st
	m.updates++
	m.lastUpdated = m.now()
}

// GetState returns the cached state, or ErrStale if no data has been
// received yet or the data age exceeds the stale threshold.
func (m *Manager) GetState() (types.VehicleState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.lastUpdated.IsZero() {
		return types.VehicleState{}, ErrStale
	}
	if m.staleThreshold > 0 && m.now().Sub(m.lastUpdated) > m.staleThreshold {
		return types.VehicleState{}, ErrStale
	}
	return m.state, nil
}

// LastUpdated returns the time of the most recent Update, or zero if never updated.
func (m *Manager) LastUpdated() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastUpdated
}

// Updates returns how many states have been received.
func (m *Manager) Updates() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.updates
}
