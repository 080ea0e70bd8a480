package flight

import "github.com/golang/geo/r3"

// Waypoint indices that trigger scene events.
const (
	SceneryIndex = 7
	CaptureIndex = 3
)

// ViewMode is the camera mode requested from the view collaborator.
type ViewMode int

const (
	ViewOverview ViewMode = iota
	ViewCloseUp
)

func (v ViewMode) String() string {
	if v == ViewCloseUp {
		return "close_up"
	}
	return "overview"
}

// Listener receives scene events. Calls are made synchronously from the tick
// and must not block; implementations that do I/O should queue the work.
//
// OnViewModeChange is a request, not an edge: it is called on every flying
// tick with the mode for the current waypoint. refresh is set on the first
// close-up tick after an arrival, when the view should drop its other cameras.
type Listener interface {
	OnSceneryActivate()
	OnCaptureAndNotify()
	OnViewModeChange(mode ViewMode, refresh bool)
}

// NopListener ignores every event.
type NopListener struct{}

func (NopListener) OnSceneryActivate()              {}
func (NopListener) OnCaptureAndNotify()             {}
func (NopListener) OnViewModeChange(ViewMode, bool) {}

// Cursor tracks progress along the path.
type Cursor struct {
	Previous     int
	Current      int
	SinceArrival float64
}

// Sequencer advances the cursor and raises scene events.
type Sequencer struct {
	path     Path
	cursor   Cursor
	listener Listener

	captureArmed bool
	refreshArmed bool
}

// NewSequencer starts at waypoint 0 with the capture latch disarmed.
func NewSequencer(path Path, l Listener) *Sequencer {
	if l == nil {
		l = NopListener{}
	}
	return &Sequencer{path: path, listener: l, refreshArmed: true}
}

// Cursor returns the current navigation cursor.
func (s *Sequencer) Cursor() Cursor { return s.cursor }

// Target returns the waypoint being sought.
func (s *Sequencer) Target() r3.Vector { return s.path.At(s.cursor.Current) }

// Previous returns the waypoint last departed from.
func (s *Sequencer) Previous() r3.Vector { return s.path.At(s.cursor.Previous) }

// Seek forces the cursor onto waypoint i without touching the latches.
func (s *Sequencer) Seek(i int) {
	n := s.path.Len()
	s.cursor.Previous = s.cursor.Current
	s.cursor.Current = ((i % n) + n) % n
	s.cursor.SinceArrival = 0
}

// ModeFor returns the view mode requested while seeking waypoint idx.
func ModeFor(idx int) ViewMode {
	if idx >= 2 && idx <= 4 {
		return ViewCloseUp
	}
	return ViewOverview
}

// Advance moves to the next waypoint when delta (target minus position) is
// inside the arrival box, resetting SinceArrival and re-arming the view
// refresh. It reports whether the cursor advanced.
//
// There is no arrival latch: a vehicle parked inside a box advances on every
// tick.
func (s *Sequencer) Advance(delta r3.Vector) bool {
	if !InArrivalBox(delta) {
		return false
	}
	s.cursor.Previous = s.cursor.Current
	s.cursor.Current = (s.cursor.Current + 1) % s.path.Len()
	s.cursor.SinceArrival = 0
	s.refreshArmed = true
	return true
}

// Elapse adds dt to the time since the last arrival.
func (s *Sequencer) Elapse(dt float64) { s.cursor.SinceArrival += dt }

// Fire raises the events driven by the current index.
func (s *Sequencer) Fire() {
	idx := s.cursor.Current

	if idx == SceneryIndex {
		s.listener.OnSceneryActivate()
		s.captureArmed = true
	}
	if idx == CaptureIndex && s.captureArmed {
		s.listener.OnCaptureAndNotify()
		s.captureArmed = false
	}

	mode := ModeFor(idx)
	refresh := mode == ViewCloseUp && s.refreshArmed
	if refresh {
		s.refreshArmed = false
	}
	s.listener.OnViewModeChange(mode, refresh)
}

// Step runs a whole tick of sequencing in controller order: arrival check,
// elapsed time, then events.
func (s *Sequencer) Step(dt float64, delta r3.Vector) bool {
	advanced := s.Advance(delta)
	s.Elapse(dt)
	s.Fire()
	return advanced
}
