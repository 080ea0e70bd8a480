package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/golang/geo/r3"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/eytandecker/quadpilot/internal/flight"
)

// Event kinds stored in the journal.
const (
	KindArrival  = "arrival"
	KindScenery  = "scenery"
	KindCapture  = "capture"
	KindViewMode = "view_mode"
)

// Event is one journal row.
type Event struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	Kind      string         `gorm:"size:32;index" json:"kind"`
	Waypoint  int            `json:"waypoint"`
	Tick      uint64         `json:"tick"`
	Detail    datatypes.JSON `json:"detail"`
}

func (Event) TableName() string { return "flight_events" }

type arrivalDetail struct {
	Position r3.Vector `json:"position"`
	Next     int       `json:"next"`
	Target   r3.Vector `json:"target"`
}

// OpenDB opens the journal database. driver is "sqlite" or "postgres"; an
// empty sqlite dsn selects a private in-memory database.
func OpenDB(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}
	switch driver {
	case "sqlite":
		if dsn == "" {
			dsn = "file::memory:"
		}
		db, err := gorm.Open(sqlite.Open(dsn), cfg)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	case "postgres":
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), cfg)
	default:
		return nil, fmt.Errorf("unknown journal driver %q", driver)
	}
}

// Journal persists arrivals and scene events. Writes go through a buffered
// queue drained by one goroutine; a full queue drops the event.
//
// Register a Journal as both listener and observer of the same controller:
// view mode rows are written from ObserveTick so they carry the tick's
// waypoint.
type Journal struct {
	db  *gorm.DB
	log zerolog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}

	dropped atomic.Uint64

	// Touched only from the tick goroutine.
	tick          uint64
	sceneryLogged bool
	view          *viewRequest
	mode          flight.ViewMode
	modeLogged    bool
}

type viewRequest struct {
	mode    flight.ViewMode
	refresh bool
}

// NewJournal migrates the schema and starts the writer.
func NewJournal(db *gorm.DB, queueSize int, logger zerolog.Logger) (*Journal, error) {
	if err := db.AutoMigrate(&Event{}); err != nil {
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	if queueSize < 1 {
		queueSize = 1
	}
	j := &Journal{
		db:    db,
		log:   logger.With().Str("component", "journal").Logger(),
		queue: make(chan Event, queueSize),
		done:  make(chan struct{}),
	}
	go j.run()
	return j, nil
}

func (j *Journal) run() {
	defer close(j.done)
	for ev := range j.queue {
		if err := j.db.Create(&ev).Error; err != nil {
			j.log.Error().Err(err).Str("kind", ev.Kind).Msg("write journal event")
		}
	}
}

func (j *Journal) enqueue(ev Event) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return
	}
	select {
	case j.queue <- ev:
	default:
		if j.dropped.Add(1) == 1 {
			j.log.Warn().Msg("journal queue full, dropping events")
		}
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (j *Journal) Dropped() uint64 { return j.dropped.Load() }

func (j *Journal) ObserveTick(st flight.Status) {
	j.tick = st.Tick
	if st.Cursor.Current != flight.SceneryIndex {
		j.sceneryLogged = false
	}
	if st.Advanced {
		detail, _ := json.Marshal(arrivalDetail{Position: st.Position, Next: st.Cursor.Current, Target: st.Target})
		j.enqueue(Event{Kind: KindArrival, Waypoint: st.Cursor.Previous, Tick: st.Tick, Detail: detail})
	}

	if v := j.view; v != nil {
		j.view = nil
		if !j.modeLogged || v.mode != j.mode || v.refresh {
			j.mode, j.modeLogged = v.mode, true
			detail, _ := json.Marshal(map[string]any{"mode": v.mode.String(), "refresh": v.refresh})
			j.enqueue(Event{Kind: KindViewMode, Waypoint: st.Cursor.Current, Tick: st.Tick, Detail: detail})
		}
	}
}

// OnSceneryActivate records the first activation of each visit.
func (j *Journal) OnSceneryActivate() {
	if j.sceneryLogged {
		return
	}
	j.sceneryLogged = true
	j.enqueue(Event{Kind: KindScenery, Waypoint: flight.SceneryIndex, Tick: j.tick + 1, Detail: datatypes.JSON("{}")})
}

func (j *Journal) OnCaptureAndNotify() {
	j.enqueue(Event{Kind: KindCapture, Waypoint: flight.CaptureIndex, Tick: j.tick + 1, Detail: datatypes.JSON("{}")})
}

// OnViewModeChange holds the request until ObserveTick. Only mode switches
// and refreshes are recorded.
func (j *Journal) OnViewModeChange(mode flight.ViewMode, refresh bool) {
	j.view = &viewRequest{mode: mode, refresh: refresh}
}

// Recent returns up to limit events, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Event, error) {
	var out []Event
	err := j.db.WithContext(ctx).Order("id desc").Limit(limit).Find(&out).Error
	return out, err
}

// Close stops accepting events and waits for the queue to drain.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.queue)
	j.mu.Unlock()
	<-j.done
	return nil
}
