package telemetry

import (
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"

	"github.com/eytandecker/quadpilot/internal/flight"
	"github.com/eytandecker/quadpilot/pkg/types"
)

// InfluxOptions configures the InfluxDB sink.
type InfluxOptions struct {
	URL    string
	Token  string
	Org    string
	Bucket string
	// BackupPath receives gzip line protocol while the server is unreachable.
	BackupPath string
	// SampleEvery writes one flight point per N ticks. Arrivals are always written.
	SampleEvery int
}

// Influx writes flight points and scene events to InfluxDB through the
// non-blocking write API, or to a gzip backup file when the server did not
// answer at startup.
type Influx struct {
	client influxdb2.Client
	writer influxdb2_api.WriteAPI
	log    zerolog.Logger
	opts   InfluxOptions
	now    func() time.Time

	mu         sync.Mutex
	backup     *gzip.Writer
	backupFile *os.File

	// Touched only from the tick goroutine.
	ticks    uint64
	mode     flight.ViewMode
	modeSent bool
}

// NewInflux connects to InfluxDB. A failed ping switches to the backup file.
func NewInflux(ctx context.Context, opts InfluxOptions, logger zerolog.Logger) (*Influx, error) {
	if opts.SampleEvery < 1 {
		opts.SampleEvery = 1
	}
	in := &Influx{
		opts: opts,
		log:  logger.With().Str("component", "influx").Logger(),
		now:  time.Now,
	}

	in.client = influxdb2.NewClientWithOptions(opts.URL, opts.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000))

	running, err := in.client.Ping(ctx)
	if err != nil || !running {
		in.log.Warn().Err(err).Str("backupPath", opts.BackupPath).Msg("InfluxDB unreachable, writing to backup file")
		file, ferr := os.OpenFile(opts.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if ferr != nil {
			in.client.Close()
			return nil, fmt.Errorf("create influx backup file: %w", ferr)
		}
		in.backupFile = file
		in.backup = gzip.NewWriter(file)
		return in, nil
	}

	in.writer = in.client.WriteAPI(opts.Org, opts.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			in.log.Error().Err(writeErr).Str("bucket", opts.Bucket).Msg("Error sending data to InfluxDB")
		}
	}(in.writer.Errors())
	in.log.Info().Str("url", opts.URL).Str("bucket", opts.Bucket).Msg("InfluxDB client initialized")
	return in, nil
}

// UsingBackup reports whether points go to the backup file.
func (in *Influx) UsingBackup() bool { return in.writer == nil }

func (in *Influx) writePoint(p *influxdb2_write.Point) {
	if in.writer != nil {
		in.writer.WritePoint(p)
		return
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.backup == nil {
		return
	}
	line := influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
	if _, err := in.backup.Write([]byte(line + "\n")); err != nil {
		in.log.Error().Err(err).Msg("write influx backup")
	}
}

func (in *Influx) ObserveTick(st flight.Status) {
	in.ticks++
	if !st.Advanced && (in.ticks-1)%uint64(in.opts.SampleEvery) != 0 {
		return
	}

	fields := map[string]any{
		"x":             st.Position.X,
		"y":             st.Position.Y,
		"z":             st.Position.Z,
		"distance":      st.Solution.Distance,
		"yaw_error":     st.Solution.YawError,
		"roll_error":    st.Solution.RollError,
		"ease":          st.Ease,
		"pitch_out":     st.Output.Pitch,
		"roll_out":      st.Output.Roll,
		"yaw_out":       st.Output.Yaw,
		"thrust":        st.Output.Thrust,
		"since_arrival": st.Cursor.SinceArrival,
		"advanced":      st.Advanced,
		"anomaly":       st.Anomaly,
		"tick":          int64(st.Tick), //nolint:gosec // tick counts stay far below MaxInt64
	}
	for _, m := range types.Motors {
		fields["motor_"+m.String()] = st.Output.Motors[m]
	}
	in.writePoint(influxdb2.NewPoint("flight",
		map[string]string{"waypoint": strconv.Itoa(st.Cursor.Current)},
		fields, in.now()))
}

func (in *Influx) event(name string) {
	in.writePoint(influxdb2.NewPoint("scene_event",
		map[string]string{"event": name},
		map[string]any{"count": 1}, in.now()))
}

func (in *Influx) OnSceneryActivate()  { in.event("scenery") }
func (in *Influx) OnCaptureAndNotify() { in.event("capture") }

// OnViewModeChange writes a point when the requested mode changes or the
// view is refreshed, not on every tick.
func (in *Influx) OnViewModeChange(mode flight.ViewMode, refresh bool) {
	if in.modeSent && mode == in.mode && !refresh {
		return
	}
	in.mode, in.modeSent = mode, true
	in.writePoint(influxdb2.NewPoint("scene_event",
		map[string]string{"event": "view_" + mode.String()},
		map[string]any{"count": 1, "refresh": refresh}, in.now()))
}

// Close flushes pending writes and releases the client and backup file.
func (in *Influx) Close() error {
	if in.writer != nil {
		in.writer.Flush()
	}
	in.client.Close()

	in.mu.Lock()
	defer in.mu.Unlock()
	if in.backup == nil {
		return nil
	}
	err := in.backup.Close()
	if cerr := in.backupFile.Close(); err == nil {
		err = cerr
	}
	in.backup = nil
	return err
}
