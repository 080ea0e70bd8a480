// Package logging builds the process logger. Console output goes to stderr
// so stdout stays free for the MCP transport.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
)

// Config selects the log level and sinks.
type Config struct {
	Level string
	// Dir, when set, receives a plain-text log file per session.
	Dir            string
	GraylogAddress string
}

// ParseLevel maps a config string to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// LogFilePath builds a per-session log file path.
func LogFilePath(dir, name string, sessionStart time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s.%s.log", name, sessionStart.Format("20060102_150405")))
}

// Sinks owns the writers opened by New.
type Sinks struct {
	closers []io.Closer
}

// Close flushes and closes every sink.
func (s *Sinks) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// New builds a logger writing console format to console, plus the optional
// file and Graylog sinks.
func New(cfg Config, console io.Writer, name string) (zerolog.Logger, *Sinks, error) {
	if console == nil {
		console = os.Stderr
	}
	sinks := &Sinks{}
	writers := []io.Writer{zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(LogFilePath(cfg.Dir, name, time.Now().UTC()), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
		}
		sinks.closers = append(sinks.closers, f)
		writers = append(writers, zerolog.ConsoleWriter{Out: f, TimeFormat: time.RFC3339, NoColor: true})
	}

	if cfg.GraylogAddress != "" {
		gw, err := gelf.NewWriter(cfg.GraylogAddress)
		if err != nil {
			_ = sinks.Close()
			return zerolog.Nop(), nil, fmt.Errorf("graylog writer: %w", err)
		}
		sinks.closers = append(sinks.closers, gw)
		writers = append(writers, gw)
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(cfg.Level)).
		With().Timestamp().Str("app", name).Logger()
	return logger, sinks, nil
}
