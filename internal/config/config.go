// Package config loads quadpilot settings from defaults, an optional config
// file and the environment. Environment keys are the config keys upper-cased
// with dots replaced by underscores, e.g. SIMLINK_HOST or LOOP_TICK_INTERVAL.
// Malformed numbers, booleans and durations fall back to their defaults.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang/geo/r3"
	"github.com/spf13/viper"

	"github.com/eytandecker/quadpilot/internal/flight"
)

// Config holds all application configuration.
type Config struct {
	Simlink SimlinkConfig
	Polling PollingConfig
	Physics PhysicsConfig
	Loop    LoopConfig
	Path    []r3.Vector
	Gains   flight.ChannelGains
	Log     LogConfig
	Graylog GraylogConfig
	Influx  InfluxConfig
	Journal JournalConfig
	Geo     GeoConfig
	MCP     MCPConfig
}

// SimlinkConfig holds the remote physics TCP connection settings.
type SimlinkConfig struct {
	Host    string
	Port    int
	Timeout time.Duration
	AppName string
}

// PollingConfig holds remote state polling settings.
type PollingConfig struct {
	Interval       time.Duration
	StaleThreshold time.Duration
}

// PhysicsConfig selects the physics backend. Mode is "local" or "simlink".
type PhysicsConfig struct {
	Mode      string
	Mass      float64
	Gravity   float64
	ArmLength float64
	Inertia   float64
}

// LoopConfig drives the fixed-step control loop.
type LoopConfig struct {
	TickInterval time.Duration
	AutoFly      bool
	HoverThrust  float64
}

type LogConfig struct {
	Level string
	Dir   string
}

type GraylogConfig struct {
	Enabled bool
	Address string
}

type InfluxConfig struct {
	Enabled    bool
	URL        string
	Token      string
	Org        string
	Bucket     string
	BackupPath string
}

// JournalConfig selects the event journal database. Driver is "sqlite" or
// "postgres".
type JournalConfig struct {
	Enabled   bool
	Driver    string
	DSN       string
	QueueSize int
}

type GeoConfig struct {
	Latitude  float64
	Longitude float64
	Altitude  float64
}

type MCPConfig struct {
	Enabled bool
	Name    string
	Version string
}

var defaults = map[string]any{
	"simlink.host":    "127.0.0.1",
	"simlink.port":    7400,
	"simlink.timeout": "10s",
	"simlink.appname": "quadpilot",

	"polling.interval":        "20ms",
	"polling.stale_threshold": "2s",

	"physics.mode":       "local",
	"physics.mass":       1.0,
	"physics.gravity":    9.81,
	"physics.arm_length": 1.0,
	"physics.inertia":    0.5,

	"loop.tick_interval": "20ms",
	"loop.autofly":       false,
	"loop.hover_thrust":  float64(flight.HoverThrust),

	"path.waypoints": "",

	"log.level": "info",
	"log.dir":   "",

	"graylog.enabled": false,
	"graylog.address": "localhost:12201",

	"influx.enabled":     false,
	"influx.url":         "http://localhost:8086",
	"influx.token":       "",
	"influx.org":         "quadpilot",
	"influx.bucket":      "flight",
	"influx.backup_path": "quadpilot-influx-backup.lp.gz",

	"journal.enabled":    false,
	"journal.driver":     "sqlite",
	"journal.dsn":        "quadpilot.db",
	"journal.queue_size": 256,

	"geo.latitude":  0.0,
	"geo.longitude": 0.0,
	"geo.altitude":  0.0,

	"mcp.enabled": true,
	"mcp.name":    "quadpilot",
	"mcp.version": "0.1.0",
}

func init() {
	for _, ch := range flight.Channels {
		g := flight.DefaultGains()[ch]
		defaults[gainKey(ch, "kp")] = g.Kp
		defaults[gainKey(ch, "ki")] = g.Ki
		defaults[gainKey(ch, "kd")] = g.Kd
	}
}

func gainKey(ch flight.Channel, term string) string {
	return "gains." + ch.String() + "." + term
}

// Load reads configuration. file may be empty; otherwise its extension
// selects the format (json, yaml, toml).
func Load(file string) (Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	r := reader{v: v}
	cfg := Config{
		Simlink: SimlinkConfig{
			Host:    r.str("simlink.host"),
			Port:    r.integer("simlink.port"),
			Timeout: r.duration("simlink.timeout"),
			AppName: r.str("simlink.appname"),
		},
		Polling: PollingConfig{
			Interval:       r.duration("polling.interval"),
			StaleThreshold: r.duration("polling.stale_threshold"),
		},
		Physics: PhysicsConfig{
			Mode:      strings.ToLower(r.str("physics.mode")),
			Mass:      r.float("physics.mass"),
			Gravity:   r.float("physics.gravity"),
			ArmLength: r.float("physics.arm_length"),
			Inertia:   r.float("physics.inertia"),
		},
		Loop: LoopConfig{
			TickInterval: r.duration("loop.tick_interval"),
			AutoFly:      r.boolean("loop.autofly"),
			HoverThrust:  r.float("loop.hover_thrust"),
		},
		Log: LogConfig{
			Level: r.str("log.level"),
			Dir:   r.str("log.dir"),
		},
		Graylog: GraylogConfig{
			Enabled: r.boolean("graylog.enabled"),
			Address: r.str("graylog.address"),
		},
		Influx: InfluxConfig{
			Enabled:    r.boolean("influx.enabled"),
			URL:        r.str("influx.url"),
			Token:      r.str("influx.token"),
			Org:        r.str("influx.org"),
			Bucket:     r.str("influx.bucket"),
			BackupPath: r.str("influx.backup_path"),
		},
		Journal: JournalConfig{
			Enabled:   r.boolean("journal.enabled"),
			Driver:    strings.ToLower(r.str("journal.driver")),
			DSN:       r.str("journal.dsn"),
			QueueSize: r.integer("journal.queue_size"),
		},
		Geo: GeoConfig{
			Latitude:  r.float("geo.latitude"),
			Longitude: r.float("geo.longitude"),
			Altitude:  r.float("geo.altitude"),
		},
		MCP: MCPConfig{
			Enabled: r.boolean("mcp.enabled"),
			Name:    r.str("mcp.name"),
			Version: r.str("mcp.version"),
		},
	}

	for _, ch := range flight.Channels {
		cfg.Gains[ch] = flight.Gains{
			Kp: r.float(gainKey(ch, "kp")),
			Ki: r.float(gainKey(ch, "ki")),
			Kd: r.float(gainKey(ch, "kd")),
		}
	}

	path, err := parseWaypoints(v.Get("path.waypoints"))
	if err != nil {
		return Config{}, fmt.Errorf("path.waypoints: %w", err)
	}
	if len(path) == 0 {
		path = flight.DefaultRoute()
	}
	cfg.Path = path

	switch cfg.Physics.Mode {
	case "local", "simlink":
	default:
		return Config{}, fmt.Errorf("physics.mode: unknown backend %q", cfg.Physics.Mode)
	}
	switch cfg.Journal.Driver {
	case "sqlite", "postgres":
	default:
		return Config{}, fmt.Errorf("journal.driver: unknown driver %q", cfg.Journal.Driver)
	}

	return cfg, nil
}

// reader converts raw values, falling back to the default on parse errors.
type reader struct {
	v *viper.Viper
}

func (r reader) str(key string) string {
	return strings.TrimSpace(r.v.GetString(key))
}

func (r reader) integer(key string) int {
	n, err := strconv.Atoi(r.str(key))
	if err != nil {
		return defaults[key].(int)
	}
	return n
}

func (r reader) float(key string) float64 {
	f, err := strconv.ParseFloat(r.str(key), 64)
	if err != nil {
		return defaults[key].(float64)
	}
	return f
}

func (r reader) boolean(key string) bool {
	b, err := strconv.ParseBool(r.str(key))
	if err != nil {
		return defaults[key].(bool)
	}
	return b
}

func (r reader) duration(key string) time.Duration {
	d, err := time.ParseDuration(r.str(key))
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(defaults[key].(string))
	}
	return d
}

// parseWaypoints accepts "x,y,z;x,y,z" strings or lists of [x, y, z]
// triples or {x, y, z} maps.
func parseWaypoints(raw any) ([]r3.Vector, error) {
	switch val := raw.(type) {
	case nil:
		return nil, nil
	case string:
		val = strings.TrimSpace(val)
		if val == "" {
			return nil, nil
		}
		var out []r3.Vector
		for i, part := range strings.Split(val, ";") {
			fields := strings.Split(part, ",")
			if len(fields) != 3 {
				return nil, fmt.Errorf("waypoint %d: want x,y,z, got %q", i, part)
			}
			var xyz [3]float64
			for j, f := range fields {
				n, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
				if err != nil {
					return nil, fmt.Errorf("waypoint %d: %w", i, err)
				}
				xyz[j] = n
			}
			out = append(out, r3.Vector{X: xyz[0], Y: xyz[1], Z: xyz[2]})
		}
		return out, nil
	case []any:
		out := make([]r3.Vector, 0, len(val))
		for i, item := range val {
			p, err := waypoint(item)
			if err != nil {
				return nil, fmt.Errorf("waypoint %d: %w", i, err)
			}
			out = append(out, p)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", raw)
	}
}

func waypoint(item any) (r3.Vector, error) {
	switch p := item.(type) {
	case []any:
		if len(p) != 3 {
			return r3.Vector{}, fmt.Errorf("want 3 coordinates, got %d", len(p))
		}
		var xyz [3]float64
		for i, c := range p {
			n, err := number(c)
			if err != nil {
				return r3.Vector{}, err
			}
			xyz[i] = n
		}
		return r3.Vector{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
	case map[string]any:
		var xyz [3]float64
		for i, k := range []string{"x", "y", "z"} {
			n, err := number(p[k])
			if err != nil {
				return r3.Vector{}, fmt.Errorf("%s: %w", k, err)
			}
			xyz[i] = n
		}
		return r3.Vector{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
	default:
		return r3.Vector{}, fmt.Errorf("unsupported waypoint %T", item)
	}
}

func number(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}
