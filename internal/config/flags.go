package config

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/levenlabs/go-lflag"

	"raywatch/internal/log"
)

// Overrides are command line values that replace file settings when set
type Overrides struct {
	ScanRange    string
	Interval     time.Duration
	ErrorPolicy  string
	HTTPAddr     string
	DatabasePath string
	MQTTBroker   string
	EmitAppeared bool
	WatchConfig  bool
}

// Apply writes the non-zero overrides into cfg
func (o Overrides) Apply(cfg *Config) {
	if o.ScanRange != "" {
		cfg.Scan.Range = o.ScanRange
	}
	if o.Interval > 0 {
		cfg.Monitor.Interval = Duration(o.Interval)
	}
	if o.ErrorPolicy != "" {
		cfg.Monitor.ErrorPolicy = o.ErrorPolicy
	}
	if o.HTTPAddr != "" {
		cfg.HTTP.Addr = o.HTTPAddr
	}
	if o.DatabasePath != "" {
		cfg.Database.Path = o.DatabasePath
	}
	if o.MQTTBroker != "" {
		cfg.MQTT.Broker = o.MQTTBroker
	}
	if o.EmitAppeared {
		cfg.Monitor.EmitAppeared = true
	}
	if o.WatchConfig {
		cfg.WatchConfig = true
	}
}

// Runtime is the resolved configuration for a process
type Runtime struct {
	*Config

	// Path is the file the config was loaded from, empty for defaults
	Path string
	// Monitor selects continuous mode over a single run
	Monitor bool
}

// Configured registers the command line flags and returns a Runtime that is
// populated once lflag.Configure has run.
func Configured() *Runtime {
	rt := &Runtime{}

	path := lflag.String("config", "", "Path to the config file (default: search "+EnvConfigPath+", ./"+ConfigFileName+", XDG and /etc)")
	monitor := lflag.Bool("monitor", false, "Run continuously and stream events instead of a single summary")
	scanRange := lflag.String("scan-range", "", "CIDR range or address to ARP scan (overrides scan.range)")
	interval := lflag.Duration("interval", 0, "Delay between monitor cycles (overrides monitor.interval)")
	errorPolicy := lflag.String("error-policy", "", "What to do when a monitor cycle fails: continue or exit")
	httpListen := lflag.String("http-listen", "", "HTTP listen address for /events, /metrics and /api (disabled when empty)")
	dbPath := lflag.String("db-path", "", "SQLite path for the charger journal (disabled when empty)")
	mqttBroker := lflag.String("mqtt-broker", "", "MQTT broker URL to publish events to (disabled when empty)")
	emitAppeared := lflag.Bool("emit-appeared", false, "Emit appeared events for newly discovered chargers")
	watchConfig := lflag.Bool("watch-config", false, "Reload fallback_devices when the config file changes")

	lflag.Do(func() {
		ctx := context.Background()

		var (
			cfg *Config
			err error
		)
		if *path != "" {
			cfg, rt.Path, err = LoadFromPath(*path)
		} else {
			cfg, rt.Path, err = Load()
		}
		if err != nil {
			log.Ctx(ctx).Error("failed to load config", slog.String("path", rt.Path), slog.Any("error", err))
			os.Exit(1)
		}

		Overrides{
			ScanRange:    *scanRange,
			Interval:     *interval,
			ErrorPolicy:  *errorPolicy,
			HTTPAddr:     *httpListen,
			DatabasePath: *dbPath,
			MQTTBroker:   *mqttBroker,
			EmitAppeared: *emitAppeared,
			WatchConfig:  *watchConfig,
		}.Apply(cfg)

		if err := cfg.Validate(); err != nil {
			log.Ctx(ctx).Error("invalid config", slog.String("path", rt.Path), slog.Any("error", err))
			os.Exit(1)
		}

		rt.Config = cfg
		rt.Monitor = *monitor
	})

	return rt
}
