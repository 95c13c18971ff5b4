// Command raywatch discovers chargers on the local network, polls their
// status and reports it as JSON on stdout.
//
// Without --monitor it runs one cycle and prints a single summary document.
// With --monitor it runs forever and writes one event per line.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"

	"raywatch/internal/config"
	"raywatch/internal/log"
	"raywatch/internal/output"
	"raywatch/internal/service"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	rt := config.Configured()

	lflag.Configure()

	var level slog.Level
	// lflag sets llog's level, slog needs it too
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}
	log.SetDefaultLogLevel(level)
	slog.SetDefault(log.Default())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ctx = log.WithAttrs(ctx, slog.String("version", version))
	log.Ctx(ctx).DebugContext(ctx, "configured",
		slog.String("level", level.String()),
		slog.String("config", rt.Path),
		slog.Bool("monitor", rt.Monitor),
	)

	var err error
	if rt.Monitor {
		err = runMonitor(ctx, rt)
	} else {
		err = runOnce(ctx, rt)
	}
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "raywatch failed", slog.Any("error", err))
		cancel()
		os.Exit(1)
	}
}

// runOnce performs a single cycle and prints the summary document
func runOnce(ctx context.Context, rt *config.Runtime) error {
	a := newApp(rt.Config)

	res := a.orch.RunCycle(ctx, nil)
	return output.WriteSummary(os.Stdout, res)
}

// runMonitor streams events until ctx is cancelled
func runMonitor(ctx context.Context, rt *config.Runtime) error {
	cfg := rt.Config
	a := newApp(cfg)

	policy, err := service.ParseErrorPolicy(cfg.Monitor.ErrorPolicy)
	if err != nil {
		return err
	}

	bus := service.NewEventBus()
	bus.SubscribeRequired("stdout", output.NewJSONLines(os.Stdout))
	bus.Subscribe("metrics", a.metrics)

	closeSinks, err := a.attachSinks(ctx, cfg, bus)
	defer closeSinks()
	if err != nil {
		return err
	}

	monitor := service.NewMonitor(a.orch, bus, cfg.Monitor.Interval.Duration(), policy)

	if cfg.HTTP.Addr != "" {
		stop, err := a.serveHTTP(ctx, cfg.HTTP.Addr, monitor)
		if err != nil {
			return err
		}
		defer stop()
	}

	if cfg.WatchConfig {
		if rt.Path == "" {
			log.Ctx(ctx).WarnContext(ctx, "watch_config set but no config file was loaded")
		} else {
			go a.watchConfig(ctx, rt.Path)
		}
	}

	log.Ctx(ctx).InfoContext(ctx, "monitoring", slog.String("range", cfg.Scan.Range))

	if err := monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
