package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"raywatch/internal/config"
	"raywatch/internal/discovery"
	"raywatch/internal/handler"
	"raywatch/internal/hub"
	"raywatch/internal/log"
	"raywatch/internal/metrics"
	"raywatch/internal/mqtt"
	"raywatch/internal/repository/sqlite"
	"raywatch/internal/service"
	"raywatch/internal/session"
	"raywatch/internal/watcher"
)

const shutdownTimeout = 10 * time.Second

// app holds the components shared by both run modes
type app struct {
	metrics *metrics.Collectors
	orch    *service.Orchestrator

	hub     *hub.Hub
	journal *sqlite.Repository
}

func newApp(cfg *config.Config) *app {
	collectors := metrics.New()

	scanner := discovery.NewScanner(
		discovery.WithTimeout(cfg.Scan.Timeout.Duration()),
		discovery.WithGrace(cfg.Scan.Grace.Duration()),
		discovery.WithResolveTimeout(cfg.Scan.ResolveTimeout.Duration()),
		discovery.WithMatcher(discovery.Matcher{
			MACPrefix:      cfg.Scan.MACPrefix,
			HostnamePrefix: cfg.Scan.HostnamePrefix,
		}),
		discovery.WithBinaryPath(cfg.Scan.NmapPath),
		discovery.WithObserver(collectors),
	)

	client := session.NewClient(session.Config{
		Username:           cfg.API.Username,
		Password:           cfg.API.Password,
		LoginPath:          cfg.API.LoginPath,
		GetPath:            cfg.API.GetPath,
		Timeout:            cfg.API.Timeout.Duration(),
		InsecureSkipVerify: !cfg.API.VerifyTLS,
		UserAgent:          session.DefaultUserAgent + "/" + version,
	})

	orch := service.NewOrchestrator(scanner, client, service.OrchestratorConfig{
		Target:        cfg.Scan.Range,
		Fallback:      cfg.FallbackDevices,
		MaxConcurrent: cfg.API.MaxConcurrent,
		EmitAppeared:  cfg.Monitor.EmitAppeared,
	})
	orch.SetRecorder(collectors)

	return &app{
		metrics: collectors,
		orch:    orch,
	}
}

// attachSinks subscribes the optional sinks the config enables. The returned
// function releases them and is safe to call even when an error is returned.
func (a *app) attachSinks(ctx context.Context, cfg *config.Config, bus *service.EventBus) (func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.HTTP.Addr != "" {
		a.hub = hub.New()
		go a.hub.Run(ctx)
		bus.Subscribe("sse", a.hub)
	}

	if cfg.Database.Path != "" {
		repo, err := sqlite.New(cfg.Database.Path)
		if err != nil {
			return closeAll, fmt.Errorf("open journal: %w", err)
		}
		a.journal = repo
		closers = append(closers, func() {
			if err := repo.Close(); err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "failed to close journal", slog.Any("error", err))
			}
		})
		bus.Subscribe("journal", repo)
	}

	if cfg.MQTT.Broker != "" {
		sink, err := mqtt.Connect(mqtt.Config{
			Broker:      cfg.MQTT.Broker,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         byte(cfg.MQTT.QoS),
		})
		if err != nil {
			return closeAll, fmt.Errorf("connect mqtt: %w", err)
		}
		closers = append(closers, sink.Close)
		bus.Subscribe("mqtt", sink)
	}

	return closeAll, nil
}

// routes builds the HTTP surface
func (a *app) routes(monitor *service.Monitor) (http.Handler, error) {
	registry, err := metrics.NewRegistry(a.metrics)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler(registry))
	mux.HandleFunc("GET /health", handler.NewHealthHandler(monitor).Health)

	if a.hub != nil {
		mux.Handle("GET /events", a.hub)
	}

	if a.journal != nil {
		chargers := handler.NewChargerHandler(a.journal)
		mux.HandleFunc("GET /api/chargers", chargers.ListChargers)
		mux.HandleFunc("GET /api/events", chargers.RecentEvents)
	}

	return handler.Chain(mux,
		handler.Recover,
		handler.Logger,
	), nil
}

// serveHTTP starts the HTTP surface and returns a function that shuts it
// down. Listen errors are returned before anything is served.
func (a *app) serveHTTP(ctx context.Context, addr string, monitor *service.Monitor) (func(), error) {
	h, err := a.routes(monitor)
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	// no WriteTimeout: /events is a long-lived stream
	server := &http.Server{
		Handler:     h,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Ctx(ctx).InfoContext(ctx, "http listening", slog.String("addr", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Ctx(ctx).ErrorContext(ctx, "http server failed", slog.Any("error", err))
		}
	}()

	return func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(sctx); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "http shutdown failed", slog.Any("error", err))
		}
	}, nil
}

// watchConfig replaces the fallback list whenever the config file changes.
// A file that fails to load or validate leaves the current list in place.
func (a *app) watchConfig(ctx context.Context, path string) {
	w := watcher.New(path, func(ctx context.Context) {
		a.reloadFallback(ctx, path)
	})
	if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Ctx(ctx).ErrorContext(ctx, "config watcher stopped", slog.Any("error", err))
	}
}

func (a *app) reloadFallback(ctx context.Context, path string) {
	cfg, _, err := config.LoadFromPath(path)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "ignoring config change", slog.Any("error", err))
		return
	}

	a.orch.SetFallback(cfg.FallbackDevices)
	log.Ctx(ctx).InfoContext(ctx, "fallback devices reloaded", slog.Int("count", len(cfg.FallbackDevices)))
}
