package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meshwatch/meshwatch/internal/alerts"
	"github.com/meshwatch/meshwatch/internal/api"
	"github.com/meshwatch/meshwatch/internal/certs"
	"github.com/meshwatch/meshwatch/internal/collector"
	"github.com/meshwatch/meshwatch/internal/config"
	"github.com/meshwatch/meshwatch/internal/history"
	"github.com/meshwatch/meshwatch/internal/obs"
	"github.com/meshwatch/meshwatch/internal/promql"
	"github.com/meshwatch/meshwatch/internal/topology"
	"github.com/meshwatch/meshwatch/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("meshwatch starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"prometheus_url", cfg.Server.PrometheusURL,
		"collect_interval", cfg.Server.CollectInterval,
		"auth_mode", cfg.Server.Auth.Mode,
		"alert_rules", len(cfg.Server.Alerts.Rules),
		"cert_endpoints", len(cfg.Server.Certs.Endpoints),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Push registry and its transport endpoint.
	registry := ws.NewRegistry()
	wsHandler := ws.NewHandler(registry)

	// Prometheus query client — the metrics source and the topology backend.
	prom := promql.New(cfg.Server.PrometheusURL)

	// Alert engine and history buffer, wired into the collection path as
	// source decorators.
	alertEngine := alerts.New(cfg.Server.Alerts, registry)
	histBuf := history.New(time.Hour, 512)
	go histBuf.Run(ctx)
	source := history.NewSource(alerts.NewSource(prom, alertEngine), histBuf)

	// Collector — one background loop, started before serving and stopped
	// synchronously on shutdown.
	coll := collector.New(source, registry, cfg.Server.CollectInterval)
	coll.Start()

	// Certificate monitor and topology watcher.
	certMonitor := certs.NewMonitor(cfg.Server.Certs, registry)
	go certMonitor.Run(ctx)

	topoService := topology.NewService(prom)
	topoWatcher := topology.NewWatcher(topoService, registry, cfg.Server.Topology.RefreshInterval)
	go topoWatcher.Run(ctx)

	// Watch config file for hot-reload (logs only in this phase).
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			slog.Info("config hot-reloaded", "alert_rules", len(updated.Server.Alerts.Rules))
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	// HTTP server: REST API (instrumented, optionally key-protected), the
	// WebSocket endpoint, probes, and the metrics exposition.
	apiHandler := api.New(prom, topoService, certMonitor, alertEngine, registry, coll, histBuf)
	protected := api.APIKey(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
		apiHandler,
	)

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", obs.Instrument(protected))
	httpMux.Handle("/health", apiHandler)
	httpMux.Handle("/ready", apiHandler)
	httpMux.Handle("/metrics", obs.Handler())
	// The WebSocket endpoint hijacks the connection — mounted uninstrumented.
	httpMux.Handle("/ws", wsHandler)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: httpMux,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("meshwatch shutting down")
	coll.Stop()
	httpSrv.Shutdown(context.Background()) //nolint:errcheck
	registry.CloseAll()
}
