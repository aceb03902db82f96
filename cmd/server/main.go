package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gyaneshwarpardhi/rbdcalc/internal/api"
	"github.com/gyaneshwarpardhi/rbdcalc/internal/config"
	"github.com/gyaneshwarpardhi/rbdcalc/internal/engine"
	"github.com/gyaneshwarpardhi/rbdcalc/internal/store"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	cfgPath := flag.String("config", "configs/service.yaml", "Path to service YAML config")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}

	// ── Node store ───────────────────────────────────────────────────────────
	st, err := store.OpenBadger(store.BadgerConfig{
		Path:       cfg.Store.Path,
		InMemory:   cfg.Store.InMemory,
		SyncWrites: cfg.Store.SyncWrites,
		Logger:     logger.With("component", "badger"),
	})
	if err != nil {
		slog.Error("failed to open store", "err", err)
		os.Exit(1)
	}
	defer st.Close()

	if cfg.Store.Fixture != "" {
		n, err := store.LoadFixture(context.Background(), st, cfg.Store.Fixture)
		if err != nil {
			slog.Error("failed to load fixture", "err", err)
			os.Exit(1)
		}
		slog.Info("fixture loaded", "path", cfg.Store.Fixture, "nodes", n)
	}

	// ── Engine ────────────────────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng := engine.New(ctx, st, cfg.Engine, engine.SettingsFrom(cfg.Reliability))
	slog.Info("engine started",
		"workers", cfg.Engine.Workers,
		"queue_depth", cfg.Engine.QueueDepth,
		"refinements", cfg.Reliability.Refinements)

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.ServiceConfig) {
		eng.SwapSettings(engine.SettingsFrom(newCfg.Reliability))
		slog.Info("reliability settings hot-reloaded", "refinements", newCfg.Reliability.Refinements)
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.New(eng, st, loader)
	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	eng.Shutdown() // finish queued edits before the store closes
	cancel()
	slog.Info("goodbye")
}
