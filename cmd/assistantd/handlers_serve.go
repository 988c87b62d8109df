package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/corewire/assistant/internal/approval"
	"github.com/corewire/assistant/internal/config"
	"github.com/corewire/assistant/internal/convstore"
	"github.com/corewire/assistant/internal/httpapi"
	"github.com/corewire/assistant/internal/observability"
	"github.com/corewire/assistant/internal/orchestrator"
	"github.com/corewire/assistant/internal/reload"
	"github.com/corewire/assistant/internal/sharedstate"
)

// vectorDBPath names the vector store database alongside the main
// conversation store; kept as a single well-known file rather than a
// config field since nothing else needs to name it.
const vectorDBPath = "memory.db"

// approvalTimeout bounds how long a skill invocation waits for a human
// to approve it before the call is treated as denied.
const approvalTimeout = 2 * time.Minute

func runValidateConfig(configPath string) error {
	cfg, err := config.FromFile(configPath)
	if err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}
	slog.Info("configuration is valid", "config", configPath, "chat_providers", len(cfg.Models.Chat.Providers))
	return nil
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.FromFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("configuration loaded",
		"config", configPath,
		"bind_address", cfg.BindAddress(),
		"chat_providers", len(cfg.Models.Chat.Providers),
	)

	store, err := convstore.Open(cfg.Storage.Database)
	if err != nil {
		return fmt.Errorf("failed to open conversation store: %w", err)
	}
	defer store.Close()

	holder := sharedstate.NewHolder(&sharedstate.Snapshot{}, configPath)
	if err := reload.Apply(ctx, cfg, configPath, vectorDBPath, holder); err != nil {
		return fmt.Errorf("failed to build runtime from config: %w", err)
	}

	tracingServiceName := cfg.Tracing.ServiceName
	if tracingServiceName == "" {
		tracingServiceName = "assistant"
	}
	tracer, shutdownTracer := observability.NewTracer(observability.TraceConfig{
		ServiceName:    tracingServiceName,
		Environment:    cfg.Tracing.Environment,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
		EnableInsecure: cfg.Tracing.EnableInsecure,
	})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}()

	gate := approval.New(approvalTimeout)
	orch := orchestrator.New(store, holder, gate, slog.Default())
	orch.Tracer = tracer
	server := httpapi.New(store, holder, orch, gate, vectorDBPath, slog.Default())
	server.Tracer = tracer

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stopWatch, err := watchConfig(ctx, configPath, vectorDBPath, holder)
	if err != nil {
		slog.Warn("config file watch disabled", "error", err)
	} else {
		defer stopWatch()
	}

	httpServer := &http.Server{
		Addr:              cfg.BindAddress(),
		Handler:           server.NewServeMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("assistant server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("graceful shutdown failed", "error", err)
		return err
	}

	slog.Info("assistant server stopped")
	return nil
}

// watchConfig watches configPath for writes and re-applies it through the
// reload pipeline on every change, swapping the holder's snapshot in
// place. File-watching lives here rather than in internal/reload because
// it is a process-lifecycle concern, not part of the rebuild pipeline
// itself.
func watchConfig(ctx context.Context, configPath, vectorDBPath string, holder *sharedstate.Holder) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	if err := watcher.Add(configPath); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("fsnotify: watch %q: %w", configPath, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				reloadFromDisk(ctx, configPath, vectorDBPath, holder)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("config watch error", "error", err)
			}
		}
	}()

	return func() { watcher.Close() }, nil
}

func reloadFromDisk(ctx context.Context, configPath, vectorDBPath string, holder *sharedstate.Holder) {
	cfg, err := config.FromFile(configPath)
	if err != nil {
		slog.Warn("config reload: failed to parse, keeping previous snapshot", "error", err)
		return
	}
	// An empty configPath here tells Apply to skip its atomic-write-back:
	// the file on disk is already the one that triggered this reload, so
	// rewriting it would immediately re-trigger the watcher.
	if err := reload.Apply(ctx, cfg, "", vectorDBPath, holder); err != nil {
		slog.Warn("config reload: failed to apply, keeping previous snapshot", "error", err)
		return
	}
	slog.Info("config reloaded", "config", configPath)
}
