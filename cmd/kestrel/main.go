// Kestrel - Weighted signature scoring for security telemetry.
// Copyright (c) 2025 kestrelsec
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kestrelsec/kestrel/internal/api"
	"github.com/kestrelsec/kestrel/internal/bus"
	"github.com/kestrelsec/kestrel/internal/cache"
	"github.com/kestrelsec/kestrel/internal/catalog"
	"github.com/kestrelsec/kestrel/internal/domain"
	"github.com/kestrelsec/kestrel/internal/engine"
	"github.com/kestrelsec/kestrel/internal/repository"
	"github.com/kestrelsec/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Load configuration first: the logger format depends on it
	cfg := domain.LoadConfig()
	initLogger(cfg.Logging)

	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"profile", cfg.Profile,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize the catalogue registry with the built-in catalogues
	registry := catalog.NewRegistry()

	// Initialize the expression compiler for custom signatures
	compiler, err := engine.NewCompiler()
	if err != nil {
		slog.Error("failed to initialize expression compiler", "error", err)
		os.Exit(1)
	}

	// Load stored custom signatures into the registry
	if err := loadSignaturesFromStorage(ctx, repo, registry, compiler); err != nil {
		slog.Error("failed to load custom signatures", "error", err)
		os.Exit(1)
	}
	slog.Info("catalogue registry initialized", "catalogues", len(registry.IDs()))

	// Initialize the scoring engine
	eng := engine.New()

	// Start the persistence worker
	asyncWorker := worker.NewWorker(busImpl, repo, worker.Config{})
	if err := asyncWorker.Start(); err != nil {
		slog.Error("failed to start worker", "error", err)
		os.Exit(1)
	}
	slog.Info("persistence worker started")

	// Initialize Server
	srv := api.NewServer(cfg, repo, cacheImpl, busImpl, registry, eng, compiler, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop the worker first so in-flight verdicts drain to storage
	if err := asyncWorker.Stop(); err != nil {
		slog.Error("failed to stop worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

func initLogger(cfg domain.LoggingConfig) {
	level := slog.LevelInfo
	switch strings.ToUpper(cfg.Level) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

// loadSignaturesFromStorage compiles stored custom signatures and
// extends the matching catalogues. Signatures are configured via
// POST /signatures; an empty store is a normal first boot.
func loadSignaturesFromStorage(ctx context.Context, repo domain.Repository, registry *catalog.Registry, compiler *engine.Compiler) error {
	total := 0
	for _, id := range registry.IDs() {
		cfgs, err := repo.ListSignatureConfigs(ctx, id)
		if err != nil {
			slog.Warn("failed to list signature configs", "catalogue_id", id, "error", err)
			continue
		}
		if len(cfgs) == 0 {
			continue
		}

		custom := compiler.CompileAll(cfgs)
		if err := registry.Extend(id, custom); err != nil {
			return err
		}
		total += len(custom)
	}

	if total > 0 {
		slog.Info("custom signatures loaded", "count", total)
	} else {
		slog.Info("no custom signatures in storage - configure via POST /signatures")
	}
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               KESTREL                     ║")
	fmt.Println("  ║   Weighted Signature Scoring Engine       ║")
	fmt.Println("  ║      Small bird. Sharp eyes.              ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Profile:  %s\n", cfg.Profile)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /url/analyze         - Score a URL for phishing")
	fmt.Println("    POST /url/batch-analyze   - Score a batch of URLs")
	fmt.Println("    POST /cert/analyze        - Grade a TLS certificate")
	fmt.Println("    POST /flow/classify       - Classify a network flow")
	fmt.Println("    POST /flow/batch-classify - Classify a batch of flows")
	fmt.Println("    POST /audit/detect        - Detect audit log anomalies")
	fmt.Println("    POST /policy/validate     - Score an IAM policy")
	fmt.Println("    POST /policy/conflicts    - Find policy conflicts")
	fmt.Println("    GET  /explain/{id}        - Explain an evaluation")
	fmt.Println("    GET  /catalogues          - List signature catalogues")
	fmt.Println("    POST /signatures          - Add a custom signature")
	fmt.Println("    GET  /metrics             - Prometheus metrics")
	fmt.Println()
}
