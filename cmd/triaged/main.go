// Triaged is a first-line support incident triage daemon.
//
// It serves an HTTP API that classifies incoming incidents, retrieves
// similar past incidents from an embedded knowledge base, and proposes
// resolutions with a confidence score, escalating what it cannot handle.
//
// Configuration is loaded from ~/.config/triaged/config.yaml and
// overridden by environment variables. See internal/config for details.
//
// Usage:
//
//	# Start the daemon with defaults
//	triaged
//
//	# Configure via environment
//	SERVER_PORT=8700 STORE_PROVIDER=memory triaged
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/opsforgelabs/triaged/internal/config"
	"github.com/opsforgelabs/triaged/internal/embeddings"
	"github.com/opsforgelabs/triaged/internal/knowledge"
	"github.com/opsforgelabs/triaged/internal/server"
	"github.com/opsforgelabs/triaged/internal/triage"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/triaged/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  triaged           Start the triage daemon\n")
			fmt.Fprintf(os.Stderr, "  triaged version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("triaged by Opsforge Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the triage daemon and blocks until the context is cancelled.
//
// Initialization order:
//  1. Load and validate configuration
//  2. Initialize logger
//  3. Open the knowledge store (embedder first when required)
//  4. Build the resolution generator and engine
//  5. Start the HTTP server
//  6. Graceful shutdown on context cancellation
func run(ctx context.Context, configPath string) error {
	if err := config.EnsureConfigDir(); err != nil {
		return err
	}

	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info("Starting triaged",
		zap.Int("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Provider),
		zap.String("generator", cfg.Generator.Mode),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout))

	store, cleanup, err := initStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize knowledge store: %w", err)
	}
	defer cleanup()

	logger.Info("Knowledge store ready",
		zap.String("provider", cfg.Store.Provider),
		zap.Int("entries", store.Count()))

	generator, err := initGenerator(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize generator: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics := triage.NewMetrics(registry, func() float64 {
		return float64(store.Count())
	})

	engine := triage.NewEngine(triage.EngineConfig{
		Store:     store,
		Generator: generator,
		Logger:    logger,
		Metrics:   metrics,
		Threshold: cfg.Triage.ConfidenceThreshold,
	})

	srv, err := server.NewServer(engine, logger, &server.Config{
		Host:     "localhost",
		Port:     cfg.Server.Port,
		Registry: registry,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// initLogger builds the structured logger from config.
func initLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}

	var zcfg zap.Config
	if cfg.Log.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// initStore opens the configured knowledge store. The returned cleanup
// closes the store and, for embedded stores, the embedding provider
// behind it.
func initStore(cfg *config.Config, logger *zap.Logger) (knowledge.Store, func(), error) {
	if cfg.Store.Provider == "memory" {
		store := knowledge.NewMemoryStore()
		return store, func() { _ = store.Close() }, nil
	}

	embedder, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		BaseURL:  cfg.Embedding.BaseURL,
		APIKey:   cfg.Embedding.APIKey.Value(),
		CacheDir: cfg.Embedding.CacheDir,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating embedding provider: %w", err)
	}

	store, err := knowledge.NewChromemStore(knowledge.ChromemConfig{
		Path:       cfg.Store.Path,
		Compress:   cfg.Store.Compress,
		Collection: cfg.Store.Collection,
		VectorSize: cfg.Store.VectorSize,
	}, embedder, logger)
	if err != nil {
		_ = embedder.Close()
		return nil, nil, err
	}

	cleanup := func() {
		_ = store.Close()
		_ = embedder.Close()
	}
	return store, cleanup, nil
}

// initGenerator builds the resolution generator from config.
func initGenerator(cfg *config.Config) (triage.Generator, error) {
	if cfg.Generator.Mode == "llm" {
		return triage.NewLLMGenerator(triage.LLMConfig{
			BaseURL:     cfg.Generator.BaseURL,
			Model:       cfg.Generator.Model,
			APIKey:      cfg.Generator.APIKey.Value(),
			Temperature: cfg.Generator.Temperature,
		})
	}
	return triage.NewRuleBasedGenerator(), nil
}
