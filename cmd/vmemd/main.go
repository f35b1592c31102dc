// Vmemd is the vector memory daemon.
//
// This binary starts the vmemd HTTP server with full initialization:
// embedding provider, vector store backend, Prometheus metrics, and a
// config file watcher for runtime token rotation.
//
// Configuration is loaded from a YAML file with environment variable
// overrides. See internal/config for details.
//
// Usage:
//
//	# Start with defaults (~/.config/vmemd/config.yaml if present)
//	vmemd
//
//	# Start with an explicit config file
//	vmemd -config /etc/vmemd/config.yaml
//
//	# Configure via environment
//	VMEMD_SERVER_PORT=9000 VMEMD_STORE_PROVIDER=qdrant vmemd
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vmemd/internal/config"
	"github.com/fyrsmithlabs/vmemd/internal/embeddings"
	"github.com/fyrsmithlabs/vmemd/internal/logging"
	"github.com/fyrsmithlabs/vmemd/internal/server"
	"github.com/fyrsmithlabs/vmemd/internal/telemetry"
	"github.com/fyrsmithlabs/vmemd/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to the config file (default ~/.config/vmemd/config.yaml)")
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
			fmt.Fprintf(os.Stderr, "  vmemd           Start the vmemd daemon\n")
			fmt.Fprintf(os.Stderr, "  vmemd version   Show version information\n")
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

// printVersion prints version information
func printVersion() {
	fmt.Printf("vmemd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the vmemd server and blocks until the context is
// cancelled.
//
// Initialization order:
//  1. Loads and validates configuration (file + environment)
//  2. Initializes telemetry and the structured logger
//  3. Creates the embedding provider (rate limited when configured)
//  4. Opens the vector store backend (chromem or qdrant)
//  5. Creates the HTTP server with /health and /metrics
//  6. Starts the config watcher for runtime token rotation
//  7. Performs graceful shutdown on context cancellation
//
// Returns http.ErrServerClosed on graceful shutdown.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, &cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			log.Printf("Telemetry shutdown error: %v", err)
		}
	}()

	logger, err := logging.NewLogger(&cfg.Logging, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info(ctx, "starting vmemd",
		zap.String("version", version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Provider),
		zap.String("embeddings", cfg.Embeddings.Provider),
	)

	deps, err := initDependencies(cfg, logger.Underlying())
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	logger.Info(ctx, "dependencies initialized",
		zap.Int("embedding_dimension", deps.embedder.Dimension()),
		zap.Bool("embeddings_rate_limited", cfg.Embeddings.RateLimit.Enabled),
	)

	srv, err := server.NewServer(deps.store, logger.Underlying(), &cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if watcher := startConfigWatcher(ctx, cfg, configPath, srv, logger); watcher != nil {
		defer watcher.Stop()
	}

	logger.Info(ctx, "server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://%s:%d/health", cfg.Server.Host, cfg.Server.Port)),
		zap.String("metrics_endpoint", "/metrics"),
		zap.Bool("auth_enabled", cfg.Server.AuthToken.Value() != ""),
	)

	return srv.Start(ctx)
}

// dependencies holds the daemon's backend resources.
type dependencies struct {
	embedder embeddings.Provider
	store    vectorstore.Store
	logger   *zap.Logger
}

// Close releases backend resources. The store closes before the
// embedder it wraps.
func (d *dependencies) Close() {
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.Warn("vector store close error", zap.Error(err))
		}
	}
	if d.embedder != nil {
		if err := d.embedder.Close(); err != nil {
			d.logger.Warn("embedding provider close error", zap.Error(err))
		}
	}
}

// initDependencies creates the embedding provider and the vector store
// it feeds.
func initDependencies(cfg *config.Config, logger *zap.Logger) (*dependencies, error) {
	embedder, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:   cfg.Embeddings.Provider,
		BaseURL:    cfg.Embeddings.BaseURL,
		Model:      cfg.Embeddings.Model,
		APIKey:     cfg.Embeddings.APIKey.Value(),
		Dimensions: cfg.Embeddings.Dimensions,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}

	if cfg.Embeddings.RateLimit.Enabled {
		embedder = embeddings.NewRateLimited(embedder, cfg.Embeddings.RateLimit.RPS, cfg.Embeddings.RateLimit.Burst)
	}

	store, err := vectorstore.NewStore(cfg, embedder, logger)
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}

	return &dependencies{
		embedder: embedder,
		store:    store,
		logger:   logger,
	}, nil
}

// startConfigWatcher watches the config file and applies what can
// change at runtime. Only the auth token is hot-swappable; store,
// embeddings, and listener changes need a restart. Watcher failures
// disable reloads but never stop the daemon. Returns nil when the
// watcher could not start.
func startConfigWatcher(ctx context.Context, cfg *config.Config, configPath string, srv *server.Server, logger *logging.Logger) *config.Watcher {
	path := configPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			logger.Warn(ctx, "config watcher disabled: no home directory", zap.Error(err))
			return nil
		}
		path = filepath.Join(home, ".config", "vmemd", "config.yaml")
	}

	prevToken := cfg.Server.AuthToken
	watcher, err := config.NewWatcher(path, logger, func(next *config.Config) {
		if next.Server.AuthToken != prevToken {
			srv.SetAuthToken(next.Server.AuthToken)
			prevToken = next.Server.AuthToken
			logger.Info(ctx, "auth token rotated")
		}
		if next.Server.Port != cfg.Server.Port || next.Store != cfg.Store || next.Embeddings != cfg.Embeddings {
			logger.Warn(ctx, "server, store, and embeddings changes take effect on restart")
		}
	})
	if err != nil {
		logger.Warn(ctx, "config watcher disabled", zap.String("path", path), zap.Error(err))
		return nil
	}

	if err := watcher.Start(ctx); err != nil {
		logger.Warn(ctx, "config watcher disabled", zap.String("path", path), zap.Error(err))
		watcher.Stop()
		return nil
	}

	logger.Info(ctx, "watching config file", zap.String("path", path))
	return watcher
}
