package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/miradorhq/sessiond/internal/adapter/inbound/httpapi"
	"github.com/miradorhq/sessiond/internal/adapter/outbound/boltstore"
	"github.com/miradorhq/sessiond/internal/adapter/outbound/directory"
	"github.com/miradorhq/sessiond/internal/adapter/outbound/localstore"
	"github.com/miradorhq/sessiond/internal/adapter/outbound/memory"
	"github.com/miradorhq/sessiond/internal/config"
	"github.com/miradorhq/sessiond/internal/domain/session"
	"github.com/miradorhq/sessiond/internal/domain/token"
	"github.com/miradorhq/sessiond/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the session daemon",
	Long: `Start the sessiond HTTP server.

The server exposes the auth endpoints under /api/auth/, Prometheus metrics
on /metrics, and a health probe on /health.

Examples:
  # Start with config file settings
  sessiond serve

  # Start with a specific config file
  sessiond --config /path/to/sessiond.yaml serve`,
	RunE: runServe,
}

var devMode bool

func init() {
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (verbose logging)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration without validation so CLI flags can override first.
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// Signal context for graceful shutdown. stop() restores default signal
	// handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logLevel := parseLogLevel(cfg.Server.LogLevel)
	if cfg.DevMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	logger.Debug("log level configured", "level", cfg.Server.LogLevel, "effective", logLevel.String())

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}

	logger.Info("sessiond stopped")
	return nil
}

// run wires all components together and blocks until shutdown.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	svcCfg, trackerCfg, err := cfg.SessionTimings()
	if err != nil {
		return err
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer func() { _ = store.Close() }()
	logger.Info("session store opened", "backend", cfg.Store.Backend, "path", cfg.Store.Path)

	dir, err := openDirectory(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open directory: %w", err)
	}

	issuer := token.NewIssuer([]byte(cfg.Token.Secret))

	svc := service.New(store, dir, issuer, svcCfg, logger)
	defer svc.Close()
	svc.StartRevalidation(ctx)

	tracker := service.NewActivityTracker(svc, trackerCfg, logger)
	tracker.Start(ctx)
	defer tracker.Stop()

	reg := prometheus.NewRegistry()
	metrics := httpapi.NewMetrics(reg)
	unsubscribe := metrics.ObserveSessionEvents(svc)
	defer unsubscribe()

	handler := httpapi.NewHandler(svc, tracker, store, metrics, logger, Version)
	server := httpapi.NewServer(handler, reg,
		httpapi.WithAddr(cfg.Server.HTTPAddr),
		httpapi.WithLogger(logger),
	)

	logger.Info("sessiond started",
		"addr", cfg.Server.HTTPAddr,
		"absolute", svcCfg.AbsoluteDuration,
		"idle", svcCfg.IdleDuration,
		"directory_mode", cfg.Directory.Mode,
	)

	return server.Start(ctx)
}

// openStore creates the configured session store backend.
func openStore(cfg *config.Config, logger *slog.Logger) (session.Store, error) {
	switch cfg.Store.Backend {
	case "file":
		return localstore.New(cfg.Store.Path, logger), nil
	case "bolt":
		return boltstore.Open(cfg.Store.Path)
	case "memory":
		logger.Warn("memory store selected, sessions will not survive restarts")
		return memory.NewCredentialStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}

// openDirectory creates the configured principal directory.
func openDirectory(cfg *config.Config, logger *slog.Logger) (directory.Directory, error) {
	switch cfg.Directory.Mode {
	case "rest":
		timeout, err := cfg.DirectoryRequestTimeout()
		if err != nil {
			return nil, err
		}
		return directory.NewRESTClient(cfg.Directory.BaseURL,
			directory.WithHTTPClient(&http.Client{Timeout: timeout}),
			directory.WithLogger(logger),
		), nil
	case "seed":
		return directory.LoadSeedDirectory(cfg.Directory.SeedFile, logger)
	default:
		return nil, fmt.Errorf("unknown directory mode: %s", cfg.Directory.Mode)
	}
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
