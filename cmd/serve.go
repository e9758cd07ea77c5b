package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamhq/jam/internal/config"
	"github.com/jamhq/jam/internal/google"
	"github.com/jamhq/jam/internal/instrumentation"
	"github.com/jamhq/jam/internal/logging"
	"github.com/jamhq/jam/internal/mailbox"
	"github.com/jamhq/jam/internal/oracle"
	"github.com/jamhq/jam/internal/reconcile"
	"github.com/jamhq/jam/internal/scheduler"
	"github.com/jamhq/jam/internal/server"
	"github.com/jamhq/jam/internal/store"
	"github.com/jamhq/jam/internal/syncer"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		debugMode  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync service",
		Long: `Run the jam service: the background Gmail sync loop, the HTTP API
for connecting accounts and triggering syncs, and the Prometheus
metrics endpoint.

Configuration is read from a YAML file (--config) with ` + "`${VAR}`" + `
environment expansion. Credentials may also come straight from the
environment: GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET,
GOOGLE_REDIRECT_URI and ANTHROPIC_API_KEY.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, debugMode)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to the YAML config file")
	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	return cmd
}

func runServe(configPath string, debugMode bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	slogger := newSlogLogger(debugMode)
	slog.SetDefault(slogger)
	logger := logging.NewSlogAdapter(slogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Observability first so every component below can emit metrics.
	icfg := instrumentation.DefaultConfig()
	icfg.ServiceVersion = version
	provider, err := instrumentation.NewProvider(ctx, icfg)
	if err != nil {
		return fmt.Errorf("init instrumentation: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn("instrumentation shutdown failed", "error", err)
		}
	}()

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	oauthFlow := google.NewOAuth(cfg)

	oracleClient := oracle.NewClient(cfg.Oracle.APIKey, cfg.Oracle.Model, cfg.Oracle.MaxTokens,
		oracle.WithRequestsPerMinute(cfg.Oracle.RequestsPerMinute),
		oracle.WithMetrics(provider.Metrics()))
	extractor := oracle.NewExtractor(oracleClient, cfg.Sync.MinConfidence, logger)

	reconciler := reconcile.New(db, logger)

	opts := mailbox.Options{
		LookbackDays: cfg.Sync.LookbackDays,
		MaxMessages:  int64(cfg.Sync.MaxMessages),
		BodyLimit:    cfg.Sync.BodyLimit,
		Metrics:      provider.Metrics(),
	}
	openMailbox := func(ctx context.Context, refreshToken string) (syncer.Mailbox, error) {
		return mailbox.NewClient(ctx, oauthFlow.TokenSource(ctx, refreshToken), opts, slogger)
	}

	runner := syncer.NewRunner(openMailbox, extractor, reconciler, db, logger)

	audit := instrumentation.NewAuditLogger(slogger)

	sched := scheduler.New(db, runner, cfg.Sync.Interval.Std(), cfg.Sync.UserDelay.Std(), logger)
	sched.Instrument(provider.Metrics(), audit)
	sched.Start(ctx)

	api, err := server.NewAPIServer(server.APIServerConfig{
		Addr:    cfg.Server.Addr,
		Store:   db,
		OAuth:   oauthFlow,
		Syncs:   sched,
		Metrics: provider.Metrics(),
		Audit:   audit,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("init api server: %w", err)
	}

	errs := make(chan error, 2)

	go func() {
		if err := api.Start(); err != nil && err != http.ErrServerClosed {
			errs <- fmt.Errorf("api server: %w", err)
		}
	}()

	var metricsServer *server.MetricsServer
	if cfg.Metrics.Enabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.Metrics.Addr,
			InstrumentationProvider: provider,
			Logger:                  logger,
		})
		if err != nil {
			return fmt.Errorf("init metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				errs <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	logger.Info("jam service running",
		"api_addr", cfg.Server.Addr,
		"sync_interval", cfg.Sync.Interval.Std().String())

	select {
	case <-ctx.Done():
	case err := <-errs:
		return err
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancel()

	if err := api.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api shutdown failed", "error", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics shutdown failed", "error", err)
		}
	}
	return nil
}

// newSlogLogger builds the process-wide structured logger. JSON to
// stderr keeps stdout free for command output.
func newSlogLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
