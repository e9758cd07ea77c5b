package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jamhq/jam/internal/config"
	"github.com/jamhq/jam/internal/google"
	"github.com/jamhq/jam/internal/logging"
	"github.com/jamhq/jam/internal/mailbox"
	"github.com/jamhq/jam/internal/oracle"
	"github.com/jamhq/jam/internal/reconcile"
	"github.com/jamhq/jam/internal/store"
	"github.com/jamhq/jam/internal/syncer"
)

func newSyncCmd() *cobra.Command {
	var (
		configPath string
		debugMode  bool
		userID     string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a single sync pass and exit",
		Long: `Run one sync pass outside the service loop. With --user, only that
user is synced; otherwise every user with a connected mailbox is
synced once, in creation order.

Useful for scripting, migrations and debugging classification
behaviour without waiting for the service cadence.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), configPath, debugMode, userID)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to the YAML config file")
	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&userID, "user", "", "Sync only this user id")
	return cmd
}

func runSync(ctx context.Context, configPath string, debugMode bool, userID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	slogger := newSlogLogger(debugMode)
	slog.SetDefault(slogger)
	logger := logging.NewSlogAdapter(slogger)

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	oauthFlow := google.NewOAuth(cfg)

	oracleClient := oracle.NewClient(cfg.Oracle.APIKey, cfg.Oracle.Model, cfg.Oracle.MaxTokens,
		oracle.WithRequestsPerMinute(cfg.Oracle.RequestsPerMinute))
	extractor := oracle.NewExtractor(oracleClient, cfg.Sync.MinConfidence, logger)

	opts := mailbox.Options{
		LookbackDays: cfg.Sync.LookbackDays,
		MaxMessages:  int64(cfg.Sync.MaxMessages),
		BodyLimit:    cfg.Sync.BodyLimit,
	}
	openMailbox := func(ctx context.Context, refreshToken string) (syncer.Mailbox, error) {
		return mailbox.NewClient(ctx, oauthFlow.TokenSource(ctx, refreshToken), opts, slogger)
	}

	runner := syncer.NewRunner(openMailbox, extractor, reconcile.New(db, logger), db, logger)

	var users []*store.User
	if userID != "" {
		u, err := db.UserByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("resolve user: %w", err)
		}
		users = append(users, u)
	} else {
		users, err = db.UsersWithMailboxCredential(ctx)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
	}

	for _, u := range users {
		summary, err := runner.Run(ctx, u)
		if err != nil {
			logger.Error("sync failed",
				"owner", u.ID,
				"user_hash", logging.AnonymizeEmail(u.Email),
				"error", err)
			continue
		}
		fmt.Printf("%s: created=%d updated=%d skipped=%d\n",
			u.ID, summary.Created, summary.Updated, summary.Skipped)
	}

	stats := oracleClient.GetUsageStats()
	if stats.Calls > 0 {
		logger.Info("oracle usage",
			"calls", stats.Calls,
			"input_tokens", stats.InputTokens,
			"output_tokens", stats.OutputTokens)
	}
	return nil
}
