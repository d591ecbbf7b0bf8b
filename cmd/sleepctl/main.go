// Command sleepctl administers and exercises a sleep-log deployment from
// the terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/config"
	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/domain"
	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/logging"
	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/persistence/backend"
)

var (
	configPath string
	verbose    bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "sleepctl",
	Short:        "Manage and query the sleep-log service",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv(config.FileEnv), "path to a TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
	outboxCmd.AddCommand(outboxReplayCmd)
	rootCmd.AddCommand(migrateCmd, recordCmd, lastCmd, averageCmd, historyCmd, outboxCmd)

	for _, cmd := range []*cobra.Command{recordCmd, lastCmd, averageCmd, historyCmd} {
		cmd.Flags().Int64P("user", "u", 0, "user id")
		_ = cmd.MarkFlagRequired("user")
	}
	recordCmd.Flags().String("date", "", "nominal date (MM/dd/yyyy), defaults to today")
	recordCmd.Flags().String("start", "", "bedtime (HH:mm)")
	recordCmd.Flags().String("end", "", "wake-up time (HH:mm)")
	recordCmd.Flags().String("quality", "", "BAD, OK or GOOD")
	averageCmd.Flags().IntP("days", "d", 30, "trailing window in days")
	historyCmd.Flags().Int("limit", 20, "page size")
	historyCmd.Flags().String("cursor", "", "continuation token from a previous page")
	outboxReplayCmd.Flags().Int("batch", 50, "entries to process")
	outboxReplayCmd.Flags().Int("max-retries", 5, "attempts before an entry is quarantined")
	outboxReplayCmd.Flags().Duration("base-delay", 0, "first retry delay, doubled per attempt (default 1m)")
}

// env bundles what every data command needs. The caller must call close.
type env struct {
	cfg     config.Config
	logger  *zap.Logger
	store   *backend.Backend
	service *domain.Service
}

func (e *env) close() {
	e.store.Close()
	_ = e.logger.Sync()
}

// openEnv loads configuration and connects to storage. Schema migration
// is left to the migrate command unless autoMigrate is set.
func openEnv(ctx context.Context, autoMigrate bool) (*env, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.AutoMigrate = autoMigrate && cfg.AutoMigrate

	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(level, "console")
	if err != nil {
		return nil, err
	}

	store, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("opening %s storage: %w", cfg.StorageBackend, err)
	}

	return &env{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		service: domain.NewService(store.Repo, domain.WithLogger(logger)),
	}, nil
}
