package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/api"
	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/domain"
	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/outbox"
	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/persistence"
	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/persistence/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer e.close()

		if e.store.DB == nil {
			return fmt.Errorf("%s storage has no schema to migrate", e.store.Name)
		}
		if err := migrations.MigrateUp(e.store.DB, e.store.Dialect); err != nil {
			return err
		}
		status, err := migrations.CheckStatus(e.store.DB, e.store.Dialect)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderStatus(status))
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the applied schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer e.close()

		if e.store.DB == nil {
			return fmt.Errorf("%s storage has no schema to migrate", e.store.Name)
		}
		status, err := migrations.CheckStatus(e.store.DB, e.store.Dialect)
		fmt.Fprintln(cmd.OutOrStdout(), renderStatus(status))
		return err
	},
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a night of sleep",
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := recordInput(cmd)
		if err != nil {
			return err
		}

		e, err := openEnv(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer e.close()

		stored, err := e.service.RecordSleep(cmd.Context(), input)
		if err != nil {
			var conflict *domain.SleepLogAlreadyExistsError
			if errors.As(err, &conflict) {
				fmt.Fprintln(cmd.ErrOrStderr(), warn.Sprint(conflict.Error()))
			}
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ok.Sprint("recorded"), renderInterval(*stored))
		return nil
	},
}

func recordInput(cmd *cobra.Command) (domain.RecordSleepInput, error) {
	userID, _ := cmd.Flags().GetInt64("user")
	input := domain.RecordSleepInput{UserID: userID}

	if raw, _ := cmd.Flags().GetString("date"); raw != "" {
		date, err := time.Parse(api.DateLayout, raw)
		if err != nil {
			return input, fmt.Errorf("invalid --date %q: want MM/dd/yyyy", raw)
		}
		input.Date = date
	}
	for _, f := range []struct {
		name string
		dst  **domain.TimeOfDay
	}{{"start", &input.Start}, {"end", &input.End}} {
		raw, _ := cmd.Flags().GetString(f.name)
		if raw == "" {
			continue
		}
		tod, err := domain.ParseTimeOfDay(raw)
		if err != nil {
			return input, fmt.Errorf("invalid --%s %q: want HH:mm", f.name, raw)
		}
		*f.dst = &tod
	}
	if raw, _ := cmd.Flags().GetString("quality"); raw != "" {
		q, err := domain.ParseQuality(raw)
		if err != nil {
			return input, err
		}
		input.Quality = &q
	}
	return input, nil
}

var lastCmd = &cobra.Command{
	Use:   "last",
	Short: "Show the sleep that ended today",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetInt64("user")

		e, err := openEnv(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer e.close()

		latest, err := e.service.GetMostRecentSleep(cmd.Context(), userID)
		if err != nil {
			return err
		}
		if latest == nil {
			fmt.Fprintln(cmd.OutOrStdout(), muted.Sprint("no sleep recorded today"))
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderInterval(*latest))
		return nil
	},
}

var averageCmd = &cobra.Command{
	Use:   "average",
	Short: "Average the last N days of sleep",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetInt64("user")
		days, _ := cmd.Flags().GetInt("days")

		e, err := openEnv(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer e.close()

		result, err := e.service.GetTrailingAverage(cmd.Context(), userID, days)
		if err != nil {
			return err
		}
		if result == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", muted.Sprintf("no sleep recorded in the last %d days", days))
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), renderAverage(*result))
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded sleep, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetInt64("user")
		limit, _ := cmd.Flags().GetInt("limit")
		token, _ := cmd.Flags().GetString("cursor")

		cursor, err := persistence.DecodeCursor(token)
		if err != nil {
			return err
		}

		e, err := openEnv(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer e.close()

		items, next, err := e.service.ListSleepHistory(cmd.Context(), userID, cursor, limit)
		if err != nil {
			return err
		}
		for _, item := range items {
			fmt.Fprintln(cmd.OutOrStdout(), renderInterval(item))
		}
		if next != nil {
			fmt.Fprintln(cmd.OutOrStdout(), muted.Sprint("next: --cursor ", persistence.EncodeCursor(next)))
		}
		return nil
	},
}

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Operate the event outbox",
}

var outboxReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Requeue dead-lettered events into the outbox",
	RunE: func(cmd *cobra.Command, args []string) error {
		batch, _ := cmd.Flags().GetInt("batch")
		maxRetries, _ := cmd.Flags().GetInt("max-retries")
		baseDelay, _ := cmd.Flags().GetDuration("base-delay")

		e, err := openEnv(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer e.close()

		if e.store.Pool == nil {
			return fmt.Errorf("outbox replay needs the postgres backend, configured backend is %s", e.store.Name)
		}
		requeued, err := outbox.NewReplayer(e.store.Pool, e.logger, maxRetries, baseDelay).RunOnce(cmd.Context(), batch)
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", ok.Sprint("requeued"), requeued)
		return err
	},
}
