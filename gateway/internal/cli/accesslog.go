package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"lan-gateway/gateway/internal/infra"
	"lan-gateway/gateway/internal/model"
	"lan-gateway/gateway/internal/repository"
)

func NewAccessLogCommand() *cobra.Command {
	var (
		filter repository.AccessLogFilter
		since  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "access-log",
		Short: "Show recorded authorization decisions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}
			return withAccessLog(cmd.Context(), func(ctx context.Context, repo repository.Repository) error {
				entries, err := repo.ListAccessLogs(ctx, filter)
				if err != nil {
					return err
				}
				printAccessLog(cmd, entries)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 50, "maximum number of entries")
	cmd.Flags().StringVar(&filter.ClientIP, "ip", "", "only this client address")
	cmd.Flags().StringVar(&filter.Decision, "decision", "", "allowed, denied or error")
	cmd.Flags().IntVar(&filter.Port, "port", 0, "only this listener port")
	cmd.Flags().DurationVar(&since, "since", 0, "only entries newer than this (e.g. 24h)")

	cmd.AddCommand(newAccessLogPruneCommand())
	return cmd
}

func newAccessLogPruneCommand() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old access log entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccessLog(cmd.Context(), func(ctx context.Context, repo repository.Repository) error {
				n, err := repo.PruneAccessLogs(ctx, time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d entries\n", n)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "age threshold")
	return cmd
}

func withAccessLog(ctx context.Context, fn func(context.Context, repository.Repository) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	env, _, err := loadRuntime()
	if err != nil {
		return err
	}
	db, err := infra.OpenAccessLog(env.DataDir)
	if err != nil {
		return fmt.Errorf("open access log: %w", err)
	}
	defer infra.CloseDB(db)
	return fn(ctx, repository.NewGormRepository(db))
}

func printAccessLog(cmd *cobra.Command, entries []model.AccessLogEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no entries")
		return
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tPORT\tLISTENER\tCLIENT\tDECISION\tSTATUS\tREQUEST")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%d\t%s %s\n",
			e.Timestamp.Local().Format(time.DateTime), e.Port, e.ListenerName, e.ClientIP, e.Decision, e.Status, e.Method, e.Path)
	}
	tw.Flush()
}
