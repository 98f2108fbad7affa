package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/attractive-boy/schoolbus-back/internal/infrastructure/postgres"

	"github.com/spf13/cobra"
)

func outboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and repair the transactional outbox",
	}
	cmd.AddCommand(outboxStatusCmd())
	cmd.AddCommand(outboxRequeueCmd())
	return cmd
}

func outboxStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Count outbox rows by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer f.Close()

			counts, err := postgres.NewOutboxRepository(pool).CountByStatus(cmd.Context())
			if err != nil {
				return err
			}
			statuses := make([]string, 0, len(counts))
			for s := range counts {
				statuses = append(statuses, s)
			}
			sort.Strings(statuses)
			for _, s := range statuses {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %d\n", s, counts[s])
			}
			return nil
		},
	}
}

func outboxRequeueCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "requeue",
		Short: "Return rows stuck in processing to new",
		Long: `Return outbox rows that have been in processing for longer than
--older-than back to new, so the worker publishes them again.

Examples:
  busctl outbox requeue
  busctl outbox requeue --older-than 0s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer f.Close()

			n, err := postgres.NewOutboxRepository(pool).RequeueStuck(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "requeued %d events\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 5*time.Minute, "only requeue rows claimed at least this long ago")
	return cmd
}
