package main

import (
	"fmt"

	"github.com/attractive-boy/schoolbus-back/internal/infrastructure/postgres"
	"github.com/attractive-boy/schoolbus-back/migrations"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded SQL schema",
		Long: `Apply every embedded migration in order.

The scripts are idempotent, so running migrate against an
up-to-date database is a no-op.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer f.Close()

			return postgres.Migrate(cmd.Context(), pool, migrations.FS, func(name string) {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
			})
		},
	}
}
