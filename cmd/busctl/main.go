// Command busctl is the operator CLI: schema migrations, order exports and
// outbox maintenance.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/attractive-boy/schoolbus-back/internal/application/factories/infrastructure"
	"github.com/attractive-boy/schoolbus-back/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "busctl",
		Short:         "Operator tooling for the school bus backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(outboxCmd())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// connect loads the service config and opens postgres. The caller closes the factory.
func connect(ctx context.Context) (*infrastructure.Factory, *pgxpool.Pool, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, err
	}
	f := infrastructure.NewFactory(cfg)
	pool, err := f.Postgres(ctx)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, pool, nil
}
