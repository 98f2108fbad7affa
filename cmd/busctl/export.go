package main

import (
	"fmt"
	"os"
	"time"

	"github.com/attractive-boy/schoolbus-back/internal/auth"
	"github.com/attractive-boy/schoolbus-back/internal/clock"
	"github.com/attractive-boy/schoolbus-back/internal/domain/order"
	"github.com/attractive-boy/schoolbus-back/internal/infrastructure/postgres"
	"github.com/attractive-boy/schoolbus-back/internal/usecase"

	"github.com/spf13/cobra"
)

var operator = auth.Identity{UserID: "busctl", Role: auth.RoleAdmin}

func exportCmd() *cobra.Command {
	var from, to, status, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write orders to an xlsx workbook",
		Long: `Export orders created in a date range to an Excel workbook.

Dates are YYYY-MM-DD in the service time zone; --to is inclusive.

Examples:
  busctl export --from 2024-09-01 --to 2024-09-30
  busctl export --status paid -o paid.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer f.Close()

			cal, err := f.Calendar()
			if err != nil {
				return err
			}
			params := usecase.ExportOrdersParams{Status: order.Status(status)}
			if params.From, err = parseDay(from, cal.Location(), false); err != nil {
				return err
			}
			if params.To, err = parseDay(to, cal.Location(), true); err != nil {
				return err
			}

			res, err := usecase.NewExportOrders(postgres.NewOrderRepository(pool), cal).Execute(cmd.Context(), operator, params)
			if err != nil {
				return err
			}
			if out == "" {
				out = res.FileName
			}
			if err := os.WriteFile(out, res.Content, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d orders to %s\n", res.Rows, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first creation date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last creation date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&status, "status", "", "only orders in this status")
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default: generated name)")
	return cmd
}

// parseDay returns nil for an empty value. endOfDay moves the result to the
// last instant of that day.
func parseDay(v string, loc *time.Location, endOfDay bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(clock.DateLayout, v, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: want YYYY-MM-DD", v)
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &t, nil
}
