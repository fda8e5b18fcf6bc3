package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/plantao-engine/api"
	"github.com/warp/plantao-engine/compensation"
)

const dateLayout = "2006-01-02"

var (
	tenant   string
	sectorID string
	workerID string
	fromDate string
	toDate   string
	year     int
	month    int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the resolved and aggregated pairings of a tenant as JSON",
	Example: `  plantao report --tenant demo-hospital --from 2025-03-01 --to 2025-03-31
  plantao report --tenant demo-hospital --from 2025-03-01 --to 2025-03-31 --sector icu`,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := time.Parse(dateLayout, fromDate)
		if err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
		to, err := time.Parse(dateLayout, toDate)
		if err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		report, err := compensation.NewReporter(store, store).Build(cmd.Context(), compensation.ReportQuery{
			TenantID: compensation.TenantID(tenant),
			From:     from,
			To:       to,
			SectorID: compensation.SectorID(sectorID),
			WorkerID: compensation.WorkerID(workerID),
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(api.NewReportResponse(report))
	},
}

var invalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Clear the cached values of one worker, sector and month",
	Long: `Clears every cached value of the worker's assignments to the sector's
shifts in the given month, so the next report derives them again. Running it
twice is harmless.`,
	Example: `  plantao invalidate --tenant demo-hospital --sector icu --worker bruno --year 2025 --month 3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		scope := compensation.Scope{
			TenantID: compensation.TenantID(tenant),
			SectorID: compensation.SectorID(sectorID),
			WorkerID: compensation.WorkerID(workerID),
			Year:     year,
			Month:    time.Month(month),
		}
		coordinator := compensation.NewCoordinator(store, store, logger.Named("invalidation"))
		service := compensation.NewOverrideService(store, coordinator, store, logger.Named("overrides"))
		result, err := service.Resync(cmd.Context(), scope)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d matched, %d cleared\n", scope, len(result.Matched), len(result.Cleared))
		return nil
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Re-run every failed invalidation once",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		coordinator := compensation.NewCoordinator(store, store, logger.Named("invalidation"))
		service := compensation.NewOverrideService(store, coordinator, store, logger.Named("overrides"))
		completed, err := service.RetryFailed(cmd.Context())
		if err != nil {
			return err
		}
		logger.Info("retry finished", zap.Int("completed", completed))
		fmt.Fprintf(cmd.OutOrStdout(), "%d scopes completed\n", completed)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{reportCmd, invalidateCmd} {
		c.Flags().StringVar(&tenant, "tenant", "", "tenant ID")
		c.Flags().StringVar(&sectorID, "sector", "", "sector ID")
		c.Flags().StringVar(&workerID, "worker", "", "worker ID")
		_ = c.MarkFlagRequired("tenant")
	}

	reportCmd.Flags().StringVar(&fromDate, "from", "", "first day, YYYY-MM-DD")
	reportCmd.Flags().StringVar(&toDate, "to", "", "last day, YYYY-MM-DD")
	_ = reportCmd.MarkFlagRequired("from")
	_ = reportCmd.MarkFlagRequired("to")

	invalidateCmd.Flags().IntVar(&year, "year", 0, "year of the override")
	invalidateCmd.Flags().IntVar(&month, "month", 0, "month of the override, 1-12")
	for _, name := range []string{"sector", "worker", "year", "month"} {
		_ = invalidateCmd.MarkFlagRequired(name)
	}
}
