/*
main.go - Application entry point

PURPOSE:
  The plantao command. Serves the HTTP API, or runs one engine operation
  against the configured SQLite database and exits.

COMMANDS:
  serve        HTTP API plus the invalidation retry scheduler
  report       Resolve and aggregate a tenant's pairings, print JSON
  invalidate   Re-sweep the cached values of one override scope
  retry        Re-run every failed invalidation once

CONFIGURATION:
  Environment variables (see config/config.go), optionally from a .env
  file. Flags win over the environment.

EXAMPLES:
  # Run with file database
  plantao serve --db ./data/plantao.db

  # Run with in-memory database and a demo hospital
  plantao serve --db :memory: --scenario hospital-month

  # March report
  plantao report --tenant demo-hospital --from 2025-03-01 --to 2025-03-31

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/warp/plantao-engine/config"
	"github.com/warp/plantao-engine/store/sqlite"
)

var (
	// Global flags
	envFile string
	dbPath  string
	verbose bool

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "plantao",
	Short: "Shift compensation resolution and aggregation engine",
	Long: `plantao resolves what each worker is paid for each shift they work
(cached value, monthly override, sector default, base value) and aggregates
the results by sector and worker for the financial screens.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(envFile); err != nil {
			return err
		}
		if cmd.Flags().Changed("db") {
			cfg.DBPath = dbPath
		}
		if verbose {
			cfg.LogLevel = zapcore.DebugLevel
		}

		zc := zap.NewProductionConfig()
		zc.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
		if logger, err = zc.Build(); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (\":memory:\" for in-memory); overrides DB_PATH")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(serveCmd, reportCmd, invalidateCmd, retryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openStore opens the configured SQLite database.
func openStore() (*sqlite.Store, error) {
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, nil
}
