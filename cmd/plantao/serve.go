package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/plantao-engine/api"
)

var (
	httpAddr string
	scenario string
)

// serveCmd starts the HTTP API.
//
// GRACEFUL SHUTDOWN:
// On SIGINT/SIGTERM the server stops accepting connections, waits up to 30s
// for active requests, stops the retry scheduler, then closes the database.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and retry failed invalidations in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("addr") {
			cfg.HTTPAddr = httpAddr
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		handler := api.NewHandler(store, logger)
		handler.Coordinator.Concurrency = cfg.InvalidationConcurrency

		if scenario != "" {
			if err := handler.Load(cmd.Context(), scenario); err != nil {
				return err
			}
			logger.Info("scenario loaded", zap.String("scenario", scenario), zap.String("tenant", string(api.DemoTenant)))
		}

		scheduler := api.NewRetryScheduler(handler.Overrides, logger.Named("retry"))
		scheduler.CheckInterval = cfg.RetryInterval
		scheduler.Start()
		defer scheduler.Stop()

		server := &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      api.NewRouter(handler, cfg.CORSOrigins),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		serverErr := make(chan error, 1)
		go func() {
			logger.Info("server starting", zap.String("addr", cfg.HTTPAddr), zap.String("db", cfg.DBPath))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
			close(serverErr)
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case err := <-serverErr:
			if err != nil {
				return err
			}
		case <-quit:
		}

		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return err
		}
		logger.Info("server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&httpAddr, "addr", ":8080", "listen address; overrides HTTP_ADDR")
	serveCmd.Flags().StringVar(&scenario, "scenario", "", "reset the database and load a demo scenario on start")
}
