package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"locker/internal/server/api"
	"locker/internal/server/session"
	"locker/internal/server/storage"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, locker, background, err := setup()
	if err != nil {
		return err
	}

	if !locker.IsInitialized() {
		slog.Warn("locker is not initialized; visit /initialize to set the admin password")
	}

	// Sweep once at startup, then periodically if configured
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	cleanup := storage.NewCleanupService(locker, cfg.CleanupInterval())
	cleanup.Start(cleanupCtx)

	// Setup HTTP router
	sessions := session.NewManager(cfg.SessionTTL())
	handler := api.NewHandler(locker, sessions, background, cfg.SecureCookies)
	e, err := api.SetupRouter(handler, cfg)
	if err != nil {
		cleanupCancel()
		return err
	}

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		slog.Info("starting server", "addr", addr, "version", Version)
		if err := e.Start(addr); err != nil {
			slog.Info("server stopped", "reason", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutting down", "signal", sig)

	// Stop accepting new requests, finish in-flight within the configured timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeoutDuration())
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Stop cleanup service
	cleanupCancel()
	cleanup.Wait()

	slog.Info("server exited cleanly")
	return nil
}
