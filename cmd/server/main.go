package main

import (
	"fmt"
	"log/slog"
	"os"

	"locker/internal/server/config"
	"locker/internal/server/database"
	"locker/internal/server/service"
	"locker/internal/server/storage"

	"github.com/spf13/cobra"
)

var (
	Version    = "dev"
	configPath string
)

var rootCmd = &cobra.Command{
	Use:     "server",
	Short:   "File pickup locker web service",
	Version: Version,
	Long: `server runs the file pickup locker. Uploaders get a short numeric code;
whoever holds the code can download the file until it expires.

Running without a subcommand is the same as "server serve".`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a TOML config file (or set "+config.EnvConfigPath+")")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration, installs the default logger and wires the
// locker service over its stores.
func setup() (*config.Config, *service.Locker, *storage.BackgroundStore, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	slog.SetDefault(newLogger(cfg))
	slog.Info("configuration loaded",
		"port", cfg.Port,
		"data_dir", cfg.DataDir,
		"upload_dir", cfg.UploadDir,
		"body_limit", cfg.BodyLimit,
		"cleanup_interval", cfg.CleanupInterval(),
	)

	files := storage.NewFileSystemStore(cfg.UploadDir)
	if err := files.EnsureDir(); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	slog.Info("file storage initialized", "path", cfg.UploadDir)

	background := storage.NewBackgroundStore(cfg.BackgroundPath)
	locker := service.NewLocker(
		database.NewSettingsStore(cfg.DataDir),
		database.NewRecordStore(cfg.DataDir),
		files,
		background,
	)
	return cfg, locker, background, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
