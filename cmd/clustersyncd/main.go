package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"clustersync/config"
	"clustersync/pkg/engine"
	"clustersync/pkg/pkgsync"
	"clustersync/pkg/sharedstore"
	"clustersync/storage"
)

var version = "dev"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "clustersyncd",
		Short: "clustersyncd - cluster coordination sidecar",
		Long:  `clustersyncd replicates flows, credentials, settings and installed packages between an admin process and its workers through a shared state store.`,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the coordination engine until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := setupLogging(cfg.Logging); err != nil {
				return err
			}
			return run(cfg)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shared, err := openSharedStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect shared store: %w", err)
	}
	defer shared.Close()

	local, err := openLocalStore(cfg)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	defer local.Close()

	installer := pkgsync.NewExecInstaller(cfg.Packages.Command, cfg.Packages.InstallDir)

	eng, err := engine.Init(ctx, engine.Options{
		Config:    cfg,
		Shared:    shared,
		Local:     local,
		Installer: installer,
	})
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.Start(ctx); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"role":    cfg.Cluster.Role,
		"version": version,
	}).Info("clustersyncd running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logrus.Info("received shutdown signal")
	return nil
}

func openSharedStore(ctx context.Context, cfg *config.Config) (sharedstore.Store, error) {
	switch cfg.Shared.Backend {
	case "memory":
		return sharedstore.NewMemoryStore(), nil
	default:
		return sharedstore.NewRedisStore(ctx, sharedstore.RedisOptions{
			Addr:     cfg.Shared.Addr,
			Password: cfg.Shared.Password,
			DB:       cfg.Shared.DB,
		})
	}
}

func openLocalStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "badger":
		return storage.NewBadgerStore(cfg.Storage.DataDir)
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		return storage.NewFileStore(cfg.Storage.DataDir)
	}
}

func setupLogging(cfg config.LoggingConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid logging.level %q: %w", cfg.Level, err)
	}
	logrus.SetLevel(level)

	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		logrus.SetOutput(f)
	}
	return nil
}
