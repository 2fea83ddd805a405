package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/singer-go/tap-sailthru/pkg/client"
	"github.com/singer-go/tap-sailthru/pkg/config"
	"github.com/singer-go/tap-sailthru/pkg/export"
	"github.com/singer-go/tap-sailthru/pkg/logger"
	"github.com/singer-go/tap-sailthru/pkg/singer"
	"github.com/singer-go/tap-sailthru/pkg/streams"
	"github.com/singer-go/tap-sailthru/pkg/sync"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	var configFile, catalogFile, stateFile, logLevel string

	root := &cobra.Command{
		Use:   "tap-sailthru",
		Short: "Singer tap for the Sailthru marketing platform",
		Long: `tap-sailthru extracts campaign, list, subscriber, and purchase data
from the Sailthru REST API and emits it as Singer messages on stdout.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Init(logger.Config{
				Level:    logLevel,
				Encoding: "json",
			})
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to config JSON file (required)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	_ = root.MarkPersistentFlagRequired("config")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tap-sailthru v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "discover",
		Short: "Verify credentials and write the stream catalog to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscover(cmd.Context(), configFile)
		},
	})

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Extract records and emit Singer messages on stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), configFile, catalogFile, stateFile)
		},
	}
	syncCmd.Flags().StringVar(&catalogFile, "catalog", "", "path to catalog JSON file (defaults to the discovered catalog)")
	syncCmd.Flags().StringVar(&stateFile, "state", "", "path to state JSON file")
	root.AddCommand(syncCmd)

	if err := root.ExecuteContext(context.Background()); err != nil {
		logger.Get().Error("fatal error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func setup(configFile string) (*config.Config, *client.Client, *streams.Registry, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, nil, err
	}

	log := logger.Get()
	apiClient := client.New(cfg, log)
	jobs := export.NewJobManager(apiClient, log)

	registry := streams.NewRegistry(streams.Dependencies{
		Client: apiClient,
		Jobs:   jobs,
		Logger: log,
	})
	return cfg, apiClient, registry, nil
}

func runDiscover(ctx context.Context, configFile string) error {
	_, apiClient, registry, err := setup(configFile)
	if err != nil {
		return err
	}

	if err := apiClient.CheckPlatformAccess(ctx); err != nil {
		return err
	}

	catalog, err := streams.BuildCatalog(registry)
	if err != nil {
		return err
	}
	return catalog.Dump(os.Stdout)
}

func runSync(ctx context.Context, configFile, catalogFile, stateFile string) error {
	cfg, _, registry, err := setup(configFile)
	if err != nil {
		return err
	}

	var catalog *singer.Catalog
	if catalogFile != "" {
		catalog, err = singer.LoadCatalog(catalogFile)
	} else {
		catalog, err = streams.BuildCatalog(registry)
	}
	if err != nil {
		return err
	}

	state, err := singer.LoadState(stateFile)
	if err != nil {
		return err
	}

	writer := singer.NewWriter(os.Stdout)
	engine := sync.New(registry, catalog, state, writer, cfg, logger.Get())
	return engine.Run(ctx)
}
