package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"indexer/internal/config"
	"indexer/internal/constants"
	"indexer/internal/logger"
	"indexer/pkg/logging"
)

var (
	configFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   constants.ServiceName,
		Short: "Record indexing service",
		Long:  "Consumes record notifications, renders each record into a search document, archives it and publishes it to the search index",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(mapCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, logger.Logger, error) {
	earlyLog := logging.NewEarlyLog()

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
		if configFile == "" {
			earlyLog.Warn("Config file is required. Use --config flag or CONFIG_FILE environment variable")
			return nil, nil, fmt.Errorf("config file is required")
		}
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		earlyLog.Warn("Failed to load config: %v", err)
		return nil, nil, err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		earlyLog.Warn("Failed to init logger: %v", err)
		return nil, nil, err
	}
	return cfg, log, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start consuming notifications and serving the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			ctx = logging.WithServiceName(ctx, constants.ServiceName)

			log.InfowCtx(ctx, "Starting indexer service")

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.ErrorwCtx(ctx, "Failed to initialize application", "error", err)
				app.Shutdown(context.Background())
				return err
			}

			if err := app.Run(ctx); err != nil && ctx.Err() == nil {
				log.ErrorwCtx(ctx, "Application error", "error", err)
				app.Shutdown(context.Background())
				return err
			}
			return app.Shutdown(context.Background())
		},
	}
}

func mapCmd() *cobra.Command {
	var (
		mappingID   string
		mappingType string
		input       string
		output      string
	)

	cmd := &cobra.Command{
		Use:   "map",
		Short: "Run a registered mapping over a local file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return runMapping(ctx, cfg, log, mappingID, mappingType, input, output, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&mappingID, "mapping-id", "", "Registered mapping id (required)")
	cmd.Flags().StringVar(&mappingType, "mapping-type", "", "Mapping type, defaults to the registered type")
	cmd.Flags().StringVar(&input, "input", "", "Document to map (required)")
	cmd.Flags().StringVar(&output, "output", "", "Write the result here instead of stdout")
	cmd.MarkFlagRequired("mapping-id")
	cmd.MarkFlagRequired("input")

	return cmd
}
