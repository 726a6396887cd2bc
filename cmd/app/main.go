package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"VaultRisk/internal/di"
	"VaultRisk/pkg/config"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "vaultrisk",
		Short:         "Market risk scoring for lending vaults",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the score scheduler",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context(), configPath)
			},
		},
		scoreCmd(&configPath),
		&cobra.Command{
			Use:   "ingest",
			Short: "Consume report events into ClickHouse",
			RunE: func(cmd *cobra.Command, args []string) error {
				return ingest(cmd.Context(), configPath)
			},
		},
	)
	return cmd
}

func loadConfig(path string) *config.Config {
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	log.Printf("env=%s sinks=%s chains=%d vaults=%d", cfg.Environment, cfg.Sinks.Backend, len(cfg.Chains), len(cfg.Vaults))
	return cfg
}

func serve(ctx context.Context, configPath string) error {
	cfg := loadConfig(configPath)

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer cleanup()

	return app.Run(ctx)
}

func scoreCmd(configPath *string) *cobra.Command {
	var (
		chainID int64
		vault   string
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score one vault, or every configured vault, and print the reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			if vault != "" && !common.IsHexAddress(vault) {
				return fmt.Errorf("invalid vault address %q", vault)
			}
			if vault != "" && chainID <= 0 {
				return fmt.Errorf("--chain is required with --vault")
			}

			cfg := loadConfig(*configPath)
			runner, cleanup, err := di.InitializeScoreRunner(cfg)
			if err != nil {
				return fmt.Errorf("score runner initialization failed: %w", err)
			}
			defer cleanup()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			if vault != "" {
				report, err := runner.ScoreOne(cmd.Context(), chainID, common.HexToAddress(vault))
				if err != nil {
					return err
				}
				return enc.Encode(report)
			}

			reports, scoreErr := runner.ScoreKnown(cmd.Context())
			if err := enc.Encode(reports); err != nil {
				return err
			}
			return scoreErr
		},
	}
	cmd.Flags().Int64Var(&chainID, "chain", 0, "chain id of the vault")
	cmd.Flags().StringVar(&vault, "vault", "", "vault address; omit to score every configured vault")
	return cmd
}

func ingest(ctx context.Context, configPath string) error {
	cfg := loadConfig(configPath)

	app, cleanup, err := di.InitializeIngestApp(cfg)
	if err != nil {
		return fmt.Errorf("ingest initialization failed: %w", err)
	}
	defer cleanup()

	return app.Run(ctx)
}
