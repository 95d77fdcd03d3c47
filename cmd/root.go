package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/octophi/ingestor/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "octophi",
	Short: "Tabular lead file ingestion pipeline",
	Long:  "Classifies columns of raw CSV/XLSX lead files, normalizes values, and loads leads, owners, and overflow data into the store in one transaction per file.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
