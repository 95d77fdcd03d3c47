package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateSchemaName string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the sources, leads, owners, and appendix tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("ingest"); err != nil {
			return err
		}

		s, err := loadSchema(migrateSchemaName)
		if err != nil {
			return err
		}
		eng, err := initEngine(ctx, s)
		if err != nil {
			return err
		}
		defer eng.Close() //nolint:errcheck

		if err := eng.Migrate(ctx); err != nil {
			return err
		}

		zap.L().Info("migration complete",
			zap.String("schema", s.Name()),
			zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateSchemaName, "schema", "", "schema name (default from config)")
	rootCmd.AddCommand(migrateCmd)
}
