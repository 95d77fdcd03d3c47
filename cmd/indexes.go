package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var indexesSchemaName string

var indexesCmd = &cobra.Command{
	Use:   "indexes",
	Short: "Create query indexes on the ingestion tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("ingest"); err != nil {
			return err
		}

		s, err := loadSchema(indexesSchemaName)
		if err != nil {
			return err
		}
		eng, err := initEngine(ctx, s)
		if err != nil {
			return err
		}
		defer eng.Close() //nolint:errcheck

		if err := eng.CreateIndexes(ctx); err != nil {
			return err
		}

		zap.L().Info("indexes created", zap.String("schema", s.Name()))
		return nil
	},
}

func init() {
	indexesCmd.Flags().StringVar(&indexesSchemaName, "schema", "", "schema name (default from config)")
	rootCmd.AddCommand(indexesCmd)
}
