package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var sourcesSchemaName string

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List known sources and their lead counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("ingest"); err != nil {
			return err
		}

		s, err := loadSchema(sourcesSchemaName)
		if err != nil {
			return err
		}
		eng, err := initEngine(ctx, s)
		if err != nil {
			return err
		}
		defer eng.Close() //nolint:errcheck

		sources, err := eng.Sources(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCREATED\tLEADS")
		for _, src := range sources {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", src.ID, src.Name, src.CreatedAt, src.LeadCount)
		}
		return w.Flush()
	},
}

func init() {
	sourcesCmd.Flags().StringVar(&sourcesSchemaName, "schema", "", "schema name (default from config)")
	rootCmd.AddCommand(sourcesCmd)
}
