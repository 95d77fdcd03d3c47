package main

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/octophi/ingestor/internal/cleaner"
	"github.com/octophi/ingestor/internal/fetcher"
)

var (
	ingestFile          string
	ingestSource        string
	ingestTemplate      string
	ingestFuzzyRules    string
	ingestSchemaName    string
	ingestUploadTag     string
	ingestEncoding      string
	ingestSheet         string
	ingestDryRun        bool
	ingestSkipAppendix  bool
	ingestCreateIndexes bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Clean one lead file and load it into the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if !ingestDryRun {
			if err := cfg.Validate("ingest"); err != nil {
				return err
			}
		}

		s, err := loadSchema(ingestSchemaName)
		if err != nil {
			return err
		}
		m, err := buildMapper(s, ingestSchemaName, ingestTemplate, ingestFuzzyRules)
		if err != nil {
			return err
		}

		path := ingestFile
		if strings.HasPrefix(path, "ftp://") {
			local, cleanup, err := fetcher.FetchFTP(ctx, path, fetcher.FTPOptions{
				Timeout: time.Duration(cfg.FTP.TimeoutSecs) * time.Second,
			})
			if err != nil {
				return err
			}
			defer cleanup()
			path = local
		}

		uploadTag := ingestUploadTag
		if uploadTag == "" {
			uploadTag = defaultUploadTag()
		}

		cl := cleaner.New(s, m, cleaner.Options{
			ExcludeAppendix: cfg.Ingest.AppendixExclude,
			CSV:             fetcher.CSVOptions{Encoding: ingestEncoding},
			XLSX:            fetcher.XLSXOptions{SheetName: ingestSheet},
		})
		res, err := cl.Clean(path, uploadTag)
		if err != nil {
			return err
		}

		if problems := cleaner.ValidateRequired(s, res); len(problems) > 0 {
			for _, p := range problems {
				zap.L().Error("validation failed", zap.String("problem", p))
			}
			return eris.Errorf("input failed validation with %d problem(s)", len(problems))
		}

		if ingestSkipAppendix {
			res.Appendix = nil
		}

		if ingestDryRun {
			zap.L().Info("dry run complete",
				zap.String("file", ingestFile),
				zap.String("upload_tag", uploadTag),
				zap.Int("leads", len(res.Leads.Rows)),
				zap.Int("owners", len(res.Owners.Rows)),
				zap.Int("appendix", len(res.Appendix)))
			return nil
		}

		eng, err := initEngine(ctx, s)
		if err != nil {
			return err
		}
		defer eng.Close() //nolint:errcheck

		if err := eng.Migrate(ctx); err != nil {
			return err
		}

		result, err := eng.Load(ctx, loadInput(res, ingestSource))
		if err != nil {
			return err
		}

		if ingestCreateIndexes {
			if err := eng.CreateIndexes(ctx); err != nil {
				return err
			}
		}

		zap.L().Info("ingest complete",
			zap.String("file", ingestFile),
			zap.String("source", ingestSource),
			zap.Int64("source_id", result.SourceID),
			zap.String("upload_tag", uploadTag),
			zap.Int("leads", result.Leads),
			zap.Int("owners", result.Owners),
			zap.Int("appendix", result.Appendix))
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "path or ftp:// URL of the input file (required)")
	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "source name for this file (required)")
	ingestCmd.Flags().StringVar(&ingestTemplate, "template", "", "CSV mapping template path (disables fuzzy matching)")
	ingestCmd.Flags().StringVar(&ingestFuzzyRules, "fuzzy-rules", "", "fuzzy rules YAML path (default: schema dir)")
	ingestCmd.Flags().StringVar(&ingestSchemaName, "schema", "", "schema name (default from config)")
	ingestCmd.Flags().StringVar(&ingestUploadTag, "upload-tag", "", "batch tag (default: generated)")
	ingestCmd.Flags().StringVar(&ingestEncoding, "encoding", "", "input charset, e.g. windows-1252 (default: utf-8)")
	ingestCmd.Flags().StringVar(&ingestSheet, "sheet", "", "XLSX sheet name (default: first sheet)")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "clean and validate without touching the store")
	ingestCmd.Flags().BoolVar(&ingestSkipAppendix, "skip-appendix", false, "discard unmapped columns instead of storing them")
	ingestCmd.Flags().BoolVar(&ingestCreateIndexes, "create-indexes", false, "create indexes after loading")
	_ = ingestCmd.MarkFlagRequired("file")
	_ = ingestCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(ingestCmd)
}
