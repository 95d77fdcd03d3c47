package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/octophi/ingestor/internal/cleaner"
	"github.com/octophi/ingestor/internal/fetcher"
	"github.com/octophi/ingestor/internal/ingest"
	"github.com/octophi/ingestor/internal/schema"
)

var (
	batchSource        string
	batchSchemaName    string
	batchTemplate      string
	batchFuzzyRules    string
	batchEncoding      string
	batchDir           string
	batchConcurrency   int
	batchContinueOnErr bool
)

var batchCmd = &cobra.Command{
	Use:   "batch [file]...",
	Short: "Ingest multiple lead files concurrently",
	Long:  "Cleans and loads each file as its own transaction under its own upload tag. All files share one source when --source is set; otherwise each file's base name is used.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("ingest"); err != nil {
			return err
		}

		if batchDir != "" {
			found, err := listTabularFiles(batchDir)
			if err != nil {
				return err
			}
			args = append(args, found...)
		}
		if len(args) == 0 {
			return eris.New("batch: no input files (pass file arguments or --dir)")
		}

		s, err := loadSchema(batchSchemaName)
		if err != nil {
			return err
		}
		m, err := buildMapper(s, batchSchemaName, batchTemplate, batchFuzzyRules)
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

		cl := cleaner.New(s, m, cleaner.Options{
			ExcludeAppendix: cfg.Ingest.AppendixExclude,
			CSV:             fetcher.CSVOptions{Encoding: batchEncoding},
		})

		limit := cfg.Batch.MaxConcurrentFiles
		if batchConcurrency > 0 {
			limit = batchConcurrency
		}
		zap.L().Info("processing batch",
			zap.Int("files", len(args)),
			zap.Int("concurrency", limit))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)

		var succeeded, failed atomic.Int64
		for _, path := range args {
			g.Go(func() error {
				log := zap.L().With(zap.String("file", path))

				if err := batchOne(gctx, cl, s, eng, path); err != nil {
					failed.Add(1)
					log.Error("file failed", zap.Error(err))
					if batchContinueOnErr {
						return nil
					}
					return err
				}
				succeeded.Add(1)
				return nil
			})
		}
		err = g.Wait()

		zap.L().Info("batch complete",
			zap.Int64("succeeded", succeeded.Load()),
			zap.Int64("failed", failed.Load()))
		if err != nil {
			return err
		}
		if failed.Load() > 0 {
			return eris.Errorf("%d file(s) failed", failed.Load())
		}
		return nil
	},
}

// listTabularFiles returns every ingestible file directly under dir.
func listTabularFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: read directory %s", dir)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".csv", ".txt", ".tsv", ".xlsx":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// batchOne cleans, validates, and loads a single file under its own tag.
func batchOne(ctx context.Context, cl *cleaner.Cleaner, s *schema.Schema, eng ingest.Engine, path string) error {
	res, err := cl.Clean(path, defaultUploadTag())
	if err != nil {
		return err
	}
	if problems := cleaner.ValidateRequired(s, res); len(problems) > 0 {
		return eris.Errorf("validation failed: %s", strings.Join(problems, "; "))
	}

	source := batchSource
	if source == "" {
		source = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	_, err = eng.Load(ctx, loadInput(res, source))
	return err
}

func init() {
	batchCmd.Flags().StringVar(&batchSource, "source", "", "source name for all files (default: per-file base name)")
	batchCmd.Flags().StringVar(&batchSchemaName, "schema", "", "schema name (default from config)")
	batchCmd.Flags().StringVar(&batchTemplate, "template", "", "CSV mapping template path (disables fuzzy matching)")
	batchCmd.Flags().StringVar(&batchFuzzyRules, "fuzzy-rules", "", "fuzzy rules YAML path (default: schema dir)")
	batchCmd.Flags().StringVar(&batchEncoding, "encoding", "", "input charset (default: utf-8)")
	batchCmd.Flags().StringVar(&batchDir, "dir", "", "ingest every tabular file in this directory")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "max concurrent files (default from config)")
	batchCmd.Flags().BoolVar(&batchContinueOnErr, "continue-on-error", false, "keep going when a file fails")
	rootCmd.AddCommand(batchCmd)
}
