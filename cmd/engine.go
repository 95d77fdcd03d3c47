package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/octophi/ingestor/internal/cleaner"
	"github.com/octophi/ingestor/internal/db"
	"github.com/octophi/ingestor/internal/ingest"
	"github.com/octophi/ingestor/internal/mapper"
	"github.com/octophi/ingestor/internal/schema"
)

// loadSchema resolves a schema by name under the configured schema dir.
// An empty name falls back to the configured default.
func loadSchema(name string) (*schema.Schema, error) {
	if name == "" {
		name = cfg.Ingest.DefaultSchema
	}
	return schema.Load(filepath.Join(cfg.Ingest.SchemaDir, name, "schema.yaml"))
}

// buildMapper picks the classification strategy: an explicit template when
// given, otherwise the schema's fuzzy rules.
func buildMapper(s *schema.Schema, schemaName, templatePath, rulesPath string) (mapper.Mapper, error) {
	if templatePath != "" {
		tpl, err := mapper.LoadTemplate(templatePath)
		if err != nil {
			return nil, err
		}
		if problems := mapper.ValidateTemplate(s, tpl); len(problems) > 0 {
			msg := "template validation failed:"
			for _, p := range problems {
				msg += "\n  " + p
			}
			return nil, eris.New(msg)
		}
		return tpl, nil
	}

	if rulesPath == "" {
		name := schemaName
		if name == "" {
			name = cfg.Ingest.DefaultSchema
		}
		rulesPath = filepath.Join(cfg.Ingest.SchemaDir, name, "fuzzy.yaml")
	}
	rules, err := mapper.LoadRules(rulesPath)
	if err != nil {
		return nil, err
	}
	return mapper.NewFuzzy(rules), nil
}

// initEngine opens the configured store backend.
func initEngine(ctx context.Context, s *schema.Schema) (ingest.Engine, error) {
	switch cfg.Store.Driver {
	case "postgres":
		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return ingest.NewPostgres(pool, s), nil
	case "sqlite":
		return ingest.NewSQLite(cfg.Store.SQLitePath, s)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// loadInput pairs a cleaning result with its source name for loading.
func loadInput(res *cleaner.Result, source string) ingest.LoadInput {
	return ingest.LoadInput{
		Leads:      res.Leads,
		Owners:     res.Owners,
		Appendix:   res.Appendix,
		UploadTag:  res.UploadTag,
		SourceName: source,
	}
}

// defaultUploadTag builds a unique batch tag: UTC timestamp plus a short
// random suffix.
func defaultUploadTag() string {
	return fmt.Sprintf("%s-%s",
		time.Now().UTC().Format("20060102T150405"),
		uuid.New().String()[:8])
}
