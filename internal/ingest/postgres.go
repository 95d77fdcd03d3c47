package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/octophi/ingestor/internal/cleaner"
	"github.com/octophi/ingestor/internal/db"
	"github.com/octophi/ingestor/internal/schema"
)

// Postgres implements Engine on a pgx pool. Leads are inserted row by row so
// generated IDs come back in input order; owners and appendix rows go in via
// COPY inside the same transaction.
type Postgres struct {
	pool   db.Pool
	schema *schema.Schema
}

// NewPostgres wraps an open pool.
func NewPostgres(pool db.Pool, s *schema.Schema) *Postgres {
	return &Postgres{pool: pool, schema: s}
}

func (p *Postgres) dialect() dialect {
	return dialect{
		serialPK:   "BIGSERIAL PRIMARY KEY",
		idRef:      "BIGINT",
		timestamp:  "TIMESTAMPTZ NOT NULL DEFAULT now()",
		sourceName: "TEXT NOT NULL",
		rowNumType: "INTEGER",
		extraDDL: []string{
			"CREATE UNIQUE INDEX IF NOT EXISTS sources_name_key ON sources ((upper(name)))",
		},
	}
}

// Migrate creates the sources, entity, and appendix tables.
func (p *Postgres) Migrate(ctx context.Context) error {
	for _, stmt := range createStatements(p.schema, p.dialect()) {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return eris.Wrap(err, "ingest: migrate")
		}
	}
	return nil
}

// CreateIndexes creates the structural and schema-flagged indexes.
func (p *Postgres) CreateIndexes(ctx context.Context) error {
	for _, stmt := range indexStatements(p.schema) {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return eris.Wrap(err, "ingest: create indexes")
		}
	}
	return nil
}

// Load commits one cleaned file atomically.
func (p *Postgres) Load(ctx context.Context, in LoadInput) (*LoadResult, error) {
	if len(in.Owners.Rows) != len(in.Leads.Rows) {
		return nil, eris.Errorf("ingest: %d owner rows for %d lead rows", len(in.Owners.Rows), len(in.Leads.Rows))
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	sourceID, err := p.ensureSource(ctx, tx, in.SourceName)
	if err != nil {
		return nil, err
	}

	leadIDs, err := p.insertLeads(ctx, tx, in.Leads, sourceID)
	if err != nil {
		return nil, err
	}

	owners, err := p.insertOwners(ctx, tx, in.Owners, leadIDs)
	if err != nil {
		return nil, err
	}

	appendix, err := p.insertAppendix(ctx, tx, in, leadIDs, sourceID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "ingest: commit tx")
	}

	zap.L().Info("load committed",
		zap.String("source", in.SourceName),
		zap.Int64("source_id", sourceID),
		zap.Int("leads", len(leadIDs)),
		zap.Int("appendix", appendix))
	return &LoadResult{
		SourceID: sourceID,
		Leads:    len(leadIDs),
		Owners:   owners,
		Appendix: appendix,
	}, nil
}

// ensureSource creates the source if new and returns its id either way.
// Matching is case-insensitive via the unique index on upper(name).
func (p *Postgres) ensureSource(ctx context.Context, tx pgx.Tx, name string) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx,
		"INSERT INTO sources (name) VALUES ($1) ON CONFLICT DO NOTHING RETURNING id",
		name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, eris.Wrapf(err, "ingest: insert source %s", name)
	}
	err = tx.QueryRow(ctx,
		"SELECT id FROM sources WHERE upper(name) = upper($1)",
		name).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "ingest: fetch source %s", name)
	}
	return id, nil
}

func (p *Postgres) insertLeads(ctx context.Context, tx pgx.Tx, leads cleaner.RecordSet, sourceID int64) ([]int64, error) {
	cols := loadColumns(leads.Fields, true)
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		db.SanitizeTable(leads.Entity), db.QuoteAndJoin(cols), db.Placeholders(len(cols)))

	ids := make([]int64, 0, len(leads.Rows))
	for i, rec := range leads.Rows {
		var id int64
		if err := tx.QueryRow(ctx, sql, recordValues(rec, cols, sourceID)...).Scan(&id); err != nil {
			return nil, eris.Wrapf(err, "ingest: insert lead row %d", i)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (p *Postgres) insertOwners(ctx context.Context, tx pgx.Tx, owners cleaner.RecordSet, leadIDs []int64) (int, error) {
	cols := append([]string{"lead_id"}, owners.Fields...)
	rows := make([][]any, 0, len(owners.Rows))
	for i, rec := range owners.Rows {
		rows = append(rows, append([]any{leadIDs[i]}, recordValues(rec, owners.Fields, 0)...))
	}
	n, err := db.CopyFrom(ctx, tx, owners.Entity, cols, rows)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (p *Postgres) insertAppendix(ctx context.Context, tx pgx.Tx, in LoadInput, leadIDs []int64, sourceID int64) (int, error) {
	cols := []string{"lead_id", "source_id", "upload_tag", "original_row_number", "column_name", "value"}
	rows := make([][]any, 0, len(in.Appendix))
	for _, rec := range in.Appendix {
		if rec.Placeholder < 0 || rec.Placeholder >= len(leadIDs) {
			return 0, eris.Errorf("ingest: appendix placeholder %d out of range", rec.Placeholder)
		}
		rows = append(rows, []any{
			leadIDs[rec.Placeholder], sourceID, in.UploadTag,
			rec.OriginalRow, rec.Column, rec.Value,
		})
	}
	n, err := db.CopyFrom(ctx, tx, appendixTable, cols, rows)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Sources lists known sources with their lead counts.
func (p *Postgres) Sources(ctx context.Context) ([]SourceInfo, error) {
	sql := fmt.Sprintf(`SELECT s.id, s.name, s.created_at, count(l.id)
FROM sources s LEFT JOIN %s l ON l.source_id = s.id
GROUP BY s.id, s.name, s.created_at ORDER BY s.id`, db.SanitizeTable(p.schema.Primary()))

	rows, err := p.pool.Query(ctx, sql)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: query sources")
	}
	defer rows.Close()

	var out []SourceInfo
	for rows.Next() {
		var (
			info      SourceInfo
			createdAt time.Time
		)
		if err := rows.Scan(&info.ID, &info.Name, &createdAt, &info.LeadCount); err != nil {
			return nil, eris.Wrap(err, "ingest: scan source")
		}
		info.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "ingest: iterate sources")
	}
	return out, nil
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// recordValues orders a record's values to match cols; absent fields become
// NULL and source_id gets the resolved id.
func recordValues(rec cleaner.Record, cols []string, sourceID int64) []any {
	vals := make([]any, 0, len(cols))
	for _, c := range cols {
		if c == "source_id" {
			vals = append(vals, sourceID)
			continue
		}
		if v, ok := rec[c]; ok {
			vals = append(vals, v)
		} else {
			vals = append(vals, nil)
		}
	}
	return vals
}
