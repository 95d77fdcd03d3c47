package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/octophi/ingestor/internal/cleaner"
	"github.com/octophi/ingestor/internal/schema"
)

// SQLite implements Engine on a local file using modernc.org/sqlite, for
// ingestion runs that never touch shared infrastructure.
type SQLite struct {
	db     *sql.DB
	schema *schema.Schema
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string, s *schema.Schema) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "ingest: exec %s", pragma)
		}
	}
	return &SQLite{db: db, schema: s}, nil
}

func (s *SQLite) dialect() dialect {
	return dialect{
		serialPK:   "INTEGER PRIMARY KEY AUTOINCREMENT",
		idRef:      "INTEGER",
		timestamp:  "DATETIME NOT NULL DEFAULT (datetime('now'))",
		sourceName: "TEXT NOT NULL UNIQUE COLLATE NOCASE",
		rowNumType: "INTEGER",
	}
}

// Migrate creates the sources, entity, and appendix tables.
func (s *SQLite) Migrate(ctx context.Context) error {
	for _, stmt := range createStatements(s.schema, s.dialect()) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return eris.Wrap(err, "ingest: migrate")
		}
	}
	return nil
}

// CreateIndexes creates the structural and schema-flagged indexes.
func (s *SQLite) CreateIndexes(ctx context.Context) error {
	for _, stmt := range indexStatements(s.schema) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return eris.Wrap(err, "ingest: create indexes")
		}
	}
	return nil
}

// Load commits one cleaned file atomically.
func (s *SQLite) Load(ctx context.Context, in LoadInput) (*LoadResult, error) {
	if len(in.Owners.Rows) != len(in.Leads.Rows) {
		return nil, eris.Errorf("ingest: %d owner rows for %d lead rows", len(in.Owners.Rows), len(in.Leads.Rows))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	sourceID, err := s.ensureSource(ctx, tx, in.SourceName)
	if err != nil {
		return nil, err
	}

	leadIDs, err := s.insertLeads(ctx, tx, in.Leads, sourceID)
	if err != nil {
		return nil, err
	}

	if err := s.insertOwners(ctx, tx, in.Owners, leadIDs); err != nil {
		return nil, err
	}

	appendix, err := s.insertAppendix(ctx, tx, in, leadIDs, sourceID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
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
		Owners:   len(leadIDs),
		Appendix: appendix,
	}, nil
}

// ensureSource creates the source if new and returns its id either way.
// The NOCASE unique constraint makes matching case-insensitive.
func (s *SQLite) ensureSource(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	res, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO sources (name) VALUES (?)", name)
	if err != nil {
		return 0, eris.Wrapf(err, "ingest: insert source %s", name)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return res.LastInsertId()
	}
	var id int64
	if err := tx.QueryRowContext(ctx, "SELECT id FROM sources WHERE name = ?", name).Scan(&id); err != nil {
		return 0, eris.Wrapf(err, "ingest: fetch source %s", name)
	}
	return id, nil
}

func (s *SQLite) insertLeads(ctx context.Context, tx *sql.Tx, leads cleaner.RecordSet, sourceID int64) ([]int64, error) {
	cols := loadColumns(leads.Fields, true)
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		leads.Entity, strings.Join(cols, ", "), questionMarks(len(cols))))
	if err != nil {
		return nil, eris.Wrap(err, "ingest: prepare lead insert")
	}
	defer stmt.Close() //nolint:errcheck

	ids := make([]int64, 0, len(leads.Rows))
	for i, rec := range leads.Rows {
		res, err := stmt.ExecContext(ctx, recordValues(rec, cols, sourceID)...)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: insert lead row %d", i)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, eris.Wrap(err, "ingest: lead insert id")
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *SQLite) insertOwners(ctx context.Context, tx *sql.Tx, owners cleaner.RecordSet, leadIDs []int64) error {
	cols := append([]string{"lead_id"}, owners.Fields...)
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		owners.Entity, strings.Join(cols, ", "), questionMarks(len(cols))))
	if err != nil {
		return eris.Wrap(err, "ingest: prepare owner insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i, rec := range owners.Rows {
		vals := append([]any{leadIDs[i]}, recordValues(rec, owners.Fields, 0)...)
		if _, err := stmt.ExecContext(ctx, vals...); err != nil {
			return eris.Wrapf(err, "ingest: insert owner row %d", i)
		}
	}
	return nil
}

func (s *SQLite) insertAppendix(ctx context.Context, tx *sql.Tx, in LoadInput, leadIDs []int64, sourceID int64) (int, error) {
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (lead_id, source_id, upload_tag, original_row_number, column_name, value) VALUES (?, ?, ?, ?, ?, ?)",
		appendixTable))
	if err != nil {
		return 0, eris.Wrap(err, "ingest: prepare appendix insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, rec := range in.Appendix {
		if rec.Placeholder < 0 || rec.Placeholder >= len(leadIDs) {
			return 0, eris.Errorf("ingest: appendix placeholder %d out of range", rec.Placeholder)
		}
		_, err := stmt.ExecContext(ctx,
			leadIDs[rec.Placeholder], sourceID, in.UploadTag,
			rec.OriginalRow, rec.Column, rec.Value)
		if err != nil {
			return 0, eris.Wrap(err, "ingest: insert appendix row")
		}
	}
	return len(in.Appendix), nil
}

// Sources lists known sources with their lead counts.
func (s *SQLite) Sources(ctx context.Context) ([]SourceInfo, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT s.id, s.name, s.created_at, count(l.id)
FROM sources s LEFT JOIN %s l ON l.source_id = s.id
GROUP BY s.id, s.name, s.created_at ORDER BY s.id`, s.schema.Primary()))
	if err != nil {
		return nil, eris.Wrap(err, "ingest: query sources")
	}
	defer rows.Close() //nolint:errcheck

	var out []SourceInfo
	for rows.Next() {
		var info SourceInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.CreatedAt, &info.LeadCount); err != nil {
			return nil, eris.Wrap(err, "ingest: scan source")
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "ingest: iterate sources")
	}
	return out, nil
}

// Close closes the database file.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func questionMarks(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "?"
	}
	return strings.Join(parts, ", ")
}
