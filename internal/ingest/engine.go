// Package ingest loads cleaned record sets into a store as one atomic unit:
// source row, leads, owners, and appendix together or not at all.
package ingest

import (
	"context"

	"github.com/octophi/ingestor/internal/cleaner"
)

// LoadInput is everything one load needs: row-aligned lead and owner record
// sets, the appendix, and the source/batch identity.
type LoadInput struct {
	Leads      cleaner.RecordSet
	Owners     cleaner.RecordSet
	Appendix   []cleaner.OverflowRecord
	UploadTag  string
	SourceName string
}

// LoadResult summarizes a committed load.
type LoadResult struct {
	SourceID int64
	Leads    int
	Owners   int
	Appendix int
}

// SourceInfo describes one known source and its lead count.
type SourceInfo struct {
	ID        int64
	Name      string
	CreatedAt string
	LeadCount int64
}

// Engine is a storage backend for ingestion. Load is transactional: a
// failure anywhere leaves the store untouched.
type Engine interface {
	Migrate(ctx context.Context) error
	Load(ctx context.Context, in LoadInput) (*LoadResult, error)
	CreateIndexes(ctx context.Context) error
	Sources(ctx context.Context) ([]SourceInfo, error)
	Close() error
}
