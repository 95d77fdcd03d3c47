package ingest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	eng, err := NewSQLite(filepath.Join(t.TempDir(), "ingest.db"), engineSchema(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	require.NoError(t, eng.Migrate(context.Background()))
	return eng
}

func TestSQLiteLoad(t *testing.T) {
	ctx := context.Background()
	eng := newTestSQLite(t)

	res, err := eng.Load(ctx, sampleInput())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Leads)
	assert.Equal(t, 2, res.Owners)
	assert.Equal(t, 1, res.Appendix)
	assert.Greater(t, res.SourceID, int64(0))

	// Owner rows stay aligned with their leads.
	var leadID int64
	var name string
	err = eng.db.QueryRowContext(ctx,
		`SELECT o.lead_id, l.business_legal_name FROM owners o
		 JOIN leads l ON l.id = o.lead_id WHERE o.owner_name = ?`, "Jane Doe").
		Scan(&leadID, &name)
	require.NoError(t, err)
	assert.Equal(t, "Acme Co", name)

	// The appendix row resolves its placeholder to the second lead.
	var column, business string
	var originalRow int
	err = eng.db.QueryRowContext(ctx,
		`SELECT a.column_name, a.original_row_number, l.business_legal_name
		 FROM lead_appendix_kv a JOIN leads l ON l.id = a.lead_id`).
		Scan(&column, &originalRow, &business)
	require.NoError(t, err)
	assert.Equal(t, "Favorite Color", column)
	assert.Equal(t, 2, originalRow)
	assert.Equal(t, "Beta LLC", business)

	// Absent fields stored as NULL, not empty strings.
	var phone any
	err = eng.db.QueryRowContext(ctx,
		`SELECT phone_raw FROM leads WHERE business_legal_name = ?`, "Beta LLC").Scan(&phone)
	require.NoError(t, err)
	assert.Nil(t, phone)
}

func TestSQLiteSourceDedup(t *testing.T) {
	ctx := context.Background()
	eng := newTestSQLite(t)

	first, err := eng.Load(ctx, sampleInput())
	require.NoError(t, err)

	in := sampleInput()
	in.SourceName = "ACME SOURCE"
	second, err := eng.Load(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first.SourceID, second.SourceID)

	sources, err := eng.Sources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "Acme Source", sources[0].Name)
	assert.Equal(t, int64(4), sources[0].LeadCount)
}

func TestSQLiteRollbackOnBadAppendix(t *testing.T) {
	ctx := context.Background()
	eng := newTestSQLite(t)

	in := sampleInput()
	in.Appendix[0].Placeholder = 99
	_, err := eng.Load(ctx, in)
	require.Error(t, err)

	var leads int
	require.NoError(t, eng.db.QueryRowContext(ctx, "SELECT count(*) FROM leads").Scan(&leads))
	assert.Equal(t, 0, leads)
	var sources int
	require.NoError(t, eng.db.QueryRowContext(ctx, "SELECT count(*) FROM sources").Scan(&sources))
	assert.Equal(t, 0, sources)
}

func TestSQLiteCreateIndexes(t *testing.T) {
	eng := newTestSQLite(t)
	require.NoError(t, eng.CreateIndexes(context.Background()))

	var n int
	require.NoError(t, eng.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type = 'index' AND name LIKE 'idx_%'`).Scan(&n))
	assert.Equal(t, len(indexStatements(eng.schema)), n)
}
