package ingest

import (
	"fmt"
	"strings"

	"github.com/octophi/ingestor/internal/schema"
)

// appendixTable holds overflow cells keyed to their lead.
const appendixTable = "lead_appendix_kv"

// dialect carries the SQL fragments that differ between backends. Everything
// else about the tables is derived from the schema.
type dialect struct {
	serialPK   string // primary key column definition
	idRef      string // type used for foreign key columns
	timestamp  string // created_at column definition
	sourceName string // sources.name column definition
	rowNumType string
	extraDDL   []string
}

// createStatements renders the CREATE TABLE set for a schema. Entity tables
// carry one TEXT column per non-system field; source_id references sources.
func createStatements(s *schema.Schema, d dialect) []string {
	stmts := []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS sources (
	id %s,
	name %s,
	notes TEXT,
	created_at %s
)`, d.serialPK, d.sourceName, d.timestamp)}

	stmts = append(stmts, createEntityTable(s, s.Primary(), d, ""))
	stmts = append(stmts, createEntityTable(s, s.Dependent(), d,
		fmt.Sprintf("lead_id %s NOT NULL UNIQUE REFERENCES %s(id) ON DELETE CASCADE", d.idRef, s.Primary())))

	stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id %s,
	lead_id %s NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
	source_id %s REFERENCES sources(id),
	upload_tag TEXT,
	original_row_number %s,
	column_name TEXT NOT NULL,
	value TEXT,
	created_at %s
)`, appendixTable, d.serialPK, d.idRef, s.Primary(), d.idRef, d.rowNumType, d.timestamp))

	stmts = append(stmts, d.extraDDL...)
	return stmts
}

func createEntityTable(s *schema.Schema, entity string, d dialect, leadRef string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n\tid %s", entity, d.serialPK)
	if leadRef != "" {
		fmt.Fprintf(&b, ",\n\t%s", leadRef)
	}
	for _, f := range s.Fields(entity) {
		if f.SystemGenerated {
			continue
		}
		if f.Name == "source_id" {
			fmt.Fprintf(&b, ",\n\tsource_id %s REFERENCES sources(id)", d.idRef)
			continue
		}
		fmt.Fprintf(&b, ",\n\t%s TEXT", f.Name)
	}
	fmt.Fprintf(&b, ",\n\tcreated_at %s", d.timestamp)
	b.WriteString(",\n\tupdated_at TEXT\n)")
	return b.String()
}

// indexStatements renders CREATE INDEX for the structural keys plus every
// schema field flagged with index: true.
func indexStatements(s *schema.Schema) []string {
	primary, dependent := s.Primary(), s.Dependent()
	stmts := []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_lead ON %s(lead_id)", dependent, dependent),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_lead ON %s(lead_id)", appendixTable, appendixTable),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_col ON %s(column_name)", appendixTable, appendixTable),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_upload ON %s(upload_tag)", appendixTable, appendixTable),
	}
	if s.HasField(primary, "source_id") {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_source ON %s(source_id)", primary, primary))
	}
	for _, entity := range []string{primary, dependent} {
		for _, field := range s.IndexedFields(entity) {
			stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)",
				entity, field, entity, field))
		}
	}
	return stmts
}

// loadColumns returns the insert columns for a record set, forcing source_id
// into the primary entity's list when the schema omits it.
func loadColumns(fields []string, includeSource bool) []string {
	cols := append([]string(nil), fields...)
	if includeSource {
		for _, c := range cols {
			if c == "source_id" {
				return cols
			}
		}
		cols = append(cols, "source_id")
	}
	return cols
}
