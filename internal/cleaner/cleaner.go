// Package cleaner turns raw tabular files into normalized, schema-shaped
// record sets ready for loading.
package cleaner

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/octophi/ingestor/internal/fetcher"
	"github.com/octophi/ingestor/internal/mapper"
	"github.com/octophi/ingestor/internal/normalize"
	"github.com/octophi/ingestor/internal/schema"
)

// Record holds one entity row. A key absent from the map means the value was
// absent in the input or dropped by normalization; present keys are never
// placeholders.
type Record map[string]string

// RecordSet is the cleaned output for one entity. Fields lists the entity's
// non-system fields in schema order; Present marks the fields that actually
// received a mapping, combination, computation, or derivation.
type RecordSet struct {
	Entity  string
	Fields  []string
	Present map[string]bool
	Rows    []Record
}

// OverflowRecord is one unmapped, non-empty cell destined for the appendix.
// Placeholder is the 0-based index into the primary record set; OriginalRow
// is the 1-based data row number in the input file.
type OverflowRecord struct {
	Placeholder int
	OriginalRow int
	Column      string
	Value       string
}

// Result is the full output of one cleaning run. Leads and Owners are
// row-aligned: Owners.Rows[i] belongs to Leads.Rows[i].
type Result struct {
	Leads     RecordSet
	Owners    RecordSet
	Appendix  []OverflowRecord
	UploadTag string
}

// Options tunes a Cleaner beyond its schema and mapper.
type Options struct {
	// ExcludeAppendix lists column names (case and whitespace insensitive)
	// whose unmapped values are discarded instead of kept in the appendix.
	ExcludeAppendix []string
	CSV             fetcher.CSVOptions
	XLSX            fetcher.XLSXOptions
	// Now supplies the reference time for duration resolution. Defaults to
	// time.Now.
	Now func() time.Time
}

// Cleaner runs the mapping, normalization and projection pipeline for one
// schema. It is safe to reuse across files.
type Cleaner struct {
	schema  *schema.Schema
	mapper  mapper.Mapper
	exclude map[string]bool
	csvOpts fetcher.CSVOptions
	xlsOpts fetcher.XLSXOptions
	now     func() time.Time
}

// New builds a Cleaner from a schema, a header mapper, and options.
func New(s *schema.Schema, m mapper.Mapper, opts Options) *Cleaner {
	exclude := make(map[string]bool, len(opts.ExcludeAppendix))
	for _, col := range opts.ExcludeAppendix {
		exclude[normalizeColumnKey(col)] = true
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Cleaner{
		schema:  s,
		mapper:  m,
		exclude: exclude,
		csvOpts: opts.CSV,
		xlsOpts: opts.XLSX,
		now:     now,
	}
}

func normalizeColumnKey(col string) string {
	return strings.ToLower(strings.TrimSpace(col))
}

// Clean reads the file at path, classifies its headers, and projects every
// non-empty row into the primary and dependent entities plus the appendix.
func (c *Cleaner) Clean(path, uploadTag string) (*Result, error) {
	headers, rows, err := c.readFile(path)
	if err != nil {
		return nil, err
	}
	return c.CleanRows(headers, rows, uploadTag)
}

func (c *Cleaner) readFile(path string) ([]string, [][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return fetcher.ReadXLSX(path, c.xlsOpts)
	case ".csv", ".txt", ".tsv":
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "cleaner: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		opts := c.csvOpts
		if opts.Delimiter == 0 && strings.EqualFold(filepath.Ext(path), ".tsv") {
			opts.Delimiter = '\t'
		}
		return fetcher.ReadCSV(f, opts)
	default:
		return nil, nil, eris.Errorf("cleaner: unsupported file type %q", filepath.Ext(path))
	}
}

// CleanRows runs the pipeline on already-loaded tabular data.
func (c *Cleaner) CleanRows(headers []string, rows [][]string, uploadTag string) (*Result, error) {
	log := zap.L().With(zap.String("upload_tag", uploadTag))

	mapping, combos, comps := c.mapper.MapHeaders(headers)

	colIdx := make(map[string]int, len(headers))
	for i, h := range headers {
		if _, ok := colIdx[h]; !ok {
			colIdx[h] = i
		}
	}

	combosByTarget := make(map[string]mapper.CombinationMatch, len(combos))
	for _, m := range combos {
		combosByTarget[m.TargetField] = m
	}
	compsByTarget := make(map[string]mapper.ComputationMatch, len(comps))
	for _, m := range comps {
		compsByTarget[m.TargetField] = m
	}

	directByField := make(map[string]string, len(mapping))
	var unmapped []string
	for _, h := range headers {
		switch mapping[h].Kind {
		case mapper.Field:
			if _, ok := directByField[mapping[h].Field]; !ok {
				directByField[mapping[h].Field] = h
			}
		case mapper.Unmapped:
			unmapped = append(unmapped, h)
		}
	}

	res := &Result{
		Leads:     c.newRecordSet(c.schema.Primary(), directByField, combosByTarget, compsByTarget),
		Owners:    c.newRecordSet(c.schema.Dependent(), directByField, combosByTarget, compsByTarget),
		UploadTag: uploadTag,
	}

	dropped := make(map[string]int)
	for rowIdx, row := range rows {
		if rowEmpty(row) {
			continue
		}
		placeholder := len(res.Leads.Rows)
		originalRow := rowIdx + 1

		cell := func(header string) (string, bool) {
			i, ok := colIdx[header]
			if !ok || i >= len(row) {
				return "", false
			}
			return row[i], true
		}

		res.Leads.Rows = append(res.Leads.Rows,
			c.projectRow(res.Leads, cell, combosByTarget, compsByTarget, directByField, dropped))
		res.Owners.Rows = append(res.Owners.Rows,
			c.projectRow(res.Owners, cell, combosByTarget, compsByTarget, directByField, dropped))

		for _, h := range unmapped {
			if c.exclude[normalizeColumnKey(h)] {
				continue
			}
			raw, ok := cell(h)
			if !ok {
				continue
			}
			if v := strings.TrimSpace(raw); v != "" {
				res.Appendix = append(res.Appendix, OverflowRecord{
					Placeholder: placeholder,
					OriginalRow: originalRow,
					Column:      h,
					Value:       v,
				})
			}
		}
	}

	for field, n := range dropped {
		log.Debug("values dropped during normalization",
			zap.String("field", field), zap.Int("count", n))
	}
	log.Info("cleaned rows",
		zap.Int("input_rows", len(rows)),
		zap.Int("leads", len(res.Leads.Rows)),
		zap.Int("appendix", len(res.Appendix)))
	return res, nil
}

func (c *Cleaner) newRecordSet(entity string, direct map[string]string,
	combos map[string]mapper.CombinationMatch, comps map[string]mapper.ComputationMatch) RecordSet {

	rs := RecordSet{Entity: entity, Present: make(map[string]bool)}
	for _, f := range c.schema.Fields(entity) {
		if f.SystemGenerated {
			continue
		}
		rs.Fields = append(rs.Fields, f.Name)
		_, hasDirect := direct[f.Name]
		_, hasCombo := combos[f.Name]
		_, hasComp := comps[f.Name]
		if hasDirect || hasCombo || hasComp {
			rs.Present[f.Name] = true
		} else if src := f.DerivedFrom; src != "" {
			_, srcDirect := direct[src]
			_, srcCombo := combos[src]
			_, srcComp := comps[src]
			if srcDirect || srcCombo || srcComp {
				rs.Present[f.Name] = true
			}
		}
	}
	return rs
}

// projectRow builds one entity record. Derived fields re-normalize their
// source field's raw value under the derived field's own type.
func (c *Cleaner) projectRow(rs RecordSet, cell func(string) (string, bool),
	combos map[string]mapper.CombinationMatch, comps map[string]mapper.ComputationMatch,
	direct map[string]string, dropped map[string]int) Record {

	rec := make(Record, len(rs.Fields))
	for _, field := range rs.Fields {
		name := field
		if src := c.schema.DerivedFrom(rs.Entity, field); src != "" {
			name = src
		}
		raw, ok := c.rawValue(name, cell, combos, comps, direct)
		if !ok {
			continue
		}
		_, viaComputation := comps[name]
		val, ok := c.normalizeValue(rs.Entity, field, raw, viaComputation)
		if !ok {
			if strings.TrimSpace(raw) != "" {
				dropped[field]++
			}
			continue
		}
		rec[field] = val
	}
	return rec
}

// rawValue fetches the pre-normalization text for a field: a direct cell, a
// separator-joined combination, or a computation source cell.
func (c *Cleaner) rawValue(field string, cell func(string) (string, bool),
	combos map[string]mapper.CombinationMatch, comps map[string]mapper.ComputationMatch,
	direct map[string]string) (string, bool) {

	if h, ok := direct[field]; ok {
		return cell(h)
	}
	if m, ok := combos[field]; ok {
		parts := make([]string, 0, len(m.Sources))
		for _, src := range m.Sources {
			if v, ok := cell(src); ok {
				if v = strings.TrimSpace(v); v != "" {
					parts = append(parts, v)
				}
			}
		}
		if len(parts) == 0 {
			return "", false
		}
		return strings.Join(parts, m.Separator), true
	}
	if m, ok := comps[field]; ok {
		return cell(m.Source)
	}
	return "", false
}

// normalizeValue applies the field's type normalizer, with the duration
// triage for fields that may carry time-in-business text instead of dates.
// Computation-sourced values always get the triage.
func (c *Cleaner) normalizeValue(entity, field, raw string, viaComputation bool) (string, bool) {
	if viaComputation || c.schema.IsDuration(entity, field) {
		return c.resolveDurationField(entity, field, raw)
	}
	return normalize.Normalize(raw, c.schema.FieldType(entity, field))
}

// resolveDurationField triages a value that may be either a date or a
// duration. Date-looking text normalizes as a date; a bare number up to 100
// is treated as whole years before the current year; anything else goes
// through the duration resolver.
func (c *Cleaner) resolveDurationField(entity, field, raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if v == "" || normalize.IsPlaceholder(v) {
		return "", false
	}
	if strings.ContainsAny(v, "-/") {
		return normalize.Normalize(v, c.schema.FieldType(entity, field))
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		if n < 0 || n > 100 {
			return "", false
		}
		return fmt.Sprintf("%d-01-01", int(float64(c.now().Year())-n)), true
	}
	if t, ok := normalize.ResolveDuration(v, c.now()); ok {
		return t.Format(normalize.DateFormat), true
	}
	return "", false
}

// ValidateRequired checks that every required, non-exempt field of both
// entities is mapped and non-empty in at least one row. It returns
// human-readable problems, empty when the result is loadable.
func ValidateRequired(s *schema.Schema, res *Result) []string {
	var errs []string
	for _, rs := range []RecordSet{res.Leads, res.Owners} {
		for _, f := range s.Fields(rs.Entity) {
			if !f.Required || f.SystemGenerated || s.IsExemptRequired(f.Name) {
				continue
			}
			if !rs.Present[f.Name] {
				errs = append(errs, fmt.Sprintf("required %s field missing: %s", rs.Entity, f.Name))
				continue
			}
			empty := true
			for _, rec := range rs.Rows {
				if _, ok := rec[f.Name]; ok {
					empty = false
					break
				}
			}
			if empty {
				errs = append(errs, fmt.Sprintf("required %s field is all empty: %s", rs.Entity, f.Name))
			}
		}
	}
	return errs
}

func rowEmpty(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
