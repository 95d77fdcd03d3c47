package mapper

import (
	"fmt"

	"github.com/octophi/ingestor/internal/schema"
)

// ValidateTemplate checks a mapping template against the schema before any
// cleaning runs. It accumulates human-readable problems instead of failing
// on the first:
//
//  1. every expected field must exist in the primary or dependent entity,
//  2. no two incoming columns may map directly to the same expected field,
//  3. required fields that are neither exempt nor derived must be covered
//     by a direct mapping or a combination target.
func ValidateTemplate(s *schema.Schema, t *Template) []string {
	var errs []string

	expected := make(map[string]bool)
	for _, p := range t.DirectPairs() {
		expected[p.Expected] = true
	}
	for _, c := range t.Combinations() {
		expected[c.TargetField] = true
	}

	for field := range expected {
		if !s.HasField(s.Primary(), field) && !s.HasField(s.Dependent(), field) {
			errs = append(errs, fmt.Sprintf(
				"template maps to field %q which is not in schema (%s or %s)",
				field, s.Primary(), s.Dependent()))
		}
	}

	seen := make(map[string]string)
	for _, p := range t.DirectPairs() {
		if prev, ok := seen[p.Expected]; ok && prev != p.Incoming {
			errs = append(errs, fmt.Sprintf(
				"duplicate mapping: incoming columns %q and %q both map to %q",
				prev, p.Incoming, p.Expected))
		}
		seen[p.Expected] = p.Incoming
	}

	for _, entity := range []string{s.Primary(), s.Dependent()} {
		for _, f := range s.Fields(entity) {
			if !f.Required || f.SystemGenerated {
				continue
			}
			if s.IsExemptRequired(f.Name) || f.DerivedFrom != "" {
				continue
			}
			if !expected[f.Name] {
				errs = append(errs, fmt.Sprintf(
					"required field %q (%s) is not mapped in template and is not derived",
					f.Name, entity))
			}
		}
	}

	return errs
}
