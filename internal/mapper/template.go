package mapper

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/octophi/ingestor/internal/fetcher"
)

// TemplatePair is one row of a mapping template: an incoming header (or a
// " + "-joined combination of headers) and the canonical field it feeds.
type TemplatePair struct {
	Incoming string
	Expected string
}

// Template maps headers by exact lookup against an explicit, auditable list
// of pairs. Matching is lowercase/trim only; recurring sources get
// predictable, repeatable results with no fuzzy recall.
type Template struct {
	pairs        []TemplatePair
	direct       map[string]string // lowercased incoming -> expected field
	combinations []CombinationRule
}

const combinationSeparator = "+"

// LoadTemplate reads a CSV mapping template with columns
// incoming_schema,expected_schema.
func LoadTemplate(path string) (*Template, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "mapper: open template %s", path)
	}
	defer f.Close() //nolint:errcheck

	headers, rows, err := fetcher.ReadCSV(f, fetcher.CSVOptions{})
	if err != nil {
		return nil, eris.Wrap(err, "mapper: read template")
	}

	incomingIdx, expectedIdx := -1, -1
	for i, h := range headers {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "incoming_schema":
			incomingIdx = i
		case "expected_schema":
			expectedIdx = i
		}
	}
	if incomingIdx < 0 || expectedIdx < 0 {
		return nil, eris.New("mapper: template must have incoming_schema and expected_schema columns")
	}

	var pairs []TemplatePair
	for _, row := range rows {
		incoming := strings.TrimSpace(row[incomingIdx])
		expected := strings.TrimSpace(row[expectedIdx])
		if incoming == "" || expected == "" {
			continue
		}
		pairs = append(pairs, TemplatePair{Incoming: incoming, Expected: expected})
	}
	return NewTemplate(pairs), nil
}

// NewTemplate builds a template mapper from explicit pairs. Pairs whose
// incoming header contains the "+" combination separator become combination
// rules joining the split source names with a single space.
func NewTemplate(pairs []TemplatePair) *Template {
	t := &Template{
		pairs:  pairs,
		direct: make(map[string]string, len(pairs)),
	}
	for _, p := range pairs {
		if strings.Contains(p.Incoming, combinationSeparator) {
			parts := strings.Split(p.Incoming, combinationSeparator)
			sources := make([]string, 0, len(parts))
			for _, s := range parts {
				if s = strings.TrimSpace(s); s != "" {
					sources = append(sources, s)
				}
			}
			if len(sources) > 1 {
				t.combinations = append(t.combinations, CombinationRule{
					TargetField: p.Expected,
					Sources:     sources,
					Separator:   " ",
				})
				continue
			}
		}
		t.direct[normalizeTemplateKey(p.Incoming)] = p.Expected
	}
	return t
}

func normalizeTemplateKey(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// MapHeaders classifies raw headers by exact normalized lookup, then applies
// combination rules in declaration order; combination sources override any
// direct classification they previously received.
func (t *Template) MapHeaders(headers []string) (Mapping, []CombinationMatch, []ComputationMatch) {
	mapping := make(Mapping, len(headers))
	for _, h := range headers {
		if field, ok := t.direct[normalizeTemplateKey(h)]; ok {
			mapping[h] = Assignment{Kind: Field, Field: field}
		} else {
			mapping[h] = Assignment{Kind: Unmapped}
		}
	}

	consumed := make(map[string]bool)
	var matches []CombinationMatch
	for _, rule := range t.combinations {
		sources := make([]string, 0, len(rule.Sources))
		for _, pattern := range rule.Sources {
			want := normalizeTemplateKey(pattern)
			found := ""
			for _, h := range headers {
				if !consumed[h] && normalizeTemplateKey(h) == want {
					found = h
					break
				}
			}
			if found == "" {
				break
			}
			sources = append(sources, found)
		}
		if len(sources) != len(rule.Sources) {
			continue
		}

		matches = append(matches, CombinationMatch{
			TargetField: rule.TargetField,
			Sources:     sources,
			Separator:   rule.Separator,
		})
		for _, h := range sources {
			mapping[h] = Assignment{Kind: CombinationSource, Field: rule.TargetField}
			consumed[h] = true
		}
	}

	// Templates are explicit 1:1 mappings; no computation rules.
	return mapping, matches, nil
}

// Combinations returns combination rules parsed from "+"-joined template rows.
func (t *Template) Combinations() []CombinationRule { return t.combinations }

// Computations always returns nil; the template strategy defines none.
func (t *Template) Computations() []ComputationRule { return nil }

// DirectPairs returns the non-combination template rows, in file order.
func (t *Template) DirectPairs() []TemplatePair {
	var out []TemplatePair
	for _, p := range t.pairs {
		if !strings.Contains(p.Incoming, combinationSeparator) {
			out = append(out, p)
		}
	}
	return out
}
