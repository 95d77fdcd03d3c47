package mapper

import (
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Rules is the fuzzy strategy's configuration: known header variants per
// canonical field plus ordered combination and computation rules.
type Rules struct {
	Fields           map[string][]string `yaml:"fields"`
	CombinationRules []CombinationRule   `yaml:"combinations"`
	ComputationRules []ComputationRule   `yaml:"computations"`
}

// LoadRules reads fuzzy matching rules from a YAML file.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "mapper: read rules %s", path)
	}
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrap(err, "mapper: unmarshal rules")
	}
	return &r, nil
}

// Fuzzy matches headers against known variants after aggressive
// normalization, so "Business Phone #", "business_phone" and "BUSINESS-PHONE"
// all land on the same canonical field.
type Fuzzy struct {
	rules      *Rules
	reverseIdx map[string]string // normalized variant -> canonical field
}

// NewFuzzy builds a fuzzy mapper from the given rules.
func NewFuzzy(rules *Rules) *Fuzzy {
	idx := make(map[string]string)
	for field, variants := range rules.Fields {
		for _, v := range variants {
			idx[NormalizeHeader(v)] = field
		}
	}
	return &Fuzzy{rules: rules, reverseIdx: idx}
}

var (
	separatorRe = regexp.MustCompile(`[_\-./\\]+`)
	symbolRe    = regexp.MustCompile(`[^a-z0-9\s]`)
	spacesRe    = regexp.MustCompile(`\s+`)
)

// NormalizeHeader reduces a header to its comparable form: lowercase,
// separators to spaces, symbols stripped, whitespace collapsed then removed.
func NormalizeHeader(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	h = separatorRe.ReplaceAllString(h, " ")
	h = symbolRe.ReplaceAllString(h, "")
	h = spacesRe.ReplaceAllString(h, " ")
	return strings.ReplaceAll(h, " ", "")
}

// MapHeaders classifies raw headers. Plain field matches are applied first;
// combination and computation rules run afterwards in declaration order and
// override any prior classification for the headers they consume. A header
// already consumed by an earlier rule is invisible to later rules.
func (f *Fuzzy) MapHeaders(headers []string) (Mapping, []CombinationMatch, []ComputationMatch) {
	mapping := make(Mapping, len(headers))
	for _, h := range headers {
		if field, ok := f.reverseIdx[NormalizeHeader(h)]; ok {
			mapping[h] = Assignment{Kind: Field, Field: field}
		} else {
			mapping[h] = Assignment{Kind: Unmapped}
		}
	}

	consumed := make(map[string]bool)
	combos := f.detectCombinations(headers, mapping, consumed)
	comps := f.detectComputations(headers, mapping, consumed)
	return mapping, combos, comps
}

func (f *Fuzzy) detectCombinations(headers []string, mapping Mapping, consumed map[string]bool) []CombinationMatch {
	var matches []CombinationMatch
	for _, rule := range f.rules.CombinationRules {
		sources := make([]string, 0, len(rule.Sources))
		for _, pattern := range rule.Sources {
			want := NormalizeHeader(pattern)
			found := ""
			for _, h := range headers {
				if !consumed[h] && NormalizeHeader(h) == want {
					found = h
					break
				}
			}
			if found == "" {
				break
			}
			sources = append(sources, found)
		}
		// Fire only when every source pattern matched a free header.
		if len(sources) != len(rule.Sources) {
			continue
		}

		sep := rule.Separator
		if sep == "" {
			sep = " "
		}
		matches = append(matches, CombinationMatch{
			TargetField: rule.TargetField,
			Sources:     sources,
			Separator:   sep,
		})
		for _, h := range sources {
			mapping[h] = Assignment{Kind: CombinationSource, Field: rule.TargetField}
			consumed[h] = true
		}
	}
	return matches
}

func (f *Fuzzy) detectComputations(headers []string, mapping Mapping, consumed map[string]bool) []ComputationMatch {
	var matches []ComputationMatch
	for _, rule := range f.rules.ComputationRules {
		source := ""
		for _, pattern := range rule.Sources {
			want := NormalizeHeader(pattern)
			for _, h := range headers {
				if !consumed[h] && NormalizeHeader(h) == want {
					source = h
					break
				}
			}
			if source != "" {
				break
			}
		}
		if source == "" {
			continue
		}

		matches = append(matches, ComputationMatch{
			TargetField: rule.TargetField,
			Source:      source,
			Computation: rule.Computation,
		})
		mapping[source] = Assignment{Kind: ComputationSource, Field: rule.TargetField}
		consumed[source] = true
	}
	return matches
}

// Combinations returns the configured combination rules in declaration order.
func (f *Fuzzy) Combinations() []CombinationRule { return f.rules.CombinationRules }

// Computations returns the configured computation rules in declaration order.
func (f *Fuzzy) Computations() []ComputationRule { return f.rules.ComputationRules }
