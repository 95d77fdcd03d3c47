// Package mapper classifies raw tabular headers into canonical schema
// fields, combination sources, computation sources, or unmapped columns.
package mapper

// Kind is the classification state of a raw header.
type Kind int

const (
	// Unmapped headers have no canonical field; their values go to the appendix.
	Unmapped Kind = iota
	// Field headers map directly to a canonical field.
	Field
	// CombinationSource headers are consumed by a combination rule.
	CombinationSource
	// ComputationSource headers are consumed by a computation rule.
	ComputationSource
)

// Assignment records what a raw header resolved to. Field holds the
// canonical field name for Kind Field, or the rule's target field for
// consumed headers.
type Assignment struct {
	Kind  Kind
	Field string
}

// Mapping assigns every raw header exactly one classification state.
type Mapping map[string]Assignment

// CombinationRule merges two or more source columns into one target field.
// All source patterns must match present headers for the rule to fire.
type CombinationRule struct {
	TargetField string   `yaml:"target_field"`
	Sources     []string `yaml:"sources"`
	Separator   string   `yaml:"separator"`
}

// ComputationRule derives a target field from the first header matching any
// source pattern, via a named computation.
type ComputationRule struct {
	TargetField string   `yaml:"target_field"`
	Sources     []string `yaml:"sources"`
	Computation string   `yaml:"computation"`
}

// ComputationDurationToDate converts time-in-business text to a start date.
const ComputationDurationToDate = "duration_to_date"

// CombinationMatch is a fired combination rule, with the actual raw headers
// matched for each source pattern, in rule order.
type CombinationMatch struct {
	TargetField string
	Sources     []string
	Separator   string
}

// ComputationMatch is a fired computation rule with the matched raw header.
type ComputationMatch struct {
	TargetField string
	Source      string
	Computation string
}

// Mapper classifies raw headers. Implementations are stateless values built
// from their rule configuration; MapHeaders may be called for any number of
// files.
type Mapper interface {
	MapHeaders(headers []string) (Mapping, []CombinationMatch, []ComputationMatch)
	Combinations() []CombinationRule
	Computations() []ComputationRule
}
