// Package schema loads entity/field metadata used to shape cleaned records.
package schema

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// FieldDef describes one canonical field of an entity.
type FieldDef struct {
	Name            string `yaml:"name"`
	Type            string `yaml:"type"`
	Required        bool   `yaml:"required"`
	DerivedFrom     string `yaml:"derived_from"`
	SystemGenerated bool   `yaml:"system_generated"`
	// Duration marks the field whose values may arrive as a time-in-business
	// duration ("5", "3 years") instead of a calendar date.
	Duration bool `yaml:"duration"`
	// Index requests a store index on this field.
	Index bool `yaml:"index"`
}

// entityDef is the on-disk shape of one entity.
type entityDef struct {
	Fields []FieldDef `yaml:"fields"`
}

type document struct {
	Name           string               `yaml:"name"`
	Version        string               `yaml:"version"`
	Primary        string               `yaml:"primary"`
	Dependent      string               `yaml:"dependent"`
	ExemptRequired []string             `yaml:"exempt_required"`
	Entities       map[string]entityDef `yaml:"entities"`
}

// Schema is an immutable, indexed view of a schema document.
type Schema struct {
	name      string
	version   string
	primary   string
	dependent string
	exempt    map[string]bool
	fields    map[string][]FieldDef          // entity -> ordered fields
	byName    map[string]map[string]FieldDef // entity -> field name -> def
}

// Load reads and validates a schema document from a YAML file.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "schema: read %s", path)
	}
	return Parse(data)
}

// Parse builds a Schema from raw YAML bytes.
func Parse(data []byte) (*Schema, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "schema: unmarshal")
	}

	s := &Schema{
		name:      doc.Name,
		version:   doc.Version,
		primary:   doc.Primary,
		dependent: doc.Dependent,
		exempt:    make(map[string]bool, len(doc.ExemptRequired)),
		fields:    make(map[string][]FieldDef, len(doc.Entities)),
		byName:    make(map[string]map[string]FieldDef, len(doc.Entities)),
	}
	for _, f := range doc.ExemptRequired {
		s.exempt[f] = true
	}
	for entity, def := range doc.Entities {
		s.fields[entity] = def.Fields
		idx := make(map[string]FieldDef, len(def.Fields))
		for _, f := range def.Fields {
			idx[f.Name] = f
		}
		s.byName[entity] = idx
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Schema) validate() error {
	if s.primary == "" {
		return eris.New("schema: primary entity not declared")
	}
	if _, ok := s.fields[s.primary]; !ok {
		return eris.Errorf("schema: primary entity %q not defined", s.primary)
	}
	if s.dependent == "" {
		return eris.New("schema: dependent entity not declared")
	}
	if _, ok := s.fields[s.dependent]; !ok {
		return eris.Errorf("schema: dependent entity %q not defined", s.dependent)
	}

	for entity, fields := range s.fields {
		for _, f := range fields {
			if f.Required && f.SystemGenerated {
				return eris.Errorf("schema: %s.%s cannot be both required and system_generated", entity, f.Name)
			}
			if f.DerivedFrom != "" {
				if _, ok := s.byName[entity][f.DerivedFrom]; !ok {
					return eris.Errorf("schema: %s.%s derived_from %q does not name a field of the same entity",
						entity, f.Name, f.DerivedFrom)
				}
			}
		}
	}
	return nil
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// Version returns the schema version string.
func (s *Schema) Version() string { return s.version }

// Primary returns the primary entity name.
func (s *Schema) Primary() string { return s.primary }

// Dependent returns the dependent entity name.
func (s *Schema) Dependent() string { return s.dependent }

// Entities lists all entity names.
func (s *Schema) Entities() []string {
	out := make([]string, 0, len(s.fields))
	for e := range s.fields {
		out = append(out, e)
	}
	return out
}

// Fields returns the ordered field definitions for an entity.
func (s *Schema) Fields(entity string) []FieldDef {
	return s.fields[entity]
}

// FieldType returns the semantic type of a field, defaulting to "string".
func (s *Schema) FieldType(entity, field string) string {
	if f, ok := s.byName[entity][field]; ok && f.Type != "" {
		return f.Type
	}
	return "string"
}

// DerivedFrom returns the source field name if the field is derived, else "".
func (s *Schema) DerivedFrom(entity, field string) string {
	return s.byName[entity][field].DerivedFrom
}

// IsRequired reports whether a field is required.
func (s *Schema) IsRequired(entity, field string) bool {
	return s.byName[entity][field].Required
}

// IsSystemGenerated reports whether a field is populated by the store.
func (s *Schema) IsSystemGenerated(entity, field string) bool {
	return s.byName[entity][field].SystemGenerated
}

// IsDuration reports whether a field carries time-in-business durations.
func (s *Schema) IsDuration(entity, field string) bool {
	return s.byName[entity][field].Duration
}

// IndexedFields returns the entity's fields flagged for a store index,
// in schema order.
func (s *Schema) IndexedFields(entity string) []string {
	var out []string
	for _, f := range s.fields[entity] {
		if f.Index {
			out = append(out, f.Name)
		}
	}
	return out
}

// IsExemptRequired reports whether a required field is supplied by the
// caller rather than expected in input files.
func (s *Schema) IsExemptRequired(field string) bool {
	return s.exempt[field]
}

// HasField reports whether the entity declares the field.
func (s *Schema) HasField(entity, field string) bool {
	_, ok := s.byName[entity][field]
	return ok
}
