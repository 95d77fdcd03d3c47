package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDoc = `
name: monet
version: "1.0"
primary: lead
dependent: owner
exempt_required: [source]
entities:
  lead:
    fields:
      - {name: business_legal_name, type: string, required: true}
      - {name: phone_raw, type: phone}
      - {name: phone_clean, type: phone, derived_from: phone_raw}
      - {name: start_date, type: date, duration: true}
      - {name: source, type: string, required: true}
      - {name: id, type: string, system_generated: true}
  owner:
    fields:
      - {name: owner_name, type: person_name}
      - {name: owner_email, type: email}
`

func TestParse(t *testing.T) {
	t.Parallel()

	s, err := Parse([]byte(testDoc))
	require.NoError(t, err)

	assert.Equal(t, "monet", s.Name())
	assert.Equal(t, "1.0", s.Version())
	assert.Equal(t, "lead", s.Primary())
	assert.Equal(t, "owner", s.Dependent())

	t.Run("field order preserved", func(t *testing.T) {
		t.Parallel()
		fields := s.Fields("lead")
		require.Len(t, fields, 6)
		assert.Equal(t, "business_legal_name", fields[0].Name)
		assert.Equal(t, "id", fields[5].Name)
	})

	t.Run("accessors", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "phone", s.FieldType("lead", "phone_raw"))
		assert.Equal(t, "string", s.FieldType("lead", "unknown_field"))
		assert.Equal(t, "phone_raw", s.DerivedFrom("lead", "phone_clean"))
		assert.Empty(t, s.DerivedFrom("lead", "phone_raw"))
		assert.True(t, s.IsRequired("lead", "business_legal_name"))
		assert.False(t, s.IsRequired("owner", "owner_name"))
		assert.True(t, s.IsSystemGenerated("lead", "id"))
		assert.True(t, s.IsDuration("lead", "start_date"))
		assert.True(t, s.IsExemptRequired("source"))
		assert.False(t, s.IsExemptRequired("business_legal_name"))
		assert.True(t, s.HasField("owner", "owner_email"))
		assert.False(t, s.HasField("owner", "phone_raw"))
	})
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "missing primary",
			doc: `
dependent: owner
entities:
  owner: {fields: [{name: owner_name}]}
`,
		},
		{
			name: "primary not defined",
			doc: `
primary: lead
dependent: owner
entities:
  owner: {fields: [{name: owner_name}]}
`,
		},
		{
			name: "required and system generated",
			doc: `
primary: lead
dependent: owner
entities:
  lead: {fields: [{name: id, required: true, system_generated: true}]}
  owner: {fields: [{name: owner_name}]}
`,
		},
		{
			name: "derived_from unknown field",
			doc: `
primary: lead
dependent: owner
entities:
  lead: {fields: [{name: phone_clean, derived_from: phone_raw}]}
  owner: {fields: [{name: owner_name}]}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}
