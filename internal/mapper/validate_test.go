package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/octophi/ingestor/internal/schema"
)

const validateSchemaYAML = `
name: monet
primary: leads
dependent: owners
exempt_required:
  - source_id
entities:
  leads:
    fields:
      - name: id
        system_generated: true
      - name: source_id
        required: true
      - name: business_legal_name
        required: true
      - name: phone_raw
        type: phone
        required: true
      - name: phone_clean
        type: phone
        derived_from: phone_raw
  owners:
    fields:
      - name: owner_name
        type: person_name
`

func validateSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.Parse([]byte(validateSchemaYAML))
	require.NoError(t, err)
	return s
}

func TestValidateTemplate(t *testing.T) {
	t.Parallel()

	t.Run("complete template passes", func(t *testing.T) {
		t.Parallel()
		tpl := NewTemplate([]TemplatePair{
			{Incoming: "Business Name", Expected: "business_legal_name"},
			{Incoming: "Phone", Expected: "phone_raw"},
			{Incoming: "First + Last", Expected: "owner_name"},
		})
		assert.Empty(t, ValidateTemplate(validateSchema(t), tpl))
	})

	t.Run("unknown expected field", func(t *testing.T) {
		t.Parallel()
		tpl := NewTemplate([]TemplatePair{
			{Incoming: "Business Name", Expected: "business_legal_name"},
			{Incoming: "Phone", Expected: "phone_raw"},
			{Incoming: "Color", Expected: "favorite_color"},
		})
		errs := ValidateTemplate(validateSchema(t), tpl)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0], "favorite_color")
	})

	t.Run("duplicate direct mapping", func(t *testing.T) {
		t.Parallel()
		tpl := NewTemplate([]TemplatePair{
			{Incoming: "Business Name", Expected: "business_legal_name"},
			{Incoming: "Company", Expected: "business_legal_name"},
			{Incoming: "Phone", Expected: "phone_raw"},
		})
		errs := ValidateTemplate(validateSchema(t), tpl)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0], "duplicate mapping")
	})

	t.Run("uncovered required field", func(t *testing.T) {
		t.Parallel()
		tpl := NewTemplate([]TemplatePair{
			{Incoming: "Business Name", Expected: "business_legal_name"},
		})
		errs := ValidateTemplate(validateSchema(t), tpl)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0], "phone_raw")
	})

	t.Run("exempt derived and system fields not demanded", func(t *testing.T) {
		t.Parallel()
		// source_id is exempt, phone_clean is derived, id is system generated;
		// none of them should surface as uncovered.
		tpl := NewTemplate([]TemplatePair{
			{Incoming: "Business Name", Expected: "business_legal_name"},
			{Incoming: "Phone", Expected: "phone_raw"},
		})
		assert.Empty(t, ValidateTemplate(validateSchema(t), tpl))
	})

	t.Run("combination target covers required field", func(t *testing.T) {
		t.Parallel()
		tpl := NewTemplate([]TemplatePair{
			{Incoming: "Biz + Suffix", Expected: "business_legal_name"},
			{Incoming: "Phone", Expected: "phone_raw"},
		})
		assert.Empty(t, ValidateTemplate(validateSchema(t), tpl))
	})
}
