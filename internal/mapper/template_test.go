package mapper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTemplate(t *testing.T) {
	t.Parallel()

	tpl := NewTemplate([]TemplatePair{
		{Incoming: "Business Name", Expected: "business_legal_name"},
		{Incoming: "Phone", Expected: "phone_raw"},
		{Incoming: "First Name + Last Name", Expected: "owner_name"},
	})

	t.Run("direct lookup is case and whitespace insensitive", func(t *testing.T) {
		t.Parallel()
		mapping, _, _ := tpl.MapHeaders([]string{"  business name ", "PHONE"})
		assert.Equal(t, Assignment{Kind: Field, Field: "business_legal_name"}, mapping["  business name "])
		assert.Equal(t, Assignment{Kind: Field, Field: "phone_raw"}, mapping["PHONE"])
	})

	t.Run("no fuzzy recall", func(t *testing.T) {
		t.Parallel()
		// Fuzzy would match this; the template strategy must not.
		mapping, _, _ := tpl.MapHeaders([]string{"business_name"})
		assert.Equal(t, Assignment{Kind: Unmapped}, mapping["business_name"])
	})

	t.Run("plus rows become combination rules", func(t *testing.T) {
		t.Parallel()
		combos := tpl.Combinations()
		require.Len(t, combos, 1)
		assert.Equal(t, "owner_name", combos[0].TargetField)
		assert.Equal(t, []string{"First Name", "Last Name"}, combos[0].Sources)
		assert.Equal(t, " ", combos[0].Separator)
	})

	t.Run("combination fires only with all sources present", func(t *testing.T) {
		t.Parallel()
		mapping, matches, _ := tpl.MapHeaders([]string{"first name", "phone"})
		assert.Empty(t, matches)
		assert.Equal(t, Assignment{Kind: Unmapped}, mapping["first name"])

		mapping, matches, _ = tpl.MapHeaders([]string{"first name", "Last Name"})
		require.Len(t, matches, 1)
		assert.Equal(t, []string{"first name", "Last Name"}, matches[0].Sources)
		assert.Equal(t, Assignment{Kind: CombinationSource, Field: "owner_name"}, mapping["first name"])
	})

	t.Run("no computations", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, tpl.Computations())
		_, _, comps := tpl.MapHeaders([]string{"TIB"})
		assert.Empty(t, comps)
	})

	t.Run("direct pairs exclude combinations", func(t *testing.T) {
		t.Parallel()
		pairs := tpl.DirectPairs()
		require.Len(t, pairs, 2)
		assert.Equal(t, "Business Name", pairs[0].Incoming)
		assert.Equal(t, "Phone", pairs[1].Incoming)
	})
}

func TestLoadTemplate(t *testing.T) {
	t.Parallel()

	write := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "template.csv")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	t.Run("valid template", func(t *testing.T) {
		t.Parallel()
		path := write(t, "incoming_schema,expected_schema\nBusiness Name,business_legal_name\nFirst + Last,owner_name\n,ignored\n")
		tpl, err := LoadTemplate(path)
		require.NoError(t, err)

		mapping, _, _ := tpl.MapHeaders([]string{"Business Name"})
		assert.Equal(t, Assignment{Kind: Field, Field: "business_legal_name"}, mapping["Business Name"])
		assert.Len(t, tpl.Combinations(), 1)
		assert.Len(t, tpl.DirectPairs(), 1)
	})

	t.Run("missing columns", func(t *testing.T) {
		t.Parallel()
		path := write(t, "from,to\na,b\n")
		_, err := LoadTemplate(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "incoming_schema")
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := LoadTemplate(filepath.Join(t.TempDir(), "nope.csv"))
		require.Error(t, err)
	})
}
