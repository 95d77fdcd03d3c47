package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		typ  string
		want string
		ok   bool
	}{
		{"string trims", "  Acme Co  ", TypeString, "Acme Co", true},
		{"string empty after trim", "   ", TypeString, "", false},
		{"address trims", " 1 Main St ", TypeAddress, "1 Main St", true},
		{"person name collapses runs", "  Jane   Q.  Doe ", TypePersonName, "Jane Q. Doe", true},
		{"person name folds accents", "José García", TypePersonName, "Jose Garcia", true},
		{"person name folds precomposed", "Renée Nüñez", TypePersonName, "Renee Nunez", true},
		{"phone strips punctuation", "(555) 123-4567", TypePhone, "5551234567", true},
		{"phone no digits", "call me", TypePhone, "", false},
		{"id number digits only", "12-3456789", TypeIDNumber, "123456789", true},
		{"zip first five", "98101-4410", TypeZip, "98101", true},
		{"zip short kept", "501", TypeZip, "501", true},
		{"state uppercased", "wa", TypeState, "WA", true},
		{"state long name rejected", "Washington", TypeState, "", false},
		{"state digits rejected", "W1", TypeState, "", false},
		{"email lowercased", "Jane@Example.COM", TypeEmail, "jane@example.com", true},
		{"email missing dot", "jane@example", TypeEmail, "", false},
		{"email missing at", "jane.example.com", TypeEmail, "", false},
		{"date iso", "2020-01-15", TypeDate, "2020-01-15", true},
		{"date us slash", "01/15/2020", TypeDate, "2020-01-15", true},
		{"date us dash", "01-15-2020", TypeDate, "2020-01-15", true},
		{"date dmy fallback", "15/01/2020", TypeDate, "2020-01-15", true},
		{"date compact", "20200115", TypeDate, "2020-01-15", true},
		{"date garbage", "sometime soon", TypeDate, "", false},
		{"datetime space", "2020-01-15 09:30:00", TypeDateTime, "2020-01-15 09:30:00", true},
		{"datetime t-separated", "2020-01-15T09:30:00", TypeDateTime, "2020-01-15 09:30:00", true},
		{"datetime garbage", "noon-ish", TypeDateTime, "", false},
		{"unknown type falls back to string", " x ", "sic_code", "x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Normalize(tt.raw, tt.typ)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	inputs := map[string][]string{
		TypeString:     {"Acme Co", "  padded  "},
		TypePersonName: {"Jane   Doe", "Jane Doe"},
		TypePhone:      {"(555) 123-4567", "5551234567"},
		TypeIDNumber:   {"12-3456789"},
		TypeZip:        {"98101-4410", "98101"},
		TypeState:      {"wa", "WA"},
		TypeEmail:      {"Jane@Example.COM"},
		TypeDate:       {"01/15/2020", "2020-01-15", "20200115"},
		TypeDateTime:   {"2020-01-15T09:30:00", "2020-01-15 09:30:00"},
	}

	for typ, values := range inputs {
		for _, raw := range values {
			once, ok := Normalize(raw, typ)
			if !ok {
				continue
			}
			twice, ok2 := Normalize(once, typ)
			require.True(t, ok2, "type %s value %q lost on second pass", typ, raw)
			assert.Equal(t, once, twice, "type %s value %q not idempotent", typ, raw)
		}
	}
}

func TestNormalizePlaceholdersUniversal(t *testing.T) {
	t.Parallel()

	tokens := []string{"na", "N/A", "None", "NULL", "nil", "Unknown", "UNSPECIFIED", "tbd", "NaN"}
	types := []string{
		TypeString, TypeAddress, TypePersonName, TypePhone, TypeIDNumber,
		TypeZip, TypeState, TypeEmail, TypeDate, TypeDateTime, "made_up_type",
	}

	for _, tok := range tokens {
		for _, typ := range types {
			_, ok := Normalize(tok, typ)
			assert.False(t, ok, "placeholder %q should be absent for type %s", tok, typ)
		}
	}
}
