// Package normalize applies semantic-type value normalization and
// duration-to-date resolution to raw cell values.
package normalize

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Semantic types recognized by Normalize. Unknown types fall back to TypeString.
const (
	TypeString     = "string"
	TypeAddress    = "address"
	TypePersonName = "person_name"
	TypePhone      = "phone"
	TypeIDNumber   = "id_number"
	TypeZip        = "zip"
	TypeState      = "state"
	TypeEmail      = "email"
	TypeDate       = "date"
	TypeDateTime   = "datetime"
)

// placeholders are tokens that always normalize to absent, any letter case.
var placeholders = map[string]bool{
	"na": true, "n/a": true, "none": true, "null": true, "nil": true,
	"unknown": true, "unspecified": true, "tbd": true, "nan": true,
}

var (
	nonDigitRe   = regexp.MustCompile(`\D`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// dateLayouts are tried in order; first parse wins.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"01-02-2006",
	"02/01/2006",
	"2006/01/02",
	"01/02/06",
	"20060102",
}

// datetimeLayouts are tried in order; first parse wins.
var datetimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006 15:04:05",
}

// DateFormat is the canonical output layout for date values.
const DateFormat = "2006-01-02"

// DateTimeFormat is the canonical output layout for datetime values.
const DateTimeFormat = "2006-01-02 15:04:05"

// IsPlaceholder reports whether the trimmed value is a known placeholder token.
func IsPlaceholder(v string) bool {
	return placeholders[strings.ToLower(strings.TrimSpace(v))]
}

// Normalize converts a raw cell value to its canonical form for the given
// semantic type. The second return is false when the value is absent: empty,
// a placeholder token, or unparsable for the type. Normalize is idempotent
// and never fails; malformed input degrades to absent.
func Normalize(raw string, typ string) (string, bool) {
	v := strings.TrimSpace(raw)
	if v == "" || placeholders[strings.ToLower(v)] {
		return "", false
	}

	switch typ {
	case TypePhone, TypeIDNumber:
		return digitsOnly(v)
	case TypeZip:
		digits, ok := digitsOnly(v)
		if !ok {
			return "", false
		}
		if len(digits) > 5 {
			digits = digits[:5]
		}
		return digits, true
	case TypeState:
		v = strings.ToUpper(v)
		if len(v) == 2 && isAlpha(v) {
			return v, true
		}
		return "", false
	case TypeEmail:
		v = strings.ToLower(v)
		if strings.Contains(v, "@") && strings.Contains(v, ".") {
			return v, true
		}
		return "", false
	case TypeDate:
		return normalizeDate(v)
	case TypeDateTime:
		return normalizeDateTime(v)
	case TypePersonName:
		return whitespaceRe.ReplaceAllString(foldAccents(v), " "), true
	default:
		// string, address, and any unknown semantic type: trimmed pass-through.
		return v, true
	}
}

// foldAccents strips combining marks so accented names compare and dedupe
// against their plain-ASCII spellings.
func foldAccents(v string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, v)
	if err != nil {
		return v
	}
	return out
}

func digitsOnly(v string) (string, bool) {
	digits := nonDigitRe.ReplaceAllString(v, "")
	if digits == "" {
		return "", false
	}
	return digits, true
}

func isAlpha(v string) bool {
	for _, r := range v {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func normalizeDate(v string) (string, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format(DateFormat), true
		}
	}
	return "", false
}

func normalizeDateTime(v string) (string, bool) {
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format(DateTimeFormat), true
		}
	}
	return "", false
}
