package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Duration text like "10 years", "36+ months", or a bare "5" is resolved to
// a start date by subtracting from a reference date. Years count as 365 days
// and months as 30 days: this is a fixed-day heuristic carried over from the
// upstream data feeds, not calendar arithmetic.

var (
	yearsRe  = regexp.MustCompile(`(\d+)\s*\+?\s*(?:year|yr)`)
	monthsRe = regexp.MustCompile(`(\d+)\s*\+?\s*(?:month|mo)`)
	numberRe = regexp.MustCompile(`(\d+)`)
)

const (
	daysPerYear  = 365
	daysPerMonth = 30
)

// ResolveDuration translates a free-text duration into a calendar date
// relative to ref. Returns false for placeholders, empty input, or text
// with no recognizable number.
func ResolveDuration(text string, ref time.Time) (time.Time, bool) {
	v := strings.ToLower(strings.TrimSpace(text))
	if v == "" || placeholders[v] {
		return time.Time{}, false
	}

	if m := yearsRe.FindStringSubmatch(v); m != nil {
		n, _ := strconv.Atoi(m[1])
		return ref.AddDate(0, 0, -n*daysPerYear), true
	}
	if m := monthsRe.FindStringSubmatch(v); m != nil {
		n, _ := strconv.Atoi(m[1])
		return ref.AddDate(0, 0, -n*daysPerMonth), true
	}
	if m := numberRe.FindStringSubmatch(v); m != nil {
		n, _ := strconv.Atoi(m[1])
		// No unit token: values over 12 read as months, otherwise years.
		if n > 12 {
			return ref.AddDate(0, 0, -n*daysPerMonth), true
		}
		return ref.AddDate(0, 0, -n*daysPerYear), true
	}
	return time.Time{}, false
}
