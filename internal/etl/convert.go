package etl

// convert.go provides type coercion for the messy text fields in invoice
// batch files. Coercion failure is never an error: it yields an absent
// value, and the verdict is deferred to the validation rule chain.

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dateLayouts is the fixed precedence for free-form issue dates.
// Day-first layouts are tried before month-first, so an ambiguous input
// like "03/04/2024" parses as 3 April. This ordering is part of the data
// contract: changing it would reclassify already-loaded rows.
var dateLayouts = []string{
	"2006-1-2", // ISO
	"2006/1/2", // ISO with slashes
	"2-1-2006", // day first
	"2/1/2006",
	"1-2-2006", // month first
	"1/2/2006",
}

// ParseDate attempts each known layout in precedence order and returns the
// first successful parse. Returns ok=false if no layout matches or the
// input is empty.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// ParseAmount coerces a currency-ish string to a decimal.
// It upper-cases, strips the literal "USD" and "$" markers and any
// whitespace, then parses the remainder. Anything left over that is not a
// plain number (thousands separators included) yields ok=false.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return decimal.Decimal{}, false
	}

	s = strings.ReplaceAll(s, "USD", "")
	s = strings.ReplaceAll(s, "$", "")
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return decimal.Decimal{}, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}

	return d, true
}

// NormalizeStatus trims and upper-cases a status value so it can be matched
// against the status dimension's natural keys.
func NormalizeStatus(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// CleanCell removes common CSV artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	// Remove leading '='
	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	// Remove any surrounding quotes
	s = strings.Trim(s, `"'`)

	return s
}
