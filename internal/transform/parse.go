// Package transform normalizes raw scraped field bags into canonical
// listings. Parse failures are explicit values, never panics, so the writer
// can decide per field whether to null out, drop the record or keep going.
package transform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParseError describes a field that could not be normalized.
type ParseError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s %q: %s", e.Field, e.Value, e.Reason)
}

// dutchMonths maps lowercase Dutch month names to their number.
var dutchMonths = map[string]time.Month{
	"januari":   time.January,
	"februari":  time.February,
	"maart":     time.March,
	"april":     time.April,
	"mei":       time.May,
	"juni":      time.June,
	"juli":      time.July,
	"augustus":  time.August,
	"september": time.September,
	"oktober":   time.October,
	"november":  time.November,
	"december":  time.December,
}

var (
	totalRoomsRe = regexp.MustCompile(`(\d+)\s+kamers?`)
	bedroomsRe   = regexp.MustCompile(`\((\d+)\s+slaapkamers?\)`)
)

// ReduceToInt strips every non-digit character and parses the remainder.
// "€ 325.000 kosten koper" becomes 325000.
func ReduceToInt(field, s string) (int, error) {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	if b.Len() == 0 {
		return 0, &ParseError{Field: field, Value: s, Reason: "no digits"}
	}

	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0, &ParseError{Field: field, Value: s, Reason: "integer overflow"}
	}
	return n, nil
}

// ParseDutchDate parses the site's natural-language date format,
// "9 november 2013" -> 2013-11-09. Month matching is case-insensitive.
func ParseDutchDate(field, s string) (time.Time, error) {
	parts := strings.Fields(strings.ToLower(s))
	if len(parts) != 3 {
		return time.Time{}, &ParseError{Field: field, Value: s, Reason: "expected \"day month year\""}
	}

	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, &ParseError{Field: field, Value: s, Reason: "invalid day"}
	}

	month, ok := dutchMonths[parts[1]]
	if !ok {
		return time.Time{}, &ParseError{Field: field, Value: s, Reason: "unknown month " + parts[1]}
	}

	year, err := strconv.Atoi(parts[2])
	if err != nil {
		return time.Time{}, &ParseError{Field: field, Value: s, Reason: "invalid year"}
	}

	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), nil
}

// ParseRooms extracts the total room count and, when the parenthetical is
// present, the bedroom count. "5 kamers (3 slaapkamers)" -> (5, 3);
// "3 kamers" -> (3, nil). A missing total is an error, missing bedrooms are
// not.
func ParseRooms(s string) (total int, bedrooms *int, err error) {
	m := totalRoomsRe.FindStringSubmatch(s)
	if m == nil {
		return 0, nil, &ParseError{Field: "Aantal kamers", Value: s, Reason: "no room count"}
	}

	total, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return 0, nil, &ParseError{Field: "Aantal kamers", Value: s, Reason: "invalid room count"}
	}

	if bm := bedroomsRe.FindStringSubmatch(s); bm != nil {
		if n, bedErr := strconv.Atoi(bm[1]); bedErr == nil {
			bedrooms = &n
		}
	}

	return total, bedrooms, nil
}

// SplitPostcodeCity splits the composite header string into its postcode
// (first two whitespace-delimited tokens) and city (the rest, which may be
// multiple words). "5035 DD Tilburg" -> ("5035 DD", "Tilburg").
func SplitPostcodeCity(s string) (postcode, city string, err error) {
	parts := strings.Fields(s)
	if len(parts) < 3 {
		return "", "", &ParseError{Field: "Postcode", Value: s, Reason: "expected postcode and city"}
	}

	return parts[0] + " " + parts[1], strings.Join(parts[2:], " "), nil
}
