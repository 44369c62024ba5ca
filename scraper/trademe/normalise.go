package trademe

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// priceWeekRegexp captures "$650 per week" style rent text.
	priceWeekRegexp = regexp.MustCompile(`(?i)\$[\d,]+(?:\.\d+)?.*?week`)
	bedroomsRegexp  = regexp.MustCompile(`(\d+)\s*bed`)
	bathroomsRegexp = regexp.MustCompile(`(\d+)\s*bath`)
	parkingRegexp   = regexp.MustCompile(`(\d+)\s*(?:car|parking)`)
)

// placeholders are values some layouts render instead of leaving a field out.
var placeholders = map[string]struct{}{
	"":     {},
	"n/a":  {},
	"null": {},
	"none": {},
	"-":    {},
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.Join(fields, " ")
}

// optional normalises s and returns nil for empty or placeholder values.
func optional(s string) *string {
	s = normaliseText(s)
	if _, skip := placeholders[strings.ToLower(s)]; skip {
		return nil
	}
	return &s
}

// findWeeklyPrice returns the first "$X ... week" fragment in text.
func findWeeklyPrice(text string) string {
	if !strings.Contains(text, "$") || !strings.Contains(strings.ToLower(text), "week") {
		return ""
	}
	return priceWeekRegexp.FindString(text)
}

// parseAttributes derives room-count attributes from free page text.
func parseAttributes(text string) map[string]bool {
	text = strings.ToLower(text)
	attrs := make(map[string]bool)

	if m := bedroomsRegexp.FindStringSubmatch(text); len(m) == 2 {
		attrs[m[1]+" bedrooms"] = true
	}
	if m := bathroomsRegexp.FindStringSubmatch(text); len(m) == 2 {
		attrs[m[1]+" bathrooms"] = true
	}
	if m := parkingRegexp.FindStringSubmatch(text); len(m) == 2 {
		attrs[m[1]+" parking"] = true
	}
	return attrs
}

// addressFromTitle treats the last two comma-separated parts of a title as
// the address, e.g. "Sunny unit, Mt Eden, Auckland" -> "Mt Eden, Auckland".
func addressFromTitle(title string) *string {
	if !strings.Contains(title, ",") {
		return nil
	}
	parts := strings.Split(title, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 2 {
		return nil
	}
	return optional(strings.Join(parts[len(parts)-2:], ", "))
}
