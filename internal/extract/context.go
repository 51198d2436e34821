package extract

import (
	"regexp"
	"strings"
)

// contextRadius is how many bytes around a numeric candidate are examined
// when deciding whether it sits in excluded surroundings.
const contextRadius = 40

// Patterns that mark a numeric candidate as part of something other than
// a queue count: dates, clock times, phone numbers, street addresses,
// prices, percentages.
var excludedNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{2,4}`),   // 6/14/2025
	regexp.MustCompile(`\d{1,2}:\d{2}`),             // 8:30
	regexp.MustCompile(`\(\d{3}\)\s*\d{3}`),         // (555) 123
	regexp.MustCompile(`\d{3}[-.]\d{3}[-.]\d{4}`),   // 555-123-4567
	regexp.MustCompile(`(?i)\b(19|20)\d{2}\b`),      // years
	regexp.MustCompile(`(?i)\d+\s*(?:am|pm)\b`),     // 9am
	regexp.MustCompile(`[$€£]\s*\d`),                // prices
	regexp.MustCompile(`\d\s*%`),                    // percentages
	regexp.MustCompile(`(?i)\d+\s+(?:years?|yrs?)`), // ages
}

// Words whose presence near a candidate indicates navigation, legal
// boilerplate, or address text rather than queue telemetry.
var excludedContextTerms = []string{
	"copyright",
	"privacy",
	"menu",
	"navigation",
	"navbar",
	"footer",
	"suite",
	"ste.",
	"street",
	"blvd",
	"avenue",
	"zip",
	"phone",
	"fax",
	"reviews",
	"rating",
}

// excludedContext reports whether the numeric candidate spanning
// [start,end) sits in surroundings that disqualify it.
func excludedContext(text string, start, end int) bool {
	lo := start - contextRadius
	if lo < 0 {
		lo = 0
	}
	hi := end + contextRadius
	if hi > len(text) {
		hi = len(text)
	}
	window := text[lo:hi]

	for _, re := range excludedNumberPatterns {
		if re.MatchString(window) {
			return true
		}
	}

	lower := strings.ToLower(window)
	for _, term := range excludedContextTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
