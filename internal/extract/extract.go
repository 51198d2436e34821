// Package extract pulls a (patient count, status) signal out of scraped
// facility web pages using an ordered list of heuristic rules.
//
// Rules are pure functions assembled in a fixed precedence order: the
// first rule that yields a plausible value wins and later rules are never
// consulted. Given identical input the extractor always returns the same
// result, so every rule is unit-testable without HTTP.
package extract

import (
	"github.com/carelane/waitboard/internal/model"
)

// Plausibility bounds for a patient count. Candidates outside this range
// are discarded no matter which rule produced them.
const (
	minPlausibleCount = 0
	maxPlausibleCount = 50
)

// Result is a successful extraction.
type Result struct {
	Patients int
	Status   model.Status
}

// Rule is a single named heuristic. Apply returns the extracted result
// and whether the rule matched.
type Rule struct {
	Name  string
	Apply func(text string) (Result, bool)
}

// Extractor applies an ordered rule list to page text.
type Extractor struct {
	rules []Rule
}

// New creates an extractor with a custom rule order. Used by tests to
// probe individual rules; production code uses Default.
func New(rules ...Rule) *Extractor {
	return &Extractor{rules: rules}
}

// Default returns the extractor with the production rule order.
func Default() *Extractor {
	return New(DefaultRules()...)
}

// Extract runs the rules in order against the page text. The second
// return value is false when no rule matched, which tells the caller to
// fall back further.
func (e *Extractor) Extract(text string) (Result, bool) {
	for _, r := range e.rules {
		res, ok := r.Apply(text)
		if !ok {
			continue
		}
		if res.Patients < minPlausibleCount || res.Patients > maxPlausibleCount {
			continue
		}
		return res, true
	}
	return Result{}, false
}

// plausible reports whether n is an acceptable patient count.
func plausible(n int) bool {
	return n >= minPlausibleCount && n <= maxPlausibleCount
}
