package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/carelane/waitboard/internal/model"
)

// DefaultRules returns the production rule list, highest precedence first:
//
//  1. Site-specific DOM/JS patterns known to carry the live count.
//  2. Generic JS variable assignments.
//  3. Proximity search around the literal phrase "Patients In Line".
//  4. Generic waiting phrases, context-checked.
//  5. No-wait phrases (explicit zero, open).
//  6. Closed-facility phrases, false-positive-checked.
func DefaultRules() []Rule {
	rules := make([]Rule, 0, 16)
	rules = append(rules, siteRules()...)
	rules = append(rules, jsVariableRules()...)
	rules = append(rules, proximityRule())
	rules = append(rules, phraseRules()...)
	rules = append(rules, noWaitRule())
	rules = append(rules, closedRule())
	return rules
}

// Site-specific element ids and JS globals observed on the queue-widget
// pages the scraper targets.
var sitePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)id="(?:cw-)?patients-in-line"[^>]*>\s*(\d{1,3})`),
	regexp.MustCompile(`(?i)class="queue-count[^"]*"[^>]*>\s*(\d{1,3})`),
	regexp.MustCompile(`(?i)solvPatientCount\s*[:=]\s*(\d{1,3})`),
}

func siteRules() []Rule {
	out := make([]Rule, 0, len(sitePatterns))
	for i, re := range sitePatterns {
		out = append(out, numericPatternRule("site:"+strconv.Itoa(i), re, false))
	}
	return out
}

// Generic JS variable assignments, e.g. "currentPatientsInLine = 4" or
// "queueLength: 4".
var jsVariablePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)currentPatientsInLine["']?\s*[:=]\s*(\d{1,3})`),
	regexp.MustCompile(`(?i)patients_?in_?line["']?\s*[:=]\s*(\d{1,3})`),
	regexp.MustCompile(`(?i)queueLength["']?\s*[:=]\s*(\d{1,3})`),
	regexp.MustCompile(`(?i)patientsWaiting["']?\s*[:=]\s*(\d{1,3})`),
	regexp.MustCompile(`(?i)waitingCount["']?\s*[:=]\s*(\d{1,3})`),
}

func jsVariableRules() []Rule {
	out := make([]Rule, 0, len(jsVariablePatterns))
	for i, re := range jsVariablePatterns {
		out = append(out, numericPatternRule("jsvar:"+strconv.Itoa(i), re, false))
	}
	return out
}

// numericPatternRule builds a rule from a regexp whose first capture group
// is the candidate count. Implausible candidates are skipped so a later
// occurrence on the same page can still match. When contextCheck is set,
// candidates inside excluded surroundings (dates, nav, addresses) are
// rejected.
func numericPatternRule(name string, re *regexp.Regexp, contextCheck bool) Rule {
	return Rule{
		Name: name,
		Apply: func(text string) (Result, bool) {
			for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
				if len(m) < 4 {
					continue
				}
				n, err := strconv.Atoi(text[m[2]:m[3]])
				if err != nil || !plausible(n) {
					continue
				}
				if contextCheck && excludedContext(text, m[0], m[1]) {
					continue
				}
				return Result{Patients: n, Status: model.StatusOpen}, true
			}
			return Result{}, false
		},
	}
}

// proximityWindow is how far (in bytes) around the anchor phrase the
// proximity rule scans for a count.
const proximityWindow = 200

var (
	proximityAnchor = regexp.MustCompile(`(?i)patients\s+in\s+line`)
	windowInteger   = regexp.MustCompile(`\d{1,3}`)
)

// proximityRule locates the phrase "Patients In Line" and takes the
// nearest plausible integer within ±200 characters, rejecting candidates
// whose surroundings look like dates, times, phone numbers or navigation.
func proximityRule() Rule {
	return Rule{
		Name: "proximity",
		Apply: func(text string) (Result, bool) {
			for _, anchor := range proximityAnchor.FindAllStringIndex(text, -1) {
				lo := anchor[0] - proximityWindow
				if lo < 0 {
					lo = 0
				}
				hi := anchor[1] + proximityWindow
				if hi > len(text) {
					hi = len(text)
				}
				window := text[lo:hi]
				center := (anchor[0] + anchor[1]) / 2

				best := -1
				bestDist := hi - lo + 1
				for _, m := range windowInteger.FindAllStringIndex(window, -1) {
					start, end := lo+m[0], lo+m[1]
					n, err := strconv.Atoi(text[start:end])
					if err != nil || !plausible(n) {
						continue
					}
					if excludedContext(text, start, end) {
						continue
					}
					dist := center - (start+end)/2
					if dist < 0 {
						dist = -dist
					}
					if dist < bestDist {
						bestDist = dist
						best = n
					}
				}
				if best >= 0 {
					return Result{Patients: best, Status: model.StatusOpen}, true
				}
			}
			return Result{}, false
		},
	}
}

// Generic waiting phrases with the count embedded.
var phrasePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d{1,3})\s+patients?\s+in\s+line`),
	regexp.MustCompile(`(?i)(\d{1,3})\s+(?:people|patients?)\s+(?:currently\s+)?waiting`),
	regexp.MustCompile(`(?i)checked\s+in:?\s*(\d{1,3})`),
	regexp.MustCompile(`(?i)(\d{1,3})\s+in\s+(?:the\s+)?queue`),
	regexp.MustCompile(`(?i)queue\s+of\s+(\d{1,3})`),
}

func phraseRules() []Rule {
	out := make([]Rule, 0, len(phrasePatterns))
	for i, re := range phrasePatterns {
		out = append(out, numericPatternRule("phrase:"+strconv.Itoa(i), re, true))
	}
	return out
}

// Phrases that mean the queue is empty right now.
var noWaitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bno\s+(?:current\s+)?wait\b`),
	regexp.MustCompile(`(?i)\bwalk\s+right\s+in\b`),
	regexp.MustCompile(`(?i)\bno\s+one\s+(?:is\s+)?(?:in\s+line|waiting)\b`),
}

func noWaitRule() Rule {
	return Rule{
		Name: "no-wait",
		Apply: func(text string) (Result, bool) {
			for _, re := range noWaitPatterns {
				if re.MatchString(text) {
					return Result{Patients: 0, Status: model.StatusOpen}, true
				}
			}
			return Result{}, false
		},
	}
}

// Phrases that signal the facility itself is closed. Each match is
// checked against a false-positive list; "keep door closed" or "closed
// captioning" must never read as a closure.
var closedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:currently|temporarily|now)\s+closed`),
	regexp.MustCompile(`(?i)(?:location|clinic|office|facility)\s+is\s+(?:currently\s+)?closed`),
	regexp.MustCompile(`(?i)\bwe\s+are\s+closed\b`),
	regexp.MustCompile(`(?i)\bclosed\s+(?:today|until\s+further\s+notice)\b`),
}

func closedRule() Rule {
	return Rule{
		Name: "closed",
		Apply: func(text string) (Result, bool) {
			for _, re := range closedPatterns {
				for _, m := range re.FindAllStringIndex(text, -1) {
					if closedFalsePositive(text, m[0], m[1]) {
						continue
					}
					return Result{Patients: 0, Status: model.StatusClosed}, true
				}
			}
			return Result{}, false
		},
	}
}

// closedFalsePositiveTerms are words near a "closed" match that indicate
// the phrase is not about the facility's operating state.
var closedFalsePositiveTerms = []string{
	"door",
	"doors",
	"gate",
	"caption",
	"closed-toe",
	"keep",
	"lid",
	"window",
	"eyes",
}

func closedFalsePositive(text string, start, end int) bool {
	lo := start - 60
	if lo < 0 {
		lo = 0
	}
	hi := end + 60
	if hi > len(text) {
		hi = len(text)
	}
	window := strings.ToLower(text[lo:hi])
	for _, term := range closedFalsePositiveTerms {
		if strings.Contains(window, term) {
			return true
		}
	}
	return false
}
