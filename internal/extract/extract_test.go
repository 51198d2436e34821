package extract

import (
	"strings"
	"testing"

	"github.com/carelane/waitboard/internal/model"
)

func TestExtract_SiteSpecificElementID(t *testing.T) {
	html := `<div class="widget"><span id="patients-in-line" class="big">7</span></div>`
	res, ok := Default().Extract(html)
	if !ok {
		t.Fatal("expected a match")
	}
	if res.Patients != 7 {
		t.Errorf("expected 7 patients, got %d", res.Patients)
	}
	if res.Status != model.StatusOpen {
		t.Errorf("expected open status, got %s", res.Status)
	}
}

func TestExtract_JSVariableAssignment(t *testing.T) {
	cases := []struct {
		name string
		html string
		want int
	}{
		{"equals", `<script>var currentPatientsInLine = 4;</script>`, 4},
		{"colon", `<script>window.state = { queueLength: 12 };</script>`, 12},
		{"snake case", `"patients_in_line": 9,`, 9},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, ok := Default().Extract(tc.html)
			if !ok {
				t.Fatal("expected a match")
			}
			if res.Patients != tc.want {
				t.Errorf("expected %d, got %d", tc.want, res.Patients)
			}
		})
	}
}

func TestExtract_SitePatternWinsOverGenericPhrase(t *testing.T) {
	html := `<p>5 patients waiting</p><span id="patients-in-line">2</span>`
	res, ok := Default().Extract(html)
	if !ok {
		t.Fatal("expected a match")
	}
	if res.Patients != 2 {
		t.Errorf("expected site-specific rule to win with 2, got %d", res.Patients)
	}
}

func TestExtract_ProximitySearch(t *testing.T) {
	html := `<h2>Patients In Line</h2><div class="count-box"><strong>6</strong></div>`
	res, ok := Default().Extract(html)
	if !ok {
		t.Fatal("expected a match")
	}
	if res.Patients != 6 {
		t.Errorf("expected 6, got %d", res.Patients)
	}
}

func TestExtract_ProximityRejectsDateCandidates(t *testing.T) {
	// The only number near the anchor is part of a date; nothing plausible
	// remains, so extraction must fall through and fail.
	html := `<h2>Patients In Line</h2><p>Updated 6/14/2025</p>`
	if _, ok := Default().Extract(html); ok {
		t.Error("expected no match when the only candidate is inside a date")
	}
}

func TestExtract_GenericPhrases(t *testing.T) {
	cases := []struct {
		name string
		html string
		want int
	}{
		{"patients in line", `There are 3 patients in line right now.`, 3},
		{"people waiting", `12 people currently waiting`, 12},
		{"checked in", `Checked in: 8`, 8},
		{"queue of", `a queue of 5 ahead of you`, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, ok := Default().Extract(tc.html)
			if !ok {
				t.Fatal("expected a match")
			}
			if res.Patients != tc.want {
				t.Errorf("expected %d, got %d", tc.want, res.Patients)
			}
		})
	}
}

func TestExtract_PhraseRejectedInNavigationContext(t *testing.T) {
	html := `<footer>Copyright 2024 | 3 patients in line widget demo</footer>`
	if _, ok := Default().Extract(html); ok {
		t.Error("expected navigation/boilerplate context to be rejected")
	}
}

func TestExtract_ImplausibleCountRejectedThenNextRuleWins(t *testing.T) {
	// 73 is outside [0,50] and must be discarded; the later no-wait phrase
	// is the first remaining match.
	html := `73 patients in line ... actually no wait today, walk right in!`
	res, ok := Default().Extract(html)
	if !ok {
		t.Fatal("expected a match")
	}
	if res.Patients != 0 {
		t.Errorf("expected 0 patients from no-wait rule, got %d", res.Patients)
	}
	if res.Status != model.StatusOpen {
		t.Errorf("expected open, got %s", res.Status)
	}
}

func TestExtract_BoundsAreInclusive(t *testing.T) {
	res, ok := Default().Extract(`50 patients in line`)
	if !ok || res.Patients != 50 {
		t.Errorf("expected 50 accepted, got %+v ok=%v", res, ok)
	}
	if _, ok := Default().Extract(`51 patients in line`); ok {
		t.Error("expected 51 rejected as implausible")
	}
}

func TestExtract_GenericPhraseBeatsNoWait(t *testing.T) {
	// Precedence: the numeric phrase group runs before the no-wait group,
	// so a page carrying both yields the numeric result.
	html := `3 patients waiting, no wait for video visits`
	res, ok := Default().Extract(html)
	if !ok {
		t.Fatal("expected a match")
	}
	if res.Patients != 3 {
		t.Errorf("expected numeric phrase to win with 3, got %d", res.Patients)
	}
}

func TestExtract_NoWaitPhrases(t *testing.T) {
	for _, html := range []string{
		`Great news: no wait right now!`,
		`Walk right in, we are ready for you`,
		`No one is waiting at this time`,
	} {
		res, ok := Default().Extract(html)
		if !ok {
			t.Fatalf("expected no-wait match for %q", html)
		}
		if res.Patients != 0 || res.Status != model.StatusOpen {
			t.Errorf("expected zero/open for %q, got %+v", html, res)
		}
	}
}

func TestExtract_ClosedPhrases(t *testing.T) {
	res, ok := Default().Extract(`<p>This location is currently closed.</p>`)
	if !ok {
		t.Fatal("expected closed match")
	}
	if res.Status != model.StatusClosed {
		t.Errorf("expected closed, got %s", res.Status)
	}
}

func TestExtract_ClosedFalsePositives(t *testing.T) {
	for _, html := range []string{
		`Please keep door closed at all times. We are closed to deliveries after 5.`,
		`Videos feature closed captioning. Captions are now closed by default.`,
	} {
		if res, ok := Default().Extract(html); ok && res.Status == model.StatusClosed {
			t.Errorf("expected %q not to read as a closure", html)
		}
	}
}

func TestExtract_NoMatchReturnsFalse(t *testing.T) {
	if _, ok := Default().Extract(`<html><body>Welcome to our clinic.</body></html>`); ok {
		t.Error("expected no match on content-free page")
	}
}

func TestExtract_Deterministic(t *testing.T) {
	html := `<span id="patients-in-line">4</span> and 9 people waiting and no wait`
	first, ok := Default().Extract(html)
	if !ok {
		t.Fatal("expected a match")
	}
	for i := 0; i < 20; i++ {
		res, ok := Default().Extract(html)
		if !ok || res != first {
			t.Fatalf("expected identical result on run %d: got %+v vs %+v", i, res, first)
		}
	}
}

func TestExtract_LargePageStillFindsAnchor(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 500; i++ {
		b.WriteString("<p>filler paragraph with nothing useful</p>\n")
	}
	b.WriteString(`<h3>Patients In Line</h3><em>11</em>`)
	res, ok := Default().Extract(b.String())
	if !ok {
		t.Fatal("expected a match")
	}
	if res.Patients != 11 {
		t.Errorf("expected 11, got %d", res.Patients)
	}
}
