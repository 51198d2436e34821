package provider

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/carelane/waitboard/internal/model"
)

// SyntheticClient fabricates a plausible wait estimate for facilities
// with no credentialed upstream. Output is for UI continuity only and is
// always tagged ProvenanceEstimated so it can never be mistaken for an
// observation.
type SyntheticClient struct {
	nowFunc func() time.Time
	intN    func(n int) int
}

// NewSyntheticClient creates the synthetic estimator.
func NewSyntheticClient() *SyntheticClient {
	return &SyntheticClient{
		nowFunc: time.Now,
		intN:    rand.IntN,
	}
}

// WithNow sets a fixed clock for testing.
func (c *SyntheticClient) WithNow(now func() time.Time) *SyntheticClient {
	c.nowFunc = now
	return c
}

// WithIntN sets a deterministic jitter source for testing.
func (c *SyntheticClient) WithIntN(intN func(n int) int) *SyntheticClient {
	c.intN = intN
	return c
}

func (c *SyntheticClient) Kind() Kind {
	return KindSynthetic
}

func (c *SyntheticClient) Fetch(_ context.Context, f model.Facility) (*model.WaitTimeRecord, error) {
	rec := c.Estimate(f)
	return &rec, nil
}

// Estimate builds the synthetic record without the Client error plumbing;
// the orchestrator also calls it directly for BestRecord fallbacks.
func (c *SyntheticClient) Estimate(f model.Facility) model.WaitTimeRecord {
	now := c.nowFunc()

	if !f.Hours.IsOpenAt(now) {
		return model.WaitTimeRecord{
			FacilityID: f.ID,
			Status:     model.StatusClosed,
			Provenance: model.ProvenanceEstimated,
			UpdatedAt:  now,
		}
	}

	base := baseLoad(now.Hour())
	patients := base + c.intN(3)
	waitPerPatient := 12
	if f.Category == model.CategoryEmergency {
		// Emergency departments move slower and run deeper queues.
		patients += 2
		waitPerPatient = 25
	}
	wait := patients*waitPerPatient + c.intN(10)

	return model.WaitTimeRecord{
		FacilityID:     f.ID,
		WaitMinutes:    wait,
		PatientsInLine: patients,
		Status:         model.StatusOpen,
		Provenance:     model.ProvenanceEstimated,
		UpdatedAt:      now,
	}
}

// baseLoad is the expected queue depth by hour of day: quiet overnight,
// a mid-morning peak, and a smaller evening bump after work hours.
func baseLoad(hour int) int {
	switch {
	case hour < 7:
		return 0
	case hour < 10:
		return 2
	case hour < 13:
		return 4
	case hour < 17:
		return 3
	case hour < 21:
		return 4
	default:
		return 1
	}
}
