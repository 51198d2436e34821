package provider

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/carelane/waitboard/internal/model"
)

// noSlotsSentinel is the plain-text body some deployments return instead
// of an empty slot list. Treated identically to "no future slot".
const noSlotsSentinel = "no slots expected"

type slotResponse struct {
	Slots []slot `json:"slots"`
}

type slot struct {
	Start string `json:"start"`
}

// slotTimeLayouts are tried in order when parsing slot start timestamps.
// RFC 3339 covers fractional seconds; the bare layouts cover upstreams
// that omit the zone.
var slotTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// SlotAvailabilityClient derives a synthetic "wait" from the facility's
// reservation calendar: minutes until the next slot at or after now.
type SlotAvailabilityClient struct {
	transport *Transport
	policy    HostPolicy
	retries   int
}

// NewSlotAvailabilityClient creates the slot provider client. One retry;
// the calendar is a secondary signal.
func NewSlotAvailabilityClient(transport *Transport, policy HostPolicy) *SlotAvailabilityClient {
	return &SlotAvailabilityClient{transport: transport, policy: policy, retries: 1}
}

func (c *SlotAvailabilityClient) Kind() Kind {
	return KindSlotAvailability
}

func (c *SlotAvailabilityClient) Fetch(ctx context.Context, f model.Facility) (*model.WaitTimeRecord, error) {
	u, err := c.policy.ValidateAPI(f.APIEndpoint)
	if err != nil {
		return nil, err
	}

	body, err := c.transport.FetchBytes(ctx, u, c.retries)
	if err != nil {
		return nil, err
	}

	now := c.transport.now()()

	// Sentinel text body short-circuits before JSON decoding.
	if strings.Contains(strings.ToLower(string(body)), noSlotsSentinel) {
		rec := noSlotRecord(f, now)
		return &rec, nil
	}

	var resp slotResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &APIError{Message: "slot payload is neither JSON nor a known sentinel"}
	}

	minutes, found := minutesToNextSlot(resp.Slots, now)
	if !found {
		rec := noSlotRecord(f, now)
		return &rec, nil
	}

	return &model.WaitTimeRecord{
		FacilityID:      f.ID,
		WaitMinutes:     minutes,
		Status:          model.StatusOpen,
		NextSlotMinutes: minutes,
		Provenance:      model.ProvenanceObserved,
		UpdatedAt:       now,
	}, nil
}

// minutesToNextSlot returns the distance to the earliest slot starting at
// or after now. Unparsable entries are skipped.
func minutesToNextSlot(slots []slot, now time.Time) (int, bool) {
	var best time.Time
	found := false
	for _, s := range slots {
		ts, ok := parseSlotTime(s.Start)
		if !ok || ts.Before(now) {
			continue
		}
		if !found || ts.Before(best) {
			best = ts
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return int(best.Sub(now).Minutes()), true
}

func parseSlotTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range slotTimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// noSlotRecord resolves the "no future slot" case: unavailable while the
// facility's operating hours say it should be open, closed otherwise.
func noSlotRecord(f model.Facility, now time.Time) model.WaitTimeRecord {
	status := model.StatusClosed
	if f.Hours.IsOpenAt(now) {
		status = model.StatusUnavailable
	}
	return model.WaitTimeRecord{
		FacilityID: f.ID,
		Status:     status,
		Provenance: model.ProvenanceObserved,
		UpdatedAt:  now,
	}
}
