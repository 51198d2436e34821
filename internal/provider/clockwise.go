package provider

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/carelane/waitboard/internal/model"
)

// Upstream shape of the structured queue API. Every field is optional;
// presence drives the normalization rules below.
type queueResponse struct {
	HospitalID        int                `json:"hospital_id"`
	HospitalWaits     hospitalWaits      `json:"hospital_waits"`
	AppointmentQueues []appointmentQueue `json:"appointment_queues"`
}

type hospitalWaits struct {
	CurrentWait        *string `json:"current_wait"`
	QueueLength        *int    `json:"queue_length"`
	QueueTotal         *int    `json:"queue_total"`
	NextAvailableVisit *int    `json:"next_available_visit"`
}

type appointmentQueue struct {
	QueueID    int        `json:"queue_id"`
	QueueWaits queueWaits `json:"queue_waits"`
}

type queueWaits struct {
	CurrentPatientsInLine *int    `json:"current_patients_in_line"`
	CurrentWait           *int    `json:"current_wait"`
	CurrentWaitRange      *string `json:"current_wait_range"`
}

// StructuredQueueClient reads the primary patient-count upstream. The
// patient count is always the sum of per-queue occupancy; the capacity
// field (queue_total) is never used as a count, only for the validation
// warning in normalize.
type StructuredQueueClient struct {
	transport *Transport
	policy    HostPolicy
	retries   int
}

// NewStructuredQueueClient creates the primary provider client. As the
// highest-value upstream it retries transient failures twice.
func NewStructuredQueueClient(transport *Transport, policy HostPolicy) *StructuredQueueClient {
	return &StructuredQueueClient{transport: transport, policy: policy, retries: 2}
}

func (c *StructuredQueueClient) Kind() Kind {
	return KindStructuredQueue
}

func (c *StructuredQueueClient) Fetch(ctx context.Context, f model.Facility) (*model.WaitTimeRecord, error) {
	u, err := c.policy.ValidateAPI(f.APIEndpoint)
	if err != nil {
		return nil, err
	}

	body, err := c.transport.FetchBytes(ctx, u, c.retries)
	if err != nil {
		return nil, err
	}

	var resp queueResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrapf(ErrDecode, "structured queue payload: %v", err)
	}

	rec := normalizeQueueResponse(f, resp, c.transport.now())
	return &rec, nil
}

// normalizeQueueResponse maps an upstream payload onto a record.
func normalizeQueueResponse(f model.Facility, resp queueResponse, now timeNow) model.WaitTimeRecord {
	patients := 0
	breakdown := false
	waitRange := ""
	for _, q := range resp.AppointmentQueues {
		if q.QueueWaits.CurrentPatientsInLine != nil {
			patients += *q.QueueWaits.CurrentPatientsInLine
			breakdown = true
		}
		if waitRange == "" && q.QueueWaits.CurrentWaitRange != nil {
			waitRange = strings.TrimSpace(*q.QueueWaits.CurrentWaitRange)
		}
	}
	// Top-level queue_length is a fallback only when no per-queue
	// breakdown exists. queue_total is capacity, never a count.
	if !breakdown && resp.HospitalWaits.QueueLength != nil {
		patients = *resp.HospitalWaits.QueueLength
	}

	hasQueueData := breakdown || resp.HospitalWaits.QueueLength != nil

	waitText := ""
	if resp.HospitalWaits.CurrentWait != nil {
		waitText = *resp.HospitalWaits.CurrentWait
	}
	waitMinutes, status := parseWaitText(waitText, hasQueueData)

	if resp.HospitalWaits.QueueTotal != nil && patients > 0 && patients == *resp.HospitalWaits.QueueTotal {
		// Suspicious: occupancy exactly equals capacity. Flag it, do not
		// "correct" it.
		zap.L().Warn("patients-in-line equals upstream queue capacity",
			zap.String("facility", f.ID),
			zap.Int("patients", patients),
			zap.Int("queue_total", *resp.HospitalWaits.QueueTotal),
		)
	}

	nextSlot := 0
	if resp.HospitalWaits.NextAvailableVisit != nil {
		nextSlot = *resp.HospitalWaits.NextAvailableVisit
	}

	return model.WaitTimeRecord{
		FacilityID:        f.ID,
		WaitMinutes:       waitMinutes,
		PatientsInLine:    patients,
		HasQueueBreakdown: breakdown,
		Status:            status,
		WaitRange:         waitRange,
		NextSlotMinutes:   nextSlot,
		Provenance:        model.ProvenanceObserved,
		UpdatedAt:         now(),
	}
}

// parseWaitText interprets the upstream free-text wait field.
//
//	"closed"              -> closed
//	"n/a", "unavailable"  -> open if any queue data is present, else unavailable
//	"4 - 19"              -> averaged to a single minutes value, open
//	"25"                  -> used directly, open
//	anything else         -> open with 0 minutes
func parseWaitText(text string, hasQueueData bool) (int, model.Status) {
	t := strings.ToLower(strings.TrimSpace(text))
	switch t {
	case "closed":
		return 0, model.StatusClosed
	case "n/a", "unavailable":
		if hasQueueData {
			return 0, model.StatusOpen
		}
		return 0, model.StatusUnavailable
	}

	if lo, hi, ok := parseRange(t); ok {
		return (lo + hi) / 2, model.StatusOpen
	}
	if n, err := strconv.Atoi(t); err == nil && n >= 0 {
		return n, model.StatusOpen
	}
	return 0, model.StatusOpen
}

// parseRange parses a "4 - 19" style range.
func parseRange(t string) (int, int, bool) {
	parts := strings.SplitN(t, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	lo, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	hi, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || lo < 0 || hi < lo {
		return 0, 0, false
	}
	return lo, hi, true
}
