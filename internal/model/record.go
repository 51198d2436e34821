package model

import "time"

// Status is the operational state reported for a facility.
type Status string

const (
	StatusOpen        Status = "open"
	StatusClosed      Status = "closed"
	StatusUnavailable Status = "unavailable"
	StatusUnknown     Status = "unknown"
)

// Provenance marks how a record was obtained. Estimated records are
// synthesized for UI continuity and must always be distinguishable from
// real observations.
type Provenance string

const (
	ProvenanceObserved  Provenance = "observed"  // structured upstream API
	ProvenanceScraped   Provenance = "scraped"   // heuristic HTML extraction
	ProvenanceEstimated Provenance = "estimated" // synthetic or static fallback
)

// WaitTimeRecord is one normalized wait observation for a facility.
// Records are immutable once produced; the store replaces them wholesale.
//
// PatientsInLine is the primary signal for urgent care. It is always
// derived from per-queue occupancy, never from the upstream capacity
// (queue_total) field.
type WaitTimeRecord struct {
	FacilityID        string     `json:"facility_id"`
	WaitMinutes       int        `json:"wait_minutes"`
	PatientsInLine    int        `json:"patients_in_line"`
	HasQueueBreakdown bool       `json:"has_queue_breakdown"`
	Status            Status     `json:"status"`
	WaitRange         string     `json:"wait_range,omitempty"`
	NextSlotMinutes   int        `json:"next_slot_minutes,omitempty"`
	Provenance        Provenance `json:"provenance"`
	UpdatedAt         time.Time  `json:"updated_at"`

	// Stale is computed on read by the store; it is never persisted.
	Stale bool `json:"stale,omitempty"`
}

// Age returns how old the record is at the given instant.
func (r WaitTimeRecord) Age(now time.Time) time.Duration {
	return now.Sub(r.UpdatedAt)
}
