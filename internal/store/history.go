package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/carelane/waitboard/internal/model"
)

// Observation is one historical wait-time sample as persisted.
type Observation struct {
	ID             string           `json:"id"`
	CycleID        string           `json:"cycle_id"`
	FacilityID     string           `json:"facility_id"`
	WaitMinutes    int              `json:"wait_minutes"`
	PatientsInLine int              `json:"patients_in_line"`
	Status         model.Status     `json:"status"`
	Provenance     model.Provenance `json:"provenance"`
	ObservedAt     time.Time        `json:"observed_at"`
}

// HistoryFilter narrows ListObservations results.
type HistoryFilter struct {
	FacilityID string    `json:"facility_id,omitempty"`
	Since      time.Time `json:"since,omitempty"`
	Limit      int       `json:"limit,omitempty"`
}

// History persists wait-time observations append-only. Records are never
// updated in place; each fetch cycle appends one row per facility result.
type History interface {
	Append(ctx context.Context, cycleID string, recs []model.WaitTimeRecord) error
	ListObservations(ctx context.Context, filter HistoryFilter) ([]Observation, error)
	Migrate(ctx context.Context) error
	Close() error
}

// OpenHistory constructs a History for the configured driver. An empty
// driver disables persistence and returns (nil, nil).
func OpenHistory(ctx context.Context, driver, dsn string) (History, error) {
	switch driver {
	case "":
		return nil, nil
	case "sqlite":
		return NewSQLiteHistory(dsn)
	case "postgres":
		return NewPostgresHistory(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("history: unknown driver %q", driver)
	}
}
