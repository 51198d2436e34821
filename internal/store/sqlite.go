package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/carelane/waitboard/internal/model"
)

// SQLiteHistory implements History using modernc.org/sqlite.
type SQLiteHistory struct {
	db *sql.DB
}

// NewSQLiteHistory opens a SQLite database at the given path and configures
// WAL mode.
func NewSQLiteHistory(dsn string) (*SQLiteHistory, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteHistory{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS observations (
	id               TEXT PRIMARY KEY,
	cycle_id         TEXT NOT NULL,
	facility_id      TEXT NOT NULL,
	wait_minutes     INTEGER NOT NULL,
	patients_in_line INTEGER NOT NULL,
	status           TEXT NOT NULL,
	provenance       TEXT NOT NULL,
	observed_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_observations_facility ON observations(facility_id, observed_at);
CREATE INDEX IF NOT EXISTS idx_observations_observed_at ON observations(observed_at);
`

func (s *SQLiteHistory) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteHistory) Close() error {
	return s.db.Close()
}

// Append persists one observation per record inside a single transaction.
func (s *SQLiteHistory) Append(ctx context.Context, cycleID string, recs []model.WaitTimeRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO observations (id, cycle_id, facility_id, wait_minutes, patients_in_line, status, provenance, observed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close()

	for _, rec := range recs {
		_, err := stmt.ExecContext(ctx,
			uuid.New().String(), cycleID, rec.FacilityID, rec.WaitMinutes, rec.PatientsInLine,
			string(rec.Status), string(rec.Provenance), rec.UpdatedAt.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert observation for %s", rec.FacilityID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

func (s *SQLiteHistory) ListObservations(ctx context.Context, filter HistoryFilter) ([]Observation, error) {
	query := `SELECT id, cycle_id, facility_id, wait_minutes, patients_in_line, status, provenance, observed_at FROM observations`
	var (
		where []string
		args  []any
	)
	if filter.FacilityID != "" {
		where = append(where, "facility_id = ?")
		args = append(args, filter.FacilityID)
	}
	if !filter.Since.IsZero() {
		where = append(where, "observed_at >= ?")
		args = append(args, filter.Since.UTC())
	}
	for i, cond := range where {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY observed_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list observations")
	}
	defer rows.Close()

	var out []Observation
	for rows.Next() {
		var (
			obs                Observation
			status, provenance string
			observedAt         time.Time
		)
		if err := rows.Scan(&obs.ID, &obs.CycleID, &obs.FacilityID, &obs.WaitMinutes, &obs.PatientsInLine,
			&status, &provenance, &observedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan observation")
		}
		obs.Status = model.Status(status)
		obs.Provenance = model.Provenance(provenance)
		obs.ObservedAt = observedAt.UTC()
		out = append(out, obs)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate observations")
}
