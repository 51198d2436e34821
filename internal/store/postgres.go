package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/carelane/waitboard/internal/model"
)

// Pool is the subset of pgxpool.Pool the history store uses. Tests
// substitute a mock pool through this interface.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Ping(ctx context.Context) error
	Close()
}

// PostgresHistory implements History using pgxpool.
type PostgresHistory struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_observation": `INSERT INTO observations (id, cycle_id, facility_id, wait_minutes, patients_in_line, status, provenance, observed_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
}

// NewPostgresHistory creates a PostgresHistory with a connection pool.
func NewPostgresHistory(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresHistory, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresHistory{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS observations (
	id               TEXT PRIMARY KEY,
	cycle_id         TEXT NOT NULL,
	facility_id      TEXT NOT NULL,
	wait_minutes     INTEGER NOT NULL,
	patients_in_line INTEGER NOT NULL,
	status           TEXT NOT NULL,
	provenance       TEXT NOT NULL,
	observed_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_observations_facility ON observations(facility_id, observed_at);
CREATE INDEX IF NOT EXISTS idx_observations_observed_at ON observations(observed_at);
`

func (s *PostgresHistory) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresHistory) Close() error {
	s.pool.Close()
	return nil
}

// Append persists one observation per record in a single batch.
func (s *PostgresHistory) Append(ctx context.Context, cycleID string, recs []model.WaitTimeRecord) error {
	if len(recs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rec := range recs {
		batch.Queue("insert_observation",
			uuid.New().String(), cycleID, rec.FacilityID, rec.WaitMinutes, rec.PatientsInLine,
			string(rec.Status), string(rec.Provenance), rec.UpdatedAt.UTC(),
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range recs {
		if _, err := results.Exec(); err != nil {
			return eris.Wrap(err, "postgres: insert observation")
		}
	}
	return nil
}

func (s *PostgresHistory) ListObservations(ctx context.Context, filter HistoryFilter) ([]Observation, error) {
	query := `SELECT id, cycle_id, facility_id, wait_minutes, patients_in_line, status, provenance, observed_at FROM observations`
	var (
		where []string
		args  []any
	)
	if filter.FacilityID != "" {
		args = append(args, filter.FacilityID)
		where = append(where, fmt.Sprintf("facility_id = $%d", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since.UTC())
		where = append(where, fmt.Sprintf("observed_at >= $%d", len(args)))
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
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list observations")
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
			return nil, eris.Wrap(err, "postgres: scan observation")
		}
		obs.Status = model.Status(status)
		obs.Provenance = model.Provenance(provenance)
		obs.ObservedAt = observedAt.UTC()
		out = append(out, obs)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate observations")
}
