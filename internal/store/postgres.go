package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/metrolab/tripline/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it in
// tests.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS zones (
	"LocationID" BIGINT PRIMARY KEY,
	"Borough"    TEXT NOT NULL,
	"Zone"       TEXT NOT NULL,
	service_zone TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trips (
	trip_id               BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	"VendorID"            TEXT,
	pickup_ts             TIMESTAMP NOT NULL,
	dropoff_ts            TIMESTAMP NOT NULL,
	passenger_count       BIGINT,
	trip_distance         DOUBLE PRECISION,
	"RatecodeID"          TEXT,
	store_and_fwd_flag    TEXT,
	"PULocationID"        BIGINT NOT NULL,
	"DOLocationID"        BIGINT NOT NULL,
	payment_type          TEXT,
	fare_amount           DOUBLE PRECISION,
	extra                 DOUBLE PRECISION,
	mta_tax               DOUBLE PRECISION,
	tip_amount            DOUBLE PRECISION,
	tolls_amount          DOUBLE PRECISION,
	improvement_surcharge DOUBLE PRECISION,
	total_amount          DOUBLE PRECISION,
	congestion_surcharge  DOUBLE PRECISION,
	trip_duration_seconds BIGINT NOT NULL,
	average_speed_mph     DOUBLE PRECISION NOT NULL,
	time_of_day           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pipeline_runs (
	id            TEXT PRIMARY KEY,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ NOT NULL,
	total_rows    BIGINT NOT NULL,
	accepted      BIGINT NOT NULL,
	rejected      BIGINT NOT NULL,
	quality_score DOUBLE PRECISION NOT NULL,
	breakdown     JSONB
);

CREATE INDEX IF NOT EXISTS idx_trips_pu ON trips("PULocationID");
CREATE INDEX IF NOT EXISTS idx_trips_time_of_day ON trips(time_of_day);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON pipeline_runs(started_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) ReplaceZones(ctx context.Context, zones []model.Zone) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin zone replace")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM zones`); err != nil {
		return eris.Wrap(err, "postgres: clear zones")
	}

	rows := make([][]any, 0, len(zones))
	for _, z := range zones {
		rows = append(rows, []any{z.LocationID, z.Borough, z.Zone, z.ServiceZone})
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"zones"},
		[]string{"LocationID", "Borough", "Zone", "service_zone"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return eris.Wrap(err, "postgres: copy zones")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit zone replace")
}

type postgresTripLoader struct {
	tx pgx.Tx
}

func (s *PostgresStore) BeginTripLoad(ctx context.Context) (TripLoader, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin trip load")
	}
	if _, err := tx.Exec(ctx, `DELETE FROM trips`); err != nil {
		tx.Rollback(ctx) //nolint:errcheck
		return nil, eris.Wrap(err, "postgres: clear trips")
	}
	return &postgresTripLoader{tx: tx}, nil
}

// Insert bulk-loads one batch over the COPY protocol inside the replace
// transaction.
func (l *postgresTripLoader) Insert(ctx context.Context, batch []model.EnrichedTrip) error {
	rows := make([][]any, 0, len(batch))
	for _, t := range batch {
		rows = append(rows, []any{
			t.VendorID, t.Pickup, t.Dropoff, t.PassengerCount, t.TripDistance,
			t.RatecodeID, t.StoreAndFwdFlag, t.PULocationID, t.DOLocationID,
			t.PaymentType, t.FareAmount, t.Extra, t.MTATax, t.TipAmount,
			t.TollsAmount, t.ImprovementSurcharge, t.TotalAmount,
			t.CongestionSurcharge, t.DurationSeconds, t.AverageSpeedMPH,
			string(t.TimeOfDay),
		})
	}
	if _, err := l.tx.CopyFrom(ctx, pgx.Identifier{"trips"}, tripColumns, pgx.CopyFromRows(rows)); err != nil {
		return eris.Wrap(err, "postgres: copy trips")
	}
	return nil
}

func (l *postgresTripLoader) Commit(ctx context.Context) error {
	return eris.Wrap(l.tx.Commit(ctx), "postgres: commit trip load")
}

func (l *postgresTripLoader) Rollback(ctx context.Context) error {
	return eris.Wrap(l.tx.Rollback(ctx), "postgres: rollback trip load")
}

func (s *PostgresStore) RecordRun(ctx context.Context, run *model.PipelineRun) error {
	breakdown, err := json.Marshal(run.Breakdown)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal breakdown")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO pipeline_runs (id, started_at, finished_at, total_rows, accepted, rejected, quality_score, breakdown)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.TotalRows, run.Accepted, run.Rejected, run.QualityScore, string(breakdown),
	)
	return eris.Wrap(err, "postgres: insert run")
}

func (s *PostgresStore) LatestRun(ctx context.Context) (*model.PipelineRun, error) {
	runs, err := s.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.PipelineRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, started_at, finished_at, total_rows, accepted, rejected, quality_score, breakdown::text
		 FROM pipeline_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.PipelineRun
	for rows.Next() {
		var r model.PipelineRun
		var breakdown *string
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.TotalRows, &r.Accepted, &r.Rejected, &r.QualityScore, &breakdown); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if breakdown != nil && *breakdown != "" && *breakdown != "null" {
			if err := json.Unmarshal([]byte(*breakdown), &r.Breakdown); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal breakdown")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) Zones(ctx context.Context) ([]model.Zone, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT "LocationID", "Borough", "Zone", service_zone FROM zones ORDER BY "LocationID"`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list zones")
	}
	defer rows.Close()

	var zones []model.Zone
	for rows.Next() {
		var z model.Zone
		if err := rows.Scan(&z.LocationID, &z.Borough, &z.Zone, &z.ServiceZone); err != nil {
			return nil, eris.Wrap(err, "postgres: scan zone")
		}
		zones = append(zones, z)
	}
	return zones, eris.Wrap(rows.Err(), "postgres: list zones iterate")
}

func (s *PostgresStore) TripCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trips`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count trips")
}

func (s *PostgresStore) Summary(ctx context.Context) (*SummaryStats, error) {
	var st SummaryStats
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(ROUND(AVG(total_amount)::numeric, 2), 0)::float8 FROM trips`,
	).Scan(&st.TotalTrips, &st.AvgFare)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: summary")
	}
	return &st, nil
}

func (s *PostgresStore) BoroughCounts(ctx context.Context) ([]BoroughCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT z."Borough", COUNT(*) AS trip_count
		FROM trips t
		JOIN zones z ON t."PULocationID" = z."LocationID"
		GROUP BY z."Borough"
		ORDER BY trip_count DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: borough counts")
	}
	defer rows.Close()

	var out []BoroughCount
	for rows.Next() {
		var bc BoroughCount
		if err := rows.Scan(&bc.Borough, &bc.TripCount); err != nil {
			return nil, eris.Wrap(err, "postgres: scan borough count")
		}
		out = append(out, bc)
	}
	return out, eris.Wrap(rows.Err(), "postgres: borough counts iterate")
}

func (s *PostgresStore) TimeEfficiency(ctx context.Context) ([]TimeBucketSpeed, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT time_of_day, ROUND(AVG(average_speed_mph)::numeric, 2)::float8
		FROM trips
		GROUP BY time_of_day`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: time efficiency")
	}
	defer rows.Close()

	var out []TimeBucketSpeed
	for rows.Next() {
		var tb TimeBucketSpeed
		if err := rows.Scan(&tb.TimeOfDay, &tb.AvgSpeed); err != nil {
			return nil, eris.Wrap(err, "postgres: scan time efficiency")
		}
		out = append(out, tb)
	}
	return out, eris.Wrap(rows.Err(), "postgres: time efficiency iterate")
}

func (s *PostgresStore) ListTrips(ctx context.Context, filter TripFilter) ([]model.TripRow, error) {
	query := `
		SELECT t.trip_id, t."VendorID", t.pickup_ts, t.dropoff_ts, t.passenger_count,
		       t.trip_distance, t."PULocationID", t."DOLocationID", t.fare_amount,
		       t.tip_amount, t.total_amount, t.trip_duration_seconds,
		       t.average_speed_mph, t.time_of_day,
		       p."Borough" AS pickup_borough, d."Borough" AS dropoff_borough
		FROM trips t
		JOIN zones p ON t."PULocationID" = p."LocationID"
		JOIN zones d ON t."DOLocationID" = d."LocationID"`
	var args []any

	if filter.Borough != "" {
		query += ` WHERE p."Borough" = $1`
		args = append(args, filter.Borough)
	}

	query += ` ORDER BY t.trip_id LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, normalizeLimit(filter.Limit), filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list trips")
	}
	defer rows.Close()

	var trips []model.TripRow
	for rows.Next() {
		var tr model.TripRow
		var pickup, dropoff time.Time
		if err := rows.Scan(
			&tr.TripID, &tr.VendorID, &pickup, &dropoff, &tr.PassengerCount,
			&tr.TripDistance, &tr.PULocationID, &tr.DOLocationID, &tr.FareAmount,
			&tr.TipAmount, &tr.TotalAmount, &tr.DurationSeconds,
			&tr.AverageSpeedMPH, &tr.TimeOfDay, &tr.PickupBorough, &tr.DropoffBorough,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan trip")
		}
		tr.PickupTS = pickup.Format(model.TimeLayout)
		tr.DropoffTS = dropoff.Format(model.TimeLayout)
		trips = append(trips, tr)
	}
	return trips, eris.Wrap(rows.Err(), "postgres: list trips iterate")
}

func (s *PostgresStore) HourlyCounts(ctx context.Context) ([]HourCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT to_char(pickup_ts, 'HH24') AS hr, COUNT(*)
		FROM trips
		GROUP BY hr
		ORDER BY hr ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: hourly counts")
	}
	defer rows.Close()

	var out []HourCount
	for rows.Next() {
		var hc HourCount
		if err := rows.Scan(&hc.Hour, &hc.Trips); err != nil {
			return nil, eris.Wrap(err, "postgres: scan hourly count")
		}
		out = append(out, hc)
	}
	return out, eris.Wrap(rows.Err(), "postgres: hourly counts iterate")
}

func (s *PostgresStore) Revenue(ctx context.Context) (*RevenueStats, error) {
	var rs RevenueStats
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_amount), 0),
		       COALESCE(AVG(trip_duration_seconds) / 60.0, 0)
		FROM trips`,
	).Scan(&rs.TotalRevenue, &rs.AvgDurationMinutes)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: revenue")
	}
	return &rs, nil
}
