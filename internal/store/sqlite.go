package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/metrolab/tripline/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// The pipeline is the sole writer; a single connection avoids write
	// contention with the query surface during tests.
	db.SetMaxOpenConns(1)
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
	return &SQLiteStore{db: db}, nil
}

// Foreign keys from trips to zones are logical only; enforcement is the
// validation engine's job, so readers still work if a zone row disappears.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS zones (
	LocationID   INTEGER PRIMARY KEY,
	Borough      TEXT NOT NULL,
	Zone         TEXT NOT NULL,
	service_zone TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trips (
	trip_id               INTEGER PRIMARY KEY AUTOINCREMENT,
	VendorID              TEXT,
	pickup_ts             TEXT NOT NULL,
	dropoff_ts            TEXT NOT NULL,
	passenger_count       INTEGER,
	trip_distance         REAL,
	RatecodeID            TEXT,
	store_and_fwd_flag    TEXT,
	PULocationID          INTEGER NOT NULL,
	DOLocationID          INTEGER NOT NULL,
	payment_type          TEXT,
	fare_amount           REAL,
	extra                 REAL,
	mta_tax               REAL,
	tip_amount            REAL,
	tolls_amount          REAL,
	improvement_surcharge REAL,
	total_amount          REAL,
	congestion_surcharge  REAL,
	trip_duration_seconds INTEGER NOT NULL,
	average_speed_mph     REAL NOT NULL,
	time_of_day           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pipeline_runs (
	id            TEXT PRIMARY KEY,
	started_at    DATETIME NOT NULL,
	finished_at   DATETIME NOT NULL,
	total_rows    INTEGER NOT NULL,
	accepted      INTEGER NOT NULL,
	rejected      INTEGER NOT NULL,
	quality_score REAL NOT NULL,
	breakdown     TEXT
);

CREATE INDEX IF NOT EXISTS idx_trips_pu ON trips(PULocationID);
CREATE INDEX IF NOT EXISTS idx_trips_time_of_day ON trips(time_of_day);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON pipeline_runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ReplaceZones swaps the zone reference table wholesale inside one
// transaction.
func (s *SQLiteStore) ReplaceZones(ctx context.Context, zones []model.Zone) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin zone replace")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM zones`); err != nil {
		return eris.Wrap(err, "sqlite: clear zones")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO zones (LocationID, Borough, Zone, service_zone) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare zone insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, z := range zones {
		if _, err := stmt.ExecContext(ctx, z.LocationID, z.Borough, z.Zone, z.ServiceZone); err != nil {
			return eris.Wrapf(err, "sqlite: insert zone %d", z.LocationID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit zone replace")
}

// sqliteTripLoader holds the replace transaction open across batches.
type sqliteTripLoader struct {
	tx   *sql.Tx
	stmt *sql.Stmt
}

// BeginTripLoad starts the delete-then-bulk-insert transaction. The trips
// relation stays in its pre-run state for readers until Commit.
func (s *SQLiteStore) BeginTripLoad(ctx context.Context) (TripLoader, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin trip load")
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM trips`); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, eris.Wrap(err, "sqlite: clear trips")
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(tripColumns)), ", ")
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO trips (`+strings.Join(tripColumns, ", ")+`) VALUES (`+placeholders+`)`)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, eris.Wrap(err, "sqlite: prepare trip insert")
	}

	return &sqliteTripLoader{tx: tx, stmt: stmt}, nil
}

func (l *sqliteTripLoader) Insert(ctx context.Context, batch []model.EnrichedTrip) error {
	for _, t := range batch {
		_, err := l.stmt.ExecContext(ctx,
			t.VendorID,
			t.Pickup.Format(model.TimeLayout),
			t.Dropoff.Format(model.TimeLayout),
			t.PassengerCount, t.TripDistance, t.RatecodeID, t.StoreAndFwdFlag,
			t.PULocationID, t.DOLocationID, t.PaymentType,
			t.FareAmount, t.Extra, t.MTATax, t.TipAmount, t.TollsAmount,
			t.ImprovementSurcharge, t.TotalAmount, t.CongestionSurcharge,
			t.DurationSeconds, t.AverageSpeedMPH, string(t.TimeOfDay),
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert trip")
		}
	}
	return nil
}

func (l *sqliteTripLoader) Commit(context.Context) error {
	if err := l.stmt.Close(); err != nil {
		l.tx.Rollback() //nolint:errcheck
		return eris.Wrap(err, "sqlite: close trip stmt")
	}
	return eris.Wrap(l.tx.Commit(), "sqlite: commit trip load")
}

func (l *sqliteTripLoader) Rollback(context.Context) error {
	_ = l.stmt.Close()
	return eris.Wrap(l.tx.Rollback(), "sqlite: rollback trip load")
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run *model.PipelineRun) error {
	breakdown, err := json.Marshal(run.Breakdown)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal breakdown")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pipeline_runs (id, started_at, finished_at, total_rows, accepted, rejected, quality_score, breakdown)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.TotalRows, run.Accepted, run.Rejected, run.QualityScore, string(breakdown),
	)
	return eris.Wrap(err, "sqlite: insert run")
}

func (s *SQLiteStore) LatestRun(ctx context.Context) (*model.PipelineRun, error) {
	runs, err := s.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.PipelineRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, total_rows, accepted, rejected, quality_score, breakdown
		 FROM pipeline_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.PipelineRun
	for rows.Next() {
		var r model.PipelineRun
		var breakdown sql.NullString
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.TotalRows, &r.Accepted, &r.Rejected, &r.QualityScore, &breakdown); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if breakdown.Valid && breakdown.String != "" && breakdown.String != "null" {
			if err := json.Unmarshal([]byte(breakdown.String), &r.Breakdown); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal breakdown")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) Zones(ctx context.Context) ([]model.Zone, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT LocationID, Borough, Zone, service_zone FROM zones ORDER BY LocationID`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list zones")
	}
	defer rows.Close() //nolint:errcheck

	var zones []model.Zone
	for rows.Next() {
		var z model.Zone
		if err := rows.Scan(&z.LocationID, &z.Borough, &z.Zone, &z.ServiceZone); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan zone")
		}
		zones = append(zones, z)
	}
	return zones, eris.Wrap(rows.Err(), "sqlite: list zones iterate")
}

func (s *SQLiteStore) TripCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trips`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count trips")
}

func (s *SQLiteStore) Summary(ctx context.Context) (*SummaryStats, error) {
	var st SummaryStats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(ROUND(AVG(total_amount), 2), 0) FROM trips`,
	).Scan(&st.TotalTrips, &st.AvgFare)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: summary")
	}
	return &st, nil
}

func (s *SQLiteStore) BoroughCounts(ctx context.Context) ([]BoroughCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT z.Borough, COUNT(*) AS trip_count
		FROM trips t
		JOIN zones z ON t.PULocationID = z.LocationID
		GROUP BY z.Borough
		ORDER BY trip_count DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: borough counts")
	}
	defer rows.Close() //nolint:errcheck

	var out []BoroughCount
	for rows.Next() {
		var bc BoroughCount
		if err := rows.Scan(&bc.Borough, &bc.TripCount); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan borough count")
		}
		out = append(out, bc)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: borough counts iterate")
}

func (s *SQLiteStore) TimeEfficiency(ctx context.Context) ([]TimeBucketSpeed, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT time_of_day, ROUND(AVG(average_speed_mph), 2)
		FROM trips
		GROUP BY time_of_day`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: time efficiency")
	}
	defer rows.Close() //nolint:errcheck

	var out []TimeBucketSpeed
	for rows.Next() {
		var tb TimeBucketSpeed
		if err := rows.Scan(&tb.TimeOfDay, &tb.AvgSpeed); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan time efficiency")
		}
		out = append(out, tb)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: time efficiency iterate")
}

func (s *SQLiteStore) ListTrips(ctx context.Context, filter TripFilter) ([]model.TripRow, error) {
	query := `
		SELECT t.trip_id, t.VendorID, t.pickup_ts, t.dropoff_ts, t.passenger_count,
		       t.trip_distance, t.PULocationID, t.DOLocationID, t.fare_amount,
		       t.tip_amount, t.total_amount, t.trip_duration_seconds,
		       t.average_speed_mph, t.time_of_day,
		       p.Borough AS pickup_borough, d.Borough AS dropoff_borough
		FROM trips t
		JOIN zones p ON t.PULocationID = p.LocationID
		JOIN zones d ON t.DOLocationID = d.LocationID`
	var args []any

	if filter.Borough != "" {
		query += ` WHERE p.Borough = ?`
		args = append(args, filter.Borough)
	}

	query += ` ORDER BY t.trip_id LIMIT ? OFFSET ?`
	args = append(args, normalizeLimit(filter.Limit), filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list trips")
	}
	defer rows.Close() //nolint:errcheck

	var trips []model.TripRow
	for rows.Next() {
		var tr model.TripRow
		if err := rows.Scan(
			&tr.TripID, &tr.VendorID, &tr.PickupTS, &tr.DropoffTS, &tr.PassengerCount,
			&tr.TripDistance, &tr.PULocationID, &tr.DOLocationID, &tr.FareAmount,
			&tr.TipAmount, &tr.TotalAmount, &tr.DurationSeconds,
			&tr.AverageSpeedMPH, &tr.TimeOfDay, &tr.PickupBorough, &tr.DropoffBorough,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan trip")
		}
		trips = append(trips, tr)
	}
	return trips, eris.Wrap(rows.Err(), "sqlite: list trips iterate")
}

func (s *SQLiteStore) HourlyCounts(ctx context.Context) ([]HourCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT strftime('%H', pickup_ts) AS hr, COUNT(*)
		FROM trips
		GROUP BY hr
		ORDER BY hr ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: hourly counts")
	}
	defer rows.Close() //nolint:errcheck

	var out []HourCount
	for rows.Next() {
		var hc HourCount
		if err := rows.Scan(&hc.Hour, &hc.Trips); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan hourly count")
		}
		out = append(out, hc)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: hourly counts iterate")
}

func (s *SQLiteStore) Revenue(ctx context.Context) (*RevenueStats, error) {
	var rs RevenueStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_amount), 0),
		       COALESCE(AVG(trip_duration_seconds) / 60.0, 0)
		FROM trips`,
	).Scan(&rs.TotalRevenue, &rs.AvgDurationMinutes)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: revenue")
	}
	return &rs, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 200
	}
	return limit
}
