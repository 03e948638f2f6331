package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metrolab/tripline/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresFromPool(mock), mock
}

func TestPostgres_Migrate(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS zones").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, st.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ReplaceZones(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM zones").WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectCopyFrom(pgx.Identifier{"zones"}, []string{"LocationID", "Borough", "Zone", "service_zone"}).
		WillReturnResult(2)
	mock.ExpectCommit()
	mock.ExpectRollback() // deferred rollback after commit is a no-op

	err := st.ReplaceZones(context.Background(), []model.Zone{
		{LocationID: 100, Borough: "Manhattan", Zone: "Alphabet City", ServiceZone: "Yellow Zone"},
		{LocationID: 200, Borough: "Queens", Zone: "Astoria", ServiceZone: "Boro Zone"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_TripLoad(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM trips").WillReturnResult(pgxmock.NewResult("DELETE", 10))
	mock.ExpectCopyFrom(pgx.Identifier{"trips"}, tripColumns).WillReturnResult(1)
	mock.ExpectCommit()

	loader, err := st.BeginTripLoad(ctx)
	require.NoError(t, err)

	pickup, _ := time.Parse(model.TimeLayout, "2024-01-15 08:00:00")
	err = loader.Insert(ctx, []model.EnrichedTrip{{
		VendorID:        "2",
		Pickup:          pickup,
		Dropoff:         pickup.Add(15 * time.Minute),
		PULocationID:    100,
		DOLocationID:    200,
		TotalAmount:     15.80,
		DurationSeconds: 900,
		AverageSpeedMPH: 8.0,
		TimeOfDay:       model.Morning,
	}})
	require.NoError(t, err)

	require.NoError(t, loader.Commit(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_TripLoad_Rollback(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM trips").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()

	loader, err := st.BeginTripLoad(ctx)
	require.NoError(t, err)
	require.NoError(t, loader.Rollback(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RecordRun(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO pipeline_runs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := st.RecordRun(context.Background(), &model.PipelineRun{
		ID:           "run-1",
		StartedAt:    time.Now().UTC(),
		FinishedAt:   time.Now().UTC(),
		TotalRows:    100,
		Accepted:     90,
		Rejected:     10,
		QualityScore: 90.0,
		Breakdown:    map[model.RejectionReason]int64{model.ReasonExtremeSpeed: 10},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListRuns(t *testing.T) {
	st, mock := newMockStore(t)

	now := time.Now().UTC()
	breakdown := `{"Extreme Speed":7,"Unknown Zone":3}`
	mock.ExpectQuery("SELECT id, started_at, finished_at").
		WithArgs(20).
		WillReturnRows(pgxmock.
			NewRows([]string{"id", "started_at", "finished_at", "total_rows", "accepted", "rejected", "quality_score", "breakdown"}).
			AddRow("run-2", now, now, int64(100), int64(90), int64(10), 90.0, &breakdown).
			AddRow("run-1", now.Add(-time.Hour), now.Add(-time.Hour), int64(50), int64(50), int64(0), 100.0, (*string)(nil)))

	runs, err := st.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, int64(7), runs[0].Breakdown[model.ReasonExtremeSpeed])
	assert.Nil(t, runs[1].Breakdown)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LatestRun_Empty(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, started_at, finished_at").
		WithArgs(1).
		WillReturnRows(pgxmock.NewRows([]string{"id", "started_at", "finished_at", "total_rows", "accepted", "rejected", "quality_score", "breakdown"}))

	run, err := st.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Nil(t, run)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Summary(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count", "avg"}).AddRow(int64(3), 20.0))

	sum, err := st.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), sum.TotalTrips)
	assert.Equal(t, 20.0, sum.AvgFare)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_BoroughCounts(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT z."Borough", COUNT`).
		WillReturnRows(pgxmock.NewRows([]string{"Borough", "trip_count"}).
			AddRow("Manhattan", int64(2)).
			AddRow("Queens", int64(1)))

	counts, err := st.BoroughCounts(context.Background())
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, "Manhattan", counts[0].Borough)
	assert.Equal(t, int64(2), counts[0].TripCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListTrips_BoroughFilter(t *testing.T) {
	st, mock := newMockStore(t)

	pickup, _ := time.Parse(model.TimeLayout, "2024-01-15 08:00:00")
	mock.ExpectQuery("SELECT t.trip_id").
		WithArgs("Queens", 200, 0).
		WillReturnRows(pgxmock.
			NewRows([]string{
				"trip_id", "VendorID", "pickup_ts", "dropoff_ts", "passenger_count",
				"trip_distance", "PULocationID", "DOLocationID", "fare_amount",
				"tip_amount", "total_amount", "trip_duration_seconds",
				"average_speed_mph", "time_of_day", "pickup_borough", "dropoff_borough",
			}).
			AddRow(int64(1), "2", pickup, pickup.Add(15*time.Minute), int64(1),
				2.0, int64(200), int64(100), 12.50,
				2.00, 15.80, int64(900),
				8.0, model.Morning, "Queens", "Manhattan"))

	trips, err := st.ListTrips(context.Background(), TripFilter{Borough: "Queens"})
	require.NoError(t, err)
	require.Len(t, trips, 1)
	assert.Equal(t, "2024-01-15 08:00:00", trips[0].PickupTS)
	assert.Equal(t, "Queens", trips[0].PickupBorough)
	assert.NoError(t, mock.ExpectationsWereMet())
}
