package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metrolab/tripline/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testZones() []model.Zone {
	return []model.Zone{
		{LocationID: 100, Borough: "Manhattan", Zone: "Alphabet City", ServiceZone: "Yellow Zone"},
		{LocationID: 200, Borough: "Queens", Zone: "Astoria", ServiceZone: "Boro Zone"},
	}
}

func testTrip(pu, do int64, pickup string, total float64) model.EnrichedTrip {
	ts, _ := time.Parse(model.TimeLayout, pickup)
	return model.EnrichedTrip{
		VendorID:        "2",
		Pickup:          ts,
		Dropoff:         ts.Add(15 * time.Minute),
		PassengerCount:  1,
		TripDistance:    2.0,
		RatecodeID:      "1",
		StoreAndFwdFlag: "N",
		PULocationID:    pu,
		DOLocationID:    do,
		PaymentType:     "1",
		FareAmount:      total - 3.30,
		MTATax:          0.50,
		TotalAmount:     total,
		DurationSeconds: 900,
		AverageSpeedMPH: 8.0,
		TimeOfDay:       model.Morning,
	}
}

func loadTestTrips(t *testing.T, st *SQLiteStore, trips ...model.EnrichedTrip) {
	t.Helper()
	ctx := context.Background()
	loader, err := st.BeginTripLoad(ctx)
	require.NoError(t, err)
	require.NoError(t, loader.Insert(ctx, trips))
	require.NoError(t, loader.Commit(ctx))
}

// --- Zones ---

func TestSQLite_ReplaceZones(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.ReplaceZones(ctx, testZones()))

	zones, err := st.Zones(ctx)
	require.NoError(t, err)
	require.Len(t, zones, 2)
	assert.Equal(t, int64(100), zones[0].LocationID)
	assert.Equal(t, "Manhattan", zones[0].Borough)

	// A second replace swaps, never appends.
	require.NoError(t, st.ReplaceZones(ctx, testZones()[:1]))
	zones, err = st.Zones(ctx)
	require.NoError(t, err)
	assert.Len(t, zones, 1)
}

// --- Trip load ---

func TestSQLite_TripLoad_CommitReplacesAll(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	loadTestTrips(t, st,
		testTrip(100, 200, "2024-01-15 08:00:00", 15.80),
		testTrip(200, 100, "2024-01-15 13:00:00", 20.80),
	)

	count, err := st.TripCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// Second load replaces the table.
	loadTestTrips(t, st, testTrip(100, 100, "2024-01-15 22:00:00", 10.30))

	count, err = st.TripCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSQLite_TripLoad_RollbackKeepsPriorState(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	loadTestTrips(t, st, testTrip(100, 200, "2024-01-15 08:00:00", 15.80))

	loader, err := st.BeginTripLoad(ctx)
	require.NoError(t, err)
	require.NoError(t, loader.Insert(ctx, []model.EnrichedTrip{
		testTrip(200, 100, "2024-01-15 09:00:00", 9.80),
	}))
	require.NoError(t, loader.Rollback(ctx))

	// The delete inside the load transaction was undone with it.
	count, err := st.TripCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSQLite_TripLoad_EmptyCommitClearsTable(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	loadTestTrips(t, st, testTrip(100, 200, "2024-01-15 08:00:00", 15.80))
	loadTestTrips(t, st) // zero accepted rows

	count, err := st.TripCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

// --- Runs ---

func TestSQLite_RecordAndListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	latest, err := st.LatestRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	now := time.Now().UTC().Truncate(time.Second)
	run := &model.PipelineRun{
		ID:           "run-1",
		StartedAt:    now.Add(-time.Minute),
		FinishedAt:   now,
		TotalRows:    100,
		Accepted:     90,
		Rejected:     10,
		QualityScore: 90.0,
		Breakdown: map[model.RejectionReason]int64{
			model.ReasonExtremeSpeed: 7,
			model.ReasonUnknownZone:  3,
		},
	}
	require.NoError(t, st.RecordRun(ctx, run))

	later := *run
	later.ID = "run-2"
	later.StartedAt = now
	later.FinishedAt = now.Add(time.Minute)
	require.NoError(t, st.RecordRun(ctx, &later))

	latest, err = st.LatestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "run-2", latest.ID)
	assert.Equal(t, int64(7), latest.Breakdown[model.ReasonExtremeSpeed])

	runs, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID) // newest first
	assert.Equal(t, "run-1", runs[1].ID)

	runs, err = st.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

// --- Query surface ---

func seedQueryFixture(t *testing.T, st *SQLiteStore) {
	t.Helper()
	require.NoError(t, st.ReplaceZones(context.Background(), testZones()))
	loadTestTrips(t, st,
		testTrip(100, 200, "2024-01-15 08:00:00", 10.00),
		testTrip(100, 100, "2024-01-15 08:30:00", 20.00),
		testTrip(200, 100, "2024-01-15 22:00:00", 30.00),
	)
}

func TestSQLite_Summary(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedQueryFixture(t, st)

	sum, err := st.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), sum.TotalTrips)
	assert.Equal(t, 20.0, sum.AvgFare)
}

func TestSQLite_Summary_EmptyTable(t *testing.T) {
	st := newTestSQLiteStore(t)

	sum, err := st.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), sum.TotalTrips)
	assert.Equal(t, 0.0, sum.AvgFare)
}

func TestSQLite_BoroughCounts(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedQueryFixture(t, st)

	counts, err := st.BoroughCounts(context.Background())
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, "Manhattan", counts[0].Borough)
	assert.Equal(t, int64(2), counts[0].TripCount)
	assert.Equal(t, "Queens", counts[1].Borough)
	assert.Equal(t, int64(1), counts[1].TripCount)
}

func TestSQLite_TimeEfficiency(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedQueryFixture(t, st)

	buckets, err := st.TimeEfficiency(context.Background())
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, string(model.Morning), buckets[0].TimeOfDay)
	assert.Equal(t, 8.0, buckets[0].AvgSpeed)
}

func TestSQLite_ListTrips(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedQueryFixture(t, st)
	ctx := context.Background()

	trips, err := st.ListTrips(ctx, TripFilter{})
	require.NoError(t, err)
	require.Len(t, trips, 3)
	assert.Equal(t, "Manhattan", trips[0].PickupBorough)
	assert.Equal(t, "Queens", trips[0].DropoffBorough)
	assert.Equal(t, "2024-01-15 08:00:00", trips[0].PickupTS)
	assert.Equal(t, model.Morning, trips[0].TimeOfDay)

	// Borough filter applies to the pickup side.
	trips, err = st.ListTrips(ctx, TripFilter{Borough: "Queens"})
	require.NoError(t, err)
	require.Len(t, trips, 1)
	assert.Equal(t, 30.00, trips[0].TotalAmount)

	// Pagination.
	trips, err = st.ListTrips(ctx, TripFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, trips, 2)

	trips, err = st.ListTrips(ctx, TripFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, trips, 1)

	trips, err = st.ListTrips(ctx, TripFilter{Borough: "Bronx"})
	require.NoError(t, err)
	assert.Empty(t, trips)
}

func TestSQLite_HourlyCounts(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedQueryFixture(t, st)

	hours, err := st.HourlyCounts(context.Background())
	require.NoError(t, err)
	require.Len(t, hours, 2)
	assert.Equal(t, "08", hours[0].Hour)
	assert.Equal(t, int64(2), hours[0].Trips)
	assert.Equal(t, "22", hours[1].Hour)
	assert.Equal(t, int64(1), hours[1].Trips)
}

func TestSQLite_Revenue(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedQueryFixture(t, st)

	rev, err := st.Revenue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 60.0, rev.TotalRevenue)
	assert.Equal(t, 15.0, rev.AvgDurationMinutes)
}

func TestSQLite_Revenue_EmptyTable(t *testing.T) {
	st := newTestSQLiteStore(t)

	rev, err := st.Revenue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0, rev.TotalRevenue)
	assert.Equal(t, 0.0, rev.AvgDurationMinutes)
}

func TestSQLite_Ping(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Ping(context.Background()))
}
