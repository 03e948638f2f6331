// Package store persists zones, validated trips, and pipeline run records,
// and serves the read-only queries behind the REST layer. Two backends are
// provided: SQLite (default) and PostgreSQL.
package store

import (
	"context"

	"github.com/metrolab/tripline/internal/model"
)

// TripFilter specifies criteria for listing trips.
type TripFilter struct {
	Borough string `json:"borough,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}

// SummaryStats holds the dashboard header KPIs.
type SummaryStats struct {
	TotalTrips int64   `json:"total_trips"`
	AvgFare    float64 `json:"avg_fare"`
}

// BoroughCount is one bar of the per-borough distribution.
type BoroughCount struct {
	Borough   string `json:"Borough"`
	TripCount int64  `json:"trip_count"`
}

// TimeBucketSpeed is the average speed observed in one time-of-day bucket.
type TimeBucketSpeed struct {
	TimeOfDay string  `json:"time_of_day"`
	AvgSpeed  float64 `json:"avg_speed"`
}

// HourCount is the trip count for one pickup hour ("00".."23").
type HourCount struct {
	Hour  string `json:"hour"`
	Trips int64  `json:"trips"`
}

// RevenueStats holds revenue and duration KPIs across all persisted trips.
type RevenueStats struct {
	TotalRevenue       float64 `json:"total_revenue"`
	AvgDurationMinutes float64 `json:"avg_duration_minutes"`
}

// TripLoader is a transactional bulk load of the trips relation. Begin
// clears the relation; batches are inserted with Insert; nothing is visible
// to readers until Commit. A batch boundary carries no meaning — rows are
// never split across statements.
type TripLoader interface {
	Insert(ctx context.Context, batch []model.EnrichedTrip) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store is the persistence interface shared by the pipeline and the query
// surface. The pipeline is the only writer; everything from Zones down is
// read-only.
type Store interface {
	// Pipeline writes
	ReplaceZones(ctx context.Context, zones []model.Zone) error
	BeginTripLoad(ctx context.Context) (TripLoader, error)
	RecordRun(ctx context.Context, run *model.PipelineRun) error

	// Run records
	LatestRun(ctx context.Context) (*model.PipelineRun, error)
	ListRuns(ctx context.Context, limit int) ([]model.PipelineRun, error)

	// Query surface
	Zones(ctx context.Context) ([]model.Zone, error)
	TripCount(ctx context.Context) (int64, error)
	Summary(ctx context.Context) (*SummaryStats, error)
	BoroughCounts(ctx context.Context) ([]BoroughCount, error)
	TimeEfficiency(ctx context.Context) ([]TimeBucketSpeed, error)
	ListTrips(ctx context.Context, filter TripFilter) ([]model.TripRow, error)
	HourlyCounts(ctx context.Context) ([]HourCount, error)
	Revenue(ctx context.Context) (*RevenueStats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// tripColumns lists the trips columns in insert order, shared by both
// backends.
var tripColumns = []string{
	"VendorID", "pickup_ts", "dropoff_ts", "passenger_count", "trip_distance",
	"RatecodeID", "store_and_fwd_flag", "PULocationID", "DOLocationID",
	"payment_type", "fare_amount", "extra", "mta_tax", "tip_amount",
	"tolls_amount", "improvement_surcharge", "total_amount",
	"congestion_surcharge", "trip_duration_seconds", "average_speed_mph",
	"time_of_day",
}
