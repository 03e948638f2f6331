// Package model defines the domain types shared across the ingest pipeline,
// the store, and the query surface.
package model

import "time"

// TimeLayout is the wall-clock timestamp layout used by the raw trip files
// and by the persisted pickup_ts/dropoff_ts columns.
const TimeLayout = "2006-01-02 15:04:05"

// TimeOfDay is the bucket derived from the pickup hour.
type TimeOfDay string

const (
	Morning   TimeOfDay = "Morning"   // [06:00, 12:00)
	Afternoon TimeOfDay = "Afternoon" // [12:00, 17:00)
	Evening   TimeOfDay = "Evening"   // [17:00, 21:00)
	Night     TimeOfDay = "Night"     // everything else
)

// RawTrip holds one input row exactly as read from the trip file. Values stay
// untouched strings so a rejected row can be ledgered byte-for-byte; numeric
// parsing happens in the validation engine.
type RawTrip struct {
	VendorID             string
	PickupTime           string
	DropoffTime          string
	PassengerCount       string
	TripDistance         string
	RatecodeID           string
	StoreAndFwdFlag      string
	PULocationID         string
	DOLocationID         string
	PaymentType          string
	FareAmount           string
	Extra                string
	MTATax               string
	TipAmount            string
	TollsAmount          string
	ImprovementSurcharge string
	TotalAmount          string
	CongestionSurcharge  string
}

// Columns lists the raw trip columns in file order. The rejection ledger uses
// this order plus a trailing rejection_reason column.
func Columns() []string {
	return []string{
		"VendorID", "tpep_pickup_datetime", "tpep_dropoff_datetime",
		"passenger_count", "trip_distance", "RatecodeID", "store_and_fwd_flag",
		"PULocationID", "DOLocationID", "payment_type", "fare_amount", "extra",
		"mta_tax", "tip_amount", "tolls_amount", "improvement_surcharge",
		"total_amount", "congestion_surcharge",
	}
}

// Values returns the raw field values in the same order as Columns.
func (r RawTrip) Values() []string {
	return []string{
		r.VendorID, r.PickupTime, r.DropoffTime,
		r.PassengerCount, r.TripDistance, r.RatecodeID, r.StoreAndFwdFlag,
		r.PULocationID, r.DOLocationID, r.PaymentType, r.FareAmount, r.Extra,
		r.MTATax, r.TipAmount, r.TollsAmount, r.ImprovementSurcharge,
		r.TotalAmount, r.CongestionSurcharge,
	}
}

// TripFeatures holds the values derived from a raw trip's timestamps and
// distance. Valid is false when the timestamps do not parse or when the
// duration or distance is non-positive; the numeric fields are meaningless in
// that case and must not be read.
type TripFeatures struct {
	DurationSeconds int64
	SpeedMPH        float64
	TimeOfDay       TimeOfDay
	Valid           bool
}

// EnrichedTrip is a fully validated trip row ready for persistence.
type EnrichedTrip struct {
	VendorID             string
	Pickup               time.Time
	Dropoff              time.Time
	PassengerCount       int64
	TripDistance         float64
	RatecodeID           string
	StoreAndFwdFlag      string
	PULocationID         int64
	DOLocationID         int64
	PaymentType          string
	FareAmount           float64
	Extra                float64
	MTATax               float64
	TipAmount            float64
	TollsAmount          float64
	ImprovementSurcharge float64
	TotalAmount          float64
	CongestionSurcharge  float64
	DurationSeconds      int64
	AverageSpeedMPH      float64
	TimeOfDay            TimeOfDay
}

// TripRow is a persisted trip as returned by the query surface, with the
// pickup and dropoff boroughs joined in.
type TripRow struct {
	TripID          int64     `json:"trip_id"`
	VendorID        string    `json:"VendorID"`
	PickupTS        string    `json:"pickup_ts"`
	DropoffTS       string    `json:"dropoff_ts"`
	PassengerCount  int64     `json:"passenger_count"`
	TripDistance    float64   `json:"trip_distance"`
	PULocationID    int64     `json:"PULocationID"`
	DOLocationID    int64     `json:"DOLocationID"`
	FareAmount      float64   `json:"fare_amount"`
	TipAmount       float64   `json:"tip_amount"`
	TotalAmount     float64   `json:"total_amount"`
	DurationSeconds int64     `json:"trip_duration_seconds"`
	AverageSpeedMPH float64   `json:"average_speed_mph"`
	TimeOfDay       TimeOfDay `json:"time_of_day"`
	PickupBorough   string    `json:"Pickup_Borough"`
	DropoffBorough  string    `json:"Dropoff_Borough"`
}
