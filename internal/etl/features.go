package etl

import (
	"math"
	"time"

	"github.com/metrolab/tripline/internal/model"
)

// Features derives trip duration, average speed, and the time-of-day bucket
// from the raw timestamps and distance. It never returns an error: any
// unparseable timestamp, non-positive duration, or non-positive distance
// yields Valid=false and the validation engine decides what to do with the
// row. Infinite or NaN speeds are likewise normalized to Valid=false so no
// numeric oddity escapes to callers.
func Features(pickup, dropoff string, distanceMiles float64) model.TripFeatures {
	t1, err := time.Parse(model.TimeLayout, pickup)
	if err != nil {
		return model.TripFeatures{}
	}
	t2, err := time.Parse(model.TimeLayout, dropoff)
	if err != nil {
		return model.TripFeatures{}
	}

	durationSecs := int64(t2.Sub(t1) / time.Second)
	if durationSecs <= 0 || distanceMiles <= 0 {
		return model.TripFeatures{}
	}

	hours := float64(durationSecs) / 3600.0
	speed := distanceMiles / hours
	if math.IsInf(speed, 0) || math.IsNaN(speed) {
		return model.TripFeatures{}
	}

	return model.TripFeatures{
		DurationSeconds: durationSecs,
		SpeedMPH:        math.Round(speed*100) / 100,
		TimeOfDay:       bucketForHour(t1.Hour()),
		Valid:           true,
	}
}

// bucketForHour maps a pickup hour to its time-of-day bucket. Boundaries are
// inclusive on the low end and exclusive on the high end; both residual
// ranges map to Night.
func bucketForHour(hour int) model.TimeOfDay {
	switch {
	case hour >= 6 && hour < 12:
		return model.Morning
	case hour >= 12 && hour < 17:
		return model.Afternoon
	case hour >= 17 && hour < 21:
		return model.Evening
	default:
		return model.Night
	}
}
