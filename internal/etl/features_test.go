package etl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metrolab/tripline/internal/model"
)

func TestFeatures_TypicalTrip(t *testing.T) {
	// 15 minutes over 2 miles: 8 mph, Morning pickup.
	f := Features("2024-01-15 08:00:00", "2024-01-15 08:15:00", 2.0)

	require.True(t, f.Valid)
	assert.Equal(t, int64(900), f.DurationSeconds)
	assert.Equal(t, 8.0, f.SpeedMPH)
	assert.Equal(t, model.Morning, f.TimeOfDay)
}

func TestFeatures_SpeedRounding(t *testing.T) {
	// 7 minutes over 1.3 miles: 11.142857... mph rounds to 11.14.
	f := Features("2024-01-15 09:00:00", "2024-01-15 09:07:00", 1.3)

	require.True(t, f.Valid)
	assert.Equal(t, 11.14, f.SpeedMPH)
}

func TestFeatures_NonPositiveDuration(t *testing.T) {
	same := Features("2024-01-15 08:00:00", "2024-01-15 08:00:00", 2.0)
	assert.False(t, same.Valid)

	backwards := Features("2024-01-15 08:15:00", "2024-01-15 08:00:00", 2.0)
	assert.False(t, backwards.Valid)
}

func TestFeatures_NonPositiveDistance(t *testing.T) {
	zero := Features("2024-01-15 08:00:00", "2024-01-15 08:15:00", 0)
	assert.False(t, zero.Valid)

	negative := Features("2024-01-15 08:00:00", "2024-01-15 08:15:00", -1.2)
	assert.False(t, negative.Valid)
}

func TestFeatures_UnparseableTimestamps(t *testing.T) {
	assert.False(t, Features("not-a-time", "2024-01-15 08:15:00", 2.0).Valid)
	assert.False(t, Features("2024-01-15 08:00:00", "", 2.0).Valid)
	assert.False(t, Features("2024-01-15T08:00:00Z", "2024-01-15T08:15:00Z", 2.0).Valid)
}

func TestFeatures_SubSecondDurationTruncates(t *testing.T) {
	// One second is the smallest representable duration; the division
	// truncates, it does not round.
	f := Features("2024-01-15 08:00:00", "2024-01-15 08:00:01", 0.01)
	require.True(t, f.Valid)
	assert.Equal(t, int64(1), f.DurationSeconds)
	assert.Equal(t, 36.0, f.SpeedMPH)
}

func TestBucketForHour(t *testing.T) {
	cases := []struct {
		hour int
		want model.TimeOfDay
	}{
		{0, model.Night},
		{5, model.Night},
		{6, model.Morning},
		{11, model.Morning},
		{12, model.Afternoon},
		{16, model.Afternoon},
		{17, model.Evening},
		{20, model.Evening},
		{21, model.Night},
		{23, model.Night},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, bucketForHour(tc.hour), "hour %d", tc.hour)
	}
}
