package etl

import (
	"strconv"
	"strings"
	"time"

	"github.com/metrolab/tripline/internal/model"
)

// numericTrip is the parsed numeric view of a raw row that the rules operate
// on.
type numericTrip struct {
	PassengerCount       int64
	Distance             float64
	PULocationID         int64
	DOLocationID         int64
	Fare                 float64
	Extra                float64
	MTATax               float64
	Tip                  float64
	Tolls                float64
	ImprovementSurcharge float64
	Total                float64
	CongestionSurcharge  float64
}

// rule pairs a rejection reason with its predicate. Rules are evaluated in
// slice order and the first match wins, so a row that violates several rules
// reports only the highest-priority reason.
type rule struct {
	reason model.RejectionReason
	match  func(n numericTrip, f model.TripFeatures) bool
}

// Validator classifies raw trips into enriched trips or rejection records.
type Validator struct {
	zones model.ZoneSet
	rules []rule
}

// NewValidator builds the fixed, ordered rule list. A nil zone set disables
// the unknown-zone rule.
func NewValidator(t Thresholds, zones model.ZoneSet) *Validator {
	return &Validator{
		zones: zones,
		rules: []rule{
			{model.ReasonFareOutlier, func(n numericTrip, _ model.TripFeatures) bool {
				return n.Total > t.FareOutlierTotal && n.Distance < t.FareOutlierDistance
			}},
			{model.ReasonShortTripSpeed, func(n numericTrip, f model.TripFeatures) bool {
				return f.Valid && n.Distance < t.ShortTripDistance && f.SpeedMPH > t.ShortTripSpeed
			}},
			{model.ReasonZeroDistance, func(n numericTrip, _ model.TripFeatures) bool {
				return n.Distance <= t.ZeroDistanceMax && n.Total > t.ZeroDistanceTotal
			}},
			{model.ReasonNegativeFare, func(n numericTrip, _ model.TripFeatures) bool {
				return n.Total <= 0
			}},
			{model.ReasonExtremeSpeed, func(_ numericTrip, f model.TripFeatures) bool {
				return f.Valid && (f.SpeedMPH > t.MaxSpeedMPH || f.SpeedMPH < 0)
			}},
			{model.ReasonInvalidDuration, func(_ numericTrip, f model.TripFeatures) bool {
				return !f.Valid || f.DurationSeconds <= 0 || f.DurationSeconds > t.MaxDurationSeconds
			}},
			{model.ReasonUnknownZone, func(n numericTrip, _ model.TripFeatures) bool {
				return !zones.Contains(n.PULocationID) || !zones.Contains(n.DOLocationID)
			}},
		},
	}
}

// Classify evaluates one raw row. It returns the enriched trip when the row
// passes every rule, or the single rejection reason when it does not.
func (v *Validator) Classify(raw model.RawTrip) (*model.EnrichedTrip, model.RejectionReason) {
	n, err := parseNumeric(raw)
	if err != nil {
		return nil, model.ReasonMalformed
	}

	f := Features(raw.PickupTime, raw.DropoffTime, n.Distance)

	for _, r := range v.rules {
		if r.match(n, f) {
			return nil, r.reason
		}
	}

	// Both timestamps parsed during feature derivation; f.Valid guarantees it.
	pickup, _ := time.Parse(model.TimeLayout, raw.PickupTime)
	dropoff, _ := time.Parse(model.TimeLayout, raw.DropoffTime)

	return &model.EnrichedTrip{
		VendorID:             raw.VendorID,
		Pickup:               pickup,
		Dropoff:              dropoff,
		PassengerCount:       n.PassengerCount,
		TripDistance:         n.Distance,
		RatecodeID:           raw.RatecodeID,
		StoreAndFwdFlag:      raw.StoreAndFwdFlag,
		PULocationID:         n.PULocationID,
		DOLocationID:         n.DOLocationID,
		PaymentType:          raw.PaymentType,
		FareAmount:           n.Fare,
		Extra:                n.Extra,
		MTATax:               n.MTATax,
		TipAmount:            n.Tip,
		TollsAmount:          n.Tolls,
		ImprovementSurcharge: n.ImprovementSurcharge,
		TotalAmount:          n.Total,
		CongestionSurcharge:  n.CongestionSurcharge,
		DurationSeconds:      f.DurationSeconds,
		AverageSpeedMPH:      f.SpeedMPH,
		TimeOfDay:            f.TimeOfDay,
	}, ""
}

// parseNumeric coerces the numeric columns. Location ids, distance, and the
// fare fields must parse; an empty money field is read as 0.00 (the
// congestion_surcharge column in particular is absent from older files).
func parseNumeric(raw model.RawTrip) (numericTrip, error) {
	var n numericTrip
	var err error

	if n.PULocationID, err = strconv.ParseInt(strings.TrimSpace(raw.PULocationID), 10, 64); err != nil {
		return n, err
	}
	if n.DOLocationID, err = strconv.ParseInt(strings.TrimSpace(raw.DOLocationID), 10, 64); err != nil {
		return n, err
	}
	if n.Distance, err = strconv.ParseFloat(strings.TrimSpace(raw.TripDistance), 64); err != nil {
		return n, err
	}
	if n.PassengerCount, err = parseCount(raw.PassengerCount); err != nil {
		return n, err
	}

	money := []struct {
		src string
		dst *float64
	}{
		{raw.FareAmount, &n.Fare},
		{raw.Extra, &n.Extra},
		{raw.MTATax, &n.MTATax},
		{raw.TipAmount, &n.Tip},
		{raw.TollsAmount, &n.Tolls},
		{raw.ImprovementSurcharge, &n.ImprovementSurcharge},
		{raw.TotalAmount, &n.Total},
		{raw.CongestionSurcharge, &n.CongestionSurcharge},
	}
	for _, m := range money {
		if *m.dst, err = parseMoney(m.src); err != nil {
			return n, err
		}
	}

	return n, nil
}

func parseMoney(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseCount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	// Some vendors emit passenger_count as "1.0".
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}
