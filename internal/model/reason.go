package model

// RejectionReason identifies the single rule that rejected a row. Exactly one
// reason is recorded per rejected row, chosen by rule priority.
type RejectionReason string

const (
	ReasonFareOutlier     RejectionReason = "Fare Outlier (Short Trip)"
	ReasonShortTripSpeed  RejectionReason = "Impossible Short Speed"
	ReasonZeroDistance    RejectionReason = "Zero Distance/High Fare"
	ReasonNegativeFare    RejectionReason = "Negative/Zero Fare"
	ReasonExtremeSpeed    RejectionReason = "Extreme Speed"
	ReasonInvalidDuration RejectionReason = "Invalid Duration"
	ReasonUnknownZone     RejectionReason = "Unknown Zone"

	// ReasonMalformed is the catch-all for rows that fail numeric coercion
	// before any plausibility rule can be evaluated.
	ReasonMalformed RejectionReason = "Malformed Record"
)

// RejectionReasons returns every reason in rule-priority order, the malformed
// catch-all last. Useful for stable report ordering.
func RejectionReasons() []RejectionReason {
	return []RejectionReason{
		ReasonFareOutlier,
		ReasonShortTripSpeed,
		ReasonZeroDistance,
		ReasonNegativeFare,
		ReasonExtremeSpeed,
		ReasonInvalidDuration,
		ReasonUnknownZone,
		ReasonMalformed,
	}
}

// RejectionRecord pairs an untouched raw row with its assigned reason.
type RejectionRecord struct {
	Raw    RawTrip
	Reason RejectionReason
}
