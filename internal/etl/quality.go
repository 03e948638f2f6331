package etl

import "math"

// QualityScore is the accepted fraction of all attempted rows as a
// percentage, rounded to two decimals. Defined as 0 when nothing was
// attempted.
func QualityScore(accepted, rejected int64) float64 {
	total := accepted + rejected
	if total == 0 {
		return 0
	}
	score := 100 * float64(accepted) / float64(total)
	return math.Round(score*100) / 100
}
