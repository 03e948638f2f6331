// Package analytics provides deliberately simple in-memory sort, group, and
// top-N operations over already-materialized record lists. The sort is
// comparison-based and quadratic by design and must only be used on small,
// pre-limited result sets; MaxRows is an enforced precondition, not a
// guideline. All operations copy their input and make no distributional
// assumptions.
package analytics

import (
	"github.com/rotisserie/eris"
)

// MaxRows is the hard input-size ceiling for every operation in this
// package.
const MaxRows = 5000

// ErrTooManyRows is returned when an input list exceeds MaxRows.
var ErrTooManyRows = eris.Errorf("analytics: input exceeds %d rows", MaxRows)

// ErrUnknownField is returned when a record is missing the requested field.
var ErrUnknownField = eris.New("analytics: unknown field")

// Record is one row as served to the custom-analytics endpoints.
type Record map[string]any

// Sort returns a new list ordered ascending by the named field. The sort is
// a stable bubble sort with an early exit once a pass makes no swaps.
func Sort(records []Record, field string) ([]Record, error) {
	if len(records) > MaxRows {
		return nil, ErrTooManyRows
	}

	out := make([]Record, len(records))
	copy(out, records)

	n := len(out)
	for i := 0; i < n; i++ {
		swapped := false
		for j := 0; j < n-i-1; j++ {
			cmp, err := compare(out[j], out[j+1], field)
			if err != nil {
				return nil, err
			}
			if cmp > 0 {
				out[j], out[j+1] = out[j+1], out[j]
				swapped = true
			}
		}
		if !swapped {
			break
		}
	}
	return out, nil
}

// SortDescending returns a new list ordered descending by the named field:
// an ascending sort followed by a reversal.
func SortDescending(records []Record, field string) ([]Record, error) {
	sorted, err := Sort(records, field)
	if err != nil {
		return nil, err
	}

	reversed := make([]Record, 0, len(sorted))
	for i := len(sorted) - 1; i >= 0; i-- {
		reversed = append(reversed, sorted[i])
	}
	return reversed, nil
}

// GroupCount groups records by the named field in a single pass and returns
// per-group counts. The counts always sum to the input length.
func GroupCount(records []Record, field string) (map[string]int, error) {
	if len(records) > MaxRows {
		return nil, ErrTooManyRows
	}

	counts := make(map[string]int)
	for _, r := range records {
		key, err := stringValue(r, field)
		if err != nil {
			return nil, err
		}
		counts[key]++
	}
	return counts, nil
}

// GroupMean groups records by groupField and returns the arithmetic mean of
// valueField per group, computed in two passes: sums and counts first,
// averages second.
func GroupMean(records []Record, groupField, valueField string) (map[string]float64, error) {
	if len(records) > MaxRows {
		return nil, ErrTooManyRows
	}

	type agg struct {
		sum   float64
		count int
	}
	groups := make(map[string]*agg)

	for _, r := range records {
		key, err := stringValue(r, groupField)
		if err != nil {
			return nil, err
		}
		val, err := numericValue(r, valueField)
		if err != nil {
			return nil, err
		}
		a, ok := groups[key]
		if !ok {
			a = &agg{}
			groups[key] = a
		}
		a.sum += val
		a.count++
	}

	means := make(map[string]float64, len(groups))
	for key, a := range groups {
		means[key] = a.sum / float64(a.count)
	}
	return means, nil
}

// TopN returns the n records with the highest values of the named field:
// a descending sort followed by a slice.
func TopN(records []Record, field string, n int) ([]Record, error) {
	sorted, err := SortDescending(records, field)
	if err != nil {
		return nil, err
	}
	if n > len(sorted) {
		n = len(sorted)
	}
	if n < 0 {
		n = 0
	}
	return sorted[:n], nil
}
