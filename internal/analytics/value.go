package analytics

import (
	"strconv"

	"github.com/rotisserie/eris"
)

// compare orders two records by the named field. Numeric values compare
// numerically, everything else lexicographically; a numeric value sorts
// before a non-numeric one.
func compare(a, b Record, field string) (int, error) {
	av, ok := a[field]
	if !ok {
		return 0, eris.Wrapf(ErrUnknownField, "%q", field)
	}
	bv, ok := b[field]
	if !ok {
		return 0, eris.Wrapf(ErrUnknownField, "%q", field)
	}

	af, aNum := toFloat(av)
	bf, bNum := toFloat(bv)
	switch {
	case aNum && bNum:
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		default:
			return 0, nil
		}
	case aNum:
		return -1, nil
	case bNum:
		return 1, nil
	}

	as, bs := stringify(av), stringify(bv)
	switch {
	case as < bs:
		return -1, nil
	case as > bs:
		return 1, nil
	default:
		return 0, nil
	}
}

// numericValue extracts the named field as a float64.
func numericValue(r Record, field string) (float64, error) {
	v, ok := r[field]
	if !ok {
		return 0, eris.Wrapf(ErrUnknownField, "%q", field)
	}
	f, isNum := toFloat(v)
	if !isNum {
		return 0, eris.Errorf("analytics: field %q is not numeric", field)
	}
	return f, nil
}

// stringValue extracts the named field as its string form for grouping keys.
func stringValue(r Record, field string) (string, error) {
	v, ok := r[field]
	if !ok {
		return "", eris.Wrapf(ErrUnknownField, "%q", field)
	}
	return stringify(v), nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(s, 10)
	case int:
		return strconv.Itoa(s)
	case bool:
		return strconv.FormatBool(s)
	case nil:
		return ""
	default:
		return ""
	}
}
