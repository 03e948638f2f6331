package analytics

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(id int, fare float64, borough string) Record {
	return Record{"trip_id": int64(id), "fare_amount": fare, "borough": borough}
}

func fares(records []Record) []float64 {
	out := make([]float64, 0, len(records))
	for _, r := range records {
		out = append(out, r["fare_amount"].(float64))
	}
	return out
}

// --- Sort ---

func TestSort_Ascending(t *testing.T) {
	in := []Record{rec(1, 9.5, "Queens"), rec(2, 2.0, "Manhattan"), rec(3, 5.25, "Bronx")}

	out, err := Sort(in, "fare_amount")
	require.NoError(t, err)
	assert.Equal(t, []float64{2.0, 5.25, 9.5}, fares(out))

	// Input order is untouched.
	assert.Equal(t, []float64{9.5, 2.0, 5.25}, fares(in))
}

func TestSort_Stable(t *testing.T) {
	in := []Record{rec(1, 5.0, "a"), rec(2, 5.0, "b"), rec(3, 2.0, "c"), rec(4, 5.0, "d")}

	out, err := Sort(in, "fare_amount")
	require.NoError(t, err)

	// Equal keys keep their input order.
	var ids []int64
	for _, r := range out {
		ids = append(ids, r["trip_id"].(int64))
	}
	assert.Equal(t, []int64{3, 1, 2, 4}, ids)
}

func TestSort_Strings(t *testing.T) {
	in := []Record{rec(1, 0, "Queens"), rec(2, 0, "Bronx"), rec(3, 0, "Manhattan")}

	out, err := Sort(in, "borough")
	require.NoError(t, err)
	assert.Equal(t, "Bronx", out[0]["borough"])
	assert.Equal(t, "Queens", out[2]["borough"])
}

func TestSort_MatchesStdlibOnRandomInput(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	in := make([]Record, 200)
	for i := range in {
		in[i] = rec(i, float64(rng.Intn(50)), "x")
	}

	out, err := Sort(in, "fare_amount")
	require.NoError(t, err)
	require.Len(t, out, len(in))
	for i := 1; i < len(out); i++ {
		assert.LessOrEqual(t, out[i-1]["fare_amount"].(float64), out[i]["fare_amount"].(float64))
	}
}

func TestSort_UnknownField(t *testing.T) {
	_, err := Sort([]Record{rec(1, 1, "a"), rec(2, 2, "b")}, "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownField))
}

func TestSort_EmptyAndSingle(t *testing.T) {
	out, err := Sort(nil, "fare_amount")
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = Sort([]Record{rec(1, 1, "a")}, "fare_amount")
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestSort_RowCap(t *testing.T) {
	in := make([]Record, MaxRows+1)
	for i := range in {
		in[i] = rec(i, 0, "a")
	}

	_, err := Sort(in, "fare_amount")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooManyRows))

	_, err = Sort(in[:MaxRows], "fare_amount")
	assert.NoError(t, err)
}

func TestSortDescending(t *testing.T) {
	in := []Record{rec(1, 2.0, "a"), rec(2, 9.5, "b"), rec(3, 5.25, "c")}

	out, err := SortDescending(in, "fare_amount")
	require.NoError(t, err)
	assert.Equal(t, []float64{9.5, 5.25, 2.0}, fares(out))
}

// --- Grouping ---

func TestGroupCount(t *testing.T) {
	in := []Record{rec(1, 1, "Queens"), rec(2, 1, "Manhattan"), rec(3, 1, "Queens")}

	counts, err := GroupCount(in, "borough")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Queens": 2, "Manhattan": 1}, counts)

	// Counts sum to the input length.
	total := 0
	for _, n := range counts {
		total += n
	}
	assert.Equal(t, len(in), total)
}

func TestGroupCount_NumericKey(t *testing.T) {
	in := []Record{rec(1, 1, "a"), rec(1, 1, "b")}

	counts, err := GroupCount(in, "trip_id")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"1": 2}, counts)
}

func TestGroupCount_Empty(t *testing.T) {
	counts, err := GroupCount(nil, "borough")
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestGroupMean(t *testing.T) {
	in := []Record{
		rec(1, 10.0, "Queens"),
		rec(2, 20.0, "Queens"),
		rec(3, 7.5, "Manhattan"),
	}

	means, err := GroupMean(in, "borough", "fare_amount")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Queens": 15.0, "Manhattan": 7.5}, means)
}

func TestGroupMean_NonNumericValueField(t *testing.T) {
	_, err := GroupMean([]Record{rec(1, 1, "a")}, "fare_amount", "borough")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not numeric")
}

// --- TopN ---

func TestTopN(t *testing.T) {
	in := []Record{rec(1, 2.0, "a"), rec(2, 9.5, "b"), rec(3, 5.25, "c"), rec(4, 7.0, "d")}

	out, err := TopN(in, "fare_amount", 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{9.5, 7.0}, fares(out))
}

func TestTopN_ClampsN(t *testing.T) {
	in := []Record{rec(1, 2.0, "a"), rec(2, 9.5, "b")}

	out, err := TopN(in, "fare_amount", 10)
	require.NoError(t, err)
	assert.Len(t, out, 2)

	out, err = TopN(in, "fare_amount", -1)
	require.NoError(t, err)
	assert.Empty(t, out)
}

// --- compare ---

func TestCompare_MixedTypes(t *testing.T) {
	a := Record{"v": 5.0}
	b := Record{"v": "text"}

	// Numeric sorts before non-numeric.
	cmp, err := compare(a, b, "v")
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)

	cmp, err = compare(b, a, "v")
	require.NoError(t, err)
	assert.Equal(t, 1, cmp)
}

func TestCompare_IntAgainstFloat(t *testing.T) {
	cmp, err := compare(Record{"v": int64(3)}, Record{"v": 3.5}, "v")
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)
}
