package api

import (
	"errors"
	"net/http"

	"github.com/metrolab/tripline/internal/analytics"
	"github.com/metrolab/tripline/internal/store"
)

// fetchRecords materializes a capped slice of trips for the in-memory
// library. The cap protects the quadratic sort, not the store.
func (s *Server) fetchRecords(r *http.Request) ([]analytics.Record, error) {
	limit := queryInt(r, "limit", s.opts.AnalyticsMaxRows)
	if limit > s.opts.AnalyticsMaxRows {
		limit = s.opts.AnalyticsMaxRows
	}

	trips, err := s.store.ListTrips(r.Context(), store.TripFilter{
		Borough: r.URL.Query().Get("borough"),
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}

	records := make([]analytics.Record, 0, len(trips))
	for _, t := range trips {
		records = append(records, analytics.Record{
			"trip_id":               t.TripID,
			"pickup_ts":             t.PickupTS,
			"trip_distance":         t.TripDistance,
			"fare_amount":           t.FareAmount,
			"tip_amount":            t.TipAmount,
			"total_amount":          t.TotalAmount,
			"trip_duration_seconds": t.DurationSeconds,
			"average_speed_mph":     t.AverageSpeedMPH,
			"time_of_day":           string(t.TimeOfDay),
			"borough":               t.PickupBorough,
		})
	}
	return records, nil
}

func (s *Server) handleSorted(w http.ResponseWriter, r *http.Request) {
	field := r.URL.Query().Get("field")
	if field == "" {
		writeError(w, http.StatusBadRequest, "field is required")
		return
	}

	records, err := s.fetchRecords(r)
	if err != nil {
		internalError(w, "fetch records", err)
		return
	}

	var sorted []analytics.Record
	if r.URL.Query().Get("order") == "desc" {
		sorted, err = analytics.SortDescending(records, field)
	} else {
		sorted, err = analytics.Sort(records, field)
	}
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sorted)
}

func (s *Server) handleGrouped(w http.ResponseWriter, r *http.Request) {
	field := r.URL.Query().Get("field")
	if field == "" {
		field = "borough"
	}

	records, err := s.fetchRecords(r)
	if err != nil {
		internalError(w, "fetch records", err)
		return
	}

	counts, err := analytics.GroupCount(records, field)
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *Server) handleMeans(w http.ResponseWriter, r *http.Request) {
	group := r.URL.Query().Get("group")
	value := r.URL.Query().Get("value")
	if group == "" || value == "" {
		writeError(w, http.StatusBadRequest, "group and value are required")
		return
	}

	records, err := s.fetchRecords(r)
	if err != nil {
		internalError(w, "fetch records", err)
		return
	}

	means, err := analytics.GroupMean(records, group, value)
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, means)
}

func (s *Server) handleTopN(w http.ResponseWriter, r *http.Request) {
	field := r.URL.Query().Get("field")
	if field == "" {
		writeError(w, http.StatusBadRequest, "field is required")
		return
	}
	n := queryInt(r, "n", 10)

	records, err := s.fetchRecords(r)
	if err != nil {
		internalError(w, "fetch records", err)
		return
	}

	top, err := analytics.TopN(records, field, n)
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, top)
}

func writeAnalyticsError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, analytics.ErrUnknownField):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, analytics.ErrTooManyRows):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		internalError(w, "analytics", err)
	}
}
