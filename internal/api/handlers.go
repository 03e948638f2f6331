package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/metrolab/tripline/internal/model"
	"github.com/metrolab/tripline/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "online", "database_found": true}
	if err := s.store.Ping(r.Context()); err != nil {
		status["status"] = "degraded"
		status["database_found"] = false
	}
	writeJSON(w, http.StatusOK, status)
}

// handleZones returns a LocationID-keyed map for O(1) lookup on the client.
func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	zones, err := s.store.Zones(r.Context())
	if err != nil {
		internalError(w, "list zones", err)
		return
	}

	out := make(map[string]map[string]string, len(zones))
	for _, z := range zones {
		out[strconv.FormatInt(z.LocationID, 10)] = map[string]string{
			"Borough": z.Borough,
			"Zone":    z.Zone,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Summary(r.Context())
	if err != nil {
		internalError(w, "summary", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleBoroughs(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.BoroughCounts(r.Context())
	if err != nil {
		internalError(w, "borough distribution", err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *Server) handleEfficiency(w http.ResponseWriter, r *http.Request) {
	buckets, err := s.store.TimeEfficiency(r.Context())
	if err != nil {
		internalError(w, "time efficiency", err)
		return
	}
	writeJSON(w, http.StatusOK, buckets)
}

func (s *Server) handleTrips(w http.ResponseWriter, r *http.Request) {
	filter := store.TripFilter{
		Borough: r.URL.Query().Get("borough"),
		Limit:   queryInt(r, "limit", 200),
		Offset:  queryInt(r, "offset", 0),
	}

	trips, err := s.store.ListTrips(r.Context(), filter)
	if err != nil {
		internalError(w, "list trips", err)
		return
	}
	if trips == nil {
		trips = []model.TripRow{}
	}
	writeJSON(w, http.StatusOK, trips)
}

func (s *Server) handleAnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	revenue, err := s.store.Revenue(r.Context())
	if err != nil {
		internalError(w, "revenue stats", err)
		return
	}
	hourly, err := s.store.HourlyCounts(r.Context())
	if err != nil {
		internalError(w, "hourly counts", err)
		return
	}

	chart := make([]map[string]any, 0, len(hourly))
	for _, h := range hourly {
		chart = append(chart, map[string]any{
			"hour":  h.Hour + ":00",
			"trips": h.Trips,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"kpis": map[string]string{
			"total_revenue":     fmt.Sprintf("$%.1fM", revenue.TotalRevenue/1e6),
			"avg_trip_duration": fmt.Sprintf("%.1f min", revenue.AvgDurationMinutes),
		},
		"chart_data": chart,
	})
}

// handleQuality reports the latest pipeline run's counts and score. It reads
// the recorded run only; no row is re-validated here.
func (s *Server) handleQuality(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.LatestRun(r.Context())
	if err != nil {
		internalError(w, "latest run", err)
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "no pipeline run recorded")
		return
	}

	issues := make([]map[string]any, 0, len(run.Breakdown))
	for reason, count := range run.Breakdown {
		issues = append(issues, map[string]any{
			"issue": string(reason),
			"count": count,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"overall_score":    fmt.Sprintf("%.2f%%", run.QualityScore),
		"valid_records":    run.Accepted,
		"rejected_records": run.Rejected,
		"detailed_issues":  issues,
		"last_updated":     run.FinishedAt,
	})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
