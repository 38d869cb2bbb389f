package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"restaurant-pos/internal/services/report"
)

type clearRangeRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// LiveReport handles GET /api/reports/live
func (s *Server) LiveReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.Reports.Live(r.Context(), actorFrom(r.Context()).Branch)
	if err != nil {
		s.writeError(w, r, "report_failed", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, rep)
}

// DailyReport handles GET /api/reports/daily
func (s *Server) DailyReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.Reports.Daily(r.Context(), actorFrom(r.Context()).Branch)
	if err != nil {
		s.writeError(w, r, "report_failed", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, rep)
}

// PeriodReport handles GET /api/reports/period/{period}?start=YYYY-MM-DD&end=YYYY-MM-DD
func (s *Server) PeriodReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rep, err := s.Reports.Period(r.Context(), actorFrom(r.Context()).Branch,
		report.Period(chi.URLParam(r, "period")), q.Get("start"), q.Get("end"))
	if err != nil {
		s.writeError(w, r, "report_failed", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, rep)
}

// ClearRange handles POST /api/reports/clear-range
func (s *Server) ClearRange(w http.ResponseWriter, r *http.Request) {
	var req clearRangeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, "clear_range_failed", err)
		return
	}
	res, err := s.Reports.ClearRange(r.Context(), actorFrom(r.Context()).Branch, req.Start, req.End)
	if err != nil {
		s.writeError(w, r, "clear_range_failed", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"success":                true,
		"removedOrders":          res.RemovedOrders,
		"removedCompletedOrders": res.RemovedCompletedOrders,
	})
}
