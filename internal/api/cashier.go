package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"restaurant-pos/internal/models"
)

// ListTables handles GET /api/cashier/tables
func (s *Server) ListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.Orders.ListTables(r.Context(), actorFrom(r.Context()).Branch)
	if err != nil {
		s.writeError(w, r, "tables_list_failed", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, tables)
}

// GetTable handles GET /api/cashier/table/{tableNumber}
func (s *Server) GetTable(w http.ResponseWriter, r *http.Request) {
	table, err := strconv.Atoi(chi.URLParam(r, "tableNumber"))
	if err != nil {
		s.writeError(w, r, "table_lookup_failed", &models.ValidationError{Field: "tableNumber", Message: "table number must be an integer"})
		return
	}
	ledger, err := s.Orders.GetTable(r.Context(), actorFrom(r.Context()).Branch, table)
	if err != nil {
		s.writeError(w, r, "table_lookup_failed", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, ledger)
}

// Pay handles POST /api/cashier/pay
func (s *Server) Pay(w http.ResponseWriter, r *http.Request) {
	var req models.PayRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, "payment_failed", err)
		return
	}
	res, err := s.Orders.Pay(r.Context(), actorFrom(r.Context()), req)
	if err != nil {
		s.writeError(w, r, "payment_failed", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"payment": res.Payment,
		"orders":  res.Orders,
	})
}
