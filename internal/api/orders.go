package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"restaurant-pos/internal/models"
)

type moveTableRequest struct {
	NewTableNumber int `json:"newTableNumber"`
}

// ListOrders handles GET /api/orders with the caller's visibility rules
func (s *Server) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.Orders.VisibleOrders(r.Context(), actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, "orders_list_failed", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, orders)
}

// CreateOrder handles POST /api/orders
func (s *Server) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, "order_creation_failed", err)
		return
	}
	order, err := s.Orders.CreateOrder(r.Context(), actorFrom(r.Context()), req)
	if err != nil {
		s.writeError(w, r, "order_creation_failed", err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, order)
}

// TransitionItem handles PATCH /api/orders/{orderID}/items/{itemID}
func (s *Server) TransitionItem(w http.ResponseWriter, r *http.Request) {
	var req models.TransitionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, "item_transition_failed", err)
		return
	}
	req.OrderID = chi.URLParam(r, "orderID")
	req.ItemID = chi.URLParam(r, "itemID")

	order, err := s.Orders.TransitionItem(r.Context(), actorFrom(r.Context()), req)
	if err != nil {
		s.writeError(w, r, "item_transition_failed", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, order)
}

// MoveTable handles PATCH /api/orders/{orderID}/move-table
func (s *Server) MoveTable(w http.ResponseWriter, r *http.Request) {
	var req moveTableRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, "order_move_failed", err)
		return
	}
	order, err := s.Orders.MoveTable(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "orderID"), req.NewTableNumber)
	if err != nil {
		s.writeError(w, r, "order_move_failed", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, order)
}

// CompletedOrders handles GET /api/orders/completed
func (s *Server) CompletedOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.Orders.CompletedOrders(r.Context(), actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, "completed_list_failed", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, orders)
}

// MoveToCompleted handles POST /api/orders/move-to-completed
func (s *Server) MoveToCompleted(w http.ResponseWriter, r *http.Request) {
	moved, err := s.Orders.MoveReadyToArchive(r.Context(), actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, "archive_failed", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{"success": true, "movedCount": moved})
}
