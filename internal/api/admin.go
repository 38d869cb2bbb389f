package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"restaurant-pos/internal/models"
)

// ListMenu handles GET /api/menu
func (s *Server) ListMenu(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.Menu.List(r.Context(), actorFrom(r.Context()).Branch))
}

// CreateMenuItem handles POST /api/admin/menu
func (s *Server) CreateMenuItem(w http.ResponseWriter, r *http.Request) {
	var item models.MenuItem
	if err := decodeJSON(r, &item); err != nil {
		s.writeError(w, r, "menu_update_failed", err)
		return
	}
	item.ID = ""
	saved, err := s.Menu.Upsert(r.Context(), actorFrom(r.Context()).Branch, item)
	if err != nil {
		s.writeError(w, r, "menu_update_failed", err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, saved)
}

// UpdateMenuItem handles PUT /api/admin/menu/{id}
func (s *Server) UpdateMenuItem(w http.ResponseWriter, r *http.Request) {
	var item models.MenuItem
	if err := decodeJSON(r, &item); err != nil {
		s.writeError(w, r, "menu_update_failed", err)
		return
	}
	item.ID = chi.URLParam(r, "id")
	saved, err := s.Menu.Upsert(r.Context(), actorFrom(r.Context()).Branch, item)
	if err != nil {
		s.writeError(w, r, "menu_update_failed", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, saved)
}

// DeleteMenuItem handles DELETE /api/admin/menu/{id}
func (s *Server) DeleteMenuItem(w http.ResponseWriter, r *http.Request) {
	if err := s.Menu.Delete(r.Context(), actorFrom(r.Context()).Branch, chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, "menu_update_failed", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{"success": true})
}

// ListUsers handles GET /api/admin/users; only waiters and cashiers are listed
func (s *Server) ListUsers(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.Staff.List(r.Context(), actorFrom(r.Context()).Branch))
}

// CreateUser handles POST /api/admin/users
func (s *Server) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, "user_create_failed", err)
		return
	}
	user, err := s.Staff.Create(r.Context(), actorFrom(r.Context()).Branch, req)
	if err != nil {
		s.writeError(w, r, "user_create_failed", err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, user)
}

// DeleteUser handles DELETE /api/admin/users/{id}
func (s *Server) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.Staff.Delete(r.Context(), actorFrom(r.Context()).Branch, chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, "user_delete_failed", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{"success": true})
}

// ResetDay handles POST /api/admin/reset-day for the caller's branch
func (s *Server) ResetDay(w http.ResponseWriter, r *http.Request) {
	if err := s.Orders.ResetDay(r.Context(), actorFrom(r.Context()).Branch); err != nil {
		s.writeError(w, r, "day_reset_failed", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{"success": true})
}
