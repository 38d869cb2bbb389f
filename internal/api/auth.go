package api

import (
	"errors"
	"net/http"
	"time"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
)

type loginRequest struct {
	PIN    string `json:"pin"`
	Branch string `json:"branchId"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      models.User `json:"user"`
}

// Login handles POST /api/auth/login
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestID(r.Context())

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, "login_failed", err)
		return
	}
	if req.Branch == "" {
		req.Branch = s.DefaultBranch
	}

	user, err := s.Staff.Login(r.Context(), req.Branch, req.PIN)
	if errors.Is(err, models.ErrUnauthorized) {
		s.Logger.Warn("login_failed", "Invalid PIN", requestID, map[string]interface{}{
			"branch":      req.Branch,
			"remote_addr": r.RemoteAddr,
		})
		s.writeErrorResponse(w, http.StatusUnauthorized, "Invalid PIN", requestID)
		return
	}
	if err != nil {
		s.writeError(w, r, "login_failed", err)
		return
	}

	token, expires, err := s.Tokens.Issue(user)
	if err != nil {
		s.writeError(w, r, "token_issue_failed", err)
		return
	}
	s.Logger.Info("login_succeeded", "User logged in", requestID, map[string]interface{}{
		"user_id": user.ID,
		"role":    string(user.Role),
		"branch":  user.Branch,
	})
	s.writeJSON(w, r, http.StatusOK, loginResponse{Token: token, ExpiresAt: expires, User: user})
}

// Me handles GET /api/auth/me
func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{"user": actorFrom(r.Context())})
}
