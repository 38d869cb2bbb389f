package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"time"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("response_encoding_failed", "Failed to encode response", logger.RequestID(r.Context()), err, nil)
	}
}

// writeErrorResponse writes an error response in JSON format
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := map[string]interface{}{
		"error":      message,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"request_id": requestID,
	}
	json.NewEncoder(w).Encode(errorResponse)
}

// writeError maps the error taxonomy onto HTTP status codes
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, action string, err error) {
	requestID := logger.RequestID(r.Context())

	var status int
	switch {
	case errors.Is(err, models.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrUnauthorized):
		status = http.StatusForbidden
	default:
		s.Logger.Error(action, "Request failed", requestID, err, map[string]interface{}{
			"path": r.URL.Path,
		})
		s.writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", requestID)
		return
	}

	s.Logger.Debug(action, err.Error(), requestID, map[string]interface{}{
		"path":        r.URL.Path,
		"status_code": status,
	})
	s.writeErrorResponse(w, status, err.Error(), requestID)
}

// decodeJSON reads a JSON body, rejecting other content types and unknown fields
func decodeJSON(r *http.Request, v interface{}) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			return &models.ValidationError{Field: "body", Message: "Content-Type must be application/json"}
		}
	}
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return &models.ValidationError{Field: "body", Message: fmt.Sprintf("invalid JSON format: %v", err)}
	}
	return nil
}
