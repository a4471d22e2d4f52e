package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pool.Stats())
}

type sweepResponse struct {
	Removed int `json:"removed"`
	Stats   any `json:"stats"`
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("operator health check")
	removed := s.pool.HealthCheck(r.Context())
	s.pool.RefreshExpiringEntries(r.Context())
	writeJSON(w, http.StatusOK, sweepResponse{Removed: removed, Stats: s.pool.Stats()})
}

type prewarmRequest struct {
	Count int `json:"count"`
}

type prewarmResponse struct {
	Created int `json:"created"`
	Stats   any `json:"stats"`
}

func (s *Server) handlePrewarm(w http.ResponseWriter, r *http.Request) {
	var req prewarmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid json: "+err.Error(), nil)
		return
	}
	if req.Count <= 0 {
		writeValidationError(w, "count must be positive", map[string]interface{}{"count": req.Count})
		return
	}

	s.logger.Info("prewarm requested", "count", req.Count)
	created := s.pool.Prewarm(r.Context(), req.Count)
	writeJSON(w, http.StatusOK, prewarmResponse{Created: created, Stats: s.pool.Stats()})
}

type shrinkRequest struct {
	Target int `json:"target"`
}

type shrinkResponse struct {
	Removed int `json:"removed"`
	Stats   any `json:"stats"`
}

func (s *Server) handleShrink(w http.ResponseWriter, r *http.Request) {
	var req shrinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid json: "+err.Error(), nil)
		return
	}
	if req.Target < 0 {
		writeValidationError(w, "target must not be negative", map[string]interface{}{"target": req.Target})
		return
	}

	s.logger.Info("shrink requested", "target", req.Target)
	removed := s.pool.Shrink(r.Context(), req.Target)
	writeJSON(w, http.StatusOK, shrinkResponse{Removed: removed, Stats: s.pool.Stats()})
}

type checkResponse struct {
	ConversationID string    `json:"conversation_id"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// handleCheck borrows a session and immediately returns it: an end-to-end
// probe that the remote service is actually issuing usable tokens.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	sess, err := s.pool.Acquire(r.Context())
	if err != nil {
		s.logger.Error("pool check failed", "error", err)
		writeAPIError(w, err)
		return
	}
	s.pool.Release(sess.Token)
	writeJSON(w, http.StatusOK, checkResponse{
		ConversationID: sess.ConversationID,
		ExpiresAt:      sess.ExpiresAt,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeValidationError(w, "limit must be a positive integer", map[string]interface{}{"limit": v})
			return
		}
		limit = n
	}

	events, err := s.events.Recent(limit)
	if err != nil {
		s.logger.Error("list journal events", "error", err)
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
