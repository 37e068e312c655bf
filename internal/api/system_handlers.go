package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// handleHealth returns basic health status plus dispatcher counters.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
	}
	if s.dispatcher != nil {
		stats := s.dispatcher.Stats()
		resp["dispatch"] = map[string]any{
			"enqueued":  stats.Enqueued,
			"completed": stats.Completed,
			"failed":    stats.Failed,
			"dropped":   stats.Dropped,
			"queue_len": stats.QueueLen,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// rateLimitStatusResponse is the operator view of one limiter key.
type rateLimitStatusResponse struct {
	Key        string `json:"key"`
	Tracked    bool   `json:"tracked"`
	Count      int    `json:"count,omitempty"`
	WindowEnd  string `json:"window_end,omitempty"`
	Violations int    `json:"violations,omitempty"`
}

// handleRateLimitStatus reports the caller-keyed limiter state for one key
// without consuming budget.
func (s *Server) handleRateLimitStatus(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	entry, ok, err := s.limiter.Status(key)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "rate limit store unavailable")
		return
	}

	resp := rateLimitStatusResponse{Key: key, Tracked: ok}
	if ok {
		resp.Count = entry.Count
		resp.WindowEnd = entry.WindowEnd.Format(time.RFC3339)
		resp.Violations = len(entry.Violations)
	}
	writeJSON(w, http.StatusOK, resp)
}
