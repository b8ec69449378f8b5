package httpapi

import (
	"net/http"
	"strconv"
)

// handleHealthz implements GET /healthz: liveness only, always 200
// while the process is accepting connections.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, okEnvelope(nil))
}

// handleFeatured implements GET /v1/featured.
func (s *Server) handleFeatured(w http.ResponseWriter, r *http.Request) {
	status, err := s.mm.Featured(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "featured lookup failed", "internal_error", requestIDFrom(r))
		return
	}
	if status.MatchID == "" {
		writeJSON(w, http.StatusOK, okEnvelope(nil))
		return
	}
	writeJSON(w, http.StatusOK, okEnvelope(map[string]any{
		"matchId": status.MatchID,
		"status":  status.Status,
		"players": status.Players,
	}))
}

// handleLive implements GET /v1/live.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	status, err := s.mm.Live(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "live lookup failed", "internal_error", requestIDFrom(r))
		return
	}
	if status.MatchID == "" {
		writeJSON(w, http.StatusOK, okEnvelope(nil))
		return
	}
	writeJSON(w, http.StatusOK, okEnvelope(map[string]any{
		"matchId": status.MatchID,
		"state":   status.State,
	}))
}

const defaultLeaderboardLimit = 50

// handleLeaderboard implements GET /v1/leaderboard?limit=.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	reqID := requestIDFrom(r)
	limit := defaultLeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", "bad_request", reqID)
			return
		}
		limit = n
	}

	rows, err := s.store.Leaderboard(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "leaderboard lookup failed", "internal_error", reqID)
		return
	}
	writeJSON(w, http.StatusOK, okEnvelope(map[string]any{"leaderboard": rows}))
}
