package httpapi

import (
	"net/http"
	"strconv"
	"time"
)

// handleQueueJoin implements POST /v1/queue/join (alias /v1/matches/queue).
func (s *Server) handleQueueJoin(w http.ResponseWriter, r *http.Request) {
	reqID := requestIDFrom(r)
	agent := agentFrom(r)
	status, err := s.mm.JoinQueue(r.Context(), agent.ID)
	if err != nil {
		logRequestError(s.logger, "queue/join", err)
		writeError(w, http.StatusInternalServerError, "join failed", "internal_error", reqID)
		return
	}
	writeJSON(w, http.StatusOK, okEnvelope(map[string]any{
		"matchId": status.MatchID,
		"status":  status.Status,
	}))
}

// handleQueueStatus implements GET /v1/queue/status.
func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	reqID := requestIDFrom(r)
	agent := agentFrom(r)
	status, err := s.mm.QueueStatusOf(r.Context(), agent.ID)
	if err != nil {
		logRequestError(s.logger, "queue/status", err)
		writeError(w, http.StatusInternalServerError, "status lookup failed", "internal_error", reqID)
		return
	}
	fields := map[string]any{"status": status.Status}
	if status.MatchID != "" {
		fields["matchId"] = status.MatchID
	}
	writeJSON(w, http.StatusOK, okEnvelope(fields))
}

// handleQueueLeave implements DELETE /v1/queue/leave.
func (s *Server) handleQueueLeave(w http.ResponseWriter, r *http.Request) {
	reqID := requestIDFrom(r)
	agent := agentFrom(r)
	if err := s.mm.LeaveQueue(r.Context(), agent.ID); err != nil {
		logRequestError(s.logger, "queue/leave", err)
		writeError(w, http.StatusInternalServerError, "leave failed", "internal_error", reqID)
		return
	}
	writeJSON(w, http.StatusOK, okEnvelope(nil))
}

// handleEventsWait implements GET /v1/events/wait?timeout=s. timeout is
// capped at eventWaitMax (EVENT_WAIT_TIMEOUT_MAX_S); a negative or
// non-integer timeout is rejected with 400.
func (s *Server) handleEventsWait(w http.ResponseWriter, r *http.Request) {
	reqID := requestIDFrom(r)
	agent := agentFrom(r)

	timeout := 0 * time.Second
	if raw := r.URL.Query().Get("timeout"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs < 0 {
			writeError(w, http.StatusBadRequest, "timeout must be a non-negative integer", "bad_request", reqID)
			return
		}
		timeout = time.Duration(secs) * time.Second
	}
	if timeout > s.eventWaitMax {
		timeout = s.eventWaitMax
	}

	ev, err := s.mm.WaitEvents(r.Context(), agent.ID, timeout)
	if err != nil {
		writeJSON(w, http.StatusOK, okEnvelope(map[string]any{"events": []any{}}))
		return
	}
	writeJSON(w, http.StatusOK, okEnvelope(map[string]any{"events": []any{ev.Payload}}))
}
