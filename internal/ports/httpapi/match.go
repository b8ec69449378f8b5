package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"fightclaw/internal/app"
	"fightclaw/internal/engine"
	"fightclaw/internal/ports"
)

type submitMoveRequest struct {
	MoveID          string      `json:"moveId"`
	ExpectedVersion int64       `json:"expectedVersion"`
	Move            engine.Move `json:"move"`
}

// lookupActor resolves matchId to its live MatchActor, writing 404 itself
// if the matchmaker has no actor for it (either never created or already
// released past its grace period).
func (s *Server) lookupActor(w http.ResponseWriter, r *http.Request, matchID string) *app.MatchActor {
	reqID := requestIDFrom(r)
	actor, err := s.mm.GetActor(r.Context(), matchID)
	if err != nil {
		logRequestError(s.logger, "lookup actor", err)
		writeError(w, http.StatusInternalServerError, "match lookup failed", "internal_error", reqID)
		return nil
	}
	if actor == nil {
		writeError(w, http.StatusNotFound, "match not found", "not_found", reqID)
		return nil
	}
	return actor
}

// handleSubmitMove implements POST /v1/matches/:id/move.
func (s *Server) handleSubmitMove(w http.ResponseWriter, r *http.Request) {
	reqID := requestIDFrom(r)
	matchID := chi.URLParam(r, "id")
	agent := agentFrom(r)

	var req submitMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MoveID == "" {
		writeError(w, http.StatusBadRequest, "malformed move request body", "bad_request", reqID)
		return
	}

	actor := s.lookupActor(w, r, matchID)
	if actor == nil {
		return
	}

	res, err := actor.SubmitMove(r.Context(), agent.ID, req.MoveID, req.ExpectedVersion, req.Move)
	if err != nil {
		writeMoveRejection(w, reqID, res, err)
		return
	}
	writeJSON(w, http.StatusOK, okEnvelope(map[string]any{
		"state":         res.State,
		"stateVersion":  res.StateVersion,
		"activeAgentId": res.ActiveAgentID,
		"terminal":      res.Terminal,
	}))
}

func writeMoveRejection(w http.ResponseWriter, reqID string, res app.SubmitMoveResult, err error) {
	switch {
	case errors.Is(err, app.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "agent is not a participant in this match", "unauthorized", reqID)
	case errors.Is(err, app.ErrNotYourTurn):
		writeJSON(w, http.StatusForbidden, errWithFields(reqID, "not your turn", "not_your_turn", map[string]any{
			"current": res.ActiveAgentID,
		}))
	case errors.Is(err, app.ErrVersionMismatch):
		writeJSON(w, http.StatusConflict, errWithFields(reqID, "expected version does not match current state", "version_mismatch", map[string]any{
			"stateVersion": res.StateVersion,
		}))
	case errors.Is(err, app.ErrInvalidMoveSchema):
		writeError(w, http.StatusBadRequest, "move failed schema validation", "invalid_move_schema", reqID)
	case errors.Is(err, app.ErrIllegalMove):
		writeError(w, http.StatusBadRequest, "move rejected by the engine: "+err.Error(), "illegal_move", reqID)
	case errors.Is(err, app.ErrTerminal):
		writeJSON(w, http.StatusConflict, errWithFields(reqID, "match has already ended", "terminal", map[string]any{
			"winner": res.Winner, "reason": res.Reason,
		}))
	default:
		writeError(w, http.StatusInternalServerError, "move submission failed", "internal_error", reqID)
	}
}

func errWithFields(reqID, message, code string, fields map[string]any) map[string]any {
	out := map[string]any{"ok": false, "error": message, "code": code, "requestId": reqID}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// handleMatchState implements GET /v1/matches/:id/state (public).
func (s *Server) handleMatchState(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "id")
	actor := s.lookupActor(w, r, matchID)
	if actor == nil {
		return
	}
	snap, err := actor.GetState(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "state lookup failed", "internal_error", requestIDFrom(r))
		return
	}
	writeJSON(w, http.StatusOK, okEnvelope(map[string]any{
		"state":         snap.State,
		"stateVersion":  snap.StateVersion,
		"activeAgentId": snap.ActiveAgentID,
		"terminal":      snap.Terminal,
	}))
}

// handleMatchFinish implements POST /v1/matches/:id/finish (admin-only).
func (s *Server) handleMatchFinish(w http.ResponseWriter, r *http.Request) {
	reqID := requestIDFrom(r)
	matchID := chi.URLParam(r, "id")
	var req struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	reason := "admin_finish"
	if req.Reason != "" {
		reason = "admin_finish_" + req.Reason
	}

	actor := s.lookupActor(w, r, matchID)
	if actor == nil {
		return
	}
	if err := actor.Finish(r.Context(), reason); err != nil {
		if errors.Is(err, app.ErrAlreadyEnded) {
			writeJSON(w, http.StatusOK, okEnvelope(nil))
			return
		}
		writeError(w, http.StatusInternalServerError, "finish failed", "internal_error", reqID)
		return
	}
	writeJSON(w, http.StatusOK, okEnvelope(nil))
}

const defaultLogLimit = 200

type logEventRow struct {
	ID        int64           `json:"id"`
	Turn      int             `json:"turn"`
	Ts        time.Time       `json:"ts"`
	EventType string          `json:"eventType"`
	Payload   json.RawMessage `json:"payload"`
}

// handleMatchLog implements GET /v1/matches/:id/log (public): the
// append-only event log, readable out-of-band of any live subscription so a
// dropped subscriber can recover missed events. Served from the store
// rather than the actor, so it keeps working after the actor is released.
func (s *Server) handleMatchLog(w http.ResponseWriter, r *http.Request) {
	reqID := requestIDFrom(r)
	matchID := chi.URLParam(r, "id")

	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", "bad_request", reqID)
			return
		}
		limit = n
	}

	if _, err := s.store.GetMatch(r.Context(), matchID); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			writeError(w, http.StatusNotFound, "match not found", "not_found", reqID)
			return
		}
		logRequestError(s.logger, "matches/log", err)
		writeError(w, http.StatusInternalServerError, "match lookup failed", "internal_error", reqID)
		return
	}

	rows, err := s.store.LoadEventLog(r.Context(), matchID, limit)
	if err != nil {
		logRequestError(s.logger, "matches/log", err)
		writeError(w, http.StatusInternalServerError, "event log lookup failed", "internal_error", reqID)
		return
	}
	out := make([]logEventRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, logEventRow{
			ID: row.ID, Turn: row.Turn, Ts: row.Ts,
			EventType: row.EventType, Payload: json.RawMessage(row.Payload),
		})
	}
	writeJSON(w, http.StatusOK, okEnvelope(map[string]any{"events": out}))
}

// subscriberContext derives the actor subscription context for a
// transport connection: it is bound to the request's lifetime, so closing
// the HTTP connection unwinds the subscription via ctx cancellation.
func subscriberContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithCancel(r.Context())
}
