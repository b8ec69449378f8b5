package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"fightclaw/internal/app"
)

// handleMatchStream implements GET /v1/matches/:id/stream: a one-way SSE
// feed of the match event envelope. agentID is empty for a spectator
// connection (optionalBearerAuth already resolved it onto the context).
func (s *Server) handleMatchStream(w http.ResponseWriter, r *http.Request) {
	reqID := requestIDFrom(r)
	matchID := chi.URLParam(r, "id")
	agent := agentFrom(r)

	actor := s.lookupActor(w, r, matchID)
	if actor == nil {
		return
	}

	ctx, cancel := subscriberContext(r)
	defer cancel()

	sub, err := actor.Subscribe(ctx, agent.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "subscribe failed", "internal_error", reqID)
		return
	}
	defer sub.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported", "internal_error", reqID)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			if err := writeSSEEvent(w, ev); err != nil {
				s.logger.Warn("sse write failed", zap.String("matchId", matchID), zap.Error(err))
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func writeSSEEvent(w io.Writer, ev app.WireEvent) error {
	data, err := json.Marshal(ev.Payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
	return err
}
