package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"fightclaw/internal/app"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
	wsPongWait   = 60 * time.Second
	wsReadLimit  = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleMatchWS implements GET /v1/matches/:id/ws: the same event envelope
// as the SSE stream, framed as JSON websocket messages. A dedicated
// reader goroutine only drains and discards incoming frames (agents submit
// moves over the REST route, not the socket) so pong frames keep the
// connection's read deadline alive, while writePump owns every write.
func (s *Server) handleMatchWS(w http.ResponseWriter, r *http.Request) {
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

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	go wsReadPump(conn, cancel)
	wsWritePump(ctx, conn, sub)
}

// wsReadPump discards inbound frames and extends the read deadline on
// every pong, per gorilla's standard keepalive idiom. It exits (and
// cancels the subscription) the moment the client disappears.
func wsReadPump(conn *websocket.Conn, cancel func()) {
	defer cancel()
	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// wsWritePump owns every write to conn: subscription events as JSON text
// frames, plus a periodic ping to detect dead connections. It returns when
// the subscription ends, a write fails, or ctx is cancelled (wsReadPump
// cancels it when the client goes away); its deferred cleanup releases the
// subscriber slot and closes the connection.
func wsWritePump(ctx context.Context, conn *websocket.Conn, sub *app.Subscription) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		sub.Close()
		conn.Close()
	}()

	for {
		select {
		case ev, ok := <-sub.Events:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(ev.Payload)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
