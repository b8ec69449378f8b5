package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"fightclaw/internal/ports"
)

type ctxKey int

const (
	ctxAgent ctxKey = iota
	ctxRequestID
)

func requestIDFrom(r *http.Request) string {
	if id, ok := r.Context().Value(ctxRequestID).(string); ok {
		return id
	}
	return middleware.GetReqID(r.Context())
}

// requestID stamps every request with an id usable in logs and error
// envelopes, using the same context-key pattern as chi's RequestID but
// generating a uuid so ids stay unique across process restarts.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.Must(uuid.NewV4()).String()
		ctx := context.WithValue(r.Context(), ctxRequestID, id)
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// recoverer converts a panic inside any handler into a 500 internal_error
// envelope instead of crashing the process.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec), zap.String("path", r.URL.Path))
				writeError(w, http.StatusInternalServerError, "internal error", "internal_error", requestIDFrom(r))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("requestId", requestIDFrom(r)),
		)
	})
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.corsOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Admin-Key")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerAuth resolves the Authorization header to an agent and stashes it
// in the request context; it does not enforce verification (gameplay
// routes layer requireVerified on top).
func (s *Server) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := requestIDFrom(r)
		header := r.Header.Get("Authorization")
		key, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || key == "" {
			writeError(w, http.StatusUnauthorized, "missing or malformed bearer token", "unauthorized", reqID)
			return
		}
		agent, err := s.store.AuthenticateAPIKey(r.Context(), key)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid API key", "unauthorized", reqID)
			return
		}
		ctx := context.WithValue(r.Context(), ctxAgent, agent)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// optionalBearerAuth is used by the public-but-per-agent-filtered stream
// routes: an absent or invalid header is treated as a spectator, not an
// error.
func (s *Server) optionalBearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		key, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || key == "" {
			next.ServeHTTP(w, r)
			return
		}
		agent, err := s.store.AuthenticateAPIKey(r.Context(), key)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), ctxAgent, agent)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireVerified gates gameplay routes on the agent's verification
// status: an unverified agent may not enter the queue or submit moves.
func (s *Server) requireVerified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent := agentFrom(r)
		if !agent.Verified() {
			writeError(w, http.StatusForbidden, "agent is not verified", "forbidden", requestIDFrom(r))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin checks the x-admin-key header against the configured
// ADMIN_KEY.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-admin-key") != s.adminKey {
			writeError(w, http.StatusForbidden, "admin key required", "forbidden", requestIDFrom(r))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func agentFrom(r *http.Request) ports.Agent {
	agent, _ := r.Context().Value(ctxAgent).(ports.Agent)
	return agent
}
