package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"fightclaw/internal/app"
	"fightclaw/internal/metrics"
	"fightclaw/internal/ports"
)

// Config bundles the knobs the transport layer needs beyond what's already
// baked into the Matchmaker/MatchActor it fronts.
type Config struct {
	Addr         string
	AdminKey     string
	CORSOrigin   string
	EventWaitMax time.Duration
}

// Server is the chi-routed HTTP adapter for the arena API. It never
// mutates match or matchmaker state directly; every handler calls into
// Matchmaker or a MatchActor it looks up through the Matchmaker.
type Server struct {
	store        ports.Store
	mm           *app.Matchmaker
	logger       *zap.Logger
	metrics      *metrics.Metrics
	adminKey     string
	corsOrigin   string
	eventWaitMax time.Duration

	httpServer *http.Server
}

// New builds a Server wired to mm and store; call ListenAndServe to start
// accepting connections.
func New(cfg Config, store ports.Store, mm *app.Matchmaker, logger *zap.Logger, m *metrics.Metrics) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:        store,
		mm:           mm,
		logger:       logger,
		metrics:      m,
		adminKey:     cfg.AdminKey,
		corsOrigin:   cfg.CORSOrigin,
		eventWaitMax: cfg.EventWaitMax,
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // streaming routes (SSE/WS) hold connections open indefinitely
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID, s.recoverer, s.requestLogger, s.cors)

	// Observability endpoints: unauthenticated, fronted operationally
	// by network policy rather than an application-level gate.
	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.With(s.requireAdmin).Post("/verify", s.handleVerify)
			r.With(s.bearerAuth).Get("/me", s.handleMe)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.bearerAuth)
			r.With(s.requireVerified).Post("/queue/join", s.handleQueueJoin)
			r.With(s.requireVerified).Post("/matches/queue", s.handleQueueJoin)
			r.Get("/queue/status", s.handleQueueStatus)
			r.Delete("/queue/leave", s.handleQueueLeave)
			r.Get("/events/wait", s.handleEventsWait)
			r.With(s.requireVerified).Post("/matches/{id}/move", s.handleSubmitMove)
		})

		r.Get("/matches/{id}/state", s.handleMatchState)
		r.Get("/matches/{id}/log", s.handleMatchLog)
		r.With(s.optionalBearerAuth).Get("/matches/{id}/stream", s.handleMatchStream)
		r.With(s.optionalBearerAuth).Get("/matches/{id}/ws", s.handleMatchWS)
		r.With(s.requireAdmin).Post("/matches/{id}/finish", s.handleMatchFinish)

		r.Get("/featured", s.handleFeatured)
		r.Get("/live", s.handleLive)
		r.Get("/leaderboard", s.handleLeaderboard)
	})

	return r
}

// ListenAndServe starts the HTTP server; it returns http.ErrServerClosed on
// graceful shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests, including open SSE/WS
// streams, until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
