// Command fightclawd is the process entry point: it loads configuration,
// connects to Postgres, wires the matchmaker and its match-actor factory,
// and serves the HTTP/SSE/WS surface until a termination signal arrives.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"fightclaw/internal/app"
	"fightclaw/internal/config"
	"fightclaw/internal/domain"
	"fightclaw/internal/engine"
	"fightclaw/internal/metrics"
	"fightclaw/internal/ports"
	"fightclaw/internal/ports/httpapi"
	"fightclaw/internal/ports/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "fightclawd:", err)
		os.Exit(1)
	}

	logger := buildLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := postgres.New(ctx, cfg.DatabaseURL, cfg.APIKeyPepper)
	cancel()
	if err != nil {
		logger.Fatal("connect to postgres failed", zap.Error(err))
	}
	defer store.Close()

	m := metrics.New()
	eng := domain.Outpost{}

	mm := app.NewMatchmaker(store, logger, m, newActorFactory(eng, store, logger, m, cfg.ActorConfig), cfg.BufferCapMax)

	srv := httpapi.New(httpapi.Config{
		Addr:         ":" + cfg.Port,
		AdminKey:     cfg.AdminKey,
		CORSOrigin:   cfg.CORSOrigin,
		EventWaitMax: cfg.EventWaitMax,
	}, store, mm, logger, m)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	logger.Info("fightclawd started", zap.String("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down fightclawd")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server forced to shutdown", zap.Error(err))
	}
	logger.Info("fightclawd stopped")
}

// newActorFactory closes over the engine and shared collaborators so the
// Matchmaker never needs to know how a MatchActor is built.
func newActorFactory(eng engine.Engine, store ports.Store, logger *zap.Logger, m *metrics.Metrics, actorCfg app.ActorConfig) app.MatchActorFactory {
	return func(matchID string, seed int64, players [2]string, ratings [2]float64) (*app.MatchActor, error) {
		return app.NewMatchActor(matchID, seed, players, ratings, actorCfg, app.ActorDeps{
			Engine: eng, Store: store, Logger: logger, Metrics: m,
		})
	}
}

func buildLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}
	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	return logger
}
