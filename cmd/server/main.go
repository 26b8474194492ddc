package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/healthsync/healthsync/internal/alerts"
	"github.com/healthsync/healthsync/internal/broadcast"
	"github.com/healthsync/healthsync/internal/config"
	"github.com/healthsync/healthsync/internal/domain"
	"github.com/healthsync/healthsync/internal/events"
	"github.com/healthsync/healthsync/internal/logging"
	"github.com/healthsync/healthsync/internal/scoring"
	"github.com/healthsync/healthsync/internal/server"
	"github.com/healthsync/healthsync/internal/simulator"
	"github.com/healthsync/healthsync/internal/store"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// setupStore connects to Mongo, falling back to the in-memory store when no
// MONGO_URL is configured so local development needs no infrastructure.
func setupStore(cfg *config.Config) (domain.Store, func()) {
	if cfg.MongoURL == "" {
		slog.Warn("MONGO_URL not set, using in-memory store; state is lost on restart")
		return store.NewMemory(), func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mongo, err := store.ConnectMongo(ctx, cfg.MongoURL, cfg.MongoDatabase)
	if err != nil {
		slog.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	closer := func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		_ = mongo.Close(closeCtx)
	}
	return mongo, closer
}

func setupDebouncer(cfg *config.Config, clock clockwork.Clock) (alerts.Debouncer, func()) {
	if cfg.RedisURL == "" {
		return alerts.NewMemoryDebouncer(clock, alerts.DefaultCooldown), func() {}
	}

	opts, err := goredis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to parse REDIS_URL", "error", err)
		os.Exit(1)
	}
	client := goredis.NewClient(opts)
	return alerts.NewRedisDebouncer(client, alerts.DefaultCooldown), func() { _ = client.Close() }
}

func runGracefulShutdown(srv *server.Server, hub *broadcast.Hub, cancelSim context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		cancelSim()
		hub.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	st, closeStore := setupStore(cfg)
	defer closeStore()

	seedCtx, seedCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := store.Seed(seedCtx, st, clock.Now()); err != nil {
		seedCancel()
		slog.Error("Failed to seed store", "error", err)
		os.Exit(1)
	}
	seedCancel()

	debouncer, closeRedis := setupDebouncer(cfg, clock)
	defer closeRedis()

	notifier := alerts.NewHTTPNotifier(cfg.NotifierURL, cfg.AlertRecipient, debouncer)
	scorer := scoring.WithFallback(scoring.NewClient(cfg.ScoringURL))

	hub := broadcast.NewHub(clock)
	svc := events.NewService(st, hub, clock)

	sim := simulator.New(svc, st.Patients(), scorer, notifier, hub, clock, cfg.SimInterval, cfg.SimPatients)
	simCtx, cancelSim := context.WithCancel(context.Background())
	go sim.Run(simCtx)

	srv := server.New(cfg, st, hub, svc, clock)
	done := runGracefulShutdown(srv, hub, cancelSim)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
