// Package server exposes the HTTP surface: health and metrics endpoints,
// a small read API over the shared state, and the websocket entry point.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/healthsync/healthsync/internal/broadcast"
	"github.com/healthsync/healthsync/internal/config"
	"github.com/healthsync/healthsync/internal/domain"
	"github.com/healthsync/healthsync/internal/events"
)

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	store     domain.Store
	hub       *broadcast.Hub
	events    *events.Service
	clock     clockwork.Clock
	startTime time.Time
}

func New(cfg *config.Config, store domain.Store, hub *broadcast.Hub, svc *events.Service, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.AllowedOrigins,
	}))

	srv := &Server{
		echo:      e,
		config:    cfg,
		store:     store,
		hub:       hub,
		events:    svc,
		clock:     clock,
		startTime: clock.Now(),
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
