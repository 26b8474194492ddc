package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Read API
	s.echo.GET("/api/patients", s.handleListPatients)
	s.echo.GET("/api/patients/:id/vitals", s.handlePatientVitals)
	s.echo.GET("/api/posts", s.handleListPosts)
	s.echo.GET("/api/community", s.handleListCommunities)
	s.echo.GET("/api/community/:id/posts", s.handleCommunityPosts)
	s.echo.GET("/api/community/:id/messages/:channel", s.handleCommunityMessages)
	s.echo.GET("/api/community/top-doctors", s.handleTopDoctors)

	// WebSocket entry point
	s.echo.GET("/ws", s.handleWebSocket)
}
