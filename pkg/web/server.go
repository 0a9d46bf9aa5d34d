// Package web provides the status HTTP server for the voice bridge.
package web

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alwell-kevin/voicebridge/pkg/audioio"
	"github.com/alwell-kevin/voicebridge/pkg/bridge"
)

// Status exposes the bridge state to the server. *bridge.Bridge
// satisfies it.
type Status interface {
	State() bridge.State
	Stats() bridge.Snapshot
}

// Server serves health, stats and Prometheus metrics over HTTP.
type Server struct {
	app    *fiber.App
	addr   string
	status Status
	logger *slog.Logger

	// SourceStats, when set, adds capture device statistics to the
	// stats endpoint. Set it before Start.
	SourceStats func() audioio.SourceStats
}

// NewServer creates the status server. gatherer backs the /metrics
// endpoint; pass the registry the bridge metrics were registered with.
func NewServer(addr string, status Status, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		addr:   addr,
		status: status,
		logger: logger.With("component", "web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "voicebridge",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	app.Get("/healthz", s.handleHealth)

	api := app.Group("/api")
	api.Get("/stats", s.handleStats)

	app.Get("/metrics", adaptor.HTTPHandler(
		promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	))

	s.app = app
	return s
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"state":  s.status.State().String(),
	})
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	body := fiber.Map{
		"state": s.status.State().String(),
		"stats": s.status.Stats(),
	}
	if s.SourceStats != nil {
		body["source"] = s.SourceStats()
	}
	return c.JSON(body)
}

// Start starts the server and blocks.
func (s *Server) Start() error {
	s.logger.Info("status server listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("status server error", "error", err)
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
