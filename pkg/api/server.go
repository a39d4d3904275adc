// Package api implements tsforge's REST and WebSocket surface (spec.md
// §6): file upload/lookup/reparse and viewport streaming over HTTP, and
// the auto-detection/chat WebSocket endpoints, grounded on the teacher's
// pkg/api/server.go Echo v5 setup.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/tsforge/tsforge/pkg/agent"
	"github.com/tsforge/tsforge/pkg/config"
	"github.com/tsforge/tsforge/pkg/database"
	"github.com/tsforge/tsforge/pkg/events"
	"github.com/tsforge/tsforge/pkg/queue"
	"github.com/tsforge/tsforge/pkg/services"
	"github.com/tsforge/tsforge/pkg/version"
	"github.com/tsforge/tsforge/pkg/viewport"
)

// Server is tsforge's HTTP API server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	cfg      *config.Config
	db       *database.Client
	queue    *queue.Client
	pool     *queue.Pool
	files    *services.FileService
	labels   *services.LabelService
	convs    *services.ConversationService
	viewport *viewport.Service
	agents   *agent.Runner
	hub      *events.Hub
}

// Deps bundles every collaborator NewServer wires into routes.
type Deps struct {
	Config       *config.Config
	DB           *database.Client
	Queue        *queue.Client
	Pool         *queue.Pool
	Files        *services.FileService
	Labels       *services.LabelService
	Conversations *services.ConversationService
	Viewport     *viewport.Service
	Agents       *agent.Runner
	Hub          *events.Hub
}

// NewServer creates the Echo app and registers every route.
func NewServer(d Deps) *Server {
	e := echo.New()

	s := &Server{
		echo:     e,
		cfg:      d.Config,
		db:       d.DB,
		queue:    d.Queue,
		pool:     d.Pool,
		files:    d.Files,
		labels:   d.Labels,
		convs:    d.Conversations,
		viewport: d.Viewport,
		agents:   d.Agents,
		hub:      d.Hub,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.Use(corsMiddleware(s.cfg.CORSOrigins))

	s.echo.GET("/health", s.healthHandler)

	s.echo.POST("/files", s.uploadFileHandler, uploadBodyLimit(s.cfg.UploadMaxMB))
	s.echo.GET("/files/:id", s.getFileHandler)
	s.echo.GET("/files/:id/viewport", s.viewportHandler)
	s.echo.PUT("/files/reparse", s.reparseHandler)

	s.echo.GET("/ws/auto-detection/:file_id", s.autoDetectionWSHandler)
	s.echo.GET("/ws/chat/:file_id", s.chatWSHandler)
}

// Start serves on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener serves on a pre-created listener, used by tests that
// need a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// HealthResponse is GET /health's body.
type HealthResponse struct {
	Status  string             `json:"status"`
	Version string             `json:"version"`
	Queue   *queue.PoolHealth  `json:"queue,omitempty"`
}

func (s *Server) healthHandler(c *echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	resp := &HealthResponse{Status: "healthy", Version: version.Full()}
	if s.pool != nil {
		health := s.pool.Health(ctx)
		resp.Queue = &health
		if !health.IsHealthy {
			resp.Status = "degraded"
		}
	}
	return c.JSON(http.StatusOK, resp)
}
