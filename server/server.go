// Package server exposes the engine over HTTP
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/existflow/clientpulse/internal/engine"
	"github.com/existflow/clientpulse/internal/logger"
	"github.com/existflow/clientpulse/internal/store"
)

const defaultSessionTTL = 30 * 24 * time.Hour

// Server is the clientpulse HTTP API
type Server struct {
	engine     *engine.Engine
	store      store.Store
	log        *logger.Logger
	echo       *echo.Echo
	sessionTTL time.Duration
	origins    []string
	clock      func() time.Time
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the request and error logger
func WithLogger(l *logger.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithSessionTTL sets how long login tokens stay valid
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Server) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithCORSOrigins restricts cross-origin requests; empty allows all
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithClock replaces time.Now for session expiry
func WithClock(clock func() time.Time) Option {
	return func(s *Server) { s.clock = clock }
}

// New creates a server in front of eng
func New(eng *engine.Engine, opts ...Option) *Server {
	s := &Server{
		engine:     eng,
		store:      eng.Store(),
		log:        logger.Nop(),
		sessionTTL: defaultSessionTTL,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupEcho()
	return s
}

func (s *Server) setupEcho() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(s.requestLogger)
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if len(s.origins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: s.origins}))
	} else {
		e.Use(middleware.CORS())
	}

	e.GET("/health", s.handleHealth)

	api := e.Group("/api/v1")
	api.POST("/register", s.handleRegister)
	api.POST("/login", s.handleLogin)

	protected := api.Group("")
	protected.Use(s.authMiddleware)
	protected.GET("/me", s.handleMe)
	protected.POST("/logout", s.handleLogout)

	protected.POST("/clients", s.handleCreateClient)
	protected.GET("/clients", s.handleListClients)
	protected.GET("/clients/:id", s.handleGetClient)
	protected.PATCH("/clients/:id", s.handleUpdateClient)
	protected.DELETE("/clients/:id", s.handleDeleteClient)
	protected.GET("/clients/:id/profitability", s.handleGetProfitability)

	protected.POST("/tasks", s.handleCreateTask)
	protected.GET("/tasks", s.handleListTasks)
	protected.GET("/tasks/:id", s.handleGetTask)
	protected.DELETE("/tasks/:id", s.handleDeleteTask)
	protected.PATCH("/tasks/:id/status", s.handleUpdateTaskStatus)

	protected.POST("/timers", s.handleStartTimer)
	protected.GET("/timers", s.handleListTimers)
	protected.GET("/timers/:id", s.handleGetTimer)
	protected.POST("/timers/:id/stop", s.handleStopTimer)
	protected.PATCH("/timers/:id/duration", s.handleCorrectDuration)

	protected.POST("/objectives", s.handleCreateObjective)
	protected.GET("/objectives", s.handleListObjectives)
	protected.GET("/objectives/:id", s.handleGetObjective)
	protected.PATCH("/objectives/:id", s.handleUpdateObjective)
	protected.DELETE("/objectives/:id", s.handleDeleteObjective)

	s.echo = e
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	return s.echo
}

// Start serves on addr until Shutdown
func (s *Server) Start(addr string) error {
	s.log.Info("server listening", logger.F("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
