// Package server runs a fake smart connector: the knowledge engine REST API
// served by gin on top of an in-memory runtime.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/TNO/knowledge-engine/pkg/config"
	"github.com/TNO/knowledge-engine/pkg/server/handlers"
	"github.com/TNO/knowledge-engine/pkg/server/runtime"
	"github.com/TNO/knowledge-engine/pkg/types"
)

// BasePath is where the REST API is mounted.
const BasePath = "/rest"

// Server represents the HTTP server
type Server struct {
	config  config.FakeConnectorConfig
	logger  *slog.Logger
	router  *gin.Engine
	runtime *runtime.Runtime
	server  *http.Server
}

// New creates a new server instance
func New(cfg config.FakeConnectorConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:  cfg,
		logger:  logger,
		runtime: runtime.New(cfg.PollTimeout, runtime.WithLogger(logger)),
	}
}

// Setup sets up the server routes and middleware
func (s *Server) Setup() {
	if s.config.Mode != "" {
		gin.SetMode(s.config.Mode)
	}

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(loggingMiddleware(s.logger))
	s.router.Use(corsMiddleware())

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// setupRoutes sets up all the routes
func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.runtime)
	scHandler := handlers.NewSmartConnectorHandler(s.runtime)
	kiHandler := handlers.NewKnowledgeInteractionHandler(s.runtime)
	proactiveHandler := handlers.NewProactiveHandler(s.runtime)
	reactiveHandler := handlers.NewReactiveHandler(s.runtime)

	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)

	api := s.router.Group(BasePath)
	{
		api.GET("/version", healthHandler.VersionInfo)

		sc := api.Group("/sc")
		{
			sc.GET("", scHandler.List)
			sc.POST("", scHandler.Create)
			sc.DELETE("", scHandler.Delete)
			sc.PUT("/lease/renew", scHandler.RenewLease)

			sc.GET("/ki", kiHandler.List)
			sc.POST("/ki", kiHandler.Register)
			sc.DELETE("/ki", kiHandler.Delete)

			sc.POST("/ask", proactiveHandler.Ask)
			sc.POST("/post", proactiveHandler.Post)

			sc.GET("/handle", reactiveHandler.Poll)
			sc.POST("/handle", reactiveHandler.Respond)
		}
	}
}

// Handler returns the HTTP handler; Setup must have been called.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Runtime returns the in-memory runtime behind the server.
func (s *Server) Runtime() *runtime.Runtime {
	return s.runtime
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start starts the server
func (s *Server) Start() error {
	s.logger.Info("Starting fake smart connector", "addr", s.server.Addr, "base_path", BasePath)
	return s.server.ListenAndServe()
}

// Stop stops the server gracefully
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping fake smart connector")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs each request after it completes.
func loggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("Handled request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"kb", c.GetHeader(types.HeaderKnowledgeBaseID),
			"duration", time.Since(start))
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Accept, Knowledge-Base-Id, Knowledge-Interaction-Id")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
