// Package server exposes the agent governance API over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lucid/internal/audit"
	"lucid/internal/config"
	"lucid/internal/logging"
	"lucid/internal/runner"
	"lucid/internal/session"
)

// Server hosts the agent API.
type Server struct {
	runner *runner.Runner
	store  session.Store
	frames *audit.FrameLogger
	cfg    *config.Config
	logger logging.Logger

	engine     *gin.Engine
	httpServer *http.Server
}

// New builds the server and its routes.
func New(r *runner.Runner, store session.Store, frames *audit.FrameLogger, cfg *config.Config, registry *prometheus.Registry) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	engine.Use(cors.New(corsConfig))

	s := &Server{
		runner: r,
		store:  store,
		frames: frames,
		cfg:    cfg,
		logger: logging.NewComponentLogger("HTTPServer"),
		engine: engine,
	}

	api := engine.Group("/api/agent")
	{
		api.GET("/status", s.handleStatus)
		api.POST("/tasks", s.handleSubmit)
		api.POST("/tasks/:id/confirm", s.handleConfirm)
		api.POST("/tasks/:id/cancel", s.handleCancel)
		api.GET("/sessions", s.handleListSessions)
		api.GET("/sessions/:id", s.handleGetSession)
		api.GET("/sessions/:id/screenshots", s.handleListScreenshots)
		api.GET("/sessions/:id/screenshots/:filename", s.handleGetScreenshot)
	}

	if registry != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the context is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Listening on %s", s.cfg.ListenAddr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
