// Package web serves the guarded views of the current session over HTTP on
// a loopback address, for browsers and scripts that want the same routing
// decisions as the CLI.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pilipi-dev/pilipi/internal/app"
	"github.com/pilipi-dev/pilipi/internal/config"
)

// Server represents the local web shell
type Server struct {
	router    *gin.Engine
	app       *app.App
	config    *config.Config
	logger    zerolog.Logger
	refresher *Refresher
	version   string
}

// New creates a web shell over a wired App
func New(cfg *config.Config, a *app.App, zlog zerolog.Logger, version string) (*Server, error) {
	refresher, err := NewRefresher(a.Manager, cfg.Web.RefreshSchedule, zlog)
	if err != nil {
		return nil, err
	}

	s := &Server{
		app:       a,
		config:    cfg,
		logger:    zlog,
		refresher: refresher,
		version:   version,
	}
	s.setupRouter()
	return s, nil
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.Web.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "Location"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	s.router.GET("/health", s.healthCheck)

	api := s.router.Group("/session")
	{
		api.GET("", s.getSession)
		api.POST("/login", s.login)
		api.POST("/logout", s.logout)
		api.POST("/register", s.register)
		api.PATCH("/profile", s.updateProfile)
		api.POST("/password", s.changePassword)
		api.POST("/refresh", s.refresh)
		api.GET("/navigation", s.getNavigation)
	}

	// Every other GET is a page navigation decided by the guard
	s.router.NoRoute(s.page)
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "pilipi-web",
		"version":   s.version,
		"api":       s.app.ServerURL,
	})
}

// Start serves until ctx is done, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Web.Addr,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	navCtx, stopNav := context.WithCancel(ctx)
	defer stopNav()
	go s.app.Nav.Run(navCtx)

	s.refresher.Start()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", srv.Addr).Msg("Starting web shell")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.refresher.Stop()
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down web shell...")

	refreshCtx := s.refresher.Stop()
	<-refreshCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down web shell")
		return err
	}

	s.logger.Info().Msg("Web shell shutdown complete")
	return nil
}
