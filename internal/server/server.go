// Package server assembles the gin router and owns the HTTP lifecycle.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mvexel/nostalgickr/internal/handlers"
	"github.com/mvexel/nostalgickr/internal/logging"
	"github.com/mvexel/nostalgickr/internal/middleware"
	"github.com/mvexel/nostalgickr/internal/monitoring"
	"github.com/mvexel/nostalgickr/internal/session"
)

// Config represents server configuration
type Config struct {
	Port          string
	Mode          string
	TemplatesGlob string
	StaticDir     string
	CookieMaxAge  int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig(port string, cookieMaxAge int) Config {
	return Config{
		Port:          port,
		Mode:          "debug",
		TemplatesGlob: "web/templates/*.html",
		StaticDir:     "web/static",
		CookieMaxAge:  cookieMaxAge,
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  30 * time.Second,
		IdleTimeout:   120 * time.Second,
	}
}

// NewRouter builds the full route table. /health and /metrics are mounted
// outside the session middleware so they keep answering when redis is down.
func NewRouter(cfg Config, h *handlers.Handlers, sessions *session.Manager, metrics *monitoring.MetricsCollector, health *monitoring.HealthChecker, logger logging.Logger) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))
	if metrics != nil {
		router.Use(metrics.MetricsMiddleware())
	}

	router.LoadHTMLGlob(cfg.TemplatesGlob)
	router.Static("/static", cfg.StaticDir)

	if health != nil {
		router.GET("/health", health.Handler())
	}
	if metrics != nil {
		router.GET("/metrics", metrics.Handler())
	}

	sess := middleware.SessionMiddleware(sessions, cfg.CookieMaxAge, logger)

	g := router.Group("/", sess)
	g.GET("/", h.Index)
	g.GET("/login", h.Login)
	g.GET("/callback", h.Callback)
	g.GET("/logout", h.Logout)
	g.GET("/photo/:id", h.PhotoPage)
	g.GET("/photo_details/:id", h.PhotoDetails)
	g.GET("/friend_latest_photo/:nsid", h.FriendLatestPhoto)
	g.GET("/friends", middleware.RequireAuthPage(), h.Friends)
	g.GET("/groups", middleware.RequireAuthPage(), h.Groups)
	g.POST("/friend_latest_photos", middleware.RequireAuthAPI(), h.FriendLatestPhotos)
	g.POST("/batch_photo_sizes", middleware.RequireAuthAPI(), h.BatchPhotoSizes)

	router.NoRoute(sess, h.NotFound)

	return router
}

// Start starts the HTTP server with graceful shutdown
func Start(cfg Config, router *gin.Engine, logger logging.Logger) error {
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.WithFields(logging.Fields{
			"port": cfg.Port,
		}).Info("Starting HTTP server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}
