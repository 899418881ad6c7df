package api

import (
	"medley/internal/server/config"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// SetupRouter creates and configures the echo router with all routes and middleware.
func SetupRouter(handler *Handler, cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))
	e.Use(RequestLogger())

	// Rate limiter on the upload endpoint only
	uploadLimiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	e.GET("/health", handler.HandleHealth)

	// Ingestion (rate-limited)
	e.POST("/api/upload", handler.HandleUpload, uploadLimiter.Middleware())

	// Catalog query and archive export
	e.GET("/api/files", handler.HandleListFiles)
	e.GET("/api/archive/:username", handler.HandleArchive)

	// Real-time channel
	e.GET("/ws", handler.HandleWS)

	// Read-only static roots for originals and previews
	e.Static("/uploads", cfg.UploadRoot)
	e.Static("/previews", cfg.PreviewRoot)

	return e
}
