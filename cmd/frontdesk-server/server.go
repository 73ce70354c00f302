package main

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ehr/frontdesk/internal/config"
	"github.com/ehr/frontdesk/internal/domain/identity"
	"github.com/ehr/frontdesk/internal/domain/scheduling"
	"github.com/ehr/frontdesk/internal/platform/auth"
	"github.com/ehr/frontdesk/internal/platform/db"
	"github.com/ehr/frontdesk/internal/platform/middleware"
	"github.com/ehr/frontdesk/internal/platform/notification"
	"github.com/ehr/frontdesk/internal/platform/telemetry"
)

const version = "0.1.0"

type serverDeps struct {
	cfg           *config.Config
	logger        zerolog.Logger
	metrics       *telemetry.Metrics
	pool          db.Pinger
	identity      *identity.Handler
	appointments  *scheduling.Handler
	notifications *notification.NotificationHandler
}

// newServer builds the echo instance with global middleware, operational
// routes and the authenticated /api/v1 group.
func newServer(d serverDeps) *echo.Echo {
	cfg := d.cfg

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(d.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(d.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(d.metrics.MetricsMiddleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders:  []string{"Authorization", "Content-Type", "If-Match", middleware.RequestIDHeader},
		ExposeHeaders: []string{"ETag", middleware.RequestIDHeader},
	}))

	// Operational routes stay outside authentication.
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if d.pool != nil {
		e.GET("/health/db", db.HealthHandler(d.pool))
	}
	e.GET("/metrics", d.metrics.Handler())

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RequestTimeout(cfg.RequestTimeout()))
	if cfg.RateLimitRPS > 0 {
		apiV1.Use(echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
			Store: echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(cfg.RateLimitRPS),
				Burst:     cfg.RateLimitBurst,
				ExpiresIn: 3 * time.Minute,
			}),
		}))
	}

	// Auth middleware
	if cfg.IsDev() && cfg.AuthSigningKey == "" {
		d.logger.Warn().Msg("development mode without AUTH_SIGNING_KEY, every request is admin")
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(jwtConfig(cfg)))
	}

	d.identity.RegisterRoutes(apiV1)
	d.appointments.RegisterRoutes(apiV1)
	d.notifications.RegisterRoutes(apiV1.Group("", auth.RequireRole(auth.RoleFrontDesk, auth.RoleViewer)))

	return e
}
