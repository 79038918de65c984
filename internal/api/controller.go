// Package api exposes the tenant-facing REST endpoints.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sentinel-iot/sentinel/internal/alerts"
	"github.com/sentinel-iot/sentinel/internal/datastore/repository"
	"github.com/sentinel-iot/sentinel/internal/logger"
	"github.com/sentinel-iot/sentinel/internal/metrics"
)

const (
	apiKeyHeader     = "X-API-Key"
	tenantCacheTTL   = 30 * time.Second
	tenantCacheSweep = time.Minute
	maxListLimit     = 200
)

// Controller serves the alert query and acknowledge API.
type Controller struct {
	echo        *echo.Echo
	store       *alerts.Store
	tenants     repository.TenantRepository
	devices     repository.DeviceRepository
	tenantCache *cache.Cache
	log         zerolog.Logger
}

// NewController creates the Controller and registers all routes.
func NewController(store *alerts.Store, tenants repository.TenantRepository, devices repository.DeviceRepository) *Controller {
	c := &Controller{
		echo:        echo.New(),
		store:       store,
		tenants:     tenants,
		devices:     devices,
		tenantCache: cache.New(tenantCacheTTL, tenantCacheSweep),
		log:         logger.WithComponent("api"),
	}

	c.echo.HideBanner = true
	c.echo.HidePort = true
	c.echo.Use(echomiddleware.Recover())
	c.echo.Use(c.observeRequests)

	c.echo.GET("/healthz", c.Healthz)
	c.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := c.echo.Group("/api/v1", c.tenantAuth)
	v1.GET("/alerts", c.ListAlerts)
	v1.POST("/alerts/:id/acknowledge", c.AcknowledgeAlert)
	v1.GET("/devices", c.ListDevices)

	return c
}

// Start serves HTTP on addr until Shutdown.
func (c *Controller) Start(addr string) error {
	c.log.Info().Str("addr", addr).Msg("HTTP API listening")
	err := c.echo.Start(addr)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (c *Controller) Shutdown(ctx context.Context) error {
	return c.echo.Shutdown(ctx)
}

// Healthz reports liveness.
func (c *Controller) Healthz(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// observeRequests records per-request metrics.
func (c *Controller) observeRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		start := time.Now()
		err := next(ctx)
		path := ctx.Path()
		if path == "" {
			path = ctx.Request().URL.Path
		}
		metrics.HTTPRequestsTotal.WithLabelValues(
			ctx.Request().Method, path, strconv.Itoa(ctx.Response().Status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(
			ctx.Request().Method, path).Observe(time.Since(start).Seconds())
		return err
	}
}
