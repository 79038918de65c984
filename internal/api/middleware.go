package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"

	"github.com/sentinel-iot/sentinel/internal/datastore/entities"
	"github.com/sentinel-iot/sentinel/internal/datastore/repository"
)

const tenantContextKey = "tenant"

// tenantAuth resolves the X-API-Key header to a tenant and stores it on the
// request context. Missing, unknown, and deactivated keys all produce the
// same 401 so callers cannot probe for valid keys.
func (c *Controller) tenantAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		apiKey := ctx.Request().Header.Get(apiKeyHeader)
		if apiKey == "" {
			return unauthorized(ctx)
		}

		if cached, found := c.tenantCache.Get(apiKey); found {
			ctx.Set(tenantContextKey, cached.(*entities.Tenant))
			return next(ctx)
		}

		tenant, err := c.tenants.GetByAPIKey(ctx.Request().Context(), apiKey)
		if err != nil {
			if errors.Is(err, repository.ErrTenantNotFound) {
				return unauthorized(ctx)
			}
			c.log.Error().Err(err).Msg("failed to resolve API key")
			return ctx.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		}

		c.tenantCache.Set(apiKey, tenant, cache.DefaultExpiration)
		ctx.Set(tenantContextKey, tenant)
		return next(ctx)
	}
}

// requestTenant returns the tenant resolved by tenantAuth.
func requestTenant(ctx echo.Context) *entities.Tenant {
	tenant, _ := ctx.Get(tenantContextKey).(*entities.Tenant)
	return tenant
}

func unauthorized(ctx echo.Context) error {
	return ctx.JSON(http.StatusUnauthorized, errorResponse("invalid or missing API key"))
}

func errorResponse(message string) map[string]any {
	return map[string]any{"success": false, "message": message}
}

func dataResponse(data any) map[string]any {
	return map[string]any{"success": true, "data": data}
}
