package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ListDevices returns the tenant's devices, most recently seen first.
func (c *Controller) ListDevices(ctx echo.Context) error {
	tenant := requestTenant(ctx)

	devices, err := c.devices.ListByTenant(ctx.Request().Context(), tenant.ID)
	if err != nil {
		c.log.Error().Err(err).Str("tenant", tenant.ID).Msg("failed to list devices")
		return ctx.JSON(http.StatusInternalServerError, errorResponse("failed to list devices"))
	}

	return ctx.JSON(http.StatusOK, dataResponse(devices))
}
