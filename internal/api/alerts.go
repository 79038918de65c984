package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sentinel-iot/sentinel/internal/datastore/repository"
)

// ListAlerts returns the tenant's open alerts, newest first. Supports
// severity and limit query filters.
func (c *Controller) ListAlerts(ctx echo.Context) error {
	tenant := requestTenant(ctx)

	filter := repository.AlertFilter{Limit: 50}
	if severityParam := ctx.QueryParam("severity"); severityParam != "" {
		v, err := strconv.Atoi(severityParam)
		if err != nil || v < 1 || v > 5 {
			return ctx.JSON(http.StatusBadRequest, errorResponse("severity must be an integer between 1 and 5"))
		}
		filter.Severity = &v
	}
	if limitParam := ctx.QueryParam("limit"); limitParam != "" {
		v, err := strconv.Atoi(limitParam)
		if err != nil || v < 1 {
			return ctx.JSON(http.StatusBadRequest, errorResponse("limit must be a positive integer"))
		}
		if v > maxListLimit {
			v = maxListLimit
		}
		filter.Limit = v
	}

	alerts, err := c.store.ListOpen(ctx.Request().Context(), tenant.ID, filter)
	if err != nil {
		c.log.Error().Err(err).Str("tenant", tenant.ID).Msg("failed to list alerts")
		return ctx.JSON(http.StatusInternalServerError, errorResponse("failed to list alerts"))
	}

	return ctx.JSON(http.StatusOK, dataResponse(alerts))
}

// AcknowledgeAlert closes an open alert. Acknowledged and unknown alerts are
// distinguishable (409 vs 404); alerts of other tenants report 404.
func (c *Controller) AcknowledgeAlert(ctx echo.Context) error {
	tenant := requestTenant(ctx)
	alertID := ctx.Param("id")

	alert, err := c.store.Acknowledge(ctx.Request().Context(), tenant.ID, alertID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAlertNotFound):
			return ctx.JSON(http.StatusNotFound, errorResponse("alert not found"))
		case errors.Is(err, repository.ErrAlreadyAcknowledged):
			return ctx.JSON(http.StatusConflict, errorResponse("alert is already acknowledged"))
		default:
			c.log.Error().Err(err).Str("tenant", tenant.ID).Str("alert", alertID).Msg("failed to acknowledge alert")
			return ctx.JSON(http.StatusInternalServerError, errorResponse("failed to acknowledge alert"))
		}
	}

	return ctx.JSON(http.StatusOK, dataResponse(alert))
}
