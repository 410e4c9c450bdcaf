package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/outreach/internal/server/middleware"
	"github.com/OFFIS-RIT/outreach/pkg/logger"
	"github.com/OFFIS-RIT/outreach/pkg/store"

	"github.com/labstack/echo/v4"
)

// DeleteFlowHandler cancels the runs of a flow and deletes it together with
// its archived reports.
func DeleteFlowHandler(c echo.Context) error {
	f, err := loadFlow(c)
	if f == nil {
		return err
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	cancelActiveRuns(ctx, app, f.ID, "flow deleted")

	err = app.Store.DeleteFlow(ctx, f.ID)
	if errors.Is(err, store.ErrNotFound) {
		return respond(c, http.StatusNotFound, "Flow not found")
	}
	if err != nil {
		logger.Error("Failed to delete flow", "flow_id", f.ID, "err", err)
		return respond(c, http.StatusInternalServerError, "Internal server error")
	}

	if app.Reports != nil {
		if err := app.Reports.DeleteFlowReports(ctx, f.ID); err != nil {
			logger.Warn("Failed to delete flow reports", "flow_id", f.ID, "err", err)
		}
	}

	return respond(c, http.StatusOK, "Flow deleted")
}
