package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/outreach/internal/queue"
	"github.com/OFFIS-RIT/outreach/internal/server/middleware"
	"github.com/OFFIS-RIT/outreach/pkg/logger"
	"github.com/OFFIS-RIT/outreach/pkg/store"

	"github.com/labstack/echo/v4"
)

// CancelDispatchHandler stops a run. Messages already handed to the mail
// provider are not recalled.
func CancelDispatchHandler(c echo.Context) error {
	f, err := loadFlow(c)
	if f == nil {
		return err
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App
	runID := c.Param("run_id")

	run, err := app.Store.GetRun(ctx, f.ID, runID)
	if errors.Is(err, store.ErrNotFound) {
		return respond(c, http.StatusNotFound, "Run not found")
	}
	if err != nil {
		logger.Error("Failed to get run", "run_id", runID, "err", err)
		return respond(c, http.StatusInternalServerError, "Internal server error")
	}
	if run.Finished() {
		return respond(c, http.StatusConflict, "Run already "+run.Status)
	}

	if err := app.Store.SetRunStatus(ctx, run.ID, store.RunCancelled); err != nil {
		logger.Error("Failed to cancel run", "run_id", run.ID, "err", err)
		return respond(c, http.StatusInternalServerError, "Internal server error")
	}
	err = queue.PublishCancel(app.Queue, queue.CancelMsg{
		FlowID: f.ID,
		RunID:  run.ID,
		Reason: "cancelled by user",
	})
	if err != nil {
		logger.Error("Failed to publish cancel", "run_id", run.ID, "err", err)
		return respond(c, http.StatusInternalServerError, "Internal server error")
	}

	return respond(c, http.StatusOK, "Run cancelled")
}
