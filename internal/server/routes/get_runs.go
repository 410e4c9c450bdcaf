package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/outreach/internal/server/middleware"
	"github.com/OFFIS-RIT/outreach/internal/storage"
	"github.com/OFFIS-RIT/outreach/internal/util"
	"github.com/OFFIS-RIT/outreach/pkg/logger"
	"github.com/OFFIS-RIT/outreach/pkg/store"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

// GetRunHandler returns a run with its progress and the outcome of every
// message sent so far.
func GetRunHandler(c echo.Context) error {
	type getRunResponse struct {
		Message  string             `json:"message"`
		Run      *store.Run         `json:"run,omitempty"`
		Progress *util.RunProgress  `json:"progress,omitempty"`
		Outcomes []store.RunOutcome `json:"outcomes,omitempty"`
	}

	f, err := loadFlow(c)
	if f == nil {
		return err
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App
	runID := c.Param("run_id")

	var run *store.Run
	var outcomes []store.RunOutcome
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		run, err = app.Store.GetRun(egCtx, f.ID, runID)
		return err
	})
	eg.Go(func() error {
		var err error
		outcomes, err = app.Store.ListOutcomes(egCtx, runID)
		return err
	})
	err = eg.Wait()
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, getRunResponse{
			Message: "Run not found",
		})
	}
	if err != nil {
		logger.Error("Failed to get run", "run_id", runID, "err", err)
		return c.JSON(http.StatusInternalServerError, getRunResponse{
			Message: "Internal server error",
		})
	}

	progress := util.BuildRunProgress(*run)
	return c.JSON(http.StatusOK, getRunResponse{
		Message:  "Run retrieved",
		Run:      run,
		Progress: &progress,
		Outcomes: outcomes,
	})
}

// GetRunReportHandler returns the archived report of a finished run.
func GetRunReportHandler(c echo.Context) error {
	f, err := loadFlow(c)
	if f == nil {
		return err
	}

	app := c.(*middleware.AppContext).App
	if app.Reports == nil {
		return respond(c, http.StatusNotFound, "Report not found")
	}

	body, err := app.Reports.GetRunReport(c.Request().Context(), f.ID, c.Param("run_id"))
	if errors.Is(err, storage.ErrReportNotFound) {
		return respond(c, http.StatusNotFound, "Report not found")
	}
	if err != nil {
		logger.Error("Failed to get run report", "run_id", c.Param("run_id"), "err", err)
		return respond(c, http.StatusInternalServerError, "Internal server error")
	}

	return c.JSONBlob(http.StatusOK, body)
}
