package routes

import (
	"context"
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/outreach/internal/queue"
	"github.com/OFFIS-RIT/outreach/internal/server/middleware"
	"github.com/OFFIS-RIT/outreach/pkg/flow"
	"github.com/OFFIS-RIT/outreach/pkg/logger"
	"github.com/OFFIS-RIT/outreach/pkg/store"

	"github.com/labstack/echo/v4"
)

type messageResponse struct {
	Message string `json:"message"`
}

func respond(c echo.Context, code int, message string) error {
	return c.JSON(code, messageResponse{Message: message})
}

// loadFlow returns the flow named by the :id path parameter if the current
// user may access it. On failure the error response has already been
// written and the returned error must be passed back to echo.
func loadFlow(c echo.Context) (*store.Flow, error) {
	user := c.(*middleware.AppContext).User
	if user == nil {
		return nil, respond(c, http.StatusUnauthorized, "Unauthorized")
	}

	app := c.(*middleware.AppContext).App
	f, err := app.Store.GetFlow(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return nil, respond(c, http.StatusNotFound, "Flow not found")
	}
	if err != nil {
		logger.Error("Failed to get flow", "flow_id", c.Param("id"), "err", err)
		return nil, respond(c, http.StatusInternalServerError, "Internal server error")
	}
	if !middleware.CanAccessFlow(user, f.OwnerID) {
		// Same answer as a missing flow so ids of other users do not leak.
		return nil, respond(c, http.StatusNotFound, "Flow not found")
	}
	return f, nil
}

// graphEditError maps errors of a graph edit to a response.
func graphEditError(c echo.Context, flowID string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return respond(c, http.StatusNotFound, "Flow not found")
	case errors.Is(err, flow.ErrNodeNotFound):
		return respond(c, http.StatusNotFound, "Node not found")
	case errors.Is(err, flow.ErrDuplicateNode):
		return respond(c, http.StatusConflict, "Node already exists")
	default:
		logger.Error("Failed to edit graph", "flow_id", flowID, "err", err)
		return respond(c, http.StatusInternalServerError, "Internal server error")
	}
}

// cancelActiveRuns stops every run of a flow that has not finished yet.
// Pending runs are marked cancelled so that workers skip them; running ones
// are told to stop through the cancel topic.
func cancelActiveRuns(ctx context.Context, app *middleware.App, flowID, reason string) {
	runs, err := app.Store.ActiveRuns(ctx, flowID)
	if err != nil {
		logger.Error("Failed to list active runs", "flow_id", flowID, "err", err)
		return
	}
	if len(runs) == 0 {
		return
	}

	for _, run := range runs {
		if err := app.Store.SetRunStatus(ctx, run.ID, store.RunCancelled); err != nil {
			logger.Error("Failed to cancel run", "run_id", run.ID, "err", err)
		}
	}
	if err := queue.PublishCancel(app.Queue, queue.CancelMsg{FlowID: flowID, Reason: reason}); err != nil {
		logger.Error("Failed to publish cancel", "flow_id", flowID, "err", err)
		return
	}
	logger.Info("Cancelled active runs", "flow_id", flowID, "count", len(runs), "reason", reason)
}
