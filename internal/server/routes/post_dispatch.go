package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/OFFIS-RIT/outreach/internal/queue"
	"github.com/OFFIS-RIT/outreach/internal/server/middleware"
	"github.com/OFFIS-RIT/outreach/internal/util"
	"github.com/OFFIS-RIT/outreach/pkg/dispatch"
	"github.com/OFFIS-RIT/outreach/pkg/logger"
	"github.com/OFFIS-RIT/outreach/pkg/store"

	"github.com/labstack/echo/v4"
)

// StartDispatchHandler snapshots the nodes of a flow and queues a run that
// sends one mail per node to the given address.
func StartDispatchHandler(c echo.Context) error {
	type startDispatchBody struct {
		Email   string `json:"email" validate:"required,email"`
		Subject string `json:"subject" validate:"required,max=998"`
		DelayMs *int64 `json:"delay_ms" validate:"omitempty,min=0,max=86400000"`
	}

	type startDispatchResponse struct {
		Message  string            `json:"message"`
		Run      *store.Run        `json:"run,omitempty"`
		Progress *util.RunProgress `json:"progress,omitempty"`
	}

	data := new(startDispatchBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, startDispatchResponse{
			Message: "Invalid request body",
		})
	}
	data.Email = strings.TrimSpace(data.Email)
	data.Subject = strings.TrimSpace(util.SanitizeText(data.Subject))
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, startDispatchResponse{
			Message: "Invalid request body",
		})
	}

	f, err := loadFlow(c)
	if f == nil {
		return err
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	delay := app.DefaultDelay
	if data.DelayMs != nil {
		delay = time.Duration(*data.DelayMs) * time.Millisecond
	}

	g, err := app.Store.LoadGraph(ctx, f.ID)
	if err != nil {
		return graphEditError(c, f.ID, err)
	}
	items := dispatch.Items(g.Nodes, data.Email, data.Subject)

	run := &store.Run{
		ID:        util.NewID(),
		FlowID:    f.ID,
		Recipient: data.Email,
		Subject:   data.Subject,
		DelayMs:   delay.Milliseconds(),
		Status:    store.RunPending,
		Total:     int32(len(items)),
	}
	if err := app.Store.CreateRun(ctx, run); err != nil {
		logger.Error("Failed to create run", "flow_id", f.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, startDispatchResponse{
			Message: "Internal server error",
		})
	}

	err = queue.PublishDispatch(app.Queue, queue.DispatchMsg{
		Message:   "Dispatch requested",
		RunID:     run.ID,
		FlowID:    f.ID,
		Recipient: run.Recipient,
		Subject:   run.Subject,
		DelayMs:   run.DelayMs,
		Items:     items,
	})
	if err != nil {
		logger.Error("Failed to enqueue run", "run_id", run.ID, "err", err)
		_ = app.Store.SetRunStatus(ctx, run.ID, store.RunFailed)
		return c.JSON(http.StatusInternalServerError, startDispatchResponse{
			Message: "Internal server error",
		})
	}

	progress := util.BuildRunProgress(*run)
	return c.JSON(http.StatusAccepted, startDispatchResponse{
		Message:  "Dispatch started",
		Run:      run,
		Progress: &progress,
	})
}
