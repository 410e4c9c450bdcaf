package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/outreach/internal/server/middleware"
	"github.com/OFFIS-RIT/outreach/pkg/flow"
	"github.com/OFFIS-RIT/outreach/pkg/logger"
	"github.com/OFFIS-RIT/outreach/pkg/store"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

// GetFlowsHandler lists the flows of the current user, or all flows for
// users allowed to view every flow.
func GetFlowsHandler(c echo.Context) error {
	type getFlowsResponse struct {
		Message string       `json:"message"`
		Flows   []store.Flow `json:"flows"`
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return respond(c, http.StatusUnauthorized, "Unauthorized")
	}

	all := middleware.IsAdmin(user) || middleware.HasPermission(user, "flow.view:all")
	app := c.(*middleware.AppContext).App
	flows, err := app.Store.ListFlows(c.Request().Context(), user.UserID, all)
	if err != nil {
		logger.Error("Failed to list flows", "err", err)
		return respond(c, http.StatusInternalServerError, "Internal server error")
	}
	if flows == nil {
		flows = []store.Flow{}
	}

	return c.JSON(http.StatusOK, getFlowsResponse{
		Message: "Flows retrieved",
		Flows:   flows,
	})
}

// GetFlowHandler returns a flow together with its graph.
func GetFlowHandler(c echo.Context) error {
	type getFlowResponse struct {
		Message    string      `json:"message"`
		Flow       *store.Flow `json:"flow"`
		Graph      *flow.Graph `json:"graph"`
		ActiveRuns []store.Run `json:"active_runs"`
	}

	f, err := loadFlow(c)
	if f == nil {
		return err
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	var g *flow.Graph
	var active []store.Run
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		g, err = app.Store.LoadGraph(egCtx, f.ID)
		return err
	})
	eg.Go(func() error {
		var err error
		active, err = app.Store.ActiveRuns(egCtx, f.ID)
		return err
	})
	if err := eg.Wait(); err != nil {
		logger.Error("Failed to load flow", "flow_id", f.ID, "err", err)
		return respond(c, http.StatusInternalServerError, "Internal server error")
	}
	if active == nil {
		active = []store.Run{}
	}

	return c.JSON(http.StatusOK, getFlowResponse{
		Message:    "Flow retrieved",
		Flow:       f,
		Graph:      g,
		ActiveRuns: active,
	})
}
