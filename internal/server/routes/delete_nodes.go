package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/outreach/internal/server/middleware"
	"github.com/OFFIS-RIT/outreach/pkg/flow"

	"github.com/labstack/echo/v4"
)

// DeleteNodesHandler removes nodes and reconnects their neighbours so that
// every path through a removed node survives as a direct edge.
func DeleteNodesHandler(c echo.Context) error {
	type deleteNodesBody struct {
		NodeIDs []string `json:"node_ids" validate:"required,min=1,dive,required"`
	}

	type deleteNodesResponse struct {
		Message string      `json:"message"`
		Deleted []flow.Node `json:"deleted,omitempty"`
		Edges   []flow.Edge `json:"edges"`
	}

	data := new(deleteNodesBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, deleteNodesResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, deleteNodesResponse{
			Message: "Invalid request body",
		})
	}

	f, err := loadFlow(c)
	if f == nil {
		return err
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	var deleted []flow.Node
	g, err := app.Store.EditGraph(ctx, f.ID, func(g *flow.Graph) error {
		deleted = g.RemoveNodes(data.NodeIDs...)
		if len(deleted) == 0 {
			return flow.ErrNodeNotFound
		}
		return nil
	})
	if err != nil {
		return graphEditError(c, f.ID, err)
	}

	cancelActiveRuns(ctx, app, f.ID, "graph changed")

	edges := g.Edges
	if edges == nil {
		edges = []flow.Edge{}
	}
	return c.JSON(http.StatusOK, deleteNodesResponse{
		Message: "Nodes deleted",
		Deleted: deleted,
		Edges:   edges,
	})
}
