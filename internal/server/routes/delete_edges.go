package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/outreach/internal/server/middleware"
	"github.com/OFFIS-RIT/outreach/pkg/flow"

	"github.com/labstack/echo/v4"
)

var errEdgeNotFound = errors.New("edge not found")

// DisconnectNodesHandler removes the edge from source to target. Unlike a
// node deletion this never adds bridging edges.
func DisconnectNodesHandler(c echo.Context) error {
	data := new(edgeBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, edgeResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, edgeResponse{
			Message: "Invalid request body",
		})
	}

	f, err := loadFlow(c)
	if f == nil {
		return err
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	edge := flow.NewEdge(data.Source, data.Target)
	_, err = app.Store.EditGraph(ctx, f.ID, func(g *flow.Graph) error {
		if !g.Disconnect(edge.ID) {
			return errEdgeNotFound
		}
		return nil
	})
	if errors.Is(err, errEdgeNotFound) {
		return c.JSON(http.StatusNotFound, edgeResponse{
			Message: "Edge not found",
		})
	}
	if err != nil {
		return graphEditError(c, f.ID, err)
	}

	cancelActiveRuns(ctx, app, f.ID, "graph changed")

	return c.JSON(http.StatusOK, edgeResponse{
		Message: "Edge removed",
		Edge:    &edge,
	})
}
