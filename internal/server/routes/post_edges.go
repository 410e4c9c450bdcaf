package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/outreach/internal/server/middleware"
	"github.com/OFFIS-RIT/outreach/pkg/flow"

	"github.com/labstack/echo/v4"
)

type edgeBody struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

type edgeResponse struct {
	Message string     `json:"message"`
	Edge    *flow.Edge `json:"edge,omitempty"`
}

// ConnectNodesHandler adds the edge from source to target.
func ConnectNodesHandler(c echo.Context) error {
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

	var edge flow.Edge
	_, err = app.Store.EditGraph(ctx, f.ID, func(g *flow.Graph) error {
		var err error
		edge, err = g.Connect(data.Source, data.Target)
		return err
	})
	if err != nil {
		return graphEditError(c, f.ID, err)
	}

	cancelActiveRuns(ctx, app, f.ID, "graph changed")

	return c.JSON(http.StatusCreated, edgeResponse{
		Message: "Edge added",
		Edge:    &edge,
	})
}
