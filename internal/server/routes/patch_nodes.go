package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/outreach/internal/server/middleware"
	"github.com/OFFIS-RIT/outreach/internal/util"
	"github.com/OFFIS-RIT/outreach/pkg/flow"

	"github.com/labstack/echo/v4"
)

// EditNodeHandler changes the value, type or position of a node. Fields
// left out of the body keep their current value.
func EditNodeHandler(c echo.Context) error {
	type editNodeBody struct {
		Value *string  `json:"value" validate:"omitempty,min=1"`
		Type  *string  `json:"type" validate:"omitempty,max=50"`
		X     *float64 `json:"x"`
		Y     *float64 `json:"y"`
	}

	type editNodeResponse struct {
		Message string     `json:"message"`
		Node    *flow.Node `json:"node,omitempty"`
	}

	data := new(editNodeBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, editNodeResponse{
			Message: "Invalid request body",
		})
	}
	if data.Value != nil {
		v := util.SanitizeText(*data.Value)
		data.Value = &v
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, editNodeResponse{
			Message: "Invalid request body",
		})
	}

	f, err := loadFlow(c)
	if f == nil {
		return err
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App
	nodeID := c.Param("node_id")

	var node flow.Node
	_, err = app.Store.EditGraph(ctx, f.ID, func(g *flow.Graph) error {
		current, ok := g.Node(nodeID)
		if !ok {
			return flow.ErrNodeNotFound
		}
		if data.Value != nil {
			current.Value = *data.Value
		}
		if data.Type != nil {
			current.Type = *data.Type
		}
		if data.X != nil {
			current.Position.X = *data.X
		}
		if data.Y != nil {
			current.Position.Y = *data.Y
		}
		node = current
		return g.UpdateNode(current)
	})
	if err != nil {
		return graphEditError(c, f.ID, err)
	}

	// Moving a node on the canvas does not change what gets sent.
	if data.Value != nil {
		cancelActiveRuns(ctx, app, f.ID, "graph changed")
	}

	return c.JSON(http.StatusOK, editNodeResponse{
		Message: "Node updated",
		Node:    &node,
	})
}
