package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/outreach/internal/server/middleware"
	"github.com/OFFIS-RIT/outreach/internal/util"
	"github.com/OFFIS-RIT/outreach/pkg/flow"

	"github.com/labstack/echo/v4"
)

// AddNodeHandler appends a step to the flow. The new node is dispatched
// after all existing ones.
func AddNodeHandler(c echo.Context) error {
	type addNodeBody struct {
		Value string  `json:"value" validate:"required"`
		Type  string  `json:"type" validate:"max=50"`
		X     float64 `json:"x"`
		Y     float64 `json:"y"`
	}

	type addNodeResponse struct {
		Message string     `json:"message"`
		Node    *flow.Node `json:"node,omitempty"`
	}

	data := new(addNodeBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, addNodeResponse{
			Message: "Invalid request body",
		})
	}
	data.Value = util.SanitizeText(data.Value)
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, addNodeResponse{
			Message: "Invalid request body",
		})
	}

	f, err := loadFlow(c)
	if f == nil {
		return err
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	node := flow.Node{
		ID:       util.NewID(),
		Type:     data.Type,
		Position: flow.Position{X: data.X, Y: data.Y},
		Value:    data.Value,
	}
	_, err = app.Store.EditGraph(ctx, f.ID, func(g *flow.Graph) error {
		if err := g.AddNode(node); err != nil {
			return err
		}
		node, _ = g.Node(node.ID)
		return nil
	})
	if err != nil {
		return graphEditError(c, f.ID, err)
	}

	cancelActiveRuns(ctx, app, f.ID, "graph changed")

	return c.JSON(http.StatusCreated, addNodeResponse{
		Message: "Node added",
		Node:    &node,
	})
}
