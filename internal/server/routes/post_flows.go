package routes

import (
	"net/http"
	"strings"

	"github.com/OFFIS-RIT/outreach/internal/server/middleware"
	"github.com/OFFIS-RIT/outreach/internal/util"
	"github.com/OFFIS-RIT/outreach/pkg/logger"
	"github.com/OFFIS-RIT/outreach/pkg/store"

	"github.com/labstack/echo/v4"
)

// CreateFlowHandler creates an empty flow owned by the current user.
func CreateFlowHandler(c echo.Context) error {
	type createFlowBody struct {
		Name string `json:"name" validate:"required,max=200"`
	}

	type createFlowResponse struct {
		Message string      `json:"message"`
		Flow    *store.Flow `json:"flow,omitempty"`
	}

	data := new(createFlowBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, createFlowResponse{
			Message: "Invalid request body",
		})
	}
	data.Name = strings.TrimSpace(util.SanitizeText(data.Name))
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, createFlowResponse{
			Message: "Invalid request body",
		})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, createFlowResponse{
			Message: "Unauthorized",
		})
	}

	app := c.(*middleware.AppContext).App
	f := &store.Flow{
		ID:      util.NewID(),
		Name:    data.Name,
		OwnerID: user.UserID,
	}
	if err := app.Store.CreateFlow(c.Request().Context(), f); err != nil {
		logger.Error("Failed to create flow", "err", err)
		return c.JSON(http.StatusInternalServerError, createFlowResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusCreated, createFlowResponse{
		Message: "Flow created",
		Flow:    f,
	})
}
