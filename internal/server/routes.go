package server

import (
	"github.com/OFFIS-RIT/outreach/internal/server/middleware"
	"github.com/OFFIS-RIT/outreach/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Flow routes
	apiRoutes.GET("/flows", routes.GetFlowsHandler)
	apiRoutes.POST("/flows", routes.CreateFlowHandler, middleware.RequirePermission("flow.create"))
	apiRoutes.GET("/flows/:id", routes.GetFlowHandler)
	apiRoutes.DELETE("/flows/:id", routes.DeleteFlowHandler, middleware.RequirePermission("flow.delete"))

	// Graph editing routes
	apiRoutes.POST("/flows/:id/nodes", routes.AddNodeHandler, middleware.RequirePermission("flow.update"))
	apiRoutes.PATCH("/flows/:id/nodes/:node_id", routes.EditNodeHandler, middleware.RequirePermission("flow.update"))
	apiRoutes.DELETE("/flows/:id/nodes", routes.DeleteNodesHandler, middleware.RequirePermission("flow.update"))
	apiRoutes.POST("/flows/:id/edges", routes.ConnectNodesHandler, middleware.RequirePermission("flow.update"))
	apiRoutes.DELETE("/flows/:id/edges", routes.DisconnectNodesHandler, middleware.RequirePermission("flow.update"))

	// Dispatch routes
	apiRoutes.POST("/flows/:id/dispatch", routes.StartDispatchHandler, middleware.RequirePermission("flow.dispatch"))
	// Editors may stop runs too, since any graph edit cancels them anyway.
	apiRoutes.DELETE("/flows/:id/dispatch/:run_id", routes.CancelDispatchHandler, middleware.RequireAnyPermission("flow.dispatch", "flow.update"))
	apiRoutes.GET("/flows/:id/runs/:run_id", routes.GetRunHandler)
	apiRoutes.GET("/flows/:id/runs/:run_id/report", routes.GetRunReportHandler)
}
