package middleware

import (
	"context"
	"time"

	"github.com/OFFIS-RIT/outreach/internal/queue"
	"github.com/OFFIS-RIT/outreach/pkg/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type AppUser struct {
	UserID      int32
	Role        string
	Permissions []string
}

// ReportStore reads and removes archived run reports.
type ReportStore interface {
	GetRunReport(ctx context.Context, flowID, runID string) ([]byte, error)
	DeleteFlowReports(ctx context.Context, flowID string) error
}

type App struct {
	Store          store.FlowStorage
	Queue          queue.Publisher
	Key            jwt.Keyfunc
	Reports        ReportStore
	DefaultDelay   time.Duration
	MasterAPIKey   string
	MasterUserID   int32
	MasterUserRole string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
