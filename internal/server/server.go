package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/outreach/internal/queue"
	mid "github.com/OFFIS-RIT/outreach/internal/server/middleware"
	"github.com/OFFIS-RIT/outreach/internal/storage"
	"github.com/OFFIS-RIT/outreach/internal/util"
	"github.com/OFFIS-RIT/outreach/pkg/logger"
	pgstore "github.com/OFFIS-RIT/outreach/pkg/store/pgx"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// NewEcho builds the API with all middleware and routes around app.
func NewEcho(app *mid.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("2M"))

	RegisterRoutes(e)
	return e
}

// RunMigrations applies all pending migrations from MIGRATIONS_PATH.
func RunMigrations() error {
	path := util.GetEnvString("MIGRATIONS_PATH", "migrations")
	m, err := migrate.New("file://"+path, util.GetEnv("DATABASE_URL"))
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	version, dirty, _ := m.Version()
	logger.Info("Database migrated", "version", version, "dirty", dirty)
	return nil
}

func Init() {
	if err := RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "err", err)
	}

	jwksUrl := util.GetEnv("AUTH_URL") + "/jwks"
	k, err := keyfunc.NewDefault([]string{jwksUrl})
	if err != nil {
		logger.Fatal("Failed to load jwks keys", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := pgxpool.New(ctx, util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()

	que := queue.Init()
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	s3Client, err := storage.NewS3Client(ctx)
	if err != nil {
		logger.Fatal("Failed to create S3 client", "err", err)
	}

	masterAPIKey := util.GetEnv("MASTER_API_KEY")
	parsedMasterUserID, _ := strconv.ParseInt(util.GetEnv("MASTER_USER_ID"), 10, 32)
	masterUserRole := util.GetEnv("MASTER_USER_ROLE")
	masterUserID := int32(parsedMasterUserID)

	app := &mid.App{
		Store:          pgstore.NewFlowDBStorageWithConnection(conn),
		Queue:          queue.NewChannelPublisher(ch),
		Key:            k.Keyfunc,
		Reports:        storage.NewReports(s3Client, util.GetEnv("AWS_BUCKET")),
		DefaultDelay:   util.GetEnvDuration("DISPATCH_DELAY_MS", 3*time.Second),
		MasterAPIKey:   masterAPIKey,
		MasterUserID:   masterUserID,
		MasterUserRole: masterUserRole,
	}
	e := NewEcho(app)

	go func() {
		port := util.GetEnv("PORT")
		if port == "" {
			port = "8080"
		}
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
