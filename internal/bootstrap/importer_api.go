package bootstrap

import (
	"strings"

	httpadapter "drive_import_server/adapter/in/http"
	"drive_import_server/config"
	"drive_import_server/infra/middleware"
	"drive_import_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	logLevel := logger.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = logger.LevelDebug
	}
	logger.Init(logger.Config{
		Level:   logLevel,
		Service: "drive-import-api",
	})

	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize dependencies")
		return nil, nil, err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),

		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit:    2 * 1024 * 1024,
		ServerHeader: "",
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Request-ID",
	}))

	// Health checks (no auth)
	healthHandler := httpadapter.NewHealthHandler(deps.SQLDB, deps.Redis, deps.MongoDB)
	healthHandler.Register(app)

	api := app.Group("/api/v1")

	// OAuth flow: the provider redirects to the callback, so that route
	// stays open; the rest of the surface is admin-only.
	oauthHandler := httpadapter.NewOAuthHandler(deps.TokenService, deps.TokenRepo)
	app.Get("/api/v1/oauth/:account/callback", oauthHandler.Callback)

	// Drive posts notifications here without our admin credential.
	importHandler := httpadapter.NewImportHandler(deps.ImportService, deps.HistoryRepo)
	app.Post("/api/v1/import/:account/notifications", importHandler.Notification)

	api.Use(middleware.AdminAuth(cfg.AdminJWTSecret))
	oauthHandler.Register(api)
	importHandler.Register(api)

	driveHandler := httpadapter.NewDriveHandler(deps.DrivePort)
	driveHandler.Register(api)

	return app, cleanup, nil
}
