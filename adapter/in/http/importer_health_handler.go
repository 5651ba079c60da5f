package http

import (
	"context"
	"time"

	"drive_import_server/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// HealthHandler reports liveness and backing-store readiness.
type HealthHandler struct {
	db    *sqlx.DB
	redis *redis.Client
	mongo *mongo.Client
}

func NewHealthHandler(db *sqlx.DB, rdb *redis.Client, mc *mongo.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb, mongo: mc}
}

// Register registers health routes on the app root.
func (h *HealthHandler) Register(app *fiber.App) {
	app.Get("/health", h.Live)
	app.Get("/health/ready", h.Ready)
	app.Get("/health/pools", h.Pools)
}

// Pools reports connection pool usage and health.
func (h *HealthHandler) Pools(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"stats":  metrics.GetAllPoolStats(),
		"health": metrics.GetAllPoolHealth(),
	})
}

// Live answers as long as the process runs.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Ready checks every backing store with a short deadline.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
	defer cancel()

	checks := fiber.Map{}
	healthy := true

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			checks["postgres"] = err.Error()
			healthy = false
		} else {
			checks["postgres"] = "ok"
		}
	}
	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	}
	if h.mongo != nil {
		if err := h.mongo.Ping(ctx, nil); err != nil {
			checks["mongodb"] = err.Error()
			healthy = false
		} else {
			checks["mongodb"] = "ok"
		}
	}

	status := fiber.StatusOK
	if !healthy {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{"status": checks})
}
