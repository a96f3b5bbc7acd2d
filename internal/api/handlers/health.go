package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// HealthHandler reports dependency reachability
type HealthHandler struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewHealthHandler creates a new HealthHandler. redis may be nil.
func NewHealthHandler(db *gorm.DB, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb}
}

// Check pings Postgres and Redis
// GET /health
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx := c.UserContext()
	status := fiber.StatusOK
	body := fiber.Map{"status": "ok", "db": "connected", "redis": "connected"}

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		status = fiber.StatusServiceUnavailable
		body["status"] = "degraded"
		body["db"] = err.Error()
	}

	if h.redis == nil {
		body["redis"] = "disabled"
	} else if err := h.redis.Ping(ctx).Err(); err != nil {
		// Prices fall back to the database without Redis
		body["status"] = "degraded"
		body["redis"] = err.Error()
	}

	return c.Status(status).JSON(body)
}
