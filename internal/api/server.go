package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/stocky-project/backend/internal/api/middleware"
	"github.com/stocky-project/backend/internal/config"
	"github.com/stocky-project/backend/internal/logger"
)

// NewServer creates the Fiber app with the global middleware stack.
func NewServer(cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:       "Stocky Rewards API",
		StrictRouting: false,
		CaseSensitive: true,
		ReadTimeout:   cfg.Server.RequestTimeout,
		WriteTimeout:  cfg.Server.RequestTimeout,
		ErrorHandler:  errorHandler,
	})

	app.Use(recover.New()) // Panic recovery
	app.Use(requestid.New())
	if cfg.Server.Env != "test" {
		app.Use(fiberlogger.New(fiberlogger.Config{
			Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(middleware.Deadline(cfg.Server.RequestTimeout))

	return app
}

// errorHandler renders errors that escape handlers (404s, body limits, panics).
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		logger.Error("%s %s: %v", c.Method(), c.Path(), err)
		return c.Status(code).JSON(fiber.Map{"error": "Internal server error"})
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
