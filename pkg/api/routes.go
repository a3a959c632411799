package api

import (
	"github.com/gofiber/fiber/v2"
	customlog "github.com/goliath-teleop/core/pkg/log"
)

// RegisterHealthRoutes mounts / and /health.
func RegisterHealthRoutes(app *fiber.App, vehicleID string, server SessionServer, logger customlog.Logger) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "online",
			"service": "goliath vehicle",
		})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(HealthResponse{Status: "healthy", VehicleID: vehicleID, Busy: server.Busy()})
	})
	logger.Debugf("Registered health endpoints")
}

// ErrorHandler renders handler errors as ErrorResponse.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(ErrorResponse{Error: err.Error()})
}
