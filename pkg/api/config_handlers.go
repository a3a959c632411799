package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
	customlog "github.com/goliath-teleop/core/pkg/log"
	"github.com/goliath-teleop/core/services"
)

// ConfigHandler holds dependencies for configuration API endpoints.
type ConfigHandler struct {
	configService services.VehicleConfigService
	logger        customlog.Logger
}

// NewConfigHandler creates a new handler for configuration endpoints.
func NewConfigHandler(configService services.VehicleConfigService, logger customlog.Logger) *ConfigHandler {
	if configService == nil {
		panic("ConfigService cannot be nil in NewConfigHandler")
	}
	if logger == nil {
		panic("Logger cannot be nil in NewConfigHandler")
	}
	return &ConfigHandler{
		configService: configService,
		logger:        logger,
	}
}

// RegisterConfigRoutes registers the configuration API endpoints with the Fiber app.
func RegisterConfigRoutes(app *fiber.App, configService services.VehicleConfigService, logger customlog.Logger) {
	h := NewConfigHandler(configService, logger)

	apiGroup := app.Group("/api/v1/config")
	apiGroup.Get("/vehicle", h.handleGetVehicleConfig)
	apiGroup.Put("/vehicle", h.handleUpdateVehicleConfig)

	logger.Infof("Registered vehicle configuration API endpoints under /api/v1/config")
}

// handleGetVehicleConfig returns the current vehicle config as YAML.
func (h *ConfigHandler) handleGetVehicleConfig(c *fiber.Ctx) error {
	h.logger.Debugf("Handling GET request for /api/v1/config/vehicle")
	yamlData, err := h.configService.GetCurrentConfigYAML()
	if err != nil {
		h.logger.Errorf("Failed to get current vehicle config YAML: %v", err)
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Error: fmt.Sprintf("Failed to retrieve configuration: %v", err),
		})
	}
	if yamlData == nil {
		h.logger.Warnf("Vehicle config requested but none is loaded")
		return c.Status(http.StatusNotFound).JSON(ErrorResponse{
			Error: "Vehicle configuration not found or not yet set.",
		})
	}

	c.Set(fiber.HeaderContentType, "application/x-yaml")
	return c.Send(yamlData)
}

// handleUpdateVehicleConfig validates and persists a YAML body.
func (h *ConfigHandler) handleUpdateVehicleConfig(c *fiber.Ctx) error {
	h.logger.Debugf("Handling PUT request for /api/v1/config/vehicle")

	switch ct := c.Get(fiber.HeaderContentType); ct {
	case "application/x-yaml", "application/yaml", "text/yaml":
	default:
		h.logger.Warnf("Received PUT request with unexpected Content-Type: %q", ct)
	}

	body := c.Body()
	if len(body) == 0 {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Error: "Request body cannot be empty.",
		})
	}

	if err := h.configService.UpdateConfig(body); err != nil {
		h.logger.Errorf("Failed to update vehicle configuration: %v", err)
		if errors.Is(err, services.ErrInvalidUpdate) {
			return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
				Error: fmt.Sprintf("Configuration update failed: %v", err),
			})
		}
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Error: fmt.Sprintf("Internal server error during configuration update: %v", err),
		})
	}

	h.logger.Infof("Vehicle configuration updated")
	return c.Status(http.StatusOK).JSON(MessageResponse{
		Message: "Vehicle configuration updated successfully. Hardware settings apply on restart.",
	})
}
