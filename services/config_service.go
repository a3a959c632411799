package services

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sync"

	"github.com/goliath-teleop/core/pkg/config"
	customlog "github.com/goliath-teleop/core/pkg/log"
)

// ErrInvalidUpdate marks updates rejected before anything was written.
var ErrInvalidUpdate = errors.New("invalid configuration update")

// ConfigPublisher announces configuration changes.
type ConfigPublisher interface {
	PublishConfigUpdatedNotification(cfg *config.VehicleConfig) error
}

// VehicleConfigService manages the persisted vehicle configuration.
type VehicleConfigService interface {
	LoadConfig() error
	GetCurrentConfig() *config.VehicleConfig
	GetCurrentConfigYAML() ([]byte, error)
	UpdateConfig(newConfigYAML []byte) error
	SetPublisher(p ConfigPublisher)
}

type vehicleConfigService struct {
	configPath      string
	logger          customlog.Logger
	configPublisher ConfigPublisher
	currentConfig   *config.VehicleConfig
	mu              sync.RWMutex
}

// NewVehicleConfigService loads the config at configPath. A failed initial
// load is logged and leaves the service without a current config.
func NewVehicleConfigService(configPath string, logger customlog.Logger) (VehicleConfigService, error) {
	if configPath == "" {
		return nil, fmt.Errorf("vehicle configuration path cannot be empty")
	}
	if logger == nil {
		logger, _ = customlog.NewLogrusLogger("info", "", "")
		logger.Warnf("No logger provided to VehicleConfigService, using default.")
	}

	service := &vehicleConfigService{
		configPath: configPath,
		logger:     logger,
	}
	if err := service.LoadConfig(); err != nil {
		logger.Warnf("Initial load of vehicle config '%s' failed: %v", configPath, err)
		return service, nil
	}
	logger.Infof("VehicleConfigService initialized for path: %s", configPath)
	return service, nil
}

// NewVehicleConfigServiceWith starts from an already loaded config.
func NewVehicleConfigServiceWith(configPath string, cfg *config.VehicleConfig, logger customlog.Logger) VehicleConfigService {
	return &vehicleConfigService{
		configPath:    configPath,
		logger:        logger,
		currentConfig: cfg,
	}
}

func (s *vehicleConfigService) LoadConfig() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Debugf("Loading vehicle configuration from: %s", s.configPath)
	data, err := os.ReadFile(s.configPath)
	if err != nil {
		s.currentConfig = nil
		return fmt.Errorf("error reading vehicle config file '%s': %w", s.configPath, err)
	}
	cfg, err := config.ParseVehicleConfig(data)
	if err != nil {
		s.currentConfig = nil
		return fmt.Errorf("vehicle config file '%s': %w", s.configPath, err)
	}
	s.currentConfig = cfg
	s.logger.Infof("Loaded vehicle configuration for %s", cfg.VehicleID)
	return nil
}

// GetCurrentConfig returns the config in effect. Callers must not modify it.
func (s *vehicleConfigService) GetCurrentConfig() *config.VehicleConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentConfig
}

// GetCurrentConfigYAML returns the file as stored on disk.
func (s *vehicleConfigService) GetCurrentConfigYAML() ([]byte, error) {
	data, err := os.ReadFile(s.configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading vehicle config file '%s': %w", s.configPath, err)
	}
	return data, nil
}

// UpdateConfig validates, persists and applies newConfigYAML, then notifies
// the publisher. Hardware settings take effect on the next start.
func (s *vehicleConfigService) UpdateConfig(newConfigYAML []byte) error {
	newCfg, err := config.ParseVehicleConfig(newConfigYAML)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentConfig != nil && reflect.DeepEqual(s.currentConfig, newCfg) {
		s.logger.Infof("Provided configuration is identical to the current one. No update needed.")
		return nil
	}

	if err := os.WriteFile(s.configPath, newConfigYAML, 0644); err != nil {
		return fmt.Errorf("error writing vehicle config file '%s': %w", s.configPath, err)
	}
	s.currentConfig = newCfg
	s.logger.Infof("Updated and persisted vehicle configuration for %s", newCfg.VehicleID)

	if s.configPublisher != nil {
		go func(publisher ConfigPublisher) {
			if err := publisher.PublishConfigUpdatedNotification(newCfg); err != nil {
				s.logger.Warnf("Failed to publish config update notification: %v", err)
			}
		}(s.configPublisher)
	}
	return nil
}

func (s *vehicleConfigService) SetPublisher(p ConfigPublisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configPublisher = p
}
