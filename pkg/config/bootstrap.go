package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// OperatorConfig holds the operator station settings loaded from operator_config.yaml
type OperatorConfig struct {
	Logging                 LoggingConfig `yaml:"logging"`
	VehicleURL              string        `yaml:"vehicle_url"`
	ControllerListenAddress string        `yaml:"controller_listen_address"`
	HandshakeTimeoutMs      int           `yaml:"handshake_timeout_ms"`
}

// LoadVehicleConfig loads the vehicle configuration from vehicle_config.yaml
func LoadVehicleConfig(configDir string) (*VehicleConfig, error) {
	path := filepath.Join(configDir, VehicleConfigFilename)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading vehicle config file '%s': %w", path, err)
	}

	cfg, err := ParseVehicleConfig(data)
	if err != nil {
		return nil, fmt.Errorf("vehicle config file '%s': %w", path, err)
	}
	return cfg, nil
}

// LoadOperatorConfig loads the operator configuration from operator_config.yaml
func LoadOperatorConfig(configDir string) (*OperatorConfig, error) {
	path := filepath.Join(configDir, OperatorConfigFilename)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading operator config file '%s': %w", path, err)
	}

	cfg := OperatorConfig{
		Logging:                 LoggingConfig{Level: "info"},
		ControllerListenAddress: "0.0.0.0:6000",
		HandshakeTimeoutMs:      5000,
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing operator config file '%s': %w", path, err)
	}

	if cfg.VehicleURL == "" {
		return nil, fmt.Errorf("missing required field in operator config: vehicle_url")
	}
	u, err := url.Parse(cfg.VehicleURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return nil, fmt.Errorf("invalid value in operator config: vehicle_url %q (want ws:// or wss://)", cfg.VehicleURL)
	}
	if cfg.ControllerListenAddress == "" {
		return nil, fmt.Errorf("missing required field in operator config: controller_listen_address")
	}
	if cfg.HandshakeTimeoutMs <= 0 {
		return nil, fmt.Errorf("invalid value in operator config: handshake_timeout_ms %d", cfg.HandshakeTimeoutMs)
	}

	return &cfg, nil
}
