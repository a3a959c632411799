package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// VehicleConfigFilename is the file read from the vehicle config directory.
	VehicleConfigFilename = "vehicle_config.yaml"
	// OperatorConfigFilename is the file read from the operator config directory.
	OperatorConfigFilename = "operator_config.yaml"

	DriverPeriph = "periph"
	DriverSim    = "sim"
)

// VehicleConfig is the full vehicle-side configuration.
type VehicleConfig struct {
	VehicleID string         `yaml:"vehicle_id" json:"vehicle_id"`
	Logging   LoggingConfig  `yaml:"logging" json:"logging"`
	Server    ServerConfig   `yaml:"server" json:"server"`
	Hardware  HardwareConfig `yaml:"hardware" json:"hardware"`
	Motors    MotorsConfig   `yaml:"motors" json:"motors"`
	Display   DisplayConfig  `yaml:"display" json:"display"`
	Video     VideoConfig    `yaml:"video" json:"video"`
	ZeroMQ    ZeroMQConfig   `yaml:"zeromq" json:"zeromq"`
	Session   SessionConfig  `yaml:"session" json:"session"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	LogPath string `yaml:"log_path,omitempty" json:"log_path,omitempty"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	HTTPPort    int    `yaml:"http_port" json:"http_port"`
	ControlPath string `yaml:"control_path" json:"control_path"`
}

// HardwareConfig selects the hardware driver set.
type HardwareConfig struct {
	Driver string `yaml:"driver" json:"driver"`
}

// TrackConfig names the pins driving one track.
type TrackConfig struct {
	PWMPin      string `yaml:"pwm_pin" json:"pwm_pin"`
	ForwardPin  string `yaml:"forward_pin" json:"forward_pin"`
	BackwardPin string `yaml:"backward_pin" json:"backward_pin"`
}

// MotorsConfig holds both tracks and the shared PWM frequency.
type MotorsConfig struct {
	Left           TrackConfig `yaml:"left" json:"left"`
	Right          TrackConfig `yaml:"right" json:"right"`
	PWMFrequencyHz int         `yaml:"pwm_frequency_hz" json:"pwm_frequency_hz"`
	CommandBuffer  int         `yaml:"command_buffer" json:"command_buffer"`
}

// DisplayConfig holds the status display settings.
type DisplayConfig struct {
	Enabled             bool   `yaml:"enabled" json:"enabled"`
	I2CBus              string `yaml:"i2c_bus" json:"i2c_bus"`
	Address             uint16 `yaml:"address" json:"address"`
	Width               int    `yaml:"width" json:"width"`
	Height              int    `yaml:"height" json:"height"`
	Contrast            uint8  `yaml:"contrast" json:"contrast"`
	OscillatorFrequency uint8  `yaml:"oscillator_frequency" json:"oscillator_frequency"`
	ClockDivideRatio    uint8  `yaml:"clock_divide_ratio" json:"clock_divide_ratio"`
	// Logo is an optional PNG shown as the idle splash.
	Logo string `yaml:"logo,omitempty" json:"logo,omitempty"`
}

// VideoConfig holds the RTP streamer settings.
type VideoConfig struct {
	Enabled     bool  `yaml:"enabled" json:"enabled"`
	RTPPort     int   `yaml:"rtp_port" json:"rtp_port"`
	PayloadType uint8 `yaml:"payload_type" json:"payload_type"`
	MTU         int   `yaml:"mtu" json:"mtu"`
}

// ZeroMQConfig holds the local telemetry bus addresses. Empty disables the bus.
type ZeroMQConfig struct {
	RequestBindAddress string `yaml:"request_bind_address" json:"request_bind_address"`
	PublishBindAddress string `yaml:"publish_bind_address" json:"publish_bind_address"`
}

// Enabled reports whether the telemetry bus is configured.
func (z ZeroMQConfig) Enabled() bool {
	return z.RequestBindAddress != "" || z.PublishBindAddress != ""
}

// SessionConfig holds per-connection session settings.
type SessionConfig struct {
	StatusIntervalMs int `yaml:"status_interval_ms" json:"status_interval_ms"`
}

// DefaultVehicleConfig returns the configuration used for unset fields.
func DefaultVehicleConfig() VehicleConfig {
	return VehicleConfig{
		VehicleID: "goliath",
		Logging:   LoggingConfig{Level: "info"},
		Server:    ServerConfig{HTTPPort: 8080, ControlPath: "/ws/control"},
		Hardware:  HardwareConfig{Driver: DriverSim},
		Motors: MotorsConfig{
			PWMFrequencyHz: 1000,
			CommandBuffer:  32,
		},
		Display: DisplayConfig{
			Address:             0x3C,
			Width:               128,
			Height:              32,
			Contrast:            0x0F,
			OscillatorFrequency: 0x8,
			ClockDivideRatio:    0x0,
		},
		Video:   VideoConfig{RTPPort: 8000, PayloadType: 96, MTU: 1200},
		Session: SessionConfig{StatusIntervalMs: 1000},
	}
}

// ParseVehicleConfig decodes YAML on top of the defaults and validates the result.
func ParseVehicleConfig(data []byte) (*VehicleConfig, error) {
	cfg := DefaultVehicleConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing vehicle config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks required fields and value ranges.
func (c *VehicleConfig) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c *VehicleConfig) validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid value in vehicle config: server.http_port %d", c.Server.HTTPPort)
	}
	if c.Server.ControlPath == "" {
		return fmt.Errorf("missing required field in vehicle config: server.control_path")
	}
	switch c.Hardware.Driver {
	case DriverPeriph:
		for name, pin := range map[string]string{
			"motors.left.pwm_pin":       c.Motors.Left.PWMPin,
			"motors.left.forward_pin":   c.Motors.Left.ForwardPin,
			"motors.left.backward_pin":  c.Motors.Left.BackwardPin,
			"motors.right.pwm_pin":      c.Motors.Right.PWMPin,
			"motors.right.forward_pin":  c.Motors.Right.ForwardPin,
			"motors.right.backward_pin": c.Motors.Right.BackwardPin,
		} {
			if pin == "" {
				return fmt.Errorf("missing required field in vehicle config: %s", name)
			}
		}
	case DriverSim:
	default:
		return fmt.Errorf("invalid value in vehicle config: hardware.driver %q (want %s or %s)",
			c.Hardware.Driver, DriverPeriph, DriverSim)
	}
	if c.Motors.PWMFrequencyHz <= 0 {
		return fmt.Errorf("invalid value in vehicle config: motors.pwm_frequency_hz %d", c.Motors.PWMFrequencyHz)
	}
	if c.Motors.CommandBuffer <= 0 {
		return fmt.Errorf("invalid value in vehicle config: motors.command_buffer %d", c.Motors.CommandBuffer)
	}
	if c.Display.Enabled {
		if c.Display.Width <= 0 || c.Display.Height <= 0 || c.Display.Height%8 != 0 {
			return fmt.Errorf("invalid value in vehicle config: display %dx%d (height must be a multiple of 8)",
				c.Display.Width, c.Display.Height)
		}
		if c.Display.OscillatorFrequency > 0x0F || c.Display.ClockDivideRatio > 0x0F {
			return fmt.Errorf("invalid value in vehicle config: display clock settings must fit in 4 bits")
		}
	}
	if c.Video.Enabled {
		if c.Video.RTPPort <= 0 || c.Video.RTPPort > 65535 {
			return fmt.Errorf("invalid value in vehicle config: video.rtp_port %d", c.Video.RTPPort)
		}
		if c.Video.PayloadType > 127 {
			return fmt.Errorf("invalid value in vehicle config: video.payload_type %d", c.Video.PayloadType)
		}
		if c.Video.MTU < 64 {
			return fmt.Errorf("invalid value in vehicle config: video.mtu %d", c.Video.MTU)
		}
	}
	if c.ZeroMQ.Enabled() {
		if c.ZeroMQ.RequestBindAddress == "" {
			return fmt.Errorf("missing required field in vehicle config: zeromq.request_bind_address")
		}
		if c.ZeroMQ.PublishBindAddress == "" {
			return fmt.Errorf("missing required field in vehicle config: zeromq.publish_bind_address")
		}
	}
	if c.Session.StatusIntervalMs <= 0 {
		return fmt.Errorf("invalid value in vehicle config: session.status_interval_ms %d", c.Session.StatusIntervalMs)
	}
	return nil
}

// ToYAML serializes the configuration.
func (c *VehicleConfig) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("error serializing vehicle config: %w", err)
	}
	return data, nil
}

// WriteFile persists the configuration to path.
func (c *VehicleConfig) WriteFile(path string) error {
	data, err := c.ToYAML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing vehicle config file '%s': %w", path, err)
	}
	return nil
}
