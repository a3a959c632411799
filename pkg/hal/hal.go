// Package hal defines the hardware capabilities the vehicle drives and the
// drivers that provide them.
package hal

import (
	"errors"
	"fmt"
	"io"

	"github.com/goliath-teleop/core/pkg/config"
	"github.com/goliath-teleop/core/pkg/log"
	"tinygo.org/x/drivers"
)

// ErrHardware wraps every pin, PWM and bus failure.
var ErrHardware = errors.New("hal: hardware error")

// DigitalPin is an output pin.
type DigitalPin interface {
	SetHigh() error
	SetLow() error
}

// PWM is a pulse-width modulated output.
type PWM interface {
	// SetDutyCycle sets the high fraction of each period, in [0, 1].
	SetDutyCycle(fraction float64) error
}

// Bus is an addressed byte bus (I2C).
type Bus = drivers.I2C

// BusCloser is a Bus that owns an OS handle.
type BusCloser interface {
	Bus
	io.Closer
}

// Provider hands out capabilities by name.
type Provider interface {
	DigitalPin(name string) (DigitalPin, error)
	PWM(name string, frequencyHz int) (PWM, error)
	Bus(name string) (BusCloser, error)
}

// NewProvider returns the provider selected by hardware.driver.
func NewProvider(cfg config.HardwareConfig, logger log.Logger) (Provider, error) {
	switch cfg.Driver {
	case config.DriverPeriph:
		return NewPeriph(logger)
	case config.DriverSim:
		return NewSim(logger), nil
	default:
		return nil, fmt.Errorf("unknown hardware driver %q", cfg.Driver)
	}
}

func hwError(op, name string, err error) error {
	return fmt.Errorf("%w: %s %s: %v", ErrHardware, op, name, err)
}

// Write sends data to addr on bus as a single write-only transaction.
func Write(bus Bus, addr uint16, data []byte) error {
	if err := bus.Tx(addr, data, nil); err != nil {
		if errors.Is(err, ErrHardware) {
			return err
		}
		return hwError("i2c write", fmt.Sprintf("0x%02X", addr), err)
	}
	return nil
}

func validDuty(fraction float64) bool {
	return fraction >= 0 && fraction <= 1
}
