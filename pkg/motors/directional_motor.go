package motors

import (
	"fmt"

	"github.com/goliath-teleop/core/pkg/hal"
)

// DirectionalMotor drives one track through an H-bridge: two direction pins
// and a PWM power input.
type DirectionalMotor struct {
	power    hal.PWM
	forward  hal.DigitalPin
	backward hal.DigitalPin
}

func NewDirectionalMotor(power hal.PWM, forward, backward hal.DigitalPin) *DirectionalMotor {
	return &DirectionalMotor{power: power, forward: forward, backward: backward}
}

// Set applies power in [0, 1] in the given direction. Direction pins are
// written before the duty cycle.
func (m *DirectionalMotor) Set(power float64, forward bool) error {
	if power < 0 || power > 1 {
		return fmt.Errorf("%w: power %v", ErrOutOfRange, power)
	}

	if forward {
		if err := m.forward.SetHigh(); err != nil {
			return err
		}
		if err := m.backward.SetLow(); err != nil {
			return err
		}
	} else {
		if err := m.forward.SetLow(); err != nil {
			return err
		}
		if err := m.backward.SetHigh(); err != nil {
			return err
		}
	}

	return m.power.SetDutyCycle(power)
}

// Stop drives zero power, forward.
func (m *DirectionalMotor) Stop() error {
	return m.Set(0, true)
}
