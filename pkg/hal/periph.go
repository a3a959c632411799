package hal

import (
	"fmt"
	"math"

	"github.com/goliath-teleop/core/pkg/log"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// Periph provides pins and buses from the host through periph.io.
type Periph struct {
	logger log.Logger
}

// NewPeriph initializes the host drivers.
func NewPeriph(logger log.Logger) (*Periph, error) {
	state, err := host.Init()
	if err != nil {
		return nil, hwError("host init", "periph", err)
	}
	logger = logger.WithField("driver", "periph")
	for _, f := range state.Failed {
		logger.Warnf("Host driver failed to load: %v", f)
	}
	logger.Infof("Host initialized: %d drivers loaded", len(state.Loaded))
	return &Periph{logger: logger}, nil
}

func (p *Periph) lookup(name string) (gpio.PinIO, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, hwError("lookup", name, fmt.Errorf("no such pin"))
	}
	return pin, nil
}

// DigitalPin returns name configured as an output, driven low.
func (p *Periph) DigitalPin(name string) (DigitalPin, error) {
	pin, err := p.lookup(name)
	if err != nil {
		return nil, err
	}
	if err := pin.Out(gpio.Low); err != nil {
		return nil, hwError("configure output", name, err)
	}
	return &periphPin{pin: pin}, nil
}

// PWM returns name as a hardware PWM output at frequencyHz, duty 0.
func (p *Periph) PWM(name string, frequencyHz int) (PWM, error) {
	pin, err := p.lookup(name)
	if err != nil {
		return nil, err
	}
	out := &periphPWM{pin: pin, freq: physic.Frequency(frequencyHz) * physic.Hertz}
	if err := out.SetDutyCycle(0); err != nil {
		return nil, err
	}
	return out, nil
}

// Bus opens an I2C bus; "" opens the first one available.
func (p *Periph) Bus(name string) (BusCloser, error) {
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, hwError("open i2c", name, err)
	}
	p.logger.Debugf("Opened I2C bus %s", bus)
	return bus, nil
}

type periphPin struct {
	pin gpio.PinOut
}

func (p *periphPin) SetHigh() error {
	if err := p.pin.Out(gpio.High); err != nil {
		return hwError("set high", p.pin.Name(), err)
	}
	return nil
}

func (p *periphPin) SetLow() error {
	if err := p.pin.Out(gpio.Low); err != nil {
		return hwError("set low", p.pin.Name(), err)
	}
	return nil
}

type periphPWM struct {
	pin  gpio.PinOut
	freq physic.Frequency
}

func (p *periphPWM) SetDutyCycle(fraction float64) error {
	if !validDuty(fraction) {
		return hwError("set duty", p.pin.Name(), fmt.Errorf("duty %v outside [0, 1]", fraction))
	}
	duty := gpio.Duty(math.Round(fraction * float64(gpio.DutyMax)))
	if err := p.pin.PWM(duty, p.freq); err != nil {
		return hwError("set duty", p.pin.Name(), err)
	}
	return nil
}
