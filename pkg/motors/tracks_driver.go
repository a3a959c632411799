package motors

import (
	"errors"
	"fmt"

	"github.com/goliath-teleop/core/pkg/config"
	"github.com/goliath-teleop/core/pkg/hal"
	"github.com/goliath-teleop/core/pkg/log"
)

// TracksDriver owns both tracks and the state mixed onto them.
type TracksDriver struct {
	left   *DirectionalMotor
	right  *DirectionalMotor
	state  TrackState
	logger log.Logger
}

// NewTracksDriver stops both tracks before returning.
func NewTracksDriver(left, right *DirectionalMotor, logger log.Logger) (*TracksDriver, error) {
	if err := left.Stop(); err != nil {
		return nil, fmt.Errorf("stop left track on init: %w", err)
	}
	if err := right.Stop(); err != nil {
		return nil, fmt.Errorf("stop right track on init: %w", err)
	}
	return &TracksDriver{left: left, right: right, logger: logger}, nil
}

// OpenTracksDriver builds both tracks from the provider. Unset pin names
// fall back to "<side>.pwm", "<side>.forward" and "<side>.backward", which
// only the sim driver accepts.
func OpenTracksDriver(provider hal.Provider, cfg config.MotorsConfig, logger log.Logger) (*TracksDriver, error) {
	left, err := openTrack(provider, "left", cfg.Left, cfg.PWMFrequencyHz)
	if err != nil {
		return nil, err
	}
	right, err := openTrack(provider, "right", cfg.Right, cfg.PWMFrequencyHz)
	if err != nil {
		return nil, err
	}
	return NewTracksDriver(left, right, logger)
}

func openTrack(provider hal.Provider, side string, cfg config.TrackConfig, freqHz int) (*DirectionalMotor, error) {
	name := func(v, suffix string) string {
		if v != "" {
			return v
		}
		return side + "." + suffix
	}

	power, err := provider.PWM(name(cfg.PWMPin, "pwm"), freqHz)
	if err != nil {
		return nil, fmt.Errorf("%s track power: %w", side, err)
	}
	forward, err := provider.DigitalPin(name(cfg.ForwardPin, "forward"))
	if err != nil {
		return nil, fmt.Errorf("%s track forward pin: %w", side, err)
	}
	backward, err := provider.DigitalPin(name(cfg.BackwardPin, "backward"))
	if err != nil {
		return nil, fmt.Errorf("%s track backward pin: %w", side, err)
	}
	return NewDirectionalMotor(power, forward, backward), nil
}

func (d *TracksDriver) State() *TrackState { return &d.state }

// Update writes the mixed state to both tracks.
func (d *TracksDriver) Update() error {
	left, right := d.state.Mix()

	if err := d.left.Set(left.Power, left.Forward); err != nil {
		return fmt.Errorf("left track: %w", err)
	}
	d.logger.Debugf("Left track power %.3f forward=%t", left.Power, left.Forward)

	if err := d.right.Set(right.Power, right.Forward); err != nil {
		return fmt.Errorf("right track: %w", err)
	}
	d.logger.Debugf("Right track power %.3f forward=%t", right.Power, right.Forward)
	return nil
}

// Stop zeroes both tracks, attempting the second even if the first fails.
func (d *TracksDriver) Stop() error {
	d.state.Zero()
	return errors.Join(d.left.Stop(), d.right.Stop())
}

// TurretDriver accepts turret commands. The turret has no actuator wired yet.
type TurretDriver struct {
	angle  float32
	logger log.Logger
}

func NewTurretDriver(logger log.Logger) *TurretDriver {
	return &TurretDriver{logger: logger}
}

// SetAngle records the requested angle.
func (t *TurretDriver) SetAngle(angle float32) {
	t.angle = angle
	t.logger.Debugf("Turret angle %.2f requested (no actuator)", angle)
}

func (t *TurretDriver) Angle() float32 { return t.angle }
