package ssd1306

import (
	"fmt"

	"github.com/goliath-teleop/core/pkg/config"
	"github.com/goliath-teleop/core/pkg/hal"
	"github.com/goliath-teleop/core/pkg/log"
)

// Config is the bring-up parameter record. Fields left at their DefaultConfig
// values reproduce the stock 128x32 module setup.
type Config struct {
	// Address is the 7-bit I2C address.
	Address uint16
	Width   int
	Height  int
	// OscillatorFrequency is the high nibble of 0xD5.
	OscillatorFrequency uint8
	// ClockDivideRatio is the low nibble of 0xD5.
	ClockDivideRatio uint8
	Contrast         uint8
}

// DefaultConfig returns the settings for a 128x32 panel at 0x3C.
func DefaultConfig() Config {
	return Config{
		Address:             0x3C,
		Width:               128,
		Height:              32,
		OscillatorFrequency: 0x8,
		ClockDivideRatio:    0x0,
		Contrast:            0x0F,
	}
}

// ConfigFrom overlays the non-zero fields of cfg on DefaultConfig.
func ConfigFrom(cfg config.DisplayConfig) Config {
	c := DefaultConfig()
	if cfg.Address != 0 {
		c.Address = cfg.Address
	}
	if cfg.Width != 0 {
		c.Width = cfg.Width
	}
	if cfg.Height != 0 {
		c.Height = cfg.Height
	}
	if cfg.OscillatorFrequency != 0 {
		c.OscillatorFrequency = cfg.OscillatorFrequency
	}
	c.ClockDivideRatio = cfg.ClockDivideRatio
	if cfg.Contrast != 0 {
		c.Contrast = cfg.Contrast
	}
	return c
}

// BringupSequence lists the initialization commands in the order they are
// sent. The panel is switched on last.
func (c Config) BringupSequence() []Command {
	return []Command{
		DisplayOn(false),
		SetDisplayClockDiv(c.ClockDivideRatio, c.OscillatorFrequency),
		SetMultiplexRatio(uint8(c.Height - 1)),
		SetDisplayOffset(0),
		SetDisplayStartLine(0),
		ChargePump(true),
		SetAddressingMode(AddressingPage),
		SetSegmentRemap(false),
		SetComOutputScanDirection(false),
		SetComPinsHardwareConfiguration(false, false),
		// Column 127 maps to SEG0 on the stock module.
		SetSegmentRemap(true),
		SetComOutputScanDirection(false),
		SetPreChargePeriod(0x1, 0x2),
		SetContrast(c.Contrast),
		SetVComHDeselectLevel(VComH077),
		EntireDisplay(false),
		Inverse(false),
		ScrollActivation(false),
		DisplayOn(true),
	}
}

// Bringup sends the initialization sequence and returns the ready display.
// The page buffer starts zeroed and fully dirty.
func Bringup(bus hal.Bus, c Config, logger log.Logger) (*Display, error) {
	d, err := New(bus, c.Address, c.Width, c.Height, logger)
	if err != nil {
		return nil, err
	}
	for _, cmd := range c.BringupSequence() {
		if err := d.SendCommand(cmd); err != nil {
			return nil, fmt.Errorf("display bring-up: %w", err)
		}
	}
	d.logger.Infof("Display ready at 0x%02X (%dx%d)", c.Address, c.Width, c.Height)
	return d, nil
}

// Open brings the panel up and blanks it.
func Open(bus hal.Bus, c Config, logger log.Logger) (*Display, error) {
	d, err := Bringup(bus, c, logger)
	if err != nil {
		return nil, err
	}
	d.Clear()
	if err := d.Flush(); err != nil {
		return nil, fmt.Errorf("display clear: %w", err)
	}
	return d, nil
}
