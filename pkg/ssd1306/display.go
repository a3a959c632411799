// Package ssd1306 drives an SSD1306 monochrome OLED over I2C. Writes go to an
// in-memory page buffer first; Flush sends only the pages that changed.
package ssd1306

import (
	"fmt"
	"sync"

	"github.com/goliath-teleop/core/pkg/hal"
	"github.com/goliath-teleop/core/pkg/log"
)

// Display is one attached panel.
type Display struct {
	bus    hal.Bus
	addr   uint16
	logger log.Logger

	mu     sync.Mutex
	screen *ScreenSpace
	cmdBuf [8]byte
	data   []byte
	closed bool
}

// New wraps bus without sending anything to the device.
func New(bus hal.Bus, addr uint16, width, height int, logger log.Logger) (*Display, error) {
	screen, err := NewScreenSpace(width, height)
	if err != nil {
		return nil, err
	}
	d := &Display{
		bus:    bus,
		addr:   addr,
		logger: logger.WithField("component", "ssd1306"),
		screen: screen,
		data:   make([]byte, width+1),
	}
	d.cmdBuf[0] = controlCommand
	d.data[0] = controlData
	return d, nil
}

// SendCommand writes one command to the device.
func (d *Display) SendCommand(c Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sendCommand(c)
}

func (d *Display) sendCommand(c Command) error {
	n := copy(d.cmdBuf[1:], c.Bytes())
	if err := hal.Write(d.bus, d.addr, d.cmdBuf[:n+1]); err != nil {
		return fmt.Errorf("send %s: %w", c.name, err)
	}
	return nil
}

// Update stores data at byte offset pos in the page buffer. The device is
// not touched until Flush.
func (d *Display) Update(pos int, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.screen.Update(pos, data)
}

// Clear zeroes the page buffer and marks every page for the next Flush.
func (d *Display) Clear() {
	d.mu.Lock()
	d.screen.Clear()
	d.mu.Unlock()
}

// Flush writes each dirty page in ascending order: page select, full-width
// column select, then one page of data. With nothing dirty it does no I/O.
// Pages not sent because of an error stay dirty.
func (d *Display) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	dirty := d.screen.TakeDirty()
	if dirty == 0 {
		return nil
	}
	last := uint8(d.screen.Width() - 1)
	for p := 0; p < d.screen.PageCount(); p++ {
		bit := uint64(1) << uint(p)
		if dirty&bit == 0 {
			continue
		}
		if err := d.flushPage(uint8(p), last); err != nil {
			d.screen.MarkDirty(dirty)
			return fmt.Errorf("flush page %d: %w", p, err)
		}
		dirty &^= bit
	}
	return nil
}

func (d *Display) flushPage(page, lastColumn uint8) error {
	if err := d.sendCommand(SetPageAddress(page, page)); err != nil {
		return err
	}
	if err := d.sendCommand(SetColumnAddress(0, lastColumn)); err != nil {
		return err
	}
	copy(d.data[1:], d.screen.Page(int(page)))
	return hal.Write(d.bus, d.addr, d.data)
}

// Snapshot copies the page buffer.
func (d *Display) Snapshot() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.screen.Buffer()...)
}

func (d *Display) Width() int  { return d.screen.Width() }
func (d *Display) Height() int { return d.screen.Height() }

// Close turns the panel off. Failures are logged, not returned.
func (d *Display) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	if err := d.sendCommand(DisplayOn(false)); err != nil {
		d.logger.Warnf("Failed to turn display off: %v", err)
	}
}
