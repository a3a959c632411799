// Package motors runs the real-time track control loop.
package motors

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/goliath-teleop/core/pkg/log"
	"github.com/goliath-teleop/core/pkg/wire"
)

const (
	// FlushBatch is the number of applied commands that forces a flush even
	// while more commands are queued.
	FlushBatch = 5
	// CommandBuffer is the default capacity of the command channel.
	CommandBuffer = 32
)

// ErrChannelDisconnected ends Run when the command channel is closed without
// an End command.
var ErrChannelDisconnected = errors.New("motors: command channel disconnected")

// Controller applies motor commands to the tracks. Run owns all mutable
// state; only the counters are safe to read from other goroutines.
type Controller struct {
	tracks *TracksDriver
	turret *TurretDriver
	logger log.Logger

	applied atomic.Uint64
	flushes atomic.Uint64
}

func NewController(tracks *TracksDriver, turret *TurretDriver, logger log.Logger) *Controller {
	return &Controller{
		tracks: tracks,
		turret: turret,
		logger: logger.WithField("component", "motors"),
	}
}

// Run consumes cmds until End or until the channel is closed. Commands are
// applied to the track state immediately and flushed to hardware after
// FlushBatch commands or whenever the channel is momentarily empty. Both exit
// paths zero the tracks first.
//
// Run locks its goroutine to an OS thread and never unlocks it, so the thread
// and its raised priority are discarded when Run's goroutine exits.
func (c *Controller) Run(cmds <-chan wire.MotorCommand) error {
	runtime.LockOSThread()
	raisePriority(c.logger)

	dirty := false
	pending := 0

	for {
		var cmd wire.MotorCommand
		var ok bool

		select {
		case cmd, ok = <-cmds:
		default:
			if dirty {
				if err := c.flush(); err != nil {
					return err
				}
				dirty = false
			}
			pending = 0
			cmd, ok = <-cmds
		}

		if !ok {
			c.logger.Infof("Motor command channel disconnected, stopping motors")
			if err := c.stop(); err != nil {
				return errors.Join(ErrChannelDisconnected, err)
			}
			return ErrChannelDisconnected
		}

		c.applied.Add(1)
		pending++

		switch cmd.Kind {
		case wire.MotorThrust:
			if err := c.tracks.State().SetThrust(cmd.Value); err != nil {
				c.logger.Warnf("Skipping %v: %v", cmd, err)
			} else {
				dirty = true
			}
		case wire.MotorSteer:
			if err := c.tracks.State().SetSteer(cmd.Value); err != nil {
				c.logger.Warnf("Skipping %v: %v", cmd, err)
			} else {
				dirty = true
			}
		case wire.MotorTurretAngle:
			c.turret.SetAngle(cmd.Value)
		case wire.MotorEnd:
			c.logger.Infof("Got End command, stopping motors")
			return c.stop()
		default:
			c.logger.Warnf("Skipping unknown motor command %v", cmd)
		}

		if pending >= FlushBatch {
			if dirty {
				if err := c.flush(); err != nil {
					return err
				}
				dirty = false
			}
			pending = 0
		}
	}
}

func (c *Controller) flush() error {
	c.flushes.Add(1)
	if err := c.tracks.Update(); err != nil {
		return fmt.Errorf("update tracks: %w", err)
	}
	return nil
}

func (c *Controller) stop() error {
	c.tracks.State().Zero()
	return c.flush()
}

// Close re-zeroes both tracks. Errors are logged, not returned.
func (c *Controller) Close() {
	if err := c.tracks.Stop(); err != nil {
		c.logger.Errorf("Failed to stop tracks on teardown: %v", err)
	}
}

// Applied counts commands taken from the channel.
func (c *Controller) Applied() uint64 { return c.applied.Load() }

// Flushes counts writes of the track state to hardware.
func (c *Controller) Flushes() uint64 { return c.flushes.Load() }
