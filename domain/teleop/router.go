// Package teleop routes decoded operator commands to the subsystem that
// executes them.
package teleop

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/goliath-teleop/core/pkg/log"
	"github.com/goliath-teleop/core/pkg/wire"
)

// ErrControllerGone is returned once the motor controller has exited.
var ErrControllerGone = errors.New("teleop: motor controller has exited")

// Router forwards commands by class. Motor commands go to the controller's
// bounded channel; Route blocks while it is full.
type Router struct {
	motors         chan<- wire.MotorCommand
	controllerDone <-chan struct{}
	logger         log.Logger

	routed atomic.Uint64
}

// NewRouter sends motor commands on motors until controllerDone is closed.
func NewRouter(motors chan<- wire.MotorCommand, controllerDone <-chan struct{}, logger log.Logger) *Router {
	return &Router{
		motors:         motors,
		controllerDone: controllerDone,
		logger:         logger,
	}
}

// Route delivers one command.
func (r *Router) Route(cmd wire.Command) error {
	switch cmd.Class {
	case wire.ClassMotor:
		if err := r.SendMotor(cmd.Motor); err != nil {
			return err
		}
	default:
		return fmt.Errorf("teleop: unroutable command %s", cmd)
	}
	r.routed.Add(1)
	return nil
}

// SendMotor hands one command to the controller.
func (r *Router) SendMotor(cmd wire.MotorCommand) error {
	select {
	case <-r.controllerDone:
		return ErrControllerGone
	default:
	}
	select {
	case r.motors <- cmd:
		r.logger.Debugf("Routed %s", cmd)
		return nil
	case <-r.controllerDone:
		return ErrControllerGone
	}
}

// Routed counts commands delivered through Route.
func (r *Router) Routed() uint64 { return r.routed.Load() }
