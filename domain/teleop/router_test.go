package teleop

import (
	"errors"
	"testing"

	"github.com/goliath-teleop/core/pkg/log"
	"github.com/goliath-teleop/core/pkg/wire"
)

func TestRouteMotorCommands(t *testing.T) {
	motors := make(chan wire.MotorCommand, 4)
	done := make(chan struct{})
	r := NewRouter(motors, done, log.Discard())

	for _, c := range []wire.MotorCommand{wire.Thrust(0.5), wire.TurretAngle(10)} {
		if err := r.Route(wire.NewMotorCommand(c)); err != nil {
			t.Fatalf("Route(%s) failed: %v", c, err)
		}
	}
	if r.Routed() != 2 {
		t.Errorf("Routed() = %d, want 2", r.Routed())
	}
	if got := <-motors; got != wire.Thrust(0.5) {
		t.Errorf("first command = %s", got)
	}

	if err := r.Route(wire.Command{Class: wire.CommandClass(99)}); err == nil {
		t.Errorf("unknown class was routed")
	}
	if r.Routed() != 2 {
		t.Errorf("failed route was counted")
	}
}

func TestRouteAfterControllerExit(t *testing.T) {
	motors := make(chan wire.MotorCommand)
	done := make(chan struct{})
	r := NewRouter(motors, done, log.Discard())

	errc := make(chan error, 1)
	go func() { errc <- r.SendMotor(wire.Steer(1)) }()
	close(done)

	if err := <-errc; !errors.Is(err, ErrControllerGone) {
		t.Errorf("blocked send error = %v, want ErrControllerGone", err)
	}
	if err := r.SendMotor(wire.End()); !errors.Is(err, ErrControllerGone) {
		t.Errorf("send after exit error = %v, want ErrControllerGone", err)
	}
}
