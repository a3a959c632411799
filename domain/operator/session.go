package operator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/goliath-teleop/core/pkg/log"
	"github.com/goliath-teleop/core/pkg/pump"
	"github.com/goliath-teleop/core/pkg/wire"
)

// MaxDatagram is the largest controller datagram read.
const MaxDatagram = 1400

// stopTimeout bounds the best-effort zero commands sent on exit.
const stopTimeout = 100 * time.Millisecond

// Input is one controller datagram.
type Input struct {
	Thrust float32 `json:"thrust"`
	Steer  float32 `json:"steer"`
}

func (in Input) valid() bool {
	return inRange(in.Thrust) && inRange(in.Steer)
}

func inRange(v float32) bool {
	return !math.IsNaN(float64(v)) && v >= -1 && v <= 1
}

// Session forwards controller input from a packet socket to the vehicle.
type Session struct {
	pump   *ClientPump
	input  net.PacketConn
	logger log.Logger
}

// NewSession drives p from datagrams read on input. The session owns both.
func NewSession(p *ClientPump, input net.PacketConn, logger log.Logger) *Session {
	return &Session{pump: p, input: input, logger: logger.WithField("component", "operator_session")}
}

// ListenController binds the controller socket.
func ListenController(address string) (net.PacketConn, error) {
	conn, err := net.ListenPacket("udp", address)
	if err != nil {
		return nil, fmt.Errorf("listen for controller on %s: %w", address, err)
	}
	return conn, nil
}

// Run forwards input until ctx is done or the vehicle connection ends. On
// exit it sends zero thrust and steer best-effort and closes the pump.
func (s *Session) Run(ctx context.Context) error {
	s.logger.Infof("Starting session, reading controller input on %s", s.input.LocalAddr())

	inputs := make(chan Input, 1)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	go s.readInput(inputs, readErr, done)

	err := s.forward(ctx, inputs, readErr)
	close(done)

	s.stop()
	_ = s.input.Close()
	s.pump.Close()
	if perr := s.pump.Wait(context.Background()); err == nil {
		err = perr
	}
	s.logger.Infof("Session ended")
	return err
}

func (s *Session) forward(ctx context.Context, inputs <-chan Input, readErr <-chan error) error {
	reports := s.pump.Inbound()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return fmt.Errorf("read controller input: %w", err)
		case r, ok := <-reports:
			if !ok {
				return nil
			}
			s.logger.Infof("Received report: %s", r)
		case in := <-inputs:
			if !in.valid() {
				s.logger.Debugf("Dropping out-of-range input %+v", in)
				continue
			}
			s.logger.Debugf("Got input %+v", in)
			if err := s.send(ctx, wire.Thrust(in.Thrust)); err != nil {
				return err
			}
			if err := s.send(ctx, wire.Steer(in.Steer)); err != nil {
				return err
			}
		}
	}
}

func (s *Session) send(ctx context.Context, m wire.MotorCommand) error {
	err := s.pump.Enqueue(ctx, wire.NewMotorCommand(m))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pump.ErrStopped), errors.Is(err, context.Canceled):
		// Reported by the pump or ctx on the next iteration.
		return nil
	default:
		return fmt.Errorf("send %s: %w", m, err)
	}
}

// stop sends zero thrust and steer and waits for them to reach the
// transport, bounded by stopTimeout. The vehicle zeroes its tracks on
// disconnect regardless.
func (s *Session) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	for _, m := range []wire.MotorCommand{wire.Thrust(0), wire.Steer(0)} {
		if err := s.pump.Enqueue(ctx, wire.NewMotorCommand(m)); err != nil {
			s.logger.Debugf("Stop command %s not sent: %v", m, err)
			return
		}
	}
	if err := s.pump.Drain(ctx); err != nil {
		s.logger.Debugf("Stop commands not flushed: %v", err)
	}
}

// readInput decodes datagrams until the socket is closed. Undecodable
// datagrams are dropped.
func (s *Session) readInput(inputs chan<- Input, readErr chan<- error, done <-chan struct{}) {
	buf := make([]byte, MaxDatagram)
	for {
		n, _, err := s.input.ReadFrom(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				readErr <- err
			}
			return
		}
		var in Input
		if err := json.Unmarshal(buf[:n], &in); err != nil {
			s.logger.Debugf("Dropping controller datagram: %v", err)
			continue
		}
		select {
		case inputs <- in:
		case <-done:
			return
		}
	}
}
