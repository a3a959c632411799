// Package session ties one operator connection to the vehicle: a pump over
// the connection, the motor controller, and the video pipeline. A Session
// moves Created -> Running -> Draining -> Terminated exactly once.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goliath-teleop/core/domain/teleop"
	"github.com/goliath-teleop/core/domain/video"
	"github.com/goliath-teleop/core/pkg/log"
	"github.com/goliath-teleop/core/pkg/motors"
	"github.com/goliath-teleop/core/pkg/pump"
	"github.com/goliath-teleop/core/pkg/wire"
	"github.com/google/uuid"
)

// State is a session lifecycle phase.
type State int32

const (
	Created State = iota
	Running
	Draining
	Terminated
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

var ErrAlreadyStarted = errors.New("session: already started")

// Transition is delivered to observers on every state change. Err is set
// only on Terminated, when the session ended on a fault.
type Transition struct {
	SessionID string
	Remote    string
	State     State
	At        time.Time
	Err       error
}

// Observer is called synchronously from the session goroutine.
type Observer func(Transition)

// Hardware is the actuator set a session drives. It outlives sessions.
type Hardware struct {
	Tracks *motors.TracksDriver
	Turret *motors.TurretDriver
}

// Options tunes a session.
type Options struct {
	// Remote is the operator's address, for logs and telemetry.
	Remote string
	// StatusInterval is the period of Status reports.
	StatusInterval time.Duration
	// CommandBuffer is the motor channel capacity.
	CommandBuffer int
}

var vehicleCodec = pump.Codec[wire.Report, wire.Command]{
	Encode: wire.EncodeReport,
	Decode: wire.DecodeCommand,
}

// Session serves one connection. It is not reusable.
type Session struct {
	id        string
	opts      Options
	logger    log.Logger
	observers []Observer

	state atomic.Int32

	pump  *pump.Pump[wire.Report, wire.Command]
	video video.Pipeline

	controller     *motors.Controller
	cmds           chan wire.MotorCommand
	controllerDone chan struct{}
	controllerErr  error
	router         *teleop.Router

	stopReq  chan struct{}
	stopOnce sync.Once
	started  time.Time
}

// New builds the pump and controller for transport without starting them.
func New(transport pump.Transport, hw Hardware, vid video.Pipeline, opts Options, logger log.Logger, observers ...Observer) (*Session, error) {
	if hw.Tracks == nil || hw.Turret == nil {
		return nil, errors.New("session: hardware is incomplete")
	}
	if vid == nil {
		vid = video.NopPipeline{}
	}
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = time.Second
	}
	if opts.CommandBuffer <= 0 {
		opts.CommandBuffer = motors.CommandBuffer
	}

	id := uuid.NewString()
	logger = logger.WithFields(map[string]interface{}{"session": id[:8], "remote": opts.Remote})

	p, err := pump.New(transport, vehicleCodec, logger)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	s := &Session{
		id:             id,
		opts:           opts,
		logger:         logger,
		observers:      observers,
		pump:           p,
		video:          vid,
		controller:     motors.NewController(hw.Tracks, hw.Turret, logger),
		cmds:           make(chan wire.MotorCommand, opts.CommandBuffer),
		controllerDone: make(chan struct{}),
		stopReq:        make(chan struct{}),
	}
	s.router = teleop.NewRouter(s.cmds, s.controllerDone, logger)
	s.state.Store(int32(Created))
	return s, nil
}

func (s *Session) ID() string     { return s.id }
func (s *Session) Remote() string { return s.opts.Remote }
func (s *Session) State() State   { return State(s.state.Load()) }

// Stop requests a local shutdown. Run drains and returns.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stopReq) })
}

// Run starts the session and blocks until it terminates. A peer close or a
// local Stop returns nil; transport, channel and hardware faults are
// returned after teardown.
func (s *Session) Run() error {
	if !s.state.CompareAndSwap(int32(Created), int32(Running)) {
		return ErrAlreadyStarted
	}
	s.started = time.Now()

	go func() {
		defer close(s.controllerDone)
		s.controllerErr = s.controller.Run(s.cmds)
	}()
	s.pump.Start()
	if err := s.video.Start(nil); err != nil {
		s.logger.Warnf("Video pipeline failed to start: %v", err)
	}
	s.logger.Infof("Session running")
	s.notify(Running, nil)

	s.serve()

	s.state.Store(int32(Draining))
	s.notify(Draining, nil)
	s.drain()

	err := s.terminate()
	s.state.Store(int32(Terminated))
	s.notify(Terminated, err)
	if err != nil {
		s.logger.Warnf("Session terminated: %v", err)
	} else {
		s.logger.Infof("Session terminated")
	}
	return err
}

// serve routes inbound commands and emits status reports until the pump
// stops, the controller exits or Stop is called.
func (s *Session) serve() {
	ticker := time.NewTicker(s.opts.StatusInterval)
	defer ticker.Stop()

	inbound := s.pump.Inbound()
	for {
		select {
		case cmd, ok := <-inbound:
			if !ok {
				return
			}
			if err := s.router.Route(cmd); err != nil {
				if errors.Is(err, teleop.ErrControllerGone) {
					return
				}
				s.logger.Warnf("Dropping command: %v", err)
			}
		case <-ticker.C:
			s.sendStatus()
		case <-s.controllerDone:
			return
		case <-s.stopReq:
			s.logger.Infof("Local shutdown requested")
			return
		}
	}
}

func (s *Session) sendStatus() {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.StatusInterval)
	defer cancel()
	report := wire.NewStatusReport(s.Status())
	if err := s.pump.Enqueue(ctx, report); err != nil && !errors.Is(err, pump.ErrStopped) {
		s.logger.Warnf("Status report not sent: %v", err)
	}
}

// Status returns the current heartbeat values.
func (s *Session) Status() wire.StatusReport {
	return wire.StatusReport{
		UptimeMs:       uint64(time.Since(s.started).Milliseconds()),
		CommandsRouted: s.router.Routed(),
	}
}

// drain zeroes and ends the controller, stops video and cancels the pump.
func (s *Session) drain() {
	for _, cmd := range []wire.MotorCommand{wire.Thrust(0), wire.Steer(0), wire.End()} {
		if err := s.router.SendMotor(cmd); err != nil {
			s.logger.Debugf("Controller already stopped, skipping %s", cmd)
			break
		}
	}
	if err := s.video.Stop(); err != nil {
		s.logger.Warnf("Video pipeline failed to stop: %v", err)
	}
	s.pump.Close()
}

// terminate joins the controller and the pump loops, then re-zeroes the
// tracks whatever the reason for ending.
func (s *Session) terminate() error {
	<-s.controllerDone
	s.controller.Close()
	pumpErr := s.pump.Wait(context.Background())
	return errors.Join(pumpErr, s.controllerErr)
}

func (s *Session) notify(state State, err error) {
	t := Transition{
		SessionID: s.id,
		Remote:    s.opts.Remote,
		State:     state,
		At:        time.Now(),
		Err:       err,
	}
	for _, o := range s.observers {
		o(t)
	}
}
