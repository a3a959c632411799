package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goliath-teleop/core/domain/video"
	"github.com/goliath-teleop/core/pkg/config"
	"github.com/goliath-teleop/core/pkg/log"
	"github.com/goliath-teleop/core/pkg/pump"
)

// ErrBusy is returned by Serve while another session is active.
var ErrBusy = errors.New("session: vehicle is busy")

// ErrShutdown is returned by Serve after Shutdown.
var ErrShutdown = errors.New("session: server is shut down")

// VideoFactory builds the pipeline for a session with the operator at host.
type VideoFactory func(host string) video.Pipeline

// Server admits one session at a time over the shared hardware.
type Server struct {
	hw        Hardware
	video     VideoFactory
	opts      Options
	logger    log.Logger
	observers []Observer

	busy     atomic.Bool
	shutdown atomic.Bool

	mu     sync.Mutex
	active *Session
	wg     sync.WaitGroup
}

// OptionsFrom maps the session section of cfg.
func OptionsFrom(cfg config.VehicleConfig) Options {
	return Options{
		StatusInterval: time.Duration(cfg.Session.StatusIntervalMs) * time.Millisecond,
		CommandBuffer:  cfg.Motors.CommandBuffer,
	}
}

// NewServer returns a server driving hw. vf may be nil to disable video.
func NewServer(hw Hardware, vf VideoFactory, opts Options, logger log.Logger, observers ...Observer) *Server {
	return &Server{
		hw:        hw,
		video:     vf,
		opts:      opts,
		logger:    logger.WithField("component", "session"),
		observers: observers,
	}
}

// Busy reports whether a session is being served.
func (s *Server) Busy() bool { return s.busy.Load() }

// Active returns the session being served, or nil.
func (s *Server) Active() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Serve runs a session over transport and blocks until it terminates.
// Transport is closed in every case.
func (s *Server) Serve(transport pump.Transport, remoteHost string) error {
	if s.shutdown.Load() {
		_ = transport.Close()
		return ErrShutdown
	}
	if !s.busy.CompareAndSwap(false, true) {
		s.logger.Warnf("Rejecting connection from %s: session already active", remoteHost)
		_ = transport.Close()
		return ErrBusy
	}
	defer s.busy.Store(false)

	s.wg.Add(1)
	defer s.wg.Done()

	var vid video.Pipeline
	if s.video != nil {
		vid = s.video(remoteHost)
	}
	opts := s.opts
	opts.Remote = remoteHost

	sess, err := New(transport, s.hw, vid, opts, s.logger, s.observers...)
	if err != nil {
		_ = transport.Close()
		return err
	}

	s.mu.Lock()
	s.active = sess
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.active = nil
		s.mu.Unlock()
	}()

	// Shutdown may have raced the admission above.
	if s.shutdown.Load() {
		sess.Stop()
	}
	return sess.Run()
}

// Shutdown refuses new sessions, stops the active one and waits for it to
// terminate or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdown.Store(true)
	if sess := s.Active(); sess != nil {
		s.logger.Infof("Stopping active session %s", sess.ID())
		sess.Stop()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
