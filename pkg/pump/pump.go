// Package pump runs the send and receive loops of one duplex message
// connection. Both loops poll a shared kill flag every PollInterval; the first
// of {send loop exit, receive loop exit, Close} sets it and tears down the
// transport, after which the pump waits for every goroutine before reporting
// itself done.
package pump

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goliath-teleop/core/pkg/log"
)

const (
	// PollInterval bounds how long either loop waits before re-checking the
	// kill flag.
	PollInterval = 10 * time.Millisecond
	// OutboundCapacity is the send queue size; Enqueue blocks when it is full.
	OutboundCapacity = 10
	// InboundCapacity is the receive queue size; overflowing it is fatal.
	InboundCapacity = 10
)

var (
	ErrConnection      = errors.New("pump: no connection")
	ErrStopped         = errors.New("pump: stopped")
	ErrDisconnected    = errors.New("pump: disconnected")
	ErrTransport       = errors.New("pump: transport error")
	ErrConsumerStalled = errors.New("pump: inbound queue full, consumer stalled")
)

// Codec converts between queue values and transport payloads.
type Codec[Out, In any] struct {
	Encode func(Out) ([]byte, error)
	Decode func([]byte) (In, error)
}

type received struct {
	msg Message
	err error
}

// Pump moves Out values to the transport and decoded In values from it.
type Pump[Out, In any] struct {
	transport Transport
	codec     Codec[Out, In]
	logger    log.Logger

	outbound chan Out
	inbound  chan In
	pending  atomic.Int64

	kill     atomic.Bool
	killed   chan struct{}
	stopReq  chan struct{}
	stopOnce sync.Once
	started  atomic.Bool

	wg   sync.WaitGroup
	done chan struct{}
	err  error
}

// New builds a pump over transport. The loops do not run until Start.
func New[Out, In any](transport Transport, codec Codec[Out, In], logger log.Logger) (*Pump[Out, In], error) {
	if transport == nil {
		return nil, ErrConnection
	}
	if codec.Encode == nil || codec.Decode == nil {
		return nil, fmt.Errorf("%w: codec is incomplete", ErrConnection)
	}
	return &Pump[Out, In]{
		transport: transport,
		codec:     codec,
		logger:    logger.WithField("component", "pump"),
		outbound:  make(chan Out, OutboundCapacity),
		inbound:   make(chan In, InboundCapacity),
		killed:    make(chan struct{}),
		stopReq:   make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// Start launches the loops. Calls after the first, or after Close, are no-ops.
func (p *Pump[Out, In]) Start() {
	if !p.started.CompareAndSwap(false, true) {
		return
	}

	frames := make(chan received, 1)
	sendDone := make(chan error, 1)
	recvDone := make(chan error, 1)

	p.wg.Add(3)
	go p.readTransport(frames)
	go func() {
		defer p.wg.Done()
		sendDone <- p.sendLoop()
	}()
	go func() {
		defer p.wg.Done()
		recvDone <- p.receiveLoop(frames)
	}()
	go p.supervise(sendDone, recvDone)
}

// Enqueue queues v for sending, blocking while the queue is full. It fails
// with ErrStopped once the pump has stopped.
func (p *Pump[Out, In]) Enqueue(ctx context.Context, v Out) error {
	if p.kill.Load() {
		return ErrStopped
	}
	p.pending.Add(1)
	select {
	case p.outbound <- v:
		return nil
	case <-p.killed:
		p.pending.Add(-1)
		return ErrStopped
	case <-ctx.Done():
		p.pending.Add(-1)
		return ctx.Err()
	}
}

// Drain blocks until every enqueued value has been handed to the transport.
// It returns ErrStopped if the pump stops first.
func (p *Pump[Out, In]) Drain(ctx context.Context) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for p.pending.Load() > 0 {
		select {
		case <-p.killed:
			return ErrStopped
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// TryPoll returns the next received value without blocking. ok is false when
// nothing is queued; ErrDisconnected means the pump stopped and the queue is
// drained.
func (p *Pump[Out, In]) TryPoll() (v In, ok bool, err error) {
	select {
	case v, open := <-p.inbound:
		if !open {
			return v, false, ErrDisconnected
		}
		return v, true, nil
	default:
		return v, false, nil
	}
}

// Inbound exposes the receive queue for select-based consumers. It is closed
// when the receive loop exits.
func (p *Pump[Out, In]) Inbound() <-chan In {
	return p.inbound
}

// Close requests cancellation without waiting for it. Use Wait or Done to
// observe completion.
func (p *Pump[Out, In]) Close() {
	p.stopOnce.Do(func() { close(p.stopReq) })

	// Never started: nothing to supervise, finish inline.
	if p.started.CompareAndSwap(false, true) {
		p.kill.Store(true)
		close(p.killed)
		if err := p.transport.Close(); err != nil {
			p.logger.Debugf("Transport close: %v", err)
		}
		close(p.inbound)
		close(p.done)
	}
}

// Done is closed once both loops have exited.
func (p *Pump[Out, In]) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the pump is done or ctx expires, returning the pump's
// terminal error in the first case.
func (p *Pump[Out, In]) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the terminal error after Done is closed. A peer close or a
// local Close yields nil.
func (p *Pump[Out, In]) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

func (p *Pump[Out, In]) supervise(sendDone, recvDone <-chan error) {
	var first error
	sendExited, recvExited := false, false

	select {
	case first = <-sendDone:
		sendExited = true
		p.logger.Debugf("Send loop exited first: %v", first)
	case first = <-recvDone:
		recvExited = true
		p.logger.Debugf("Receive loop exited first: %v", first)
	case <-p.stopReq:
		p.logger.Debugf("Cancellation requested")
	}

	p.kill.Store(true)
	close(p.killed)
	if err := p.transport.Close(); err != nil {
		p.logger.Debugf("Transport close: %v", err)
	}

	if !sendExited {
		if err := <-sendDone; first == nil {
			first = err
		}
	}
	if !recvExited {
		if err := <-recvDone; first == nil {
			first = err
		}
	}
	p.wg.Wait()

	p.err = first
	close(p.done)
}

// readTransport turns the blocking Receive into channel sends so the receive
// loop can keep polling the kill flag.
func (p *Pump[Out, In]) readTransport(frames chan<- received) {
	defer p.wg.Done()
	for {
		msg, err := p.transport.Receive()
		select {
		case frames <- received{msg: msg, err: err}:
		case <-p.killed:
			return
		}
		if err != nil || msg.Kind == KindClose {
			return
		}
	}
}

func (p *Pump[Out, In]) sendLoop() error {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		if p.kill.Load() {
			return nil
		}
		select {
		case v := <-p.outbound:
			data, err := p.codec.Encode(v)
			if err != nil {
				return fmt.Errorf("encode outbound message: %w", err)
			}
			err = p.transport.Send(data)
			p.pending.Add(-1)
			if err != nil {
				if p.kill.Load() {
					return nil
				}
				return fmt.Errorf("%w: send: %v", ErrTransport, err)
			}
		case <-ticker.C:
		}
	}
}

func (p *Pump[Out, In]) receiveLoop(frames <-chan received) error {
	defer close(p.inbound)

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		if p.kill.Load() {
			return nil
		}
		select {
		case r := <-frames:
			if r.err != nil {
				if p.kill.Load() {
					return nil
				}
				return fmt.Errorf("%w: receive: %v", ErrTransport, r.err)
			}
			switch r.msg.Kind {
			case KindPing, KindPong:
			case KindClose:
				if r.msg.Reason != "" {
					p.logger.Infof("Peer closed connection: %s", r.msg.Reason)
				} else {
					p.logger.Infof("Peer closed connection")
				}
				return nil
			case KindText:
				p.logger.Warnf("Dropping unexpected text message (%d bytes)", len(r.msg.Data))
			case KindBinary:
				v, err := p.codec.Decode(r.msg.Data)
				if err != nil {
					p.logger.Warnf("Dropping malformed frame: %v", err)
					continue
				}
				select {
				case p.inbound <- v:
				default:
					return ErrConsumerStalled
				}
			}
		case <-ticker.C:
		}
	}
}
