package pump

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliath-teleop/core/pkg/log"
	"github.com/goliath-teleop/core/pkg/wire"
)

var errFakeClosed = errors.New("fake transport closed")

// fakeTransport delivers queued messages and records sent payloads.
type fakeTransport struct {
	incoming chan Message
	sent     chan []byte
	closed   chan struct{}
	once     sync.Once

	mu      sync.Mutex
	sendErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		incoming: make(chan Message, 64),
		sent:     make(chan []byte, 64),
		closed:   make(chan struct{}),
	}
}

func (f *fakeTransport) Receive() (Message, error) {
	select {
	case m := <-f.incoming:
		return m, nil
	case <-f.closed:
		return Message{}, errFakeClosed
	}
}

func (f *fakeTransport) Send(data []byte) error {
	f.mu.Lock()
	err := f.sendErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	select {
	case <-f.closed:
		return errFakeClosed
	case f.sent <- data:
		return nil
	}
}

func (f *fakeTransport) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeTransport) failSends(err error) {
	f.mu.Lock()
	f.sendErr = err
	f.mu.Unlock()
}

var operatorCodec = Codec[wire.Command, wire.Report]{
	Encode: wire.EncodeCommand,
	Decode: wire.DecodeReport,
}

func newOperatorPump(t *testing.T, tr Transport) *Pump[wire.Command, wire.Report] {
	t.Helper()
	p, err := New(tr, operatorCodec, log.Discard())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return p
}

func reportFrame(t *testing.T, uptime uint64) Message {
	t.Helper()
	data, err := wire.EncodeReport(wire.NewStatusReport(wire.StatusReport{UptimeMs: uptime}))
	if err != nil {
		t.Fatalf("EncodeReport failed: %v", err)
	}
	return Message{Kind: KindBinary, Data: data}
}

func waitDone(t *testing.T, p *Pump[wire.Command, wire.Report]) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := p.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("pump did not stop in time")
	}
	return err
}

func pollReport(t *testing.T, p *Pump[wire.Command, wire.Report]) wire.Report {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r, ok, err := p.TryPoll()
		if err != nil {
			t.Fatalf("TryPoll failed: %v", err)
		}
		if ok {
			return r
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("no report received")
	return wire.Report{}
}

func TestNewRejectsNilTransport(t *testing.T) {
	if _, err := New[wire.Command, wire.Report](nil, operatorCodec, log.Discard()); !errors.Is(err, ErrConnection) {
		t.Errorf("New(nil) error = %v, want ErrConnection", err)
	}
}

func TestSendLoopWritesEncodedCommands(t *testing.T) {
	tr := newFakeTransport()
	p := newOperatorPump(t, tr)
	p.Start()
	defer p.Close()

	cmds := []wire.Command{
		wire.NewMotorCommand(wire.Thrust(0.5)),
		wire.NewMotorCommand(wire.Steer(-0.25)),
	}
	for _, c := range cmds {
		if err := p.Enqueue(context.Background(), c); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	for i, want := range cmds {
		select {
		case data := <-tr.sent:
			got, err := wire.DecodeCommand(data)
			if err != nil {
				t.Fatalf("frame %d does not decode: %v", i, err)
			}
			if got != want {
				t.Errorf("frame %d = %v, want %v", i, got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("frame %d not sent", i)
		}
	}
}

func TestReceiveLoopClassification(t *testing.T) {
	tr := newFakeTransport()
	p := newOperatorPump(t, tr)

	tr.incoming <- Message{Kind: KindPing}
	tr.incoming <- Message{Kind: KindText, Data: []byte("hello")}
	tr.incoming <- Message{Kind: KindBinary, Data: []byte{0xff, 0x00}}
	tr.incoming <- Message{Kind: KindPong}
	tr.incoming <- reportFrame(t, 42)

	p.Start()
	defer p.Close()

	r := pollReport(t, p)
	if r.Status.UptimeMs != 42 {
		t.Errorf("Expected uptime 42, got %d", r.Status.UptimeMs)
	}
	select {
	case <-p.Done():
		t.Fatalf("pump stopped on a malformed frame: %v", p.Err())
	default:
	}
}

func TestPeerCloseStopsCleanly(t *testing.T) {
	tr := newFakeTransport()
	p := newOperatorPump(t, tr)

	tr.incoming <- reportFrame(t, 7)
	tr.incoming <- Message{Kind: KindClose, Reason: "operator quit"}
	p.Start()

	if err := waitDone(t, p); err != nil {
		t.Errorf("Expected clean stop, got %v", err)
	}
	if !tr.isClosed() {
		t.Errorf("Expected transport to be closed")
	}

	// Queued reports remain readable, then the queue reports disconnect.
	r, ok, err := p.TryPoll()
	if err != nil || !ok || r.Status.UptimeMs != 7 {
		t.Errorf("TryPoll = %v %v %v, want queued report", r, ok, err)
	}
	if _, _, err := p.TryPoll(); !errors.Is(err, ErrDisconnected) {
		t.Errorf("TryPoll after drain error = %v, want ErrDisconnected", err)
	}
	if err := p.Enqueue(context.Background(), wire.NewMotorCommand(wire.Thrust(0))); !errors.Is(err, ErrStopped) {
		t.Errorf("Enqueue after stop error = %v, want ErrStopped", err)
	}
}

func TestCloseCancelsBothLoops(t *testing.T) {
	tr := newFakeTransport()
	p := newOperatorPump(t, tr)
	p.Start()

	// Let both loops settle into their idle poll.
	time.Sleep(3 * PollInterval)

	start := time.Now()
	p.Close()
	if err := waitDone(t, p); err != nil {
		t.Errorf("Expected nil error on local cancel, got %v", err)
	}
	// Observed within a poll interval, plus scheduling slack.
	if elapsed := time.Since(start); elapsed > 20*PollInterval {
		t.Errorf("cancellation took %v", elapsed)
	}
	if !tr.isClosed() {
		t.Errorf("Expected transport to be closed")
	}

	// Close is idempotent.
	p.Close()
}

func TestCloseBeforeStart(t *testing.T) {
	tr := newFakeTransport()
	p := newOperatorPump(t, tr)

	p.Close()
	p.Start()

	if err := waitDone(t, p); err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
	if _, _, err := p.TryPoll(); !errors.Is(err, ErrDisconnected) {
		t.Errorf("TryPoll error = %v, want ErrDisconnected", err)
	}
}

func TestStalledConsumerIsFatal(t *testing.T) {
	tr := newFakeTransport()
	p := newOperatorPump(t, tr)

	for i := 0; i <= InboundCapacity; i++ {
		tr.incoming <- reportFrame(t, uint64(i))
	}
	p.Start()

	if err := waitDone(t, p); !errors.Is(err, ErrConsumerStalled) {
		t.Errorf("Expected ErrConsumerStalled, got %v", err)
	}
}

func TestSendFailureCascades(t *testing.T) {
	tr := newFakeTransport()
	tr.failSends(errors.New("broken pipe"))
	p := newOperatorPump(t, tr)
	p.Start()

	if err := p.Enqueue(context.Background(), wire.NewMotorCommand(wire.Thrust(1))); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := waitDone(t, p); !errors.Is(err, ErrTransport) {
		t.Errorf("Expected ErrTransport, got %v", err)
	}
	if _, _, err := p.TryPoll(); !errors.Is(err, ErrDisconnected) {
		t.Errorf("Expected receive side to be disconnected, got %v", err)
	}
}

func TestEnqueueBackpressure(t *testing.T) {
	tr := newFakeTransport()
	p := newOperatorPump(t, tr)

	// Not started: nothing drains the queue.
	for i := 0; i < OutboundCapacity; i++ {
		if err := p.Enqueue(context.Background(), wire.NewMotorCommand(wire.Steer(0))); err != nil {
			t.Fatalf("Enqueue %d failed: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*PollInterval)
	defer cancel()
	if err := p.Enqueue(ctx, wire.NewMotorCommand(wire.Steer(0))); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Enqueue on full queue error = %v, want DeadlineExceeded", err)
	}

	// A blocked producer is released with ErrStopped when the pump stops.
	errc := make(chan error, 1)
	go func() {
		errc <- p.Enqueue(context.Background(), wire.NewMotorCommand(wire.Steer(0)))
	}()
	time.Sleep(2 * PollInterval)
	p.Close()

	select {
	case err := <-errc:
		if !errors.Is(err, ErrStopped) {
			t.Errorf("blocked Enqueue error = %v, want ErrStopped", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("blocked Enqueue was not released")
	}
}

func TestDrainWaitsForTransport(t *testing.T) {
	tr := newFakeTransport()
	p := newOperatorPump(t, tr)

	for _, m := range []wire.MotorCommand{wire.Thrust(0), wire.Steer(0)} {
		if err := p.Enqueue(context.Background(), wire.NewMotorCommand(m)); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	// Not started: nothing reaches the transport.
	ctx, cancel := context.WithTimeout(context.Background(), 3*PollInterval)
	defer cancel()
	if err := p.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Drain before Start error = %v, want DeadlineExceeded", err)
	}

	p.Start()
	ctx2, cancel2 := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel2()
	if err := p.Drain(ctx2); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if n := len(tr.sent); n != 2 {
		t.Errorf("Expected 2 frames sent before Close, got %d", n)
	}

	p.Close()
	if err := p.Drain(context.Background()); err != nil {
		t.Errorf("Drain with nothing pending error = %v, want nil", err)
	}
}
