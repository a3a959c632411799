package operator

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goliath-teleop/core/pkg/config"
	"github.com/goliath-teleop/core/pkg/log"
	"github.com/goliath-teleop/core/pkg/pump"
	"github.com/goliath-teleop/core/pkg/wire"
	"github.com/gorilla/websocket"
)

// fakeVehicle accepts one websocket and forwards every decoded command.
type fakeVehicle struct {
	server   *httptest.Server
	commands chan wire.Command
	conns    chan *websocket.Conn
}

func newFakeVehicle(t *testing.T) *fakeVehicle {
	t.Helper()
	v := &fakeVehicle{
		commands: make(chan wire.Command, 64),
		conns:    make(chan *websocket.Conn, 1),
	}
	upgrader := websocket.Upgrader{}
	v.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		v.conns <- conn
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			cmd, err := wire.DecodeCommand(data)
			if err != nil {
				continue
			}
			v.commands <- cmd
		}
	}))
	t.Cleanup(v.server.Close)
	return v
}

func (v *fakeVehicle) url() string {
	return "ws" + strings.TrimPrefix(v.server.URL, "http") + "/ws/control"
}

func (v *fakeVehicle) next(t *testing.T) wire.Command {
	t.Helper()
	select {
	case c := <-v.commands:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("no command received")
		return wire.Command{}
	}
}

func newClient(url string) *Client {
	return NewClient(&config.OperatorConfig{VehicleURL: url, HandshakeTimeoutMs: 1000}, log.Discard())
}

func TestConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	_, err = newClient("ws://" + addr + "/ws/control").Connect(context.Background())
	if !errors.Is(err, pump.ErrConnection) {
		t.Errorf("Connect error = %v, want ErrConnection", err)
	}
}

func TestSessionForwardsControllerInput(t *testing.T) {
	vehicle := newFakeVehicle(t)
	p, err := newClient(vehicle.url()).Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	input, err := ListenController("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenController failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- NewSession(p, input, log.Discard()).Run(ctx) }()

	sender, err := net.Dial("udp", input.LocalAddr().String())
	if err != nil {
		t.Fatalf("dial controller socket failed: %v", err)
	}
	defer sender.Close()

	if _, err := sender.Write([]byte("not json")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := sender.Write([]byte(`{"thrust":0.5,"steer":-0.25}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if got, want := vehicle.next(t), wire.NewMotorCommand(wire.Thrust(0.5)); got != want {
		t.Errorf("first command = %v, want %v", got, want)
	}
	if got, want := vehicle.next(t), wire.NewMotorCommand(wire.Steer(-0.25)); got != want {
		t.Errorf("second command = %v, want %v", got, want)
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run returned %v, want nil on cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not stop")
	}

	// Zero thrust and steer are flushed before the connection closes.
	if got, want := vehicle.next(t), wire.NewMotorCommand(wire.Thrust(0)); got != want {
		t.Errorf("first stop command = %v, want %v", got, want)
	}
	if got, want := vehicle.next(t), wire.NewMotorCommand(wire.Steer(0)); got != want {
		t.Errorf("second stop command = %v, want %v", got, want)
	}
}

func TestSessionDropsOutOfRangeInput(t *testing.T) {
	vehicle := newFakeVehicle(t)
	p, err := newClient(vehicle.url()).Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	input, err := ListenController("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenController failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- NewSession(p, input, log.Discard()).Run(ctx) }()

	sender, err := net.Dial("udp", input.LocalAddr().String())
	if err != nil {
		t.Fatalf("dial controller socket failed: %v", err)
	}
	defer sender.Close()

	for _, d := range []string{`{"thrust":1.5,"steer":0}`, `{"thrust":0,"steer":-1.0000001}`, `{"thrust":0.75,"steer":0.5}`} {
		if _, err := sender.Write([]byte(d)); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	if got, want := vehicle.next(t), wire.NewMotorCommand(wire.Thrust(0.75)); got != want {
		t.Errorf("first command = %v, want %v", got, want)
	}
	if got, want := vehicle.next(t), wire.NewMotorCommand(wire.Steer(0.5)); got != want {
		t.Errorf("second command = %v, want %v", got, want)
	}
	select {
	case err := <-errc:
		t.Fatalf("Run returned %v after out-of-range input", err)
	default:
	}
}

func TestInputValid(t *testing.T) {
	tests := []struct {
		in   Input
		want bool
	}{
		{Input{Thrust: 1, Steer: -1}, true},
		{Input{Thrust: 0, Steer: 0}, true},
		{Input{Thrust: 1.5}, false},
		{Input{Steer: -1.01}, false},
		{Input{Thrust: float32(math.NaN())}, false},
	}
	for _, tt := range tests {
		if got := tt.in.valid(); got != tt.want {
			t.Errorf("%+v.valid() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSessionEndsWhenVehicleCloses(t *testing.T) {
	vehicle := newFakeVehicle(t)
	p, err := newClient(vehicle.url()).Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	input, err := ListenController("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenController failed: %v", err)
	}

	errc := make(chan error, 1)
	go func() { errc <- NewSession(p, input, log.Discard()).Run(context.Background()) }()

	var conn *websocket.Conn
	select {
	case conn = <-vehicle.conns:
	case <-time.After(2 * time.Second):
		t.Fatalf("vehicle never accepted")
	}

	report, err := wire.EncodeReport(wire.NewStatusReport(wire.StatusReport{UptimeMs: 1000}))
	if err != nil {
		t.Fatalf("EncodeReport failed: %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, report); err != nil {
		t.Fatalf("write report failed: %v", err)
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "vehicle shutting down")
	if err := conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
		t.Fatalf("write close failed: %v", err)
	}

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run returned %v, want nil on peer close", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not end after vehicle close")
	}
}
