package zeromq

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliath-teleop/core/pkg/config"
	"github.com/goliath-teleop/core/pkg/flatbuffers/goliath/telemetry"
	"github.com/goliath-teleop/core/pkg/log"
	"github.com/pebbe/zmq4"
)

type published struct {
	topic string
	data  []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (f *fakePublisher) PublishMessage(topic string, message []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{topic, message})
	return nil
}

func (f *fakePublisher) PublishJSON(topic string, messageType string, data interface{}) error {
	b, err := json.Marshal(newEnvelope(messageType, data))
	if err != nil {
		return err
	}
	return f.PublishMessage(topic, b)
}

func TestEventEncoding(t *testing.T) {
	ts := time.Unix(1700000000, 123456789)
	in := Event{
		SessionID: "7c1d",
		Kind:      telemetry.EventKindFault,
		Time:      ts,
		Detail:    "pwm chip gone",
		Payload:   []byte{1, 2, 3},
	}
	out, err := DecodeEvent(EncodeEvent(in))
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	if out.SessionID != in.SessionID || out.Kind != in.Kind || out.Detail != in.Detail {
		t.Errorf("decoded %+v, want %+v", out, in)
	}
	if !out.Time.Equal(ts) {
		t.Errorf("time = %v, want %v", out.Time, ts)
	}
	if !bytes.Equal(out.Payload, in.Payload) {
		t.Errorf("payload = %v, want %v", out.Payload, in.Payload)
	}

	if _, err := DecodeEvent([]byte{0x01}); !errors.Is(err, ErrMalformedEvent) {
		t.Errorf("short buffer error = %v, want ErrMalformedEvent", err)
	}
	if _, err := DecodeEvent([]byte{0xff, 0xff, 0xff, 0x7f}); !errors.Is(err, ErrMalformedEvent) {
		t.Errorf("garbage buffer error = %v, want ErrMalformedEvent", err)
	}
}

func TestEventPublisherTopics(t *testing.T) {
	fake := &fakePublisher{}
	p := NewEventPublisher(fake, log.Discard())

	if err := p.Publish(Event{Kind: telemetry.EventKindSessionState, Detail: "running"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(fake.msgs) != 1 || fake.msgs[0].topic != "telemetry.sessionstate" {
		t.Fatalf("published %+v", fake.msgs)
	}
	ev, err := DecodeEvent(fake.msgs[0].data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	if ev.Time.IsZero() || ev.Detail != "running" {
		t.Errorf("event = %+v, want stamped running event", ev)
	}
}

func TestDispatcher(t *testing.T) {
	d := NewMessageDispatcher(log.Discard())
	defaults := config.DefaultVehicleConfig()
	cfg := &defaults
	d.RegisterHandler(MsgTypeConfigRequest, NewConfigHandler(func() *config.VehicleConfig { return cfg }, log.Discard()))
	d.RegisterHandler(MsgTypeStatusRequest, NewStatusHandler(func() interface{} {
		return map[string]int{"sessions": 2}
	}, log.Discard()))

	tests := []struct {
		name     string
		request  string
		wantType string
		wantErr  error
	}{
		{"config", `{"type":"CONFIG_REQUEST","timestamp":1}`, MsgTypeConfigResponse, nil},
		{"status", `{"type":"STATUS_REQUEST","timestamp":1}`, MsgTypeStatusResponse, nil},
		{"unknown", `{"type":"REBOOT","timestamp":1}`, "", ErrUnknownMessageType},
		{"not json", `\x01\x02`, "", ErrInvalidMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := d.Dispatch([]byte(tt.request))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Dispatch error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Dispatch failed: %v", err)
			}
			var msg ZeroMQMessage
			if err := json.Unmarshal(resp, &msg); err != nil {
				t.Fatalf("response is not JSON: %v", err)
			}
			if msg.Type != tt.wantType {
				t.Errorf("response type = %s, want %s", msg.Type, tt.wantType)
			}
		})
	}
}

func TestConfigPublisher(t *testing.T) {
	fake := &fakePublisher{}
	p := NewConfigPublisher(fake, log.Discard())
	defaults := config.DefaultVehicleConfig()
	cfg := &defaults

	if err := p.PublishConfigUpdate(cfg); err != nil {
		t.Fatalf("PublishConfigUpdate failed: %v", err)
	}
	if err := p.PublishConfigUpdatedNotification(cfg); err != nil {
		t.Fatalf("PublishConfigUpdatedNotification failed: %v", err)
	}
	if len(fake.msgs) != 2 || fake.msgs[0].topic != ConfigUpdateTopic || fake.msgs[1].topic != ConfigNotificationTopic {
		t.Fatalf("published %+v", fake.msgs)
	}
	var msg struct {
		Type string               `json:"type"`
		Data config.VehicleConfig `json:"data"`
	}
	if err := json.Unmarshal(fake.msgs[0].data, &msg); err != nil {
		t.Fatalf("update is not JSON: %v", err)
	}
	if msg.Type != MsgTypeConfigResponse || msg.Data.VehicleID != cfg.VehicleID {
		t.Errorf("update = %+v", msg)
	}
}

// TestRequestClient drives the REP socket with a REQ client over loopback.
func TestRequestClient(t *testing.T) {
	svc, err := NewZeroMQService(config.ZeroMQConfig{RequestBindAddress: "tcp://127.0.0.1:*"}, log.Discard())
	if err != nil {
		t.Fatalf("NewZeroMQService failed: %v", err)
	}
	defer svc.Stop()

	defaults := config.DefaultVehicleConfig()
	cfg := &defaults
	RegisterVehicleHandlers(svc, func() *config.VehicleConfig { return cfg }, func() interface{} { return "ok" }, log.Discard())
	if err := svc.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctx, err := zmq4.NewContext()
	if err != nil {
		t.Fatalf("Failed to create ZMQ context: %v", err)
	}
	defer ctx.Term()
	socket, err := ctx.NewSocket(zmq4.REQ)
	if err != nil {
		t.Fatalf("Failed to create REQ socket: %v", err)
	}
	defer socket.Close()
	_ = socket.SetLinger(0)
	_ = socket.SetRcvtimeo(5 * time.Second)
	if err := socket.Connect(svc.RequestEndpoint()); err != nil {
		t.Fatalf("Failed to connect to %s: %v", svc.RequestEndpoint(), err)
	}

	for _, req := range []struct{ in, want string }{
		{MsgTypeConfigRequest, MsgTypeConfigResponse},
		{"UNKNOWN", MsgTypeError},
	} {
		reqData, _ := json.Marshal(ZeroMQMessage{Type: req.in, Timestamp: 1})
		if _, err := socket.SendBytes(reqData, 0); err != nil {
			t.Fatalf("Failed to send request: %v", err)
		}
		respData, err := socket.RecvBytes(0)
		if err != nil {
			t.Fatalf("Failed to receive response: %v", err)
		}
		var resp ZeroMQMessage
		if err := json.Unmarshal(respData, &resp); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if resp.Type != req.want {
			t.Errorf("%s: response type = %s, want %s", req.in, resp.Type, req.want)
		}
	}
}
