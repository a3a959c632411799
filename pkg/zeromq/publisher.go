package zeromq

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliath-teleop/core/pkg/config"
	"github.com/goliath-teleop/core/pkg/flatbuffers/goliath/telemetry"
	"github.com/goliath-teleop/core/pkg/log"
	flatbuffers "github.com/google/flatbuffers/go"
)

// Topic prefixes on the PUB socket.
const (
	TelemetryTopicPrefix    = "telemetry."
	ConfigUpdateTopic       = "configuration.update"
	ConfigNotificationTopic = "configuration.notification"
	MsgTypeConfigUpdated    = "CONFIG_UPDATED"
)

var ErrMalformedEvent = errors.New("malformed telemetry event")

// Publisher is the publishing side of ZeroMQService.
type Publisher interface {
	PublishMessage(topic string, message []byte) error
	PublishJSON(topic string, messageType string, data interface{}) error
}

// Event is one telemetry record.
type Event struct {
	SessionID string
	Kind      telemetry.EventKind
	Time      time.Time
	Detail    string
	Payload   []byte
}

// EventTopic is the PUB topic for events of kind.
func EventTopic(kind telemetry.EventKind) string {
	return TelemetryTopicPrefix + strings.ToLower(kind.String())
}

// EncodeEvent serializes ev as a telemetry.Event flatbuffer.
func EncodeEvent(ev Event) []byte {
	builder := flatbuffers.NewBuilder(64 + len(ev.Detail) + len(ev.Payload))

	sessionID := builder.CreateString(ev.SessionID)
	detail := builder.CreateString(ev.Detail)
	var payload flatbuffers.UOffsetT
	if len(ev.Payload) > 0 {
		payload = builder.CreateByteVector(ev.Payload)
	}

	telemetry.EventStart(builder)
	telemetry.EventAddSessionId(builder, sessionID)
	telemetry.EventAddKind(builder, ev.Kind)
	telemetry.EventAddTimestampNs(builder, ev.Time.UnixNano())
	telemetry.EventAddDetail(builder, detail)
	if payload != 0 {
		telemetry.EventAddPayload(builder, payload)
	}
	telemetry.FinishEventBuffer(builder, telemetry.EventEnd(builder))
	return builder.FinishedBytes()
}

// DecodeEvent parses a telemetry.Event flatbuffer.
func DecodeEvent(data []byte) (ev Event, err error) {
	if len(data) < flatbuffers.SizeUOffsetT {
		return Event{}, fmt.Errorf("%w: %d bytes", ErrMalformedEvent, len(data))
	}
	defer func() {
		if r := recover(); r != nil {
			ev, err = Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, r)
		}
	}()
	fb := telemetry.GetRootAsEvent(data, 0)
	ev = Event{
		SessionID: string(fb.SessionId()),
		Kind:      fb.Kind(),
		Time:      time.Unix(0, fb.TimestampNs()),
		Detail:    string(fb.Detail()),
	}
	if fb.PayloadLength() > 0 {
		ev.Payload = append([]byte(nil), fb.PayloadBytes()...)
	}
	return ev, nil
}

// EventPublisher publishes telemetry events for one vehicle.
type EventPublisher struct {
	pub    Publisher
	logger log.Logger
}

func NewEventPublisher(pub Publisher, logger log.Logger) *EventPublisher {
	return &EventPublisher{pub: pub, logger: logger}
}

// Publish stamps ev with the current time if unset and sends it.
func (p *EventPublisher) Publish(ev Event) error {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	if err := p.pub.PublishMessage(EventTopic(ev.Kind), EncodeEvent(ev)); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Kind, err)
	}
	return nil
}

// ConfigPublisher announces configuration changes to subscribers.
type ConfigPublisher struct {
	pub    Publisher
	logger log.Logger
}

func NewConfigPublisher(pub Publisher, logger log.Logger) *ConfigPublisher {
	return &ConfigPublisher{pub: pub, logger: logger}
}

// PublishConfigUpdate publishes the full configuration.
func (p *ConfigPublisher) PublishConfigUpdate(cfg *config.VehicleConfig) error {
	p.logger.Infof("Publishing configuration update for %s", cfg.VehicleID)
	return p.pub.PublishJSON(ConfigUpdateTopic, MsgTypeConfigResponse, cfg)
}

// PublishConfigUpdatedNotification publishes a short change notice.
func (p *ConfigPublisher) PublishConfigUpdatedNotification(cfg *config.VehicleConfig) error {
	notification := map[string]interface{}{
		"vehicle_id": cfg.VehicleID,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	return p.pub.PublishJSON(ConfigNotificationTopic, MsgTypeConfigUpdated, notification)
}

// RegisterVehicleHandlers wires the request handlers and returns the
// config publisher.
func RegisterVehicleHandlers(service *ZeroMQService, configs ConfigSource, status StatusSource, logger log.Logger) *ConfigPublisher {
	service.RegisterHandler(MsgTypeConfigRequest, NewConfigHandler(configs, logger))
	service.RegisterHandler(MsgTypeStatusRequest, NewStatusHandler(status, logger))
	logger.Debugf("Registered vehicle handlers")
	return NewConfigPublisher(service, logger)
}
