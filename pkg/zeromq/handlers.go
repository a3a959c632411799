package zeromq

import (
	"encoding/json"
	"fmt"

	"github.com/goliath-teleop/core/pkg/config"
	"github.com/goliath-teleop/core/pkg/log"
)

// ConfigSource returns the configuration currently in effect.
type ConfigSource func() *config.VehicleConfig

// StatusSource returns a JSON-encodable status snapshot.
type StatusSource func() interface{}

// requestHandler answers one request type with a snapshot from source.
type requestHandler struct {
	requestType  string
	responseType string
	source       func() interface{}
	logger       log.Logger
}

func (h *requestHandler) HandleMessage(data []byte) ([]byte, error) {
	var msg ZeroMQMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if msg.Type != h.requestType {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessageType, msg.Type)
	}

	responseData, err := json.Marshal(newEnvelope(h.responseType, h.source()))
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s: %w", h.responseType, err)
	}
	h.logger.Debugf("Sending %s (%d bytes)", h.responseType, len(responseData))
	return responseData, nil
}

// NewConfigHandler answers CONFIG_REQUEST with the current vehicle config.
func NewConfigHandler(source ConfigSource, logger log.Logger) MessageHandler {
	return &requestHandler{
		requestType:  MsgTypeConfigRequest,
		responseType: MsgTypeConfigResponse,
		source:       func() interface{} { return source() },
		logger:       logger,
	}
}

// NewStatusHandler answers STATUS_REQUEST with a diagnostics snapshot.
func NewStatusHandler(source StatusSource, logger log.Logger) MessageHandler {
	return &requestHandler{
		requestType:  MsgTypeStatusRequest,
		responseType: MsgTypeStatusResponse,
		source:       source,
		logger:       logger,
	}
}
