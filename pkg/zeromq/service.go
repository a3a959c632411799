// Package zeromq serves the vehicle's local telemetry bus: a REP socket for
// JSON requests (configuration, status) and a PUB socket for telemetry
// events.
package zeromq

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goliath-teleop/core/pkg/config"
	"github.com/goliath-teleop/core/pkg/log"
	"github.com/pebbe/zmq4"
)

// Common errors
var (
	ErrServiceClosed      = errors.New("zeromq service is closed")
	ErrInvalidMessage     = errors.New("invalid message format")
	ErrUnknownMessageType = errors.New("unknown message type")
)

// Message types
const (
	MsgTypeConfigRequest  = "CONFIG_REQUEST"
	MsgTypeConfigResponse = "CONFIG_RESPONSE"
	MsgTypeStatusRequest  = "STATUS_REQUEST"
	MsgTypeStatusResponse = "STATUS_RESPONSE"
	MsgTypeError          = "ERROR"
)

const (
	socketTimeout = 1 * time.Second
	pollTimeout   = 500 * time.Millisecond
)

// ZeroMQMessage is the JSON envelope of every request and response.
type ZeroMQMessage struct {
	Type      string      `json:"type"`
	Timestamp float64     `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// ErrorResponse is the Data of an ERROR reply.
type ErrorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// MessageHandler processes one request and returns the encoded reply.
type MessageHandler interface {
	HandleMessage(data []byte) ([]byte, error)
}

// HandlerFunc adapts a function to MessageHandler.
type HandlerFunc func(data []byte) ([]byte, error)

func (f HandlerFunc) HandleMessage(data []byte) ([]byte, error) {
	return f(data)
}

func newEnvelope(msgType string, data interface{}) ZeroMQMessage {
	return ZeroMQMessage{
		Type:      msgType,
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
		Data:      data,
	}
}

// MessageReceiver answers requests on a REP socket.
type MessageReceiver struct {
	socket     *zmq4.Socket
	endpoint   string
	dispatcher *MessageDispatcher
	poller     *zmq4.Poller
	logger     log.Logger
	running    atomic.Bool
	wg         *sync.WaitGroup
}

func newMessageReceiver(ctx *zmq4.Context, address string, dispatcher *MessageDispatcher, logger log.Logger, wg *sync.WaitGroup) (*MessageReceiver, error) {
	socket, err := ctx.NewSocket(zmq4.REP)
	if err != nil {
		return nil, fmt.Errorf("failed to create REP socket: %w", err)
	}
	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}
	if err := socket.SetRcvtimeo(socketTimeout); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set receive timeout: %w", err)
	}
	if err := socket.SetSndtimeo(socketTimeout); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set send timeout: %w", err)
	}
	if err := socket.Bind(address); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to bind to %s: %w", address, err)
	}

	endpoint, err := socket.GetLastEndpoint()
	if err != nil {
		endpoint = address
	}

	poller := zmq4.NewPoller()
	poller.Add(socket, zmq4.POLLIN)

	logger.Infof("MessageReceiver bound to %s", endpoint)
	return &MessageReceiver{
		socket:     socket,
		endpoint:   endpoint,
		dispatcher: dispatcher,
		poller:     poller,
		logger:     logger,
		wg:         wg,
	}, nil
}

// Start launches the receive loop.
func (r *MessageReceiver) Start() {
	if !r.running.CompareAndSwap(false, true) {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.socket.Close()
		r.logger.Debugf("MessageReceiver started")

		for r.running.Load() {
			sockets, err := r.poller.Poll(pollTimeout)
			if err != nil {
				if r.running.Load() {
					r.logger.Warnf("Error polling socket: %v", err)
				}
				continue
			}
			if len(sockets) == 0 {
				continue
			}

			msg, err := r.socket.RecvBytes(0)
			if err != nil {
				if r.running.Load() {
					r.logger.Warnf("Error receiving message: %v", err)
				}
				continue
			}
			r.logger.Debugf("Received request (%d bytes)", len(msg))

			response, err := r.dispatcher.Dispatch(msg)
			if err != nil {
				r.logger.Warnf("Error dispatching message: %v", err)
				response = errorReply(err)
			}
			if _, err := r.socket.SendBytes(response, 0); err != nil && r.running.Load() {
				r.logger.Warnf("Error sending response: %v", err)
			}
		}
	}()
}

func errorReply(err error) []byte {
	code := 500
	if errors.Is(err, ErrUnknownMessageType) || errors.Is(err, ErrInvalidMessage) {
		code = 400
	}
	data, _ := json.Marshal(newEnvelope(MsgTypeError, ErrorResponse{Message: err.Error(), Code: code}))
	return data
}

// Endpoint returns the bound address, with wildcard ports resolved.
func (r *MessageReceiver) Endpoint() string { return r.endpoint }

// Stop ends the receive loop, which closes the socket on its way out. A
// receiver that never started closes the socket directly.
func (r *MessageReceiver) Stop() {
	if !r.running.CompareAndSwap(true, false) {
		r.socket.Close()
	}
}

// MessageSender publishes topic-prefixed messages on a PUB socket.
type MessageSender struct {
	socket   *zmq4.Socket
	endpoint string
	logger   log.Logger
	mu       sync.Mutex
}

func newMessageSender(ctx *zmq4.Context, address string, logger log.Logger) (*MessageSender, error) {
	socket, err := ctx.NewSocket(zmq4.PUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create PUB socket: %w", err)
	}
	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}
	if err := socket.Bind(address); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to bind to %s: %w", address, err)
	}
	endpoint, err := socket.GetLastEndpoint()
	if err != nil {
		endpoint = address
	}
	logger.Infof("MessageSender bound to %s", endpoint)
	return &MessageSender{socket: socket, endpoint: endpoint, logger: logger}, nil
}

// PublishMessage sends topic and message as one two-part message.
func (s *MessageSender) PublishMessage(topic string, message []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.socket == nil {
		return ErrServiceClosed
	}
	if _, err := s.socket.Send(topic, zmq4.SNDMORE); err != nil {
		return fmt.Errorf("failed to send topic: %w", err)
	}
	if _, err := s.socket.SendBytes(message, 0); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Endpoint returns the bound address, with wildcard ports resolved.
func (s *MessageSender) Endpoint() string { return s.endpoint }

func (s *MessageSender) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.socket != nil {
		s.socket.Close()
		s.socket = nil
	}
}

// MessageDispatcher routes JSON requests to handlers by type.
type MessageDispatcher struct {
	handlers map[string]MessageHandler
	logger   log.Logger
	mu       sync.RWMutex
}

func NewMessageDispatcher(logger log.Logger) *MessageDispatcher {
	return &MessageDispatcher{
		handlers: make(map[string]MessageHandler),
		logger:   logger,
	}
}

func (d *MessageDispatcher) RegisterHandler(messageType string, handler MessageHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[messageType] = handler
	d.logger.Debugf("Registered handler for message type: %s", messageType)
}

// Dispatch decodes the envelope and calls the handler for its type.
func (d *MessageDispatcher) Dispatch(data []byte) ([]byte, error) {
	var msg ZeroMQMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	d.mu.RLock()
	handler, exists := d.handlers[msg.Type]
	d.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessageType, msg.Type)
	}
	d.logger.Debugf("Dispatching message of type: %s", msg.Type)
	return handler.HandleMessage(data)
}

// ZeroMQService owns the context and both sockets. Either socket may be
// absent when its address is not configured.
type ZeroMQService struct {
	ctx        *zmq4.Context
	receiver   *MessageReceiver
	sender     *MessageSender
	dispatcher *MessageDispatcher
	logger     log.Logger
	running    atomic.Bool
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// NewZeroMQService binds the configured sockets.
func NewZeroMQService(cfg config.ZeroMQConfig, logger log.Logger) (*ZeroMQService, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("zeromq: no bind address configured")
	}
	logger = logger.WithField("component", "zeromq")

	ctx, err := zmq4.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create ZMQ context: %w", err)
	}

	s := &ZeroMQService{
		ctx:        ctx,
		dispatcher: NewMessageDispatcher(logger),
		logger:     logger,
	}
	if cfg.RequestBindAddress != "" {
		s.receiver, err = newMessageReceiver(ctx, cfg.RequestBindAddress, s.dispatcher, logger, &s.wg)
		if err != nil {
			ctx.Term()
			return nil, err
		}
	}
	if cfg.PublishBindAddress != "" {
		s.sender, err = newMessageSender(ctx, cfg.PublishBindAddress, logger)
		if err != nil {
			if s.receiver != nil {
				s.receiver.socket.Close()
			}
			ctx.Term()
			return nil, err
		}
	}
	return s, nil
}

func (s *ZeroMQService) RegisterHandler(messageType string, handler MessageHandler) {
	s.dispatcher.RegisterHandler(messageType, handler)
}

func (s *ZeroMQService) RegisterHandlerFunc(messageType string, handler func([]byte) ([]byte, error)) {
	s.dispatcher.RegisterHandler(messageType, HandlerFunc(handler))
}

// Start begins answering requests.
func (s *ZeroMQService) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}
	s.logger.Infof("Starting ZeroMQ service")
	if s.receiver != nil {
		s.receiver.Start()
	}
	return nil
}

// Stop closes both sockets and terminates the context. It is safe to call
// more than once, with or without Start.
func (s *ZeroMQService) Stop() {
	s.stopOnce.Do(func() {
		s.running.Store(false)
		s.logger.Infof("Stopping ZeroMQ service")
		if s.receiver != nil {
			s.receiver.Stop()
		}
		if s.sender != nil {
			s.sender.Close()
		}
		s.wg.Wait()
		if err := s.ctx.Term(); err != nil {
			s.logger.Debugf("Context term: %v", err)
		}
		s.logger.Infof("ZeroMQ service stopped")
	})
}

// RequestEndpoint returns the REP socket's bound address, or "".
func (s *ZeroMQService) RequestEndpoint() string {
	if s.receiver == nil {
		return ""
	}
	return s.receiver.Endpoint()
}

// PublishEndpoint returns the PUB socket's bound address, or "".
func (s *ZeroMQService) PublishEndpoint() string {
	if s.sender == nil {
		return ""
	}
	return s.sender.Endpoint()
}

// PublishMessage sends message under topic. Without a PUB socket it is a
// no-op.
func (s *ZeroMQService) PublishMessage(topic string, message []byte) error {
	if !s.running.Load() {
		return ErrServiceClosed
	}
	if s.sender == nil {
		return nil
	}
	return s.sender.PublishMessage(topic, message)
}

// PublishJSON wraps data in an envelope and publishes it.
func (s *ZeroMQService) PublishJSON(topic string, messageType string, data interface{}) error {
	msgData, err := json.Marshal(newEnvelope(messageType, data))
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return s.PublishMessage(topic, msgData)
}
