// Package operator is the operator station side of a teleop session: it
// dials the vehicle, forwards controller input as motor commands and logs
// the reports coming back.
package operator

import (
	"context"
	"fmt"
	"time"

	"github.com/goliath-teleop/core/pkg/config"
	"github.com/goliath-teleop/core/pkg/log"
	"github.com/goliath-teleop/core/pkg/pump"
	"github.com/goliath-teleop/core/pkg/wire"
	"github.com/gorilla/websocket"
)

// ClientPump is the operator half of a session pump.
type ClientPump = pump.Pump[wire.Command, wire.Report]

var operatorCodec = pump.Codec[wire.Command, wire.Report]{
	Encode: wire.EncodeCommand,
	Decode: wire.DecodeReport,
}

// Client dials the vehicle control endpoint.
type Client struct {
	url    string
	dialer websocket.Dialer
	logger log.Logger
}

// NewClient returns a client for cfg.VehicleURL.
func NewClient(cfg *config.OperatorConfig, logger log.Logger) *Client {
	return &Client{
		url: cfg.VehicleURL,
		dialer: websocket.Dialer{
			HandshakeTimeout: time.Duration(cfg.HandshakeTimeoutMs) * time.Millisecond,
		},
		logger: logger.WithField("component", "client"),
	}
}

// Connect opens the websocket and returns a started pump over it.
func (c *Client) Connect(ctx context.Context) (*ClientPump, error) {
	c.logger.Infof("Connecting to %s", c.url)
	conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: websocket connection failed (HTTP %d): %v", pump.ErrConnection, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: websocket connection failed: %v", pump.ErrConnection, err)
	}

	p, err := pump.New(pump.NewGorillaTransport(conn), operatorCodec, c.logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.Start()
	c.logger.Infof("Connected to vehicle")
	return p, nil
}
