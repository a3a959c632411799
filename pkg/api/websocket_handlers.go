package api

import (
	"errors"
	"net"
	"net/http"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/goliath-teleop/core/domain/session"
	customlog "github.com/goliath-teleop/core/pkg/log"
	"github.com/goliath-teleop/core/pkg/pump"
)

// SessionServer admits control connections.
type SessionServer interface {
	Busy() bool
	Serve(transport pump.Transport, remoteHost string) error
}

// RegisterControlRoutes mounts the operator control websocket at path. While
// a session is active further upgrades are refused with 503.
func RegisterControlRoutes(app *fiber.App, path string, server SessionServer, logger customlog.Logger) {
	app.Use(path, func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return c.Status(http.StatusUpgradeRequired).JSON(ErrorResponse{
				Error: "Control endpoint requires a WebSocket upgrade.",
			})
		}
		if server.Busy() {
			logger.Warnf("Refusing control connection from %s: session already active", c.IP())
			return c.Status(http.StatusServiceUnavailable).JSON(ErrorResponse{
				Error: "Vehicle is already controlled by another operator.",
			})
		}
		return c.Next()
	})
	app.Get(path, websocket.New(func(conn *websocket.Conn) {
		ControlWebSocketHandler(conn, server, logger)
	}))
	logger.Infof("Registered control WebSocket endpoint at %s", path)
}

// ControlWebSocketHandler runs one session over conn and returns when it
// terminates.
func ControlWebSocketHandler(conn *websocket.Conn, server SessionServer, logger customlog.Logger) {
	remote := remoteHost(conn.RemoteAddr())
	logger.Infof("Control WebSocket connected: %s", remote)

	err := server.Serve(pump.NewFasthttpTransport(conn.Conn), remote)
	switch {
	case err == nil:
		logger.Infof("Control WebSocket disconnected: %s", remote)
	case errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrShutdown):
		logger.Warnf("Control WebSocket from %s refused: %v", remote, err)
	default:
		logger.Errorf("Control session with %s ended with error: %v", remote, err)
	}
}

func remoteHost(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
