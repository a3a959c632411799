package pump

import (
	"errors"

	"github.com/gorilla/websocket"
)

// NewGorillaTransport wraps a client connection dialed with gorilla/websocket.
func NewGorillaTransport(conn *websocket.Conn) *FrameTransport {
	return NewFrameTransport(conn, gorillaClose)
}

func gorillaClose(err error) (string, bool) {
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		return "", false
	}
	if ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway {
		return ce.Text, true
	}
	return "", false
}
