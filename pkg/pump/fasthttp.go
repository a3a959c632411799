package pump

import (
	"errors"

	"github.com/fasthttp/websocket"
)

// NewFasthttpTransport wraps a server connection upgraded by fasthttp (the
// fiber websocket middleware embeds this type).
func NewFasthttpTransport(conn *websocket.Conn) *FrameTransport {
	return NewFrameTransport(conn, fasthttpClose)
}

func fasthttpClose(err error) (string, bool) {
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		return "", false
	}
	if ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway {
		return ce.Text, true
	}
	return "", false
}
