package pump

import (
	"errors"
	"sync"
)

// MessageKind classifies a transport message.
type MessageKind int

const (
	KindBinary MessageKind = iota
	KindText
	KindPing
	KindPong
	KindClose
)

func (k MessageKind) String() string {
	switch k {
	case KindBinary:
		return "binary"
	case KindText:
		return "text"
	case KindPing:
		return "ping"
	case KindPong:
		return "pong"
	case KindClose:
		return "close"
	default:
		return "unknown"
	}
}

// Message is one message read from a Transport.
type Message struct {
	Kind MessageKind
	Data []byte
	// Reason is the peer's close reason for KindClose, possibly empty.
	Reason string
}

// Transport is one ordered, reliable, message-framed duplex connection.
// Receive and Send may be called concurrently with each other; Close must
// unblock both.
type Transport interface {
	Receive() (Message, error)
	Send(data []byte) error
	Close() error
}

// WebSocket opcodes (RFC 6455 section 11.8). gorilla/websocket and
// fasthttp/websocket share these values.
const (
	textFrame   = 1
	binaryFrame = 2
	closeFrame  = 8
	pingFrame   = 9
	pongFrame   = 10
)

// normalClosure is close code 1000 with no reason, big-endian.
var normalClosure = []byte{0x03, 0xE8}

// FrameConn is the subset of a websocket connection used by FrameTransport.
// *gorilla/websocket.Conn and *fasthttp/websocket.Conn both satisfy it.
type FrameConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// CloseClassifier reports whether err is the peer's close frame and, if so,
// its reason text.
type CloseClassifier func(err error) (reason string, ok bool)

// FrameTransport adapts a websocket connection to Transport.
type FrameTransport struct {
	conn    FrameConn
	isClose CloseClassifier

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewFrameTransport wraps conn. isClose maps the library's close error to a
// KindClose message; nil treats every read error as a transport error.
func NewFrameTransport(conn FrameConn, isClose CloseClassifier) *FrameTransport {
	return &FrameTransport{conn: conn, isClose: isClose}
}

func (t *FrameTransport) Receive() (Message, error) {
	mt, data, err := t.conn.ReadMessage()
	if err != nil {
		if t.isClose != nil {
			if reason, ok := t.isClose(err); ok {
				return Message{Kind: KindClose, Reason: reason}, nil
			}
		}
		return Message{}, err
	}

	switch mt {
	case binaryFrame:
		return Message{Kind: KindBinary, Data: data}, nil
	case textFrame:
		return Message{Kind: KindText, Data: data}, nil
	case pingFrame:
		return Message{Kind: KindPing, Data: data}, nil
	case pongFrame:
		return Message{Kind: KindPong, Data: data}, nil
	case closeFrame:
		return Message{Kind: KindClose, Reason: string(data)}, nil
	default:
		return Message{}, errors.New("unsupported websocket message type")
	}
}

func (t *FrameTransport) Send(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteMessage(binaryFrame, data)
}

// Close sends a normal-closure frame when no write is in flight, then closes
// the connection. Safe to call more than once.
func (t *FrameTransport) Close() error {
	t.closeOnce.Do(func() {
		if t.writeMu.TryLock() {
			_ = t.conn.WriteMessage(closeFrame, normalClosure)
			t.writeMu.Unlock()
		}
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
