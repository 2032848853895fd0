package resock

import (
	"context"
	"fmt"
)

// StatusCode is a WebSocket close code (RFC 6455, section 7.4).
type StatusCode int

const (
	StatusNormalClosure   StatusCode = 1000
	StatusGoingAway       StatusCode = 1001
	StatusNoStatusRcvd    StatusCode = 1005
	StatusAbnormalClosure StatusCode = 1006
	StatusInternalError   StatusCode = 1011
)

// Transport names accepted by Config.Transport.
const (
	TransportCoder   = "coder"
	TransportGorilla = "gorilla"
)

// CloseError is returned by Socket.Read when the connection ended with a
// close frame.
type CloseError struct {
	Code   StatusCode
	Reason string
}

func (e *CloseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("websocket closed: code %d", e.Code)
	}
	return fmt.Sprintf("websocket closed: code %d: %s", e.Code, e.Reason)
}

// Socket is a connected, handshaken WebSocket. Read and Write may be called
// from different goroutines; Close and CloseNow may be called at any time.
type Socket interface {
	Read(ctx context.Context) (Message, error)
	Write(ctx context.Context, msg Message) error
	Close(code StatusCode, reason string) error
	CloseNow() error
}

// Dialer opens sockets.
type Dialer interface {
	Dial(ctx context.Context, url string) (Socket, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, url string) (Socket, error)

func (f DialerFunc) Dial(ctx context.Context, url string) (Socket, error) {
	return f(ctx, url)
}

// NewDialer returns the built-in dialer selected by cfg.Transport.
func NewDialer(cfg Config) (Dialer, error) {
	switch cfg.Transport {
	case "", TransportCoder:
		return &coderDialer{cfg: cfg}, nil
	case TransportGorilla:
		return &gorillaDialer{cfg: cfg}, nil
	default:
		return nil, NewError(ErrorInvalidConfig, fmt.Sprintf("unknown transport %q", cfg.Transport))
	}
}

// frameConn is the surface shared by the internal connection wrappers.
type frameConn interface {
	Read(ctx context.Context) (binary bool, data []byte, err error)
	Write(ctx context.Context, binary bool, data []byte) error
	Close(code int, reason string) error
	CloseNow() error
	CloseStatus(err error) (code int, reason string, ok bool)
}

// frameSocket turns a frameConn into a Socket.
type frameSocket struct {
	conn frameConn
}

func (s *frameSocket) Read(ctx context.Context) (Message, error) {
	binary, data, err := s.conn.Read(ctx)
	if err != nil {
		if code, reason, ok := s.conn.CloseStatus(err); ok {
			return Message{}, &CloseError{Code: StatusCode(code), Reason: reason}
		}
		return Message{}, err
	}
	if binary {
		return Binary(data), nil
	}
	return Message{Type: TextMessage, Data: data}, nil
}

func (s *frameSocket) Write(ctx context.Context, msg Message) error {
	return s.conn.Write(ctx, msg.Type == BinaryMessage, msg.Data)
}

func (s *frameSocket) Close(code StatusCode, reason string) error {
	return s.conn.Close(int(code), reason)
}

func (s *frameSocket) CloseNow() error {
	return s.conn.CloseNow()
}
