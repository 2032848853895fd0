package resock

import (
	"fmt"
	"time"
)

// MessageType distinguishes text and binary frames.
type MessageType int

const (
	TextMessage MessageType = iota + 1
	BinaryMessage
)

func (t MessageType) String() string {
	switch t {
	case TextMessage:
		return "text"
	case BinaryMessage:
		return "binary"
	default:
		return "unknown"
	}
}

// Message is a single data frame.
type Message struct {
	Type MessageType
	Data []byte
}

// Text builds a text frame.
func Text(s string) Message {
	return Message{Type: TextMessage, Data: []byte(s)}
}

// Binary builds a binary frame.
func Binary(b []byte) Message {
	return Message{Type: BinaryMessage, Data: b}
}

// String returns the payload of text frames and a size summary otherwise.
func (m Message) String() string {
	if m.Type == BinaryMessage {
		return fmt.Sprintf("<binary %d bytes>", len(m.Data))
	}
	return string(m.Data)
}

// OpenEvent is emitted when a socket finishes its handshake.
type OpenEvent struct {
	URL string
	At  time.Time
}

// CloseEvent is emitted exactly once at the end of every connection attempt.
// WillReconnect reports the client's decision to schedule another attempt.
type CloseEvent struct {
	Code          StatusCode
	Reason        string
	WillReconnect bool
	Attempts      int
	Err           error // cause when the attempt ended abnormally
}

// Normal reports whether the close used the normal closure code.
func (e CloseEvent) Normal() bool {
	return e.Code == StatusNormalClosure
}

// ErrorEvent is emitted on transport failures; a CloseEvent always follows.
type ErrorEvent struct {
	Err error
}
