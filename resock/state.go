package resock

import "time"

// ConnectionState is the status a Manager reports to its observers.
type ConnectionState int

const (
	// StateDisconnected means there is no connection and no pending error.
	StateDisconnected ConnectionState = iota

	// StateConnecting means a connect cycle has started and not yet opened.
	StateConnecting

	// StateConnected means the socket is open.
	StateConnected

	// StateError means the last cycle ended with a user-facing error.
	StateError
)

// String returns the string representation of a ConnectionState.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Text returns the human-readable label shown to users.
func (s ConnectionState) Text() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting..."
	case StateConnected:
		return "Connected"
	case StateError:
		return "Connection error"
	default:
		return "Unknown"
	}
}

// SocketState is the lifecycle position of a single Client.
type SocketState int

const (
	SocketIdle SocketState = iota
	SocketConnecting
	SocketOpen
	SocketClosed
)

func (s SocketState) String() string {
	switch s {
	case SocketIdle:
		return "idle"
	case SocketConnecting:
		return "connecting"
	case SocketOpen:
		return "open"
	case SocketClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time copy of a Manager's observable state.
type Snapshot struct {
	URL               string
	Connecting        bool
	Connected         bool
	ReconnectAttempts int
	LastMessage       *Message
	ErrorMessage      string
	LastError         error
	Status            ConnectionState
	StatusText        string
	UpdatedAt         time.Time
}

// Cause names what triggered a state change.
type Cause string

const (
	CauseConnect    Cause = "connect"
	CauseDisconnect Cause = "disconnect"
	CauseOpen       Cause = "open"
	CauseMessage    Cause = "message"
	CauseClose      Cause = "close"
	CauseError      Cause = "error"
	CauseSend       Cause = "send"
)

// StateEvent represents a state change event.
type StateEvent struct {
	OldState ConnectionState
	NewState ConnectionState
	Cause    Cause
	Snapshot Snapshot
}
