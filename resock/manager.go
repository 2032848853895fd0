package resock

import (
	"fmt"
	"sync"
	"time"
)

// User-facing error texts stored in Snapshot.ErrorMessage.
const (
	MsgMaxReconnects  = "Connection closed. Max reconnect attempts reached."
	MsgTransportError = "WebSocket error. See logs for details."
	MsgNotConnected   = "Cannot send: not connected."
	MsgSendFailed     = "Failed to send message."

	unexpectedCloseFormat = "Connection closed unexpectedly: %s. Code: %d"
	defaultCloseReason    = "Server unavailable"
)

// Manager owns at most one Client at a time and turns its callbacks into an
// observable Snapshot. It is safe for concurrent use.
type Manager struct {
	opMu sync.Mutex // serializes Connect and Disconnect

	mu       sync.Mutex
	cfg      Config
	opts     []Option
	logger   Logger
	client   *Client
	snap     Snapshot
	observer func(StateEvent)
}

// NewManager creates a disconnected manager. opts are passed to every
// Client it builds.
func NewManager(cfg Config, opts ...Option) *Manager {
	o := buildOptions(opts)
	return &Manager{
		cfg:    cfg,
		opts:   opts,
		logger: o.logger,
		snap: Snapshot{
			URL:        cfg.URL,
			Status:     StateDisconnected,
			StatusText: StateDisconnected.Text(),
			UpdatedAt:  time.Now(),
		},
	}
}

// OnStateChanged registers a callback invoked after every state change,
// outside the manager's lock. It replaces any previous callback.
func (m *Manager) OnStateChanged(fn func(StateEvent)) {
	m.mu.Lock()
	m.observer = fn
	m.mu.Unlock()
}

// SetURL sets the address used by the next Connect.
func (m *Manager) SetURL(url string) {
	m.mu.Lock()
	m.cfg.URL = url
	m.mu.Unlock()
}

// SetMaxReconnectAttempts sets the reconnect ceiling used by the next
// Connect. Negative means unlimited.
func (m *Manager) SetMaxReconnectAttempts(n int) {
	m.mu.Lock()
	m.cfg.MaxReconnectAttempts = n
	m.mu.Unlock()
}

// SetReconnectInterval sets the reconnect delay used by the next Connect.
func (m *Manager) SetReconnectInterval(d time.Duration) {
	m.mu.Lock()
	m.cfg.ReconnectInterval = d
	m.mu.Unlock()
}

// SetDebug toggles lifecycle debug logging for the next Connect.
func (m *Manager) SetDebug(debug bool) {
	m.mu.Lock()
	m.cfg.Debug = debug
	m.mu.Unlock()
}

// Config returns the configuration the next Connect will use.
func (m *Manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// Connect starts a new connect cycle. It does nothing while connected.
// Any previous client is shut down first, so its pending reconnects can
// never produce a second socket. The returned error, also recorded in the
// snapshot, only reports problems detected before dialing.
func (m *Manager) Connect() error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	if m.snap.Connected {
		m.mu.Unlock()
		return nil
	}
	old := m.client
	m.client = nil
	cfg := m.cfg
	m.mu.Unlock()

	if old != nil {
		old.Close()
	}

	cl := NewClient(cfg, nil, m.opts...)
	cl.dispatcher.Bind(m.handlerFor(cl))

	m.apply(nil, CauseConnect, func(s *Snapshot) {
		m.client = cl
		s.URL = cfg.URL
		s.ErrorMessage = ""
		s.LastError = nil
		s.ReconnectAttempts = 0
		s.Connecting = true
		s.Connected = false
	})
	m.debug(cfg, "connecting", map[string]any{"url": cfg.URL, "client_id": cl.ID()})

	if err := cl.Connect(); err != nil {
		m.logger.Error("connect failed", map[string]any{"url": cfg.URL, "error": err})
		m.apply(cl, CauseError, func(s *Snapshot) {
			m.client = nil
			s.Connecting = false
			s.Connected = false
			s.ErrorMessage = fmt.Sprintf("Cannot connect: %v", err)
			s.LastError = err
		})
		cl.Close()
		return err
	}
	return nil
}

// Disconnect stops the current client for good. Connection fields are reset
// immediately; callbacks the old client still delivers are ignored.
func (m *Manager) Disconnect() {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	cl := m.client
	debug := m.cfg.Debug
	m.mu.Unlock()
	if cl == nil {
		return
	}

	m.apply(nil, CauseDisconnect, func(s *Snapshot) {
		m.client = nil
		s.Connected = false
		s.Connecting = false
		s.ReconnectAttempts = 0
	})
	cl.Close()
	if debug {
		m.logger.Debug("disconnected by user", map[string]any{"client_id": cl.ID()})
	}
}

// Send transmits msg when connected. Otherwise nothing is sent and the
// snapshot records why.
func (m *Manager) Send(msg Message) error {
	m.mu.Lock()
	cl := m.client
	connected := m.snap.Connected
	m.mu.Unlock()

	if cl == nil || !connected {
		m.logger.Warn("cannot send: not connected", nil)
		m.apply(nil, CauseSend, func(s *Snapshot) {
			s.ErrorMessage = MsgNotConnected
			s.LastError = ErrNotConnected
		})
		return ErrNotConnected
	}

	if err := cl.Send(msg); err != nil {
		sendErr := WrapError(ErrorSendFailed, "send failed", err)
		m.logger.Error("send failed", map[string]any{"client_id": cl.ID(), "error": err})
		m.apply(cl, CauseSend, func(s *Snapshot) {
			s.ErrorMessage = MsgSendFailed
			s.LastError = sendErr
			s.Connected = false
		})
		return sendErr
	}
	m.debug(cl.Config(), "message sent", map[string]any{"client_id": cl.ID(), "message": msg.String()})
	return nil
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

func (m *Manager) IsConnected() bool       { return m.Snapshot().Connected }
func (m *Manager) IsConnecting() bool      { return m.Snapshot().Connecting }
func (m *Manager) ReconnectAttempts() int  { return m.Snapshot().ReconnectAttempts }
func (m *Manager) LastMessage() *Message   { return m.Snapshot().LastMessage }
func (m *Manager) ErrorMessage() string    { return m.Snapshot().ErrorMessage }
func (m *Manager) Status() ConnectionState { return m.Snapshot().Status }
func (m *Manager) StatusText() string      { return m.Snapshot().StatusText }

// handlerFor wires the callbacks of cl into the snapshot. Events from a
// client that is no longer current are dropped.
func (m *Manager) handlerFor(cl *Client) Handler {
	cfg := cl.Config()
	return HandlerFuncs{
		Open: func(ev OpenEvent) {
			m.apply(cl, CauseOpen, func(s *Snapshot) {
				s.Connecting = false
				s.Connected = true
				s.ErrorMessage = ""
				s.LastError = nil
				s.ReconnectAttempts = 0
			})
			m.debug(cfg, "connected", map[string]any{"client_id": cl.ID(), "url": ev.URL})
		},
		Message: func(msg Message) {
			m.apply(cl, CauseMessage, func(s *Snapshot) {
				s.LastMessage = &msg
			})
			m.debug(cfg, "message received", map[string]any{"client_id": cl.ID(), "message": msg.String()})
		},
		Close: func(ev CloseEvent) {
			m.apply(cl, CauseClose, func(s *Snapshot) {
				s.Connecting = false
				s.Connected = false
				switch {
				case ev.WillReconnect:
					s.ReconnectAttempts++
				case !cfg.Unlimited() && s.ReconnectAttempts >= cfg.MaxReconnectAttempts:
					s.ErrorMessage = MsgMaxReconnects
					s.LastError = NewError(ErrorMaxReconnects, MsgMaxReconnects)
				case ev.Code != StatusNormalClosure:
					reason := ev.Reason
					if reason == "" {
						reason = defaultCloseReason
					}
					s.ErrorMessage = fmt.Sprintf(unexpectedCloseFormat, reason, ev.Code)
					s.LastError = WrapError(ErrorUnexpectedClose, s.ErrorMessage, ev.Err)
				}
			})
			m.debug(cfg, "disconnected", map[string]any{
				"client_id":      cl.ID(),
				"code":           int(ev.Code),
				"reason":         ev.Reason,
				"will_reconnect": ev.WillReconnect,
			})
		},
		Error: func(ev ErrorEvent) {
			m.apply(cl, CauseError, func(s *Snapshot) {
				s.Connecting = false
				s.Connected = false
				s.ErrorMessage = MsgTransportError
				s.LastError = ev.Err
			})
		},
	}
}

// apply mutates the snapshot under the lock and notifies the observer
// afterwards. A non-nil cl must still be the current client.
func (m *Manager) apply(cl *Client, cause Cause, fn func(*Snapshot)) bool {
	m.mu.Lock()
	if cl != nil && m.client != cl {
		m.mu.Unlock()
		return false
	}
	old := m.snap.Status
	fn(&m.snap)
	m.snap.Status = deriveStatus(m.snap)
	m.snap.StatusText = m.snap.Status.Text()
	m.snap.UpdatedAt = time.Now()
	ev := StateEvent{OldState: old, NewState: m.snap.Status, Cause: cause, Snapshot: m.snap}
	observer := m.observer
	m.mu.Unlock()

	if observer != nil {
		observer(ev)
	}
	return true
}

func (m *Manager) debug(cfg Config, msg string, fields map[string]any) {
	if cfg.Debug {
		m.logger.Debug(msg, fields)
	}
}

func deriveStatus(s Snapshot) ConnectionState {
	switch {
	case s.Connected:
		return StateConnected
	case s.Connecting:
		return StateConnecting
	case s.ErrorMessage != "":
		return StateError
	default:
		return StateDisconnected
	}
}
