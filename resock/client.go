package resock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vovakirdan/resock-sdk/resock-sdk-go/resock/internal/queue"
)

const closeReason = "client close"

// Client is a WebSocket connection that reconnects on its own after the
// socket drops, at a fixed interval, up to Config.MaxReconnectAttempts
// times in a row. Handler calls for one Client run on a single goroutine,
// in order.
//
// A Client is single-use: after Close, or once the reconnect ceiling is
// reached, create a new one.
type Client struct {
	id         string
	cfg        Config
	dialer     Dialer
	dialerErr  error
	logger     Logger
	metrics    *Metrics
	dispatcher Dispatcher
	tasks      *queue.Queue

	mu              sync.Mutex
	state           SocketState
	sock            Socket
	out             chan Message
	cancel          context.CancelFunc
	timer           *time.Timer
	attempts        int
	shouldReconnect bool
	started         bool
	closed          bool
}

// NewClient constructs a client for cfg. h may be nil; callbacks can also be
// installed later with the OnX setters. Call Close to release the client.
func NewClient(cfg Config, h Handler, opts ...Option) *Client {
	o := buildOptions(opts)
	cfg = cfg.withDefaults()

	c := &Client{
		id:              uuid.NewString(),
		cfg:             cfg,
		dialer:          o.dialer,
		logger:          o.logger,
		metrics:         o.metrics,
		tasks:           queue.New(),
		shouldReconnect: true,
	}
	if c.dialer == nil {
		c.dialer, c.dialerErr = NewDialer(cfg)
	}
	c.dispatcher.Bind(h)
	return c
}

// OnOpen replaces the open callback.
func (c *Client) OnOpen(fn func(OpenEvent)) { c.dispatcher.SetOnOpen(fn) }

// OnMessage replaces the message callback.
func (c *Client) OnMessage(fn func(Message)) { c.dispatcher.SetOnMessage(fn) }

// OnClose replaces the close callback.
func (c *Client) OnClose(fn func(CloseEvent)) { c.dispatcher.SetOnClose(fn) }

// OnError replaces the error callback.
func (c *Client) OnError(fn func(ErrorEvent)) { c.dispatcher.SetOnError(fn) }

// ID returns the unique identifier of this client instance.
func (c *Client) ID() string { return c.id }

// Config returns the configuration the client was built with.
func (c *Client) Config() Config { return c.cfg }

// Connect starts the first connection attempt and returns without waiting
// for it. Only misuse is reported here; dial failures arrive through the
// error and close callbacks.
func (c *Client) Connect() error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}
	if c.dialerErr != nil {
		return c.dialerErr
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.state = SocketConnecting
	c.mu.Unlock()

	c.debug("connect requested", nil)
	c.post(c.open)
	return nil
}

// Send queues msg on the current socket. Frames are never held back for a
// later socket: while the client is connecting or waiting to reconnect the
// frame is dropped and ErrNotConnected is returned.
func (c *Client) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != SocketOpen || c.out == nil {
		c.logger.Warn("dropping outgoing message: not connected", map[string]any{
			"client_id": c.id,
			"state":     c.state.String(),
		})
		return ErrNotConnected
	}

	select {
	case c.out <- msg:
		return nil
	default:
		c.logger.Warn("dropping outgoing message: send buffer full", map[string]any{
			"client_id": c.id,
			"buffer":    c.cfg.SendBuffer,
		})
		return ErrBufferFull
	}
}

// Close disables reconnecting for good, cancels a pending reconnect and asks
// the current socket to close with a normal closure. It does not wait for
// the closing handshake.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.shouldReconnect = false

	if !c.started {
		c.state = SocketClosed
		c.mu.Unlock()
		c.tasks.Close()
		return
	}

	if sock := c.sock; sock != nil {
		c.mu.Unlock()
		go func() {
			if err := sock.Close(StatusNormalClosure, closeReason); err != nil {
				c.debug("close handshake failed", map[string]any{"error": err})
			}
		}()
		return
	}

	switch {
	case c.cancel != nil:
		c.cancel()
	case c.timer != nil:
		// A timer that already fired has posted retry, which sees
		// shouldReconnect=false and stops the client.
		if c.timer.Stop() {
			c.timer = nil
			c.post(c.finish)
		}
	}
	c.mu.Unlock()
}

// IsConnected reports whether the socket is open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == SocketOpen
}

// State returns the lifecycle position of the current attempt.
func (c *Client) State() SocketState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the number of reconnect attempts since the last open.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// ShouldReconnect reports whether the client will still reconnect after a
// drop. It turns false permanently on Close.
func (c *Client) ShouldReconnect() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shouldReconnect
}

// Done is closed once the client has stopped for good and delivered its
// last callback.
func (c *Client) Done() <-chan struct{} {
	return c.tasks.Done()
}

func (c *Client) post(task func()) {
	if err := c.tasks.Push(task); err != nil {
		c.debug("task dropped", map[string]any{"error": err})
	}
}

// open dials one connection attempt. Runs on the task queue.
func (c *Client) open() {
	c.mu.Lock()
	if !c.shouldReconnect {
		c.mu.Unlock()
		c.ended(StatusNormalClosure, closeReason, nil)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.state = SocketConnecting
	attempt := c.attempts
	c.mu.Unlock()

	c.debug("dialing", map[string]any{"url": c.cfg.URL, "attempt": attempt})

	dialCtx := ctx
	if c.cfg.HandshakeTimeout > 0 {
		var dialCancel context.CancelFunc
		dialCtx, dialCancel = context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
		defer dialCancel()
	}

	start := time.Now()
	sock, err := c.dialer.Dial(dialCtx, c.cfg.URL)
	c.metrics.observeDial(start)

	c.mu.Lock()
	closing := !c.shouldReconnect
	if err != nil || closing {
		c.cancel = nil
		c.mu.Unlock()
		cancel()
		if sock != nil {
			_ = sock.CloseNow()
		}
		if closing {
			c.ended(StatusNormalClosure, closeReason, nil)
			return
		}
		c.fail(WrapError(ErrorConnection, "dial failed", err))
		return
	}
	out := make(chan Message, c.cfg.SendBuffer)
	c.sock = sock
	c.out = out
	c.state = SocketOpen
	c.attempts = 0
	c.mu.Unlock()

	c.metrics.opened()
	c.logger.Info("connected", map[string]any{"client_id": c.id, "url": c.cfg.URL})

	go c.readLoop(ctx, sock)
	go c.writeLoop(ctx, sock, out)

	c.dispatcher.dispatchOpen(OpenEvent{URL: c.cfg.URL, At: time.Now()})
}

func (c *Client) readLoop(ctx context.Context, sock Socket) {
	for {
		msg, err := sock.Read(ctx)
		if err != nil {
			c.post(func() { c.lost(sock, err) })
			return
		}
		c.post(func() { c.deliver(sock, msg) })
	}
}

func (c *Client) writeLoop(ctx context.Context, sock Socket, out <-chan Message) {
	for {
		select {
		case msg := <-out:
			if err := sock.Write(ctx, msg); err != nil {
				if ctx.Err() != nil {
					return
				}
				c.post(func() { c.lost(sock, WrapError(ErrorSendFailed, "write failed", err)) })
				return
			}
			c.metrics.sent(msg.Type)
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) current(sock Socket) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock == sock
}

func (c *Client) deliver(sock Socket, msg Message) {
	if !c.current(sock) {
		return
	}
	c.metrics.received(msg.Type)
	c.dispatcher.dispatchMessage(msg)
}

// lost tears down sock after its reader or writer failed and classifies the
// failure. Events from a socket that is no longer current are ignored.
func (c *Client) lost(sock Socket, err error) {
	c.mu.Lock()
	if c.sock != sock {
		c.mu.Unlock()
		return
	}
	c.sock = nil
	c.out = nil
	cancel := c.cancel
	c.cancel = nil
	closing := !c.shouldReconnect
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	_ = sock.CloseNow()
	c.metrics.dropped()

	var ce *CloseError
	switch {
	case errors.As(err, &ce):
		c.ended(ce.Code, ce.Reason, nil)
	case closing:
		c.ended(StatusNormalClosure, closeReason, nil)
	default:
		if CodeOf(err) == ErrorUnknown {
			err = WrapError(ErrorConnection, "connection lost", err)
		}
		c.fail(err)
	}
}

// fail reports a transport error and ends the attempt abnormally.
func (c *Client) fail(err error) {
	c.logger.Warn("websocket error", map[string]any{"client_id": c.id, "error": err})
	c.metrics.errored()
	c.dispatcher.dispatchError(ErrorEvent{Err: err})
	c.ended(StatusAbnormalClosure, "", err)
}

// ended closes out the current attempt and takes the reconnect decision.
func (c *Client) ended(code StatusCode, reason string, cause error) {
	c.mu.Lock()
	c.state = SocketClosed
	will := c.shouldReconnect && c.cfg.canReconnect(c.attempts)
	if will {
		c.timer = time.AfterFunc(c.cfg.ReconnectInterval, func() { c.post(c.retry) })
	}
	attempts := c.attempts
	stopped := !c.shouldReconnect
	c.mu.Unlock()

	c.metrics.closed(code)
	c.logger.Info("connection closed", map[string]any{
		"client_id":      c.id,
		"code":           int(code),
		"reason":         reason,
		"will_reconnect": will,
		"attempts":       attempts,
	})
	if !will && !stopped {
		c.logger.Warn("max reconnect attempts reached", map[string]any{
			"client_id": c.id,
			"max":       c.cfg.MaxReconnectAttempts,
		})
	}

	c.dispatcher.dispatchClose(CloseEvent{
		Code:          code,
		Reason:        reason,
		WillReconnect: will,
		Attempts:      attempts,
		Err:           cause,
	})

	if !will {
		c.finish()
	}
}

// retry runs when the reconnect timer fires.
func (c *Client) retry() {
	c.mu.Lock()
	c.timer = nil
	if !c.shouldReconnect {
		c.mu.Unlock()
		c.debug("reconnect cancelled", nil)
		c.finish()
		return
	}
	c.attempts++
	attempt := c.attempts
	c.mu.Unlock()

	c.metrics.reconnecting()
	c.logger.Info("reconnecting", map[string]any{
		"client_id": c.id,
		"attempt":   attempt,
		"max":       c.cfg.MaxReconnectAttempts,
	})
	c.open()
}

// finish stops the task queue. Tasks already queued still run.
func (c *Client) finish() {
	c.mu.Lock()
	c.state = SocketClosed
	c.mu.Unlock()
	c.tasks.Close()
	c.debug("client stopped", nil)
}

func (c *Client) debug(msg string, fields map[string]any) {
	if !c.cfg.Debug {
		return
	}
	if fields == nil {
		fields = make(map[string]any, 1)
	}
	fields["client_id"] = c.id
	c.logger.Debug(msg, fields)
}
