package internal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// closeGrace bounds how long a reader waits for the peer's close frame
// after Close has been sent.
const closeGrace = 5 * time.Second

// GorillaConn adapts a gorilla websocket.Conn to the same surface as Conn.
// gorilla allows one concurrent writer, so data writes are serialized.
type GorillaConn struct {
	ws           *websocket.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
	writeMu      sync.Mutex
}

func NewGorillaConn(ws *websocket.Conn, readTimeout, writeTimeout time.Duration, readLimit int64) *GorillaConn {
	if readLimit > 0 {
		ws.SetReadLimit(readLimit)
	}
	return &GorillaConn{ws: ws, readTimeout: readTimeout, writeTimeout: writeTimeout}
}

// DialGorilla opens a gorilla connection honoring ctx for the handshake.
func DialGorilla(ctx context.Context, url string, handshakeTimeout time.Duration) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
		Proxy:            websocket.DefaultDialer.Proxy,
	}
	ws, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// Read ignores ctx once blocked; the connection is unblocked by CloseNow.
func (c *GorillaConn) Read(ctx context.Context) (binary bool, data []byte, err error) {
	if err := ctx.Err(); err != nil {
		return false, nil, err
	}
	if c.readTimeout > 0 {
		_ = c.ws.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	typ, data, err := c.ws.ReadMessage()
	if err != nil {
		return false, nil, err
	}
	return typ == websocket.BinaryMessage, data, nil
}

func (c *GorillaConn) Write(ctx context.Context, binary bool, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	typ := websocket.TextMessage
	if binary {
		typ = websocket.BinaryMessage
	}
	return c.ws.WriteMessage(typ, data)
}

// Close sends a close frame and leaves the reader to collect the peer's answer.
func (c *GorillaConn) Close(code int, reason string) error {
	msg := websocket.FormatCloseMessage(code, reason)
	err := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = c.ws.SetReadDeadline(time.Now().Add(closeGrace))
	if err != nil {
		_ = c.ws.Close()
	}
	return err
}

func (c *GorillaConn) CloseNow() error {
	return c.ws.Close()
}

// CloseStatus extracts the close frame carried by a Read error.
func (c *GorillaConn) CloseStatus(err error) (code int, reason string, ok bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, true
	}
	return 0, "", false
}
