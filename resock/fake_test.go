package resock

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

var errDialRefused = errors.New("dial refused")

// fakeSocket is an in-memory Socket driven by the test.
type fakeSocket struct {
	reads chan Message
	done  chan struct{}
	once  sync.Once

	mu       sync.Mutex
	closeErr error
	writes   []Message
	writeErr error
	block    chan struct{} // when set, Write waits for it to close
	entered  chan struct{} // signalled each time Write starts
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		reads:   make(chan Message),
		done:    make(chan struct{}),
		entered: make(chan struct{}, 16),
	}
}

func (s *fakeSocket) Read(ctx context.Context) (Message, error) {
	select {
	case msg := <-s.reads:
		return msg, nil
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return Message{}, s.closeErr
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (s *fakeSocket) Write(ctx context.Context, msg Message) error {
	s.mu.Lock()
	block := s.block
	s.mu.Unlock()

	select {
	case s.entered <- struct{}{}:
	default:
	}
	if block != nil {
		select {
		case <-block:
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed() {
		return errors.New("write on closed socket")
	}
	if s.writeErr != nil {
		return s.writeErr
	}
	s.writes = append(s.writes, msg)
	return nil
}

func (s *fakeSocket) Close(code StatusCode, reason string) error {
	s.shut(&CloseError{Code: code, Reason: reason})
	return nil
}

func (s *fakeSocket) CloseNow() error {
	s.shut(io.ErrClosedPipe)
	return nil
}

func (s *fakeSocket) shut(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.closeErr = err
		s.mu.Unlock()
		close(s.done)
	})
}

func (s *fakeSocket) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// deliver hands msg to the client's reader and waits until it is taken.
func (s *fakeSocket) deliver(t *testing.T, msg Message) {
	t.Helper()
	select {
	case s.reads <- msg:
	case <-time.After(waitFor):
		t.Fatalf("message %q was not read", msg.String())
	}
}

// remoteClose simulates the server closing with a close frame.
func (s *fakeSocket) remoteClose(code StatusCode, reason string) {
	s.shut(&CloseError{Code: code, Reason: reason})
}

// drop simulates the connection breaking without a close frame.
func (s *fakeSocket) drop() {
	s.shut(io.ErrUnexpectedEOF)
}

func (s *fakeSocket) failWrites(err error) {
	s.mu.Lock()
	s.writeErr = err
	s.mu.Unlock()
}

func (s *fakeSocket) blockWrites() chan struct{} {
	ch := make(chan struct{})
	s.mu.Lock()
	s.block = ch
	s.mu.Unlock()
	return ch
}

func (s *fakeSocket) written() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.writes...)
}

// fakeDialer hands out fakeSockets. failures > 0 fails that many dials
// before succeeding, a negative value fails every dial.
type fakeDialer struct {
	mu       sync.Mutex
	failures int
	gate     chan struct{}
	dials    int
	sockets  []*fakeSocket
	dialed   chan *fakeSocket
}

func newFakeDialer(failures int) *fakeDialer {
	return &fakeDialer{failures: failures, dialed: make(chan *fakeSocket, 64)}
}

func (d *fakeDialer) Dial(ctx context.Context, _ string) (Socket, error) {
	d.mu.Lock()
	d.dials++
	gate := d.gate
	fail := d.failures != 0
	if d.failures > 0 {
		d.failures--
	}
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errDialRefused
	}

	s := newFakeSocket()
	d.mu.Lock()
	d.sockets = append(d.sockets, s)
	d.mu.Unlock()
	d.dialed <- s
	return s, nil
}

func (d *fakeDialer) setFailures(n int) {
	d.mu.Lock()
	d.failures = n
	d.mu.Unlock()
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// live counts sockets that have not been closed.
func (d *fakeDialer) live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, s := range d.sockets {
		if !s.closed() {
			n++
		}
	}
	return n
}

func (d *fakeDialer) next(t *testing.T) *fakeSocket {
	t.Helper()
	select {
	case s := <-d.dialed:
		return s
	case <-time.After(waitFor):
		t.Fatal("no socket dialed")
		return nil
	}
}

// recorder collects client callbacks and flags overlapping calls.
type recorder struct {
	mu      sync.Mutex
	events  []string
	opens   []OpenEvent
	msgs    []Message
	closes  []CloseEvent
	errs    []error
	running int32
	overlap atomic.Bool
}

func (r *recorder) enter() func() {
	if atomic.AddInt32(&r.running, 1) > 1 {
		r.overlap.Store(true)
	}
	return func() { atomic.AddInt32(&r.running, -1) }
}

func (r *recorder) handler() Handler {
	return HandlerFuncs{
		Open: func(ev OpenEvent) {
			defer r.enter()()
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, "open")
			r.opens = append(r.opens, ev)
		},
		Message: func(msg Message) {
			defer r.enter()()
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, "message:"+msg.String())
			r.msgs = append(r.msgs, msg)
		},
		Close: func(ev CloseEvent) {
			defer r.enter()()
			time.Sleep(time.Millisecond)
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, "close")
			r.closes = append(r.closes, ev)
		},
		Error: func(ev ErrorEvent) {
			defer r.enter()()
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, "error")
			r.errs = append(r.errs, ev.Err)
		},
	}
}

func (r *recorder) eventList() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// waitOpens blocks until n open callbacks have run.
func (r *recorder) waitOpens(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.opens) >= n
	}, waitFor, time.Millisecond)
}

func (r *recorder) closeList() []CloseEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CloseEvent(nil), r.closes...)
}

func (r *recorder) errList() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.URL = "ws://resock.test/ws"
	cfg.ReconnectInterval = 5 * time.Millisecond
	return cfg
}

func waitDone(t *testing.T, c *Client) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(waitFor):
		t.Fatal("client did not stop")
	}
}
