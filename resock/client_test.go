package resock

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, cfg Config, d *fakeDialer) (*Client, *recorder) {
	t.Helper()
	rec := &recorder{}
	c := NewClient(cfg, rec.handler(), WithDialer(d))
	t.Cleanup(c.Close)
	return c, rec
}

func TestClientOpenResetsAttempts(t *testing.T) {
	d := newFakeDialer(2)
	c, rec := newTestClient(t, testConfig(), d)

	require.NoError(t, c.Connect())
	d.next(t)
	rec.waitOpens(t, 1)

	assert.True(t, c.IsConnected())
	assert.Equal(t, 0, c.Attempts())
	assert.Equal(t, 3, d.dialCount())
	assert.Equal(t, []string{"error", "close", "error", "close", "open"}, rec.eventList())

	closes := rec.closeList()
	require.Len(t, closes, 2)
	assert.True(t, closes[0].WillReconnect)
	assert.Equal(t, 0, closes[0].Attempts)
	assert.True(t, closes[1].WillReconnect)
	assert.Equal(t, 1, closes[1].Attempts)
	assert.Equal(t, StatusAbnormalClosure, closes[1].Code)
	assert.False(t, rec.overlap.Load())
}

func TestClientSendWritesFrame(t *testing.T) {
	d := newFakeDialer(0)
	c, _ := newTestClient(t, testConfig(), d)

	require.NoError(t, c.Connect())
	s := d.next(t)
	require.Eventually(t, c.IsConnected, waitFor, time.Millisecond)

	require.NoError(t, c.Send(Text("ping")))
	require.NoError(t, c.Send(Binary([]byte{1, 2})))
	require.Eventually(t, func() bool { return len(s.written()) == 2 }, waitFor, time.Millisecond)
	assert.Equal(t, []Message{Text("ping"), Binary([]byte{1, 2})}, s.written())
}

func TestClientSendWhileConnectingIsDropped(t *testing.T) {
	d := newFakeDialer(0)
	d.gate = make(chan struct{})
	c, rec := newTestClient(t, testConfig(), d)

	require.NoError(t, c.Connect())
	require.Eventually(t, func() bool { return d.dialCount() == 1 }, waitFor, time.Millisecond)

	err := c.Send(Text("early"))
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, SocketConnecting, c.State())

	c.Close()
	waitDone(t, c)

	closes := rec.closeList()
	require.Len(t, closes, 1)
	assert.Equal(t, StatusNormalClosure, closes[0].Code)
	assert.False(t, closes[0].WillReconnect)
	assert.Empty(t, rec.errList())
	assert.Equal(t, 1, d.dialCount())
}

func TestClientSendBeforeConnect(t *testing.T) {
	c, _ := newTestClient(t, testConfig(), newFakeDialer(0))
	assert.ErrorIs(t, c.Send(Text("x")), ErrNotConnected)
	assert.Equal(t, SocketIdle, c.State())
}

func TestClientCloseCancelsPendingReconnect(t *testing.T) {
	cfg := testConfig()
	cfg.ReconnectInterval = time.Hour
	d := newFakeDialer(-1)
	c, rec := newTestClient(t, cfg, d)

	require.NoError(t, c.Connect())
	require.Eventually(t, func() bool { return len(rec.closeList()) == 1 }, waitFor, time.Millisecond)
	assert.True(t, rec.closeList()[0].WillReconnect)

	c.Close()
	waitDone(t, c)

	assert.False(t, c.ShouldReconnect())
	assert.Equal(t, 1, d.dialCount())
	assert.Len(t, rec.closeList(), 1)
}

func TestClientRetryRechecksShouldReconnect(t *testing.T) {
	cfg := testConfig()
	cfg.ReconnectInterval = time.Hour
	d := newFakeDialer(-1)
	c, rec := newTestClient(t, cfg, d)

	require.NoError(t, c.Connect())
	require.Eventually(t, func() bool { return len(rec.closeList()) == 1 }, waitFor, time.Millisecond)

	// Simulate the timer having fired just before reconnecting was disabled.
	c.mu.Lock()
	c.shouldReconnect = false
	c.timer.Stop()
	c.mu.Unlock()
	c.post(c.retry)

	waitDone(t, c)
	assert.Equal(t, 1, d.dialCount())
	assert.Equal(t, 0, c.Attempts())
}

func TestClientEventOrder(t *testing.T) {
	cfg := testConfig()
	cfg.MaxReconnectAttempts = 0
	d := newFakeDialer(0)
	c, rec := newTestClient(t, cfg, d)

	require.NoError(t, c.Connect())
	s := d.next(t)
	s.deliver(t, Text("hello"))
	s.deliver(t, Text("world"))
	s.remoteClose(StatusNormalClosure, "bye")
	waitDone(t, c)

	assert.Equal(t, []string{"open", "message:hello", "message:world", "close"}, rec.eventList())
	closes := rec.closeList()
	require.Len(t, closes, 1)
	assert.Equal(t, StatusNormalClosure, closes[0].Code)
	assert.Equal(t, "bye", closes[0].Reason)
	assert.True(t, closes[0].Normal())
	assert.False(t, closes[0].WillReconnect)
	assert.False(t, c.IsConnected())
	assert.False(t, rec.overlap.Load())
}

func TestClientHandlerReplacement(t *testing.T) {
	cfg := testConfig()
	cfg.MaxReconnectAttempts = 0
	d := newFakeDialer(0)
	c, rec := newTestClient(t, cfg, d)

	got := make(chan Message, 1)
	c.OnMessage(func(msg Message) { got <- msg })

	require.NoError(t, c.Connect())
	s := d.next(t)
	s.deliver(t, Text("replaced"))

	select {
	case msg := <-got:
		assert.Equal(t, "replaced", msg.String())
	case <-time.After(waitFor):
		t.Fatal("replacement handler not called")
	}
	assert.Equal(t, []string{"open"}, rec.eventList())
}

func TestClientConnectMisuse(t *testing.T) {
	t.Run("twice", func(t *testing.T) {
		c, _ := newTestClient(t, testConfig(), newFakeDialer(0))
		require.NoError(t, c.Connect())
		assert.ErrorIs(t, c.Connect(), ErrAlreadyStarted)
	})

	t.Run("after close", func(t *testing.T) {
		c, _ := newTestClient(t, testConfig(), newFakeDialer(0))
		c.Close()
		assert.ErrorIs(t, c.Connect(), ErrClosed)
		waitDone(t, c)
	})

	t.Run("invalid url", func(t *testing.T) {
		for _, url := range []string{"", "ftp://host/x", "ws://"} {
			cfg := testConfig()
			cfg.URL = url
			d := newFakeDialer(0)
			c, _ := newTestClient(t, cfg, d)
			err := c.Connect()
			assert.ErrorIs(t, err, ErrInvalidConfig, url)
			assert.Equal(t, 0, d.dialCount())
		}
	})
}

func TestClientUnboundedRetries(t *testing.T) {
	d := newFakeDialer(5)
	c, rec := newTestClient(t, testConfig(), d)

	require.NoError(t, c.Connect())
	d.next(t)
	rec.waitOpens(t, 1)

	assert.Equal(t, 6, d.dialCount())
	assert.Len(t, rec.errList(), 5)
	for _, ev := range rec.closeList() {
		assert.True(t, ev.WillReconnect)
	}
}

func TestClientZeroMaxNeverRetries(t *testing.T) {
	cfg := testConfig()
	cfg.MaxReconnectAttempts = 0
	d := newFakeDialer(-1)
	c, rec := newTestClient(t, cfg, d)

	require.NoError(t, c.Connect())
	waitDone(t, c)

	assert.Equal(t, 1, d.dialCount())
	closes := rec.closeList()
	require.Len(t, closes, 1)
	assert.False(t, closes[0].WillReconnect)
	assert.Equal(t, StatusAbnormalClosure, closes[0].Code)

	errs := rec.errList()
	require.Len(t, errs, 1)
	assert.Equal(t, ErrorConnection, CodeOf(errs[0]))
	assert.True(t, errors.Is(errs[0], errDialRefused))
}

func TestClientMaxAttemptsStopsRetrying(t *testing.T) {
	cfg := testConfig()
	cfg.MaxReconnectAttempts = 2
	d := newFakeDialer(-1)
	c, rec := newTestClient(t, cfg, d)

	require.NoError(t, c.Connect())
	waitDone(t, c)

	assert.Equal(t, 3, d.dialCount())
	assert.Equal(t, 2, c.Attempts())

	closes := rec.closeList()
	require.Len(t, closes, 3)
	assert.True(t, closes[0].WillReconnect)
	assert.True(t, closes[1].WillReconnect)
	assert.False(t, closes[2].WillReconnect)
	assert.True(t, c.ShouldReconnect())
}

func TestClientDropReconnects(t *testing.T) {
	d := newFakeDialer(0)
	c, rec := newTestClient(t, testConfig(), d)

	require.NoError(t, c.Connect())
	first := d.next(t)
	first.drop()

	second := d.next(t)
	require.NotSame(t, first, second)
	rec.waitOpens(t, 2)

	assert.Equal(t, []string{"open", "error", "close", "open"}, rec.eventList())
	closes := rec.closeList()
	assert.Equal(t, StatusAbnormalClosure, closes[0].Code)
	assert.True(t, closes[0].WillReconnect)
	assert.Equal(t, 1, d.live())
}

func TestClientWriteErrorEndsAttempt(t *testing.T) {
	cfg := testConfig()
	cfg.MaxReconnectAttempts = 0
	d := newFakeDialer(0)
	c, rec := newTestClient(t, cfg, d)

	require.NoError(t, c.Connect())
	s := d.next(t)
	require.Eventually(t, c.IsConnected, waitFor, time.Millisecond)

	s.failWrites(errors.New("broken pipe"))
	require.NoError(t, c.Send(Text("doomed")))
	waitDone(t, c)

	errs := rec.errList()
	require.Len(t, errs, 1)
	assert.Equal(t, ErrorSendFailed, CodeOf(errs[0]))

	closes := rec.closeList()
	require.Len(t, closes, 1)
	assert.Equal(t, StatusAbnormalClosure, closes[0].Code)
	assert.Equal(t, errs[0], closes[0].Err)
}

func TestClientCloseWhileOpen(t *testing.T) {
	d := newFakeDialer(0)
	c, rec := newTestClient(t, testConfig(), d)

	require.NoError(t, c.Connect())
	s := d.next(t)
	require.Eventually(t, c.IsConnected, waitFor, time.Millisecond)

	c.Close()
	c.Close()
	waitDone(t, c)

	assert.True(t, s.closed())
	assert.Equal(t, 1, d.dialCount())
	assert.Equal(t, SocketClosed, c.State())
	closes := rec.closeList()
	require.Len(t, closes, 1)
	assert.Equal(t, StatusNormalClosure, closes[0].Code)
	assert.Equal(t, closeReason, closes[0].Reason)
	assert.False(t, closes[0].WillReconnect)
	assert.Empty(t, rec.errList())
}

func TestClientBufferFull(t *testing.T) {
	cfg := testConfig()
	cfg.SendBuffer = 1
	d := newFakeDialer(0)
	c, _ := newTestClient(t, cfg, d)

	require.NoError(t, c.Connect())
	s := d.next(t)
	require.Eventually(t, c.IsConnected, waitFor, time.Millisecond)
	release := s.blockWrites()
	defer close(release)

	require.NoError(t, c.Send(Text("1")))
	<-s.entered
	require.NoError(t, c.Send(Text("2")))
	assert.ErrorIs(t, c.Send(Text("3")), ErrBufferFull)
}

func TestClientIDsAreUnique(t *testing.T) {
	a, _ := newTestClient(t, testConfig(), newFakeDialer(0))
	b, _ := newTestClient(t, testConfig(), newFakeDialer(0))
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestClientUnknownTransport(t *testing.T) {
	cfg := testConfig()
	cfg.Transport = "carrier-pigeon"
	c := NewClient(cfg, nil)
	defer c.Close()
	assert.ErrorIs(t, c.Connect(), ErrInvalidConfig)
}
