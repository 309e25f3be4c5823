package hub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/facewave/internal/log"
)

// fakeConn records writes and blocks reads until closed.
type fakeConn struct {
	mu     sync.Mutex
	writes []Message
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{})}
}

func (f *fakeConn) SetReadLimit(int64)                {}
func (f *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	<-f.closed
	return 0, nil, errors.New("closed")
}

func (f *fakeConn) WriteMessage(t int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch t {
	case websocket.TextMessage:
		f.writes = append(f.writes, NewJSONMessage(data))
	case websocket.BinaryMessage:
		f.writes = append(f.writes, NewBinaryMessage(data))
	}
	return nil
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.writes...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, time.Millisecond)
}

func TestBroadcastReachesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New("test", log.Discard())
	go h.Run(ctx)
	waitFor(t, h.IsRunning)

	conns := []*fakeConn{newFakeConn(), newFakeConn()}
	for _, c := range conns {
		client, ok := NewClient(h, c)
		require.True(t, ok, "hub refused client")
		go client.Run()
	}
	waitFor(t, func() bool { return h.ClientCount() == 2 })

	require.NoError(t, h.BroadcastJSON(map[string]int{"seq": 1}))
	h.Broadcast(NewBinaryMessage([]byte{1, 2}))

	for i, c := range conns {
		waitFor(t, func() bool { return len(c.messages()) == 2 })
		msgs := c.messages()
		assert.Equal(t, JSONMessage, msgs[0].Type, "conn %d", i)
		assert.JSONEq(t, `{"seq":1}`, string(msgs[0].Data), "conn %d", i)
		assert.Equal(t, BinaryMessage, msgs[1].Type, "conn %d", i)
	}
}

func TestDisconnectUnregisters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New("test", log.Discard())
	go h.Run(ctx)

	c := newFakeConn()
	client, ok := NewClient(h, c)
	require.True(t, ok, "hub refused client")
	go client.Run()
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	c.Close()
	waitFor(t, func() bool { return h.ClientCount() == 0 })
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New("test", log.Discard())
	go h.Run(ctx)
	waitFor(t, h.IsRunning)

	c := newFakeConn()
	client, _ := NewClient(h, c)
	go client.Run()
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	cancel()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
	assert.False(t, h.IsRunning())
	assert.Zero(t, h.ClientCount())

	_, ok := NewClient(h, newFakeConn())
	assert.False(t, ok, "stopped hub accepted a client")
}

func TestBroadcastDropsWhenFull(t *testing.T) {
	h := New("test", log.Discard())
	// Not running: the queue fills and further messages are dropped.
	for range cap(h.broadcast) + 10 {
		h.Broadcast(NewJSONMessage([]byte("{}")))
	}
	assert.Len(t, h.broadcast, cap(h.broadcast))
}
