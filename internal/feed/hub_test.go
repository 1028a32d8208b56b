package feed

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avl-svr/internal/pipeline"
)

func newHub() *Hub { return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil))) }

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHub_Broadcast(t *testing.T) {
	h := newHub()
	srv := httptest.NewServer(h)
	defer srv.Close()

	a, b := dial(t, srv), dial(t, srv)
	require.Eventually(t, func() bool { return h.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	batch := &pipeline.Batch{
		Meta:   pipeline.Meta{IMEI: "356307042441013", Source: "tcp"},
		Tracks: []*pipeline.TrackingObject{{IMEI: "356307042441013", Spd: 42}},
	}
	require.NoError(t, h.Publish(context.Background(), batch))

	for _, c := range []*websocket.Conn{a, b} {
		_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
		var got pipeline.Batch
		require.NoError(t, c.ReadJSON(&got))
		assert.Equal(t, "356307042441013", got.Meta.IMEI)
		require.Len(t, got.Tracks, 1)
		assert.Equal(t, 42, got.Tracks[0].Spd)
	}
}

func TestHub_ClientLeaves(t *testing.T) {
	h := newHub()
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := dial(t, srv)
	require.Eventually(t, func() bool { return h.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, c.Close())
	require.Eventually(t, func() bool { return h.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)

	// publishing with nobody listening is fine
	assert.NoError(t, h.Publish(context.Background(), &pipeline.Batch{}))
}

func TestHub_DropsSlowClient(t *testing.T) {
	h := newHub()
	c := &client{remote: "slow", send: make(chan []byte, 1)}
	h.add(c)
	c.send <- []byte("x")

	require.NoError(t, h.Publish(context.Background(), &pipeline.Batch{}))
	assert.Equal(t, 0, h.Clients())

	<-c.send
	_, open := <-c.send
	assert.False(t, open)
}
