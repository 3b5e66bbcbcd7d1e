package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/9triver/switchboard/internal/transport"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func pollOne(t *testing.T, h *Hub) transport.Frame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		frames, err := h.Poll(context.Background(), 50*time.Millisecond)
		require.NoError(t, err)
		if len(frames) > 0 {
			return frames[0]
		}
	}
	t.Fatal("timed out waiting for frame")
	return transport.Frame{}
}

func TestHub_RoundTrip(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	conn := dial(t, srv)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"kind":"method"}`)))

	frame := pollOne(t, hub)
	assert.True(t, strings.HasPrefix(string(frame.Sender), "ws-"))
	assert.Equal(t, `{"kind":"method"}`, string(frame.Payload))
	assert.Equal(t, 1, hub.ClientCount())

	require.NoError(t, hub.Send(frame.Sender, []byte(`{"kind":"response"}`)))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, reply, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"kind":"response"}`, string(reply))
}

func TestHub_DistinctIdentitiesPerConnection(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	a := dial(t, srv)
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("a")))
	first := pollOne(t, hub)

	b := dial(t, srv)
	require.NoError(t, b.WriteMessage(websocket.TextMessage, []byte("b")))
	second := pollOne(t, hub)

	assert.NotEqual(t, first.Sender, second.Sender)
}

func TestHub_SendUnknownPeer(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	err := hub.Send("ws-missing", []byte("x"))
	assert.ErrorIs(t, err, ErrUnknownPeer)
}

func TestHub_Closed(t *testing.T) {
	hub := NewHub()
	require.NoError(t, hub.Close())

	_, err := hub.Poll(context.Background(), time.Millisecond)
	assert.ErrorIs(t, err, transport.ErrClosed)
	assert.ErrorIs(t, hub.Send("ws-x", nil), transport.ErrClosed)
}

func TestHub_CloseReleasesBlockedReaders(t *testing.T) {
	hub := newHub(1)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	for _, msg := range []string{"a", "b", "c"} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
	}
	// 不轮询，缓冲区满后 readPump 阻塞
	require.Eventually(t, func() bool { return len(hub.frames) == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, hub.Close())

	stopped := make(chan struct{})
	go func() {
		hub.readers.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("reader still blocked after Close")
	}
	assert.Equal(t, 0, hub.ClientCount())
}
