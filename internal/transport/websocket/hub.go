package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/9triver/switchboard/internal/transport"
	"github.com/gorilla/websocket"
	"github.com/lithammer/shortuuid/v4"
	"github.com/sirupsen/logrus"
)

// ErrUnknownPeer 目标连接不存在（已断开或从未连接）
var ErrUnknownPeer = errors.New("unknown websocket peer")

const (
	maxFramesPerPoll = 1024
	sendBufferSize   = 256
	writeWait        = 10 * time.Second
)

// Client represents a WebSocket client connection
type Client struct {
	ID   transport.Identity
	Conn *websocket.Conn
	Send chan []byte
}

// Hub 把每个 WebSocket 连接当作一个可寻址的发送方，
// 入站文本消息汇聚到同一个帧队列供分发循环轮询。
type Hub struct {
	mutex   sync.RWMutex
	clients map[transport.Identity]*Client
	frames  chan transport.Frame
	closed  bool
	// done 在 Close 时关闭，唤醒阻塞在 frames 上的 readPump
	done    chan struct{}
	readers sync.WaitGroup
}

var _ transport.Transport = (*Hub)(nil)

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return newHub(maxFramesPerPoll)
}

func newHub(frameBuffer int) *Hub {
	return &Hub{
		clients: make(map[transport.Identity]*Client),
		frames:  make(chan transport.Frame, frameBuffer),
		done:    make(chan struct{}),
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeHTTP upgrades the request and registers the connection under a fresh identity
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Warnf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		ID:   transport.Identity("ws-" + shortuuid.New()),
		Conn: conn,
		Send: make(chan []byte, sendBufferSize),
	}

	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		conn.Close()
		return
	}
	h.clients[client.ID] = client
	h.readers.Add(1)
	h.mutex.Unlock()
	logrus.Infof("WebSocket client registered: %s", client.ID)

	go h.writePump(client)
	go h.readPump(client)
}

func (h *Hub) unregister(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.Send)
	}
	h.mutex.Unlock()
	logrus.Infof("WebSocket client unregistered: %s", client.ID)
}

// writePump pumps messages from the hub to the websocket connection
func (h *Hub) writePump(client *Client) {
	defer client.Conn.Close()

	for payload := range client.Send {
		client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			logrus.Warnf("WebSocket write to %s failed: %v", client.ID, err)
			return
		}
	}
	client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump pumps messages from the websocket connection to the hub
func (h *Hub) readPump(client *Client) {
	defer func() {
		h.unregister(client)
		client.Conn.Close()
		h.readers.Done()
	}()

	for {
		_, payload, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.Warnf("WebSocket error: %v", err)
			}
			return
		}

		select {
		case h.frames <- transport.Frame{Sender: client.ID, Payload: payload}:
		case <-h.done:
			return
		}
	}
}

// Poll waits up to timeout for the first ready message and then drains the rest without blocking.
func (h *Hub) Poll(ctx context.Context, timeout time.Duration) ([]transport.Frame, error) {
	h.mutex.RLock()
	closed := h.closed
	h.mutex.RUnlock()
	if closed {
		return nil, transport.ErrClosed
	}
	return transport.Drain(ctx, h.frames, timeout, maxFramesPerPoll)
}

// Send queues payload on the connection's write pump
func (h *Hub) Send(sender transport.Identity, payload []byte) error {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if h.closed {
		return transport.ErrClosed
	}
	client, ok := h.clients[sender]
	if !ok {
		return fmt.Errorf("send to %s: %w", sender, ErrUnknownPeer)
	}
	select {
	case client.Send <- payload:
		return nil
	default:
		return fmt.Errorf("send to %s: buffer full", sender)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	close(h.done)
	for id, client := range h.clients {
		delete(h.clients, id)
		close(client.Send)
	}
	logrus.Info("WebSocket hub closed")
	return nil
}
