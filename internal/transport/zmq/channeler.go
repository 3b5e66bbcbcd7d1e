package zmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/9triver/switchboard/internal/transport"
	"github.com/sirupsen/logrus"
	"gopkg.in/zeromq/goczmq.v4"
)

// ErrSendQueueFull is returned when the channeler cannot accept another outgoing message.
var ErrSendQueueFull = errors.New("zmq send queue is full")

const maxFramesPerPoll = 1024

// RouterChanneler wraps goczmq.Channeler with a ROUTER socket that clients (DEALER) connect to.
// Every received multi-part message [identity, payload] becomes one transport.Frame.
type RouterChanneler struct {
	mu       sync.RWMutex
	recv     <-chan [][]byte
	send     chan<- [][]byte
	destroy  func()
	frames   chan transport.Frame
	closed   bool
	stopPump chan struct{}
}

var _ transport.Transport = (*RouterChanneler)(nil)

// NewRouterChanneler binds a ROUTER socket on tcp://*:port.
func NewRouterChanneler(port int) *RouterChanneler {
	endpoint := fmt.Sprintf("tcp://*:%d", port)
	base := goczmq.NewRouterChanneler(endpoint)
	logrus.Infof("ZMQ router bound on %s", endpoint)
	return newRouterChanneler(base.RecvChan, base.SendChan, base.Destroy)
}

func newRouterChanneler(recv <-chan [][]byte, send chan<- [][]byte, destroy func()) *RouterChanneler {
	rc := &RouterChanneler{
		recv:     recv,
		send:     send,
		destroy:  destroy,
		frames:   make(chan transport.Frame, maxFramesPerPoll),
		stopPump: make(chan struct{}),
	}
	go rc.pump()
	return rc
}

// pump converts raw multi-part messages into frames
func (rc *RouterChanneler) pump() {
	defer close(rc.frames)
	for {
		select {
		case <-rc.stopPump:
			return
		case msg, ok := <-rc.recv:
			if !ok {
				logrus.Info("ZMQ RecvChan closed")
				return
			}
			if len(msg) < 2 {
				logrus.Warnf("Received invalid message format, expected at least 2 frames, got %d", len(msg))
				continue
			}
			// A DEALER may send extra parts; the last one carries the payload.
			frame := transport.Frame{
				Sender:  transport.Identity(msg[0]),
				Payload: msg[len(msg)-1],
			}
			logrus.Debugf("Received message from %s (size: %d bytes)", frame.Sender, len(frame.Payload))
			select {
			case rc.frames <- frame:
			case <-rc.stopPump:
				return
			}
		}
	}
}

// Poll waits up to timeout for the first ready message and then drains the rest without blocking.
func (rc *RouterChanneler) Poll(ctx context.Context, timeout time.Duration) ([]transport.Frame, error) {
	rc.mu.RLock()
	closed := rc.closed
	rc.mu.RUnlock()
	if closed {
		return nil, transport.ErrClosed
	}
	return transport.Drain(ctx, rc.frames, timeout, maxFramesPerPoll)
}

// Send addresses payload to the client identified by sender.
func (rc *RouterChanneler) Send(sender transport.Identity, payload []byte) error {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	if rc.closed {
		logrus.Warnf("Attempted to send message to %s but channeler is closed", sender)
		return transport.ErrClosed
	}

	select {
	case rc.send <- [][]byte{[]byte(sender), payload}:
		logrus.Debugf("Sent message to %s via ZMQ SendChan (size: %d bytes)", sender, len(payload))
		return nil
	default:
		return fmt.Errorf("send to %s: %w", sender, ErrSendQueueFull)
	}
}

// Close destroys the ZMQ Channeler and releases all resources
func (rc *RouterChanneler) Close() error {
	rc.mu.Lock()
	if rc.closed {
		rc.mu.Unlock()
		return nil
	}
	rc.closed = true
	close(rc.stopPump)
	rc.mu.Unlock()

	if rc.destroy != nil {
		rc.destroy()
	}
	logrus.Info("ZMQ Channeler closed and resources released")
	return nil
}
