// Package client 是 switchboard 服务的 DEALER 客户端：
// 发送 method/subscribe/unsubscribe 消息，并按 id 关联异步响应。
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/9triver/switchboard/internal/envelope"
	jsoniter "github.com/json-iterator/go"
	"github.com/lithammer/shortuuid/v4"
	"github.com/sirupsen/logrus"
	"gopkg.in/zeromq/goczmq.v4"
)

var (
	// ErrTimeout 等待响应超时（未知方法在默认策略下也表现为超时）
	ErrTimeout = errors.New("timed out waiting for response")
	// ErrRemote 服务返回了带 error 字段的响应
	ErrRemote = errors.New("remote error")
)

const pollInterval = 10 * time.Millisecond

// conn 是客户端所需的最小套接字能力
type conn interface {
	send(payload []byte) error
	// recv 最多等待 timeout；没有消息时返回 nil, nil
	recv(timeout time.Duration) ([]byte, error)
	close()
}

type Options struct {
	// Identity 为空时生成随机 identity
	Identity string
	// Timeout 为 Call 的默认超时
	Timeout time.Duration
}

// Client 的方法可在多个 goroutine 中调用，调用之间通过互斥锁串行化
type Client struct {
	mu       sync.Mutex
	conn     conn
	identity string
	timeout  time.Duration
}

// Dial 连接到 endpoint（例如 tcp://127.0.0.1:5555）
func Dial(endpoint string, opts Options) (*Client, error) {
	if opts.Identity == "" {
		opts.Identity = shortuuid.New()
	}
	zc, err := dialZMQ(endpoint, opts.Identity)
	if err != nil {
		return nil, err
	}
	logrus.Debugf("Connected to %s as %s", endpoint, opts.Identity)
	return newClient(zc, opts), nil
}

func newClient(c conn, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Client{conn: c, identity: opts.Identity, timeout: opts.Timeout}
}

// Identity 返回连接使用的 identity
func (c *Client) Identity() string {
	return c.identity
}

// Call 调用远程方法并等待同 id 的第一个响应。其他 id 的响应会被丢弃。
func (c *Client) Call(ctx context.Context, method string, args ...any) (*envelope.Envelope, error) {
	id := shortuuid.New()
	req, err := envelope.NewRequest(id, method, args...)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.write(req); err != nil {
		return nil, err
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	wantID := req.CorrelationID()

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s (%s): %w", method, id, ErrTimeout)
		}
		data, err := c.conn.recv(pollInterval)
		if err != nil {
			return nil, err
		}
		if data == nil {
			continue
		}
		resp, err := envelope.Decode(data)
		if err != nil {
			logrus.Warnf("Ignoring malformed reply: %v", err)
			continue
		}
		if resp.Kind != envelope.KindResponse || resp.CorrelationID() != wantID {
			logrus.Debugf("Ignoring reply for %s", resp.CorrelationID())
			continue
		}
		if resp.Error != "" {
			return resp, fmt.Errorf("%w: %s", ErrRemote, resp.Error)
		}
		return resp, nil
	}
}

// Notify 发送 method 请求但不等待响应
func (c *Client) Notify(method string, args ...any) error {
	req, err := envelope.NewRequest(shortuuid.New(), method, args...)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write(req)
}

// Subscribe 以 id 订阅 topic
func (c *Client) Subscribe(topic, id string) error {
	return c.sendTopic(envelope.KindSubscribe, topic, id)
}

// Unsubscribe 取消 id 对 topic 的订阅
func (c *Client) Unsubscribe(topic, id string) error {
	return c.sendTopic(envelope.KindUnsubscribe, topic, id)
}

// Listen 接收订阅事件并交给 fn，直到 ctx 结束。
// 事件是带 type 字段的 response，id 为订阅时使用的 id；其他消息被忽略。
func (c *Client) Listen(ctx context.Context, fn func(event *envelope.Envelope)) error {
	for ctx.Err() == nil {
		c.mu.Lock()
		data, err := c.conn.recv(pollInterval)
		c.mu.Unlock()
		if err != nil {
			return err
		}
		if data == nil {
			continue
		}
		env, err := envelope.Decode(data)
		if err != nil {
			logrus.Warnf("Ignoring malformed message: %v", err)
			continue
		}
		if env.Kind != envelope.KindResponse || env.Type == "" {
			logrus.Debugf("Ignoring non-event message %s", env.CorrelationID())
			continue
		}
		fn(env)
	}
	return nil
}

func (c *Client) sendTopic(kind envelope.Kind, topic, id string) error {
	rawID, err := jsoniter.Marshal(id)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write(&envelope.Envelope{Kind: kind, ID: rawID, Type: topic})
}

func (c *Client) write(env *envelope.Envelope) error {
	data, err := envelope.Encode(env)
	if err != nil {
		return err
	}
	logrus.Debugf("Sending: %s", data)
	return c.conn.send(data)
}

// Close 释放套接字
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.close()
}

// zmqConn 基于 goczmq DEALER 套接字
type zmqConn struct {
	sock   *goczmq.Sock
	poller *goczmq.Poller
}

func dialZMQ(endpoint, identity string) (*zmqConn, error) {
	sock := goczmq.NewSock(goczmq.Dealer, goczmq.SockSetIdentity(identity))
	if err := sock.Connect(endpoint); err != nil {
		sock.Destroy()
		return nil, fmt.Errorf("connect %s: %w", endpoint, err)
	}
	poller, err := goczmq.NewPoller(sock)
	if err != nil {
		sock.Destroy()
		return nil, fmt.Errorf("create poller: %w", err)
	}
	return &zmqConn{sock: sock, poller: poller}, nil
}

func (z *zmqConn) send(payload []byte) error {
	return z.sock.SendFrame(payload, goczmq.FlagNone)
}

func (z *zmqConn) recv(timeout time.Duration) ([]byte, error) {
	ready, err := z.poller.Wait(int(timeout / time.Millisecond))
	if err != nil {
		return nil, err
	}
	if ready == nil {
		return nil, nil
	}
	msg, err := ready.RecvMessage()
	if err != nil {
		return nil, err
	}
	if len(msg) == 0 {
		return nil, nil
	}
	return msg[len(msg)-1], nil
}

func (z *zmqConn) close() {
	z.poller.Destroy()
	z.sock.Destroy()
}
