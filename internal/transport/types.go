package transport

import (
	"context"
	"errors"
	"time"
)

// ErrClosed 传输层已关闭
var ErrClosed = errors.New("transport closed")

// Identity 标识消息到达的逻辑连接，只在该连接存活期间有效
type Identity string

// Frame 一次原子接收事件：发送方标识 + 负载
type Frame struct {
	Sender  Identity
	Payload []byte
}

// Transport 抽象可寻址的双向消息传输（ZMQ ROUTER、WebSocket 等）。
// Poll 最多阻塞 timeout，返回当前已就绪的全部消息；没有消息时返回空切片。
type Transport interface {
	Poll(ctx context.Context, timeout time.Duration) ([]Frame, error)
	Send(sender Identity, payload []byte) error
	Close() error
}

// Drain 从 recv 中收集已就绪的帧：先等待至多 timeout 取得第一帧，
// 然后非阻塞地取走剩余已就绪的帧，最多 limit 个。
// recv 被关闭时返回 ErrClosed。
func Drain(ctx context.Context, recv <-chan Frame, timeout time.Duration, limit int) ([]Frame, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var frames []Frame
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	case f, ok := <-recv:
		if !ok {
			return nil, ErrClosed
		}
		frames = append(frames, f)
	}

	for len(frames) < limit {
		select {
		case f, ok := <-recv:
			if !ok {
				return frames, nil
			}
			frames = append(frames, f)
		default:
			return frames, nil
		}
	}
	return frames, nil
}
