package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/9triver/switchboard/internal/envelope"
	"github.com/9triver/switchboard/internal/metrics"
	"github.com/9triver/switchboard/internal/pubsub"
	"github.com/9triver/switchboard/internal/router"
	"github.com/9triver/switchboard/internal/transport"
	"github.com/sirupsen/logrus"
)

var (
	// ErrUnknownKind 消息 kind 不在可识别集合中
	ErrUnknownKind = errors.New("unrecognized message kind")
	// ErrEmitQueueFull 事件队列已满
	ErrEmitQueueFull = errors.New("emit queue is full")
)

const (
	defaultPollTimeout   = 10 * time.Millisecond
	defaultEmitQueueSize = 256
)

type Options struct {
	Transport     transport.Transport
	Registry      *router.Registry
	PollTimeout   time.Duration
	EmitQueueSize int
	Sink          pubsub.Sink
	Metrics       *metrics.Dispatch
}

type emitRequest struct {
	topic string
	data  any
}

// Dispatcher 消息分发循环。
// 注册表与订阅表只由 Run 所在的 goroutine 访问，处理器在该 goroutine 上同步执行。
type Dispatcher struct {
	tr          transport.Transport
	registry    *router.Registry
	table       *pubsub.Table
	sink        pubsub.Sink
	metrics     *metrics.Dispatch
	pollTimeout time.Duration
	emits       chan emitRequest
}

var _ router.Responder = (*Dispatcher)(nil)

func New(opts Options) *Dispatcher {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = defaultPollTimeout
	}
	if opts.EmitQueueSize <= 0 {
		opts.EmitQueueSize = defaultEmitQueueSize
	}
	if opts.Sink == nil {
		opts.Sink = pubsub.LogSink{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewDispatch(nil)
	}
	if opts.Registry == nil {
		opts.Registry = router.NewRegistry(nil, nil)
	}

	return &Dispatcher{
		tr:          opts.Transport,
		registry:    opts.Registry,
		table:       pubsub.NewTable(),
		sink:        opts.Sink,
		metrics:     opts.Metrics,
		pollTimeout: opts.PollTimeout,
		emits:       make(chan emitRequest, opts.EmitQueueSize),
	}
}

// Run 轮询传输层直到 ctx 结束。单条消息的错误只记录日志，不会终止循环；
// 传输层关闭时返回 transport.ErrClosed。
func (d *Dispatcher) Run(ctx context.Context) error {
	logrus.Infof("Dispatch loop started (poll timeout %s, methods %v)", d.pollTimeout, d.registry.Names())
	defer logrus.Info("Dispatch loop stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}
		d.drainEmits()

		frames, err := d.tr.Poll(ctx, d.pollTimeout)
		if err != nil {
			switch {
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return nil
			case errors.Is(err, transport.ErrClosed):
				return err
			}
			logrus.Warnf("Poll failed: %v", err)
			if !sleepCtx(ctx, d.pollTimeout) {
				return nil
			}
			continue
		}

		for _, frame := range frames {
			d.HandleFrame(ctx, frame)
		}
	}
}

// HandleFrame 解码并路由一条消息
func (d *Dispatcher) HandleFrame(ctx context.Context, frame transport.Frame) {
	env, err := envelope.Decode(frame.Payload)
	if err != nil {
		d.metrics.DecodeErrors.Inc()
		logrus.Warnf("Dropping message from %s: %v", frame.Sender, err)
		return
	}
	logrus.Debugf("%s ==> %s", frame.Sender, frame.Payload)

	switch env.Kind {
	case envelope.KindMethod:
		d.metrics.Messages.WithLabelValues(string(env.Kind)).Inc()
		d.handleMethod(ctx, frame.Sender, env)
	case envelope.KindSubscribe:
		d.metrics.Messages.WithLabelValues(string(env.Kind)).Inc()
		d.table.Subscribe(env.Type, env.CorrelationID(), frame.Sender)
		d.metrics.Subscriptions.Set(float64(d.table.Len()))
	case envelope.KindUnsubscribe:
		d.metrics.Messages.WithLabelValues(string(env.Kind)).Inc()
		d.table.Unsubscribe(env.Type, env.CorrelationID())
		d.metrics.Subscriptions.Set(float64(d.table.Len()))
	default:
		d.metrics.Messages.WithLabelValues("unrecognized").Inc()
		logrus.Warnf("%v: %q from %s", ErrUnknownKind, env.Kind, frame.Sender)
	}
}

func (d *Dispatcher) handleMethod(ctx context.Context, sender transport.Identity, env *envelope.Envelope) {
	call := &router.Call{
		Method: env.Method,
		Args:   env.Args,
		Token: router.ReplyToken{
			Sender:    sender,
			RequestID: env.ID,
		},
	}

	start := time.Now()
	if !d.registry.Invoke(ctx, call, d) {
		d.metrics.UnknownMethods.Inc()
		return
	}
	d.metrics.HandlerDuration.WithLabelValues(env.Method).Observe(time.Since(start).Seconds())
}

// SendResponse 把 result 编码为携带原请求 id 的响应并发回原发送方。
// result 是 error 时写入响应的 error 字段。
func (d *Dispatcher) SendResponse(token router.ReplyToken, result any) error {
	resp := envelope.NewResponse(token.RequestID, result)
	if err, ok := result.(error); ok {
		resp.Response = nil
		resp.Error = err.Error()
	}

	data, err := envelope.Encode(resp)
	if err != nil {
		d.metrics.SendErrors.Inc()
		return fmt.Errorf("encode response for %s: %w", token.Sender, err)
	}
	if err := d.tr.Send(token.Sender, data); err != nil {
		d.metrics.SendErrors.Inc()
		return fmt.Errorf("send response to %s: %w", token.Sender, err)
	}
	d.metrics.Responses.Inc()
	logrus.Debugf("%s <== %s", token.Sender, data)
	return nil
}

// Emit 把事件排入队列，由分发循环在下一轮投递给 topic 的订阅者。可在任意 goroutine 调用。
func (d *Dispatcher) Emit(topic string, data any) error {
	select {
	case d.emits <- emitRequest{topic: topic, data: data}:
		return nil
	default:
		return fmt.Errorf("emit %q: %w", topic, ErrEmitQueueFull)
	}
}

func (d *Dispatcher) drainEmits() {
	for {
		select {
		case req := <-d.emits:
			n := d.table.Emit(req.topic, req.data, d.sink)
			d.metrics.EventsDelivered.Add(float64(n))
		default:
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
