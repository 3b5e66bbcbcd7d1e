package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"

	"github.com/9triver/switchboard/internal/envelope"
	"github.com/9triver/switchboard/internal/transport"
	"github.com/sirupsen/logrus"
)

// ErrUnknownMethod 请求的方法没有注册处理器
var ErrUnknownMethod = errors.New("unknown method")

// ReplyToken 是请求/响应关联的显式值对象：接收时捕获的发送方与请求 id
type ReplyToken struct {
	Sender    transport.Identity
	RequestID json.RawMessage
}

// Responder 是处理器产生可观察输出的唯一途径
type Responder interface {
	SendResponse(token ReplyToken, result any) error
}

// Call 一次 method 调用
type Call struct {
	Method string
	Args   []json.RawMessage
	Token  ReplyToken
}

// Arg 把第 i 个参数解码到 v
func (c *Call) Arg(i int, v any) error {
	env := envelope.Envelope{Args: c.Args}
	return env.Arg(i, v)
}

// Handler 在分发循环所在的 goroutine 上同步执行；
// 可以调用 out.SendResponse 零次或多次，行为良好的处理器只调用一次。
type Handler func(ctx context.Context, call *Call, out Responder)

// Registry 方法名到处理器的映射，构造后不可变
type Registry struct {
	handlers map[string]Handler
	policy   UnknownMethodPolicy
}

// NewRegistry 复制 handlers 构造注册表；未指定策略时使用 SilentPolicy
func NewRegistry(handlers map[string]Handler, policy UnknownMethodPolicy) *Registry {
	copied := make(map[string]Handler, len(handlers))
	for name, h := range handlers {
		if h == nil {
			continue
		}
		copied[name] = h
	}
	if policy == nil {
		policy = SilentPolicy{}
	}
	return &Registry{handlers: copied, policy: policy}
}

// Lookup 查找处理器
func (r *Registry) Lookup(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Names 返回已注册的方法名（排序后）
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke 调用 call.Method 对应的处理器；找不到时交给 UnknownMethodPolicy。
// 返回 false 表示方法未注册。处理器 panic 会被恢复并记录，不会终止分发循环。
func (r *Registry) Invoke(ctx context.Context, call *Call, out Responder) bool {
	h, ok := r.handlers[call.Method]
	if !ok {
		r.policy.UnknownMethod(ctx, call, out)
		return false
	}

	defer func() {
		if rec := recover(); rec != nil {
			logrus.WithFields(logrus.Fields{
				"method": call.Method,
				"sender": call.Token.Sender,
			}).Errorf("Handler panicked: %v\n%s", rec, debug.Stack())
		}
	}()
	h(ctx, call, out)
	return true
}

// UnknownMethodPolicy 决定未知方法时的行为，是唯一的策略切换点
type UnknownMethodPolicy interface {
	UnknownMethod(ctx context.Context, call *Call, out Responder)
}

// SilentPolicy 只记录日志，不向调用方发送任何消息
type SilentPolicy struct{}

func (SilentPolicy) UnknownMethod(_ context.Context, call *Call, _ Responder) {
	logrus.Warnf("%v: %q from %s", ErrUnknownMethod, call.Method, call.Token.Sender)
}

// ReplyPolicy 向调用方回送带 error 字段的响应
type ReplyPolicy struct{}

func (ReplyPolicy) UnknownMethod(_ context.Context, call *Call, out Responder) {
	logrus.Warnf("%v: %q from %s, replying with error", ErrUnknownMethod, call.Method, call.Token.Sender)
	err := out.SendResponse(call.Token, UnknownMethodError{Method: call.Method})
	if err != nil {
		logrus.Warnf("Failed to reply unknown method to %s: %v", call.Token.Sender, err)
	}
}

// UnknownMethodError 是 ReplyPolicy 发送的结果值；Responder 会把它编码到响应的 error 字段
type UnknownMethodError struct {
	Method string
}

func (e UnknownMethodError) Error() string {
	return fmt.Sprintf("%v: %s", ErrUnknownMethod, e.Method)
}

func (e UnknownMethodError) Unwrap() error {
	return ErrUnknownMethod
}

// PolicyByName 按配置名称选择策略："silent"（默认）或 "reply"
func PolicyByName(name string) (UnknownMethodPolicy, error) {
	switch name {
	case "", "silent":
		return SilentPolicy{}, nil
	case "reply":
		return ReplyPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown method policy %q", name)
	}
}
