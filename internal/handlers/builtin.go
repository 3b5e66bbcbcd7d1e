package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/9triver/switchboard/internal/router"
	"github.com/sirupsen/logrus"
)

// Emitter 向 topic 的订阅者发布事件
type Emitter interface {
	Emit(topic string, data any) error
}

// EmitterFunc 适配普通函数为 Emitter
type EmitterFunc func(topic string, data any) error

func (f EmitterFunc) Emit(topic string, data any) error {
	return f(topic, data)
}

// Ping 回复 "pong"
func Ping(_ context.Context, call *router.Call, out router.Responder) {
	reply(out, call, "pong")
}

// Echo 回复第一个参数；没有参数时回复 null
func Echo(_ context.Context, call *router.Call, out router.Responder) {
	if len(call.Args) == 0 {
		reply(out, call, nil)
		return
	}
	reply(out, call, call.Args[0])
}

// Publish 返回 publish(topic, data) 处理器：把 data 发布给 topic 的订阅者，回复 true
func Publish(emitter Emitter) router.Handler {
	return func(_ context.Context, call *router.Call, out router.Responder) {
		var topic string
		if err := call.Arg(0, &topic); err != nil {
			reply(out, call, fmt.Errorf("publish: topic: %w", err))
			return
		}
		data := json.RawMessage("null")
		if len(call.Args) > 1 {
			data = call.Args[1]
		}
		if err := emitter.Emit(topic, data); err != nil {
			reply(out, call, err)
			return
		}
		reply(out, call, true)
	}
}

// Builtin 返回内置处理器集合
func Builtin(emitter Emitter) map[string]router.Handler {
	return map[string]router.Handler{
		"ping":    Ping,
		"echo":    Echo,
		"publish": Publish(emitter),
	}
}

func reply(out router.Responder, call *router.Call, result any) {
	if err := out.SendResponse(call.Token, result); err != nil {
		logrus.Warnf("Failed to respond to %s (%s): %v", call.Token.Sender, call.Method, err)
	}
}
