package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// ErrDecode 入站负载不是合法的 JSON 对象
var ErrDecode = errors.New("malformed envelope")

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Kind 消息类型
type Kind string

// UnmarshalJSON 宽松解析 kind：非字符串值保留其 JSON 文本，交给分发循环按未知类型处理
func (k *Kind) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := codec.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*k = Kind(s)
		return nil
	}
	if bytes.Equal(trimmed, []byte("null")) {
		*k = ""
		return nil
	}
	*k = Kind(CompactID(trimmed))
	return nil
}

const (
	KindMethod      Kind = "method"
	KindSubscribe   Kind = "subscribe"
	KindUnsubscribe Kind = "unsubscribe"
	KindResponse    Kind = "response"
)

// Envelope 客户端与服务之间交换的消息单元。
// ID 保留原始 JSON 文本，响应中原样回传。
type Envelope struct {
	Kind     Kind              `json:"kind"`
	ID       json.RawMessage   `json:"id"`
	Method   string            `json:"method,omitempty"`
	Args     []json.RawMessage `json:"args,omitempty"`
	Type     string            `json:"type,omitempty"`
	Response any               `json:"response,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// response 出站响应的线上格式，response 字段始终存在（结果为空时是 null）
type response struct {
	Kind     Kind            `json:"kind"`
	ID       json.RawMessage `json:"id"`
	Type     string          `json:"type,omitempty"`
	Response any             `json:"response"`
	Error    string          `json:"error,omitempty"`
}

// Decode 解析入站负载。缺失或未知的 kind 不算解码错误，由分发循环处理。
func Decode(data []byte) (*Envelope, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: payload is not an object", ErrDecode)
	}

	env := &Envelope{}
	if err := codec.Unmarshal(trimmed, env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return env, nil
}

// Encode 序列化出站消息
func Encode(env *Envelope) ([]byte, error) {
	if env.Kind == KindResponse {
		id := env.ID
		if len(id) == 0 {
			id = json.RawMessage("null")
		}
		return codec.Marshal(response{
			Kind:     env.Kind,
			ID:       id,
			Type:     env.Type,
			Response: env.Response,
			Error:    env.Error,
		})
	}
	return codec.Marshal(env)
}

// NewResponse 构造携带原请求 id 的响应
func NewResponse(id json.RawMessage, result any) *Envelope {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	return &Envelope{
		Kind:     KindResponse,
		ID:       id,
		Response: result,
	}
}

// NewEvent 构造投递给订阅者的事件：id 为订阅 id，type 为 topic
func NewEvent(subscriptionID string, topic string, data any) *Envelope {
	env := NewResponse(json.RawMessage(subscriptionID), data)
	env.Type = topic
	return env
}

// NewRequest 构造 method 请求（客户端使用）
func NewRequest(id string, method string, args ...any) (*Envelope, error) {
	rawID, err := codec.Marshal(id)
	if err != nil {
		return nil, err
	}
	env := &Envelope{Kind: KindMethod, ID: rawID, Method: method}
	for i, arg := range args {
		raw, err := codec.Marshal(arg)
		if err != nil {
			return nil, fmt.Errorf("encode arg %d: %w", i, err)
		}
		env.Args = append(env.Args, raw)
	}
	return env, nil
}

// Arg 把第 i 个参数解码到 v
func (e *Envelope) Arg(i int, v any) error {
	if i < 0 || i >= len(e.Args) {
		return fmt.Errorf("argument %d out of range (have %d)", i, len(e.Args))
	}
	return codec.Unmarshal(e.Args[i], v)
}

// CorrelationID 返回压缩后的 id 文本，缺失时为 "null"
func (e *Envelope) CorrelationID() string {
	return CompactID(e.ID)
}

// CompactID 规范化 id 的 JSON 文本，使 {"a": 1} 与 {"a":1} 视为同一个 id
func CompactID(id json.RawMessage) string {
	if len(id) == 0 {
		return "null"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, id); err != nil {
		return string(id)
	}
	return buf.String()
}
