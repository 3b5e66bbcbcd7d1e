package pubsub

import (
	"sort"

	"github.com/9triver/switchboard/internal/transport"
	"github.com/sirupsen/logrus"
)

// Subscription 一条订阅记录。同一 topic 下允许重复 ID。
type Subscription struct {
	ID     string             `json:"id"`
	Sender transport.Identity `json:"client_id"`
}

// Sink 接收 Emit 的投递
type Sink interface {
	Deliver(topic string, sub Subscription, data any)
}

// SinkFunc 适配普通函数为 Sink
type SinkFunc func(topic string, sub Subscription, data any)

func (f SinkFunc) Deliver(topic string, sub Subscription, data any) {
	f(topic, sub, data)
}

// LogSink 只记录候选订阅者，不经过传输层发送
type LogSink struct{}

func (LogSink) Deliver(topic string, sub Subscription, data any) {
	logrus.WithFields(logrus.Fields{
		"topic":  topic,
		"id":     sub.ID,
		"sender": sub.Sender,
	}).Infof("Subscribed: %v", data)
}

// Table 按 topic 保存订阅记录，记录按插入顺序排列。
// 不加锁：只允许分发循环所在的 goroutine 访问。
type Table struct {
	topics map[string][]Subscription
}

func NewTable() *Table {
	return &Table{topics: make(map[string][]Subscription)}
}

// Subscribe 追加一条记录，不做去重
func (t *Table) Subscribe(topic, id string, sender transport.Identity) {
	t.topics[topic] = append(t.topics[topic], Subscription{ID: id, Sender: sender})
	logrus.Debugf("Subscribed %s to %q (id %s), %d subscriber(s)", sender, topic, id, len(t.topics[topic]))
}

// Unsubscribe 删除 topic 下所有 ID 匹配的记录，返回删除数量。
// topic 变空后会被清理；重复调用是无操作。
func (t *Table) Unsubscribe(topic, id string) int {
	subs, ok := t.topics[topic]
	if !ok {
		return 0
	}

	kept := subs[:0]
	removed := 0
	for _, s := range subs {
		if s.ID == id {
			removed++
			continue
		}
		kept = append(kept, s)
	}
	// clear the tail so dropped records are not retained by the backing array
	for i := len(kept); i < len(subs); i++ {
		subs[i] = Subscription{}
	}

	if len(kept) == 0 {
		delete(t.topics, topic)
	} else {
		t.topics[topic] = kept
	}
	logrus.Debugf("Unsubscribed id %s from %q, removed %d", id, topic, removed)
	return removed
}

// Emit 按插入顺序把 data 投递给 topic 的每个订阅者，返回通知数量。
// 投递前先拍快照，sink 中修改订阅表不影响本次迭代。
func (t *Table) Emit(topic string, data any, sink Sink) int {
	subs := t.Subscribers(topic)
	for _, s := range subs {
		sink.Deliver(topic, s, data)
	}
	return len(subs)
}

// Subscribers 返回 topic 当前订阅记录的副本
func (t *Table) Subscribers(topic string) []Subscription {
	subs := t.topics[topic]
	if len(subs) == 0 {
		return nil
	}
	snapshot := make([]Subscription, len(subs))
	copy(snapshot, subs)
	return snapshot
}

// Topics 返回有订阅者的 topic（排序后）
func (t *Table) Topics() []string {
	topics := make([]string, 0, len(t.topics))
	for topic := range t.topics {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// Len 返回全部订阅记录数
func (t *Table) Len() int {
	n := 0
	for _, subs := range t.topics {
		n += len(subs)
	}
	return n
}
