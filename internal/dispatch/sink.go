package dispatch

import (
	"github.com/9triver/switchboard/internal/envelope"
	"github.com/9triver/switchboard/internal/metrics"
	"github.com/9triver/switchboard/internal/pubsub"
	"github.com/9triver/switchboard/internal/transport"
	"github.com/sirupsen/logrus"
)

// TransportSink 通过传输层把事件发给订阅者。
// 事件复用响应格式：id 为订阅时的 id，type 为 topic，response 为事件数据。
type TransportSink struct {
	Transport transport.Transport
	Metrics   *metrics.Dispatch
}

var _ pubsub.Sink = (*TransportSink)(nil)

func (s *TransportSink) Deliver(topic string, sub pubsub.Subscription, data any) {
	payload, err := envelope.Encode(envelope.NewEvent(sub.ID, topic, data))
	if err != nil {
		s.sendFailed()
		logrus.Warnf("Failed to encode event %q for %s: %v", topic, sub.Sender, err)
		return
	}
	if err := s.Transport.Send(sub.Sender, payload); err != nil {
		// 订阅方可能已断开，记录后继续投递其他订阅者
		s.sendFailed()
		logrus.Warnf("Failed to deliver event %q to %s: %v", topic, sub.Sender, err)
		return
	}
	logrus.Debugf("%s <== %s", sub.Sender, payload)
}

func (s *TransportSink) sendFailed() {
	if s.Metrics != nil {
		s.Metrics.SendErrors.Inc()
	}
}
