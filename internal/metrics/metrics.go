package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "switchboard"

// Dispatch 分发循环的指标
type Dispatch struct {
	Messages        *prometheus.CounterVec
	DecodeErrors    prometheus.Counter
	UnknownMethods  prometheus.Counter
	Responses       prometheus.Counter
	SendErrors      prometheus.Counter
	EventsDelivered prometheus.Counter
	Subscriptions   prometheus.Gauge
	HandlerDuration *prometheus.HistogramVec
}

// NewDispatch 在 reg 上注册分发指标；reg 为 nil 时指标不注册（测试使用）
func NewDispatch(reg prometheus.Registerer) *Dispatch {
	factory := promauto.With(reg)

	return &Dispatch{
		Messages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "messages_total",
				Help:      "Inbound envelopes by kind",
			},
			[]string{"kind"},
		),
		DecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "decode_errors_total",
			Help:      "Inbound payloads that were not valid envelopes",
		}),
		UnknownMethods: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "unknown_methods_total",
			Help:      "Method calls with no registered handler",
		}),
		Responses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "responses_total",
			Help:      "Response envelopes sent",
		}),
		SendErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "send_errors_total",
			Help:      "Responses that could not be handed to the transport",
		}),
		EventsDelivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pubsub",
			Name:      "events_delivered_total",
			Help:      "Event deliveries to subscribers",
		}),
		Subscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pubsub",
			Name:      "subscriptions",
			Help:      "Current number of subscription records",
		}),
		HandlerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "handler_duration_seconds",
				Help:      "Time spent inside method handlers",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method"},
		),
	}
}
