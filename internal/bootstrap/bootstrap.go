package bootstrap

import (
	"fmt"

	"github.com/9triver/switchboard/internal/config"
	"github.com/9triver/switchboard/internal/dispatch"
	"github.com/9triver/switchboard/internal/handlers"
	"github.com/9triver/switchboard/internal/metrics"
	"github.com/9triver/switchboard/internal/pubsub"
	"github.com/9triver/switchboard/internal/registrar"
	"github.com/9triver/switchboard/internal/router"
	"github.com/9triver/switchboard/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

// Initialize 初始化所有模块
// 按照依赖顺序初始化：Transport -> Dispatch -> Registrar -> Admin HTTP
// extra 中的处理器会覆盖同名的内置处理器
func Initialize(cfg *config.Config, extra map[string]router.Handler) (*Switchboard, error) {
	sb := &Switchboard{
		Config:  cfg,
		Metrics: prometheus.NewRegistry(),
	}
	sb.Metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// 1. 初始化 Transport 层
	if err := bootstrapTransport(sb); err != nil {
		return nil, fmt.Errorf("failed to initialize transport layer: %w", err)
	}

	// 2. 初始化分发循环
	if err := bootstrapDispatch(sb, extra); err != nil {
		sb.Transport.Close()
		return nil, fmt.Errorf("failed to initialize dispatch loop: %w", err)
	}

	// 3. 服务注册
	if cfg.Registrar.Enabled {
		sb.Registrar = registrar.New(registrar.Options{
			Address:       cfg.Registrar.Address,
			Name:          cfg.Service.Name,
			Port:          cfg.Service.BindPort,
			CheckInterval: cfg.Registrar.CheckInterval,
			CheckTTL:      cfg.Registrar.CheckTTL,
			PassInterval:  cfg.Registrar.PassInterval(),
		})
	}

	// 4. 管理 HTTP 服务；websocket 传输时监听 service.bind_port，使注册的端口可直接接入
	if cfg.Admin.Enabled {
		port := cfg.Admin.Port
		if sb.Hub != nil {
			port = cfg.Service.BindPort
		}
		opts := server.Options{
			Port:        port,
			ServiceName: cfg.Service.Name,
			Transport:   cfg.Transport.Kind,
			Gatherer:    sb.Metrics,
		}
		if sb.Hub != nil {
			opts.WebSocket = sb.Hub
		}
		sb.AdminServer = server.NewServer(opts)
	}

	logrus.Info("All modules initialized successfully")
	return sb, nil
}

func bootstrapDispatch(sb *Switchboard, extra map[string]router.Handler) error {
	policy, err := router.PolicyByName(sb.Config.Dispatch.UnknownMethod)
	if err != nil {
		return err
	}

	// publish 处理器需要 dispatcher，而 dispatcher 需要注册表，这里延迟绑定
	var d *dispatch.Dispatcher
	emitter := handlers.EmitterFunc(func(topic string, data any) error {
		return d.Emit(topic, data)
	})

	methods := handlers.Builtin(emitter)
	for name, h := range extra {
		methods[name] = h
	}

	m := metrics.NewDispatch(sb.Metrics)
	var sink pubsub.Sink = pubsub.LogSink{}
	if sb.Config.Dispatch.EventSink == config.EventSinkTransport {
		sink = &dispatch.TransportSink{Transport: sb.Transport, Metrics: m}
	}

	d = dispatch.New(dispatch.Options{
		Transport:     sb.Transport,
		Registry:      router.NewRegistry(methods, policy),
		PollTimeout:   sb.Config.Dispatch.PollTimeout(),
		EmitQueueSize: sb.Config.Dispatch.EmitQueueSize,
		Sink:          sink,
		Metrics:       m,
	})
	sb.Dispatcher = d
	return nil
}
