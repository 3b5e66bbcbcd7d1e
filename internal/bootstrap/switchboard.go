package bootstrap

import (
	"context"
	"errors"
	"time"

	"github.com/9triver/switchboard/internal/config"
	"github.com/9triver/switchboard/internal/dispatch"
	"github.com/9triver/switchboard/internal/registrar"
	"github.com/9triver/switchboard/internal/server"
	"github.com/9triver/switchboard/internal/transport"
	"github.com/9triver/switchboard/internal/transport/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

type Switchboard struct {
	// 配置
	Config *config.Config

	// 基础设施
	Transport transport.Transport
	Hub       *websocket.Hub // transport.kind 为 websocket 时非空
	Metrics   *prometheus.Registry

	Dispatcher  *dispatch.Dispatcher
	Registrar   *registrar.Registrar // registrar.enabled 为 false 时为空
	AdminServer *server.Server       // admin.enabled 为 false 时为空

	done chan error
}

// Start 启动注册、管理 HTTP 服务与分发循环
func (sb *Switchboard) Start(ctx context.Context) error {
	if sb.AdminServer != nil {
		sb.AdminServer.Start()
	}
	if sb.Registrar != nil {
		sb.Registrar.Start(ctx)
	}

	sb.done = make(chan error, 1)
	go func() {
		sb.done <- sb.Dispatcher.Run(ctx)
	}()
	return nil
}

// Done 分发循环退出时返回其错误
func (sb *Switchboard) Done() <-chan error {
	return sb.done
}

// Stop 停止所有服务并清理资源
func (sb *Switchboard) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if sb.Registrar != nil {
		sb.Registrar.Stop()
		if err := sb.Registrar.Deregister(ctx); err != nil {
			logrus.Warnf("Failed to deregister service: %v", err)
		}
	}

	if sb.Transport != nil {
		if err := sb.Transport.Close(); err != nil {
			logrus.Errorf("Error closing transport: %v", err)
			errs = append(errs, err)
		}
	}

	if sb.done != nil {
		select {
		case <-sb.done:
		case <-ctx.Done():
			logrus.Warn("Timed out waiting for dispatch loop to stop")
		}
	}

	if sb.AdminServer != nil {
		if err := sb.AdminServer.Stop(ctx); err != nil {
			logrus.Errorf("Error stopping admin server: %v", err)
			errs = append(errs, err)
		}
	}

	logrus.Info("All services stopped")
	return errors.Join(errs...)
}
