package bootstrap

import (
	"fmt"

	"github.com/9triver/switchboard/internal/config"
	"github.com/9triver/switchboard/internal/transport/websocket"
	"github.com/9triver/switchboard/internal/transport/zmq"
	"github.com/sirupsen/logrus"
)

// bootstrapTransport 按配置创建传输层
func bootstrapTransport(sb *Switchboard) error {
	switch sb.Config.Transport.Kind {
	case config.TransportZMQ:
		sb.Transport = zmq.NewRouterChanneler(sb.Config.Service.BindPort)
	case config.TransportWebSocket:
		// WebSocket 连接经由管理 HTTP 服务的 /ws 接入
		hub := websocket.NewHub()
		sb.Hub = hub
		sb.Transport = hub
	default:
		return fmt.Errorf("unknown transport kind %q", sb.Config.Transport.Kind)
	}

	logrus.Infof("Transport layer initialized (%s)", sb.Config.Transport.Kind)
	return nil
}
