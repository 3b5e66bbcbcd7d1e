package config

import (
	"fmt"
	"time"
)

// Config 应用级配置
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Transport TransportConfig `yaml:"transport"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Registrar RegistrarConfig `yaml:"registrar"`
	Admin     AdminConfig     `yaml:"admin"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServiceConfig 服务标识
type ServiceConfig struct {
	Name     string `yaml:"name"`      // e.g., "lifx"
	BindPort int    `yaml:"bind_port"` // e.g., 5555
}

// TransportConfig 传输层配置
type TransportConfig struct {
	Kind string `yaml:"kind"` // "zmq" or "websocket"
}

// DispatchConfig 分发循环配置
type DispatchConfig struct {
	PollTimeoutMs int    `yaml:"poll_timeout_ms"` // e.g., 10
	EmitQueueSize int    `yaml:"emit_queue_size"` // e.g., 256
	UnknownMethod string `yaml:"unknown_method"`  // "silent" or "reply"
	EventSink     string `yaml:"event_sink"`      // "transport" or "log"
}

// RegistrarConfig 服务注册中心（Consul agent）配置
type RegistrarConfig struct {
	Enabled             bool   `yaml:"enabled"`
	Address             string `yaml:"address"`               // e.g., "http://localhost:8500"
	CheckInterval       string `yaml:"check_interval"`        // e.g., "60s"
	CheckTTL            string `yaml:"check_ttl"`             // e.g., "10s"
	PassIntervalSeconds int    `yaml:"pass_interval_seconds"` // e.g., 5
}

// AdminConfig 管理 HTTP 服务（/healthz、/metrics、/ws）
type AdminConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"` // e.g., 8080
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string `yaml:"level"`     // e.g., "info"
	Dir      string `yaml:"dir"`       // 为空时只输出到标准输出
	KeepDays int    `yaml:"keep_days"` // 日志文件保留天数
}

const (
	TransportZMQ       = "zmq"
	TransportWebSocket = "websocket"
)

const (
	EventSinkTransport = "transport"
	EventSinkLog       = "log"
)

// PollTimeout 返回轮询超时
func (c DispatchConfig) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutMs) * time.Millisecond
}

// PassInterval 返回健康检查上报间隔
func (c RegistrarConfig) PassInterval() time.Duration {
	return time.Duration(c.PassIntervalSeconds) * time.Second
}

// Validate 检查配置的合法性
func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("service.name is required")
	}
	if c.Service.BindPort <= 0 || c.Service.BindPort > 65535 {
		return fmt.Errorf("service.bind_port %d out of range", c.Service.BindPort)
	}
	switch c.Transport.Kind {
	case TransportZMQ:
	case TransportWebSocket:
		if !c.Admin.Enabled {
			return fmt.Errorf("transport.kind %q requires admin.enabled", c.Transport.Kind)
		}
	default:
		return fmt.Errorf("unknown transport.kind %q", c.Transport.Kind)
	}
	switch c.Dispatch.UnknownMethod {
	case "silent", "reply":
	default:
		return fmt.Errorf("unknown dispatch.unknown_method %q", c.Dispatch.UnknownMethod)
	}
	switch c.Dispatch.EventSink {
	case EventSinkTransport, EventSinkLog:
	default:
		return fmt.Errorf("unknown dispatch.event_sink %q", c.Dispatch.EventSink)
	}
	if _, err := time.ParseDuration(c.Registrar.CheckTTL); c.Registrar.Enabled && err != nil {
		return fmt.Errorf("registrar.check_ttl: %w", err)
	}
	return nil
}
