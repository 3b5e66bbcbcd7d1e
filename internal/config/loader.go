package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// LoadConfig 从文件加载配置并应用默认值
func LoadConfig(file string) (*Config, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse 解析 YAML 配置并应用默认值
func Parse(data []byte) (*Config, error) {
	cfg := &Config{
		// 未显式关闭时默认启用
		Registrar: RegistrarConfig{Enabled: true},
		Admin:     AdminConfig{Enabled: true},
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults 为配置项设置默认值
func ApplyDefaults(cfg *Config) {
	if cfg.Service.BindPort == 0 {
		cfg.Service.BindPort = 5555
	}
	if cfg.Transport.Kind == "" {
		cfg.Transport.Kind = TransportZMQ
	}

	// 分发循环默认值
	if cfg.Dispatch.PollTimeoutMs == 0 {
		cfg.Dispatch.PollTimeoutMs = 10
	}
	if cfg.Dispatch.EmitQueueSize == 0 {
		cfg.Dispatch.EmitQueueSize = 256
	}
	if cfg.Dispatch.UnknownMethod == "" {
		cfg.Dispatch.UnknownMethod = "silent"
	}
	if cfg.Dispatch.EventSink == "" {
		cfg.Dispatch.EventSink = EventSinkTransport
	}

	// Registrar 默认值
	if cfg.Registrar.Address == "" {
		cfg.Registrar.Address = "http://localhost:8500"
	}
	if cfg.Registrar.CheckInterval == "" {
		cfg.Registrar.CheckInterval = "60s"
	}
	if cfg.Registrar.CheckTTL == "" {
		cfg.Registrar.CheckTTL = "10s"
	}
	if cfg.Registrar.PassIntervalSeconds == 0 {
		cfg.Registrar.PassIntervalSeconds = 5 // 默认 5 秒
	}

	if cfg.Admin.Port == 0 {
		cfg.Admin.Port = 8080
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.KeepDays == 0 {
		cfg.Logging.KeepDays = 3 // 默认保留 3 天
	}
}
