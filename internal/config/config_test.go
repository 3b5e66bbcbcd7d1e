package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("service:\n  name: lifx\n"))
	require.NoError(t, err)

	assert.Equal(t, 5555, cfg.Service.BindPort)
	assert.Equal(t, TransportZMQ, cfg.Transport.Kind)
	assert.Equal(t, 10*time.Millisecond, cfg.Dispatch.PollTimeout())
	assert.Equal(t, 256, cfg.Dispatch.EmitQueueSize)
	assert.Equal(t, "silent", cfg.Dispatch.UnknownMethod)
	assert.Equal(t, EventSinkTransport, cfg.Dispatch.EventSink)
	assert.True(t, cfg.Registrar.Enabled)
	assert.Equal(t, "http://localhost:8500", cfg.Registrar.Address)
	assert.Equal(t, 5*time.Second, cfg.Registrar.PassInterval())
	assert.Equal(t, "10s", cfg.Registrar.CheckTTL)
	assert.True(t, cfg.Admin.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 3, cfg.Logging.KeepDays)
}

func TestParse_ExplicitValues(t *testing.T) {
	data := []byte(`
service:
  name: lamp
  bind_port: 6000
transport:
  kind: websocket
dispatch:
  poll_timeout_ms: 50
  unknown_method: reply
  event_sink: log
registrar:
  enabled: false
admin:
  port: 9090
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "lamp", cfg.Service.Name)
	assert.Equal(t, 6000, cfg.Service.BindPort)
	assert.Equal(t, TransportWebSocket, cfg.Transport.Kind)
	assert.Equal(t, 50*time.Millisecond, cfg.Dispatch.PollTimeout())
	assert.Equal(t, "reply", cfg.Dispatch.UnknownMethod)
	assert.Equal(t, EventSinkLog, cfg.Dispatch.EventSink)
	assert.False(t, cfg.Registrar.Enabled)
	assert.Equal(t, 9090, cfg.Admin.Port)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"missing name":      "service:\n  bind_port: 1\n",
		"bad transport":     "service:\n  name: a\ntransport:\n  kind: carrier-pigeon\n",
		"bad policy":        "service:\n  name: a\ndispatch:\n  unknown_method: loud\n",
		"bad event sink":    "service:\n  name: a\ndispatch:\n  event_sink: carrier-pigeon\n",
		"ws without admin":  "service:\n  name: a\ntransport:\n  kind: websocket\nadmin:\n  enabled: false\n",
		"bad ttl":           "service:\n  name: a\nregistrar:\n  check_ttl: soon\n",
		"port out of range": "service:\n  name: a\n  bind_port: 70000\n",
		"not yaml":          "service: [\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("service:\n  name: lifx\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "lifx", cfg.Service.Name)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
