package registrar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

// ErrRegistryTransport 调用服务注册中心失败
var ErrRegistryTransport = errors.New("service registry call failed")

const (
	defaultAddress      = "http://localhost:8500"
	defaultPassInterval = 5 * time.Second
	requestTimeout      = 3 * time.Second
)

type Options struct {
	Address       string        // e.g., "http://localhost:8500"
	Name          string        // 服务名，同时作为 check id 的后缀
	Port          int           // 绑定端口
	CheckInterval string        // e.g., "60s"
	CheckTTL      string        // e.g., "10s"
	PassInterval  time.Duration // 健康检查上报间隔
	Client        *http.Client
}

// Check 注册时提交的健康检查定义
type Check struct {
	Interval string `json:"Interval,omitempty"`
	TTL      string `json:"TTL,omitempty"`
}

// Registration 注册请求体
type Registration struct {
	Name  string `json:"Name"`
	Port  int    `json:"Port"`
	Check Check  `json:"Check"`
}

// Registrar 负责向 Consul agent 注册服务并周期性上报健康检查通过。
// 所有调用都是发出即忘：不检查响应内容，失败只记录日志，等待下一个周期。
type Registrar struct {
	opts   Options
	client *http.Client
	stop   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

func New(opts Options) *Registrar {
	if opts.Address == "" {
		opts.Address = defaultAddress
	}
	if opts.PassInterval <= 0 {
		opts.PassInterval = defaultPassInterval
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	return &Registrar{
		opts:   opts,
		client: client,
		stop:   make(chan struct{}),
	}
}

// CheckID 返回服务的 TTL check id
func (r *Registrar) CheckID() string {
	return "service:" + r.opts.Name
}

// Register 注册服务
func (r *Registrar) Register(ctx context.Context) error {
	body, err := jsoniter.Marshal(Registration{
		Name: r.opts.Name,
		Port: r.opts.Port,
		Check: Check{
			Interval: r.opts.CheckInterval,
			TTL:      r.opts.CheckTTL,
		},
	})
	if err != nil {
		return fmt.Errorf("encode registration: %w", err)
	}
	if err := r.put(ctx, "/v1/agent/service/register", body); err != nil {
		return err
	}
	logrus.Infof("Registered service `%s` on port %d", r.opts.Name, r.opts.Port)
	return nil
}

// PassCheck 上报一次健康检查通过
func (r *Registrar) PassCheck(ctx context.Context) error {
	logrus.Debugf("Passing check `%s`", r.CheckID())
	return r.put(ctx, "/v1/agent/check/pass/"+url.PathEscape(r.CheckID()), nil)
}

// Deregister 注销服务
func (r *Registrar) Deregister(ctx context.Context) error {
	if err := r.put(ctx, "/v1/agent/service/deregister/"+url.PathEscape(r.opts.Name), nil); err != nil {
		return err
	}
	logrus.Infof("Deregistered service `%s`", r.opts.Name)
	return nil
}

func (r *Registrar) put(ctx context.Context, path string, body []byte) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.opts.Address+path, reader)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRegistryTransport, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRegistryTransport, path, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	logrus.Debugf("Registry %s -> %s", path, resp.Status)
	return nil
}

// Start 注册一次，然后在独立 goroutine 中按固定间隔上报健康检查
func (r *Registrar) Start(ctx context.Context) {
	if err := r.Register(ctx); err != nil {
		logrus.Warnf("Failed to register service: %v", err)
	}

	r.wg.Add(1)
	go r.passChecksLoop(ctx)
}

func (r *Registrar) passChecksLoop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.opts.PassInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-ticker.C:
			if err := r.PassCheck(ctx); err != nil {
				logrus.Warnf("Failed to pass check: %v", err)
			}
		}
	}
}

// Stop 停止上报循环并等待其退出
func (r *Registrar) Stop() {
	r.once.Do(func() { close(r.stop) })
	r.wg.Wait()
}
