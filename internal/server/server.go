package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type Options struct {
	Port        int
	ServiceName string
	Transport   string
	Gatherer    prometheus.Gatherer
	// WebSocket 非空时挂载到 /ws
	WebSocket http.Handler
}

// Server 管理 HTTP 服务：健康检查、指标与 WebSocket 接入
type Server struct {
	Server *http.Server
	Router *mux.Router
	opts   Options
}

// HealthResponse /healthz 的响应体
type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Transport string `json:"transport"`
}

func NewServer(opts Options) *Server {
	router := mux.NewRouter()
	s := &Server{
		Server: &http.Server{Addr: fmt.Sprintf("0.0.0.0:%d", opts.Port), Handler: router},
		Router: router,
		opts:   opts,
	}

	router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	if opts.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}
	if opts.WebSocket != nil {
		router.Handle("/ws", opts.WebSocket).Methods("GET")
	}
	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	err := jsoniter.NewEncoder(w).Encode(HealthResponse{
		Status:    "ok",
		Service:   s.opts.ServiceName,
		Transport: s.opts.Transport,
	})
	if err != nil {
		logrus.Errorf("Failed to write response: %v", err)
	}
}

// Start 在后台监听
func (s *Server) Start() {
	go func() {
		logrus.Infof("Admin HTTP server listening on %s", s.Server.Addr)
		if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("Admin HTTP server failed: %v", err)
		}
	}()
}

// Stop 优雅关闭
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.Server.Shutdown(ctx)
}
