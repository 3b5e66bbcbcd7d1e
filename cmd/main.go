package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/9triver/switchboard/internal/bootstrap"
	"github.com/9triver/switchboard/internal/config"
	"github.com/9triver/switchboard/internal/util"
	"github.com/sirupsen/logrus"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}
	if err := util.InitLogger(cfg.Logging.Level); err != nil {
		log.Fatalf("Init logger: %v", err)
	}
	if cfg.Logging.Dir != "" {
		fileLogger, err := util.InitLoggerWithFile(cfg.Logging.Dir, cfg.Logging.KeepDays)
		if err != nil {
			logrus.Fatalf("Failed to initialize log file: %v", err)
		}
		defer fileLogger.Close()
	}

	logrus.Infof("Initializing service %s...", cfg.Service.Name)
	sb, err := bootstrap.Initialize(cfg, nil)
	if err != nil {
		logrus.Fatalf("Failed to initialize: %v", err)
	}

	// 创建上下文用于优雅关闭
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sb.Start(ctx); err != nil {
		logrus.Fatalf("Failed to start services: %v", err)
	}
	logrus.Infof("Service %s started (%s on port %d)", cfg.Service.Name, cfg.Transport.Kind, cfg.Service.BindPort)

	// 优雅关闭
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		logrus.Info("Shutting down...")
	case err := <-sb.Done():
		logrus.Errorf("Dispatch loop exited: %v", err)
	}

	cancel()
	if err := sb.Stop(); err != nil {
		logrus.Errorf("Shutdown finished with errors: %v", err)
	}
	logrus.Info("Shutdown complete")
}
