package util

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	logFilePrefix = "switchboard-"
	logFileSuffix = ".log"
	dateLayout    = "20060102"
)

// FileHook logrus Hook 实现，用于将日志写入按日期命名的文件
type FileHook struct {
	mu        sync.Mutex
	file      *os.File
	formatter logrus.Formatter
}

// Levels 返回 Hook 要处理的日志级别
func (hook *FileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire 写入日志到文件
func (hook *FileHook) Fire(entry *logrus.Entry) error {
	hook.mu.Lock()
	defer hook.mu.Unlock()

	if hook.file == nil {
		return nil
	}
	if hook.formatter == nil {
		hook.formatter = newTextFormatter(true)
	}
	line, err := hook.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = hook.file.Write(line)
	return err
}

// swap 替换文件句柄并关闭旧文件（用于日志轮换）
func (hook *FileHook) swap(newFile *os.File) {
	hook.mu.Lock()
	defer hook.mu.Unlock()
	if hook.file != nil {
		hook.file.Close()
	}
	hook.file = newFile
}

// Close 关闭文件
func (hook *FileHook) Close() error {
	hook.mu.Lock()
	defer hook.mu.Unlock()
	if hook.file == nil {
		return nil
	}
	err := hook.file.Close()
	hook.file = nil
	return err
}

// FileLogger 管理日志文件的创建、按日轮换和过期清理
type FileLogger struct {
	dir      string
	keepDays int
	hook     *FileHook

	mu   sync.Mutex
	date string
	path string
	stop chan struct{}
	done chan struct{}
}

func newTextFormatter(disableColors bool) *logrus.TextFormatter {
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.DateTime,
		DisableColors:   disableColors,
		CallerPrettyfier: func(frame *runtime.Frame) (function string, file string) {
			return frame.Function, ""
		},
	}
}

// InitLogger 初始化标准输出日志格式与级别
func InitLogger(level string) error {
	logrus.SetFormatter(newTextFormatter(false))
	logrus.SetReportCaller(true)

	if level == "" {
		return nil
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	logrus.SetLevel(lvl)
	return nil
}

// InitLoggerWithFile 在 InitLogger 基础上把日志同时写入 dir 下的日志文件，
// 保留 keepDays 天。返回的 FileLogger 需在退出时 Close。
func InitLoggerWithFile(dir string, keepDays int) (*FileLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	fl := &FileLogger{
		dir:      dir,
		keepDays: keepDays,
		hook:     &FileHook{formatter: newTextFormatter(true)},
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if err := fl.rotate(time.Now()); err != nil {
		return nil, err
	}
	logrus.AddHook(fl.hook)

	go fl.maintain()

	// 使用 fmt.Fprintf 输出到标准错误，避免触发 logrus
	fmt.Fprintf(os.Stderr, "Logging to file: %s (keeping %d days of logs)\n", fl.Path(), keepDays)
	return fl, nil
}

func logFileName(date string) string {
	return logFilePrefix + date + logFileSuffix
}

// Path 返回当前日志文件路径
func (fl *FileLogger) Path() string {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.path
}

// rotate 日期变化时切换到新的日志文件
func (fl *FileLogger) rotate(now time.Time) error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	date := now.Format(dateLayout)
	if date == fl.date && fl.path != "" {
		return nil
	}

	path := filepath.Join(fl.dir, logFileName(date))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	fl.hook.swap(file)
	fl.date = date
	fl.path = path
	return nil
}

// cleanup 删除早于 keepDays 天的日志文件，不符合命名格式的文件不处理
func (fl *FileLogger) cleanup(now time.Time) error {
	entries, err := os.ReadDir(fl.dir)
	if err != nil {
		return fmt.Errorf("failed to read log directory: %w", err)
	}

	cutoff := now.AddDate(0, 0, -fl.keepDays).Format(dateLayout)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, logFilePrefix) || !strings.HasSuffix(name, logFileSuffix) {
			continue
		}
		date := strings.TrimSuffix(strings.TrimPrefix(name, logFilePrefix), logFileSuffix)
		if len(date) != len(dateLayout) {
			continue
		}
		// YYYYMMDD 可以直接按字符串比较
		if date < cutoff {
			path := filepath.Join(fl.dir, name)
			if err := os.Remove(path); err != nil {
				logrus.Warnf("Failed to delete old log file %s: %v", path, err)
			} else {
				logrus.Infof("Deleted old log file: %s", path)
			}
		}
	}
	return nil
}

// maintain 每小时检查轮换，每天清理一次
func (fl *FileLogger) maintain() {
	defer close(fl.done)

	rotateTicker := time.NewTicker(time.Hour)
	defer rotateTicker.Stop()
	cleanupTicker := time.NewTicker(24 * time.Hour)
	defer cleanupTicker.Stop()

	if err := fl.cleanup(time.Now()); err != nil {
		logrus.Warnf("Failed to cleanup old logs: %v", err)
	}

	for {
		select {
		case <-rotateTicker.C:
			if err := fl.rotate(time.Now()); err != nil {
				logrus.Errorf("Failed to rotate log file: %v", err)
			}
		case <-cleanupTicker.C:
			if err := fl.cleanup(time.Now()); err != nil {
				logrus.Warnf("Failed to cleanup old logs: %v", err)
			}
		case <-fl.stop:
			return
		}
	}
}

// Close 停止轮换任务并关闭日志文件
func (fl *FileLogger) Close() error {
	select {
	case <-fl.stop:
	default:
		close(fl.stop)
	}
	<-fl.done
	return fl.hook.Close()
}
