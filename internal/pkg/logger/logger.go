/**
 * 日志管理器
 * @author: sun977
 * @date: 2026.03.04
 * @description: logrus 实例 + lumberjack 轮转，Master 与 Agent 共用
 * @func: InitLogger 设置全局实例；UpdateConfig 供配置热重载调用；未初始化时所有分类日志都是空操作
 */
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"neofleet/internal/config"
)

const timestampLayout = "2006-01-02 15:04:05.000"

// LoggerManager 日志管理器
type LoggerManager struct {
	mu     sync.Mutex
	logger *logrus.Logger
	config config.LogConfig
	closer io.Closer // output=file 时的轮转文件
}

// LoggerInstance 全局日志实例
var LoggerInstance *LoggerManager

// InitLogger 按配置创建 logrus 实例并设为全局实例
func InitLogger(cfg *config.LogConfig) (*LoggerManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("log config cannot be nil")
	}
	norm := normalize(*cfg)

	l := logrus.New()
	level, err := logrus.ParseLevel(norm.Level)
	if err != nil {
		l.Warnf("invalid log level %q, falling back to info", norm.Level)
		level = logrus.InfoLevel
		norm.Level = level.String()
	}
	l.SetLevel(level)
	l.SetReportCaller(norm.Caller)

	formatter, err := newFormatter(norm.Format)
	if err != nil {
		return nil, err
	}
	l.SetFormatter(formatter)

	out, closer, err := newOutput(norm)
	if err != nil {
		return nil, err
	}
	l.SetOutput(out)

	if LoggerInstance != nil {
		LoggerInstance.close()
	}
	lm := &LoggerManager{logger: l, config: norm, closer: closer}
	LoggerInstance = lm
	return lm, nil
}

// normalize 空字段使用默认值: info / text / stdout
func normalize(cfg config.LogConfig) config.LogConfig {
	cfg.Level = strings.ToLower(strings.TrimSpace(cfg.Level))
	cfg.Format = strings.ToLower(strings.TrimSpace(cfg.Format))
	cfg.Output = strings.ToLower(strings.TrimSpace(cfg.Output))
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
	return cfg
}

func newFormatter(format string) (logrus.Formatter, error) {
	switch format {
	case "json":
		return &logrus.JSONFormatter{
			TimestampFormat: timestampLayout,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
				logrus.FieldKeyFunc:  "function",
				logrus.FieldKeyFile:  "file",
			},
		}, nil
	case "text":
		return &logrus.TextFormatter{
			TimestampFormat: timestampLayout,
			FullTimestamp:   true,
			ForceColors:     true,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
}

// newOutput 返回写入目标；文件输出额外返回 closer
func newOutput(cfg config.LogConfig) (io.Writer, io.Closer, error) {
	switch cfg.Output {
	case "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	case "file":
		if cfg.FilePath == "" {
			return nil, nil, fmt.Errorf("log.file_path is required when log.output is file")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		// debug 级别同时输出到控制台
		if cfg.Level == "debug" {
			return io.MultiWriter(os.Stdout, rotator), rotator, nil
		}
		return rotator, rotator, nil
	default:
		return nil, nil, fmt.Errorf("unsupported log output: %s", cfg.Output)
	}
}

// GetLogger logrus 实例
func (lm *LoggerManager) GetLogger() *logrus.Logger {
	return lm.logger
}

// UpdateConfig 运行时更新级别、格式、输出；任一项失败时其余项保持原样
func (lm *LoggerManager) UpdateConfig(newCfg *config.LogConfig) error {
	if newCfg == nil {
		return fmt.Errorf("new config cannot be nil")
	}
	next := normalize(*newCfg)

	lm.mu.Lock()
	defer lm.mu.Unlock()
	cur := lm.config

	level, err := logrus.ParseLevel(next.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	var formatter logrus.Formatter
	if next.Format != cur.Format {
		if formatter, err = newFormatter(next.Format); err != nil {
			return err
		}
	}
	outputChanged := next.Output != cur.Output || next.FilePath != cur.FilePath ||
		(next.Output == "file" && next.Level != cur.Level)
	var (
		out    io.Writer
		closer io.Closer
	)
	if outputChanged {
		if out, closer, err = newOutput(next); err != nil {
			return err
		}
	}

	changes := logrus.Fields{}
	if next.Level != cur.Level {
		lm.logger.SetLevel(level)
		changes["level"] = next.Level
	}
	if formatter != nil {
		lm.logger.SetFormatter(formatter)
		changes["format"] = next.Format
	}
	if out != nil {
		lm.logger.SetOutput(out)
		if lm.closer != nil {
			_ = lm.closer.Close()
		}
		lm.closer = closer
		changes["output"] = next.Output
	}
	if next.Caller != cur.Caller {
		lm.logger.SetReportCaller(next.Caller)
		changes["caller"] = next.Caller
	}
	lm.config = next

	if len(changes) > 0 {
		lm.logger.WithFields(changes).Info("log config updated")
	}
	return nil
}

func (lm *LoggerManager) close() {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if lm.closer != nil {
		_ = lm.closer.Close()
		lm.closer = nil
	}
}

// 格式化便捷方法，用于没有分类的零散日志

func Infof(format string, args ...interface{}) {
	if LoggerInstance != nil {
		LoggerInstance.logger.Infof(format, args...)
	}
}

func Warnf(format string, args ...interface{}) {
	if LoggerInstance != nil {
		LoggerInstance.logger.Warnf(format, args...)
	}
}
