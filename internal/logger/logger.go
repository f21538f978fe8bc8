package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wfunc/serial-looptest/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger *zap.Logger
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	mu     sync.RWMutex

	// 模块日志器
	moduleLoggers map[string]*zap.Logger
	closers       []io.Closer
)

// Init 初始化日志系统，可重复调用（后一次覆盖前一次）
func Init(cfg *config.LogConfig) error {
	l, modules, cs, err := build(cfg, os.Stdout, os.Stderr)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	closeWriters()
	logger = l
	moduleLoggers = modules
	closers = cs
	return nil
}

// build 根据配置构建日志器
func build(cfg *config.LogConfig, stdout, stderr io.Writer) (*zap.Logger, map[string]*zap.Logger, []io.Closer, error) {
	level.SetLevel(parseLevel(cfg.Level))

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	// 根据格式选择编码器
	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	var (
		cores   []zapcore.Core
		cs      []io.Closer
		console zapcore.WriteSyncer
	)

	// 控制台输出
	switch cfg.Output {
	case "stdout", "both":
		console = zapcore.AddSync(stdout)
	case "stderr":
		console = zapcore.AddSync(stderr)
	}
	if console != nil {
		cores = append(cores, zapcore.NewCore(encoder, console, level))
	}

	// 文件输出
	if cfg.Output == "file" || cfg.Output == "both" {
		logDir := cfg.File.Path
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, nil, nil, fmt.Errorf("create log dir: %w", err)
		}

		// 文件写入器（支持日志轮转）
		fileWriter := &lumberjack.Logger{
			Filename:   filepath.Join(logDir, cfg.File.Filename),
			MaxSize:    cfg.File.MaxSize,    // MB
			MaxAge:     cfg.File.MaxAge,     // days
			MaxBackups: cfg.File.MaxBackups, // 保留文件数
			Compress:   cfg.File.Compress,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(fileWriter), level))

		// 错误日志单独成文件
		errorWriter := &lumberjack.Logger{
			Filename:   filepath.Join(logDir, "error.log"),
			MaxSize:    cfg.File.MaxSize,
			MaxAge:     cfg.File.MaxAge,
			MaxBackups: cfg.File.MaxBackups,
			Compress:   cfg.File.Compress,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(errorWriter), zapcore.ErrorLevel))
		cs = append(cs, fileWriter, errorWriter)
	}

	core := zapcore.NewTee(cores...)
	l := zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)

	// 模块日志器：共用输出，单独的级别
	modules := make(map[string]*zap.Logger, len(cfg.Modules))
	for module, levelStr := range cfg.Modules {
		moduleLevel := parseLevel(levelStr)
		modules[module] = l.Named(module).WithOptions(zap.IncreaseLevel(moduleLevel))
	}

	return l, modules, cs, nil
}

// closeWriters 关闭文件写入器，调用方需持有锁
func closeWriters() {
	for _, c := range closers {
		_ = c.Close()
	}
	closers = nil
}

// parseLevel 解析日志级别
func parseLevel(levelStr string) zapcore.Level {
	switch levelStr {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// GetLogger 获取日志器
func GetLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// WithModule 获取模块日志器
func WithModule(module string) *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()

	if moduleLogger, ok := moduleLoggers[module]; ok {
		return moduleLogger
	}
	if logger == nil {
		return zap.NewNop()
	}
	return logger.Named(module)
}

// SetLevel 动态设置日志级别
func SetLevel(levelStr string) {
	level.SetLevel(parseLevel(levelStr))
}

// Level 当前日志级别
func Level() zapcore.Level {
	return level.Level()
}

// Sync 同步日志缓冲区
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()

	if logger != nil {
		return logger.Sync()
	}
	return nil
}

// Info 输出信息日志
func Info(msg string, fields ...zap.Field) {
	GetLogger().WithOptions(zap.AddCallerSkip(1)).Info(msg, fields...)
}

// Warn 输出警告日志
func Warn(msg string, fields ...zap.Field) {
	GetLogger().WithOptions(zap.AddCallerSkip(1)).Warn(msg, fields...)
}

// Error 输出错误日志
func Error(msg string, fields ...zap.Field) {
	GetLogger().WithOptions(zap.AddCallerSkip(1)).Error(msg, fields...)
}

// LogSerialTransfer 记录一次串口收发
func LogSerialTransfer(port string, sent int, received string, elapsed time.Duration) {
	WithModule("serial").Info("serial_transfer",
		zap.String("port", port),
		zap.Int("bytes_sent", sent),
		zap.Int("bytes_received", len(received)),
		zap.Duration("elapsed", elapsed),
	)
}

// Cleanup 清理日志资源
func Cleanup() {
	// stdout 上的 Sync 在部分平台会返回 EINVAL，忽略
	_ = Sync()
	mu.Lock()
	closeWriters()
	mu.Unlock()
}
