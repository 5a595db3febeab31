package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options 日志参数
type Options struct {
	// debug/info/warn/error，Debug 为 true 时忽略
	Level string
	Debug bool
	// 控制台格式（命令行），否则输出 JSON（服务）
	Console bool
}

// New 创建日志记录器，输出到 stderr
func New(opts Options) (*zap.Logger, error) {
	config := zap.NewProductionConfig()

	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("无效的日志级别 %q: %w", opts.Level, err)
		}
	}
	if opts.Debug {
		level = zapcore.DebugLevel
	}
	config.Level = zap.NewAtomicLevelAt(level)

	if opts.Console {
		config.Encoding = "console"
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	config.DisableStacktrace = true
	config.OutputPaths = []string{"stderr"}

	return config.Build()
}

// NewLogger 创建一个新的日志记录器
func NewLogger(debug bool) *zap.Logger {
	logger, err := New(Options{Debug: debug})
	if err != nil {
		panic("初始化日志系统失败: " + err.Error())
	}
	return logger
}
