package windgo

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig 日志配置
type LogConfig struct {
	Level       string `yaml:"level"`       // "debug", "info", "warn", "error"
	OutputPath  string `yaml:"output_path"` // 输出路径，默认 "stdout"
	Development bool   `yaml:"development"` // 开发模式
	MaxSizeMB   int    `yaml:"max_size_mb"` // 日志文件滚动大小，仅文件输出时生效
	MaxBackups  int    `yaml:"max_backups"` // 保留的滚动文件数
}

// NewLogger 创建新的 logger 实例
func NewLogger(config LogConfig) (*zap.Logger, error) {
	// 解析日志级别
	var level zapcore.Level
	switch config.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	if config.OutputPath == "" {
		config.OutputPath = "stdout"
	}

	// 文件输出走 lumberjack 滚动
	if config.OutputPath != "stdout" && config.OutputPath != "stderr" {
		maxSize := config.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 100
		}
		sink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   config.OutputPath,
			MaxSize:    maxSize,
			MaxBackups: config.MaxBackups,
		})

		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), sink, level)
		return zap.New(core), nil
	}

	// 配置
	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      config.Development,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{config.OutputPath},
		ErrorOutputPaths: []string{"stderr"},
	}
	zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	// JSON 格式更适合生产环境
	if !config.Development {
		zapConfig.Encoding = "json"
		zapConfig.EncoderConfig = zap.NewProductionEncoderConfig()
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	return zapConfig.Build()
}

// NewDefaultLogger 创建默认 logger
func NewDefaultLogger() *zap.Logger {
	logger, err := NewLogger(LogConfig{
		Level:       "info",
		OutputPath:  "stdout",
		Development: false,
	})
	if err != nil {
		// 如果创建失败，返回 nop logger
		return zap.NewNop()
	}
	return logger
}
