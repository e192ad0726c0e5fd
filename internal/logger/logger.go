package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the process logger
type Options struct {
	Service string
	Version string
	Debug   bool
}

// NewProductionLogger creates a JSON logger tagged with the service name and build version
func NewProductionLogger(opts Options) (*zap.Logger, error) {
	return buildConfig(opts).Build()
}

func buildConfig(opts Options) zap.Config {
	config := zap.NewProductionConfig()

	if opts.Debug {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	config.Encoding = "json"
	config.EncoderConfig = zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	// Stack traces for error level and above
	config.DisableStacktrace = false
	// Rollback warnings come in bursts and must all be kept
	config.Sampling = nil

	fields := map[string]interface{}{}
	if opts.Service != "" {
		fields["service"] = opts.Service
	}
	if opts.Version != "" {
		fields["version"] = opts.Version
	}
	if len(fields) > 0 {
		config.InitialFields = fields
	}
	return config
}

// ForUser returns a child logger scoped to one board session
func ForUser(base *zap.Logger, userID string) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	return base.With(zap.String("user_id", SanitizeString(userID, MaxIdentifierLength)))
}

// Sync flushes any buffered log entries. This should be called before application exit.
// It's safe to call Sync() multiple times.
func Sync(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	return logger.Sync()
}
