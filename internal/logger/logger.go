package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/twelvenexus/oneplan-billing/internal/config"
	"github.com/twelvenexus/oneplan-billing/internal/types"
)

// Logger wraps zap.SugaredLogger to provide logging functionality
type Logger struct {
	*zap.SugaredLogger
}

// Global logger for convenience in scripts; everywhere else prefer
// the injected instance.
var L *Logger

// NewLogger creates and returns a new Logger instance
func NewLogger(cfg *config.Configuration) (*Logger, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if cfg != nil {
		switch cfg.Logging.Level {
		case types.LogLevelDebug:
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		case types.LogLevelWarn:
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		case types.LogLevelError:
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
		default:
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}
		if cfg.Deployment.Mode == types.ModeLocal {
			zapCfg.Encoding = "console"
		}
	}

	zapLogger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{
		SugaredLogger: zapLogger.Sugar(),
	}, nil
}

func init() {
	zapLogger, _ := zap.NewProduction()
	L = &Logger{SugaredLogger: zapLogger.Sugar()}
}
