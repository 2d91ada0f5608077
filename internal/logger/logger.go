// Package logger builds the JSON zap logger used by the collective command.
package logger

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LevelEnv names the environment variable holding the log level.
const LevelEnv = "LOG_LEVEL"

// New returns a JSON logger writing to w at the level named by LOG_LEVEL.
// A nil w selects stderr, keeping stdout free for command output.
func New(w io.Writer) *zap.Logger {
	if w == nil {
		w = os.Stderr
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.LevelKey = "level"
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(w),
		LevelFromEnv(),
	)
	return zap.New(core)
}

// LevelFromEnv maps LOG_LEVEL to a zap level. Unknown or empty values select info.
func LevelFromEnv() zapcore.Level {
	return ParseLevel(os.Getenv(LevelEnv))
}

func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
