// Package logging builds the zap logger used by the command and adapts it to
// dcprobe.Logger.
package logging

import (
	"context"
	"strings"

	"github.com/getpup/dcprobe"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config configures the logger.
type Config struct {
	// Env selects the encoder: "dev" (console, colored) or "prod" (JSON).
	// Default: "dev"
	Env string

	// Level is the minimum level: "debug", "info", "warn" or "error".
	// Default: "info"
	Level string

	// Fields are attached to every entry, e.g. the run identifier.
	Fields map[string]string
}

// New builds a zap logger from cfg. It falls back to a production logger if
// the configured one cannot be built.
func New(cfg Config) *zap.Logger {
	level := ParseLevel(cfg.Level)

	var zcfg zap.Config
	if strings.EqualFold(cfg.Env, "prod") {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zcfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		zcfg.DisableStacktrace = true
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	l, err := zcfg.Build(zap.AddCaller(), zap.AddCallerSkip(1))
	if err != nil {
		l, _ = zap.NewProduction()
	}

	for k, v := range cfg.Fields {
		l = l.With(zap.String(k, v))
	}
	return l
}

// ParseLevel converts a level name to a zapcore.Level, defaulting to info.
func ParseLevel(lvl string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Adapter implements dcprobe.Logger on top of a zap logger.
type Adapter struct {
	sugar *zap.SugaredLogger
}

// Compile-time check that Adapter implements dcprobe.Logger.
var _ dcprobe.Logger = (*Adapter)(nil)

// NewAdapter wraps l. A nil l yields a no-op logger.
func NewAdapter(l *zap.Logger) *Adapter {
	if l == nil {
		l = zap.NewNop()
	}
	return &Adapter{sugar: l.Sugar()}
}

// Debug implements dcprobe.Logger.
func (a *Adapter) Debug(_ context.Context, msg string, keyvals ...interface{}) {
	a.sugar.Debugw(msg, keyvals...)
}

// Info implements dcprobe.Logger.
func (a *Adapter) Info(_ context.Context, msg string, keyvals ...interface{}) {
	a.sugar.Infow(msg, keyvals...)
}

// Error implements dcprobe.Logger.
func (a *Adapter) Error(_ context.Context, msg string, keyvals ...interface{}) {
	a.sugar.Errorw(msg, keyvals...)
}

// Sync flushes buffered entries.
func (a *Adapter) Sync() error {
	return a.sugar.Sync()
}
