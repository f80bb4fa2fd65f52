// Package logger builds the zap loggers used by the service and the CLI.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns the root logger for env. prod and staging emit sampled JSON with ISO8601
// timestamps; local, dev and docker emit colored console lines; test discards everything.
// A non-empty level (debug, info, warn, error) replaces the environment's default level.
func NewLogger(env, level string) (*zap.Logger, error) {
	cfg, err := presetFor(env)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return zap.NewNop(), nil
	}
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	l, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l.Named("mongomap"), nil
}

// presetFor returns nil for environments that log nothing.
func presetFor(env string) (*zap.Config, error) {
	switch env {
	case "prod", "staging":
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return &cfg, nil
	case "local", "dev", "docker":
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
		return &cfg, nil
	case "test":
		return nil, nil
	}
	return nil, fmt.Errorf("no logger preset for environment %q", env)
}

// Component returns a child logger tagged with a component name.
func Component(l *zap.Logger, name string) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l.With(zap.String("component", name))
}
