// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package obslog is a thin structured-logging wrapper around zap, kept in
// the shape the rest of this tree expects: a small Logger interface plus
// field constructors, so call sites never import zap directly.
package obslog

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is implemented by every component that needs structured logs.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Fatal(msg string, fields ...zap.Field)
	Sync() error
}

type zapLogger struct {
	z *zap.Logger
}

// New builds a production zap logger at the given level ("debug", "info",
// "warn", "error").
func New(level string) Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	z, err := cfg.Build()
	if err != nil {
		return NoOp()
	}
	return &zapLogger{z: z}
}

// Named returns a child logger tagged with name, matching the teacher's
// NewLogger(name) convention.
func Named(name, level string) Logger {
	l := New(level)
	if zl, ok := l.(*zapLogger); ok {
		return &zapLogger{z: zl.z.Named(name)}
	}
	return l
}

func parseLevel(level string) zapcore.Level {
	switch level {
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

func (l *zapLogger) Debug(msg string, fields ...zap.Field) { l.z.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...zap.Field)  { l.z.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...zap.Field)  { l.z.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...zap.Field) { l.z.Error(msg, fields...) }
func (l *zapLogger) Fatal(msg string, fields ...zap.Field) { l.z.Fatal(msg, fields...) }
func (l *zapLogger) Sync() error                           { return l.z.Sync() }

// NoOp returns a logger that discards everything, for tests.
func NoOp() Logger { return &noOpLogger{} }

type noOpLogger struct{}

func (n *noOpLogger) Debug(string, ...zap.Field) {}
func (n *noOpLogger) Info(string, ...zap.Field)  {}
func (n *noOpLogger) Warn(string, ...zap.Field)  {}
func (n *noOpLogger) Error(string, ...zap.Field) {}
func (n *noOpLogger) Fatal(string, ...zap.Field) {}
func (n *noOpLogger) Sync() error                { return nil }

// Field constructors re-exported for callers that want to avoid a direct
// zap import, matching the teacher's log.String/log.Error helpers.
func String(key, val string) zap.Field                { return zap.String(key, val) }
func Int(key string, val int) zap.Field               { return zap.Int(key, val) }
func Uint64(key string, val uint64) zap.Field         { return zap.Uint64(key, val) }
func Err(err error) zap.Field                         { return zap.Error(err) }
func Duration(key string, v time.Duration) zap.Field  { return zap.Duration(key, v) }
