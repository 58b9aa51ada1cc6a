// Copyright 2022 Democratized Data Foundation
//
// Use of this software is governed by the Business Source License
// included in the file licenses/BSL.txt.
//
// As of the Change Date specified in that file, in accordance with
// the Business Source License, use of this software will be governed
// by the Apache License, Version 2.0, included in the file
// licenses/APL.txt.

// Package logging wraps go.uber.org/zap the way defradb/logging wraps it:
// a small named-logger handle with KV-pair call sites instead of printf
// verbs, so call sites read the same regardless of the underlying sink.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// KV is a single structured logging field.
type KV struct {
	key   string
	value any
}

// NewKV builds a KV pair for a logging call site.
func NewKV(key string, value any) KV {
	return KV{key: key, value: value}
}

func (kv KV) field() zap.Field {
	return zap.Any(kv.key, kv.value)
}

// Logger is a named logging handle, analogous to the package-level `log`
// variable each defradb package declares via logging.MustNewLogger.
type Logger struct {
	z *zap.SugaredLogger
}

// MustNewLogger creates a named logger backed by zap's production encoder
// config. Panics on misconfiguration, matching the teacher's package-init
// logger construction.
func MustNewLogger(name string) Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	return Logger{z: z.Sugar().Named(name)}
}

func toFields(kvs []KV) []any {
	fields := make([]any, 0, len(kvs)*2)
	for _, kv := range kvs {
		fields = append(fields, kv.field())
	}
	return fields
}

// Debug logs at debug level with structured fields.
func (l Logger) Debug(msg string, kvs ...KV) {
	l.z.Debugw(msg, toFields(kvs)...)
}

// Info logs at info level with structured fields.
func (l Logger) Info(msg string, kvs ...KV) {
	l.z.Infow(msg, toFields(kvs)...)
}

// Warn logs at warn level with structured fields. Used for recoverable
// anomalies such as a generated fractional index colliding with an
// existing one (spec.md §9 open question on FIArray random offsets).
func (l Logger) Warn(msg string, kvs ...KV) {
	l.z.Warnw(msg, toFields(kvs)...)
}

// Error logs at error level with structured fields.
func (l Logger) Error(msg string, kvs ...KV) {
	l.z.Errorw(msg, toFields(kvs)...)
}

// ErrorE logs at error level, attaching err as a field the way
// defradb/logging.ErrorE does.
func (l Logger) ErrorE(msg string, err error, kvs ...KV) {
	l.z.Errorw(msg, append(toFields(kvs), "error", err)...)
}

// Sync flushes any buffered log entries.
func (l Logger) Sync() error {
	return l.z.Sync()
}
