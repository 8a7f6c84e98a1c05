// Package logger provides a process-wide structured logger, adapted from
// the teacher's pkg/logger singleton shape but backed by zap instead of an
// unpublished internal logging wrapper (see DESIGN.md).
package logger

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
)

var singleton atomic.Pointer[zap.SugaredLogger]

func init() {
	singleton.Store(newLogger(unstructuredLogs(), false))
}

// Initialize rebuilds the singleton logger from the process environment.
// When debug is set, Debug-level entries are emitted in both output modes.
// Call once at process startup, after flags are parsed.
func Initialize(debug bool) {
	singleton.Store(newLogger(unstructuredLogs(), debug))
}

// unstructuredLogs reports whether logs should be rendered as human-readable
// console output rather than structured JSON. Defaults to true so a local
// operator sees readable output; set UNSTRUCTURED_LOGS=false for JSON logs
// destined for a log aggregator.
func unstructuredLogs() bool {
	v, ok := os.LookupEnv("UNSTRUCTURED_LOGS")
	if !ok {
		return true
	}
	switch v {
	case "false":
		return false
	case "true":
		return true
	default:
		return true
	}
}

func newLogger(unstructured, debug bool) *zap.SugaredLogger {
	var cfg zap.Config
	if unstructured {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		// Fall back to a no-op logger rather than panicking at import time.
		l = zap.NewNop()
	}
	return l.Sugar()
}

// Get returns the current singleton logger.
func Get() *zap.SugaredLogger {
	return singleton.Load()
}

func Debug(args ...interface{})                  { Get().Debug(args...) }
func Debugf(template string, args ...interface{}) { Get().Debugf(template, args...) }
func Debugw(msg string, kv ...interface{})        { Get().Debugw(msg, kv...) }

func Info(args ...interface{})                  { Get().Info(args...) }
func Infof(template string, args ...interface{}) { Get().Infof(template, args...) }
func Infow(msg string, kv ...interface{})        { Get().Infow(msg, kv...) }

func Warn(args ...interface{})                  { Get().Warn(args...) }
func Warnf(template string, args ...interface{}) { Get().Warnf(template, args...) }
func Warnw(msg string, kv ...interface{})        { Get().Warnw(msg, kv...) }

func Error(args ...interface{})                  { Get().Error(args...) }
func Errorf(template string, args ...interface{}) { Get().Errorf(template, args...) }
func Errorw(msg string, kv ...interface{})        { Get().Errorw(msg, kv...) }

func Panic(args ...interface{})                  { Get().Panic(args...) }
func Panicf(template string, args ...interface{}) { Get().Panicf(template, args...) }
func Panicw(msg string, kv ...interface{})        { Get().Panicw(msg, kv...) }
