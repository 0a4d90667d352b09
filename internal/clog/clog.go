// Package clog is the compiler's internal trace logger.
//
// It is not the diagnostic sink (see internal/diag) — nothing here is
// user-facing compiler output. It backs the driver's -v tracing, which
// logs one "compile" line per input file, and stays silent by default.
package clog

import "go.uber.org/zap"

// Logger is the facade the rest of the core depends on, so that only
// this package imports zap directly.
type Logger struct {
	z *zap.Logger
}

// Nop returns a Logger that discards everything. The driver uses it
// when -v is not given.
func Nop() *Logger {
	return &Logger{z: zap.NewNop()}
}

// NewDevelopment returns a Logger that writes human-readable trace lines
// to stderr, for -v.
func NewDevelopment() *Logger {
	z, err := zap.NewDevelopment()
	if err != nil {
		return Nop()
	}
	return &Logger{z: z}
}

func (l *Logger) Trace(msg string, fields ...zap.Field) {
	if l == nil || l.z == nil {
		return
	}
	l.z.Debug(msg, fields...)
}

func (l *Logger) Pass(name string, fields ...zap.Field) {
	if l == nil || l.z == nil {
		return
	}
	l.z.Info("pass: "+name, fields...)
}

func (l *Logger) Sync() {
	if l == nil || l.z == nil {
		return
	}
	_ = l.z.Sync()
}

// Int, String, etc. are re-exported so callers never need "go.uber.org/zap"
// in their own import lists.
var (
	Int    = zap.Int
	String = zap.String
	Bool   = zap.Bool
)
