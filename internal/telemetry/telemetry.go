// Package telemetry defines the minimal logging seam the rest of the
// tree depends on, so that engine, transport, and store code never
// import a concrete logging library directly.
package telemetry

import "go.uber.org/zap"

// Logger is the narrowest surface the engine needs: a single
// printf-style sink. Concrete adapters (zapLogger, Nop) satisfy it.
type Logger interface {
	Printf(format string, args ...any)
}

type zapLogger struct {
	z *zap.SugaredLogger
}

// NewZap wraps a *zap.Logger as a Logger.
func NewZap(z *zap.Logger) Logger {
	return &zapLogger{z: z.Sugar()}
}

func (l *zapLogger) Printf(format string, args ...any) {
	l.z.Infof(format, args...)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Nop returns a Logger that discards everything, used as the default
// when an embedder supplies none.
func Nop() Logger { return nopLogger{} }
