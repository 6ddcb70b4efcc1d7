package src

// Logger is the logging surface the rest of the code depends on. It is the
// shape of zap.SugaredLogger, so the app wires zap in directly and tests can
// substitute a no-op implementation.
type Logger interface {
	Debugw(msg string, keysAndValues ...any)
	Infow(msg string, keysAndValues ...any)
	Warnw(msg string, keysAndValues ...any)
	Errorw(msg string, keysAndValues ...any)
	Fatalw(msg string, keysAndValues ...any)
}

// NopLogger discards everything. Used by tests and as a default.
type NopLogger struct{}

func (NopLogger) Debugw(string, ...any) {}
func (NopLogger) Infow(string, ...any)  {}
func (NopLogger) Warnw(string, ...any)  {}
func (NopLogger) Errorw(string, ...any) {}
func (NopLogger) Fatalw(string, ...any) {}
