package realtime

// Logger mirrors the accounts Logger so this package stays free of import
// cycles.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func resolveLogger(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}
