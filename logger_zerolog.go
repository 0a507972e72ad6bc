package sessgate

import "github.com/rs/zerolog"

// ZerologAdapter bridges a zerolog.Logger to the Logger interface so
// applications already running zerolog can route client logs through their
// existing sink.
type ZerologAdapter struct {
	l zerolog.Logger
}

// NewZerologAdapter wraps l as a Logger.
func NewZerologAdapter(l zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{l: l}
}

func (a *ZerologAdapter) emit(ev *zerolog.Event, msg string, keysAndValues []interface{}) {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, keysAndValues[i+1])
	}
	ev.Msg(msg)
}

// Debug logs at debug level.
func (a *ZerologAdapter) Debug(msg string, keysAndValues ...interface{}) {
	a.emit(a.l.Debug(), msg, keysAndValues)
}

// Info logs at info level.
func (a *ZerologAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.emit(a.l.Info(), msg, keysAndValues)
}

// Warn logs at warn level.
func (a *ZerologAdapter) Warn(msg string, keysAndValues ...interface{}) {
	a.emit(a.l.Warn(), msg, keysAndValues)
}

// Error logs at error level.
func (a *ZerologAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.emit(a.l.Error(), msg, keysAndValues)
}
