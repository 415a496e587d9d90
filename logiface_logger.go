package fiber

import "github.com/joeycumines/logiface"

// LogifaceLogger adapts a logiface logger (erased to logiface.Event, the
// form produced by (*logiface.Logger[E]).Logger()) to the Logger
// interface, for applications that already standardize on logiface.
type LogifaceLogger struct {
	inner *logiface.Logger[logiface.Event]
}

// NewLogifaceLogger wraps an existing logiface logger.
func NewLogifaceLogger(l *logiface.Logger[logiface.Event]) *LogifaceLogger {
	return &LogifaceLogger{inner: l}
}

func (l *LogifaceLogger) IsEnabled(level LogLevel) bool {
	return l.inner.Level() >= logifaceLevel(level)
}

func (l *LogifaceLogger) Log(entry LogEntry) {
	b := l.inner.Build(logifaceLevel(entry.Level))
	if b == nil {
		return
	}
	b = b.Str("category", entry.Category)
	for k, v := range entry.Context {
		b = b.Any(k, v)
	}
	if entry.Err != nil {
		b = b.Err(entry.Err)
	}
	b.Log(entry.Message)
}

func logifaceLevel(l LogLevel) logiface.Level {
	switch l {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}
