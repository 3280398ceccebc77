package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	LogFormatPlain = "plain"
	LogFormatText  = "text"
	LogFormatJSON  = "json"

	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelError = "error"
)

// Logger is what every component of the house takes.
type Logger interface {
	Debug(msg string, keyvals ...interface{})
	Info(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})

	With(keyvals ...interface{}) Logger
}

var _ Logger = (*defaultLogger)(nil)

type defaultLogger struct {
	zerolog.Logger
}

// NewDefaultLogger returns a zerolog backed Logger writing to stderr.
// format is plain, text or json; level is any zerolog level name.
func NewDefaultLogger(format, level string) (Logger, error) {
	return NewLogger(os.Stderr, format, level)
}

// NewLogger is NewDefaultLogger with an explicit destination.
func NewLogger(w io.Writer, format, level string) (Logger, error) {
	var out io.Writer
	switch strings.ToLower(format) {
	case LogFormatPlain, LogFormatText:
		out = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    true,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i interface{}) string {
				if ll, ok := i.(string); ok {
					return strings.ToUpper(ll)
				}
				return "????"
			},
		}
	case LogFormatJSON:
		out = w
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level (%s): %w", level, err)
	}

	return &defaultLogger{
		Logger: zerolog.New(out).Level(lvl).With().Timestamp().Logger(),
	}, nil
}

// MustNewDefaultLogger panics on a bad format or level.
func MustNewDefaultLogger(format, level string) Logger {
	l, err := NewDefaultLogger(format, level)
	if err != nil {
		panic(err)
	}
	return l
}

func NewNopLogger() Logger {
	return &defaultLogger{Logger: zerolog.Nop()}
}

func (l defaultLogger) Info(msg string, keyvals ...interface{}) {
	l.Logger.Info().Fields(fields(keyvals...)).Msg(msg)
}

func (l defaultLogger) Error(msg string, keyvals ...interface{}) {
	l.Logger.Error().Fields(fields(keyvals...)).Msg(msg)
}

func (l defaultLogger) Debug(msg string, keyvals ...interface{}) {
	l.Logger.Debug().Fields(fields(keyvals...)).Msg(msg)
}

func (l defaultLogger) With(keyvals ...interface{}) Logger {
	return &defaultLogger{Logger: l.Logger.With().Fields(fields(keyvals...)).Logger()}
}

// fields drops odd-length key/value lists rather than guessing.
func fields(keyvals ...interface{}) map[string]interface{} {
	if len(keyvals)%2 != 0 {
		return nil
	}

	out := make(map[string]interface{}, len(keyvals)/2)
	for i := 0; i < len(keyvals); i += 2 {
		out[fmt.Sprint(keyvals[i])] = keyvals[i+1]
	}
	return out
}
