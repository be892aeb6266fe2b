// Package logging adapts zerolog to the account.Logger interface.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	account "github.com/goliatone/go-account"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Logger implements account.Logger on top of zerolog
type Logger struct {
	log zerolog.Logger
}

var _ account.Logger = (*Logger)(nil)

// New returns a Logger tagging every entry with the component name
func New(log zerolog.Logger, name string) *Logger {
	if name != "" {
		log = log.With().Str("component", name).Logger()
	}
	return &Logger{log: log}
}

// NewZerolog builds the root zerolog logger from a level name and an
// output format, json or console.
func NewZerolog(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	switch format {
	case FormatConsole:
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	case FormatJSON, "":
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format %q", format)
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// Zerolog exposes the underlying logger
func (l *Logger) Zerolog() zerolog.Logger {
	return l.log
}

func (l *Logger) Debug(msg string, args ...any) {
	write(l.log.Debug(), msg, args)
}

func (l *Logger) Info(msg string, args ...any) {
	write(l.log.Info(), msg, args)
}

func (l *Logger) Warn(msg string, args ...any) {
	write(l.log.Warn(), msg, args)
}

func (l *Logger) Error(msg string, args ...any) {
	write(l.log.Error(), msg, args)
}

// write maps key/value pairs to zerolog fields. A disabled level gives
// a nil event, which zerolog treats as a no-op.
func write(e *zerolog.Event, msg string, args []any) {
	if e == nil {
		return
	}

	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			e = e.Interface("!BADKEY", args[i])
			break
		}

		key := fmt.Sprint(args[i])
		switch v := args[i+1].(type) {
		case error:
			e = e.AnErr(key, v)
		case string:
			e = e.Str(key, v)
		case fmt.Stringer:
			e = e.Stringer(key, v)
		default:
			e = e.Interface(key, v)
		}
	}

	e.Msg(msg)
}
