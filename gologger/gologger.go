// Package gologger builds the zerolog loggers every package logs through.
package gologger

import (
	"context"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "time"
	zerolog.CallerMarshalFunc = shortCaller
	zerolog.SetGlobalLevel(levelFromEnv())

	l := NewLogger()
	zerolog.DefaultContextLogger = &l
}

// levelFromEnv reads DEBUG=1 or LOG_LEVEL, info otherwise
func levelFromEnv() zerolog.Level {
	if os.Getenv("DEBUG") == "1" {
		return zerolog.DebugLevel
	}
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		return lvl
	}
	return zerolog.InfoLevel
}

// shortCaller renders file:line plus the package-qualified function name
func shortCaller(pc uintptr, file string, line int) string {
	caller := file + ":" + strconv.Itoa(line)
	if fn := runtime.FuncForPC(pc); fn != nil {
		name := fn.Name()
		if slash := strings.LastIndex(name, "/"); slash > 0 {
			name = name[slash+1:]
		}
		caller += " " + name + "()"
	}
	return caller
}

func NewLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger().Hook(CallerHook{})
	if os.Getenv("PRETTY") == "1" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return logger
}

// Component returns a logger tagged with the subsystem that emits it
func Component(name string) zerolog.Logger {
	return NewLogger().With().Str("component", name).Logger()
}

// WithRequestID stores a copy of base tagged with reqID in ctx, for zerolog.Ctx
func WithRequestID(ctx context.Context, base zerolog.Logger, reqID string) context.Context {
	return base.With().Str("reqID", reqID).Logger().WithContext(ctx)
}

type CallerHook struct{}

func (h CallerHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	e.Caller(3)
}
