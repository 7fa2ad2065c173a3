package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// Options controls logger construction.
type Options struct {
	// Level is a zerolog level name; empty or unknown means info.
	Level string
	// Format is "console" for human-readable output, anything else emits JSON.
	Format string
	Out    io.Writer
}

// New creates a console logger on stdout at info level.
func New() zerolog.Logger {
	return NewWithOptions(Options{Format: "console"})
}

// NewWithWriter creates a JSON logger writing to w.
func NewWithWriter(w io.Writer) zerolog.Logger {
	return NewWithOptions(Options{Out: w})
}

// NewWithOptions creates a logger from opts.
func NewWithOptions(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(opts.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return zerolog.New(out).Level(level).With().Timestamp().Caller().Logger()
}

// WithContext stores log in ctx.
func WithContext(ctx context.Context, log zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// FromContext returns the logger stored in ctx, or a default console logger.
func FromContext(ctx context.Context) zerolog.Logger {
	if log, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return log
	}
	return New()
}

// With returns a copy of the context logger enriched with a string field.
func With(ctx context.Context, key, value string) context.Context {
	log := FromContext(ctx).With().Str(key, value).Logger()
	return WithContext(ctx, log)
}
