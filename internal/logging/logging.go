// Package logging wires log/slog for the command line and the MCP server.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/lmittmann/tint"
	slogctx "github.com/veqryn/slog-context"
	"gitlab.com/tozd/go/errors"
)

// ErrUnknownLevel is returned for a level name ParseLevel does not know.
var ErrUnknownLevel = errors.Base("unknown log level")

// Levels lists the accepted level names.
var Levels = []string{"debug", "info", "warn", "error"}

// ParseLevel maps a level name to a slog level. The empty string is info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, errors.Errorf("%q: %w", name, ErrUnknownLevel)
}

// Setup installs a tint handler writing to w as the default logger and
// returns ctx carrying it. Callers log through slogctx so that attributes
// added with slogctx.With travel with the context.
func Setup(ctx context.Context, w io.Writer, level string, color bool) (context.Context, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return ctx, err
	}

	handler := tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: "15:04:05.000",
		NoColor:    !color,
	})

	logger := slog.New(slogctx.NewHandler(handler, &slogctx.HandlerOptions{}))
	slog.SetDefault(logger)

	return slogctx.NewCtx(ctx, logger), nil
}

// Discard returns ctx carrying a logger that drops everything.
func Discard(ctx context.Context) context.Context {
	return slogctx.NewCtx(ctx, slog.New(slog.DiscardHandler))
}
