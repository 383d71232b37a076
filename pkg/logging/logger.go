package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"giggleglitch/pkg/config"
)

// RequestLogger is the logger instance for HTTP requests.
var RequestLogger *slog.Logger

// Init initializes the logging system based on configuration.
// It returns a cleanup function to close log files.
func Init(cfg *config.LogConfig) (func(), error) {
	// Rotate log files at startup, the previous run is kept as .old
	rotatePaths(cfg.Server.Path, cfg.Requests.Path, cfg.Gemini.Path)

	var closers []io.Closer

	// 1. Server logger (stdout + file + capture)
	serverHandler, file1, err := setupHandler(cfg.Server.Path, cfg.Server.Level, true)
	if err != nil {
		return nil, fmt.Errorf("failed to setup server logger: %w", err)
	}
	if file1 != nil {
		closers = append(closers, file1)
	}
	slog.SetDefault(slog.New(serverHandler))

	// 2. Requests logger (file only)
	requestHandler, file2, err := setupHandler(cfg.Requests.Path, cfg.Requests.Level, false)
	if err != nil {
		if file1 != nil {
			file1.Close()
		}
		return nil, fmt.Errorf("failed to setup requests logger: %w", err)
	}
	if file2 != nil {
		closers = append(closers, file2)
	}
	RequestLogger = slog.New(requestHandler)

	return func() {
		for _, c := range closers {
			c.Close()
		}
	}, nil
}

// ParseLevel maps a config level name to a slog level, defaulting to INFO.
func ParseLevel(name string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "TRACE":
		EnableTrace = true
		return slog.LevelDebug
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupHandler builds the handler chain for one log file. An empty path
// skips the file sink, which the command line tools rely on.
func setupHandler(path, levelStr string, stdout bool) (handler slog.Handler, file *os.File, err error) {
	level := ParseLevel(levelStr)
	var handlers []slog.Handler

	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, err
		}
		// Append mode, rotation happens in Init
		file, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		handlers = append(handlers, slog.NewTextHandler(file, &slog.HandlerOptions{
			Level:     level,
			AddSource: level == slog.LevelDebug,
		}))
	}

	if stdout {
		// Console stays at INFO or above
		handlers = append(handlers,
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: mathMaxLevel(level, slog.LevelInfo)}),
			slog.NewTextHandler(GlobalLogCapture, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	switch len(handlers) {
	case 0:
		return slog.DiscardHandler, nil, nil
	case 1:
		return handlers[0], file, nil
	}
	return &multiHandler{handlers: handlers}, file, nil
}

func mathMaxLevel(a, b slog.Level) slog.Level {
	if a > b {
		return a
	}
	return b
}

type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle implements slog.Handler
// nolint:gocritic // r must be passed by value to implement slog.Handler
func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: newHandlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: newHandlers}
}

// rotatePaths rotates the given log files if they exist by renaming them to .old.
// This is called at the start of Init to ensure logs are fresh each run but previous logs are kept.
func rotatePaths(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		dir := filepath.Dir(p)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			continue
		}

		// If file exists, rotate it
		if _, err := os.Stat(p); err == nil {
			oldPath := p + ".old"
			// Remove existing .old if present
			_ = os.Remove(oldPath)
			// Rename current to .old
			_ = os.Rename(p, oldPath)
		}
	}
}
