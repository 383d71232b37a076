package logging

import "log/slog"

// EnableTrace turns on per-frame logging of the live audio loops.
// Off by default, a session produces dozens of frames per second.
// Setting the server level to TRACE enables it.
var EnableTrace = false

// TraceDefault logs at DEBUG on the default logger when EnableTrace is set.
func TraceDefault(msg string, args ...any) {
	if EnableTrace {
		slog.Debug(msg, args...)
	}
}
