package logging

import (
	"strings"
	"sync"
)

// LogCaptureWriter is a thread-safe writer that keeps the last written line.
type LogCaptureWriter struct {
	mu       sync.RWMutex
	lastLine string
}

// GlobalLogCapture captures the server log for /api/log/latest.
var GlobalLogCapture = &LogCaptureWriter{}

// Write implements io.Writer.
func (w *LogCaptureWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastLine = strings.TrimRight(string(p), "\n")
	return len(p), nil
}

// GetLastLine returns the most recent log line.
func (w *LogCaptureWriter) GetLastLine() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastLine
}
