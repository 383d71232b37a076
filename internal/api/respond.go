package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"giggleglitch/pkg/chat"
	"giggleglitch/pkg/gateway"
	"giggleglitch/pkg/generator"
	"giggleglitch/pkg/media"
	"giggleglitch/pkg/model"
)

// maxBodyBytes bounds request bodies; inline images dominate.
const maxBodyBytes = 32 << 20

// invalidRequest marks client input errors.
type invalidRequest struct{ err error }

func (e invalidRequest) Error() string { return e.err.Error() }
func (e invalidRequest) Unwrap() error { return e.err }

func badRequest(format string, args ...any) error {
	return invalidRequest{fmt.Errorf(format, args...)}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return invalidRequest{fmt.Errorf("invalid request body: %w", err)}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps err to a status and writes {"error": message}.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := gateway.UserMessage(err)
	var inv invalidRequest
	if errors.As(err, &inv) {
		msg = inv.Error()
	}
	if status >= http.StatusInternalServerError {
		slog.Warn("API: Request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func statusFor(err error) int {
	var inv invalidRequest
	switch {
	case errors.As(err, &inv),
		errors.Is(err, model.ErrUnknownVibe),
		errors.Is(err, model.ErrInvalidImageConfig),
		errors.Is(err, chat.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, gateway.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, gateway.ErrVideoTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, gateway.ErrInvalidResponse),
		errors.Is(err, gateway.ErrNoVisualPart),
		errors.Is(err, gateway.ErrSpeech),
		errors.Is(err, gateway.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, generator.ErrNoJoke), errors.Is(err, generator.ErrNoVisual):
		return http.StatusConflict
	case errors.Is(err, media.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
