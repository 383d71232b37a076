package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"giggleglitch/pkg/credential"
)

// Error kinds. Every error returned by the client matches exactly one of
// these under errors.Is, or a context error.
var (
	ErrAuth            = errors.New("missing or invalid API credential")
	ErrInvalidResponse = errors.New("invalid response")
	ErrNoVisualPart    = errors.New("response carried no image")
	ErrSpeech          = errors.New("response carried no audio")
	ErrUpstream        = errors.New("upstream failure")
	ErrVideoTimeout    = errors.New("video generation timed out")
)

// Error annotates a failure with the operation that produced it.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.Error()
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(op string, kind, cause error) *Error {
	return &Error{Op: op, Kind: kind, Err: cause}
}

// classify maps a backend error to the taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return err
	}
	if errors.Is(err, credential.ErrNoCredential) {
		return newError(op, ErrAuth, err)
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized, apiErr.Code == http.StatusForbidden:
			return newError(op, ErrAuth, err)
		case apiErr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Message), "api key"):
			return newError(op, ErrAuth, err)
		}
	}
	return newError(op, ErrUpstream, err)
}

// UserMessage renders err as the short message shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrAuth):
		return "An API key is required. Set GEMINI_API_KEY and try again."
	case errors.Is(err, ErrInvalidResponse):
		return "The AI sent back something unreadable. Please try again."
	case errors.Is(err, ErrNoVisualPart):
		return "No image came back this time."
	case errors.Is(err, ErrSpeech):
		return "No audio came back this time."
	case errors.Is(err, ErrVideoTimeout):
		return "Video generation took too long. Please try again."
	case errors.Is(err, context.Canceled):
		return "Request cancelled."
	case errors.Is(err, context.DeadlineExceeded):
		return "Request timed out."
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return shorten(apiErr.Message, 160)
	}
	var gwErr *Error
	if errors.As(err, &gwErr) && gwErr.Err != nil {
		return shorten(gwErr.Err.Error(), 160)
	}
	return shorten(err.Error(), 160)
}

func shorten(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
