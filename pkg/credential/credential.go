// Package credential resolves the API key at call time so the host can
// rotate it without restarting or reconnecting.
package credential

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// ErrNoCredential is returned when no source yields a key.
var ErrNoCredential = errors.New("no API credential configured")

// EnvKeys are the environment variables consulted, in order.
var EnvKeys = []string{"GEMINI_API_KEY", "API_KEY", "GOOGLE_API_KEY"}

// Provider yields the current credential.
type Provider interface {
	Credential(ctx context.Context) (string, error)
}

// Static always returns the same key. An empty key yields ErrNoCredential.
type Static string

// Credential implements Provider.
func (s Static) Credential(context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", ErrNoCredential
	}
	return string(s), nil
}

// EnvProvider reads the key from a dotenv file, then the process
// environment, then a configured fallback. Nothing is cached.
type EnvProvider struct {
	File     string
	Fallback string
	lookup   func(string) (string, bool)
}

// NewEnvProvider returns a provider over file (may be empty) and fallback.
func NewEnvProvider(file, fallback string) *EnvProvider {
	return &EnvProvider{File: file, Fallback: fallback, lookup: os.LookupEnv}
}

// Credential implements Provider.
func (p *EnvProvider) Credential(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.File != "" {
		// A missing file is normal, the environment may carry the key.
		if vals, err := godotenv.Read(p.File); err == nil {
			if key := firstKey(func(k string) (string, bool) {
				v, ok := vals[k]
				return v, ok
			}); key != "" {
				return key, nil
			}
		}
	}
	lookup := p.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if key := firstKey(lookup); key != "" {
		return key, nil
	}
	if key := strings.TrimSpace(p.Fallback); key != "" {
		return key, nil
	}
	return "", ErrNoCredential
}

func firstKey(lookup func(string) (string, bool)) string {
	for _, k := range EnvKeys {
		if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
