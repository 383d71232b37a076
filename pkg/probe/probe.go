// Package probe runs startup and health checks.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultTimeout bounds a check that sets no timeout of its own.
const DefaultTimeout = 5 * time.Second

// CheckFunc returns nil when the check passes.
type CheckFunc func(ctx context.Context) error

// Probe is a single named check.
type Probe struct {
	Name     string
	Check    CheckFunc
	Critical bool // a failure prevents startup
	Timeout  time.Duration
}

// Result holds the outcome of a single probe.
type Result struct {
	Name     string        `json:"name"`
	Critical bool          `json:"critical"`
	OK       bool          `json:"ok"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"durationNs"`

	err error
}

// Err returns the check error, if any.
func (r Result) Err() error { return r.err }

// Run executes the probes concurrently; results keep the input order.
func Run(ctx context.Context, probes []Probe) []Result {
	results := make([]Result, len(probes))

	var wg sync.WaitGroup
	for i, p := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			timeout := p.Timeout
			if timeout <= 0 {
				timeout = DefaultTimeout
			}
			cctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			err := p.Check(cctx)
			results[i] = Result{
				Name:     p.Name,
				Critical: p.Critical,
				OK:       err == nil,
				Duration: time.Since(start),
				err:      err,
			}
			if err != nil {
				results[i].Error = err.Error()
			}
		}()
	}
	wg.Wait()
	return results
}

// Healthy reports whether every critical probe passed.
func Healthy(results []Result) bool {
	for _, r := range results {
		if r.Critical && !r.OK {
			return false
		}
	}
	return true
}

// AnalyzeResults logs a summary and joins the errors of failed critical
// probes.
func AnalyzeResults(results []Result) error {
	var criticalErrors []error

	slog.Info("Startup Checks Summary")
	for _, r := range results {
		status := "PASS"
		if !r.OK {
			status = "FAIL"
		}
		msg := fmt.Sprintf("[%s] %-20s (%v)", status, r.Name, r.Duration.Round(time.Millisecond))

		switch {
		case r.OK:
			slog.Info(msg)
		case r.Critical:
			slog.Error(msg, "error", r.err)
			criticalErrors = append(criticalErrors, fmt.Errorf("%s: %w", r.Name, r.err))
		default:
			slog.Warn(msg, "error", r.err)
		}
	}

	return errors.Join(criticalErrors...)
}
