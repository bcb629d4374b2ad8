// Package retry wraps flaky external calls with tiered backoff. Tiers trade
// attempt count against latency: cosmetic calls give up fast, startup-critical
// calls keep trying with longer backoff.
package retry

import (
	"context"
	"log/slog"
	"time"
)

type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return "unknown"
	}
}

type Policy struct {
	Name              string
	MaxAttempts       int
	BaseDelay         time.Duration
	BackoffMultiplier float64
	Severity          Severity
}

var (
	// Cosmetic covers best-effort calls such as embed refreshes where a
	// failure only degrades the visible state.
	Cosmetic = Policy{Name: "cosmetic", MaxAttempts: 2, BaseDelay: 200 * time.Millisecond, BackoffMultiplier: 2, Severity: SeverityLow}

	// Lifecycle covers load-bearing state transitions: thread and voice
	// channel creation, terminal edits, match archiving.
	Lifecycle = Policy{Name: "lifecycle", MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, BackoffMultiplier: 2, Severity: SeverityMedium}

	// Critical covers startup-critical calls such as the initial gateway
	// login and command registration.
	Critical = Policy{Name: "critical", MaxAttempts: 5, BaseDelay: 1 * time.Second, BackoffMultiplier: 2, Severity: SeverityHigh}
)

// Do runs fn up to MaxAttempts times, backing off between attempts. It
// returns nil on the first success, the last error once attempts are
// exhausted, or the context error if ctx is cancelled while waiting. Every
// failed attempt and the final exhaustion are logged; nothing is dropped
// silently.
func (p Policy) Do(ctx context.Context, label string, fn func() error) error {
	delay := p.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == p.MaxAttempts {
			break
		}
		slog.Warn("retryable call failed",
			"label", label,
			"tier", p.Name,
			"attempt", attempt,
			"max_attempts", p.MaxAttempts,
			"next_delay", delay,
			"error", lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * p.BackoffMultiplier)
	}
	p.reportExhausted(label, lastErr)
	return lastErr
}

func (p Policy) reportExhausted(label string, err error) {
	attrs := []any{
		"label", label,
		"tier", p.Name,
		"severity", p.Severity.String(),
		"attempts", p.MaxAttempts,
		"error", err,
	}
	if p.Severity == SeverityLow {
		slog.Warn("retries exhausted", attrs...)
		return
	}
	slog.Error("retries exhausted", attrs...)
}
