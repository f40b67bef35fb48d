package reliability

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// StoreErrorClass buckets durable-store failures for logs and metrics.
type StoreErrorClass string

const (
	ClassTimeout    StoreErrorClass = "timeout"
	ClassCanceled   StoreErrorClass = "canceled"
	ClassConnection StoreErrorClass = "connection"
	ClassConstraint StoreErrorClass = "constraint"
	ClassOther      StoreErrorClass = "other"
)

// ClassifyStoreError inspects err for context, network, and driver signals.
func ClassifyStoreError(err error) StoreErrorClass {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ClassCanceled
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ClassTimeout
		}
		return ClassConnection
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 23: integrity constraint violation; class 08: connection exception.
		switch {
		case strings.HasPrefix(pgErr.Code, "23"):
			return ClassConstraint
		case strings.HasPrefix(pgErr.Code, "08"):
			return ClassConnection
		}
		return ClassOther
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "constraint"):
		return ClassConstraint
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "busy"):
		return ClassTimeout
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "bad connection"),
		strings.Contains(msg, "broken pipe"), strings.Contains(msg, "connection reset"):
		return ClassConnection
	}
	return ClassOther
}

// IsRetryable reports whether a store failure may succeed on retry.
func IsRetryable(class StoreErrorClass) bool {
	switch class {
	case ClassTimeout, ClassConnection:
		return true
	default:
		return false
	}
}

// ExponentialBackoff computes a deterministic capped backoff duration.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}

// Retry runs fn until it succeeds, returns a non-retryable error, or attempts
// are exhausted. It waits between attempts using ExponentialBackoff.
func Retry(ctx context.Context, attempts int, base, cap time.Duration, fn func(context.Context) error) error {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !IsRetryable(ClassifyStoreError(err)) || attempt == attempts-1 {
			return err
		}
		timer := time.NewTimer(ExponentialBackoff(attempt, base, cap))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
