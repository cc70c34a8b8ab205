package coach

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy bounds the evaluation retry loop. Injected rather than ad hoc
// timers so the schedule is testable on its own.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Delay returns the pause before the given retry (attempt is 1-based, the
// delay applies after attempt N fails): exponential doubling from BaseDelay,
// capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.BaseDelay <= 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// ServiceError is the surfaced failure after the retry budget is spent. The
// caller rolls the question back to Submitted and offers a manual retry.
type ServiceError struct {
	Attempts int
	Err      error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("coaching service failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Evaluator is the one-attempt contract Service retries over.
type Evaluator interface {
	Evaluate(ctx context.Context, req Request) (*Result, error)
}

// Service retries a client according to its policy. Evaluation requests are
// idempotent on this side: a retried attempt never double-counts an
// iteration because the exchange is only recorded once a result returns.
type Service struct {
	Client Evaluator
	Policy RetryPolicy
}

func (s *Service) Evaluate(ctx context.Context, req Request) (*Result, error) {
	attempts := s.Policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	tried := 0
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := s.Client.Evaluate(ctx, req)
		tried = attempt
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable(err) || attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, &ServiceError{Attempts: attempt, Err: ctx.Err()}
		case <-time.After(s.Policy.Delay(attempt)):
		}
	}
	return nil, &ServiceError{Attempts: tried, Err: lastErr}
}
