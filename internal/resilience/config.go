package resilience

import (
	"time"
)

// FetchRetryConfig is the page-fetch policy: every failure is retried, the
// n-th retry waits n*step, and there is no jitter.
func FetchRetryConfig(maxAttempts int, step time.Duration) RetryConfig {
	cfg := RetryConfig{
		MaxAttempts: maxAttempts,
		Backoff:     LinearBackoff(step),
		ShouldRetry: Always,
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return cfg
}
