package retry

import (
	"context"
	"strings"
	"time"

	"grpcheck/pkg/logging"
)

// transientPatterns is the fixed vocabulary of transient network failure
// text. Only failures matching one of these are ever retried; RPC-level
// application errors never reach the classifier.
var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"timed out",
	"unavailable",
	"deadline exceeded",
	"no such host",
}

// IsTransient classifies an infrastructure failure by its message text
// against the transient-network vocabulary.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// Policy is the retry configuration. Constructed once from configuration,
// stateless, and reused across calls.
type Policy struct {
	// MaxAttempts bounds the total number of attempts, including the first.
	MaxAttempts int
	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration
	// BackoffMultiplier scales the delay after each retry.
	BackoffMultiplier float64
	// Classify reports whether a failure is transient and worth retrying.
	Classify func(error) bool
}

// DefaultPolicy matches the runner defaults: three attempts with a doubling
// backoff starting at half a second.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       3,
		InitialDelay:      500 * time.Millisecond,
		BackoffMultiplier: 2,
		Classify:          IsTransient,
	}
}

// Disabled returns the policy with retries globally off: exactly one
// attempt, nothing else changed.
func (p Policy) Disabled() Policy {
	p.MaxAttempts = 1
	return p
}

// WithMaxAttempts returns the policy with an overridden attempt ceiling,
// used for per-definition OPTIONS retries. Zero or negative disables
// retries.
func (p Policy) WithMaxAttempts(n int) Policy {
	if n < 1 {
		n = 1
	}
	p.MaxAttempts = n
	return p
}

// Coordinator executes operations under a retry policy.
//
// State machine per operation:
//
//	ATTEMPT -> SUCCESS            (terminal)
//	ATTEMPT -> NON_RETRYABLE      (terminal)
//	ATTEMPT -> RETRYABLE -> ATTEMPT, bounded by MaxAttempts
type Coordinator struct {
	policy Policy
	sleep  func(ctx context.Context, d time.Duration) error
}

// New returns a coordinator using the real clock for backoff sleeps.
func New(policy Policy) *Coordinator {
	return &Coordinator{policy: policy, sleep: sleepContext}
}

// NewWithSleeper returns a coordinator with a substituted sleep function,
// for tests that must not wait on real backoff delays.
func NewWithSleeper(policy Policy, sleep func(ctx context.Context, d time.Duration) error) *Coordinator {
	return &Coordinator{policy: policy, sleep: sleep}
}

// Policy returns the coordinator's policy.
func (c *Coordinator) Policy() Policy {
	return c.policy
}

// WithPolicy returns a coordinator sharing this one's sleep function but
// running under a different policy. Used for per-definition overrides.
func (c *Coordinator) WithPolicy(p Policy) *Coordinator {
	return &Coordinator{policy: p, sleep: c.sleep}
}

// Do runs op until it succeeds, fails non-retryably, or the attempt ceiling
// is reached. It returns the number of attempts made and the final error.
// The last failure of an exhausted budget surfaces unretried.
func (c *Coordinator) Do(ctx context.Context, op func(context.Context) error) (int, error) {
	maxAttempts := c.policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	delay := c.policy.InitialDelay
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return attempt, nil
		}
		if c.policy.Classify == nil || !c.policy.Classify(err) {
			return attempt, err
		}
		if attempt == maxAttempts {
			return attempt, err
		}

		logging.Debug("Retry", "attempt %d/%d failed transiently (%v), retrying in %v", attempt, maxAttempts, err, delay)
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return attempt, sleepErr
		}
		delay = time.Duration(float64(delay) * c.policy.BackoffMultiplier)
	}
	return maxAttempts, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
