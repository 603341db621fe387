package biz

import (
	"context"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

// Circuit breaker states.
const (
	BreakerClosed   = "closed"
	BreakerOpen     = "open"
	BreakerHalfOpen = "half-open"
)

const (
	// breakerFailureThreshold opens the circuit after this many consecutive
	// failures.
	breakerFailureThreshold = 5
	// breakerRecoveryTimeout is how long the circuit stays open before a
	// single probe is allowed through.
	breakerRecoveryTimeout = 60 * time.Second
)

// CircuitBreaker is a per-tenant failure-threshold state machine wrapped
// around the HTTP execution step. While open it rejects immediately with
// *CircuitOpenError and performs no I/O. State is in-memory and dies with the
// handle. Safe for concurrent use.
type CircuitBreaker struct {
	tenantID string
	logger   *log.Helper

	mu                  sync.Mutex
	state               string
	consecutiveFailures int
	lastFailureAt       time.Time
	// probeInFlight enforces the single-probe rule in half-open.
	probeInFlight bool

	// now is injectable for tests.
	now func() time.Time
}

// NewCircuitBreaker creates a closed breaker for one tenant.
func NewCircuitBreaker(tenantID string, logger log.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		tenantID: tenantID,
		logger:   log.NewHelper(logger),
		state:    BreakerClosed,
		now:      time.Now,
	}
}

// Execute runs op under the breaker. A nil result from op closes the breaker
// and resets the failure count; an error counts as one failure. While open
// and inside the recovery window, op is not invoked at all.
func (b *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.before(); err != nil {
		return err
	}

	err := op(ctx)
	b.after(err)
	return err
}

// before admits or rejects a call and claims the half-open probe slot.
func (b *CircuitBreaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		retryAt := b.lastFailureAt.Add(breakerRecoveryTimeout)
		if b.now().Before(retryAt) {
			return &CircuitOpenError{TenantID: b.tenantID, RetryAt: retryAt}
		}
		// Recovery timeout elapsed: this caller becomes the probe.
		b.state = BreakerHalfOpen
		b.probeInFlight = true
		b.logger.Infow("circuit breaker half-open, probing",
			"tenant_id", b.tenantID)
		return nil

	case BreakerHalfOpen:
		if b.probeInFlight {
			return &CircuitOpenError{TenantID: b.tenantID, RetryAt: b.lastFailureAt.Add(breakerRecoveryTimeout)}
		}
		b.probeInFlight = true
		return nil

	default: // closed
		return nil
	}
}

// after records the call outcome.
func (b *CircuitBreaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasHalfOpen := b.state == BreakerHalfOpen
	b.probeInFlight = false

	if err == nil {
		// consecutiveFailures resets only on success.
		if b.state != BreakerClosed {
			b.logger.Infow("circuit breaker closed",
				"tenant_id", b.tenantID,
				"previous_state", b.state)
		}
		b.state = BreakerClosed
		b.consecutiveFailures = 0
		return
	}

	b.consecutiveFailures++
	b.lastFailureAt = b.now()

	if wasHalfOpen {
		// Probe failed: reopen immediately.
		b.state = BreakerOpen
		b.logger.Warnw("circuit breaker probe failed, reopening",
			"tenant_id", b.tenantID,
			"consecutive_failures", b.consecutiveFailures)
		return
	}

	if b.state == BreakerClosed && b.consecutiveFailures >= breakerFailureThreshold {
		b.state = BreakerOpen
		b.logger.Warnw("circuit breaker opened",
			"tenant_id", b.tenantID,
			"consecutive_failures", b.consecutiveFailures,
			"recovery_timeout", breakerRecoveryTimeout)
	}
}

// State returns the current breaker state label.
func (b *CircuitBreaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ConsecutiveFailures returns the current failure streak.
func (b *CircuitBreaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutiveFailures
}
