package services

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"eventez-payments/internal/services/gateway"
	"eventez-payments/internal/status"
)

// VerifyState is the state of one verification loop.
type VerifyState int32

const (
	VerifyRunning VerifyState = iota
	VerifySucceeded
	VerifyFailed
	VerifyTimedOut
	VerifyStopped
)

func (s VerifyState) String() string {
	switch s {
	case VerifyRunning:
		return "running"
	case VerifySucceeded:
		return "succeeded"
	case VerifyFailed:
		return "failed"
	case VerifyTimedOut:
		return "timed_out"
	case VerifyStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// VerifyCallbacks are invoked by the loop. At most one terminal callback
// fires per loop, and none fire after Stop.
type VerifyCallbacks struct {
	OnTick    func(attempt int)
	OnSuccess func(result *gateway.StatusResult)
	OnFailure func(reason string)
	OnTimeout func()
}

// Verification polls a payment until the gateway reports a terminal status
// or the wall-clock window expires. Ticks are strictly sequential: a status
// check runs inline on the loop goroutine, so a slow check simply delays the
// next tick instead of overlapping it.
type Verification struct {
	paymentID string

	interval time.Duration
	deadline time.Time

	clock Clock

	// check queries the gateway (or the record store for non-gateway
	// methods) and never returns a transport error.
	check func(ctx context.Context) *gateway.StatusResult

	// settle applies the one-time success side effects before OnSuccess.
	settle func(ctx context.Context, result *gateway.StatusResult) error

	// fail marks the payment failed before OnFailure.
	fail func(ctx context.Context, reason string)

	cb VerifyCallbacks

	// onFinish releases the loop's registration, whatever the outcome.
	onFinish func(*Verification)

	state    atomic.Int32
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}

	attempts int
}

// State returns the current loop state.
func (v *Verification) State() VerifyState {
	return VerifyState(v.state.Load())
}

// PaymentID returns the payment this loop polls.
func (v *Verification) PaymentID() string {
	return v.paymentID
}

// Stop cancels the loop. It is idempotent, safe after a terminal state, and
// guarantees that no callback fires afterwards: an in-flight check's result
// is discarded.
func (v *Verification) Stop() {
	v.transition(VerifyStopped)
	v.stopOnce.Do(func() { close(v.stopCh) })
}

// transition moves running -> to. Exactly one terminal transition wins; the
// callbacks hang off that guarantee.
func (v *Verification) transition(to VerifyState) bool {
	return v.state.CompareAndSwap(int32(VerifyRunning), int32(to))
}

func (v *Verification) run(ctx context.Context) {
	defer close(v.done)
	defer v.onFinish(v)

	ticker := v.clock.NewTicker(v.interval)
	defer ticker.Stop()

	for {
		select {
		case <-v.stopCh:
			return

		case <-ctx.Done():
			v.transition(VerifyStopped)
			return

		case <-ticker.C():
			// The timeout window is a wall-clock deadline from start time:
			// slow networks shorten the effective retry count.
			if !v.clock.Now().Before(v.deadline) {
				if v.transition(VerifyTimedOut) {
					log.Printf("verification %s: timed out, payment left processing", v.paymentID)
					if v.cb.OnTimeout != nil {
						v.cb.OnTimeout()
					}
				}
				return
			}

			result := v.check(ctx)
			if v.State() != VerifyRunning {
				// Stopped while the check was in flight; discard the result.
				return
			}

			switch result.Status {
			case status.Successful:
				if err := v.settle(ctx, result); err != nil {
					// Settlement will be retried by a manual re-check; do not
					// consume the terminal transition on a store failure.
					log.Printf("verification %s: settle: %v", v.paymentID, err)
					continue
				}
				if v.transition(VerifySucceeded) {
					if v.cb.OnSuccess != nil {
						v.cb.OnSuccess(result)
					}
				}
				return

			case status.Failed:
				if v.transition(VerifyFailed) {
					v.fail(ctx, result.Reason)
					if v.cb.OnFailure != nil {
						v.cb.OnFailure(result.Reason)
					}
				}
				return

			default:
				v.attempts++
				if v.cb.OnTick != nil {
					v.cb.OnTick(v.attempts)
				}
			}
		}
	}
}
