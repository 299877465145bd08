package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventez-payments/internal/services/gateway"
	"eventez-payments/internal/status"
)

const testWindow = 30 * time.Second

func newTestVerification(clock *fakeClock, check func(ctx context.Context) *gateway.StatusResult) *Verification {
	v := &Verification{
		paymentID: "pay-1",
		interval:  5 * time.Second,
		deadline:  clock.Now().Add(testWindow),
		clock:     clock,
		check:     check,
		settle:    func(context.Context, *gateway.StatusResult) error { return nil },
		fail:      func(context.Context, string) {},
		onFinish:  func(*Verification) {},
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	return v
}

func waitDone(t *testing.T, v *Verification) {
	t.Helper()
	select {
	case <-v.done:
	case <-time.After(2 * time.Second):
		t.Fatal("verification did not finish")
	}
}

func TestVerification_SuccessAfterPendingTicks(t *testing.T) {
	clock := newFakeClock()
	script := []*gateway.StatusResult{
		{Status: status.Pending},
		{Status: status.Pending},
		{Status: status.Successful, FinancialTxID: "ft-1"},
	}
	calls := 0
	v := newTestVerification(clock, func(context.Context) *gateway.StatusResult {
		r := script[calls]
		calls++
		return r
	})

	settled := make(chan *gateway.StatusResult, 1)
	v.settle = func(_ context.Context, r *gateway.StatusResult) error {
		settled <- r
		return nil
	}
	success := make(chan *gateway.StatusResult, 1)
	ticks := make(chan int, 8)
	v.cb = VerifyCallbacks{
		OnTick:    func(attempt int) { ticks <- attempt },
		OnSuccess: func(r *gateway.StatusResult) { success <- r },
		OnFailure: func(string) { t.Error("unexpected OnFailure") },
		OnTimeout: func() { t.Error("unexpected OnTimeout") },
	}

	go v.run(context.Background())
	clock.Tick()
	clock.Tick()
	clock.Tick()
	waitDone(t, v)

	assert.Equal(t, VerifySucceeded, v.State())
	assert.Equal(t, 3, calls)
	require.Len(t, ticks, 2)
	r := <-settled
	assert.Equal(t, "ft-1", r.FinancialTxID)
	assert.Equal(t, "ft-1", (<-success).FinancialTxID)
}

func TestVerification_Failure(t *testing.T) {
	clock := newFakeClock()
	v := newTestVerification(clock, func(context.Context) *gateway.StatusResult {
		return &gateway.StatusResult{Status: status.Failed, Reason: "Payer rejected the payment"}
	})

	var failedWith string
	v.fail = func(_ context.Context, reason string) { failedWith = reason }
	failure := make(chan string, 1)
	v.cb = VerifyCallbacks{
		OnFailure: func(reason string) { failure <- reason },
		OnSuccess: func(*gateway.StatusResult) { t.Error("unexpected OnSuccess") },
	}

	go v.run(context.Background())
	clock.Tick()
	waitDone(t, v)

	assert.Equal(t, VerifyFailed, v.State())
	assert.Equal(t, "Payer rejected the payment", failedWith)
	assert.Equal(t, "Payer rejected the payment", <-failure)
}

// After the window expires the loop gives up without touching the payment:
// no settle, no fail. A later manual re-check resolves it.
func TestVerification_Timeout(t *testing.T) {
	clock := newFakeClock()
	checked := 0
	v := newTestVerification(clock, func(context.Context) *gateway.StatusResult {
		checked++
		return &gateway.StatusResult{Status: status.Pending}
	})

	v.settle = func(context.Context, *gateway.StatusResult) error {
		t.Error("unexpected settle")
		return nil
	}
	v.fail = func(context.Context, string) { t.Error("unexpected fail") }
	timedOut := make(chan struct{}, 1)
	v.cb = VerifyCallbacks{
		OnTimeout: func() { timedOut <- struct{}{} },
	}

	go v.run(context.Background())
	clock.Tick()
	clock.Advance(testWindow + time.Second)
	clock.Tick()
	waitDone(t, v)

	assert.Equal(t, VerifyTimedOut, v.State())
	assert.Equal(t, 1, checked)
	<-timedOut
}

// A tick firing exactly at the window edge times out instead of running one
// more check past the configured window.
func TestVerification_TimeoutAtWindowEdge(t *testing.T) {
	clock := newFakeClock()
	v := newTestVerification(clock, func(context.Context) *gateway.StatusResult {
		t.Error("unexpected check")
		return nil
	})

	timedOut := make(chan struct{}, 1)
	v.cb = VerifyCallbacks{
		OnTimeout: func() { timedOut <- struct{}{} },
	}

	go v.run(context.Background())
	clock.Advance(testWindow)
	clock.Tick()
	waitDone(t, v)

	assert.Equal(t, VerifyTimedOut, v.State())
	<-timedOut
}

func TestVerification_StopIsIdempotent(t *testing.T) {
	clock := newFakeClock()
	v := newTestVerification(clock, func(context.Context) *gateway.StatusResult {
		t.Error("unexpected check")
		return nil
	})
	v.cb = VerifyCallbacks{
		OnSuccess: func(*gateway.StatusResult) { t.Error("unexpected OnSuccess") },
		OnFailure: func(string) { t.Error("unexpected OnFailure") },
		OnTimeout: func() { t.Error("unexpected OnTimeout") },
	}

	go v.run(context.Background())
	v.Stop()
	v.Stop()
	waitDone(t, v)

	assert.Equal(t, VerifyStopped, v.State())
	v.Stop() // still safe after the loop is gone
}

// A check already in flight when Stop lands must have its result discarded:
// no settlement, no callback.
func TestVerification_StopDiscardsInFlightResult(t *testing.T) {
	clock := newFakeClock()
	inCheck := make(chan struct{})
	release := make(chan struct{})
	v := newTestVerification(clock, func(context.Context) *gateway.StatusResult {
		close(inCheck)
		<-release
		return &gateway.StatusResult{Status: status.Successful, FinancialTxID: "ft-9"}
	})

	v.settle = func(context.Context, *gateway.StatusResult) error {
		t.Error("unexpected settle after stop")
		return nil
	}
	v.cb = VerifyCallbacks{
		OnSuccess: func(*gateway.StatusResult) { t.Error("unexpected OnSuccess after stop") },
	}

	go v.run(context.Background())
	go clock.Tick()
	<-inCheck
	v.Stop()
	close(release)
	waitDone(t, v)

	assert.Equal(t, VerifyStopped, v.State())
}

// A failing settlement must not consume the terminal transition: the loop
// keeps polling and settles on a later tick.
func TestVerification_SettleRetryOnNextTick(t *testing.T) {
	clock := newFakeClock()
	v := newTestVerification(clock, func(context.Context) *gateway.StatusResult {
		return &gateway.StatusResult{Status: status.Successful, FinancialTxID: "ft-2"}
	})

	settleCalls := 0
	v.settle = func(context.Context, *gateway.StatusResult) error {
		settleCalls++
		if settleCalls == 1 {
			return errors.New("store unavailable")
		}
		return nil
	}
	success := make(chan struct{}, 1)
	v.cb = VerifyCallbacks{
		OnSuccess: func(*gateway.StatusResult) { success <- struct{}{} },
	}

	go v.run(context.Background())
	clock.Tick()
	clock.Tick()
	waitDone(t, v)

	assert.Equal(t, VerifySucceeded, v.State())
	assert.Equal(t, 2, settleCalls)
	<-success
}

func TestVerification_ContextCancel(t *testing.T) {
	clock := newFakeClock()
	v := newTestVerification(clock, func(context.Context) *gateway.StatusResult {
		return &gateway.StatusResult{Status: status.Pending}
	})

	ctx, cancel := context.WithCancel(context.Background())
	go v.run(ctx)
	cancel()
	waitDone(t, v)

	assert.Equal(t, VerifyStopped, v.State())
}
