package reaper

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeTxManager struct{}

func (f *fakeTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeLedger struct {
	reaped int64
	err    error
	calls  atomic.Int64
}

func (f *fakeLedger) ReapExpired(ctx context.Context, limit int) (int64, error) {
	f.calls.Add(1)
	return f.reaped, f.err
}

type fakeTokens struct {
	reaped int64
	err    error
	calls  atomic.Int64
}

func (f *fakeTokens) ReapExpired(ctx context.Context, limit int) (int64, error) {
	f.calls.Add(1)
	return f.reaped, f.err
}

func TestReaper_Sweep(t *testing.T) {
	ctx := context.Background()

	t.Run("BothLedgersSwept", func(t *testing.T) {
		ledger := &fakeLedger{reaped: 2}
		tokens := &fakeTokens{reaped: 3}
		reaper := newTestReaper(ledger, tokens)

		reaper.Sweep(ctx)

		assert.Equal(t, int64(1), ledger.calls.Load())
		assert.Equal(t, int64(1), tokens.calls.Load())
	})

	t.Run("SlotFailureDoesNotBlockTokenSweep", func(t *testing.T) {
		ledger := &fakeLedger{err: errors.New("deadlock detected")}
		tokens := &fakeTokens{reaped: 1}
		reaper := newTestReaper(ledger, tokens)

		// Must not panic or propagate the error
		reaper.Sweep(ctx)

		assert.Equal(t, int64(1), tokens.calls.Load())
	})
}

func TestReaper_Start(t *testing.T) {
	defer goleak.VerifyNone(t)

	ledger := &fakeLedger{}
	tokens := &fakeTokens{}
	reaper := newTestReaper(ledger, tokens)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- reaper.Start(ctx)
	}()

	// Let at least one tick fire, then stop
	require.Eventually(t, func() bool {
		return ledger.calls.Load() >= 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
}

func newTestReaper(ledger *fakeLedger, tokens *fakeTokens) *Reaper {
	return NewReaper(
		Config{Interval: 10 * time.Millisecond, BatchSize: 100},
		&fakeTxManager{},
		ledger,
		tokens,
		slog.Default(),
	)
}
