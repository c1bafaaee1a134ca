package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewPicksSchedulerByConcurrency(t *testing.T) {
	t.Parallel()

	require.IsType(t, Sequential{}, New(0))
	require.IsType(t, Sequential{}, New(1))
	require.Equal(t, Bounded{Limit: 4}, New(4))
}

func TestSequentialRunsInIndexOrder(t *testing.T) {
	t.Parallel()

	var order []int
	err := Sequential{}.Run(context.Background(), 5, func(_ context.Context, i int) error {
		order = append(order, i)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestSequentialStopsAtFirstError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	var ran []int
	err := Sequential{}.Run(context.Background(), 5, func(_ context.Context, i int) error {
		ran = append(ran, i)
		if i == 2 {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, []int{0, 1, 2}, ran)
}

func TestSequentialHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Sequential{}.Run(ctx, 3, func(context.Context, int) error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, calls)
}

func TestBoundedRespectsLimitAndKeepsResultsByIndex(t *testing.T) {
	t.Parallel()

	const n = 12
	results := make([]int, n)
	var inFlight, peak atomic.Int32

	err := Bounded{Limit: 3}.Run(context.Background(), n, func(_ context.Context, i int) error {
		current := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if current <= old || peak.CompareAndSwap(old, current) {
				break
			}
		}
		// Later indices finish first.
		time.Sleep(time.Duration(n-i) * time.Millisecond)
		results[i] = i * i
		return nil
	})
	require.NoError(t, err)
	require.LessOrEqual(t, peak.Load(), int32(3))
	for i := range results {
		require.Equal(t, i*i, results[i])
	}
}

func TestBoundedReturnsFirstErrorAndCancelsOthers(t *testing.T) {
	t.Parallel()

	boom := errors.New("segment 1 failed")
	var cancelled atomic.Int32

	err := Bounded{Limit: 2}.Run(context.Background(), 6, func(ctx context.Context, i int) error {
		if i == 1 {
			return boom
		}
		select {
		case <-ctx.Done():
			cancelled.Add(1)
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})
	require.ErrorIs(t, err, boom)
	require.Positive(t, cancelled.Load())
}
