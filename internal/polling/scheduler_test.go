package polling

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_InvokesCallbackRepeatedly(t *testing.T) {
	s := NewScheduler(nil)
	var calls atomic.Int32

	require.NoError(t, s.Start(context.Background(), 5*time.Millisecond, func(ctx context.Context) {
		calls.Add(1)
	}))
	defer s.Stop()

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	assert.True(t, s.Active())
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	s := NewScheduler(nil)
	assert.NotPanics(t, s.Stop, "stop with nothing running")

	require.NoError(t, s.Start(context.Background(), time.Hour, func(ctx context.Context) {}))
	s.Stop()
	s.Stop()
	s.Wait()
	assert.False(t, s.Active())
	assert.False(t, s.Trigger())
}

func TestScheduler_RestartLeavesOneLoop(t *testing.T) {
	s := NewScheduler(nil)
	var first, second atomic.Int32

	require.NoError(t, s.Start(context.Background(), 2*time.Millisecond, func(ctx context.Context) {
		first.Add(1)
	}))
	assert.Eventually(t, func() bool { return first.Load() > 0 }, time.Second, time.Millisecond)

	require.NoError(t, s.Start(context.Background(), 2*time.Millisecond, func(ctx context.Context) {
		second.Add(1)
	}))
	defer s.Stop()

	frozen := first.Load()
	assert.Eventually(t, func() bool { return second.Load() >= 3 }, time.Second, time.Millisecond)
	assert.Equal(t, frozen, first.Load(), "the replaced loop never runs again")
}

func TestScheduler_CallbacksNeverOverlap(t *testing.T) {
	s := NewScheduler(nil)
	var inFlight, maxInFlight, calls atomic.Int32

	require.NoError(t, s.Start(context.Background(), time.Millisecond, func(ctx context.Context) {
		n := inFlight.Add(1)
		if n > maxInFlight.Load() {
			maxInFlight.Store(n)
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		calls.Add(1)
	}))

	for i := 0; i < 10; i++ {
		s.Trigger()
	}

	assert.Eventually(t, func() bool { return calls.Load() >= 5 }, 2*time.Second, time.Millisecond)
	s.Stop()
	s.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load())
	assert.Positive(t, s.Skipped(), "slow callbacks drop ticks instead of queueing them")
}

func TestScheduler_StopFromCallback(t *testing.T) {
	s := NewScheduler(nil)
	var calls atomic.Int32

	require.NoError(t, s.Start(context.Background(), time.Millisecond, func(ctx context.Context) {
		calls.Add(1)
		s.Stop()
	}))

	s.Wait()
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, s.Active())
}

func TestScheduler_TriggerRunsImmediately(t *testing.T) {
	s := NewScheduler(nil)
	ran := make(chan struct{}, 1)

	require.NoError(t, s.Start(context.Background(), time.Hour, func(ctx context.Context) {
		ran <- struct{}{}
	}))
	defer s.Stop()

	assert.True(t, s.Trigger())
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("triggered poll did not run")
	}
}

func TestScheduler_ParentContextCancellation(t *testing.T) {
	s := NewScheduler(nil)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, s.Start(ctx, time.Hour, func(ctx context.Context) {}))
	cancel()
	s.Wait()
	assert.False(t, s.Active())
}

func TestScheduler_RejectsInvalidArguments(t *testing.T) {
	s := NewScheduler(nil)
	assert.Error(t, s.Start(context.Background(), 0, func(ctx context.Context) {}))
	assert.Error(t, s.Start(context.Background(), time.Second, nil))
}
