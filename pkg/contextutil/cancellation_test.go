package contextutil

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	require.False(t, IsCancelled(ctx))
	cancel()
	require.True(t, IsCancelled(ctx))
}

func TestWatchCancellationInvokesCallbackOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var invoked int32

	stop := WatchCancellation(ctx, func() {
		atomic.AddInt32(&invoked, 1)
	})
	defer stop()

	cancel()
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&invoked) == 1
	}, time.Second, time.Millisecond)
}

func TestWatchCancellationStopPreventsCallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var invoked int32

	stop := WatchCancellation(ctx, func() {
		atomic.AddInt32(&invoked, 1)
	})
	stop()
	cancel()

	time.Sleep(10 * time.Millisecond)
	require.EqualValues(t, 0, atomic.LoadInt32(&invoked))
}
