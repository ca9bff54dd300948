package contextutil

import (
	"context"
	"sync"
)

// IsCancelled returns whether or not the context's Done channel is closed.
func IsCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// WatchCancellation starts a goroutine that invokes onCancel exactly once
// if ctx is done before stop is called, for use at the suspension points
// named in §5 (chunk boundaries, entry-mutex waits, sink writes) where a
// blocking operation has no context-aware variant to select on directly.
// The returned stop function must always be called to release the
// goroutine, whether or not cancellation occurred.
func WatchCancellation(ctx context.Context, onCancel func()) (stop func()) {
	done := make(chan struct{})

	go func() {
		select {
		case <-ctx.Done():
			onCancel()
		case <-done:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}
