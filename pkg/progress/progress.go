// Package progress coalesces the high-frequency internal state produced by
// the Executor, the Archive Pipeline, and the output sinks (bytes written,
// tasks completed) into a throttled, externally observable event stream. It
// generalizes the teacher's pattern (pkg/state's Tracker/Coalescer pair used
// to expose synchronization session state to a CLI) from "one sink pushes
// progress" to "the whole engine pushes one coalesced status stream".
package progress

import (
	"sync/atomic"
	"time"

	"github.com/triagekit/engine/pkg/state"
	"github.com/triagekit/engine/pkg/stream"
)

// Snapshot is a point-in-time view of collection progress.
type Snapshot struct {
	TasksCompleted   uint64
	TasksTotal       uint64
	BytesTransferred uint64
}

// Reporter accumulates progress counters and emits coalesced Snapshots no
// more often than once per coalescing window, regardless of how frequently
// the counters are updated.
type Reporter struct {
	coalescer *state.Coalescer

	tasksCompleted   uint64
	tasksTotal       uint64
	bytesTransferred uint64

	events chan Snapshot
	done   chan struct{}
}

// NewReporter creates a Reporter that coalesces updates within window into a
// single Snapshot delivery.
func NewReporter(window time.Duration) *Reporter {
	r := &Reporter{
		coalescer: state.NewCoalescer(window),
		events:    make(chan Snapshot, 1),
		done:      make(chan struct{}),
	}
	go r.forward()
	return r
}

// forward bridges the coalescer's bare signal channel to a channel of
// Snapshot values, since a signal alone carries no information about which
// counters changed.
func (r *Reporter) forward() {
	for {
		select {
		case <-r.coalescer.Events():
			snap := r.Snapshot()
			select {
			case <-r.events:
			default:
			}
			r.events <- snap
		case <-r.done:
			return
		}
	}
}

// SetTasksTotal records the total number of tasks this collection run will
// execute, once known (after planning completes).
func (r *Reporter) SetTasksTotal(n uint64) {
	atomic.StoreUint64(&r.tasksTotal, n)
	r.coalescer.Strobe()
}

// TaskCompleted records that one more task has finished, regardless of its
// outcome.
func (r *Reporter) TaskCompleted() {
	atomic.AddUint64(&r.tasksCompleted, 1)
	r.coalescer.Strobe()
}

// Auditor returns a stream.Auditor suitable for wrapping an archive entry
// writer or sink writer via stream.NewAuditWriter, so that bytes flowing
// through any destination are folded into this reporter's byte counter.
func (r *Reporter) Auditor() stream.Auditor {
	return func(n uint64) {
		atomic.AddUint64(&r.bytesTransferred, n)
		r.coalescer.Strobe()
	}
}

// Snapshot returns the current counter values without waiting for the next
// coalesced event.
func (r *Reporter) Snapshot() Snapshot {
	return Snapshot{
		TasksCompleted:   atomic.LoadUint64(&r.tasksCompleted),
		TasksTotal:       atomic.LoadUint64(&r.tasksTotal),
		BytesTransferred: atomic.LoadUint64(&r.bytesTransferred),
	}
}

// Events returns the channel on which coalesced Snapshots are delivered. The
// channel is buffered with a capacity of 1: a slow consumer only ever misses
// intermediate snapshots, never the most recent one.
func (r *Reporter) Events() <-chan Snapshot {
	return r.events
}

// Close terminates the reporter's background goroutine and underlying
// coalescer. It must be called exactly once.
func (r *Reporter) Close() {
	close(r.done)
	r.coalescer.Terminate()
}
