package executor

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Executor runs a flat list of Tasks with bounded concurrency on the
// cooperative I/O substrate, offloading CPU-bound work to a paired compute
// pool. It enforces no ordering between independent tasks beyond what its
// caller imposes by sequencing separate Run calls (§4.6, §5: volatile
// collection's results must be available before memory tasks are
// constructed, which this package's caller — pkg/collector — guarantees by
// running volatile collection in its own phase before building memory
// tasks).
type Executor struct {
	concurrency int
	compute     *ComputePool
}

// Options configures an Executor.
type Options struct {
	// Concurrency bounds the number of tasks run concurrently on the I/O
	// substrate. It is clamped to min(Concurrency, runtime.NumCPU()) per
	// §4.6 ("parallelism ≤ min(configured thread count, number of CPU
	// cores)"). A value <= 0 selects runtime.NumCPU().
	Concurrency int

	// ComputeWorkers sizes the CPU-bound worker pool. A value <= 0 selects
	// runtime.NumCPU().
	ComputeWorkers int
}

// New constructs an Executor and starts its compute pool.
func New(opts Options) *Executor {
	concurrency := opts.Concurrency
	cores := runtime.NumCPU()
	if concurrency <= 0 || concurrency > cores {
		concurrency = cores
	}

	return &Executor{
		concurrency: concurrency,
		compute:     NewComputePool(opts.ComputeWorkers, 0),
	}
}

// Close shuts down the executor's compute pool. It must be called exactly
// once after every Run call has returned.
func (e *Executor) Close() {
	e.compute.Close()
}

// Run executes tasks with bounded concurrency, collecting one
// CollectionResult per task regardless of individual task failure or
// cancellation: a task whose turn comes after ctx is done is recorded as
// StatusCancelled, even when ctx was already done before Run was called.
// Per-task failures are recorded in the returned results, not surfaced as a
// Go error, per §4.6, so the returned error is always nil.
func (e *Executor) Run(ctx context.Context, tasks []Task) ([]CollectionResult, error) {
	results := make([]CollectionResult, len(tasks))

	// group never returns a non-nil error from any Go call below, so its
	// derived context is never cancelled early by a sibling's failure; each
	// task's own cancellation is handled internally by the task.
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.concurrency)

	for i, task := range tasks {
		i, task := i, task
		group.Go(func() error {
			results[i] = runSingleTask(groupCtx, task, e.compute)
			return nil
		})
	}

	_ = group.Wait()

	return results, nil
}

// runSingleTask executes one task, converting cancellation into a recorded
// StatusCancelled result rather than propagating it, so that a cancelled
// collection still ends with exactly one result per task (§8 invariant 3).
func runSingleTask(ctx context.Context, task Task, compute ComputeSubmitter) CollectionResult {
	if err := ctx.Err(); err != nil {
		return CollectionResult{Status: StatusCancelled, Error: err.Error()}
	}

	result := task.Run(ctx, compute)
	if result.Status == "" {
		result.Status = StatusOK
	}
	return result
}
