package executor

import (
	"context"
)

// Task is one unit of work the Executor runs on the I/O substrate. Run must
// observe ctx at every suspension point and return a CollectionResult — it
// must never panic or return a raw error; all failure classification
// happens inside Run per §4.6 ("errors... never raised out of the task").
type Task interface {
	Run(ctx context.Context, compute ComputeSubmitter) CollectionResult
}

// TaskFunc adapts a plain function to the Task interface.
type TaskFunc func(ctx context.Context, compute ComputeSubmitter) CollectionResult

// Run implements Task.
func (f TaskFunc) Run(ctx context.Context, compute ComputeSubmitter) CollectionResult {
	return f(ctx, compute)
}
