package executor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunProducesOneResultPerTask(t *testing.T) {
	e := New(Options{Concurrency: 4})
	defer e.Close()

	var running int32
	var maxRunning int32

	tasks := make([]Task, 20)
	for i := range tasks {
		i := i
		tasks[i] = TaskFunc(func(ctx context.Context, compute ComputeSubmitter) CollectionResult {
			n := atomic.AddInt32(&running, 1)
			for {
				old := atomic.LoadInt32(&maxRunning)
				if n <= old || atomic.CompareAndSwapInt32(&maxRunning, old, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&running, -1)
			return CollectionResult{TaskID: uint64(i), Status: StatusOK}
		})
	}

	results, err := e.Run(context.Background(), tasks)
	require.NoError(t, err)
	require.Len(t, results, 20)
	for i, r := range results {
		require.Equal(t, uint64(i), r.TaskID)
		require.Equal(t, StatusOK, r.Status)
	}
	require.LessOrEqual(t, int(atomic.LoadInt32(&maxRunning)), 4)
}

func TestRunRespectsCancellation(t *testing.T) {
	e := New(Options{Concurrency: 2})
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tasks := []Task{
		TaskFunc(func(ctx context.Context, compute ComputeSubmitter) CollectionResult {
			return CollectionResult{Status: StatusOK}
		}),
	}

	results, err := e.Run(ctx, tasks)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, StatusCancelled, results[0].Status)
}

func TestComputeSubmitterRunsWorkOffIORunner(t *testing.T) {
	e := New(Options{Concurrency: 2, ComputeWorkers: 2})
	defer e.Close()

	var computed int32
	task := TaskFunc(func(ctx context.Context, compute ComputeSubmitter) CollectionResult {
		done := compute.Submit(ctx, func() error {
			atomic.AddInt32(&computed, 1)
			return nil
		})
		if err := <-done; err != nil {
			return CollectionResult{Status: StatusFailedIO, Error: err.Error()}
		}
		return CollectionResult{Status: StatusOK}
	})

	results, err := e.Run(context.Background(), []Task{task})
	require.NoError(t, err)
	require.Equal(t, StatusOK, results[0].Status)
	require.EqualValues(t, 1, atomic.LoadInt32(&computed))
}
