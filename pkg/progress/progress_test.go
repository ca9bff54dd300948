package progress

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/triagekit/engine/pkg/stream"
)

func TestReporterCoalescesBytesAndTasks(t *testing.T) {
	r := NewReporter(10 * time.Millisecond)
	defer r.Close()

	r.SetTasksTotal(3)

	var dst bytes.Buffer
	w := stream.NewAuditWriter(&dst, r.Auditor())
	_, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	_, err = w.Write([]byte(" world"))
	require.NoError(t, err)

	r.TaskCompleted()
	r.TaskCompleted()

	require.Eventually(t, func() bool {
		snap := r.Snapshot()
		return snap.BytesTransferred == 11 && snap.TasksCompleted == 2 && snap.TasksTotal == 3
	}, time.Second, time.Millisecond)
}

func TestReporterDeliversCoalescedEvent(t *testing.T) {
	r := NewReporter(5 * time.Millisecond)
	defer r.Close()

	r.TaskCompleted()

	select {
	case snap := <-r.Events():
		require.EqualValues(t, 1, snap.TasksCompleted)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for coalesced snapshot")
	}
}
