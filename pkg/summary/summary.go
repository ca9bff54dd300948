// Package summary implements the Collection Summary (C12): the aggregate
// JSON document written as the final archive entry, combining per-task
// results, the volatile inventory, memory-subsystem outputs, and top-level
// timings.
package summary

import (
	"time"

	"github.com/google/uuid"

	"github.com/triagekit/engine/pkg/executor"
	"github.com/triagekit/engine/pkg/memory"
	"github.com/triagekit/engine/pkg/volatile"
)

// OverallStatus is one of the three terminal states named in §7.
type OverallStatus string

const (
	StatusOK       OverallStatus = "ok"
	StatusDegraded OverallStatus = "degraded"
	StatusFailed   OverallStatus = "failed"
)

// ArtifactOutcome tracks whether a manifest artifact's tasks succeeded,
// failed, or are still missing, per §8 invariant 3 (a required artifact
// must appear in either Acquired or Failed, never omitted).
type ArtifactOutcome struct {
	ArtifactName string   `json:"artifact_name"`
	Required     bool     `json:"required"`
	TaskIDs      []uint64 `json:"task_ids"`
}

// CollectionSummary is the document written to collection_summary.json.
type CollectionSummary struct {
	RunID          string                    `json:"run_id"`
	Hostname       string                    `json:"hostname"`
	StartedAt      time.Time                 `json:"started_at"`
	CompletedAt    time.Time                 `json:"completed_at"`
	Duration       time.Duration             `json:"duration_ns"`
	OverallStatus  OverallStatus             `json:"overall_status"`
	Cancelled      bool                      `json:"cancelled"`
	Acquired       []ArtifactOutcome         `json:"acquired"`
	Failed         []ArtifactOutcome         `json:"failed"`
	TaskResults    []executor.CollectionResult `json:"task_results"`
	VolatileSnapshot *volatile.Snapshot      `json:"volatile_snapshot,omitempty"`
	MemoryOutcomes []memory.ProcessOutcome  `json:"memory_outcomes,omitempty"`
}

// Builder accumulates the inputs to a CollectionSummary across the
// collection's lifetime and finalizes them in Build.
type Builder struct {
	runID     string
	hostname  string
	startedAt time.Time

	results          []executor.CollectionResult
	artifactRequired map[string]bool
	artifactTasks    map[string][]uint64
	artifactFailures map[string]bool

	volatileSnapshot *volatile.Snapshot
	memoryOutcomes   []memory.ProcessOutcome
	cancelled        bool
}

// NewBuilder starts a summary builder for hostname, stamping the
// collection's start time as now.
func NewBuilder(hostname string) *Builder {
	return &Builder{
		runID:            uuid.NewString(),
		hostname:         hostname,
		startedAt:        time.Now().UTC(),
		artifactRequired: make(map[string]bool),
		artifactTasks:    make(map[string][]uint64),
		artifactFailures: make(map[string]bool),
	}
}

// RunID returns the unique identifier generated for this collection run, for
// use by a caller that needs to correlate the summary with external state
// (a driver's session log, a staging directory name) before Build is called.
func (b *Builder) RunID() string {
	return b.runID
}

// RegisterArtifact records that artifactName produced taskID with the
// given required bit, so the final summary can classify it into Acquired
// or Failed even if every task for it fails.
func (b *Builder) RegisterArtifact(artifactName string, taskID uint64, required bool) {
	b.artifactRequired[artifactName] = required
	b.artifactTasks[artifactName] = append(b.artifactTasks[artifactName], taskID)
}

// RegisterArtifactIfAbsent ensures artifactName appears in the final summary
// even if planning produced zero tasks for it (a required artifact whose
// regex matched nothing, for instance) — RegisterArtifact alone only runs
// once per task, so an artifact with no tasks would otherwise never be
// recorded at all. It has no effect if artifactName is already registered.
func (b *Builder) RegisterArtifactIfAbsent(artifactName string, required bool) {
	if _, ok := b.artifactRequired[artifactName]; ok {
		return
	}
	b.artifactRequired[artifactName] = required
}

// AddResult records one task's CollectionResult and, if the task failed,
// marks its origin artifact as having at least one failure — per §9's
// resolved Open Question, any failure among a required artifact's members
// degrades the whole artifact rather than just that task.
func (b *Builder) AddResult(result executor.CollectionResult) {
	b.results = append(b.results, result)
	if !isSuccessStatus(result.Status) {
		b.artifactFailures[result.OriginArtifactName] = true
	}
}

// SetVolatileSnapshot attaches the C4 snapshot.
func (b *Builder) SetVolatileSnapshot(snapshot *volatile.Snapshot) {
	b.volatileSnapshot = snapshot
}

// AddMemoryOutcome attaches one process's C5 outcome.
func (b *Builder) AddMemoryOutcome(outcome memory.ProcessOutcome) {
	b.memoryOutcomes = append(b.memoryOutcomes, outcome)
}

// SetCancelled marks the collection as having ended via cancellation.
func (b *Builder) SetCancelled() {
	b.cancelled = true
}

// Build finalizes the summary, computing OverallStatus per §7: failed
// whenever SetCancelled was called, otherwise degraded if any required
// artifact has a failure or zero tasks, else ok.
func (b *Builder) Build() CollectionSummary {
	completedAt := time.Now().UTC()

	var acquired, failed []ArtifactOutcome
	degraded := false

	for name, required := range b.artifactRequired {
		outcome := ArtifactOutcome{ArtifactName: name, Required: required, TaskIDs: b.artifactTasks[name]}
		hasFailure := b.artifactFailures[name]
		hasZeroTasks := len(b.artifactTasks[name]) == 0

		if hasFailure || hasZeroTasks {
			failed = append(failed, outcome)
			if required {
				degraded = true
			}
		} else {
			acquired = append(acquired, outcome)
		}
	}

	status := StatusOK
	if degraded {
		status = StatusDegraded
	}
	if b.cancelled {
		status = StatusFailed
	}

	return CollectionSummary{
		RunID:            b.runID,
		Hostname:         b.hostname,
		StartedAt:        b.startedAt,
		CompletedAt:      completedAt,
		Duration:         completedAt.Sub(b.startedAt),
		OverallStatus:    status,
		Cancelled:        b.cancelled,
		Acquired:         acquired,
		Failed:           failed,
		TaskResults:      b.results,
		VolatileSnapshot: b.volatileSnapshot,
		MemoryOutcomes:   b.memoryOutcomes,
	}
}

func isSuccessStatus(status executor.Status) bool {
	switch status {
	case executor.StatusOK, executor.StatusSkippedFilter, executor.StatusLockedPartial:
		return true
	default:
		return false
	}
}
