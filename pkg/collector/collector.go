// Package collector implements the engine's single orchestration entry
// point: it wires the volatile collector, the planner, the executor, the
// memory subsystem, the bodyfile generator, and the output sinks into one
// Run call that turns a manifest into a finished archive (or a populated
// staging directory, when archiving is disabled) plus a CollectionSummary.
package collector

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/triagekit/engine/pkg/environment"
	"github.com/triagekit/engine/pkg/executor"
	"github.com/triagekit/engine/pkg/housekeeping"
	"github.com/triagekit/engine/pkg/logging"
	"github.com/triagekit/engine/pkg/manifest"
	"github.com/triagekit/engine/pkg/memory"
	"github.com/triagekit/engine/pkg/platform"
	"github.com/triagekit/engine/pkg/planner"
	"github.com/triagekit/engine/pkg/progress"
	"github.com/triagekit/engine/pkg/random"
	"github.com/triagekit/engine/pkg/summary"
	"github.com/triagekit/engine/pkg/volatile"
)

// MemoryOptions selects which processes the memory subsystem acquires
// during a run, per §4.5/§4.9's process-memory acquisition step.
type MemoryOptions struct {
	// Enabled turns on process memory acquisition. When false, no memory
	// dumps are produced regardless of TargetPIDs.
	Enabled bool
	// TargetPIDs restricts acquisition to these processes. Empty means
	// every process discovered by the volatile collector's process list.
	TargetPIDs []int
	Filter     memory.RegionFilter
	// MaxTotalBytesPerProcess caps the bytes acquired from each process; 0
	// means unlimited.
	MaxTotalBytesPerProcess uint64
}

// Configuration is the complete set of driver-supplied inputs to a
// collection run.
type Configuration struct {
	Manifest    *manifest.Manifest
	Host        manifest.HostFamily
	KindFilter  map[string]bool
	Environment map[string]string

	// Destination is the sink coordinate string (local path, s3://bucket/key,
	// or user@host:port/path) identifying where the finished archive goes.
	// Ignored when CompressArtifacts is false or SkipUpload is true.
	Destination string
	// StagingParent is the directory under which this run's staging root is
	// created, and which housekeeping prunes orphaned staging roots from.
	StagingParent string

	Concurrency    int
	ComputeWorkers int

	// Stream, when true, writes the archive directly to the destination
	// sink as entries are produced instead of building a complete local
	// file first. Ignored when archiving is disabled or SkipUpload is set.
	Stream bool
	// SkipUpload stages and (if enabled) archives locally but never
	// contacts Destination.
	SkipUpload bool
	// Force permits overwriting an existing file at a local Destination.
	Force bool
	// NoVolatileData skips the volatile collection phase entirely.
	NoVolatileData bool

	Memory MemoryOptions

	// S3Client is required when Destination resolves to an object-store
	// coordinate.
	S3Client *s3.Client
	// SFTPPrivateKeyPEM is required when Destination resolves to an SFTP
	// coordinate.
	SFTPPrivateKeyPEM []byte

	Logger *logging.Logger
	// Progress, when set, receives task and byte-throughput updates across
	// every phase of the run.
	Progress *progress.Reporter
}

var housekeepOnce sync.Once

// Run executes one complete collection: volatile snapshot, planning,
// acquisition, memory capture, bodyfile generation, and packaging, in that
// order. Once acquisition has run, it returns a CollectionSummary describing
// the outcome even when it also returns a non-nil (packaging or delivery)
// error. Any failure before that point (invalid manifest or global options,
// platform initialization, staging root creation, volatile collection, a
// fatal planning error) returns a nil summary with the error.
func Run(ctx context.Context, cfg Configuration) (*summary.CollectionSummary, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.RootLogger
	}

	if err := cfg.Manifest.EnsureValid(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	opts, err := manifest.DecodeGlobalOptions(cfg.Manifest.GlobalOptions)
	if err != nil {
		return nil, fmt.Errorf("invalid global options: %w", err)
	}

	if cfg.StagingParent != "" {
		housekeepOnce.Do(func() {
			housekeeping.Housekeep(cfg.StagingParent, logger)
		})
	}

	adapter, err := platform.New()
	if err != nil {
		return nil, fmt.Errorf("unable to initialize platform adapter: %w", err)
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown-host"
	}

	builder := summary.NewBuilder(hostname)

	stagingRoot, err := newStagingRoot(cfg.StagingParent)
	if err != nil {
		return nil, fmt.Errorf("unable to create staging root: %w", err)
	}

	envLookup := cfg.Environment
	if envLookup == nil {
		envLookup = environment.CopyCurrent()
	}
	logger.Debugf("source_path expansion sees %d environment variables", len(environment.Format(envLookup)))

	var snapshot *volatile.Snapshot
	if !cfg.NoVolatileData {
		snapshot, err = volatile.Collect(ctx)
		if err != nil {
			return nil, fmt.Errorf("volatile collection failed: %w", err)
		}
		builder.SetVolatileSnapshot(snapshot)
		if err := writeVolatileRecords(stagingRoot, snapshot); err != nil {
			logger.Warnf("unable to stage volatile records: %s", err.Error())
		}
	}

	planOpts := planner.Options{Host: cfg.Host, Environment: envLookup, KindFilter: cfg.KindFilter}
	tasks, err := planner.Plan(ctx, cfg.Manifest, adapter, planOpts)
	if err != nil {
		return nil, fmt.Errorf("planning failed: %w", err)
	}

	registerPlannedArtifacts(builder, cfg.Manifest, planOpts)
	for _, task := range tasks {
		builder.RegisterArtifact(task.OriginArtifactName, task.TaskID, task.Required)
	}

	if cfg.Progress != nil {
		cfg.Progress.SetTasksTotal(uint64(len(tasks)))
	}

	exec := executor.New(executor.Options{Concurrency: cfg.Concurrency, ComputeWorkers: cfg.ComputeWorkers})
	execTasks := make([]executor.Task, len(tasks))
	for i, task := range tasks {
		execTasks[i] = newCopyTask(task, adapter, stagingRoot, opts)
	}

	results, err := exec.Run(ctx, execTasks)
	exec.Close()
	if err != nil {
		return nil, fmt.Errorf("acquisition cancelled: %w", err)
	}

	for _, result := range results {
		builder.AddResult(result)
		if cfg.Progress != nil {
			cfg.Progress.TaskCompleted()
		}
	}

	if cfg.Memory.Enabled {
		outcomes := collectMemory(ctx, adapter, stagingRoot, snapshot, cfg.Memory, logger)
		for _, outcome := range outcomes {
			builder.AddMemoryOutcome(outcome)
		}
	}

	var bodyLines []string
	if opts.GenerateBodyfile {
		bodyLines, err = generateBodyfile(ctx, stagingRoot, opts)
		if err != nil {
			logger.Warnf("bodyfile generation failed: %s", err.Error())
		}
	}

	if !opts.CompressArtifacts {
		final := builder.Build()
		if err := writeStagedSummary(stagingRoot, hostname, bodyLines, final); err != nil {
			logger.Warnf("unable to write staged summary: %s", err.Error())
		}
		return &final, nil
	}

	final, archiveErr := packageAndDeliver(ctx, cfg, hostname, stagingRoot, bodyLines, builder, logger)
	return &final, archiveErr
}

// newStagingRoot creates a fresh, collision-resistant staging directory
// under parent (or the OS temp directory, when parent is empty).
func newStagingRoot(parent string) (string, error) {
	suffix, err := random.New(random.CollisionResistantLength)
	if err != nil {
		return "", err
	}

	name := "triage-" + hex.EncodeToString(suffix)
	if parent == "" {
		parent = os.TempDir()
	}
	root := filepath.Join(parent, name)
	if err := os.MkdirAll(root, 0o700); err != nil {
		return "", err
	}
	return root, nil
}

// archiveTimestamp formats t per §6's output container naming convention
// (<hostname>-<yyyymmdd_hhmmss>.zip).
func archiveTimestamp(t time.Time) string {
	return t.UTC().Format("20060102_150405")
}
