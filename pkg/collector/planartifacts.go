package collector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/triagekit/engine/pkg/executor"
	"github.com/triagekit/engine/pkg/hashing"
	"github.com/triagekit/engine/pkg/manifest"
	"github.com/triagekit/engine/pkg/platform"
	"github.com/triagekit/engine/pkg/planner"
	"github.com/triagekit/engine/pkg/stream"
	"github.com/triagekit/engine/pkg/summary"
	"github.com/triagekit/engine/pkg/triageerrors"
)

// preemptionCheckInterval is 0, so copyFile's writer checks ctx's
// cancellation before every write rather than batching the check, since a
// single artifact can be large enough that even a modest batch interval
// would let a cancelled run keep copying well past the cancellation.
const preemptionCheckInterval = 0

// fsSubdir is where every file/directory acquisition task lands under the
// staging root, per §6's output container layout.
const fsSubdir = "fs"

// artifactSurvivesFilter mirrors planner.Plan's own family/kind filtering
// (§4.3 step 1), duplicated here so an artifact that survives filtering but
// produces zero tasks (an unmatched regex, say) still gets registered with
// the summary builder; planner.Plan itself only returns the flat task list,
// not which artifacts it considered.
func artifactSurvivesFilter(artifact manifest.ArtifactDefinition, opts planner.Options) bool {
	if !artifact.Kind.AppliesTo(opts.Host) {
		return false
	}
	if len(opts.KindFilter) > 0 && !opts.KindFilter[artifact.Kind.String()] && !opts.KindFilter[artifact.Kind.Neutral] {
		return false
	}
	return true
}

// registerPlannedArtifacts ensures every artifact that planning considered
// appears in the final summary, even ones that yielded no tasks, per §8
// invariant 3.
func registerPlannedArtifacts(builder *summary.Builder, m *manifest.Manifest, opts planner.Options) {
	for _, artifact := range m.Artifacts {
		if artifactSurvivesFilter(artifact, opts) {
			builder.RegisterArtifactIfAbsent(artifact.Name, artifact.Required)
		}
	}
}

// newCopyTask adapts a planned task into an executor.TaskFunc that copies
// its target into the staging tree, honoring the max-file-size and
// locked-file global options.
func newCopyTask(task planner.Task, adapter platform.Adapter, stagingRoot string, opts manifest.GlobalOptions) executor.TaskFunc {
	return func(ctx context.Context, compute executor.ComputeSubmitter) executor.CollectionResult {
		start := time.Now()
		result := executor.CollectionResult{
			TaskID:             task.TaskID,
			OriginArtifactName: task.OriginArtifactName,
			DestinationRelPath: task.DestinationRelPath,
			Required:           task.Required,
		}

		destination := filepath.Join(stagingRoot, fsSubdir, filepath.FromSlash(task.DestinationRelPath))

		var err error
		if task.Mode == planner.ModeDirectoryRecursiveCopy {
			result.BytesRead, err = copyDirectory(ctx, adapter, task.ResolvedSource, destination, opts)
		} else {
			result.BytesRead, result.SourceHash, err = copyFile(ctx, adapter, task.ResolvedSource, destination, opts)
		}

		result.Duration = time.Since(start)

		if err == nil {
			result.Status = executor.StatusOK
			return result
		}

		classifyTaskError(&result, err, opts)
		return result
	}
}

// classifyTaskError maps a triageerrors-classified failure onto the
// executor's per-task Status taxonomy, applying the skip_locked_files
// global option's resolved Open Question policy: a locked file is a filter
// skip when skip_locked_files is set, otherwise a partial acquisition.
func classifyTaskError(result *executor.CollectionResult, err error, opts manifest.GlobalOptions) {
	result.Error = err.Error()

	code, _ := triageerrors.CodeOf(err)
	switch code {
	case triageerrors.CodeLocked:
		if opts.SkipLockedFiles {
			result.Status = executor.StatusSkippedFilter
		} else {
			result.Status = executor.StatusLockedPartial
		}
	case triageerrors.CodeSizeLimitExceeded:
		result.Status = executor.StatusFailedSizeLimit
	case triageerrors.CodePermissionDenied:
		result.Status = executor.StatusFailedPermission
	case triageerrors.CodeNotFound:
		result.Status = executor.StatusFailedNotFound
	case triageerrors.CodeCancelled:
		result.Status = executor.StatusCancelled
	default:
		result.Status = executor.StatusFailedIO
	}
}

// copyFile copies one file from source into destination, hashing its full
// content regardless of any size cap (§6: the independent size/hash
// bounds), and rejecting sources over opts.MaxFileSizeBytes before ever
// opening them for read.
func copyFile(ctx context.Context, adapter platform.Adapter, source, destination string, opts manifest.GlobalOptions) (uint64, string, error) {
	info, err := adapter.Stat(ctx, source, platform.OpenOptions{AllowLockedFiles: true})
	if err != nil {
		return 0, "", err
	}

	if opts.MaxFileSizeBytes > 0 && uint64(info.Size) > opts.MaxFileSizeBytes {
		return 0, "", triageerrors.New(triageerrors.CodeSizeLimitExceeded, "source exceeds max_file_size_mb: "+source)
	}

	reader, err := adapter.OpenForRead(ctx, source, platform.OpenOptions{AllowLockedFiles: true})
	if err != nil {
		return 0, "", err
	}

	if err := os.MkdirAll(filepath.Dir(destination), 0o700); err != nil {
		reader.Close()
		return 0, "", err
	}
	file, err := os.Create(destination)
	if err != nil {
		reader.Close()
		return 0, "", err
	}
	defer stream.NewMultiCloser(file, reader).Close()

	preemptable := stream.NewPreemptableWriter(file, ctx.Done(), preemptionCheckInterval)
	written, digest, err := hashing.CopyAndHash(preemptable, reader, 0)
	if errors.Is(err, stream.ErrWritePreempted) {
		err = triageerrors.Wrap(triageerrors.CodeCancelled, err, "copy preempted by cancellation: "+source)
	}
	return uint64(written), digest, err
}

// copyDirectory recursively copies every file under source into
// destination, honoring the same size cap as copyFile per file. It returns
// the total bytes copied; no combined hash is computed, since the
// directory's files are hashed individually by the bodyfile generator once
// staged.
func copyDirectory(ctx context.Context, adapter platform.Adapter, source, destination string, opts manifest.GlobalOptions) (uint64, error) {
	var total uint64

	entries, err := adapter.EnumerateDir(ctx, source, platform.OpenOptions{AllowLockedFiles: true})
	if err != nil {
		return total, err
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return total, triageerrors.Wrap(triageerrors.CodeCancelled, err, "context cancelled during directory copy")
		}

		childDestination := filepath.Join(destination, filepath.Base(entry.Path))

		if entry.Info.IsDir {
			copied, err := copyDirectory(ctx, adapter, entry.Path, childDestination, opts)
			total += copied
			if err != nil {
				return total, err
			}
			continue
		}

		if opts.MaxFileSizeBytes > 0 && uint64(entry.Info.Size) > opts.MaxFileSizeBytes {
			continue
		}

		written, _, err := copyFile(ctx, adapter, entry.Path, childDestination, opts)
		total += written
		if err != nil {
			return total, err
		}
	}

	return total, nil
}
