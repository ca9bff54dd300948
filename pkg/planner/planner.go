package planner

import (
	"context"
	"path"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/triagekit/engine/pkg/manifest"
	"github.com/triagekit/engine/pkg/pathsafety"
	"github.com/triagekit/engine/pkg/platform"
	"github.com/triagekit/engine/pkg/triageerrors"
)

// Options configures a planning run.
type Options struct {
	// Host is the current host family; artifacts scoped to a different
	// family are silently dropped (§4.3 step 1).
	Host manifest.HostFamily
	// Environment supplies variable lookups for source_path expansion.
	Environment map[string]string
	// KindFilter, when non-empty, restricts planning to artifacts whose
	// kind name matches one of these (the CLI "type filter" referenced in
	// §4.3's input).
	KindFilter map[string]bool
}

// idSequence produces monotonically increasing task IDs across a planning
// run.
type idSequence struct{ next uint64 }

func (s *idSequence) allocate() uint64 {
	return atomic.AddUint64(&s.next, 1)
}

// Plan expands m into an ordered task list using adapter for directory
// enumeration during regex discovery. A fatal planning error (required=true
// artifact whose expansion fails, or an unsupported regex pattern) aborts
// immediately and is returned as the second value; any tasks already
// appended are discarded by the caller in that case, per §7 ("Planning
// errors halt before execution").
func Plan(ctx context.Context, m *manifest.Manifest, adapter platform.Adapter, opts Options) ([]Task, error) {
	var ids idSequence
	var tasks []Task
	seenDestinations := make(map[string]bool)

	for _, artifact := range m.Artifacts {
		if !artifact.Kind.AppliesTo(opts.Host) {
			continue
		}
		if len(opts.KindFilter) > 0 && !opts.KindFilter[artifact.Kind.String()] && !opts.KindFilter[artifact.Kind.Neutral] {
			continue
		}

		expanded, err := pathsafety.ExpandFromEnviron(artifact.SourcePath, opts.Environment)
		if err != nil {
			if artifact.Required {
				return nil, err
			}
			continue
		}

		resolved, err := pathsafety.Validate(expanded, "")
		if err != nil {
			if artifact.Required {
				return nil, err
			}
			continue
		}

		artifactTasks, err := planArtifact(ctx, &artifact, resolved, adapter, &ids)
		if err != nil {
			if code, _ := triageerrors.CodeOf(err); artifact.Required || code == triageerrors.CodeRegexCompileError {
				return nil, err
			}
			continue
		}

		for i := range artifactTasks {
			task := &artifactTasks[i]
			task.DestinationRelPath = dedupeDestination(task.DestinationRelPath, task.TaskID, seenDestinations)
			tasks = append(tasks, *task)
		}
	}

	return tasks, nil
}

func dedupeDestination(destination string, taskID uint64, seen map[string]bool) string {
	if !seen[destination] {
		seen[destination] = true
		return destination
	}
	renamed := destination + "_" + uintToString(taskID)
	seen[renamed] = true
	return renamed
}

func planArtifact(ctx context.Context, artifact *manifest.ArtifactDefinition, resolvedSource string, adapter platform.Adapter, ids *idSequence) ([]Task, error) {
	destName := sanitizedDestinationName(artifact.DestinationName)

	if artifact.Regex != nil && artifact.Regex.Enabled {
		return planRegexDiscovery(ctx, artifact, resolvedSource, destName, adapter, ids)
	}

	info, err := adapter.Stat(ctx, resolvedSource, platform.OpenOptions{AllowLockedFiles: true})
	if err != nil {
		return nil, err
	}

	mode := ModeFile
	if info.IsDir {
		mode = ModeDirectoryRecursiveCopy
	}

	return []Task{{
		TaskID:             ids.allocate(),
		OriginArtifactName: artifact.Name,
		ResolvedSource:     resolvedSource,
		DestinationRelPath: destName,
		Mode:               mode,
		Required:           artifact.Required,
		Metadata:           artifact.Metadata,
	}}, nil
}

func sanitizedDestinationName(name string) string {
	parts := strings.Split(filepathToSlash(name), "/")
	for i, part := range parts {
		parts[i] = pathsafety.SanitizeName(part)
	}
	return strings.Join(parts, "/")
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

func uintToString(v uint64) string {
	if v == 0 {
		return "0"
	}
	var digits []byte
	for v > 0 {
		digits = append([]byte{byte('0' + v%10)}, digits...)
		v /= 10
	}
	return string(digits)
}

// planRegexDiscovery walks resolvedSource (recursively, bounded by
// MaxDepth when set) emitting one task per file matching IncludePattern and
// not matching ExcludePattern, per §4.3 step 3.
func planRegexDiscovery(ctx context.Context, artifact *manifest.ArtifactDefinition, resolvedSource string, destName string, adapter platform.Adapter, ids *idSequence) ([]Task, error) {
	include, err := regexp.Compile(artifact.Regex.IncludePattern)
	if err != nil {
		return nil, triageerrors.Wrap(triageerrors.CodeRegexCompileError, err, "invalid include_pattern")
	}
	var exclude *regexp.Regexp
	if artifact.Regex.ExcludePattern != "" {
		exclude, err = regexp.Compile(artifact.Regex.ExcludePattern)
		if err != nil {
			return nil, triageerrors.Wrap(triageerrors.CodeRegexCompileError, err, "invalid exclude_pattern")
		}
	}

	type match struct {
		relativePath string
		fullPath     string
	}
	var matches []match

	var walk func(dir string, relative string, depth int) error
	walk = func(dir string, relative string, depth int) error {
		if err := ctx.Err(); err != nil {
			return triageerrors.Wrap(triageerrors.CodeCancelled, err, "context cancelled during discovery")
		}

		entries, err := adapter.EnumerateDir(ctx, dir, platform.OpenOptions{AllowLockedFiles: true})
		if err != nil {
			return nil // a single unreadable directory does not abort discovery
		}

		sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

		for _, entry := range entries {
			base := path.Base(filepathToSlash(entry.Path))
			childRelative := base
			if relative != "" {
				childRelative = relative + "/" + base
			}

			if entry.Info.IsDir {
				if !artifact.Regex.Recursive {
					continue
				}
				// Gate on the child's depth (depth+1), not dir's own depth: a
				// max_depth of N must stop recursion before files N
				// directories below the source root are ever reached.
				if artifact.Regex.MaxDepth != nil && depth+1 >= *artifact.Regex.MaxDepth {
					continue
				}
				if err := walk(entry.Path, childRelative, depth+1); err != nil {
					return err
				}
				continue
			}

			if !include.MatchString(base) {
				continue
			}
			if exclude != nil && exclude.MatchString(base) {
				continue
			}

			matches = append(matches, match{relativePath: childRelative, fullPath: entry.Path})
		}

		return nil
	}

	if err := walk(resolvedSource, "", 0); err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].relativePath < matches[j].relativePath })

	tasks := make([]Task, 0, len(matches))
	for _, m := range matches {
		tasks = append(tasks, Task{
			TaskID:             ids.allocate(),
			OriginArtifactName: artifact.Name,
			ResolvedSource:     m.fullPath,
			DestinationRelPath: destName + "/" + m.relativePath,
			Mode:               ModeFile,
			Required:           artifact.Required,
			Metadata:           artifact.Metadata,
		})
	}

	return tasks, nil
}
