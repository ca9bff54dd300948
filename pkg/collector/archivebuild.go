package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/triagekit/engine/pkg/archive"
	"github.com/triagekit/engine/pkg/logging"
	"github.com/triagekit/engine/pkg/progress"
	"github.com/triagekit/engine/pkg/sink"
	"github.com/triagekit/engine/pkg/sink/objectstore"
	"github.com/triagekit/engine/pkg/sink/sftp"
	"github.com/triagekit/engine/pkg/sinkcoord"
	"github.com/triagekit/engine/pkg/stream"
	"github.com/triagekit/engine/pkg/summary"
)

// defaultSFTPConnections is the pool size the collector asks the SFTP sink's
// Dial for (Dial itself falls back to 1 for a non-positive count).
const defaultSFTPConnections = 4

// packageAndDeliver builds the finished archive from stagingRoot and, unless
// SkipUpload is set, delivers it to cfg.Destination, per §6/§7.
func packageAndDeliver(ctx context.Context, cfg Configuration, hostname, stagingRoot string, bodyLines []string, builder *summary.Builder, logger *logging.Logger) (summary.CollectionSummary, error) {
	archiveName := hostname + "-" + archiveTimestamp(time.Now()) + ".zip"

	if cfg.SkipUpload || cfg.Destination == "" {
		localPath := filepath.Join(stagingRoot, archiveName)
		final, err := buildLocalArchive(stagingRoot, localPath, hostname, bodyLines, builder)
		return final, err
	}

	coordinate, err := sinkcoord.Parse(cfg.Destination)
	if err != nil {
		return summary.CollectionSummary{}, fmt.Errorf("invalid destination: %w", err)
	}

	if cfg.Stream {
		return streamArchive(ctx, cfg, coordinate, stagingRoot, hostname, archiveName, bodyLines, builder, logger)
	}
	return stageThenDeliver(ctx, cfg, coordinate, stagingRoot, hostname, archiveName, bodyLines, builder, logger)
}

// streamArchive writes the archive directly to the destination sink as
// entries are produced. On failure it aborts the remote sink and falls back
// to a local-stage-and-retry build per §7, leaving a complete archive on
// disk for the driver to retry delivering.
func streamArchive(ctx context.Context, cfg Configuration, coordinate sinkcoord.Coordinate, stagingRoot, hostname, archiveName string, bodyLines []string, builder *summary.Builder, logger *logging.Logger) (summary.CollectionSummary, error) {
	asyncSink, err := dialSink(ctx, cfg, coordinate)
	if err != nil {
		return summary.CollectionSummary{}, fmt.Errorf("unable to open destination: %w", err)
	}

	// The pipeline only ever has one entry open at a time, but wrap the
	// sink writer defensively: AsyncByteSink implementations are not
	// documented as safe for concurrent Write calls.
	writer := stream.NewConcurrentWriter(sink.NewAsyncWriter(ctx, asyncSink))
	pipeline := archive.New(writer, auditorOf(cfg.Progress))

	final, err := writeArchiveContents(pipeline, stagingRoot, hostname, bodyLines, builder)
	if err == nil {
		err = asyncSink.Complete(ctx)
	}
	if err != nil {
		if abortErr := asyncSink.Abort(ctx); abortErr != nil {
			logger.Warnf("unable to abort destination sink after stream failure: %s", abortErr.Error())
		}

		localPath := filepath.Join(stagingRoot, archiveName)
		logger.Warnf("streaming delivery failed, falling back to local staging at %s: %s", localPath, err.Error())
		fallback, buildErr := buildLocalArchive(stagingRoot, localPath, hostname, bodyLines, builder)
		if buildErr != nil {
			return summary.CollectionSummary{}, fmt.Errorf("stream delivery failed (%w) and local fallback failed: %v", err, buildErr)
		}
		return fallback, fmt.Errorf("stream delivery failed, archive staged locally at %s: %w", localPath, err)
	}

	return final, nil
}

// stageThenDeliver builds the complete archive as a local file first, then
// uploads it to the destination sink in one pass. A failed upload leaves the
// already-complete local archive in place.
func stageThenDeliver(ctx context.Context, cfg Configuration, coordinate sinkcoord.Coordinate, stagingRoot, hostname, archiveName string, bodyLines []string, builder *summary.Builder, logger *logging.Logger) (summary.CollectionSummary, error) {
	localPath := filepath.Join(stagingRoot, archiveName)

	final, err := buildLocalArchive(stagingRoot, localPath, hostname, bodyLines, builder)
	if err != nil {
		return summary.CollectionSummary{}, err
	}

	asyncSink, err := dialSink(ctx, cfg, coordinate)
	if err != nil {
		return final, fmt.Errorf("archive staged locally at %s, unable to open destination: %w", localPath, err)
	}

	if err := uploadLocalFile(ctx, asyncSink, localPath, cfg.Progress); err != nil {
		if abortErr := asyncSink.Abort(ctx); abortErr != nil {
			logger.Warnf("unable to abort destination sink after upload failure: %s", abortErr.Error())
		}
		return final, fmt.Errorf("archive staged locally at %s, upload failed: %w", localPath, err)
	}

	if err := asyncSink.Complete(ctx); err != nil {
		return final, fmt.Errorf("archive staged locally at %s, unable to finalize upload: %w", localPath, err)
	}

	return final, nil
}

// buildLocalArchive writes the complete archive to localPath and returns the
// finalized summary.
func buildLocalArchive(stagingRoot, localPath, hostname string, bodyLines []string, builder *summary.Builder) (summary.CollectionSummary, error) {
	file, err := os.Create(localPath)
	if err != nil {
		return summary.CollectionSummary{}, err
	}
	defer file.Close()

	pipeline := archive.New(file, nil)
	return writeArchiveContents(pipeline, stagingRoot, hostname, bodyLines, builder)
}

// writeArchiveContents walks the staging tree into pipeline, then appends
// the bodyfile and collection_summary.json entries and seals the container.
// The summary is built last so its CompletedAt timestamp reflects the
// moment packaging actually finished.
func writeArchiveContents(pipeline *archive.Pipeline, stagingRoot, hostname string, bodyLines []string, builder *summary.Builder) (summary.CollectionSummary, error) {
	if err := archiveStagingTree(pipeline, stagingRoot); err != nil {
		return summary.CollectionSummary{}, err
	}

	if len(bodyLines) > 0 {
		if err := writeBodyfileArchiveEntry(pipeline, hostname, bodyLines); err != nil {
			return summary.CollectionSummary{}, err
		}
	}

	final := builder.Build()

	if err := writeSummaryArchiveEntry(pipeline, final); err != nil {
		return summary.CollectionSummary{}, err
	}

	if err := pipeline.Close(); err != nil {
		return summary.CollectionSummary{}, err
	}

	return final, nil
}

func writeBodyfileArchiveEntry(pipeline *archive.Pipeline, hostname string, lines []string) error {
	body := strings.Join(lines, "\n") + "\n"
	entry, err := pipeline.CreateEntry(hostname+".body", time.Now().UTC(), int64(len(body)))
	if err != nil {
		return err
	}
	defer entry.Close()
	_, err = io.WriteString(entry, body)
	return err
}

func writeSummaryArchiveEntry(pipeline *archive.Pipeline, final summary.CollectionSummary) error {
	payload, err := json.MarshalIndent(final, "", "  ")
	if err != nil {
		return err
	}

	entry, err := pipeline.CreateEntry("collection_summary.json", time.Now().UTC(), int64(len(payload)))
	if err != nil {
		return err
	}
	defer entry.Close()
	_, err = entry.Write(payload)
	return err
}

// dialSink constructs the AsyncByteSink matching coordinate's kind, wiring
// its OnProgress callback (when the sink has one) into reporter's byte
// counter.
func dialSink(ctx context.Context, cfg Configuration, coordinate sinkcoord.Coordinate) (sink.AsyncByteSink, error) {
	switch coordinate.Kind {
	case sinkcoord.KindObjectStore:
		if cfg.S3Client == nil {
			return nil, fmt.Errorf("destination %q requires an S3 client", cfg.Destination)
		}
		s := objectstore.New(cfg.S3Client, objectstore.Options{Bucket: coordinate.Bucket, Key: coordinate.Key})
		if cfg.Progress != nil {
			var last uint64
			s.OnProgress = func(event objectstore.ProgressEvent) {
				reportDelta(cfg.Progress, &last, event.BytesSent)
			}
		}
		return s, nil

	case sinkcoord.KindSFTP:
		if len(cfg.SFTPPrivateKeyPEM) == 0 {
			return nil, fmt.Errorf("destination %q requires an SFTP private key", cfg.Destination)
		}
		s, err := sftp.Dial(ctx, sftp.Options{
			Host:                  coordinate.Host,
			Port:                  coordinate.Port,
			User:                  coordinate.User,
			RemotePath:            coordinate.RemotePath,
			ConcurrentConnections: defaultSFTPConnections,
		}, cfg.SFTPPrivateKeyPEM)
		if err != nil {
			return nil, err
		}
		if cfg.Progress != nil {
			var last uint64
			s.OnProgress = func(event sftp.ProgressEvent) {
				reportDelta(cfg.Progress, &last, event.BytesSent)
			}
		}
		return s, nil

	default:
		if !cfg.Force {
			if _, err := os.Stat(coordinate.Path); err == nil {
				return nil, fmt.Errorf("destination %q already exists (use Force to overwrite)", coordinate.Path)
			}
		}
		return sink.CreateLocalFile(coordinate.Path)
	}
}

// reportDelta folds a sink's cumulative BytesSent counter into reporter's
// incremental byte-throughput counter, since progress.Reporter.Auditor
// expects a count of bytes written since the last call, not a running
// total.
func reportDelta(reporter *progress.Reporter, last *uint64, cumulative uint64) {
	if cumulative <= *last {
		return
	}
	delta := cumulative - *last
	*last = cumulative
	reporter.Auditor()(delta)
}

// auditorOf returns reporter's Auditor, or nil when reporter is nil, so
// archive.New can be called uniformly whether or not progress reporting is
// wired up.
func auditorOf(reporter *progress.Reporter) stream.Auditor {
	if reporter == nil {
		return nil
	}
	return reporter.Auditor()
}

// uploadLocalFile streams localPath's bytes into asyncSink in fixed-size
// chunks.
func uploadLocalFile(ctx context.Context, asyncSink sink.AsyncByteSink, localPath string, reporter *progress.Reporter) error {
	file, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer file.Close()

	auditor := auditorOf(reporter)

	const chunkSize = 4 * 1024 * 1024
	buffer := make([]byte, chunkSize)

	for {
		n, readErr := file.Read(buffer)
		if n > 0 {
			if err := asyncSink.WriteAll(ctx, buffer[:n]); err != nil {
				return err
			}
			if auditor != nil {
				auditor(uint64(n))
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}
