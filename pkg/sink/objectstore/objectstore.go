// Package objectstore implements the Object Store Sink (C10): an
// AsyncByteSink backed by Amazon S3 (or an S3-compatible endpoint) manual
// multipart upload, following the exact state machine of §4.10.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/time/rate"

	"github.com/triagekit/engine/pkg/retry"
	"github.com/triagekit/engine/pkg/triageerrors"
)

// minimumPartSizeBytes is the floor most object-store specs impose on every
// part but the final one, per §4.10/§6.
const minimumPartSizeBytes = 5 * 1024 * 1024

// defaultBufferSizeBytes is used when Options.BufferSizeBytes is unset.
const defaultBufferSizeBytes = 8 * 1024 * 1024

// state names the sink's position in the §4.10 state machine.
type state int

const (
	stateIdle state = iota
	stateInitMultipart
	stateBuffering
	stateUploadPart
	stateCompleteMultipart
	stateDone
	stateFailed
)

// Options configures a Sink.
type Options struct {
	Bucket         string
	Key            string
	BufferSizeBytes int
}

// ProgressEvent is passed to the OnProgress callback after an uploaded part,
// at most once per second, plus once more on Complete; no event is sent
// while a part upload is in progress.
type ProgressEvent struct {
	BytesSent      uint64
	TotalEstimated uint64
}

// Sink implements the object-store AsyncByteSink contract: WriteAll,
// Flush, Complete, Abort.
type Sink struct {
	client *s3.Client
	opts   Options

	mu          sync.Mutex
	state       state
	uploadID    string
	buffer      bytes.Buffer
	partNumber  int32
	completed   []types.CompletedPart
	bytesSent   uint64

	progressLimiter *rate.Limiter

	OnProgress func(ProgressEvent)
}

// New constructs a Sink targeting bucket/key over client. The multipart
// upload is not started until the first WriteAll call. OnProgress, when
// set, is invoked no more than once per second (plus a final call on
// Complete) so a slow part upload doesn't flood the caller with per-part
// callbacks.
func New(client *s3.Client, opts Options) *Sink {
	if opts.BufferSizeBytes <= 0 {
		opts.BufferSizeBytes = defaultBufferSizeBytes
	}
	if opts.BufferSizeBytes < minimumPartSizeBytes {
		opts.BufferSizeBytes = minimumPartSizeBytes
	}
	return &Sink{client: client, opts: opts, state: stateIdle, progressLimiter: rate.NewLimiter(rate.Limit(1), 1)}
}

// reportProgress forwards a progress event to OnProgress, throttled to at
// most 1 Hz unless final is set (the Complete-time delivery must never be
// dropped by the limiter).
func (s *Sink) reportProgress(final bool) {
	if s.OnProgress == nil {
		return
	}
	if !final && !s.progressLimiter.Allow() {
		return
	}
	s.OnProgress(ProgressEvent{BytesSent: s.bytesSent})
}

// WriteAll appends data to the sink's internal buffer, uploading a part
// each time the buffer reaches Options.BufferSizeBytes, per the
// IDLE → INIT_MULTIPART → BUFFERING ⇄ UPLOAD_PART cycle of §4.10.
func (s *Sink) WriteAll(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateIdle {
		if err := s.initMultipartLocked(ctx); err != nil {
			s.state = stateFailed
			return err
		}
	}

	s.state = stateBuffering
	s.buffer.Write(data)

	for s.buffer.Len() >= s.opts.BufferSizeBytes {
		if err := s.uploadPartLocked(ctx, s.opts.BufferSizeBytes); err != nil {
			s.state = stateFailed
			return err
		}
	}

	return nil
}

// Flush uploads any buffered bytes as a final-sized part. It is valid to
// call Flush with an empty buffer (a no-op).
func (s *Sink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buffer.Len() == 0 {
		return nil
	}
	if err := s.uploadPartLocked(ctx, s.buffer.Len()); err != nil {
		s.state = stateFailed
		return err
	}
	return nil
}

// Complete flushes any remainder and posts the ordered etag list, per
// §4.10's COMPLETE_MULTIPART → DONE transition.
func (s *Sink) Complete(ctx context.Context) error {
	if err := s.Flush(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateDone {
		return nil
	}
	if s.uploadID == "" {
		// Nothing was ever written; treat as a trivial success.
		s.state = stateDone
		return nil
	}

	s.state = stateCompleteMultipart
	_, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.opts.Bucket),
		Key:      aws.String(s.opts.Key),
		UploadId: aws.String(s.uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: s.completed,
		},
	})
	if err != nil {
		s.state = stateFailed
		return triageerrors.Wrap(triageerrors.CodeTransferFailed, err, "completing multipart upload")
	}

	s.state = stateDone
	s.reportProgress(true)
	return nil
}

// Abort issues ABORT_MULTIPART, per §4.10. It is idempotent: calling it
// more than once, or on a sink that never started an upload, is a no-op.
func (s *Sink) Abort(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.uploadID == "" || s.state == stateDone {
		return nil
	}

	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.opts.Bucket),
		Key:      aws.String(s.opts.Key),
		UploadId: aws.String(s.uploadID),
	})
	s.state = stateFailed
	s.uploadID = ""
	if err != nil {
		return triageerrors.Wrap(triageerrors.CodeRemoteAbortFailed, err, "aborting multipart upload")
	}
	return nil
}

func (s *Sink) initMultipartLocked(ctx context.Context) error {
	s.state = stateInitMultipart

	out, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(s.opts.Key),
	})
	if err != nil {
		return triageerrors.Wrap(triageerrors.CodeConnectFailed, err, "initiating multipart upload")
	}

	s.uploadID = aws.ToString(out.UploadId)
	return nil
}

// uploadPartLocked uploads the first n bytes of the buffer as the next
// sequential part, retrying transient failures via pkg/retry. The caller
// must hold s.mu.
func (s *Sink) uploadPartLocked(ctx context.Context, n int) error {
	s.state = stateUploadPart
	s.partNumber++
	partNumber := s.partNumber

	payload := make([]byte, n)
	copy(payload, s.buffer.Bytes()[:n])
	remaining := make([]byte, s.buffer.Len()-n)
	copy(remaining, s.buffer.Bytes()[n:])
	s.buffer.Reset()
	s.buffer.Write(remaining)

	var etag string
	err := retry.Do(ctx, retry.DefaultBackoff(), func() error {
		out, uploadErr := s.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:     aws.String(s.opts.Bucket),
			Key:        aws.String(s.opts.Key),
			UploadId:   aws.String(s.uploadID),
			PartNumber: aws.Int32(partNumber),
			Body:       bytes.NewReader(payload),
		})
		if uploadErr != nil {
			return uploadErr
		}
		etag = aws.ToString(out.ETag)
		return nil
	})
	if err != nil {
		return triageerrors.Wrap(triageerrors.CodeTransferFailed, err, fmt.Sprintf("uploading part %d", partNumber))
	}

	s.completed = append(s.completed, types.CompletedPart{
		ETag:       aws.String(etag),
		PartNumber: aws.Int32(partNumber),
	})
	s.bytesSent += uint64(n)
	s.reportProgress(false)

	s.state = stateBuffering
	return nil
}
