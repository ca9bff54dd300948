// Package sftp implements the SFTP Sink (C11): key-authenticated upload
// over a pool of SSH sessions to the same host, chunked writes with
// exponential-backoff retry, and remote-partial-file cleanup on terminal
// failure.
package sftp

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/time/rate"

	"github.com/triagekit/engine/pkg/retry"
	"github.com/triagekit/engine/pkg/triageerrors"
)

// defaultBufferSizeBytes is the chunk size written per sequential call,
// used when Options.BufferSizeBytes is unset.
const defaultBufferSizeBytes = 8 * 1024 * 1024

// Options configures a Sink.
type Options struct {
	Host                string
	Port                int
	User                string
	PrivateKeyPath      string
	RemotePath          string
	ConcurrentConnections int
	BufferSizeBytes     int
}

// ProgressEvent reports the bytes sent so far; unlike
// objectstore.ProgressEvent it carries no total estimate.
type ProgressEvent struct {
	BytesSent uint64
}

// connection is one pooled SSH+SFTP session.
type connection struct {
	sshClient  *ssh.Client
	sftpClient *sftp.Client
}

// Sink implements the SFTP AsyncByteSink contract: WriteAll, Flush,
// Complete, Abort. Only the pool's first connection ever owns the open
// remote file handle, and retries write through that same handle; the other
// connections are opened and closed with the pool but carry no traffic.
type Sink struct {
	opts  Options
	pool  []*connection
	owner *sftp.File

	mu        sync.Mutex
	bytesSent uint64
	opened    bool
	failed    bool

	progressLimiter *rate.Limiter

	OnProgress func(ProgressEvent)
}

// reportProgress forwards a progress event to OnProgress, throttled to at
// most 1 Hz unless final is set.
func (s *Sink) reportProgress(final bool) {
	if s.OnProgress == nil {
		return
	}
	if !final && !s.progressLimiter.Allow() {
		return
	}
	s.OnProgress(ProgressEvent{BytesSent: s.bytesSent})
}

// Dial opens Options.ConcurrentConnections SSH sessions authenticated by
// the private key given in privateKeyPEM (password authentication is
// disallowed per §4.11) and constructs a Sink over them. Dial does not read
// Options.PrivateKeyPath.
func Dial(ctx context.Context, opts Options, privateKeyPEM []byte) (*Sink, error) {
	if opts.ConcurrentConnections <= 0 {
		opts.ConcurrentConnections = 1
	}
	if opts.BufferSizeBytes <= 0 {
		opts.BufferSizeBytes = defaultBufferSizeBytes
	}

	signer, err := ssh.ParsePrivateKey(privateKeyPEM)
	if err != nil {
		return nil, triageerrors.Wrap(triageerrors.CodeAuthFailed, err, "parsing SFTP private key")
	}

	config := &ssh.ClientConfig{
		User:            opts.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)

	sink := &Sink{opts: opts, progressLimiter: rate.NewLimiter(rate.Limit(1), 1)}
	for i := 0; i < opts.ConcurrentConnections; i++ {
		sshClient, err := ssh.Dial("tcp", addr, config)
		if err != nil {
			sink.closeAll()
			return nil, triageerrors.Wrap(triageerrors.CodeConnectFailed, err, "dialing SFTP host")
		}

		sftpClient, err := sftp.NewClient(sshClient)
		if err != nil {
			sshClient.Close()
			sink.closeAll()
			return nil, triageerrors.Wrap(triageerrors.CodeConnectFailed, err, "starting SFTP session")
		}

		sink.pool = append(sink.pool, &connection{sshClient: sshClient, sftpClient: sftpClient})
	}

	return sink, nil
}

func (s *Sink) closeAll() {
	for _, conn := range s.pool {
		if conn.sftpClient != nil {
			conn.sftpClient.Close()
		}
		if conn.sshClient != nil {
			conn.sshClient.Close()
		}
	}
}

// WriteAll writes data over the owning session, retrying transient
// failures with the shared pkg/retry schedule.
func (s *Sink) WriteAll(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	owning := s.pool[0]

	if !s.opened {
		file, err := owning.sftpClient.Create(s.opts.RemotePath)
		if err != nil {
			s.failed = true
			return triageerrors.Wrap(triageerrors.CodeConnectFailed, err, "creating remote file")
		}
		s.owner = file
		s.opened = true
	}

	for offset := 0; offset < len(data); offset += s.opts.BufferSizeBytes {
		end := offset + s.opts.BufferSizeBytes
		if end > len(data) {
			end = len(data)
		}
		chunk := data[offset:end]

		err := retry.Do(ctx, retry.DefaultBackoff(), func() error {
			_, writeErr := s.owner.Write(chunk)
			return writeErr
		})
		if err != nil {
			s.failed = true
			return triageerrors.Wrap(triageerrors.CodeTransferFailed, err, "writing SFTP chunk")
		}

		s.bytesSent += uint64(len(chunk))
		s.reportProgress(false)
	}

	return nil
}

// Flush is a no-op: every WriteAll call writes synchronously to the remote
// file, so there is no internal buffer to drain.
func (s *Sink) Flush(ctx context.Context) error {
	return nil
}

// Complete closes the remote file handle and the connection pool.
func (s *Sink) Complete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.owner != nil {
		if err := s.owner.Close(); err != nil {
			return triageerrors.Wrap(triageerrors.CodeTransferFailed, err, "closing remote file")
		}
	}
	s.closeAll()
	s.reportProgress(true)
	return nil
}

// Abort deletes the remote partial file before releasing the pool, per
// §4.11's terminal-failure cleanup requirement. It is idempotent.
func (s *Sink) Abort(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.owner != nil {
		s.owner.Close()
		s.owner = nil
	}

	if s.opened && len(s.pool) > 0 {
		_ = s.pool[0].sftpClient.Remove(s.opts.RemotePath)
		s.opened = false
	}

	s.closeAll()
	return nil
}
