// Package sinkcoord parses the driver-supplied sink coordinate string that
// selects where the finished archive goes: a local path, an
// s3://bucket/key object-store coordinate, or an SCP-style
// user@host[:port]/path SFTP coordinate.
package sinkcoord

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies which sink a parsed Coordinate targets.
type Kind int

const (
	KindLocal Kind = iota
	KindObjectStore
	KindSFTP
)

// Coordinate is the parsed form of a driver-supplied destination string.
type Coordinate struct {
	Kind Kind

	// Local
	Path string

	// Object store
	Bucket string
	Key    string

	// SFTP
	User       string
	Host       string
	Port       int
	RemotePath string
}

const defaultSFTPPort = 22

// Parse classifies raw into a Coordinate. SCP-style coordinates take the
// form user@host[:port]/path; s3:// coordinates take the form
// s3://bucket/key; anything else is treated as a local filesystem path.
func Parse(raw string) (Coordinate, error) {
	if strings.HasPrefix(raw, "s3://") {
		return parseObjectStoreCoordinate(raw)
	}
	if at := strings.IndexByte(raw, '@'); at >= 0 && looksLikeSSHCoordinate(raw, at) {
		return parseSFTPCoordinate(raw, at)
	}
	return Coordinate{Kind: KindLocal, Path: raw}, nil
}

// looksLikeSSHCoordinate guards against a local path that happens to
// contain '@' (e.g. a Windows share or a file inside an oddly named
// directory) by requiring the user part before the '@' to be non-empty and
// free of path separators.
func looksLikeSSHCoordinate(raw string, at int) bool {
	user := raw[:at]
	return user != "" && !strings.ContainsAny(user, `/\`)
}

func parseObjectStoreCoordinate(raw string) (Coordinate, error) {
	trimmed := strings.TrimPrefix(raw, "s3://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Coordinate{}, fmt.Errorf("invalid object store coordinate %q: expected s3://bucket/key", raw)
	}
	return Coordinate{Kind: KindObjectStore, Bucket: parts[0], Key: parts[1]}, nil
}

func parseSFTPCoordinate(raw string, at int) (Coordinate, error) {
	user := raw[:at]
	rest := raw[at+1:]

	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return Coordinate{}, fmt.Errorf("invalid SFTP coordinate %q: missing remote path", raw)
	}

	hostPort := rest[:slash]
	remotePath := rest[slash:]

	host := hostPort
	port := defaultSFTPPort
	if colon := strings.IndexByte(hostPort, ':'); colon >= 0 {
		host = hostPort[:colon]
		parsedPort, err := strconv.Atoi(hostPort[colon+1:])
		if err != nil {
			return Coordinate{}, fmt.Errorf("invalid SFTP coordinate %q: bad port: %w", raw, err)
		}
		port = parsedPort
	}

	if user == "" || host == "" {
		return Coordinate{}, fmt.Errorf("invalid SFTP coordinate %q: missing user or host", raw)
	}

	return Coordinate{Kind: KindSFTP, User: user, Host: host, Port: port, RemotePath: remotePath}, nil
}
