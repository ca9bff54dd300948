package hashing

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashReaderMatchesDirectSHA256(t *testing.T) {
	data := []byte("forensic triage payload")
	expected := sha256.Sum256(data)

	digest, err := HashReader(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, hex.EncodeToString(expected[:]), digest)
}

func TestHashReaderEmptyInput(t *testing.T) {
	expected := sha256.Sum256(nil)

	digest, err := HashReader(bytes.NewReader(nil))
	require.NoError(t, err)
	require.Equal(t, hex.EncodeToString(expected[:]), digest)
}

func TestPolicyAcceptsSizeLimit(t *testing.T) {
	policy := Policy{MaxSizeBytes: 1024}
	require.True(t, policy.Accepts("fs/a.log", 1024))
	require.False(t, policy.Accepts("fs/a.log", 1025))
}

func TestPolicySkipPathPrefix(t *testing.T) {
	policy := Policy{SkipPathPrefixes: []string{"fs/proc/"}}
	require.False(t, policy.Accepts("fs/proc/1/maps", 10))
	require.True(t, policy.Accepts("fs/var/log/a.log", 10))
}

func TestCopyAndHashWithCutoff(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 100)
	expected := sha256.Sum256(data)

	var dst bytes.Buffer
	written, digest, err := CopyAndHash(&dst, bytes.NewReader(data), 40)
	require.NoError(t, err)
	require.EqualValues(t, 100, written)
	require.Equal(t, hex.EncodeToString(expected[:]), digest)
	require.Equal(t, 40, dst.Len())
}

func TestCopyAndHashUnbounded(t *testing.T) {
	data := []byte("no cutoff applied here")
	expected := sha256.Sum256(data)

	var dst bytes.Buffer
	written, digest, err := CopyAndHash(&dst, bytes.NewReader(data), 0)
	require.NoError(t, err)
	require.EqualValues(t, len(data), written)
	require.Equal(t, hex.EncodeToString(expected[:]), digest)
	require.Equal(t, data, dst.Bytes())
}
