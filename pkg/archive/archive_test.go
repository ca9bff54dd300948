package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPipelineRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	var audited uint64
	pipeline := New(&buf, func(n uint64) { audited += n })

	entry, err := pipeline.CreateEntry("fs/var/log/a.log", time.Now(), 0)
	require.NoError(t, err)
	_, err = entry.Write([]byte("hello world"))
	require.NoError(t, err)
	require.NoError(t, entry.Close())

	require.NoError(t, pipeline.Close())

	reader, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, reader.File, 1)

	rc, err := reader.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
	require.EqualValues(t, len("hello world"), audited)
}

func TestSelectMethodPreCompressedExtensionStores(t *testing.T) {
	require.Equal(t, uint16(zip.Store), selectMethod("fs/evidence.jpg", 10))
	require.Equal(t, uint16(zip.Store), selectMethod("fs/archive.zip", 10))
}

func TestSelectMethodLargeFileUsesFastDeflate(t *testing.T) {
	require.Equal(t, fastDeflateMethod, selectMethod("fs/big.log", 200*1024*1024))
}

func TestSelectMethodDefaultDeflate(t *testing.T) {
	require.Equal(t, defaultDeflateMethod, selectMethod("fs/small.log", 1024))
}

func TestEntryMutexSerializesOpens(t *testing.T) {
	var buf bytes.Buffer
	pipeline := New(&buf, nil)

	first, err := pipeline.CreateEntry("a.txt", time.Now(), 0)
	require.NoError(t, err)

	opened := make(chan struct{})
	go func() {
		second, err := pipeline.CreateEntry("b.txt", time.Now(), 0)
		require.NoError(t, err)
		close(opened)
		second.Close()
	}()

	select {
	case <-opened:
		t.Fatal("second CreateEntry returned before first entry was closed")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, first.Close())
	<-opened

	require.NoError(t, pipeline.Close())
}
