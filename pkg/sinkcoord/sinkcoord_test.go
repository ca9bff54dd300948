package sinkcoord

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLocalPath(t *testing.T) {
	c, err := Parse("/var/tmp/evidence.zip")
	require.NoError(t, err)
	require.Equal(t, KindLocal, c.Kind)
	require.Equal(t, "/var/tmp/evidence.zip", c.Path)
}

func TestParseObjectStoreCoordinate(t *testing.T) {
	c, err := Parse("s3://evidence-bucket/case-42/host1.zip")
	require.NoError(t, err)
	require.Equal(t, KindObjectStore, c.Kind)
	require.Equal(t, "evidence-bucket", c.Bucket)
	require.Equal(t, "case-42/host1.zip", c.Key)
}

func TestParseObjectStoreCoordinateMissingKey(t *testing.T) {
	_, err := Parse("s3://evidence-bucket")
	require.Error(t, err)
}

func TestParseSFTPCoordinateWithPort(t *testing.T) {
	c, err := Parse("analyst@evidence.example.com:2222/incoming/host1.zip")
	require.NoError(t, err)
	require.Equal(t, KindSFTP, c.Kind)
	require.Equal(t, "analyst", c.User)
	require.Equal(t, "evidence.example.com", c.Host)
	require.Equal(t, 2222, c.Port)
	require.Equal(t, "/incoming/host1.zip", c.RemotePath)
}

func TestParseSFTPCoordinateDefaultPort(t *testing.T) {
	c, err := Parse("analyst@evidence.example.com/incoming/host1.zip")
	require.NoError(t, err)
	require.Equal(t, 22, c.Port)
}

func TestParseSFTPCoordinateMissingPath(t *testing.T) {
	_, err := Parse("analyst@evidence.example.com")
	require.Error(t, err)
}
