package manifest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeGlobalOptionsDefaults(t *testing.T) {
	opts, err := DecodeGlobalOptions(nil)
	require.NoError(t, err)
	require.False(t, opts.SkipLockedFiles)
	require.Zero(t, opts.MaxFileSizeBytes)
	require.Empty(t, opts.BodyfileSkipPaths)
}

func TestDecodeGlobalOptionsParsesRecognizedKeys(t *testing.T) {
	opts, err := DecodeGlobalOptions(map[string]string{
		"skip_locked_files":         "true",
		"max_file_size_mb":          "100",
		"compress_artifacts":        "true",
		"generate_bodyfile":         "true",
		"bodyfile_calculate_hash":   "true",
		"bodyfile_hash_max_size_mb": "5",
		"bodyfile_skip_paths":       "volatile/, memory/ ",
		"bodyfile_use_iso8601":      "true",
	})
	require.NoError(t, err)
	require.True(t, opts.SkipLockedFiles)
	require.EqualValues(t, 100*1024*1024, opts.MaxFileSizeBytes)
	require.True(t, opts.CompressArtifacts)
	require.True(t, opts.GenerateBodyfile)
	require.True(t, opts.BodyfileCalculateHash)
	require.EqualValues(t, 5*1024*1024, opts.BodyfileHashMaxSizeBytes)
	require.Equal(t, []string{"volatile/", "memory/"}, opts.BodyfileSkipPaths)
	require.True(t, opts.BodyfileUseISO8601)
}

func TestDecodeGlobalOptionsInvalidSizeIsError(t *testing.T) {
	_, err := DecodeGlobalOptions(map[string]string{"max_file_size_mb": "not-a-number"})
	require.Error(t, err)
}
