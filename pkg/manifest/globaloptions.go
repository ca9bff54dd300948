package manifest

import (
	"strconv"
	"strings"

	"github.com/triagekit/engine/pkg/humansize"
)

// GlobalOptions is the typed decoding of a Manifest's string-keyed
// GlobalOptions map, per §6's recognized-key table. Decoding happens once,
// by DecodeGlobalOptions, rather than threading the raw map through every
// downstream package.
type GlobalOptions struct {
	SkipLockedFiles bool
	// MaxFileSizeBytes is 0 when max_file_size_mb is unset, meaning
	// unlimited.
	MaxFileSizeBytes uint64

	CompressArtifacts bool
	GenerateBodyfile  bool

	BodyfileCalculateHash    bool
	BodyfileHashMaxSizeBytes uint64
	BodyfileSkipPaths        []string
	BodyfileUseISO8601       bool
}

// DecodeGlobalOptions decodes m's recognized keys into a GlobalOptions
// value. Unrecognized keys are ignored; missing keys take their documented
// default (false, or 0/unlimited for sizes).
func DecodeGlobalOptions(m map[string]string) (GlobalOptions, error) {
	opts := GlobalOptions{
		SkipLockedFiles:       m["skip_locked_files"] == "true",
		CompressArtifacts:     m["compress_artifacts"] == "true",
		GenerateBodyfile:      m["generate_bodyfile"] == "true",
		BodyfileUseISO8601:    m["bodyfile_use_iso8601"] == "true",
		BodyfileCalculateHash: m["bodyfile_calculate_hash"] == "true",
	}

	if raw, ok := m["max_file_size_mb"]; ok && raw != "" {
		megabytes, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return GlobalOptions{}, err
		}
		opts.MaxFileSizeBytes = megabytes * uint64(humansize.MiB)
	}

	if raw, ok := m["bodyfile_hash_max_size_mb"]; ok && raw != "" {
		megabytes, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return GlobalOptions{}, err
		}
		opts.BodyfileHashMaxSizeBytes = megabytes * uint64(humansize.MiB)
	}

	if raw, ok := m["bodyfile_skip_paths"]; ok && raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				opts.BodyfileSkipPaths = append(opts.BodyfileSkipPaths, trimmed)
			}
		}
	}

	return opts, nil
}
