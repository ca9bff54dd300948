// Package manifest defines the in-memory collection manifest consumed by
// the planner. Deserialization from YAML/JSON is an external concern (the
// driver's responsibility); this package only defines the shape and its
// validation rules.
package manifest

import (
	"fmt"

	"github.com/triagekit/engine/pkg/humansize"
)

// SupportedVersion is the only manifest version this engine understands.
const SupportedVersion = "1"

// Manifest is the top-level collection document.
type Manifest struct {
	Version       string             `json:"version" yaml:"version"`
	Description   string             `json:"description" yaml:"description"`
	GlobalOptions map[string]string  `json:"global_options" yaml:"global_options"`
	Artifacts     []ArtifactDefinition `json:"artifacts" yaml:"artifacts"`
}

// RegexSpec controls recursive, pattern-based discovery under an artifact's
// source path.
type RegexSpec struct {
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	Recursive      bool   `json:"recursive" yaml:"recursive"`
	IncludePattern string `json:"include_pattern" yaml:"include_pattern"`
	ExcludePattern string `json:"exclude_pattern,omitempty" yaml:"exclude_pattern,omitempty"`
	// MaxDepth bounds recursion measured from the source root. Nil means
	// unlimited; 0 means only direct children of source_path.
	MaxDepth *int `json:"max_depth,omitempty" yaml:"max_depth,omitempty"`
}

// ArtifactDefinition describes one entry in the manifest's artifact list.
type ArtifactDefinition struct {
	Name            string            `json:"name" yaml:"name"`
	Kind            ArtifactKind      `json:"artifact_kind" yaml:"artifact_kind"`
	SourcePath      string            `json:"source_path" yaml:"source_path"`
	DestinationName string            `json:"destination_name" yaml:"destination_name"`
	Description     string            `json:"description,omitempty" yaml:"description,omitempty"`
	Required        bool              `json:"required" yaml:"required"`
	Metadata        map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Regex           *RegexSpec        `json:"regex,omitempty" yaml:"regex,omitempty"`
}

// EnsureValid checks the structural invariants of the manifest that do not
// require filesystem or environment access (those are checked by the
// planner, since they depend on host state). A nil manifest is invalid.
func (m *Manifest) EnsureValid() error {
	if m == nil {
		return fmt.Errorf("nil manifest")
	}
	if m.Version != SupportedVersion {
		return fmt.Errorf("unsupported manifest version %q", m.Version)
	}

	seen := make(map[string]bool, len(m.Artifacts))
	for i := range m.Artifacts {
		artifact := &m.Artifacts[i]
		if artifact.Name == "" {
			return fmt.Errorf("artifact at index %d has an empty name", i)
		}
		if seen[artifact.Name] {
			return fmt.Errorf("duplicate artifact name: %s", artifact.Name)
		}
		seen[artifact.Name] = true

		if artifact.SourcePath == "" {
			return fmt.Errorf("artifact %q has an empty source_path", artifact.Name)
		}
		if artifact.Regex != nil && artifact.Regex.Enabled && artifact.Regex.IncludePattern == "" {
			return fmt.Errorf("artifact %q enables regex discovery with no include_pattern", artifact.Name)
		}
		if artifact.Regex != nil && artifact.Regex.MaxDepth != nil && *artifact.Regex.MaxDepth < 0 {
			return fmt.Errorf("artifact %q has a negative max_depth", artifact.Name)
		}
	}

	return nil
}

// GlobalOptionBool returns the boolean value of a recognized global option
// key, defaulting to false when absent or unparseable.
func (m *Manifest) GlobalOptionBool(key string) bool {
	return m.GlobalOptions[key] == "true"
}

// GlobalOptionBytes parses a recognized global option key as a human-sized
// byte count (e.g. "max_file_size_mb" style keys are stored as plain
// megabyte integers per §6, so callers multiply by humansize.MiB
// themselves; this helper is for keys stored as free-form byte sizes).
func (m *Manifest) GlobalOptionBytes(key string) (humansize.ByteSize, bool) {
	raw, ok := m.GlobalOptions[key]
	if !ok || raw == "" {
		return 0, false
	}
	value, err := humansize.ParseByteSize(raw)
	if err != nil {
		return 0, false
	}
	return value, true
}

// GlobalOptionString returns a recognized global option's raw string value.
func (m *Manifest) GlobalOptionString(key string) (string, bool) {
	value, ok := m.GlobalOptions[key]
	return value, ok
}
