package pathsafety

import (
	"os"
	"path/filepath"
)

// resolveSymlinks resolves symbolic links in path, tolerating path
// components that do not yet exist (destination paths are validated before
// the corresponding file is created). It resolves the longest existing
// prefix with filepath.EvalSymlinks and rejoins any trailing, not-yet-created
// components unresolved.
func resolveSymlinks(path string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved, nil
	}

	var trailing []string
	current := path
	for {
		if resolved, err := filepath.EvalSymlinks(current); err == nil {
			for i := len(trailing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, trailing[i])
			}
			return filepath.Clean(resolved), nil
		} else if !os.IsNotExist(err) {
			return "", err
		}

		parent := filepath.Dir(current)
		if parent == current {
			return filepath.Clean(path), nil
		}
		trailing = append(trailing, filepath.Base(current))
		current = parent
	}
}
