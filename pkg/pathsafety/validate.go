package pathsafety

import (
	"path/filepath"
	"strings"

	"github.com/triagekit/engine/pkg/triageerrors"
)

// Validate canonicalizes candidate (resolving "." and ".." segments and
// symbolic links) and, when permittedRoot is non-empty, asserts that the
// canonical result lies within permittedRoot. Any ".." that survives
// canonicalization (including one reintroduced via a symbolic link target)
// results in a triageerrors.CodeInvalidPath error.
func Validate(candidate string, permittedRoot string) (string, error) {
	canonical, err := canonicalize(candidate)
	if err != nil {
		return "", triageerrors.Wrap(triageerrors.CodeInvalidPath, err, "unable to canonicalize path")
	}

	if permittedRoot == "" {
		return canonical, nil
	}

	rootCanonical, err := canonicalize(permittedRoot)
	if err != nil {
		return "", triageerrors.Wrap(triageerrors.CodeInvalidPath, err, "unable to canonicalize permitted root")
	}

	if !withinRoot(canonical, rootCanonical) {
		return "", triageerrors.New(triageerrors.CodeInvalidPath, "path escapes permitted root: "+candidate)
	}

	return canonical, nil
}

// ValidateDestination validates a destination-relative path: it must be
// relative (no absolute component, no drive letter, no leading separator)
// and, once joined under base, must not escape base.
func ValidateDestination(relative string, base string) (string, error) {
	if filepath.IsAbs(relative) || hasVolumePrefix(relative) {
		return "", triageerrors.New(triageerrors.CodeInvalidPath, "destination path must be relative: "+relative)
	}
	if strings.HasPrefix(filepath.ToSlash(relative), "/") {
		return "", triageerrors.New(triageerrors.CodeInvalidPath, "destination path must be relative: "+relative)
	}

	joined := filepath.Join(base, relative)
	return Validate(joined, base)
}

func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return resolveSymlinks(filepath.Clean(abs))
}

func withinRoot(candidate, root string) bool {
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func hasVolumePrefix(path string) bool {
	return filepath.VolumeName(path) != ""
}
