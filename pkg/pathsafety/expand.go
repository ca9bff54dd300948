// Package pathsafety implements variable expansion, canonicalization, and
// destination-name sanitization for artifact source and destination paths.
// It is the first defense against path traversal: every path that reaches
// the platform adapter or the archive pipeline has passed through Validate
// or SanitizeName.
package pathsafety

import (
	"strings"

	"github.com/triagekit/engine/pkg/triageerrors"
)

// Expand substitutes environment-variable placeholders in path, using
// lookup to resolve each variable name. Both "%NAME%" (locked-file family
// convention) and "$NAME" / "${NAME}" (proc/mach family convention) forms are
// recognized in the same string, since manifests are authored without
// knowledge of which host they will run on. An unresolved placeholder
// produces a triageerrors.CodeUnknownVariable error.
func Expand(path string, lookup func(name string) (string, bool)) (string, error) {
	var out strings.Builder
	out.Grow(len(path))

	runes := []rune(path)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '%':
			end := indexRune(runes, i+1, '%')
			if end < 0 {
				out.WriteRune(runes[i])
				continue
			}
			name := string(runes[i+1 : end])
			if name == "" {
				out.WriteRune(runes[i])
				continue
			}
			value, ok := lookup(name)
			if !ok {
				return "", triageerrors.New(triageerrors.CodeUnknownVariable, "unresolved variable %"+name+"%")
			}
			out.WriteString(value)
			i = end
		case '$':
			if i+1 < len(runes) && runes[i+1] == '{' {
				end := indexRune(runes, i+2, '}')
				if end < 0 {
					return "", triageerrors.New(triageerrors.CodeUnknownVariable, "unterminated ${...} reference")
				}
				name := string(runes[i+2 : end])
				value, ok := lookup(name)
				if !ok {
					return "", triageerrors.New(triageerrors.CodeUnknownVariable, "unresolved variable ${"+name+"}")
				}
				out.WriteString(value)
				i = end
			} else {
				j := i + 1
				for j < len(runes) && isVariableNameRune(runes[j]) {
					j++
				}
				if j == i+1 {
					out.WriteRune(runes[i])
					continue
				}
				name := string(runes[i+1 : j])
				value, ok := lookup(name)
				if !ok {
					return "", triageerrors.New(triageerrors.CodeUnknownVariable, "unresolved variable $"+name)
				}
				out.WriteString(value)
				i = j - 1
			}
		default:
			out.WriteRune(runes[i])
		}
	}

	return out.String(), nil
}

// ExpandFromEnviron expands path using the process environment (as produced
// by pkg/environment.ToMap) as the variable source.
func ExpandFromEnviron(path string, env map[string]string) (string, error) {
	return Expand(path, func(name string) (string, bool) {
		value, ok := env[name]
		return value, ok
	})
}

func indexRune(runes []rune, start int, target rune) int {
	for i := start; i < len(runes); i++ {
		if runes[i] == target {
			return i
		}
	}
	return -1
}

func isVariableNameRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
