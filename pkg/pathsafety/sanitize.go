package pathsafety

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// reservedNames lists filenames that are reserved on the locked-file family
// regardless of extension (case-insensitive).
var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// maxSanitizedNameLength is the maximum number of graphemes (approximated
// here by runes, which is sufficient for the BMP-dominated names artifact
// destinations use) retained in a sanitized name.
const maxSanitizedNameLength = 255

// SanitizeName transforms name into a string safe to use as a path
// component on any of the three host families: path separators and control
// bytes are replaced with an underscore-hex escape, reserved device names are
// prefixed, trailing spaces and dots are trimmed, and the result is capped at
// 255 runes. SanitizeName is idempotent: SanitizeName(SanitizeName(x)) ==
// SanitizeName(x).
func SanitizeName(name string) string {
	if name == "" {
		return "_"
	}

	var out strings.Builder
	out.Grow(len(name))
	for _, r := range name {
		switch {
		case r == '/' || r == '\\':
			fmt.Fprintf(&out, "_x%02x_", r)
		case r < 0x20:
			fmt.Fprintf(&out, "_x%02x_", r)
		case r == utf8.RuneError:
			out.WriteString("_xfffd_")
		default:
			out.WriteRune(r)
		}
	}

	sanitized := out.String()
	sanitized = strings.TrimRight(sanitized, " .")
	if sanitized == "" {
		sanitized = "_"
	}

	if reservedNames[strings.ToUpper(baseWithoutExtension(sanitized))] {
		sanitized = "_" + sanitized
	}

	runes := []rune(sanitized)
	if len(runes) > maxSanitizedNameLength {
		sanitized = string(runes[:maxSanitizedNameLength])
		sanitized = strings.TrimRight(sanitized, " .")
		if sanitized == "" {
			sanitized = "_"
		}
	}

	return sanitized
}

func baseWithoutExtension(name string) string {
	if idx := strings.IndexByte(name, '.'); idx >= 0 {
		return name[:idx]
	}
	return name
}
