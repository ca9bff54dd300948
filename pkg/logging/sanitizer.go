package logging

import (
	"regexp"

	"github.com/triagekit/engine/pkg/platform/terminal"
)

// credentialPatterns matches substrings that must never reach a log
// destination: AWS-style access keys, SFTP/SSH private key PEM blocks, and
// userinfo embedded in a destination URI (user:password@host).
var credentialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`(?s)-----BEGIN [A-Z ]*PRIVATE KEY-----.*?-----END [A-Z ]*PRIVATE KEY-----`),
	regexp.MustCompile(`://[^/@\s]+:[^/@\s]+@`),
}

const redactedPlaceholder = "[REDACTED]"

// RedactingSanitizer is the default Sanitizer installed by the driver: it
// scrubs known credential shapes and neutralizes terminal control characters
// in attacker-influenced strings (process names, file paths) before a line
// reaches its destination.
type RedactingSanitizer struct{}

// Sanitize implements Sanitizer.
func (RedactingSanitizer) Sanitize(line string) string {
	line = terminal.NeutralizeControlCharacters(line)
	for _, pattern := range credentialPatterns {
		line = pattern.ReplaceAllString(line, redactedPlaceholder)
	}
	return line
}
