package security

import (
	"regexp"
	"strings"
)

// sensitivePatterns match secrets that leak into error strings.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|api[_-]?secret|secret[_-]?key|access[_-]?token|auth[_-]?token|bearer)([=:\s]+["']?)([^\s"'&]+)`),
	regexp.MustCompile(`sk-[A-Za-z0-9_\-]{20,}`),  // OpenAI keys
	regexp.MustCompile(`\d{6,12}:[A-Za-z0-9_\-]{30,}`), // Telegram bot tokens, as in api.telegram.org/bot<token>/
}

// MaskCredential keeps the first and last four characters of long values.
func MaskCredential(value string) string {
	if len(value) == 0 {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	if len(value) <= 8 {
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

// MaskSecrets masks every credential-looking substring of input.
func MaskSecrets(input string) string {
	if !ContainsSensitiveData(input) {
		return input
	}
	out := sensitivePatterns[0].ReplaceAllStringFunc(input, func(m string) string {
		parts := sensitivePatterns[0].FindStringSubmatch(m)
		return parts[1] + parts[2] + MaskCredential(parts[3])
	})
	for _, p := range sensitivePatterns[1:] {
		out = p.ReplaceAllStringFunc(out, MaskCredential)
	}
	return out
}

// MaskError returns err's message with secrets masked.
func MaskError(err error) string {
	if err == nil {
		return ""
	}
	return MaskSecrets(err.Error())
}

// ContainsSensitiveData reports whether input holds a credential-looking value.
func ContainsSensitiveData(input string) bool {
	for _, p := range sensitivePatterns {
		if p.MatchString(input) {
			return true
		}
	}
	return false
}
