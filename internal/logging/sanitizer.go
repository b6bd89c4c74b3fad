package logging

import (
	"regexp"
)

// RedactedText is the replacement text for sensitive data
const RedactedText = "[REDACTED]"

var (
	// password=xxx, pwd=xxx, pass=xxx up to the next delimiter
	passwordPattern = regexp.MustCompile(`(?i)\b(password|pwd|pass)\s*=\s*[^;&\s]+`)

	// user:pass@host in URLs
	urlCredentialsPattern = regexp.MustCompile(`://([^:/@\s]+):[^@\s]+@`)
)

// SanitizeConnectionString masks passwords in URL and key/value connection
// strings. Use it before logging any connection string.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = urlCredentialsPattern.ReplaceAllString(sanitized, "://${1}:"+RedactedText+"@")
	return sanitized
}
