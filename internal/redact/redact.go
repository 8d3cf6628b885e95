// Package redact strips sensitive information from strings before they are
// persisted or logged. Handler errors end up in the tasks table as
// error_message, so anything a driver or SDK leaks into an error (connection
// strings, API keys, tokens) must be scrubbed first.
package redact

import "regexp"

// Redaction placeholders
const (
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedEmailPlaceholder      = "[REDACTED_EMAIL]"
)

var (
	// Database connection strings with inline credentials
	dbConnRegex = regexp.MustCompile(`(?i)(postgres|postgresql|mysql|mongodb)://[^@\s]+@`)

	// Password assignments in error text
	passwordRegex = regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]?['"]?)[^'"&\s]{3,}`)

	// API keys, tokens, and similar secrets
	apiKeyRegex = regexp.MustCompile(
		`(?i)(api[_-]?key|token|secret|key|auth)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`,
	)

	// Three-part base64url JWT tokens
	jwtTokenRegex = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`)

	// Email addresses
	emailRegex = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`)
)

// replacements pairs each pattern with its placeholder. Order matters:
// connection strings and JWTs are matched before the generic key pattern.
var replacements = []struct {
	pattern     *regexp.Regexp
	placeholder string
}{
	{dbConnRegex, RedactedCredentialPlaceholder},
	{jwtTokenRegex, RedactedKeyPlaceholder},
	{passwordRegex, RedactedCredentialPlaceholder},
	{apiKeyRegex, RedactedKeyPlaceholder},
	{emailRegex, RedactedEmailPlaceholder},
}

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range replacements {
		result = r.pattern.ReplaceAllString(result, r.placeholder)
	}
	return result
}

// Error redacts sensitive information from an error's message. A nil error
// yields the empty string.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
