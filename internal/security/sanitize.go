package security

import "regexp"

var redactions = []struct {
	pattern *regexp.Regexp
	repl    string
}{
	{regexp.MustCompile(`(?i)(password\s*[=:]\s*)\S+`), "${1}[REDACTED]"},
	{regexp.MustCompile(`(?i)((?:refresh_|access_|reset_)?token\s*[=:]\s*)\S+`), "${1}[REDACTED]"},
	{regexp.MustCompile(`(?i)(secret\s*[=:]\s*)\S+`), "${1}[REDACTED]"},
	{regexp.MustCompile(`(?i)(email\s*[=:]\s*)\S+`), "${1}[REDACTED]"},
	{regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9\-._~+/]+=*`), "${1}[REDACTED]"},
	{regexp.MustCompile(`(://[^:/@\s]+:)[^@\s]+@`), "${1}[REDACTED]@"},
}

// Sanitize strips credentials from a message before it is logged.
func Sanitize(msg string) string {
	for _, r := range redactions {
		msg = r.pattern.ReplaceAllString(msg, r.repl)
	}
	return msg
}
