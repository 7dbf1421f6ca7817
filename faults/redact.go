package faults

import "regexp"

// redaction replaces one category of sensitive substrings.
type redaction struct {
	name    string
	pattern *regexp.Regexp
	replace string
}

// redactions run in order. Applied to internal log text too, not just
// external messages, because internal logs may later be exported.
var redactions = []redaction{
	{
		name:    "credential_token",
		pattern: regexp.MustCompile(`(?:AKIA|ASIA|AGPA|AIDA|AROA|ANPA)[A-Z0-9]{16}|aws_secret_access_key\s*[=:]\s*\S+|(?i)(?:secret|token|password|passwd|api[_-]?key)\s*[=:]\s*\S+`),
		replace: "[REDACTED-CREDENTIAL]",
	},
	{
		name:    "connection_uri",
		pattern: regexp.MustCompile(`(?i)\b(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|amqp)://[^\s"']+`),
		replace: "[REDACTED-URI]",
	},
	{
		name:    "email",
		pattern: regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
		replace: "[REDACTED-EMAIL]",
	},
	{
		name:    "private_ip",
		pattern: regexp.MustCompile(`\b(?:10\.\d{1,3}|172\.(?:1[6-9]|2\d|3[01])|192\.168)\.\d{1,3}\.\d{1,3}\b`),
		replace: "[REDACTED-IP]",
	},
	{
		name:    "stack_trace",
		pattern: regexp.MustCompile(`(?m)^\s*(?:at\s+\S+\(.*\)|goroutine \d+ \[.*\]:|\S+\.go:\d+(?:\s+\+0x[0-9a-f]+)?)\s*$`),
		replace: "[REDACTED-TRACE]",
	},
	{
		name:    "internal_path",
		pattern: regexp.MustCompile(`(?:/opt/tagvet|/etc/tagvet|/var/lib/tagvet)[^\s"']*`),
		replace: "[REDACTED-PATH]",
	},
	{
		name:    "filesystem_path",
		pattern: regexp.MustCompile(`(?:/(?:home|root|usr|var|etc|tmp)/[^\s"':]+|[A-Za-z]:\\[^\s"']+)`),
		replace: "[REDACTED-PATH]",
	},
	{
		name:    "db_credential_pair",
		pattern: regexp.MustCompile(`(?i)\b(?:user(?:name)?|uid|pwd|dbpassword|db_user)\s*=\s*[^\s;,"']+`),
		replace: "[REDACTED-CREDENTIAL]",
	},
}

// Redact strips sensitive substrings from free text. Safe to call on
// already-redacted text.
func Redact(text string) string {
	for _, r := range redactions {
		text = r.pattern.ReplaceAllString(text, r.replace)
	}
	return text
}

// RedactError is a convenience for logging sites.
func RedactError(err error) string {
	if err == nil {
		return ""
	}
	return Redact(err.Error())
}
