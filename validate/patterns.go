package validate

import "regexp"

// injectionPattern is one entry of the pattern bank. Patterns run in
// declaration order so the first matching category is the one reported.
type injectionPattern struct {
	category string
	pattern  *regexp.Regexp
}

// patternBank covers script/markup injection, template injection, path
// traversal, shell metacharacters, SQL keywords, null bytes, and
// control characters. Order matters.
var patternBank = []injectionPattern{
	// script/markup injection
	{"script_injection", regexp.MustCompile(`(?i)<\s*script[^>]*>`)},
	{"script_injection", regexp.MustCompile(`(?i)javascript\s*:`)},
	{"script_injection", regexp.MustCompile(`(?i)on(?:load|error|click|mouseover)\s*=`)},
	{"markup_injection", regexp.MustCompile(`(?i)<\s*(?:iframe|object|embed|svg|img)[^>]*>`)},
	// template injection
	{"template_injection", regexp.MustCompile(`\{\{.*\}\}`)},
	{"template_injection", regexp.MustCompile(`\$\{[^}]*\}`)},
	{"template_injection", regexp.MustCompile(`<%.*%>`)},
	// path traversal
	{"path_traversal", regexp.MustCompile(`\.\.[/\\]`)},
	{"path_traversal", regexp.MustCompile(`(?i)%2e%2e[/\\%]`)},
	// shell metacharacters
	{"shell_metacharacters", regexp.MustCompile("[;&|`$()]")},
	{"shell_metacharacters", regexp.MustCompile(`(?i)\b(?:rm|curl|wget|nc|bash|sh)\s+-`)},
	// SQL injection keywords
	{"sql_injection", regexp.MustCompile(`(?i)\b(?:union\s+select|insert\s+into|drop\s+table|delete\s+from|exec(?:ute)?\s*\()`)},
	{"sql_injection", regexp.MustCompile(`(?i)(?:'|")\s*(?:or|and)\s+["']?\d+["']?\s*=\s*["']?\d+`)},
	{"sql_injection", regexp.MustCompile(`--\s*$|/\*.*\*/`)},
	// null bytes
	{"null_byte", regexp.MustCompile(`\x00|%00|\\x00|\\u0000`)},
	// control characters: ASCII 0-31 minus tab/newline/carriage-return
	{"control_characters", regexp.MustCompile("[\x01-\x08\x0b\x0c\x0e-\x1f]")},
}

// arnPattern validates resource identifiers structurally: partition,
// service, region, 12-digit account, resource path. Kept separate from
// the injection bank because ARNs legitimately contain colons.
var arnPattern = regexp.MustCompile(`^arn:(aws|aws-cn|aws-us-gov):[a-z0-9\-]+:[a-z0-9\-]*:(\d{12})?:[A-Za-z0-9\-_:/\.\*]+$`)

// scanInjection returns the category of the first matching pattern, or
// "" when the value is clean.
func scanInjection(value string) string {
	for _, p := range patternBank {
		if p.pattern.MatchString(value) {
			return p.category
		}
	}
	return ""
}
