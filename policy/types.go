package policy

import "regexp"

// TagPolicy is a versioned, declarative tag ruleset. Immutable once
// loaded: reloads replace the whole object, never mutate in place, so
// concurrent evaluations can share one instance without locking.
type TagPolicy struct {
	Version      string
	RequiredTags []RequiredTagRule
	OptionalTags []OptionalTagRule
	Naming       NamingRules
	CustomRules  []CustomRule
}

// RequiredTagRule describes one mandatory tag.
type RequiredTagRule struct {
	Name        string
	Description string
	// AllowedValues, when non-empty, is the closed set of valid values.
	AllowedValues []string
	// ValidationRegex is anchored at the start of the value only.
	// A valid prefix with a garbage suffix passes when the pattern has
	// no end anchor; this mirrors the historical behavior and is kept
	// deliberately (see DESIGN.md).
	ValidationRegex string
	// AppliesTo limits the rule to these resource types. Empty means
	// every type.
	AppliesTo []string

	compiled *regexp.Regexp
}

// OptionalTagRule describes a recommended tag; never produces
// violations, only feeds suggestions and reporting.
type OptionalTagRule struct {
	Name        string
	Description string
}

// NamingRules constrain tag keys and values.
type NamingRules struct {
	CaseSensitiveKeys bool
	MaxKeyLength      int
	MaxValueLength    int
}

// CustomRule is an author-supplied rego module evaluated per resource.
// It may emit violations with its own severity beyond the built-in
// kinds.
type CustomRule struct {
	Name     string
	Severity string
	Rego     string
}

// AppliesToType reports whether the rule covers the given resource
// type. An empty AppliesTo set covers everything.
func (r *RequiredTagRule) AppliesToType(resourceType string) bool {
	if len(r.AppliesTo) == 0 {
		return true
	}
	for _, t := range r.AppliesTo {
		if t == resourceType {
			return true
		}
	}
	return false
}

// ValueAllowed checks a present value against the rule's constraints.
// Returns the violation kind on failure, empty string on pass.
func (r *RequiredTagRule) ValueAllowed(value string) string {
	if len(r.AllowedValues) > 0 && !contains(r.AllowedValues, value) {
		return "invalid_value"
	}
	if r.compiled != nil && !r.compiled.MatchString(value) {
		return "invalid_format"
	}
	return ""
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
