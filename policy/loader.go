package policy

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yairfalse/tagvet/faults"
)

// policyDoc is the YAML wire shape. It is validated exhaustively at
// load time and converted into the immutable TagPolicy; malformed
// policies are rejected on load, not on first use.
type policyDoc struct {
	Version      string           `yaml:"version"`
	RequiredTags []requiredTagDoc `yaml:"required_tags"`
	OptionalTags []optionalTagDoc `yaml:"optional_tags,omitempty"`
	Naming       namingDoc        `yaml:"naming,omitempty"`
	CustomRules  []customRuleDoc  `yaml:"custom_rules,omitempty"`
}

type requiredTagDoc struct {
	Name            string   `yaml:"name"`
	Description     string   `yaml:"description,omitempty"`
	AllowedValues   []string `yaml:"allowed_values,omitempty"`
	ValidationRegex string   `yaml:"validation_regex,omitempty"`
	AppliesTo       []string `yaml:"applies_to,omitempty"`
}

type optionalTagDoc struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

type namingDoc struct {
	CaseSensitiveKeys bool `yaml:"case_sensitive_keys"`
	MaxKeyLength      int  `yaml:"max_key_length"`
	MaxValueLength    int  `yaml:"max_value_length"`
}

type customRuleDoc struct {
	Name     string `yaml:"name"`
	Severity string `yaml:"severity,omitempty"`
	Rego     string `yaml:"rego"`
}

// Load reads and validates a tag policy from a YAML file.
func Load(path string) (*TagPolicy, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator config
	if err != nil {
		return nil, faults.Wrap(faults.KindInternal, "read policy file", err)
	}
	return Parse(data)
}

// Parse validates a policy document and compiles its rules.
func Parse(data []byte) (*TagPolicy, error) {
	var doc policyDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, faults.Wrap(faults.KindInvalidInput, "parse policy", err)
	}

	if doc.Version == "" {
		return nil, faults.New(faults.KindInvalidInput, "policy version is required")
	}
	if len(doc.RequiredTags) == 0 {
		return nil, faults.New(faults.KindInvalidInput, "policy has no required_tags")
	}

	p := &TagPolicy{
		Version: doc.Version,
		Naming:  NamingRules(doc.Naming),
	}
	applyNamingDefaults(&p.Naming)

	seen := map[string]bool{}
	for i, rt := range doc.RequiredTags {
		rule, err := compileRule(i, rt, p.Naming)
		if err != nil {
			return nil, err
		}
		if seen[rule.Name] {
			return nil, faults.Newf(faults.KindInvalidInput, "duplicate required tag %q", rule.Name)
		}
		seen[rule.Name] = true
		p.RequiredTags = append(p.RequiredTags, rule)
	}

	for _, ot := range doc.OptionalTags {
		if ot.Name == "" {
			return nil, faults.New(faults.KindInvalidInput, "optional tag with empty name")
		}
		p.OptionalTags = append(p.OptionalTags, OptionalTagRule(ot))
	}

	for _, cr := range doc.CustomRules {
		if cr.Name == "" || cr.Rego == "" {
			return nil, faults.New(faults.KindInvalidInput, "custom rule needs name and rego body")
		}
		severity := cr.Severity
		if severity == "" {
			severity = "error"
		}
		p.CustomRules = append(p.CustomRules, CustomRule{Name: cr.Name, Severity: severity, Rego: cr.Rego})
	}

	return p, nil
}

func compileRule(idx int, doc requiredTagDoc, naming NamingRules) (RequiredTagRule, error) {
	if doc.Name == "" {
		return RequiredTagRule{}, faults.Newf(faults.KindInvalidInput, "required_tags[%d] has no name", idx)
	}
	if len(doc.Name) > naming.MaxKeyLength {
		return RequiredTagRule{}, faults.Newf(faults.KindInvalidInput,
			"required tag %q exceeds key length %d", doc.Name, naming.MaxKeyLength)
	}

	rule := RequiredTagRule{
		Name:            doc.Name,
		Description:     doc.Description,
		AllowedValues:   doc.AllowedValues,
		ValidationRegex: doc.ValidationRegex,
		AppliesTo:       doc.AppliesTo,
	}

	if doc.ValidationRegex != "" {
		// Anchor at the start of the value only. No implicit end
		// anchor: matching begins at position 0 and a pattern without
		// its own $ accepts trailing garbage. Compatibility choice.
		pattern := doc.ValidationRegex
		if !strings.HasPrefix(pattern, "^") {
			pattern = "^" + pattern
		}
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return RequiredTagRule{}, faults.Wrap(faults.KindInvalidInput,
				fmt.Sprintf("required tag %q has invalid validation_regex", doc.Name), err)
		}
		rule.compiled = compiled
	}

	return rule, nil
}

func applyNamingDefaults(n *NamingRules) {
	if n.MaxKeyLength <= 0 {
		n.MaxKeyLength = 128
	}
	if n.MaxValueLength <= 0 {
		n.MaxValueLength = 256
	}
}
