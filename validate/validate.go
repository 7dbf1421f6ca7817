// Package validate sanitizes every inbound tool parameter before any
// business logic runs. All checks are pure; every failure is a typed
// fault carrying the category the sanitizer reports downstream.
package validate

import (
	"fmt"

	"github.com/yairfalse/tagvet/faults"
)

// Size limits, checked before the pattern bank (cheaper check first).
const (
	MaxStringLength = 1024
	MaxArrayLength  = 1000
	MaxObjectKeys   = 50
	MaxNestingDepth = 5

	// Domain-specific caps per call.
	MaxResourceTypes = 10
	MaxResourceIDs   = 100
	MaxRegions       = 20

	// MaxDocumentLength bounds document-shaped parameters (a whole
	// policy file body).
	MaxDocumentLength = 64 * 1024
)

// String validates a free-text parameter: size limit first, then the
// injection pattern bank.
func String(name, value string) (string, error) {
	if len(value) > MaxStringLength {
		return "", faults.Newf(faults.KindInvalidInput,
			"parameter %s exceeds %d characters", name, MaxStringLength)
	}
	if category := scanInjection(value); category != "" {
		return "", faults.Security(category,
			fmt.Sprintf("parameter %s matched %s pattern", name, category))
	}
	return value, nil
}

// StringList validates each element and enforces a list cap.
func StringList(name string, values []string, max int) ([]string, error) {
	if max <= 0 || max > MaxArrayLength {
		max = MaxArrayLength
	}
	if len(values) > max {
		return nil, faults.Newf(faults.KindInvalidInput,
			"parameter %s has %d entries, max %d", name, len(values), max)
	}
	for _, v := range values {
		if _, err := String(name, v); err != nil {
			return nil, err
		}
	}
	return values, nil
}

// ARN validates a resource identifier structurally. The generic
// injection bank is not used here; ARNs carry their own grammar.
func ARN(name, value string) (string, error) {
	if len(value) > MaxStringLength {
		return "", faults.Newf(faults.KindInvalidInput,
			"parameter %s exceeds %d characters", name, MaxStringLength)
	}
	if category := scanInjection(value); category == "null_byte" || category == "control_characters" {
		return "", faults.Security(category,
			fmt.Sprintf("parameter %s matched %s pattern", name, category))
	}
	if !arnPattern.MatchString(value) {
		return "", faults.Newf(faults.KindInvalidInput,
			"parameter %s is not a valid resource identifier", name)
	}
	return value, nil
}

// Document validates a document-shaped parameter. Like ARN it skips
// the generic bank: policy documents legitimately contain shell and
// template metacharacters, and their own parser enforces structure.
// Only null bytes and control characters are rejected here.
func Document(name, value string) (string, error) {
	if len(value) > MaxDocumentLength {
		return "", faults.Newf(faults.KindInvalidInput,
			"parameter %s exceeds %d bytes", name, MaxDocumentLength)
	}
	for _, p := range patternBank {
		if p.category != "null_byte" && p.category != "control_characters" {
			continue
		}
		if p.pattern.MatchString(value) {
			return "", faults.Security(p.category,
				fmt.Sprintf("parameter %s matched %s pattern", name, p.category))
		}
	}
	return value, nil
}

// Enum validates against a closed whitelist. Values outside the
// whitelist fail; they are never silently defaulted.
func Enum(name, value string, allowed []string) (string, error) {
	for _, a := range allowed {
		if value == a {
			return value, nil
		}
	}
	return "", faults.Newf(faults.KindInvalidInput,
		"parameter %s must be one of %v", name, allowed)
}

// Params walks a whole parameter bag: key count, nesting depth, array
// lengths, and the pattern bank on every string it reaches.
func Params(bag map[string]any) error {
	return walkObject("params", bag, 1)
}

func walkObject(path string, obj map[string]any, depth int) error {
	if depth > MaxNestingDepth {
		return faults.Newf(faults.KindInvalidInput,
			"%s exceeds nesting depth %d", path, MaxNestingDepth)
	}
	if len(obj) > MaxObjectKeys {
		return faults.Newf(faults.KindInvalidInput,
			"%s has %d keys, max %d", path, len(obj), MaxObjectKeys)
	}
	for key, value := range obj {
		if _, err := String(path+"."+key, key); err != nil {
			return err
		}
		if err := walkValue(path+"."+key, value, depth); err != nil {
			return err
		}
	}
	return nil
}

func walkValue(path string, value any, depth int) error {
	switch v := value.(type) {
	case string:
		_, err := String(path, v)
		return err
	case map[string]any:
		return walkObject(path, v, depth+1)
	case []any:
		if len(v) > MaxArrayLength {
			return faults.Newf(faults.KindInvalidInput,
				"%s has %d elements, max %d", path, len(v), MaxArrayLength)
		}
		for i, elem := range v {
			if err := walkValue(fmt.Sprintf("%s[%d]", path, i), elem, depth+1); err != nil {
				return err
			}
		}
		return nil
	default:
		// Numbers, bools, nil carry no injection surface.
		return nil
	}
}
