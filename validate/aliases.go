package validate

// aliasTable maps canonical parameter names to accepted alternates.
// Resolution happens once at the validation boundary so downstream
// logic only ever sees canonical names.
var aliasTable = map[string][]string{
	"resource_types": {"resourceTypes", "types"},
	"regions":        {"region_list", "awsRegions"},
	"resource_ids":   {"resourceIds", "arns"},
	"severity":       {"min_severity"},
	"group_by":       {"groupBy"},
	"format":         {"report_format", "output_format"},
	"granularity":    {"period", "interval"},
}

// ResolveAliases rewrites alternate parameter names to canonical ones.
// An alias only applies when the canonical key is absent; a canonical
// value already present always wins. Returns a new bag.
func ResolveAliases(bag map[string]any) map[string]any {
	resolved := make(map[string]any, len(bag))
	for k, v := range bag {
		resolved[k] = v
	}
	for canonical, aliases := range aliasTable {
		if _, ok := resolved[canonical]; ok {
			continue
		}
		for _, alias := range aliases {
			if v, ok := resolved[alias]; ok {
				resolved[canonical] = v
				delete(resolved, alias)
				break
			}
		}
	}
	return resolved
}
