package tools

import (
	"strings"

	"github.com/yairfalse/tagvet/faults"
	"github.com/yairfalse/tagvet/types"
	"github.com/yairfalse/tagvet/validate"
)

// defaultResourceTypes is the closed whitelist for the resource_types
// parameter.
var defaultResourceTypes = []string{"ec2", "rds", "s3", "lambda", "dynamodb", "sqs"}

var granularities = []string{"day", "week", "month"}

var groupByKeys = []string{"resource_type", "region", "tag"}

// stringParam reads an optional string parameter. A present value of
// any other type is an error, never coerced.
func stringParam(params map[string]any, name string) (string, bool, error) {
	raw, ok := params[name]
	if !ok || raw == nil {
		return "", false, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", false, faults.Newf(faults.KindInvalidInput, "parameter %s must be a string", name)
	}
	s, err := validate.String(name, s)
	if err != nil {
		return "", false, err
	}
	return s, true, nil
}

// requiredStringParam reads a mandatory string parameter.
func requiredStringParam(params map[string]any, name string) (string, error) {
	s, ok, err := stringParam(params, name)
	if err != nil {
		return "", err
	}
	if !ok || s == "" {
		return "", faults.Newf(faults.KindInvalidInput, "parameter %s is required", name)
	}
	return s, nil
}

// stringListParam reads an optional list parameter. A bare string is
// accepted as a one-element list.
func stringListParam(params map[string]any, name string, max int) ([]string, error) {
	raw, ok := params[name]
	if !ok || raw == nil {
		return nil, nil
	}

	var values []string
	switch t := raw.(type) {
	case string:
		values = []string{t}
	case []any:
		values = make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, faults.Newf(faults.KindInvalidInput, "parameter %s must contain only strings", name)
			}
			values = append(values, s)
		}
	case []string:
		values = t
	default:
		return nil, faults.Newf(faults.KindInvalidInput, "parameter %s must be a list of strings", name)
	}
	return validate.StringList(name, values, max)
}

// scanScope reads the three parameters every scanning tool shares.
func (c *Catalog) scanScope(params map[string]any) (resourceTypes, regions, resourceIDs []string, err error) {
	resourceTypes, err = stringListParam(params, "resource_types", validate.MaxResourceTypes)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, rt := range resourceTypes {
		if _, err := validate.Enum("resource_types", rt, defaultResourceTypes); err != nil {
			return nil, nil, nil, err
		}
	}

	regions, err = stringListParam(params, "regions", validate.MaxRegions)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(regions) == 0 {
		regions = c.regions
	}

	resourceIDs, err = stringListParam(params, "resource_ids", validate.MaxResourceIDs)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, id := range resourceIDs {
		if strings.HasPrefix(id, "arn:") {
			if _, err := validate.ARN("resource_ids", id); err != nil {
				return nil, nil, nil, err
			}
		}
	}
	return resourceTypes, regions, resourceIDs, nil
}

// filterByID keeps only the requested resources, preserving scan
// order. IDs match either the short resource identifier or its full
// ARN form.
func filterByID(resources []types.Resource, ids []string) []types.Resource {
	if len(ids) == 0 {
		return resources
	}
	index := types.BuildResourceMap(resources)
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		if r, ok := index[id]; ok {
			wanted[r.ID] = true
		}
	}
	kept := resources[:0]
	for _, r := range resources {
		if wanted[r.ID] {
			kept = append(kept, r)
		}
	}
	return kept
}

// isPartial reports whether a success payload carries partial data
// quality, which maps to the "partial" audit status.
func isPartial(payload any) bool {
	switch p := payload.(type) {
	case *types.ComplianceResult:
		return p.DataQuality.Status == types.DataPartial
	case *SummaryPayload:
		return p.DataQuality.Status == types.DataPartial
	case *SuggestPayload:
		return p.DataQuality.Status == types.DataPartial
	case *CostAttributionPayload:
		return p.DataQuality.Status == types.DataPartial
	default:
		return false
	}
}
