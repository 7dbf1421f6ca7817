package types

import "time"

// ViolationKind classifies how a resource breaks a tag rule.
type ViolationKind string

const (
	ViolationMissingRequired ViolationKind = "missing_required"
	ViolationInvalidValue    ViolationKind = "invalid_value"
	ViolationInvalidFormat   ViolationKind = "invalid_format"
	// ViolationCustom comes from an author-supplied rego rule.
	ViolationCustom ViolationKind = "custom"
)

// Violation is one broken rule on one resource.
type Violation struct {
	ResourceID string        `json:"resource_id"`
	TagName    string        `json:"tag_name"`
	Kind       ViolationKind `json:"kind"`
	Severity   string        `json:"severity"`
	Message    string        `json:"message,omitempty"`
	// CostImpact is the resource's full cost estimate, attributed to the
	// first violated tag on the resource and zero on the rest.
	CostImpact float64    `json:"cost_impact"`
	CostSource CostSource `json:"cost_source,omitempty"`
}

// DataQualityStatus says whether a scan covered every partition.
type DataQualityStatus string

const (
	DataComplete DataQualityStatus = "complete"
	DataPartial  DataQualityStatus = "partial"
)

// DataQuality reports scan coverage alongside results so a partial
// scan is never mistaken for a clean one.
type DataQuality struct {
	Status           DataQualityStatus `json:"status"`
	FailedPartitions []string          `json:"failed_partitions,omitempty"`
	FailedRegions    []string          `json:"failed_regions,omitempty"`
}

// ComplianceResult is the outcome of evaluating a resource set against
// one tag policy.
type ComplianceResult struct {
	PolicyVersion  string      `json:"policy_version"`
	TotalResources int         `json:"total_resources"`
	CompliantCount int         `json:"compliant_count"`
	Violations     []Violation `json:"violations"`
	// ComplianceScore is compliant/total, 1.0 when total is 0.
	ComplianceScore float64     `json:"compliance_score"`
	Cost            CostFigures `json:"cost"`
	DataQuality     DataQuality `json:"data_quality"`
	EvaluatedAt     time.Time   `json:"evaluated_at"`
}

// CostFigures carries attribution totals with explicit provenance.
type CostFigures struct {
	TotalMonthly        float64            `json:"total_monthly"`
	AttributableMonthly float64            `json:"attributable_monthly"`
	GapMonthly          float64            `json:"gap_monthly"`
	GapPercent          float64            `json:"gap_percent"`
	BySource            map[string]float64 `json:"by_source,omitempty"`
}

// Suggestion is one proposed tag value with its provenance.
type Suggestion struct {
	TagName    string  `json:"tag_name"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Strategy   string  `json:"strategy"`
	Rationale  string  `json:"rationale"`
}

// TrendDirection classifies a compliance trend over a window.
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendDeclining TrendDirection = "declining"
	TrendStable    TrendDirection = "stable"
)

// TrendPoint is one aggregated bucket of historical scores.
type TrendPoint struct {
	Bucket time.Time `json:"bucket"`
	Score  float64   `json:"score"`
	Scans  int       `json:"scans"`
}

// TrendReport summarizes compliance movement across buckets.
type TrendReport struct {
	Granularity string         `json:"granularity"`
	Points      []TrendPoint   `json:"points"`
	Direction   TrendDirection `json:"direction"`
}
