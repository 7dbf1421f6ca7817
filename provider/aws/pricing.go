package aws

import "github.com/yairfalse/tagvet/types"

// monthlyEstimates are rough per-resource monthly figures used when no
// billing data is attached. Every figure produced from this table is
// marked CostEstimated so it is never conflated with actuals.
var monthlyEstimates = map[string]float64{
	"ec2":      65.0,
	"rds":      180.0,
	"s3":       8.0,
	"lambda":   3.5,
	"dynamodb": 25.0,
	"sqs":      1.2,
}

// estimateCost fills cost estimate and provenance on a resource.
// Stopped instances are billed only for attached storage.
func estimateCost(r *types.Resource, stopped bool) {
	if stopped {
		r.MonthlyCost = monthlyEstimates[r.Type] * 0.15
		r.CostSource = types.CostStopped
		return
	}
	r.MonthlyCost = monthlyEstimates[r.Type]
	r.CostSource = types.CostEstimated
}
