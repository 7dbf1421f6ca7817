package policy

import (
	"sort"
	"time"

	"github.com/yairfalse/tagvet/faults"
	"github.com/yairfalse/tagvet/types"
)

// Trend groups past compliance snapshots by day, week, or month and
// classifies the movement: improving when the latest aggregate beats
// the earliest in the window, declining when lower, stable when equal.
func Trend(snapshots []types.ComplianceResult, granularity string) (*types.TrendReport, error) {
	bucketOf, err := bucketFunc(granularity)
	if err != nil {
		return nil, err
	}

	type agg struct {
		sum   float64
		scans int
	}
	buckets := map[time.Time]*agg{}
	for i := range snapshots {
		b := bucketOf(snapshots[i].EvaluatedAt)
		if buckets[b] == nil {
			buckets[b] = &agg{}
		}
		buckets[b].sum += snapshots[i].ComplianceScore
		buckets[b].scans++
	}

	report := &types.TrendReport{Granularity: granularity, Direction: types.TrendStable}
	for b, a := range buckets {
		report.Points = append(report.Points, types.TrendPoint{
			Bucket: b,
			Score:  a.sum / float64(a.scans),
			Scans:  a.scans,
		})
	}
	sort.Slice(report.Points, func(i, j int) bool {
		return report.Points[i].Bucket.Before(report.Points[j].Bucket)
	})

	if len(report.Points) >= 2 {
		first := report.Points[0].Score
		last := report.Points[len(report.Points)-1].Score
		switch {
		case last > first:
			report.Direction = types.TrendImproving
		case last < first:
			report.Direction = types.TrendDeclining
		}
	}
	return report, nil
}

func bucketFunc(granularity string) (func(time.Time) time.Time, error) {
	switch granularity {
	case "day":
		return func(t time.Time) time.Time {
			return t.UTC().Truncate(24 * time.Hour)
		}, nil
	case "week":
		return func(t time.Time) time.Time {
			t = t.UTC().Truncate(24 * time.Hour)
			// Back up to Monday.
			offset := (int(t.Weekday()) + 6) % 7
			return t.AddDate(0, 0, -offset)
		}, nil
	case "month":
		return func(t time.Time) time.Time {
			t = t.UTC()
			return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		}, nil
	default:
		return nil, faults.Newf(faults.KindInvalidInput, "unknown granularity %q", granularity)
	}
}
