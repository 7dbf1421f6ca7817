// Package scanner fans a scan out over (resourceType, region)
// partitions, funnels every provider call through the rate limiter,
// and folds per-partition outcomes into one result with an explicit
// data-quality descriptor.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/tagvet/faults"
	"github.com/yairfalse/tagvet/provider"
	"github.com/yairfalse/tagvet/ratelimit"
	"github.com/yairfalse/tagvet/telemetry"
	"github.com/yairfalse/tagvet/types"
)

// DefaultTimeout bounds one whole scan invocation.
const DefaultTimeout = 2 * time.Minute

// Scanner runs partitioned scans against one Resource Provider.
type Scanner struct {
	provider provider.ResourceProvider
	limiter  *ratelimit.Limiter
	timeout  time.Duration
	logger   *telemetry.Logger
}

// Result is one scan's output. Resources are ordered by partition
// dispatch order, then by provider listing order within a partition.
type Result struct {
	Resources []types.Resource
	Quality   types.DataQuality
}

// partition is one independently scanned unit of work.
type partition struct {
	resourceType string
	region       string
}

func (p partition) String() string {
	return p.resourceType + "/" + p.region
}

// New creates a scanner. Zero timeout takes the default.
func New(p provider.ResourceProvider, limiter *ratelimit.Limiter, timeout time.Duration) *Scanner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Scanner{
		provider: p,
		limiter:  limiter,
		timeout:  timeout,
		logger:   telemetry.NewLogger("scanner"),
	}
}

// Scan lists all resources of the given types across the given
// regions. A failed partition is recorded in the result's data quality
// rather than failing the call; the call fails only when every
// partition failed, or when the wall-clock timeout expires first.
func (s *Scanner) Scan(ctx context.Context, resourceTypes, regions []string) (*Result, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "scanner.scan",
		trace.WithAttributes(
			attribute.Int("resource_types", len(resourceTypes)),
			attribute.Int("regions", len(regions)),
		))
	defer span.End()

	if len(resourceTypes) == 0 {
		resourceTypes = s.provider.SupportedTypes()
	}

	partitions := make([]partition, 0, len(resourceTypes)*len(regions))
	for _, rt := range resourceTypes {
		for _, region := range regions {
			partitions = append(partitions, partition{resourceType: rt, region: region})
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	outcomes := s.dispatch(ctx, partitions)
	telemetry.ScanDuration.Record(ctx, time.Since(start).Seconds())

	return s.fold(ctx, partitions, outcomes)
}

type outcome struct {
	resources []types.Resource
	err       error
}

// dispatch runs every partition concurrently. The limiter's gate caps
// real fan-out; goroutines beyond it queue. Outcomes land in slots
// indexed by dispatch order so later folding is deterministic.
func (s *Scanner) dispatch(ctx context.Context, partitions []partition) []outcome {
	outcomes := make([]outcome, len(partitions))
	var wg sync.WaitGroup

	for i, p := range partitions {
		wg.Add(1)
		go func(i int, p partition) {
			defer wg.Done()
			err := s.limiter.Do(ctx, p.resourceType, func(ctx context.Context) error {
				resources, err := s.provider.ListResources(ctx, p.resourceType, p.region)
				if err != nil {
					return err
				}
				outcomes[i].resources = resources
				return nil
			})
			outcomes[i].err = err
		}(i, p)
	}
	wg.Wait()
	return outcomes
}

// fold walks outcomes in dispatch order and assembles the result. On
// timeout it reports how much of the scan completed instead of the
// partial data, because a truncated scan is not a partial scan the
// caller asked for.
func (s *Scanner) fold(ctx context.Context, partitions []partition, outcomes []outcome) (*Result, error) {
	result := &Result{Quality: types.DataQuality{Status: types.DataComplete}}

	var completed int
	seenRegion := make(map[string]bool)
	var timedOut bool

	for i, o := range outcomes {
		if o.err == nil {
			completed++
			result.Resources = append(result.Resources, o.resources...)
			continue
		}
		if errors.Is(o.err, context.DeadlineExceeded) {
			timedOut = true
			continue
		}

		p := partitions[i]
		telemetry.PartitionsFailed.Add(ctx, 1,
			metric.WithAttributes(attribute.String("resource_type", p.resourceType)))
		s.logger.LogFault(ctx, "scan partition "+p.String(), o.err)

		result.Quality.Status = types.DataPartial
		result.Quality.FailedPartitions = append(result.Quality.FailedPartitions, p.String())
		if !seenRegion[p.region] {
			seenRegion[p.region] = true
			result.Quality.FailedRegions = append(result.Quality.FailedRegions, p.region)
		}
	}

	if timedOut {
		return nil, faults.Newf(faults.KindTimeout,
			"scan timed out after %s with %d of %d partitions completed; re-invoke with fewer regions or resource types",
			s.timeout, completed, len(partitions))
	}
	if completed == 0 && len(partitions) > 0 {
		return nil, faults.New(faults.KindUpstreamUnavailable,
			fmt.Sprintf("all %d partitions failed", len(partitions)))
	}
	return result, nil
}
