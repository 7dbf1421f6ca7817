// Package aws implements the Resource Provider against the AWS APIs.
// Read-only: every call is a Describe/List/Get.
package aws

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/yairfalse/tagvet/provider"
	"github.com/yairfalse/tagvet/telemetry"
	"github.com/yairfalse/tagvet/types"
)

// supportedTypes in stable scan order.
var supportedTypes = []string{"ec2", "rds", "s3", "lambda", "dynamodb", "sqs"}

// Provider lists AWS resources with normalized tags and estimated
// costs. Service clients are created lazily per region and cached.
type Provider struct {
	cfg       aws.Config
	accountID string
	logger    *telemetry.Logger

	mu      sync.Mutex
	clients map[string]*regionClients
	costs   costTracker
}

type regionClients struct {
	ec2      *ec2.Client
	rds      *rds.Client
	s3       *s3.Client
	lambda   *lambda.Client
	dynamodb *dynamodb.Client
	sqs      *sqs.Client
}

// NewProvider loads AWS configuration and resolves the audited
// account via STS.
func NewProvider(ctx context.Context) (*Provider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	identity, err := sts.NewFromConfig(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, provider.Classify(err)
	}

	return &Provider{
		cfg:       cfg,
		accountID: aws.ToString(identity.Account),
		logger:    telemetry.NewLogger("aws-provider"),
		clients:   make(map[string]*regionClients),
	}, nil
}

// AccountID returns the audited account.
func (p *Provider) AccountID() string { return p.accountID }

// SupportedTypes returns scannable resource types in stable order.
func (p *Provider) SupportedTypes() []string {
	out := make([]string, len(supportedTypes))
	copy(out, supportedTypes)
	return out
}

// ListResources lists one resource type in one region, paginating
// internally. Errors come back classified.
func (p *Provider) ListResources(ctx context.Context, resourceType, region string) ([]types.Resource, error) {
	clients := p.forRegion(region)

	var resources []types.Resource
	var err error
	switch resourceType {
	case "ec2":
		resources, err = p.listEC2(ctx, clients.ec2, region)
	case "rds":
		resources, err = p.listRDS(ctx, clients.rds, region)
	case "s3":
		resources, err = p.listS3(ctx, clients.s3, region)
	case "lambda":
		resources, err = p.listLambda(ctx, clients.lambda, region)
	case "dynamodb":
		resources, err = p.listDynamoDB(ctx, clients.dynamodb, region)
	case "sqs":
		resources, err = p.listSQS(ctx, clients.sqs, region)
	default:
		return nil, fmt.Errorf("unsupported resource type %q", resourceType)
	}
	if err != nil {
		return nil, provider.Classify(err)
	}
	p.trackCounts(resourceType, len(resources))

	p.logger.WithContext(ctx).Debug().
		Str("resource_type", resourceType).
		Str("region", region).
		Int("count", len(resources)).
		Msg("listed resources")
	return resources, nil
}

func (p *Provider) forRegion(region string) *regionClients {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[region]; ok {
		return c
	}
	cfg := p.cfg.Copy()
	cfg.Region = region
	c := &regionClients{
		ec2:      ec2.NewFromConfig(cfg),
		rds:      rds.NewFromConfig(cfg),
		s3:       s3.NewFromConfig(cfg),
		lambda:   lambda.NewFromConfig(cfg),
		dynamodb: dynamodb.NewFromConfig(cfg),
		sqs:      sqs.NewFromConfig(cfg),
	}
	p.clients[region] = c
	return c
}
