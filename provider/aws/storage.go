package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"

	"github.com/yairfalse/tagvet/types"
)

func (p *Provider) listS3(ctx context.Context, client *s3.Client, region string) ([]types.Resource, error) {
	out, err := client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}

	var resources []types.Resource
	for _, bucket := range out.Buckets {
		name := aws.ToString(bucket.Name)

		bucketRegion, err := p.bucketRegion(ctx, client, name)
		if err != nil {
			return nil, err
		}
		if bucketRegion != region {
			continue
		}

		tags, err := p.bucketTags(ctx, client, name)
		if err != nil {
			return nil, err
		}

		r := types.Resource{
			ID:        fmt.Sprintf("arn:aws:s3:::%s", name),
			Type:      "s3",
			Region:    region,
			AccountID: p.accountID,
			Name:      name,
			Tags:      tags,
		}
		if bucket.CreationDate != nil {
			r.CreatedAt = *bucket.CreationDate
		}
		estimateCost(&r, false)
		resources = append(resources, r)
	}
	return resources, nil
}

func (p *Provider) bucketRegion(ctx context.Context, client *s3.Client, name string) (string, error) {
	out, err := client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: aws.String(name)})
	if err != nil {
		return "", fmt.Errorf("get bucket location %s: %w", name, err)
	}
	// An empty LocationConstraint means us-east-1.
	if out.LocationConstraint == "" {
		return "us-east-1", nil
	}
	return string(out.LocationConstraint), nil
}

func (p *Provider) bucketTags(ctx context.Context, client *s3.Client, name string) (map[string]string, error) {
	out, err := client.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{Bucket: aws.String(name)})
	if err != nil {
		// An untagged bucket is not an error.
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchTagSet" {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("get bucket tagging %s: %w", name, err)
	}

	tags := make(map[string]string, len(out.TagSet))
	for _, t := range out.TagSet {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return tags, nil
}

func (p *Provider) listSQS(ctx context.Context, client *sqs.Client, region string) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := sqs.NewListQueuesPaginator(client, &sqs.ListQueuesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list queues: %w", err)
		}
		for _, queueURL := range page.QueueUrls {
			resource, err := p.describeQueue(ctx, client, queueURL, region)
			if err != nil {
				return nil, err
			}
			resources = append(resources, resource)
		}
	}
	return resources, nil
}

func (p *Provider) describeQueue(ctx context.Context, client *sqs.Client, queueURL, region string) (types.Resource, error) {
	attrs, err := client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(queueURL),
		AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameQueueArn},
	})
	if err != nil {
		return types.Resource{}, fmt.Errorf("get queue attributes: %w", err)
	}

	tagsOut, err := client.ListQueueTags(ctx, &sqs.ListQueueTagsInput{QueueUrl: aws.String(queueURL)})
	if err != nil {
		return types.Resource{}, fmt.Errorf("list queue tags: %w", err)
	}

	arn := attrs.Attributes[string(sqstypes.QueueAttributeNameQueueArn)]
	r := types.Resource{
		ID:        arn,
		Type:      "sqs",
		Region:    region,
		AccountID: p.accountID,
		Name:      queueName(arn),
		Tags:      tagsOut.Tags,
	}
	estimateCost(&r, false)
	return r, nil
}

func queueName(arn string) string {
	for i := len(arn) - 1; i >= 0; i-- {
		if arn[i] == ':' {
			return arn[i+1:]
		}
	}
	return arn
}
