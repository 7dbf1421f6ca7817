package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/yairfalse/tagvet/types"
)

func (p *Provider) listEC2(ctx context.Context, client *ec2.Client, region string) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := ec2.NewDescribeInstancesPaginator(client, &ec2.DescribeInstancesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe instances: %w", err)
		}
		for _, reservation := range page.Reservations {
			for _, instance := range reservation.Instances {
				if instance.State != nil && instance.State.Name == ec2types.InstanceStateNameTerminated {
					continue
				}
				resources = append(resources, p.convertInstance(instance, region))
			}
		}
	}
	return resources, nil
}

func (p *Provider) convertInstance(instance ec2types.Instance, region string) types.Resource {
	tags := ec2TagsToMap(instance.Tags)
	r := types.Resource{
		ID: fmt.Sprintf("arn:aws:ec2:%s:%s:instance/%s",
			region, p.accountID, aws.ToString(instance.InstanceId)),
		Type:      "ec2",
		Region:    region,
		AccountID: p.accountID,
		Name:      tags["Name"],
		Tags:      tags,
	}
	if instance.LaunchTime != nil {
		r.CreatedAt = *instance.LaunchTime
	}
	stopped := instance.State != nil && instance.State.Name == ec2types.InstanceStateNameStopped
	estimateCost(&r, stopped)
	return r
}

func (p *Provider) listLambda(ctx context.Context, client *lambda.Client, region string) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := lambda.NewListFunctionsPaginator(client, &lambda.ListFunctionsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list functions: %w", err)
		}
		for _, fn := range page.Functions {
			arn := aws.ToString(fn.FunctionArn)

			tagsOut, err := client.ListTags(ctx, &lambda.ListTagsInput{Resource: aws.String(arn)})
			if err != nil {
				return nil, fmt.Errorf("list tags for %s: %w", aws.ToString(fn.FunctionName), err)
			}

			r := types.Resource{
				ID:        arn,
				Type:      "lambda",
				Region:    region,
				AccountID: p.accountID,
				Name:      aws.ToString(fn.FunctionName),
				Tags:      tagsOut.Tags,
			}
			estimateCost(&r, false)
			resources = append(resources, r)
		}
	}
	return resources, nil
}

func ec2TagsToMap(tags []ec2types.Tag) map[string]string {
	out := make(map[string]string, len(tags))
	for _, t := range tags {
		out[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return out
}
