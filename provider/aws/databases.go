package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"

	"github.com/yairfalse/tagvet/types"
)

func (p *Provider) listRDS(ctx context.Context, client *rds.Client, region string) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := rds.NewDescribeDBInstancesPaginator(client, &rds.DescribeDBInstancesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe db instances: %w", err)
		}
		for _, db := range page.DBInstances {
			resources = append(resources, p.convertDBInstance(db, region))
		}
	}
	return resources, nil
}

func (p *Provider) convertDBInstance(db rdstypes.DBInstance, region string) types.Resource {
	r := types.Resource{
		ID:        aws.ToString(db.DBInstanceArn),
		Type:      "rds",
		Region:    region,
		AccountID: p.accountID,
		Name:      aws.ToString(db.DBInstanceIdentifier),
		Tags:      rdsTagsToMap(db.TagList),
	}
	if db.InstanceCreateTime != nil {
		r.CreatedAt = *db.InstanceCreateTime
	}
	stopped := aws.ToString(db.DBInstanceStatus) == "stopped"
	estimateCost(&r, stopped)
	return r
}

func (p *Provider) listDynamoDB(ctx context.Context, client *dynamodb.Client, region string) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := dynamodb.NewListTablesPaginator(client, &dynamodb.ListTablesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		for _, name := range page.TableNames {
			resource, err := p.describeTable(ctx, client, name, region)
			if err != nil {
				return nil, err
			}
			resources = append(resources, resource)
		}
	}
	return resources, nil
}

func (p *Provider) describeTable(ctx context.Context, client *dynamodb.Client, name, region string) (types.Resource, error) {
	desc, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
	if err != nil {
		return types.Resource{}, fmt.Errorf("describe table %s: %w", name, err)
	}
	arn := aws.ToString(desc.Table.TableArn)

	tagsOut, err := client.ListTagsOfResource(ctx, &dynamodb.ListTagsOfResourceInput{ResourceArn: aws.String(arn)})
	if err != nil {
		return types.Resource{}, fmt.Errorf("list tags for table %s: %w", name, err)
	}

	tags := make(map[string]string, len(tagsOut.Tags))
	for _, t := range tagsOut.Tags {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}

	r := types.Resource{
		ID:        arn,
		Type:      "dynamodb",
		Region:    region,
		AccountID: p.accountID,
		Name:      name,
		Tags:      tags,
	}
	if desc.Table.CreationDateTime != nil {
		r.CreatedAt = *desc.Table.CreationDateTime
	}
	estimateCost(&r, false)
	return r, nil
}

func rdsTagsToMap(tags []rdstypes.Tag) map[string]string {
	out := make(map[string]string, len(tags))
	for _, t := range tags {
		out[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return out
}
