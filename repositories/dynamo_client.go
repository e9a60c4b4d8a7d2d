package repositories

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type DynamoDBAPI interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoDBClient mirrors localization progress into a dashboard table.
// It is a best-effort sink: the localizer never depends on it.
type DynamoDBClient struct {
	client    DynamoDBAPI
	tableName string
}

func NewDynamoDBClient(client DynamoDBAPI, tableName string) *DynamoDBClient {
	return &DynamoDBClient{
		client:    client,
		tableName: tableName,
	}
}

func (d *DynamoDBClient) UpdateProgress(ctx context.Context, total, completed int64, lastRun string) error {
	if d.tableName == "" {
		log.Printf("Warning: PROGRESS_TABLE not configured, skipping DynamoDB progress update")
		return nil
	}

	_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"localizer_id": &types.AttributeValueMemberS{Value: "asset-localizer"},
		},
		UpdateExpression: aws.String("SET total_documents = :total, completed_documents = :completed, last_run = :lr"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":total":     &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", total)},
			":completed": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", completed)},
			":lr":        &types.AttributeValueMemberS{Value: lastRun},
		},
	})

	if err != nil {
		return fmt.Errorf("failed to update progress in DynamoDB: %w", err)
	}

	return nil
}
