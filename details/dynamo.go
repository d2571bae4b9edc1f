package details

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DefaultTable is the unprefixed name of the details table.
const DefaultTable = "syllabus_details"

// Client is the subset of the DynamoDB API the backend uses.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoBackend stores Details in one table whose hash key is ownerId.
type DynamoBackend struct {
	client Client
	table  string
}

// NewDynamoBackend creates a backend on the physical table.
func NewDynamoBackend(client Client, table string) *DynamoBackend {
	return &DynamoBackend{client: client, table: table}
}

func ownerKey(ownerID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"ownerId": &types.AttributeValueMemberS{Value: ownerID}}
}

func (b *DynamoBackend) Get(ctx context.Context, ownerID string) (*Details, error) {
	out, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(b.table),
		Key:            ownerKey(ownerID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	var d Details
	if err := attributevalue.UnmarshalMap(out.Item, &d); err != nil {
		return nil, fmt.Errorf("unmarshal details: %w", err)
	}
	return &d, nil
}

func (b *DynamoBackend) Put(ctx context.Context, d *Details) error {
	item, err := attributevalue.MarshalMap(d)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}
	_, err = b.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(b.table),
		Item:      item,
	})
	return err
}

func (b *DynamoBackend) Delete(ctx context.Context, ownerID string) error {
	_, err := b.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(b.table),
		Key:       ownerKey(ownerID),
	})
	return err
}
