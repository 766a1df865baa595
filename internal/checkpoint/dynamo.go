package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

type item struct {
	Name      string `dynamodbav:"name"`
	Last      int64  `dynamodbav:"last"`
	UpdatedAt string `dynamodbav:"updatedAt"`
}

// DynamoStore keeps checkpoints in a DynamoDB table keyed by "name".
type DynamoStore struct {
	client    dynamoAPI
	tableName string
}

var _ Store = (*DynamoStore)(nil)

func NewDynamoStore(client dynamoAPI, tableName string) *DynamoStore {
	if client == nil {
		panic("checkpoint: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("checkpoint: table name cannot be empty")
	}
	return &DynamoStore{client: client, tableName: tableName}
}

func (s *DynamoStore) Load(ctx context.Context, name string) (int64, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            map[string]types.AttributeValue{"name": &types.AttributeValueMemberS{Value: name}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("checkpoint: get %s: %w", name, err)
	}
	if len(out.Item) == 0 {
		return 0, ErrNotFound
	}

	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return 0, fmt.Errorf("checkpoint: decode %s: %w", name, err)
	}
	return it.Last, nil
}

func (s *DynamoStore) Save(ctx context.Context, name string, last int64) error {
	av, err := attributevalue.MarshalMap(item{
		Name:      name,
		Last:      last,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("checkpoint: marshal %s: %w", name, err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
		// Never move a checkpoint backwards.
		ConditionExpression:       aws.String("attribute_not_exists(#n) OR #l < :last"),
		ExpressionAttributeNames:  map[string]string{"#n": "name", "#l": "last"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":last": av["last"]},
	})
	if err != nil {
		var stale *types.ConditionalCheckFailedException
		if errors.As(err, &stale) {
			return nil
		}
		return fmt.Errorf("checkpoint: put %s: %w", name, err)
	}
	return nil
}
