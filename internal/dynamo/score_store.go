package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/nosisky/leaderboard-system/internal/domain"
)

type scoreItem struct {
	ID        string `dynamodbav:"id"`
	UserID    string `dynamodbav:"userId"`
	UserName  string `dynamodbav:"userName"`
	Score     int64  `dynamodbav:"score"`
	Timestamp int64  `dynamodbav:"timestamp"`
}

// ScoreStore persists score rows in DynamoDB.
type ScoreStore struct {
	api   API
	table string
}

func NewScoreStore(api API, table string) *ScoreStore {
	return &ScoreStore{api: api, table: table}
}

// Put implements domain.ScoreStore.
func (s *ScoreStore) Put(ctx context.Context, entry domain.ScoreEntry) error {
	av, err := attributevalue.MarshalMap(scoreItem(entry))
	if err != nil {
		return fmt.Errorf("failed to marshal score item: %w", err)
	}

	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to store score: %w", err)
	}
	return nil
}

// Scan implements domain.ScoreStore. Returns every row; ranking happens
// in the caller.
func (s *ScoreStore) Scan(ctx context.Context) ([]domain.ScoreEntry, error) {
	var entries []domain.ScoreEntry
	var startKey map[string]types.AttributeValue

	for {
		out, err := s.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.table),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan scores: %w", err)
		}

		var items []scoreItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal score items: %w", err)
		}
		for _, item := range items {
			entries = append(entries, domain.ScoreEntry(item))
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	return entries, nil
}
