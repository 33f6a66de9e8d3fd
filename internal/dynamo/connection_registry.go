package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/jonboulle/clockwork"

	"github.com/nosisky/leaderboard-system/internal/domain"
	"github.com/nosisky/leaderboard-system/internal/metrics"
)

type connectionItem struct {
	ConnectionID string    `dynamodbav:"connectionId"`
	ConnectedAt  time.Time `dynamodbav:"connectedAt"`
	LastSeen     time.Time `dynamodbav:"lastSeen"`
	UserID       string    `dynamodbav:"userId,omitempty"`
	TTL          int64     `dynamodbav:"ttl"`
}

func (i connectionItem) toRecord() domain.ConnectionRecord {
	return domain.ConnectionRecord{
		ConnectionID: i.ConnectionID,
		ConnectedAt:  i.ConnectedAt,
		LastSeen:     i.LastSeen,
		UserID:       i.UserID,
		ExpiresAt:    time.Unix(i.TTL, 0),
	}
}

// ConnectionRegistry is the DynamoDB-backed connection registry. Rows carry
// an epoch-seconds ttl attribute; table TTL reaps them lazily, so reads must
// filter out rows that expired but have not been deleted yet.
type ConnectionRegistry struct {
	api   API
	table string
	clock clockwork.Clock
	ttl   time.Duration
}

func NewConnectionRegistry(api API, table string, clock clockwork.Clock, ttl time.Duration) *ConnectionRegistry {
	return &ConnectionRegistry{api: api, table: table, clock: clock, ttl: ttl}
}

// Register inserts a row for the connection. The conditional write makes a
// duplicate register return the existing row instead of overwriting it.
func (r *ConnectionRegistry) Register(ctx context.Context, connectionID, userID string) (domain.ConnectionRecord, error) {
	now := r.clock.Now()
	item := connectionItem{
		ConnectionID: connectionID,
		ConnectedAt:  now,
		LastSeen:     now,
		UserID:       userID,
		TTL:          now.Add(r.ttl).Unix(),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return domain.ConnectionRecord{}, fmt.Errorf("failed to marshal connection item: %w", err)
	}

	_, err = r.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(connectionId)"),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return r.get(ctx, connectionID)
		}
		metrics.RegistryOpsTotal.WithLabelValues("register", "error").Inc()
		return domain.ConnectionRecord{}, fmt.Errorf("failed to register connection: %w", err)
	}

	metrics.RegistryOpsTotal.WithLabelValues("register", "ok").Inc()
	return item.toRecord(), nil
}

// Touch refreshes lastSeen. Unknown ids are created-then-reaped by the
// condition expression being absent, so guard with attribute_exists.
func (r *ConnectionRegistry) Touch(ctx context.Context, connectionID string) error {
	_, err := r.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.table),
		Key:                 connectionKey(connectionID),
		UpdateExpression:    aws.String("SET lastSeen = :now"),
		ConditionExpression: aws.String("attribute_exists(connectionId)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberS{Value: r.clock.Now().UTC().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return nil
		}
		return fmt.Errorf("failed to touch connection: %w", err)
	}
	return nil
}

// Remove deletes the row. Removing an unknown id is a no-op.
func (r *ConnectionRegistry) Remove(ctx context.Context, connectionID string) error {
	_, err := r.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.table),
		Key:       connectionKey(connectionID),
	})
	if err != nil {
		metrics.RegistryOpsTotal.WithLabelValues("remove", "error").Inc()
		return fmt.Errorf("failed to remove connection: %w", err)
	}
	metrics.RegistryOpsTotal.WithLabelValues("remove", "ok").Inc()
	return nil
}

// ListReachable scans the table, excluding rows whose ttl has passed but
// that the table's lazy TTL reaper has not deleted yet.
func (r *ConnectionRegistry) ListReachable(ctx context.Context) ([]domain.ConnectionRecord, error) {
	nowUnix := strconv.FormatInt(r.clock.Now().Unix(), 10)

	var records []domain.ConnectionRecord
	var startKey map[string]types.AttributeValue

	for {
		out, err := r.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:                aws.String(r.table),
			FilterExpression:         aws.String("#ttl > :now"),
			ExpressionAttributeNames: map[string]string{"#ttl": "ttl"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":now": &types.AttributeValueMemberN{Value: nowUnix},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan connections: %w", err)
		}

		var items []connectionItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal connection items: %w", err)
		}
		for _, item := range items {
			records = append(records, item.toRecord())
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	return records, nil
}

// SweepExpired deletes rows whose ttl has passed. The table's own TTL
// reaper is lazy (up to 48 hours behind), so an operator-run sweep keeps
// scan sizes bounded on busy tables. Returns the number of rows deleted,
// or the number that would be deleted when dryRun is set.
func (r *ConnectionRegistry) SweepExpired(ctx context.Context, dryRun bool) (int, error) {
	nowUnix := strconv.FormatInt(r.clock.Now().Unix(), 10)

	deleted := 0
	var startKey map[string]types.AttributeValue

	for {
		out, err := r.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:                aws.String(r.table),
			ProjectionExpression:     aws.String("connectionId"),
			FilterExpression:         aws.String("#ttl <= :now"),
			ExpressionAttributeNames: map[string]string{"#ttl": "ttl"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":now": &types.AttributeValueMemberN{Value: nowUnix},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return deleted, fmt.Errorf("failed to scan expired connections: %w", err)
		}

		var items []connectionItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return deleted, fmt.Errorf("failed to unmarshal connection items: %w", err)
		}
		for _, item := range items {
			if !dryRun {
				if err := r.Remove(ctx, item.ConnectionID); err != nil {
					return deleted, err
				}
			}
			deleted++
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	return deleted, nil
}

func (r *ConnectionRegistry) get(ctx context.Context, connectionID string) (domain.ConnectionRecord, error) {
	out, err := r.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key:       connectionKey(connectionID),
	})
	if err != nil {
		return domain.ConnectionRecord{}, fmt.Errorf("failed to read connection: %w", err)
	}
	if out.Item == nil {
		return domain.ConnectionRecord{}, fmt.Errorf("connection %s not found", connectionID)
	}

	var item connectionItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return domain.ConnectionRecord{}, fmt.Errorf("failed to unmarshal connection item: %w", err)
	}
	return item.toRecord(), nil
}

func connectionKey(connectionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"connectionId": &types.AttributeValueMemberS{Value: connectionID},
	}
}
