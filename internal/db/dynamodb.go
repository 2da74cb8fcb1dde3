package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/spacesedan/sentimen/internal/models"
)

const (
	REVIEW_RESULTS_TABLE_NAME = "ReviewResults"
	maxBatchSize              = 25
	maxUnprocessedRetries     = 3
)

// BatchWriter is the part of the DynamoDB client the store uses.
type BatchWriter interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// ReviewStore writes classified reviews to DynamoDB. Records expire after
// ttl when the table has TTL enabled on expires_at.
type ReviewStore struct {
	client  BatchWriter
	table   string
	ttl     time.Duration
	backoff time.Duration
}

func NewReviewStore(client BatchWriter, table string, ttl time.Duration) *ReviewStore {
	if table == "" {
		table = REVIEW_RESULTS_TABLE_NAME
	}
	return &ReviewStore{client: client, table: table, ttl: ttl, backoff: 500 * time.Millisecond}
}

func (s *ReviewStore) Put(ctx context.Context, results []models.ReviewResult) error {
	for i := 0; i < len(results); i += maxBatchSize {
		if err := ctx.Err(); err != nil {
			slog.Warn("[DynamoDB] context canceled")
			return err
		}

		end := min(i+maxBatchSize, len(results))
		writeRequests := make([]types.WriteRequest, 0, end-i)
		for _, r := range results[i:end] {
			item, err := s.toItem(r)
			if err != nil {
				return err
			}
			writeRequests = append(writeRequests, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: item},
			})
		}

		if err := s.writeBatch(ctx, writeRequests); err != nil {
			return err
		}
	}
	slog.Debug("[DynamoDB] Stored review results", slog.Int("count", len(results)))
	return nil
}

func (s *ReviewStore) writeBatch(ctx context.Context, requests []types.WriteRequest) error {
	out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{s.table: requests},
	})
	if err != nil {
		return fmt.Errorf("[DynamoDB] Failed to batch write review results: %w", err)
	}

	backoff := s.backoff
	for retry := 0; len(out.UnprocessedItems) > 0 && retry < maxUnprocessedRetries; retry++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2

		slog.Warn("[DynamoDB] Retrying unprocessed review items...",
			slog.Int("attempt", retry+1),
			slog.Int("remaining", len(out.UnprocessedItems[s.table])))

		out, err = s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: out.UnprocessedItems,
		})
		if err != nil {
			return fmt.Errorf("[DynamoDB] Retry error: %w", err)
		}
	}

	if remaining := len(out.UnprocessedItems[s.table]); remaining > 0 {
		return fmt.Errorf("[DynamoDB] %d review results not written after retries", remaining)
	}
	return nil
}

func (s *ReviewStore) toItem(r models.ReviewResult) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(r)
	if err != nil {
		return nil, fmt.Errorf("[DynamoDB] Failed to marshal review %s: %w", r.ReviewID, err)
	}
	if s.ttl > 0 {
		ts := r.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		item["expires_at"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ts.Add(s.ttl).Unix())}
	}
	return item, nil
}
