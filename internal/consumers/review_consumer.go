// Package consumers turns Kafka review requests into published results.
package consumers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"github.com/spacesedan/sentimen/internal/clients/kafka_client"
	"github.com/spacesedan/sentimen/internal/errs"
	"github.com/spacesedan/sentimen/internal/models"
	"github.com/spacesedan/sentimen/internal/utils"
)

type Classifier interface {
	Classify(ctx context.Context, req models.ReviewRequest) (models.ReviewResult, error)
}

type MessageSource interface {
	Next() (*kafka.Message, error)
}

type Committer interface {
	Commit(msg *kafka.Message) error
}

type Publisher interface {
	PublishBatch(ctx context.Context, topic string, messages []kafka_client.Message) error
}

// pending is one consumed message and the results produced from it.
type pending struct {
	msg     *kafka.Message
	results []models.ReviewResult
}

type ReviewConsumer struct {
	classifier   Classifier
	source       MessageSource
	committer    Committer
	publisher    Publisher
	resultsTopic string
	buffer       *utils.BatchBuffer[pending]
	flushEvery   time.Duration
	retryDelay   time.Duration
	healthy      *atomic.Bool
}

type ReviewConsumerOptions struct {
	ResultsTopic string
	BatchSize    int
	FlushEvery   time.Duration
	// Healthy is set while the consumer loop is running.
	Healthy *atomic.Bool
}

func NewReviewConsumer(classifier Classifier, source MessageSource, committer Committer, publisher Publisher, opts ReviewConsumerOptions) *ReviewConsumer {
	if opts.ResultsTopic == "" {
		opts.ResultsTopic = kafka_client.KAFKA_TOPIC_REVIEW_RESULTS
	}
	if opts.FlushEvery <= 0 {
		opts.FlushEvery = utils.BATCH_TIMEOUT
	}
	if opts.Healthy == nil {
		opts.Healthy = &atomic.Bool{}
	}
	return &ReviewConsumer{
		classifier:   classifier,
		source:       source,
		committer:    committer,
		publisher:    publisher,
		resultsTopic: opts.ResultsTopic,
		buffer:       utils.NewBatchBuffer[pending](opts.BatchSize),
		flushEvery:   opts.FlushEvery,
		retryDelay:   2 * time.Second,
		healthy:      opts.Healthy,
	}
}

// Handler adapts the consumer to the kafka_client registry.
func Handler(classifier Classifier, publisher Publisher, opts ReviewConsumerOptions) kafka_client.ConsumerFunc {
	return func(ctx context.Context, consumer *kafka.Consumer) error {
		rc := NewReviewConsumer(classifier,
			kafka_client.NewKafkaMessageIterator(ctx, consumer),
			kafka_client.NewCommitHandler(ctx, consumer),
			publisher, opts)
		return rc.Run(ctx)
	}
}

// Run consumes until ctx is cancelled. Setup failures stop the consumer
// without committing, so the messages are redelivered once the artifacts
// are fixed.
func (rc *ReviewConsumer) Run(ctx context.Context) error {
	slog.Info("[ReviewConsumer] Listening for review requests...")
	rc.healthy.Store(true)
	defer rc.healthy.Store(false)

	ticker := time.NewTicker(rc.flushEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Warn("[ReviewConsumer] Stopping consumer...")
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := rc.Flush(flushCtx); err != nil {
				slog.Error("[ReviewConsumer] Final flush failed", slog.String("error", err.Error()))
			}
			return nil
		case <-ticker.C:
			if err := rc.Flush(ctx); err != nil {
				slog.Error("[ReviewConsumer] Flush failed", slog.String("error", err.Error()))
			}
		default:
			msg, err := rc.source.Next()
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				return fmt.Errorf("[ReviewConsumer] read failed: %w", err)
			}
			if msg == nil {
				continue
			}

			full, err := rc.Handle(ctx, msg)
			if err != nil {
				return err
			}
			if full {
				if err := rc.Flush(ctx); err != nil {
					slog.Error("[ReviewConsumer] Flush failed", slog.String("error", err.Error()))
				}
			}
		}
	}
}

// Handle classifies the reviews in msg and buffers the results. It reports
// whether the buffer is full.
func (rc *ReviewConsumer) Handle(ctx context.Context, msg *kafka.Message) (bool, error) {
	requests, err := decodeRequests(msg.Value)
	if err != nil {
		slog.Warn("[ReviewConsumer] Skipping undecodable message",
			slog.String("offset", msg.TopicPartition.Offset.String()),
			slog.String("error", err.Error()))
		return rc.buffer.Add(pending{msg: msg}), nil
	}

	p := pending{msg: msg}
	for _, req := range requests {
		res, err := rc.classifier.Classify(ctx, req)
		if err != nil {
			if _, ok := errs.IsSetup(err); ok {
				return false, fmt.Errorf("[ReviewConsumer] cannot classify: %w", err)
			}
			if errs.IsSchemaMismatch(err) {
				return false, fmt.Errorf("[ReviewConsumer] artifacts disagree: %w", err)
			}
			slog.Warn("[ReviewConsumer] Skipping review",
				slog.String("review_id", req.ReviewID),
				slog.String("error", err.Error()))
			continue
		}
		p.results = append(p.results, res)
	}
	return rc.buffer.Add(p), nil
}

// Flush publishes buffered results in one transaction and then commits the
// consumed offsets. On failure nothing is committed and the batch goes back
// into the buffer, so a later commit never covers unpublished results.
func (rc *ReviewConsumer) Flush(ctx context.Context) error {
	batch := rc.buffer.GetAndClear()
	if len(batch) == 0 {
		return nil
	}
	if err := rc.publish(ctx, batch); err != nil {
		rc.buffer.Requeue(batch)
		return err
	}

	for _, msg := range lastPerPartition(batch) {
		if err := rc.committer.Commit(msg); err != nil {
			slog.Warn("[ReviewConsumer] Failed to commit offset", slog.String("error", err.Error()))
		}
	}
	return nil
}

// publish sends every result in batch as one transaction, retrying a few
// times before giving up.
func (rc *ReviewConsumer) publish(ctx context.Context, batch []pending) error {
	var messages []kafka_client.Message
	for _, p := range batch {
		for _, r := range p.results {
			value, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("[ReviewConsumer] failed to marshal result %s: %w", r.ReviewID, err)
			}
			messages = append(messages, kafka_client.Message{Key: []byte(r.ReviewID), Value: value})
		}
	}

	var err error
	for i := 0; i < 3; i++ {
		if err = rc.publisher.PublishBatch(ctx, rc.resultsTopic, messages); err == nil {
			break
		}
		slog.Warn("[ReviewConsumer] Batch publishing failed",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rc.retryDelay):
		}
	}
	if err != nil {
		return fmt.Errorf("[ReviewConsumer] giving up on batch of %d results: %w", len(messages), err)
	}
	slog.Info("[ReviewConsumer] Batch processed",
		slog.Int("messages", len(batch)),
		slog.Int("results", len(messages)))
	return nil
}

// decodeRequests accepts a single request object or an array of them.
func decodeRequests(data []byte) ([]models.ReviewRequest, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty message")
	}
	if data[0] == '[' {
		var reqs []models.ReviewRequest
		if err := json.Unmarshal(data, &reqs); err != nil {
			return nil, err
		}
		return reqs, nil
	}
	var req models.ReviewRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return []models.ReviewRequest{req}, nil
}

// lastPerPartition keeps the highest-offset message of each partition;
// committing it covers everything before it.
func lastPerPartition(batch []pending) []*kafka.Message {
	type tp struct {
		topic     string
		partition int32
	}
	last := map[tp]*kafka.Message{}
	var order []tp
	for _, p := range batch {
		var topic string
		if p.msg.TopicPartition.Topic != nil {
			topic = *p.msg.TopicPartition.Topic
		}
		key := tp{topic, p.msg.TopicPartition.Partition}
		cur, ok := last[key]
		if !ok {
			order = append(order, key)
		}
		if !ok || p.msg.TopicPartition.Offset > cur.TopicPartition.Offset {
			last[key] = p.msg
		}
	}
	out := make([]*kafka.Message, 0, len(order))
	for _, k := range order {
		out = append(out, last[k])
	}
	return out
}
