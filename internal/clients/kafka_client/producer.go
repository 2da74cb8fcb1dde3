package kafka_client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

// Message is one record to publish.
type Message struct {
	Key   []byte
	Value []byte
}

// Producer publishes batches inside Kafka transactions so consumers reading
// with read_committed never see half a batch.
type Producer struct {
	producer *kafka.Producer
	mu       sync.Mutex
}

func NewProducer(ctx context.Context, cfg KafkaConfig) (*Producer, error) {
	slog.Info("[KafkaClient] Initializing Kafka Producer...",
		slog.String("broker", cfg.Broker),
		slog.String("transactional_id", cfg.TransactionalID))

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":                     cfg.Broker,
		"security.protocol":                     "PLAINTEXT",
		"api.version.request":                   "true",
		"enable.idempotence":                    true,
		"acks":                                  "all",
		"max.in.flight.requests.per.connection": 1,
		"transactional.id":                      cfg.TransactionalID,
	})
	if err != nil {
		return nil, fmt.Errorf("[KafkaClient] Failed to create producer: %w", err)
	}

	if err := p.InitTransactions(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("[KafkaClient] Failed to init transactions: %w", err)
	}

	slog.Info("[KafkaClient] Kafka Producer initialized successfully")
	return &Producer{producer: p}, nil
}

// PublishBatch writes messages to topic in a single transaction.
func (p *Producer) PublishBatch(ctx context.Context, topic string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.producer.BeginTransaction(); err != nil {
		return fmt.Errorf("[KafkaClient] failed to begin transaction: %w", err)
	}

	for _, m := range messages {
		msg := &kafka.Message{
			TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
			Key:            m.Key,
			Value:          m.Value,
		}
		if err := p.producer.Produce(msg, nil); err != nil {
			return p.abort(ctx, fmt.Errorf("[KafkaClient] failed to produce message: %w", err))
		}
	}

	var err error
	for i := 0; i < 3; i++ {
		if err = p.producer.CommitTransaction(ctx); err == nil {
			break
		}
		slog.Warn("[KafkaClient] Failed to commit transaction, retrying...",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))

		if kafkaErr, ok := err.(kafka.Error); ok && kafkaErr.TxnRequiresAbort() {
			return p.abort(ctx, err)
		}
	}
	if err != nil {
		return fmt.Errorf("[KafkaClient] failed to commit transaction after 3 retries: %w", err)
	}

	slog.Info("[KafkaClient] Published batch transactionally",
		slog.String("topic", topic),
		slog.Int("count", len(messages)))
	return nil
}

func (p *Producer) abort(ctx context.Context, cause error) error {
	if err := p.producer.AbortTransaction(ctx); err != nil {
		return fmt.Errorf("%w (abort failed: %v)", cause, err)
	}
	return cause
}

func (p *Producer) Close() {
	slog.Info("[KafkaClient] Shutting down Kafka producer...")
	if remaining := p.producer.Flush(5000); remaining > 0 {
		slog.Warn("[KafkaClient] Not all messages were delivered before shutdown",
			slog.Int("remaining", remaining))
	}
	p.producer.Close()
	slog.Info("[KafkaClient] Kafka producer shut down")
}
