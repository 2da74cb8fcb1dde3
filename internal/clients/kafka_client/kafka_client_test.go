package kafka_client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

type scriptedReader struct {
	errs  []error
	msg   *kafka.Message
	calls int
}

func (r *scriptedReader) ReadMessage(time.Duration) (*kafka.Message, error) {
	r.calls++
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return nil, err
	}
	return r.msg, nil
}

func TestIteratorNext(t *testing.T) {
	transient := errors.New("transient")
	msg := &kafka.Message{Value: []byte("x")}

	tests := []struct {
		desc      string
		errs      []error
		wantMsg   bool
		wantErr   bool
		wantCalls int
	}{
		{"Message", nil, true, false, 1},
		{"Poll timeout", []error{kafka.NewError(kafka.ErrTimedOut, "timed out", false)}, false, false, 1},
		{"Brokers down", []error{kafka.NewError(kafka.ErrAllBrokersDown, "down", false)}, false, true, 1},
		{"Retries transient errors", []error{transient, transient}, true, false, 3},
		{"Gives up", []error{transient, transient, transient, transient, transient}, false, true, MAX_RETRIES},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			r := &scriptedReader{errs: tt.errs, msg: msg}
			it := NewKafkaMessageIterator(context.Background(), r)
			it.retryDelay = time.Millisecond

			got, err := it.Next()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if (got != nil) != tt.wantMsg {
				t.Errorf("message = %v, want message %v", got, tt.wantMsg)
			}
			if r.calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", r.calls, tt.wantCalls)
			}
		})
	}
}

func TestIteratorStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &scriptedReader{}
	if _, err := NewKafkaMessageIterator(ctx, r).Next(); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if r.calls != 0 {
		t.Errorf("reader called %d times after cancel", r.calls)
	}

	if _, err := NewKafkaMessageIterator(context.Background(), nil).Next(); err == nil {
		t.Error("expected an error for a missing consumer")
	}
}

type scriptedCommitter struct {
	errs  []error
	calls int
}

func (c *scriptedCommitter) CommitMessage(*kafka.Message) ([]kafka.TopicPartition, error) {
	c.calls++
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		return nil, err
	}
	return nil, nil
}

func TestCommit(t *testing.T) {
	transient := errors.New("coordinator loading")
	tests := []struct {
		desc      string
		errs      []error
		wantErr   bool
		wantCalls int
	}{
		{"First try", nil, false, 1},
		{"After retries", []error{transient, transient}, false, 3},
		{"Brokers down", []error{kafka.NewError(kafka.ErrAllBrokersDown, "down", false)}, true, 1},
		{"Exhausted", []error{transient, transient, transient, transient, transient}, true, MAX_RETRIES},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			c := &scriptedCommitter{errs: tt.errs}
			ch := NewCommitHandler(context.Background(), c)
			ch.retryDelay = time.Millisecond

			topic := KAFKA_TOPIC_REVIEW_REQUESTS
			err := ch.Commit(&kafka.Message{TopicPartition: kafka.TopicPartition{Topic: &topic, Offset: 4}})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if c.calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", c.calls, tt.wantCalls)
			}
		})
	}
}

func TestStartConsumerUnknownTopic(t *testing.T) {
	err := StartConsumer(context.Background(), KafkaConfig{Topic: "no-such-topic"})
	if err == nil {
		t.Fatal("expected an error for an unregistered topic")
	}
}
