package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"github.com/spacesedan/sentimen/internal/clients/kafka_client"
	"github.com/spacesedan/sentimen/internal/errs"
	"github.com/spacesedan/sentimen/internal/models"
)

type fakeClassifier struct {
	err error
}

func (f fakeClassifier) Classify(_ context.Context, req models.ReviewRequest) (models.ReviewResult, error) {
	if f.err != nil {
		return models.ReviewResult{}, f.err
	}
	if strings.TrimSpace(req.Text) == "" {
		return models.ReviewResult{}, errs.ErrEmptyInput
	}
	label := "NETRAL"
	if strings.Contains(req.Text, "bagus") {
		label = "POSITIF"
	}
	return models.ReviewResult{ReviewID: req.ReviewID, Text: req.Text, Label: label}, nil
}

type fakeSource struct {
	mu   sync.Mutex
	msgs []*kafka.Message
}

func (s *fakeSource) Next() (*kafka.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.msgs) == 0 {
		return nil, nil
	}
	m := s.msgs[0]
	s.msgs = s.msgs[1:]
	return m, nil
}

func (s *fakeSource) remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

type fakeCommitter struct {
	mu        sync.Mutex
	committed []*kafka.Message
}

func (c *fakeCommitter) Commit(msg *kafka.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.committed = append(c.committed, msg)
	return nil
}

func (c *fakeCommitter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.committed)
}

type fakePublisher struct {
	mu        sync.Mutex
	failures  int
	calls     int
	published []kafka_client.Message
	topic     string
}

func (p *fakePublisher) PublishBatch(_ context.Context, topic string, messages []kafka_client.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	p.topic = topic
	p.published = append(p.published, messages...)
	return nil
}

func message(partition int32, offset int64, value string) *kafka.Message {
	topic := kafka_client.KAFKA_TOPIC_REVIEW_REQUESTS
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: partition, Offset: kafka.Offset(offset)},
		Value:          []byte(value),
	}
}

func newTestConsumer(c Classifier, src MessageSource, com Committer, pub Publisher, batch int) *ReviewConsumer {
	rc := NewReviewConsumer(c, src, com, pub, ReviewConsumerOptions{BatchSize: batch, FlushEvery: time.Hour})
	rc.retryDelay = time.Millisecond
	return rc
}

func TestDecodeRequests(t *testing.T) {
	tests := []struct {
		desc    string
		input   string
		want    int
		wantErr bool
	}{
		{"Single object", `{"review_id":"a","text":"bagus"}`, 1, false},
		{"Array", ` [{"review_id":"a","text":"bagus"},{"review_id":"b","text":"jelek"}]`, 2, false},
		{"Empty", "  ", 0, true},
		{"Garbage", "not json", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got, err := decodeRequests([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.want {
				t.Errorf("got %d requests, want %d", len(got), tt.want)
			}
		})
	}
}

func TestHandleAndFlush(t *testing.T) {
	com := &fakeCommitter{}
	pub := &fakePublisher{}
	rc := newTestConsumer(fakeClassifier{}, &fakeSource{}, com, pub, 10)
	ctx := context.Background()

	inputs := []*kafka.Message{
		message(0, 1, `{"review_id":"a","text":"barangnya bagus"}`),
		message(0, 2, `[{"review_id":"b","text":"biasa"},{"review_id":"c","text":"  "}]`),
		message(1, 7, `oops`),
		message(0, 3, `{"review_id":"d","text":"bagus"}`),
	}
	for _, m := range inputs {
		if _, err := rc.Handle(ctx, m); err != nil {
			t.Fatal(err)
		}
	}
	if err := rc.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	if pub.topic != kafka_client.KAFKA_TOPIC_REVIEW_RESULTS {
		t.Errorf("topic = %q", pub.topic)
	}
	if len(pub.published) != 3 {
		t.Fatalf("published %d results, want 3", len(pub.published))
	}
	var first models.ReviewResult
	if err := json.Unmarshal(pub.published[0].Value, &first); err != nil {
		t.Fatal(err)
	}
	if string(pub.published[0].Key) != "a" || first.Label != "POSITIF" {
		t.Errorf("first result = %s %+v", pub.published[0].Key, first)
	}

	offsets := map[int32]kafka.Offset{}
	for _, m := range com.committed {
		offsets[m.TopicPartition.Partition] = m.TopicPartition.Offset
	}
	if len(com.committed) != 2 || offsets[0] != 3 || offsets[1] != 7 {
		t.Errorf("committed = %v", offsets)
	}
	if err := rc.Flush(ctx); err != nil || pub.calls != 1 {
		t.Errorf("empty flush should be a no-op, calls = %d, err = %v", pub.calls, err)
	}
}

func TestFlushRetriesPublish(t *testing.T) {
	tests := []struct {
		desc       string
		failures   int
		wantErr    bool
		wantCommit int
	}{
		{"Recovers", 2, false, 1},
		{"Gives up", 3, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			com := &fakeCommitter{}
			pub := &fakePublisher{failures: tt.failures}
			rc := newTestConsumer(fakeClassifier{}, &fakeSource{}, com, pub, 10)
			if _, err := rc.Handle(context.Background(), message(0, 1, `{"text":"bagus"}`)); err != nil {
				t.Fatal(err)
			}
			err := rc.Flush(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v", err)
			}
			if com.count() != tt.wantCommit {
				t.Errorf("commits = %d, want %d", com.count(), tt.wantCommit)
			}
		})
	}
}

func TestFailedFlushKeepsBatch(t *testing.T) {
	com := &fakeCommitter{}
	pub := &fakePublisher{failures: 3}
	rc := newTestConsumer(fakeClassifier{}, &fakeSource{}, com, pub, 10)
	ctx := context.Background()

	if _, err := rc.Handle(ctx, message(0, 1, `{"review_id":"a","text":"bagus"}`)); err != nil {
		t.Fatal(err)
	}
	if err := rc.Flush(ctx); err == nil {
		t.Fatal("expected the flush to fail")
	}
	if com.count() != 0 {
		t.Fatalf("commits after failed flush = %d, want 0", com.count())
	}
	if rc.buffer.Size() != 1 {
		t.Fatalf("buffer size after failed flush = %d, want 1", rc.buffer.Size())
	}

	if _, err := rc.Handle(ctx, message(0, 2, `{"review_id":"b","text":"biasa"}`)); err != nil {
		t.Fatal(err)
	}
	if err := rc.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	var keys []string
	for _, m := range pub.published {
		keys = append(keys, string(m.Key))
	}
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("published keys = %v, want [a b]", keys)
	}
	if com.count() != 1 || com.committed[0].TopicPartition.Offset != 2 {
		t.Errorf("committed = %v", com.committed)
	}
	if rc.buffer.HasData() {
		t.Error("buffer should be empty after a successful flush")
	}
}

func TestHandleStopsOnSetupError(t *testing.T) {
	setup := errs.Setup(errs.ResourceModel, "artifacts/model_sentiment.json", errors.New("no such file"))
	rc := newTestConsumer(fakeClassifier{err: setup}, &fakeSource{}, &fakeCommitter{}, &fakePublisher{}, 10)

	_, err := rc.Handle(context.Background(), message(0, 1, `{"text":"bagus"}`))
	if !errors.Is(err, setup) {
		t.Fatalf("expected setup error, got %v", err)
	}
	if rc.buffer.HasData() {
		t.Error("a failed message must not be buffered")
	}
}

func TestRunFlushesFullBatches(t *testing.T) {
	src := &fakeSource{msgs: []*kafka.Message{
		message(0, 1, `{"review_id":"a","text":"bagus"}`),
		message(0, 2, `{"review_id":"b","text":"bagus"}`),
		message(0, 3, `{"review_id":"c","text":"biasa"}`),
	}}
	com := &fakeCommitter{}
	pub := &fakePublisher{}
	healthy := &atomic.Bool{}
	rc := NewReviewConsumer(fakeClassifier{}, src, com, pub, ReviewConsumerOptions{
		BatchSize:  2,
		FlushEvery: time.Hour,
		Healthy:    healthy,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rc.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for (com.count() < 1 || src.remaining() > 0) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !healthy.Load() {
		t.Error("consumer should report healthy while running")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	if healthy.Load() {
		t.Error("consumer should report unhealthy after stopping")
	}
	// The third message is published by the final flush.
	if len(pub.published) != 3 {
		t.Errorf("published %d results, want 3", len(pub.published))
	}
	if com.count() != 2 {
		t.Errorf("commits = %d, want 2", com.count())
	}
}
