package kafka_client

import "time"

const (
	KAFKA_TOPIC_REVIEW_REQUESTS = "review-requests" // reviews waiting to be classified
	KAFKA_TOPIC_REVIEW_RESULTS  = "review-results"  // classified reviews
)

const (
	MAX_RETRIES  = 5
	RETRY_DELAY  = 2 * time.Second
	POLL_TIMEOUT = 250 * time.Millisecond
)
