package kafka_client

import "os"

type KafkaConfig struct {
	Broker          string
	GroupID         string
	Topic           string
	ResultsTopic    string
	TransactionalID string
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func GetKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Broker:          getEnv("KAFKA_BROKER", "localhost:29092"),
		GroupID:         getEnv("KAFKA_CONSUMER_GROUP_ID", "sentimen-review-group"),
		Topic:           getEnv("KAFKA_CONSUMER_TOPIC", KAFKA_TOPIC_REVIEW_REQUESTS),
		ResultsTopic:    getEnv("KAFKA_RESULTS_TOPIC", KAFKA_TOPIC_REVIEW_RESULTS),
		TransactionalID: getEnv("KAFKA_TRANSACTIONAL_ID", "sentimen-producer-1"),
	}
}
