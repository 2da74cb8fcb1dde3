package clients

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

var (
	awsCfg  aws.Config
	awsErr  error
	awsOnce sync.Once
)

// GetAWSConfig loads the default AWS configuration once per process. Region
// and credentials come from the usual AWS_* variables and shared files.
func GetAWSConfig(ctx context.Context) (aws.Config, error) {
	awsOnce.Do(func() {
		slog.Info("[AWSClient] Initializing AWS Config...")
		awsCfg, awsErr = config.LoadDefaultConfig(ctx)
		if awsErr != nil {
			slog.Error("[AWSClient] Failed to load AWS config",
				slog.String("error", awsErr.Error()))
			awsErr = fmt.Errorf("[AWSClient] failed to load AWS config: %w", awsErr)
			return
		}
		slog.Info("[AWSClient] AWS Config Initialized",
			slog.String("region", awsCfg.Region))
	})
	return awsCfg, awsErr
}

// GetDynamoDBClient builds a DynamoDB client. A non-empty endpoint points it
// at DynamoDB Local or another compatible service.
func GetDynamoDBClient(ctx context.Context, endpoint string) (*dynamodb.Client, error) {
	cfg, err := GetAWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}
