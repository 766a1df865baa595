package mainconfig

import (
	"context"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"

	appconfig "github.com/gsdriver/alexa-logger/internal/config"
	"github.com/gsdriver/alexa-logger/internal/logstore"
	"github.com/gsdriver/alexa-logger/internal/pipeline"
)

// LoadEnv reads a .env file when present. A missing file is not an error.
func LoadEnv() {
	_ = godotenv.Load()
}

// LoadAWSConfig centralizes AWS SDK initialization so every binary shares the
// same LocalStack/production wiring.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, err
	}
	if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(endpoint)
	}
	return awsCfg, nil
}

// NewS3Client builds an S3 client for region. LocalStack endpoints need
// path-style addressing.
func NewS3Client(awsCfg aws.Config, region string) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if region != "" {
			o.Region = region
		}
		if awsCfg.BaseEndpoint != nil {
			o.UsePathStyle = true
		}
	})
}

// S3ClientFactory returns a pipeline.ClientFactory that caches one client per region.
func S3ClientFactory(awsCfg aws.Config) pipeline.ClientFactory {
	var (
		mu      sync.Mutex
		clients = make(map[string]*s3.Client)
	)
	return func(_ context.Context, region string) (logstore.S3API, error) {
		mu.Lock()
		defer mu.Unlock()
		client, ok := clients[region]
		if !ok {
			client = NewS3Client(awsCfg, region)
			clients[region] = client
		}
		return client, nil
	}
}

// NewDynamoClient builds a DynamoDB client from the shared config.
func NewDynamoClient(awsCfg aws.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(awsCfg)
}

// NewSQSClient builds an SQS client from the shared config.
func NewSQSClient(awsCfg aws.Config) *sqs.Client {
	return sqs.NewFromConfig(awsCfg)
}
