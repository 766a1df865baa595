package bootstrap

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsdriver/alexa-logger/internal/checkpoint"
	appconfig "github.com/gsdriver/alexa-logger/internal/config"
	"github.com/gsdriver/alexa-logger/internal/logstore"
)

func TestBuildRedisClient(t *testing.T) {
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, nil, true))

	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, nil, true)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })

	mr.Close()
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, nil, true))
}

func TestBuildCheckpointStore(t *testing.T) {
	ctx := context.Background()
	awsCfg := aws.Config{Region: "us-east-1"}

	store, err := BuildCheckpointStore(ctx, &appconfig.Config{CheckpointBackend: "none"}, awsCfg, nil)
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = BuildCheckpointStore(ctx, &appconfig.Config{CheckpointBackend: "dynamodb", CheckpointTable: "checkpoints"}, awsCfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &checkpoint.DynamoStore{}, store)

	mr := miniredis.RunT(t)
	store, err = BuildCheckpointStore(ctx, &appconfig.Config{CheckpointBackend: "Redis", RedisAddr: mr.Addr()}, awsCfg, nil)
	require.NoError(t, err)
	require.IsType(t, &checkpoint.RedisStore{}, store)
	require.NoError(t, store.Save(ctx, "report", 42))
	last, err := store.Load(ctx, "report")
	require.NoError(t, err)
	assert.Equal(t, int64(42), last)

	_, err = BuildCheckpointStore(ctx, &appconfig.Config{CheckpointBackend: "etcd"}, awsCfg, nil)
	assert.Error(t, err)
}

func TestSaveAndProcessConfig(t *testing.T) {
	cfg := &appconfig.Config{
		AWSRegion:    "eu-west-1",
		LogBucket:    "logs",
		LogKeyPrefix: "skill/",
		LogFullLog:   true,
		LogSlotMode:  "encoded",
	}

	save := SaveConfig(cfg)
	assert.Equal(t, "logs", save.Bucket)
	assert.Equal(t, "eu-west-1", save.Region)
	assert.True(t, save.FullLog)
	assert.Equal(t, logstore.SlotModeEncoded, save.SlotMode)

	proc := ProcessConfig(cfg)
	require.NotNil(t, proc.S3)
	assert.Equal(t, "skill/", proc.S3.KeyPrefix)
	assert.Empty(t, proc.Directory)

	cfg.LogDirectory = "/var/log/alexa"
	proc = ProcessConfig(cfg)
	assert.Nil(t, proc.S3)
	assert.Equal(t, "/var/log/alexa", proc.Directory)
}

func TestBuildPipeline(t *testing.T) {
	cfg := &appconfig.Config{FetchConcurrency: 4, ReportTimezone: "UTC"}
	assert.NotNil(t, BuildPipeline(cfg, aws.Config{Region: "us-east-1"}, prometheus.NewRegistry(), nil))
	assert.NotNil(t, BuildPipeline(cfg, aws.Config{Region: "us-east-1"}, nil, nil))
}
