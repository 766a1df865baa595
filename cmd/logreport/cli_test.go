package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsdriver/alexa-logger/internal/logstore"
	"github.com/gsdriver/alexa-logger/internal/pipeline"
	"github.com/gsdriver/alexa-logger/pkg/logging"
)

const doc = `{"event":{"session":{"sessionId":"s1","user":{"userId":"u1"}},"request":{"type":"IntentRequest","intent":{"name":"HelloIntent"}}},"response":"Hi there"}`

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"LOG_DIRECTORY", "LOG_BUCKET", "LOG_KEY_PREFIX", "LOG_FULL", "LOG_SLOT_MODE", "AWS_REGION", "REPORT_OUTPUT", "REPORT_TIMEZONE", "FETCH_CONCURRENCY"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func memoryPipeline(client *logstore.MemoryClient, regions *[]string) pipelineFactory {
	return func(_ context.Context, logger *logging.Logger, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
		return pipeline.New(func(_ context.Context, region string) (logstore.S3API, error) {
			*regions = append(*regions, region)
			return client, nil
		}, logger, opts...), nil
	}
}

func TestProcessDirectory(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	for _, ts := range []string{"100", "200", "300"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, ts+".txt"), []byte(doc), 0o644))
	}
	output := filepath.Join(t.TempDir(), "out.csv")

	var stdout bytes.Buffer
	var regions []string
	app := newApp(&stdout, &bytes.Buffer{}, strings.NewReader(""), memoryPipeline(logstore.NewMemoryClient(), &regions))
	err := app.Run(context.Background(), []string{"logreport", "process", "--dir", dir, "--start", "100", "--output", output, "--timezone", "UTC"})
	require.NoError(t, err)

	var summary pipeline.Summary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	assert.Equal(t, 2, summary.Records)
	assert.Equal(t, 1, summary.Filtered)
	require.NotNil(t, summary.Last)
	assert.Equal(t, int64(300), *summary.Last)
	assert.Empty(t, regions)

	report, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(report), `"HelloIntent"`)
	assert.Contains(t, string(report), `"Hi there"`)
}

func TestProcessRejectsBadPolicy(t *testing.T) {
	clearEnv(t)
	var regions []string
	app := newApp(&bytes.Buffer{}, &bytes.Buffer{}, strings.NewReader(""), memoryPipeline(logstore.NewMemoryClient(), &regions))
	err := app.Run(context.Background(), []string{"logreport", "process", "--dir", t.TempDir(), "--on-error", "retry"})
	assert.Error(t, err)
}

func TestSaveThenProcessBucket(t *testing.T) {
	clearEnv(t)
	client := logstore.NewMemoryClient()
	var regions []string
	build := memoryPipeline(client, &regions)

	app := newApp(&bytes.Buffer{}, &bytes.Buffer{}, strings.NewReader(doc), build)
	require.NoError(t, app.Run(context.Background(), []string{"logreport", "save", "--bucket", "logs", "--prefix", "skill/", "--region", "eu-west-1"}))
	require.Len(t, client.PutKeys(), 1)
	assert.True(t, strings.HasPrefix(client.PutKeys()[0], "skill/"))

	output := filepath.Join(t.TempDir(), "out.csv")
	var stdout bytes.Buffer
	app = newApp(&stdout, &bytes.Buffer{}, strings.NewReader(""), build)
	require.NoError(t, app.Run(context.Background(), []string{"logreport", "process", "--bucket", "logs", "--prefix", "skill/", "--output", output}))

	var summary pipeline.Summary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	assert.Equal(t, 1, summary.Records)
	assert.Equal(t, []string{"eu-west-1", pipeline.DefaultRegion}, regions)
}

func TestSaveRequiresBucket(t *testing.T) {
	clearEnv(t)
	var regions []string
	app := newApp(&bytes.Buffer{}, &bytes.Buffer{}, strings.NewReader(doc), memoryPipeline(logstore.NewMemoryClient(), &regions))
	err := app.Run(context.Background(), []string{"logreport", "save"})
	assert.ErrorIs(t, err, logstore.ErrMissingBucket)
}

func TestRunReportsFailures(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no source", []string{"logreport", "process", "--output", "x.csv"}, "unsupported file access option"},
		{"no bucket", []string{"logreport", "save"}, "bucket"},
		{"bad policy", []string{"logreport", "process", "--dir", "/tmp", "--on-error", "retry"}, "retry"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			var stdout, stderr bytes.Buffer
			var regions []string
			err := run(context.Background(), tt.args, &stdout, &stderr, strings.NewReader(doc), memoryPipeline(logstore.NewMemoryClient(), &regions))
			require.Error(t, err)
			assert.Contains(t, stderr.String(), "failed to run app")
			assert.Contains(t, stderr.String(), tt.want)
			assert.Empty(t, stdout.String())
		})
	}
}
