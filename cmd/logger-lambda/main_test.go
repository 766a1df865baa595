package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsdriver/alexa-logger/internal/alexa"
	"github.com/gsdriver/alexa-logger/internal/logstore"
	"github.com/gsdriver/alexa-logger/internal/pipeline"
	"github.com/gsdriver/alexa-logger/pkg/logging"
)

const payload = `{"event":{"session":{"sessionId":"s1","user":{"userId":"u1"}},"request":{"type":"LaunchRequest"}},"response":"Welcome"}`

func newHandler(t *testing.T) (*handler, *logstore.MemoryClient) {
	t.Helper()
	client := logstore.NewMemoryClient()
	p := pipeline.New(func(context.Context, string) (logstore.S3API, error) {
		return client, nil
	}, nil)
	return &handler{saver: p, save: pipeline.SaveConfig{Bucket: "logs"}, logger: logging.New("error")}, client
}

func httpRequest(method, path, body string) events.APIGatewayV2HTTPRequest {
	return events.APIGatewayV2HTTPRequest{
		RawPath: path,
		Body:    body,
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{Method: method, Path: path},
		},
	}
}

func TestInvokeDirectPayload(t *testing.T) {
	h, client := newHandler(t)

	out, err := h.invoke(context.Background(), json.RawMessage(payload))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"status": "saved"}, out)
	assert.Len(t, client.PutKeys(), 1)

	_, err = h.invoke(context.Background(), json.RawMessage(`{"event":{"request":{"type":"LaunchRequest"}}}`))
	assert.ErrorIs(t, err, alexa.ErrMissingSession)
}

func TestInvokeSQSBatch(t *testing.T) {
	h, client := newHandler(t)

	evt := events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "ok", Body: payload},
		{MessageId: "invalid", Body: `{"event":{"session":{}}}`},
		{MessageId: "garbage", Body: `{`},
	}}
	raw, err := json.Marshal(evt)
	require.NoError(t, err)

	out, err := h.invoke(context.Background(), raw)
	require.NoError(t, err)
	resp, ok := out.(events.SQSEventResponse)
	require.True(t, ok)
	assert.Empty(t, resp.BatchItemFailures)
	assert.Len(t, client.PutKeys(), 1)
}

func TestHandleSQSReportsStorageFailures(t *testing.T) {
	h := &handler{
		saver:  pipeline.New(func(context.Context, string) (logstore.S3API, error) { return nil, errors.New("no creds") }, nil),
		save:   pipeline.SaveConfig{Bucket: "logs"},
		logger: logging.New("error"),
	}

	resp := h.handleSQS(context.Background(), events.SQSEvent{Records: []events.SQSMessage{{MessageId: "m1", Body: payload}}})
	assert.Equal(t, []events.SQSBatchItemFailure{{ItemIdentifier: "m1"}}, resp.BatchItemFailures)
}

func TestHandleHTTP(t *testing.T) {
	h, client := newHandler(t)
	ctx := context.Background()

	resp := h.handleHTTP(ctx, httpRequest(http.MethodGet, "/health", ""))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.handleHTTP(ctx, httpRequest(http.MethodGet, "/v1/logs", ""))
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp = h.handleHTTP(ctx, httpRequest(http.MethodPost, "/other", payload))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = h.handleHTTP(ctx, httpRequest(http.MethodPost, "/v1/logs", `{"event":{"session":{"sessionId":"s"}}}`))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	req := httpRequest(http.MethodPost, "/v1/logs", base64.StdEncoding.EncodeToString([]byte(payload)))
	req.IsBase64Encoded = true
	resp = h.handleHTTP(ctx, req)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Len(t, client.PutKeys(), 1)
}

func TestHandleHTTPMissingBucket(t *testing.T) {
	h, _ := newHandler(t)
	h.save.Bucket = ""

	resp := h.handleHTTP(context.Background(), httpRequest(http.MethodPost, "/v1/logs", payload))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
