package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsdriver/alexa-logger/internal/alexa"
	"github.com/gsdriver/alexa-logger/internal/ingest"
	"github.com/gsdriver/alexa-logger/internal/logstore"
	"github.com/gsdriver/alexa-logger/internal/pipeline"
)

const launchEvent = `{"session":{"sessionId":"s1","user":{"userId":"u1"}},"request":{"type":"LaunchRequest"}}`

type stubSaver struct {
	err      error
	evt      *alexa.Event
	response any
}

func (s *stubSaver) SaveLog(_ context.Context, evt *alexa.Event, response any, _ pipeline.SaveConfig) (*s3.PutObjectOutput, error) {
	s.evt, s.response = evt, response
	if s.err != nil {
		return nil, s.err
	}
	return &s3.PutObjectOutput{}, nil
}

type stubQueue struct {
	bodies []string
	err    error
}

func (q *stubQueue) Send(_ context.Context, body string) error {
	q.bodies = append(q.bodies, body)
	return q.err
}

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/logs", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func TestCreateLogSaves(t *testing.T) {
	saver := &stubSaver{}
	h := NewLogsHandler(saver, nil, pipeline.SaveConfig{Bucket: "logs"}, nil)

	rr := post(h.CreateLog, `{"event":`+launchEvent+`,"response":{"outputSpeech":"hi"}}`)

	assert.Equal(t, http.StatusCreated, rr.Code)
	require.NotNil(t, saver.evt)
	assert.Equal(t, "u1", saver.evt.UserID())
	assert.Equal(t, json.RawMessage(`{"outputSpeech":"hi"}`), saver.response)
}

func TestCreateLogErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		body   string
		status int
	}{
		{name: "bad json", body: `{`, status: http.StatusBadRequest},
		{name: "missing event", body: `{"response":"x"}`, status: http.StatusBadRequest},
		{name: "invalid interaction", err: alexa.ErrMissingUser, body: `{"event":` + launchEvent + `}`, status: http.StatusUnprocessableEntity},
		{name: "missing bucket", err: logstore.ErrMissingBucket, body: `{"event":` + launchEvent + `}`, status: http.StatusInternalServerError},
		{name: "storage failure", err: errors.New("s3 down"), body: `{"event":` + launchEvent + `}`, status: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewLogsHandler(&stubSaver{err: tt.err}, nil, pipeline.SaveConfig{}, nil)
			rr := post(h.CreateLog, tt.body)
			assert.Equal(t, tt.status, rr.Code)

			var resp map[string]string
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestCreateLogEnqueues(t *testing.T) {
	queue := &stubQueue{}
	h := NewLogsHandler(nil, queue, pipeline.SaveConfig{}, nil)

	rr := post(h.CreateLog, `{"event":`+launchEvent+`,"response":"hi"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "queued", resp["status"])
	require.Len(t, queue.bodies, 1)

	var payload ingest.Payload
	require.NoError(t, json.Unmarshal([]byte(queue.bodies[0]), &payload))
	assert.Equal(t, resp["id"], payload.ID)
	assert.JSONEq(t, `"hi"`, string(payload.Response))
}

func TestCreateLogEnqueueValidates(t *testing.T) {
	queue := &stubQueue{}
	h := NewLogsHandler(nil, queue, pipeline.SaveConfig{}, nil)

	rr := post(h.CreateLog, `{"event":{"session":{"sessionId":"s"}}}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Empty(t, queue.bodies)

	queue.err = errors.New("sqs down")
	rr = post(h.CreateLog, `{"event":`+launchEvent+`}`)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestHealthCheck(t *testing.T) {
	rr := httptest.NewRecorder()
	HealthCheck(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}
