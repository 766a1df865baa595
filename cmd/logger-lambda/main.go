package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/gsdriver/alexa-logger/cmd/mainconfig"
	"github.com/gsdriver/alexa-logger/internal/alexa"
	"github.com/gsdriver/alexa-logger/internal/app/bootstrap"
	appconfig "github.com/gsdriver/alexa-logger/internal/config"
	"github.com/gsdriver/alexa-logger/internal/ingest"
	"github.com/gsdriver/alexa-logger/internal/pipeline"
	"github.com/gsdriver/alexa-logger/pkg/logging"
)

type handler struct {
	saver  ingest.Saver
	save   pipeline.SaveConfig
	logger *logging.Logger
}

func main() {
	cfg := appconfig.Load()
	logger := logging.NewWithWriter(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	awsCfg, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	h := &handler{
		saver:  bootstrap.BuildPipeline(cfg, awsCfg, nil, logger),
		save:   bootstrap.SaveConfig(cfg),
		logger: logger,
	}
	lambda.Start(h.invoke)
}

// invoke accepts a direct {event, response} payload, an SQS batch of them,
// or an API Gateway HTTP request carrying one.
func (h *handler) invoke(ctx context.Context, raw json.RawMessage) (any, error) {
	var probe struct {
		Records        []json.RawMessage `json:"Records"`
		RequestContext json.RawMessage   `json:"requestContext"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}

	switch {
	case len(probe.Records) > 0:
		var evt events.SQSEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			return nil, err
		}
		return h.handleSQS(ctx, evt), nil
	case len(probe.RequestContext) > 0:
		var req events.APIGatewayV2HTTPRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, err
		}
		return h.handleHTTP(ctx, req), nil
	default:
		var payload ingest.Payload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, err
		}
		return map[string]string{"status": "saved"}, h.savePayload(ctx, payload)
	}
}

func (h *handler) savePayload(ctx context.Context, payload ingest.Payload) error {
	evt, response, err := payload.Decode()
	if err != nil {
		return err
	}
	_, err = h.saver.SaveLog(ctx, evt, response, h.save)
	return err
}

// handleSQS reports only retryable failures back to the queue.
func (h *handler) handleSQS(ctx context.Context, evt events.SQSEvent) events.SQSEventResponse {
	var resp events.SQSEventResponse
	for _, msg := range evt.Records {
		var payload ingest.Payload
		if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
			h.logger.Error("dropping undecodable message", "error", err, "msg_id", msg.MessageId)
			continue
		}
		err := h.savePayload(ctx, payload)
		switch {
		case err == nil:
		case errors.Is(err, alexa.ErrValidation), errors.Is(err, ingest.ErrMissingEvent):
			h.logger.Warn("dropping invalid interaction", "error", err, "msg_id", msg.MessageId)
		default:
			h.logger.Error("failed to save interaction", "error", err, "msg_id", msg.MessageId)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: msg.MessageId})
		}
	}
	return resp
}

func (h *handler) handleHTTP(ctx context.Context, req events.APIGatewayV2HTTPRequest) events.APIGatewayV2HTTPResponse {
	method := strings.ToUpper(strings.TrimSpace(req.RequestContext.HTTP.Method))
	path := strings.TrimSpace(req.RawPath)
	if path == "" {
		path = strings.TrimSpace(req.RequestContext.HTTP.Path)
	}

	if path == "/health" {
		return jsonResponse(http.StatusOK, map[string]string{"status": "ok"})
	}
	if path != "/v1/logs" {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusNotFound}
	}
	if method != http.MethodPost {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusMethodNotAllowed}
	}

	body, err := decodeBody(req)
	if err != nil {
		return jsonResponse(http.StatusBadRequest, map[string]string{"error": "invalid body"})
	}
	var payload ingest.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return jsonResponse(http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
	}

	err = h.savePayload(ctx, payload)
	switch {
	case err == nil:
		return jsonResponse(http.StatusCreated, map[string]string{"status": "saved"})
	case errors.Is(err, alexa.ErrValidation):
		return jsonResponse(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, ingest.ErrMissingEvent):
		return jsonResponse(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case pipeline.IsConfigError(err):
		h.logger.Error("log storage misconfigured", "error", err)
		return jsonResponse(http.StatusInternalServerError, map[string]string{"error": "log storage is not configured"})
	default:
		h.logger.Error("failed to save interaction", "error", err)
		return jsonResponse(http.StatusBadGateway, map[string]string{"error": "failed to save log"})
	}
}

func decodeBody(req events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if !req.IsBase64Encoded {
		return []byte(req.Body), nil
	}
	return base64.StdEncoding.DecodeString(req.Body)
}

func jsonResponse(status int, payload any) events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(payload)
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Body:       string(body),
		Headers:    map[string]string{"content-type": "application/json"},
	}
}
