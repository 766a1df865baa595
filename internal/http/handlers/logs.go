package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gsdriver/alexa-logger/internal/alexa"
	"github.com/gsdriver/alexa-logger/internal/ingest"
	"github.com/gsdriver/alexa-logger/internal/pipeline"
	"github.com/gsdriver/alexa-logger/pkg/logging"
)

const maxLogBodyBytes = 1 << 20

// Enqueuer hands a payload body to the ingest queue.
type Enqueuer interface {
	Send(ctx context.Context, body string) error
}

// LogsHandler accepts {event, response} documents over HTTP.
type LogsHandler struct {
	saver  ingest.Saver
	queue  Enqueuer
	save   pipeline.SaveConfig
	logger *logging.Logger
}

// NewLogsHandler saves payloads directly with saver. When queue is non-nil,
// payloads are validated and enqueued instead.
func NewLogsHandler(saver ingest.Saver, queue Enqueuer, save pipeline.SaveConfig, logger *logging.Logger) *LogsHandler {
	if saver == nil && queue == nil {
		panic("handlers: logs handler needs a saver or a queue")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LogsHandler{saver: saver, queue: queue, save: save, logger: logger}
}

// CreateLog handles POST /v1/logs.
func (h *LogsHandler) CreateLog(w http.ResponseWriter, r *http.Request) {
	var payload ingest.Payload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLogBodyBytes)).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	evt, response, err := payload.Decode()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.queue != nil {
		h.enqueue(w, r, evt, payload)
		return
	}

	if _, err := h.saver.SaveLog(r.Context(), evt, response, h.save); err != nil {
		h.writeSaveError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "saved"})
}

func (h *LogsHandler) enqueue(w http.ResponseWriter, r *http.Request, evt *alexa.Event, payload ingest.Payload) {
	if err := alexa.Validate(evt); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	payload, body, err := ingest.EncodePayload(payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.queue.Send(r.Context(), body); err != nil {
		h.logger.Error("failed to enqueue interaction", "error", err, "payload_id", payload.ID)
		writeError(w, http.StatusBadGateway, "failed to enqueue log")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "id": payload.ID})
}

func (h *LogsHandler) writeSaveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, alexa.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case pipeline.IsConfigError(err):
		h.logger.Error("log storage misconfigured", "error", err)
		writeError(w, http.StatusInternalServerError, "log storage is not configured")
	default:
		h.logger.Error("failed to save interaction", "error", err)
		writeError(w, http.StatusBadGateway, "failed to save log")
	}
}

// HealthCheck reports liveness.
func HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
