package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gsdriver/alexa-logger/internal/alexa"
)

// ErrMissingEvent is returned when a payload carries no event.
var ErrMissingEvent = errors.New("ingest: missing event")

// Payload is the {event, response} document accepted by every ingestion surface.
type Payload struct {
	ID       string          `json:"id,omitempty"`
	Event    json.RawMessage `json:"event"`
	Response json.RawMessage `json:"response,omitempty"`
}

// Decode parses the event and returns the response as a value ready to store.
// An absent or null response yields a nil response.
func (p Payload) Decode() (*alexa.Event, any, error) {
	if len(p.Event) == 0 || bytes.Equal(bytes.TrimSpace(p.Event), []byte("null")) {
		return nil, nil, ErrMissingEvent
	}
	evt, err := alexa.ParseEvent(p.Event)
	if err != nil {
		return nil, nil, fmt.Errorf("ingest: decode event: %w", err)
	}

	var response any
	if trimmed := bytes.TrimSpace(p.Response); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		response = json.RawMessage(trimmed)
	}
	return evt, response, nil
}

// EncodePayload assigns an id if needed and returns the message body.
func EncodePayload(p Payload) (Payload, string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	body, err := json.Marshal(p)
	if err != nil {
		return Payload{}, "", fmt.Errorf("ingest: encode payload: %w", err)
	}
	return p, string(body), nil
}
