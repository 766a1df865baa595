package record

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/gsdriver/alexa-logger/internal/alexa"
)

// KeySuffix is appended to the epoch-millis timestamp of every stored record.
const KeySuffix = ".txt"

// Stored is the document persisted for one interaction. The event is either the
// full Alexa request or a Redacted projection; both decode into alexa.Event.
type Stored struct {
	Event    json.RawMessage `json:"event"`
	Response json.RawMessage `json:"response,omitempty"`
}

// Redacted is the projection written when full logging is off.
type Redacted struct {
	Session redactedSession `json:"session"`
	Request redactedRequest `json:"request"`
}

type redactedSession struct {
	User      redactedUser `json:"user"`
	SessionID string       `json:"sessionId"`
}

type redactedUser struct {
	UserID string `json:"userId"`
}

type redactedRequest struct {
	Type   string          `json:"type"`
	Intent *redactedIntent `json:"intent,omitempty"`
}

type redactedIntent struct {
	Name string `json:"name,omitempty"`
	// Slots is nil when the intent had no slots. An empty map is kept as {}.
	Slots *alexa.Slots `json:"slots,omitempty"`
	// SlotText is set instead of Slots when slots are encoded. An empty but
	// present value means the slots were processed and none had a value.
	SlotText *string `json:"slotText,omitempty"`
}

// Redact projects evt down to user, session, request type and intent essentials.
// When encodeSlots is true the slots are flattened with alexa.EncodeSlots.
func Redact(evt *alexa.Event, encodeSlots bool) Redacted {
	r := Redacted{
		Session: redactedSession{
			User:      redactedUser{UserID: evt.UserID()},
			SessionID: evt.SessionID(),
		},
		Request: redactedRequest{Type: evt.RequestType()},
	}

	intent := evt.Intent()
	if intent == nil {
		return r
	}
	r.Request.Intent = &redactedIntent{Name: intent.Name}
	if encodeSlots {
		text := alexa.EncodeSlots(intent.Slots)
		r.Request.Intent.SlotText = &text
	} else if intent.Slots != nil {
		slots := intent.Slots
		r.Request.Intent.Slots = &slots
	}
	return r
}

// Fetched is a stored record together with the key it was read from and the
// timestamp parsed from that key.
type Fetched struct {
	Key       string
	Timestamp int64
	Event     *alexa.Event
	Response  json.RawMessage
	Slots     Slots
}

// Decode parses a stored document read from key.
func Decode(key string, timestamp int64, data []byte) (*Fetched, error) {
	var stored Stored
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("record: decode %s: %w", key, err)
	}

	var evt alexa.Event
	if len(stored.Event) > 0 && !bytes.Equal(stored.Event, []byte("null")) {
		if err := json.Unmarshal(stored.Event, &evt); err != nil {
			return nil, fmt.Errorf("record: decode event %s: %w", key, err)
		}
	}

	slots, err := slotsOf(stored.Event, evt.Intent())
	if err != nil {
		return nil, fmt.Errorf("record: decode slots %s: %w", key, err)
	}

	return &Fetched{
		Key:       key,
		Timestamp: timestamp,
		Event:     &evt,
		Response:  stored.Response,
		Slots:     slots,
	}, nil
}

// slotsOf picks the slot representation a writer left in the event document.
func slotsOf(rawEvent json.RawMessage, intent *alexa.Intent) (Slots, error) {
	if intent == nil {
		return Slots{}, nil
	}
	if intent.Slots != nil {
		return RawSlots(intent.Slots), nil
	}

	var probe struct {
		Request struct {
			Intent struct {
				SlotText *string `json:"slotText"`
			} `json:"intent"`
		} `json:"request"`
	}
	if err := json.Unmarshal(rawEvent, &probe); err != nil {
		return Slots{}, err
	}
	if text := probe.Request.Intent.SlotText; text != nil {
		return EncodedSlots(*text), nil
	}
	return Slots{}, nil
}
