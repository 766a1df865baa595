package alexa

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RequestTypeIntent is the request type carrying an intent name and slots.
const RequestTypeIntent = "IntentRequest"

// Event is the subset of an Alexa request envelope the logger understands.
// Unknown fields are kept in Raw so a full log can be written back verbatim.
type Event struct {
	Session *Session `json:"session,omitempty"`
	Request *Request `json:"request,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// Session identifies the user and the session an event belongs to.
type Session struct {
	SessionID string `json:"sessionId,omitempty"`
	User      *User  `json:"user,omitempty"`
}

// User carries the skill-scoped user id.
type User struct {
	UserID string `json:"userId,omitempty"`
}

// Request describes what the user asked for.
type Request struct {
	Type   string  `json:"type,omitempty"`
	Intent *Intent `json:"intent,omitempty"`
}

// Intent is present on IntentRequest events.
type Intent struct {
	Name  string `json:"name,omitempty"`
	Slots Slots  `json:"slots,omitempty"`
}

// Slot is a single named slot value. Value is nil when the user did not fill it.
type Slot struct {
	Name  string  `json:"name"`
	Value *string `json:"value,omitempty"`
}

// ParseEvent decodes an Alexa request envelope, keeping the original bytes.
func ParseEvent(data []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, err
	}
	return &evt, nil
}

// UnmarshalJSON decodes the known fields and remembers the raw document.
func (e *Event) UnmarshalJSON(data []byte) error {
	type plain Event
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("alexa: decode event: %w", err)
	}
	*e = Event(p)
	e.Raw = append(json.RawMessage(nil), bytes.TrimSpace(data)...)
	return nil
}

// MarshalJSON writes the raw document when one was decoded, otherwise the known fields.
func (e Event) MarshalJSON() ([]byte, error) {
	if len(e.Raw) > 0 {
		return e.Raw, nil
	}
	type plain Event
	return json.Marshal(plain(e))
}

// UserID returns the session user id or "".
func (e *Event) UserID() string {
	if e == nil || e.Session == nil || e.Session.User == nil {
		return ""
	}
	return e.Session.User.UserID
}

// SessionID returns the session id or "".
func (e *Event) SessionID() string {
	if e == nil || e.Session == nil {
		return ""
	}
	return e.Session.SessionID
}

// RequestType returns the request type or "".
func (e *Event) RequestType() string {
	if e == nil || e.Request == nil {
		return ""
	}
	return e.Request.Type
}

// Intent returns the request intent, if any.
func (e *Event) Intent() *Intent {
	if e == nil || e.Request == nil {
		return nil
	}
	return e.Request.Intent
}
