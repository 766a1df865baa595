package alexa

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// NamedSlot is one entry of an intent's slot map. Raw keeps the entry as received,
// including fields such as resolutions that Slot does not model.
type NamedSlot struct {
	Key  string
	Slot Slot
	Raw  json.RawMessage
}

// Slots is an intent's slot map in document order.
type Slots []NamedSlot

// UnmarshalJSON decodes a JSON object keeping key order.
func (s *Slots) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("alexa: decode slots: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("alexa: decode slots: expected object")
	}

	out := Slots{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("alexa: decode slots: %w", err)
		}
		key, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("alexa: decode slot %q: %w", key, err)
		}
		var slot Slot
		if err := json.Unmarshal(raw, &slot); err != nil {
			return fmt.Errorf("alexa: decode slot %q: %w", key, err)
		}
		out = append(out, NamedSlot{Key: key, Slot: slot, Raw: raw})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("alexa: decode slots: %w", err)
	}

	*s = out
	return nil
}

// MarshalJSON writes the slots as a JSON object in document order.
func (s Slots) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(entry.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		value := entry.Raw
		if len(value) == 0 {
			if value, err = json.Marshal(entry.Slot); err != nil {
				return nil, err
			}
		}
		if err := json.Compact(&buf, value); err != nil {
			return nil, fmt.Errorf("alexa: encode slot %q: %w", entry.Key, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// EncodeSlots flattens slots into "name:value" pairs joined by commas, skipping
// slots without a value.
func EncodeSlots(slots Slots) string {
	parts := make([]string, 0, len(slots))
	for _, entry := range slots {
		if entry.Slot.Value == nil {
			continue
		}
		parts = append(parts, entry.Slot.Name+":"+*entry.Slot.Value)
	}
	return strings.Join(parts, ",")
}
