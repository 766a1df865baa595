package record

import "github.com/gsdriver/alexa-logger/internal/alexa"

// SlotKind tags which slot representation a record carries.
type SlotKind int

const (
	SlotsAbsent SlotKind = iota
	SlotsRaw
	SlotsEncoded
)

// Slots is the slot data of a fetched record: absent, the raw slot map, or the
// text produced by alexa.EncodeSlots.
type Slots struct {
	Kind SlotKind
	Raw  alexa.Slots
	Text string
}

// RawSlots wraps a slot map.
func RawSlots(s alexa.Slots) Slots { return Slots{Kind: SlotsRaw, Raw: s} }

// EncodedSlots wraps pre-encoded slot text.
func EncodedSlots(text string) Slots { return Slots{Kind: SlotsEncoded, Text: text} }

// Present reports whether the record carries slot data of any kind.
func (s Slots) Present() bool { return s.Kind != SlotsAbsent }

// String renders the slot data for a report: raw maps as their JSON object,
// encoded slots as-is, absent slots as "".
func (s Slots) String() string {
	switch s.Kind {
	case SlotsRaw:
		data, err := s.Raw.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(data)
	case SlotsEncoded:
		return s.Text
	default:
		return ""
	}
}
