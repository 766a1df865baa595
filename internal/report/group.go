package report

import (
	"bytes"
	"cmp"
	"encoding/json"
	"slices"

	"github.com/gsdriver/alexa-logger/internal/alexa"
	"github.com/gsdriver/alexa-logger/internal/record"
)

// NoResponse stands in for a record that has no response.
const NoResponse = "NO RESPONSE"

// Utterance is one interaction as it appears in a report.
type Utterance struct {
	Intent    string
	Slots     record.Slots
	Response  string
	Timestamp int64
}

// Session holds a session's utterances.
type Session struct {
	ID         string
	Utterances []Utterance
}

// User holds a user's sessions in the order they were first seen.
type User struct {
	ID       string
	Sessions []*Session

	byID map[string]*Session
}

// Groups is the user → session → utterance hierarchy built from one batch of records.
type Groups struct {
	Users []*User

	byID map[string]*User
}

// NewUtterance derives the report view of a fetched record.
func NewUtterance(rec *record.Fetched) Utterance {
	u := Utterance{
		Intent:    rec.Event.RequestType(),
		Slots:     rec.Slots,
		Response:  responseText(rec.Response),
		Timestamp: rec.Timestamp,
	}
	if u.Intent == alexa.RequestTypeIntent {
		u.Intent = ""
		if intent := rec.Event.Intent(); intent != nil {
			u.Intent = intent.Name
		}
	}
	return u
}

// Group buckets records by user then session. Utterances keep record order
// until Sort is called.
func Group(records []*record.Fetched) *Groups {
	g := &Groups{byID: make(map[string]*User)}
	for _, rec := range records {
		g.add(rec.Event.UserID(), rec.Event.SessionID(), NewUtterance(rec))
	}
	return g
}

func (g *Groups) add(userID, sessionID string, u Utterance) {
	user, ok := g.byID[userID]
	if !ok {
		user = &User{ID: userID, byID: make(map[string]*Session)}
		g.byID[userID] = user
		g.Users = append(g.Users, user)
	}
	session, ok := user.byID[sessionID]
	if !ok {
		session = &Session{ID: sessionID}
		user.byID[sessionID] = session
		user.Sessions = append(user.Sessions, session)
	}
	session.Utterances = append(session.Utterances, u)
}

// Sort orders every session's utterances by ascending timestamp. Ties keep
// their record order.
func (g *Groups) Sort() {
	for _, user := range g.Users {
		for _, session := range user.Sessions {
			slices.SortStableFunc(session.Utterances, func(a, b Utterance) int {
				return cmp.Compare(a.Timestamp, b.Timestamp)
			})
		}
	}
}

// responseText returns a string response as-is, any other non-empty JSON value
// in compact form, and NoResponse for empty values.
func responseText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	switch string(raw) {
	case "", "null", "false", "0", `""`:
		return NoResponse
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
