package report

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/gsdriver/alexa-logger/internal/record"
)

// DateLayout formats a session's start time.
const DateLayout = "Mon Jan 02 2006 15:04:05 GMT-0700 (MST)"

// Renderer turns grouped records into the delimited transcript report.
type Renderer struct {
	loc *time.Location
}

// Option customizes a Renderer.
type Option func(*Renderer)

// WithLocation sets the time zone session dates are printed in.
func WithLocation(loc *time.Location) Option {
	return func(r *Renderer) {
		if loc != nil {
			r.loc = loc
		}
	}
}

func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{loc: time.Local}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Aggregate groups records and renders them with the default renderer.
func Aggregate(records []*record.Fetched) string {
	return NewRenderer().Aggregate(context.Background(), records)
}

// Aggregate groups records and renders them.
func (r *Renderer) Aggregate(ctx context.Context, records []*record.Fetched) string {
	_, span := otel.Tracer("alexa-logger/report").Start(ctx, "report.aggregate")
	defer span.End()

	g := Group(records)
	g.Sort()
	return r.Render(g)
}

// Render writes one block per user: the user id, then for each session a
// date line followed by one line per utterance. Users and sessions with an
// empty id are left out.
func (r *Renderer) Render(g *Groups) string {
	var b strings.Builder
	for _, user := range g.Users {
		if user.ID == "" {
			continue
		}
		b.WriteString(user.ID)
		b.WriteByte('\n')

		for _, session := range user.Sessions {
			if session.ID == "" || len(session.Utterances) == 0 {
				continue
			}
			b.WriteByte(',')
			b.WriteString(time.UnixMilli(session.Utterances[0].Timestamp).In(r.loc).Format(DateLayout))
			b.WriteByte('\n')

			for _, u := range session.Utterances {
				b.WriteString(",,")
				b.WriteString(Quote(u.Intent))
				b.WriteByte(',')
				b.WriteString(Quote(u.Slots.String()))
				b.WriteByte(',')
				b.WriteString(Quote(u.Response))
				b.WriteByte('\n')
			}
		}
	}
	return b.String()
}

// Quote wraps s in double quotes, doubling any quote inside it.
func Quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Unquote reverses Quote. It returns s unchanged when s is not quoted.
func Unquote(s string) string {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s
	}
	return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
}
