package notifier

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"

	"github.com/oshokin/dead-man-switch/internal/config"
	domain "github.com/oshokin/dead-man-switch/internal/domain/deadman"
)

// Renderer builds the message for each job kind from the configuration.
type Renderer struct {
	from           string
	to             string
	subjectWarning string
	messageWarning string
	subject        string
	message        string
	attachments    []string

	// markdown is nil when HTML rendering is disabled.
	markdown goldmark.Markdown
}

// NewRenderer copies the message settings out of cfg.
func NewRenderer(cfg *config.Config) *Renderer {
	r := &Renderer{
		from:           cfg.From,
		to:             cfg.To,
		subjectWarning: cfg.SubjectWarning,
		messageWarning: cfg.MessageWarning,
		subject:        cfg.Subject,
		message:        cfg.Message,
		attachments:    append([]string(nil), cfg.Attachments...),
	}

	if cfg.Markdown {
		r.markdown = goldmark.New()
	}

	return r
}

// Render returns the message for kind. The warning goes back to the sender
// address without attachments; the final message goes to the recipient.
func (r *Renderer) Render(kind domain.JobKind) (*domain.Message, error) {
	var msg *domain.Message

	switch kind {
	case domain.JobWarning:
		msg = &domain.Message{
			From:    r.from,
			To:      r.from,
			Subject: r.subjectWarning,
			Body:    r.messageWarning,
		}
	case domain.JobFinal:
		msg = &domain.Message{
			From:        r.from,
			To:          r.to,
			Subject:     r.subject,
			Body:        r.message,
			Attachments: append([]string(nil), r.attachments...),
		}
	default:
		return nil, fmt.Errorf("render message: unknown job kind %d", kind)
	}

	if r.markdown != nil {
		var html bytes.Buffer
		if err := r.markdown.Convert([]byte(msg.Body), &html); err != nil {
			return nil, fmt.Errorf("render markdown body: %w", err)
		}

		msg.HTMLBody = html.String()
	}

	return msg, nil
}
