package notifier

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/dead-man-switch/internal/config"
	domain "github.com/oshokin/dead-man-switch/internal/domain/deadman"
)

func TestRenderer(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.From = "me@example.com"
	cfg.To = "friend@example.com"
	cfg.SubjectWarning = "check in"
	cfg.MessageWarning = "are you there?"
	cfg.Subject = "bad news"
	cfg.Message = "read the **letter**"
	cfg.Attachments = []string{"/tmp/letter.pdf"}

	r := NewRenderer(cfg)

	warning, err := r.Render(domain.JobWarning)
	require.NoError(t, err)
	require.Equal(t, &domain.Message{
		From:    "me@example.com",
		To:      "me@example.com",
		Subject: "check in",
		Body:    "are you there?",
	}, warning)

	final, err := r.Render(domain.JobFinal)
	require.NoError(t, err)
	require.Equal(t, "friend@example.com", final.To)
	require.Equal(t, "bad news", final.Subject)
	require.Equal(t, []string{"/tmp/letter.pdf"}, final.Attachments)
	require.Empty(t, final.HTMLBody)

	// Mutating the config afterwards does not leak into messages.
	cfg.Attachments[0] = "/tmp/other.pdf"

	final, err = r.Render(domain.JobFinal)
	require.NoError(t, err)
	require.Equal(t, []string{"/tmp/letter.pdf"}, final.Attachments)

	_, err = r.Render(domain.JobKind(42))
	require.Error(t, err)
}

func TestRenderer_Markdown(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Message = "read the **letter**"
	cfg.Markdown = true

	final, err := NewRenderer(cfg).Render(domain.JobFinal)
	require.NoError(t, err)
	require.Equal(t, "read the **letter**", final.Body)
	require.Contains(t, final.HTMLBody, "<strong>letter</strong>")
}
