package smtp

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/textproto"
	"os"
	"path/filepath"
	"time"

	"github.com/wneessen/go-mail"

	domain "github.com/oshokin/dead-man-switch/internal/domain/deadman"
	"github.com/oshokin/dead-man-switch/internal/logger"
	"github.com/oshokin/dead-man-switch/internal/service/notifier"
)

// SMTP reply codes that mean the credentials were refused.
const (
	codeAuthRequired = 530
	codeAuthTooWeak  = 534
	codeAuthInvalid  = 535
)

const (
	// DefaultTimeout bounds dialing when Settings.Timeout is unset.
	DefaultTimeout = 5 * time.Second

	defaultContentType = "application/octet-stream"
)

// Settings describe the SMTP relay.
type Settings struct {
	// Host is the relay host name.
	Host string
	// Port is the relay port.
	Port int
	// Username is the account name for PLAIN auth.
	Username string
	// Password is the account password for PLAIN auth.
	Password string
	// Timeout bounds dialing and each SMTP command.
	Timeout time.Duration
}

// Transport sends messages through one SMTP relay.
type Transport struct {
	settings Settings
}

// New creates a transport. Nothing is dialed until Send or CheckConnection.
func New(settings Settings) *Transport {
	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	return &Transport{settings: settings}
}

// Send builds msg and delivers it in a single SMTP session.
func (t *Transport) Send(ctx context.Context, msg *domain.Message) error {
	m, err := buildMessage(msg)
	if err != nil {
		return err
	}

	client, err := t.newClient()
	if err != nil {
		return err
	}

	if err = client.DialAndSendWithContext(ctx, m); err != nil {
		return classify(fmt.Errorf("send message to %s: %w", msg.To, err))
	}

	logger.DebugKV(ctx, "SMTP message accepted", "to", msg.To, "subject", msg.Subject)

	return nil
}

// CheckConnection dials the relay, authenticates and hangs up.
func (t *Transport) CheckConnection(ctx context.Context) error {
	client, err := t.newClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, t.settings.Timeout)
	defer cancel()

	if err = client.DialWithContext(ctx); err != nil {
		return classify(fmt.Errorf("connect to %s:%d: %w", t.settings.Host, t.settings.Port, err))
	}

	if err = client.Close(); err != nil {
		return classify(fmt.Errorf("close connection to %s:%d: %w", t.settings.Host, t.settings.Port, err))
	}

	return nil
}

// newClient configures a go-mail client for the relay.
func (t *Transport) newClient() (*mail.Client, error) {
	client, err := mail.NewClient(t.settings.Host,
		mail.WithPort(t.settings.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(t.settings.Username),
		mail.WithPassword(t.settings.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(t.settings.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: create smtp client: %w", notifier.ErrTransport, err)
	}

	return client, nil
}

// buildMessage converts msg into a go-mail message.
func buildMessage(msg *domain.Message) (*mail.Msg, error) {
	m := mail.NewMsg()

	if err := m.From(msg.From); err != nil {
		return nil, fmt.Errorf("set sender %q: %w", msg.From, err)
	}

	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("set recipient %q: %w", msg.To, err)
	}

	m.Subject(msg.Subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	if msg.HTMLBody != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTMLBody)
	}

	for _, path := range msg.Attachments {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", notifier.ErrAttachment, path, err)
		}

		m.AttachFile(path,
			mail.WithFileName(filepath.Base(path)),
			mail.WithFileContentType(attachmentContentType(path)))
	}

	return m, nil
}

// attachmentContentType guesses the MIME type from the file extension.
func attachmentContentType(path string) mail.ContentType {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return mail.ContentType(ct)
	}

	return defaultContentType
}

// classify wraps err with the notifier category it belongs to.
func classify(err error) error {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		switch protoErr.Code {
		case codeAuthRequired, codeAuthTooWeak, codeAuthInvalid:
			return fmt.Errorf("%w: %w", notifier.ErrAuth, err)
		}
	}

	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %w", notifier.ErrAttachment, err)
	}

	// Everything else, permanent SendErrors included, is left to the retry budget.
	return fmt.Errorf("%w: %w", notifier.ErrTransport, err)
}
