package deadman

import "time"

// JobKind selects which escalation message a job carries.
type JobKind uint8

const (
	// JobWarning is sent when the warning countdown expires.
	JobWarning JobKind = iota
	// JobFinal is sent when the dead man countdown expires.
	JobFinal
)

// String returns the job kind name.
func (k JobKind) String() string {
	switch k {
	case JobWarning:
		return "warning"
	case JobFinal:
		return "final"
	default:
		return "unknown"
	}
}

// Message is a rendered email ready to hand to a transport.
type Message struct {
	// From is the sender address.
	From string
	// To is the single recipient address.
	To string
	// Subject is the message subject line.
	Subject string
	// Body is the plain text body.
	Body string
	// HTMLBody is an optional HTML alternative of Body.
	HTMLBody string
	// Attachments lists file paths to attach.
	Attachments []string
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}

	cloned := *m
	cloned.Attachments = append([]string(nil), m.Attachments...)

	return &cloned
}

// EmailJob is one escalation dispatch, created by the engine per transition.
type EmailJob struct {
	// ID uniquely identifies the job in logs and the journal.
	ID string
	// Kind is the escalation message to send.
	Kind JobKind
	// Generation is the engine generation the job was created under.
	Generation uint64
	// CreatedAt is when the engine created the job.
	CreatedAt time.Time
	// Message is filled in by the notifier when the job is rendered.
	Message *Message
	// Attempts counts delivery attempts made so far.
	Attempts int
}

// Clone returns a deep copy of the job.
func (j *EmailJob) Clone() *EmailJob {
	if j == nil {
		return nil
	}

	cloned := *j
	cloned.Message = j.Message.Clone()

	return &cloned
}
