package notifier

import "errors"

var (
	// ErrTransport marks a transient delivery failure. It is retried.
	ErrTransport = errors.New("transport error")
	// ErrAuth marks rejected credentials. It is not retried.
	ErrAuth = errors.New("authentication error")
	// ErrAttachment marks a missing or unreadable attachment. It is not retried.
	ErrAttachment = errors.New("attachment error")
	// ErrSendFailed is returned once every attempt failed.
	ErrSendFailed = errors.New("send failed")
	// ErrAlreadyDispatched is returned when the job was already handled.
	ErrAlreadyDispatched = errors.New("job already dispatched")
)

// isFatal reports whether err must abort the retry loop.
func isFatal(err error) bool {
	return errors.Is(err, ErrAuth) || errors.Is(err, ErrAttachment)
}
