package deadman

import "errors"

// ErrAlreadyTriggered is returned by check-ins that arrive after the final
// message was dispatched. Nothing is mutated when it is returned.
var ErrAlreadyTriggered = errors.New("switch already triggered")
