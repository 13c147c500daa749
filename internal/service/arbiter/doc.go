// Package arbiter serializes check-ins from every front-end through a single
// goroutine. Requests queued while the engine is busy are coalesced into one
// engine check-in and all callers receive the same result.
package arbiter
