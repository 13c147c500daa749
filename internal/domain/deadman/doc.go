// Package deadman contains the core domain types of the dead man's switch.
//
// It defines the switch Phase, the Snapshot of the engine state, the
// read-only Status shown to front-ends, check-in requests and the EmailJob
// produced on every escalation.
package deadman
