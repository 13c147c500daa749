// Package engine implements the switch state machine.
//
// The Engine owns the phase, the deadline and the generation counter:
//
//	Warning --(expires)--> DeadMan --(expires)--> Triggered (terminal)
//	Warning --(check-in)--> Warning (deadline reset)
//	DeadMan --(check-in)--> Warning (deadline reset)
//	Triggered --(check-in)--> ErrAlreadyTriggered, nothing changes
//
// Every mutation happens under one mutex, so check-ins and expiry evaluations
// are linearizable. The tick loop (Run) sleeps until the current deadline and
// remembers the generation it was scheduled for; when the timer fires it
// re-reads the live generation under the lock and discards the evaluation if
// a check-in happened in between.
//
// On expiry the engine creates exactly one EmailJob for the (phase,
// generation) pair, commits the transition, and only then hands the job to
// the Dispatcher outside the lock. Delivery outcome never feeds back into the
// state machine.
package engine
