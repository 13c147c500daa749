// Package notifier turns escalation jobs into email messages and delivers
// them through a Transport with bounded, exponentially backed-off retries.
// Delivery outcomes are logged and reported to an optional observer; they
// never change the switch state.
package notifier
