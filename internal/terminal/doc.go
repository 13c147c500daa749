// Package terminal provides the interactive console front-end of the switch.
//
// The prompt shows the current phase and remaining time and is refreshed
// every second. Log output must go through Console.Stdout so it does not
// corrupt the prompt.
package terminal
