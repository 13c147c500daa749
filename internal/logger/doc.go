// Package logger wraps a zap sugared logger for the switch processes.
//
// A single global logger writes console-formatted lines. Services carry a
// named, field-enriched copy of it in their context (WithName, WithKV) and log
// through the package helpers, which always pick the logger out of the
// context. SetOutput redirects the global logger, which the terminal
// front-end uses so log lines do not corrupt its prompt.
package logger
