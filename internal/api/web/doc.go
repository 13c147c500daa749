// Package web serves the password-protected browser front-end: a login page,
// a dashboard with a check-in button, a JSON status endpoint and a websocket
// that pushes the status once per second.
package web
