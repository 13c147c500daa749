// Package switcher hosts the dead man's switch process.
//
// It loads the configuration, guards against a second instance, builds the
// engine, the check-in arbiter and the notifier, and serves the gRPC, web
// and terminal front-ends until the context is canceled.
package switcher
