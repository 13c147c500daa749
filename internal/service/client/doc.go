// Package client implements the remote check-in command.
//
// The command connects to a running switch over gRPC and checks in on behalf
// of the current user and host, retrying transient failures until it succeeds
// or the context is canceled.
package client
