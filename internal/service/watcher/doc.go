// Package watcher polls a running switch over gRPC and reports its status.
//
// It logs every phase change, exits once the switch has triggered, and can
// print a single status snapshot.
package watcher
