// Package instance keeps a single switch process running per host by
// scanning the process table for executables with the same name.
package instance
