// Package config provides configuration types for the line protocol bridge.
package config

import "context"

// Transport defines the interface for talking to the worker process.
// Implement this to provide custom transports for testing, mocking,
// or alternative communication methods.
//
// The default implementation is ProcessTransport which spawns a subprocess.
// Custom transports can be injected via Options.Transport.
type Transport interface {
	// Start initializes the transport and prepares it for communication.
	// This is called before any lines are written or read.
	Start(ctx context.Context) error

	// ReadLines returns channels for receiving output lines and errors.
	// The line channel yields each newline-terminated output line without
	// its terminator. The error channel must be buffered and carries at
	// most one terminal error. Both channels are closed when the output
	// ends; the error channel no later than the line channel.
	ReadLines(ctx context.Context) (<-chan string, <-chan error)

	// WriteLine writes one line to the worker, appending the newline.
	// This method must be safe for concurrent use.
	WriteLine(ctx context.Context, line string) error

	// EndInput signals that no more input will be sent.
	// For process-based transports, this closes stdin.
	EndInput() error

	// Wait blocks until the worker has exited or ctx is done.
	Wait(ctx context.Context) error

	// Close terminates the transport and releases resources.
	// It's safe to call Close multiple times.
	Close() error

	// IsReady returns true if the transport is ready for communication.
	IsReady() bool
}
