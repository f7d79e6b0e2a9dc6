// Package subprocess provides the subprocess-based transport for the worker.
//
// This package implements the Transport interface by spawning the worker as
// a child process and exchanging newline-terminated lines over stdin and
// stdout. It handles process lifecycle management, line framing, stderr
// capture and exit status reporting.
package subprocess
