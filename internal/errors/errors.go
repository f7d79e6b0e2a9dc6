package errors

import (
	"errors"
	"fmt"
)

// BridgeError is the base interface for all bridge errors.
type BridgeError interface {
	error
	IsBridgeError() bool
}

// Compile-time verification that all error types implement BridgeError.
var (
	_ BridgeError = (*WorkerNotFoundError)(nil)
	_ BridgeError = (*ConnectionError)(nil)
	_ BridgeError = (*ProcessError)(nil)
	_ BridgeError = (*TruncatedResponseError)(nil)
	_ BridgeError = (*SequenceMismatchError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrProcessUnavailable indicates there is no live worker conversation to
	// serialize against: the bridge was never started, is shutting down, or the
	// conversation is broken.
	ErrProcessUnavailable = errors.New("worker process unavailable")

	// ErrTimeout indicates the caller's deadline elapsed before its response
	// was delivered. The exchange may still occupy the in-flight slot.
	ErrTimeout = errors.New("exchange timeout")

	// ErrTruncatedResponse matches every *TruncatedResponseError.
	ErrTruncatedResponse = errors.New("truncated response")

	// ErrSequenceMismatch matches every *SequenceMismatchError.
	ErrSequenceMismatch = errors.New("sequence mismatch")

	// ErrInvalidCommand indicates a command that cannot be framed as one line.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrUnexpectedOutput indicates the worker emitted a line while no
	// exchange was in flight.
	ErrUnexpectedOutput = errors.New("unexpected worker output")

	// ErrMalformedHeader indicates a header declared more follow-up lines than
	// the bridge accepts.
	ErrMalformedHeader = errors.New("malformed response header")

	// ErrUnterminatedLine indicates the worker output ended with a line that
	// had no trailing newline.
	ErrUnterminatedLine = errors.New("unterminated output line")

	// ErrNotStarted indicates the bridge has not been started yet.
	ErrNotStarted = errors.New("bridge not started")

	// ErrAlreadyStarted indicates Start was called on a running bridge.
	ErrAlreadyStarted = errors.New("bridge already started")

	// ErrBridgeClosed indicates the bridge has been shut down and cannot be reused.
	ErrBridgeClosed = errors.New("bridge closed: bridges are single-use, create a new one with New()")

	// ErrWorkerLocked indicates another bridge holds the worker lock file.
	ErrWorkerLocked = errors.New("worker lock held by another bridge")

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.New("transport not connected")

	// ErrStdinClosed indicates stdin was closed due to context cancellation.
	ErrStdinClosed = errors.New("stdin closed")

	// ErrSequencerStopped indicates the sequencer stopped while a caller was waiting.
	ErrSequencerStopped = errors.New("sequencer stopped")
)

// WorkerNotFoundError indicates the worker binary was not found.
type WorkerNotFoundError struct {
	SearchedPaths []string
}

func (e *WorkerNotFoundError) Error() string {
	return fmt.Sprintf("worker binary not found in: %v", e.SearchedPaths)
}

// IsBridgeError implements BridgeError.
func (e *WorkerNotFoundError) IsBridgeError() bool { return true }

// ConnectionError indicates failure to attach to the worker's standard streams.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to worker: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsBridgeError implements BridgeError.
func (e *ConnectionError) IsBridgeError() bool { return true }

// ProcessError indicates the worker process exited unexpectedly.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("worker process failed (exit %d): %v", e.ExitCode, e.Err)
	}

	return fmt.Sprintf("worker process failed (exit %d): %s", e.ExitCode, e.Stderr)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsBridgeError implements BridgeError.
func (e *ProcessError) IsBridgeError() bool { return true }

// TruncatedResponseError indicates the worker output ended before a response
// was complete. Expected is -1 when the header itself never arrived.
type TruncatedResponseError struct {
	Sequence uint64
	Expected int
	Received int
	Err      error
}

func (e *TruncatedResponseError) Error() string {
	if e.Expected < 0 {
		return fmt.Sprintf("truncated response to exchange %d: no header: %v", e.Sequence, e.Err)
	}

	return fmt.Sprintf(
		"truncated response to exchange %d: got %d of %d lines: %v",
		e.Sequence, e.Received, e.Expected, e.Err,
	)
}

func (e *TruncatedResponseError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTruncatedResponse.
func (e *TruncatedResponseError) Is(target error) bool {
	return target == ErrTruncatedResponse
}

// IsBridgeError implements BridgeError.
func (e *TruncatedResponseError) IsBridgeError() bool { return true }

// SequenceMismatchError indicates a header echoed a sequence token other than
// the one assigned to the in-flight exchange. Got is 0 when the token was
// required but absent.
type SequenceMismatchError struct {
	Expected uint64
	Got      uint64
	Header   string
}

func (e *SequenceMismatchError) Error() string {
	if e.Got == 0 {
		return fmt.Sprintf("sequence mismatch: expected [%d], header has no token: %q", e.Expected, e.Header)
	}

	return fmt.Sprintf("sequence mismatch: expected [%d], got [%d]: %q", e.Expected, e.Got, e.Header)
}

// Is reports whether target is ErrSequenceMismatch.
func (e *SequenceMismatchError) Is(target error) bool {
	return target == ErrSequenceMismatch
}

// IsBridgeError implements BridgeError.
func (e *SequenceMismatchError) IsBridgeError() bool { return true }
