package linebridge

import "github.com/wagiedev/linebridge-go/internal/errors"

// Re-export error types from internal/errors for public API access.

// BridgeError is the base interface for all bridge errors.
type BridgeError = errors.BridgeError

// WorkerNotFoundError indicates the worker binary was not found.
type WorkerNotFoundError = errors.WorkerNotFoundError

// ConnectionError indicates the worker process could not be started.
type ConnectionError = errors.ConnectionError

// ProcessError indicates the worker process exited with an error.
type ProcessError = errors.ProcessError

// TruncatedResponseError indicates the worker output ended mid-response.
type TruncatedResponseError = errors.TruncatedResponseError

// SequenceMismatchError indicates a header carried the wrong sequence token.
type SequenceMismatchError = errors.SequenceMismatchError

// Sentinel errors.
var (
	// ErrProcessUnavailable indicates there is no live worker conversation.
	ErrProcessUnavailable = errors.ErrProcessUnavailable

	// ErrTimeout indicates the caller's deadline elapsed before its response
	// was delivered.
	ErrTimeout = errors.ErrTimeout

	// ErrTruncatedResponse matches every *TruncatedResponseError.
	ErrTruncatedResponse = errors.ErrTruncatedResponse

	// ErrSequenceMismatch matches every *SequenceMismatchError.
	ErrSequenceMismatch = errors.ErrSequenceMismatch

	// ErrInvalidCommand indicates a command that cannot be sent as one line.
	ErrInvalidCommand = errors.ErrInvalidCommand

	// ErrUnexpectedOutput indicates output while no exchange was in flight.
	ErrUnexpectedOutput = errors.ErrUnexpectedOutput

	// ErrMalformedHeader indicates a header declared too many follow-up lines.
	ErrMalformedHeader = errors.ErrMalformedHeader

	// ErrUnterminatedLine indicates output that ended without a newline.
	ErrUnterminatedLine = errors.ErrUnterminatedLine

	// ErrNotStarted indicates the bridge has not been started.
	ErrNotStarted = errors.ErrNotStarted

	// ErrAlreadyStarted indicates Start was called twice.
	ErrAlreadyStarted = errors.ErrAlreadyStarted

	// ErrBridgeClosed indicates the bridge has been shut down.
	ErrBridgeClosed = errors.ErrBridgeClosed

	// ErrWorkerLocked indicates another bridge holds the worker lock file.
	ErrWorkerLocked = errors.ErrWorkerLocked
)
