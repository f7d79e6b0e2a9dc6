package linebridge

import "context"

// Bridge serializes request/response exchanges with one worker process.
//
// Any number of goroutines may call Submit concurrently. Commands are written
// to the worker in submission order, at most one exchange is in flight at a
// time, and each caller receives exactly the response to its own command.
//
// Lifecycle: Bridges are single-use. After Shutdown() or Close(), create a new
// bridge with NewBridge().
//
// Example usage:
//
//	bridge := NewBridge()
//	defer bridge.Close()
//
//	err := bridge.Start(ctx,
//	    WithWorkerPath("./train-ticket-system"),
//	    WithDefaultTimeout(10*time.Second),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := bridge.Submit(ctx, "query_profile -c root -u alice")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(resp.Header)
//
//	// Let queued exchanges finish and stop the worker.
//	if err := bridge.Shutdown(ctx); err != nil {
//	    log.Print(err)
//	}
type Bridge interface {
	// Start launches the worker and begins serving exchanges.
	// Must be called before Submit.
	// Returns WorkerNotFoundError if the worker is not found, ConnectionError
	// if it fails to start, or ErrWorkerLocked if the lock file is held.
	Start(ctx context.Context, opts ...Option) error

	// Submit sends one command and blocks until its complete response
	// arrives, the deadline elapses (ErrTimeout), ctx is cancelled, or the
	// conversation breaks.
	// The command must be a single line; ErrInvalidCommand otherwise.
	// A command that already starts with a "[n]" token is written as is and
	// its response header must echo n.
	// ErrTimeout from an exchange that was still queued guarantees the
	// command was never written to the worker.
	Submit(ctx context.Context, command string, opts ...SubmitOption) (*Response, error)

	// Shutdown queues the termination command behind all submitted
	// exchanges, waits for it, and stops the worker. Safe to call multiple
	// times.
	Shutdown(ctx context.Context) error

	// Close kills the worker immediately, failing queued and in-flight
	// exchanges with ErrProcessUnavailable. Safe to call multiple times.
	Close() error

	// State returns the current conversation state.
	State() State

	// Stats returns a snapshot of the exchange counters.
	Stats() Stats

	// FatalError returns the error that broke the conversation, or nil.
	FatalError() error
}

// NewBridge creates a new bridge.
//
// The bridge is not started after creation. Call Start() to launch the worker.
func NewBridge() Bridge {
	return newBridgeImpl()
}
