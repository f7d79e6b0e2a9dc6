package linebridge

import (
	"context"
	"fmt"
)

// WithBridge manages bridge lifecycle with automatic cleanup.
//
// This helper creates a bridge, starts it with the provided options, executes
// the callback function, and shuts the bridge down when done.
//
// The callback receives a started Bridge that is ready for use.
// If the callback returns an error, it is returned to the caller.
// If Shutdown() fails, a warning is logged but does not override the
// callback's error.
//
// Example usage:
//
//	err := linebridge.WithBridge(ctx, func(b linebridge.Bridge) error {
//	    resp, err := b.Submit(ctx, "query_order -u alice")
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(resp.Header)
//	    return nil
//	},
//	    linebridge.WithLogger(log),
//	    linebridge.WithWorkerPath("./train-ticket-system"),
//	)
func WithBridge(ctx context.Context, fn func(Bridge) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyBridgeOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	bridge := NewBridge()
	if err := bridge.Start(ctx, opts...); err != nil {
		return fmt.Errorf("failed to start bridge: %w", err)
	}

	defer func() {
		// Shut down even when ctx was cancelled inside fn.
		if shutdownErr := bridge.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
			log.Warn("failed to shut down bridge", "error", shutdownErr)
		}
	}()

	return fn(bridge)
}
