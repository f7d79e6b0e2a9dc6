package linebridge

import (
	"context"

	"github.com/wagiedev/linebridge-go/internal/bridge"
)

// bridgeWrapper wraps the internal bridge to adapt it to the public interface.
type bridgeWrapper struct {
	impl *bridge.Bridge
}

// Compile-time verification that bridgeWrapper implements Bridge.
var _ Bridge = (*bridgeWrapper)(nil)

func newBridgeImpl() *bridgeWrapper {
	return &bridgeWrapper{impl: bridge.New()}
}

// Start launches the worker with the given options.
func (w *bridgeWrapper) Start(ctx context.Context, opts ...Option) error {
	return w.impl.Start(ctx, applyBridgeOptions(opts))
}

// Submit sends one command and waits for its response.
func (w *bridgeWrapper) Submit(ctx context.Context, command string, opts ...SubmitOption) (*Response, error) {
	return w.impl.Submit(ctx, command, applySubmitOptions(opts))
}

// Shutdown ends the conversation gracefully.
func (w *bridgeWrapper) Shutdown(ctx context.Context) error {
	return w.impl.Shutdown(ctx)
}

// Close kills the worker immediately.
func (w *bridgeWrapper) Close() error {
	return w.impl.Close()
}

// State returns the conversation state.
func (w *bridgeWrapper) State() State {
	return w.impl.State()
}

// Stats returns the exchange counters.
func (w *bridgeWrapper) Stats() Stats {
	return w.impl.Stats()
}

// FatalError returns the error that broke the conversation.
func (w *bridgeWrapper) FatalError() error {
	return w.impl.FatalError()
}
