package bridge

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/linebridge-go/internal/config"
	"github.com/wagiedev/linebridge-go/internal/errors"
	"github.com/wagiedev/linebridge-go/internal/protocol"
	"github.com/wagiedev/linebridge-go/internal/subprocess"
)

// terminateTimeout bounds the wait after asking a worker that outlived its
// grace period to terminate, before it is killed.
const terminateTimeout = time.Second

// terminator is implemented by transports that can ask the worker to exit
// before killing it.
type terminator interface {
	Terminate() error
}

// Bridge owns one worker process and serializes exchanges with it.
type Bridge struct {
	log       *slog.Logger
	options   *config.Options
	transport config.Transport
	sequencer *protocol.Sequencer
	lock      *flock.Flock

	// Errgroup for goroutine management
	eg     *errgroup.Group
	cancel context.CancelFunc

	// Lifecycle management
	mu        sync.Mutex
	started   bool
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// New creates a new bridge.
//
// The bridge is not started after creation. Call Start() with options to
// launch the worker.
func New() *Bridge {
	return &Bridge{}
}

// Start launches the worker and the Sequencer.
//
// ctx bounds startup only: the bridge keeps running after ctx is cancelled
// until Shutdown or Close is called.
//
// Returns WorkerNotFoundError if the worker binary cannot be located,
// ConnectionError if the process fails to start, or ErrWorkerLocked if
// another bridge holds the lock file.
func (b *Bridge) Start(ctx context.Context, options *config.Options) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.ErrBridgeClosed
	}

	if b.started {
		return errors.ErrAlreadyStarted
	}

	opts := &config.Options{}
	if options != nil {
		*opts = *options
	}

	opts.ApplyDefaults()

	b.options = opts
	b.log = opts.Logger.With("component", "bridge")

	if opts.LockFile != "" {
		lock := flock.New(opts.LockFile)

		ok, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire worker lock: %w", err)
		}

		if !ok {
			return fmt.Errorf("%w: %s", errors.ErrWorkerLocked, opts.LockFile)
		}

		b.lock = lock
	}

	transport := opts.Transport
	if transport != nil {
		b.log.Debug("Using injected custom transport")
	} else {
		transport = subprocess.NewProcessTransport(opts.Logger, opts)
	}

	if err := transport.Start(ctx); err != nil {
		b.unlock()

		return fmt.Errorf("start transport: %w", err)
	}

	b.transport = transport

	// The run context is detached from ctx: a startup deadline must not end
	// the conversation.
	runCtx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	lines, errs := transport.ReadLines(runCtx)

	b.sequencer = protocol.NewSequencer(opts.Logger, transport, protocol.NewLineStream(lines, errs), opts.SequencerConfig())
	b.sequencer.Start(runCtx)

	var egCtx context.Context

	b.eg, egCtx = errgroup.WithContext(runCtx)
	b.eg.Go(func() error {
		return b.watch(egCtx)
	})

	b.started = true
	b.log.Info("Bridge started",
		"sequence_tokens", !opts.DisableSequenceTokens,
		"termination_command", opts.TerminationCommand,
	)

	return nil
}

// watch kills the worker once the conversation has broken.
func (b *Bridge) watch(ctx context.Context) error {
	select {
	case <-b.sequencer.Done():
	case <-ctx.Done():
		return nil
	}

	err := b.sequencer.FatalError()
	if err == nil {
		return nil
	}

	b.log.Error("Conversation broken, stopping worker", "error", err)

	if closeErr := b.transport.Close(); closeErr != nil {
		b.log.Warn("Failed to stop worker", "error", closeErr)
	}

	return nil
}

// Submit sends one command and waits for its complete response.
//
// Exchanges run one at a time in submission order. When opts.Deadline is
// zero the configured default timeout applies. A deadline that expires while
// the exchange is still queued drops it before its command is written.
func (b *Bridge) Submit(ctx context.Context, command string, opts protocol.SubmitOptions) (*protocol.Response, error) {
	b.mu.Lock()
	started := b.started
	sequencer := b.sequencer
	options := b.options
	b.mu.Unlock()

	if !started {
		return nil, fmt.Errorf("%w: %w", errors.ErrProcessUnavailable, errors.ErrNotStarted)
	}

	if opts.Deadline == 0 {
		opts.Deadline = options.DefaultTimeout
	}

	return sequencer.Submit(ctx, command, opts)
}

// Shutdown ends the conversation gracefully.
//
// The termination command is queued behind every exchange already
// submitted; later submits fail with ErrProcessUnavailable. Once it has been
// answered (or the worker closed its output) stdin is closed and the worker
// gets the grace period to exit before it is killed. ctx bounds the wait for
// the termination exchange.
//
// Shutdown and Close share one teardown: only the first call does the work
// and later calls return its result.
func (b *Bridge) Shutdown(ctx context.Context) error {
	return b.teardown(ctx, true)
}

// Close kills the worker immediately. Queued and in-flight exchanges fail
// with ErrProcessUnavailable.
func (b *Bridge) Close() error {
	return b.teardown(context.Background(), false)
}

func (b *Bridge) teardown(ctx context.Context, graceful bool) error {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		wasStarted := b.started
		b.mu.Unlock()

		if !wasStarted {
			return
		}

		if graceful {
			b.log.Info("Shutting down bridge")
			b.closeErr = b.terminate(ctx)
		} else {
			b.log.Info("Closing bridge")
		}

		b.sequencer.Stop()

		if err := b.transport.Close(); err != nil && b.closeErr == nil {
			b.closeErr = fmt.Errorf("close transport: %w", err)
		}

		b.cancel()

		if err := b.eg.Wait(); err != nil && b.closeErr == nil {
			b.closeErr = err
		}

		b.unlock()

		b.log.Info("Bridge closed")
	})

	return b.closeErr
}

// terminate runs the termination exchange and waits for the worker to exit.
func (b *Bridge) terminate(ctx context.Context) error {
	var termErr error

	resp, err := b.sequencer.SubmitTermination(ctx, b.options.TerminationCommand)

	switch {
	case err == nil:
		b.log.Debug("Termination exchange complete", "closed", resp.Closed)
	case stderrors.Is(err, errors.ErrProcessUnavailable):
		// Nothing left to terminate gracefully.
		b.log.Debug("Termination exchange skipped", "error", err)
	default:
		b.log.Warn("Termination exchange failed", "error", err)

		termErr = fmt.Errorf("termination exchange: %w", err)
	}

	if err := b.transport.EndInput(); err != nil {
		b.log.Debug("Failed to close worker input", "error", err)
	}

	if b.waitExit(ctx, b.options.GracePeriod) {
		return termErr
	}

	b.log.Warn("Worker did not exit within grace period", "grace_period", b.options.GracePeriod)

	if t, ok := b.transport.(terminator); ok {
		if err := t.Terminate(); err != nil {
			b.log.Debug("Failed to terminate worker", "error", err)
		}

		if b.waitExit(ctx, terminateTimeout) {
			return termErr
		}
	}

	b.log.Warn("Killing worker")

	return termErr
}

// waitExit reports whether the worker exited within d.
func (b *Bridge) waitExit(ctx context.Context, d time.Duration) bool {
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d)
	defer cancel()

	err := b.transport.Wait(waitCtx)

	return waitCtx.Err() == nil || err == nil
}

func (b *Bridge) unlock() {
	if b.lock == nil {
		return
	}

	if err := b.lock.Unlock(); err != nil {
		b.log.Warn("Failed to release worker lock", "error", err)
	}

	b.lock = nil
}

// State returns the conversation state.
func (b *Bridge) State() protocol.State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sequencer == nil {
		return protocol.StateIdle
	}

	return b.sequencer.State()
}

// Stats returns the exchange counters.
func (b *Bridge) Stats() protocol.Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sequencer == nil {
		return protocol.Stats{}
	}

	return b.sequencer.Stats()
}

// FatalError returns the error that broke the conversation, if any.
func (b *Bridge) FatalError() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sequencer == nil {
		return nil
	}

	return b.sequencer.FatalError()
}
