//go:build integration

package integration

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/linebridge-go"
)

// TestShutdown_DrainsQueue tests that the termination exchange runs after
// every exchange submitted before Shutdown.
func TestShutdown_DrainsQueue(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Second)
	defer cancel()

	bridge := startBridge(t, fakeWorker(t)...)

	var g errgroup.Group

	for i := range 10 {
		g.Go(func() error {
			resp, err := bridge.Submit(ctx, fmt.Sprintf("echo %d", i))
			if err != nil {
				return err
			}

			if resp.Header != fmt.Sprint(i) {
				return fmt.Errorf("got %q for %d", resp.Header, i)
			}

			return nil
		})
	}

	require.Eventually(t, func() bool {
		return bridge.Stats().Submitted == 10
	}, 5*time.Second, time.Millisecond)

	start := time.Now()

	require.NoError(t, bridge.Shutdown(ctx))
	require.NoError(t, g.Wait())

	// The fake worker exits on "exit"; no grace period is spent.
	require.Less(t, time.Since(start), 2*time.Second)

	// Ten callers plus the termination exchange.
	stats := bridge.Stats()
	require.Equal(t, uint64(11), stats.Completed)

	_, err := bridge.Submit(ctx, "echo late")
	require.ErrorIs(t, err, linebridge.ErrProcessUnavailable)
}

// TestShutdown_StubbornWorker tests that a worker stuck on the termination
// command is stopped after the grace period.
func TestShutdown_StubbornWorker(t *testing.T) {
	bridge := startBridge(t, fakeWorker(t,
		linebridge.WithTerminationCommand("sleep 30s"),
		linebridge.WithGracePeriod(200*time.Millisecond),
	)...)

	ctx, cancel := context.WithTimeout(t.Context(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()

	err := bridge.Shutdown(ctx)
	require.ErrorIs(t, err, linebridge.ErrTimeout)
	require.Less(t, time.Since(start), 5*time.Second)
}

// TestShutdown_Idempotent tests that Shutdown and Close can be repeated.
func TestShutdown_Idempotent(t *testing.T) {
	bridge := startBridge(t, fakeWorker(t)...)

	require.NoError(t, bridge.Shutdown(t.Context()))
	require.NoError(t, bridge.Shutdown(t.Context()))
	require.NoError(t, bridge.Close())

	err := bridge.Start(t.Context(), fakeWorker(t)...)
	require.ErrorIs(t, err, linebridge.ErrBridgeClosed)
}

// TestClose_FailsInFlightExchange tests that Close releases a caller blocked
// on a slow worker.
func TestClose_FailsInFlightExchange(t *testing.T) {
	bridge := startBridge(t, fakeWorker(t)...)

	errs := make(chan error, 1)

	go func() {
		_, err := bridge.Submit(context.Background(), "sleep 10s")
		errs <- err
	}()

	require.Eventually(t, func() bool {
		return bridge.State() == linebridge.StateCommandSent
	}, 5*time.Second, time.Millisecond)

	require.NoError(t, bridge.Close())

	select {
	case err := <-errs:
		require.ErrorIs(t, err, linebridge.ErrProcessUnavailable)
	case <-time.After(5 * time.Second):
		t.Fatal("caller still blocked after Close")
	}
}

// TestStart_ContextOnlyBoundsStartup tests that cancelling the Start context
// does not end a running bridge.
func TestStart_ContextOnlyBoundsStartup(t *testing.T) {
	startCtx, cancel := context.WithCancel(t.Context())

	bridge := linebridge.NewBridge()
	require.NoError(t, bridge.Start(startCtx, fakeWorker(t)...))

	t.Cleanup(func() { _ = bridge.Close() })

	cancel()

	resp, err := bridge.Submit(t.Context(), "echo alive")
	require.NoError(t, err)
	require.Equal(t, "alive", resp.Header)
}

// TestLock_SecondBridgeRefused tests that two bridges cannot share a lock
// file, and that the lock is released on shutdown.
func TestLock_SecondBridgeRefused(t *testing.T) {
	lockFile := filepath.Join(t.TempDir(), "worker.lock")

	first := startBridge(t, fakeWorker(t, linebridge.WithLockFile(lockFile))...)

	second := linebridge.NewBridge()
	err := second.Start(t.Context(), fakeWorker(t, linebridge.WithLockFile(lockFile))...)
	require.ErrorIs(t, err, linebridge.ErrWorkerLocked)

	require.NoError(t, first.Shutdown(t.Context()))

	third := startBridge(t, fakeWorker(t, linebridge.WithLockFile(lockFile))...)
	require.NoError(t, third.Shutdown(t.Context()))
}
