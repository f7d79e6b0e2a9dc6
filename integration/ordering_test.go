//go:build integration

package integration

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/linebridge-go"
)

// TestFIFO_ConcurrentCallers tests that every caller receives the response to
// its own command when many submit at once.
func TestFIFO_ConcurrentCallers(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Second)
	defer cancel()

	bridge := startBridge(t, fakeWorker(t)...)

	const callers = 50

	var g errgroup.Group

	for i := range callers {
		g.Go(func() error {
			tag := "caller" + strconv.Itoa(i)

			resp, err := bridge.Submit(ctx, fmt.Sprintf("lines %d %s", i%7, tag))
			if err != nil {
				return err
			}

			if resp.Header != strconv.Itoa(i%7) || len(resp.Lines) != i%7 {
				return fmt.Errorf("caller %d got header %q with %d lines", i, resp.Header, len(resp.Lines))
			}

			for j, line := range resp.Lines {
				if line != fmt.Sprintf("%s %d", tag, j) {
					return fmt.Errorf("caller %d got foreign line %q", i, line)
				}
			}

			return nil
		})
	}

	require.NoError(t, g.Wait())

	stats := bridge.Stats()
	require.Equal(t, uint64(callers), stats.Completed)
	require.Equal(t, uint64(callers), stats.LastSequence)
	require.NoError(t, bridge.Shutdown(ctx))
}

// TestFIFO_CountRoundTrip tests that header counts from 0 to 300 are framed
// exactly.
func TestFIFO_CountRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 60*time.Second)
	defer cancel()

	bridge := startBridge(t, fakeWorker(t)...)

	for n := range 301 {
		resp, err := bridge.Submit(ctx, fmt.Sprintf("lines %d", n))
		require.NoError(t, err)
		require.Len(t, resp.Lines, n)
		require.Equal(t, uint64(n+1), resp.Sequence)
	}

	require.NoError(t, bridge.Shutdown(ctx))
}

// TestFIFO_SubmissionOrder tests that the worker sees commands in the order
// they were submitted even when earlier ones are slow.
func TestFIFO_SubmissionOrder(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Second)
	defer cancel()

	bridge := startBridge(t, fakeWorker(t)...)

	var (
		g    errgroup.Group
		seqs [3]uint64
	)

	commands := []string{"sleep 200ms", "echo second", "echo third"}
	for i, command := range commands {
		g.Go(func() error {
			resp, err := bridge.Submit(ctx, command)
			if err != nil {
				return err
			}

			seqs[i] = resp.Sequence

			return nil
		})

		// Let each submit enqueue before the next.
		require.Eventually(t, func() bool {
			return bridge.Stats().Submitted == uint64(i+1)
		}, time.Second, time.Millisecond)
	}

	require.NoError(t, g.Wait())
	require.Equal(t, [3]uint64{1, 2, 3}, seqs)
}

// TestTimeout_BridgeRecovers tests that a timed-out caller does not disturb
// later exchanges.
func TestTimeout_BridgeRecovers(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Second)
	defer cancel()

	bridge := startBridge(t, fakeWorker(t, linebridge.WithDefaultTimeout(50*time.Millisecond))...)

	_, err := bridge.Submit(ctx, "sleep 500ms")
	require.ErrorIs(t, err, linebridge.ErrTimeout)

	resp, err := bridge.Submit(ctx, "lines 1 after", linebridge.WithDeadline(5*time.Second))
	require.NoError(t, err)
	require.Equal(t, []string{"after 0"}, resp.Lines)

	stats := bridge.Stats()
	require.Equal(t, uint64(1), stats.TimedOut)
	require.NoError(t, bridge.Shutdown(ctx))
}
