//go:build integration

package integration

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/linebridge-go"
)

// requireBroken checks that the bridge refuses further work.
func requireBroken(t *testing.T, bridge linebridge.Bridge) {
	t.Helper()

	require.Equal(t, linebridge.StateBroken, bridge.State())
	require.Error(t, bridge.FatalError())

	_, err := bridge.Submit(t.Context(), "echo after")
	require.ErrorIs(t, err, linebridge.ErrProcessUnavailable)
}

func TestFault_TruncatedResponse(t *testing.T) {
	bridge := startBridge(t, fakeWorker(t)...)

	_, err := bridge.Submit(t.Context(), "truncate 4")

	truncated, ok := errors.AsType[*linebridge.TruncatedResponseError](err)
	require.True(t, ok, "expected TruncatedResponseError, got %v", err)
	require.Equal(t, 4, truncated.Expected)
	require.Equal(t, 3, truncated.Received)

	requireBroken(t, bridge)
}

func TestFault_UnterminatedHeader(t *testing.T) {
	bridge := startBridge(t, fakeWorker(t)...)

	_, err := bridge.Submit(t.Context(), "partial")
	require.ErrorIs(t, err, linebridge.ErrTruncatedResponse)
	require.ErrorIs(t, err, linebridge.ErrUnterminatedLine)

	requireBroken(t, bridge)
}

func TestFault_WorkerCrash(t *testing.T) {
	var (
		mu     sync.Mutex
		stderr []string
	)

	bridge := startBridge(t, fakeWorker(t, linebridge.WithStderr(func(line string) {
		mu.Lock()
		defer mu.Unlock()

		stderr = append(stderr, line)
	}))...)

	_, err := bridge.Submit(t.Context(), "crash 3")
	require.ErrorIs(t, err, linebridge.ErrTruncatedResponse)

	requireBroken(t, bridge)

	processErr, ok := errors.AsType[*linebridge.ProcessError](bridge.FatalError())
	require.True(t, ok, "expected ProcessError in %v", bridge.FatalError())
	require.Equal(t, 3, processErr.ExitCode)

	mu.Lock()
	defer mu.Unlock()

	require.Contains(t, strings.Join(stderr, "\n"), "fake worker crashed")
}

func TestFault_SequenceMismatch(t *testing.T) {
	bridge := startBridge(t, fakeWorker(t)...)

	_, err := bridge.Submit(t.Context(), "echo ok")
	require.NoError(t, err)

	_, err = bridge.Submit(t.Context(), "badseq")

	mismatch, ok := errors.AsType[*linebridge.SequenceMismatchError](err)
	require.True(t, ok, "expected SequenceMismatchError, got %v", err)
	require.Equal(t, uint64(2), mismatch.Expected)
	require.Equal(t, uint64(3), mismatch.Got)

	requireBroken(t, bridge)
}

func TestFault_MissingTokenRequired(t *testing.T) {
	bridge := startBridge(t, fakeWorker(t, linebridge.WithRequireSequenceToken(true))...)

	_, err := bridge.Submit(t.Context(), "notoken hi")
	require.ErrorIs(t, err, linebridge.ErrSequenceMismatch)

	requireBroken(t, bridge)
}

func TestFault_MissingTokenTolerated(t *testing.T) {
	bridge := startBridge(t, fakeWorker(t)...)

	resp, err := bridge.Submit(t.Context(), "notoken hi")
	require.NoError(t, err)
	require.Equal(t, "hi", resp.Header)
}

func TestFault_UnsolicitedOutput(t *testing.T) {
	bridge := startBridge(t, fakeWorker(t)...)

	_, err := bridge.Submit(t.Context(), "stray")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return bridge.State() == linebridge.StateBroken
	}, 5*time.Second, 10*time.Millisecond)

	require.ErrorIs(t, bridge.FatalError(), linebridge.ErrUnexpectedOutput)
}

func TestFault_QueuedCallersFailFast(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	bridge := startBridge(t, fakeWorker(t)...)

	errs := make(chan error, 3)

	go func() {
		_, err := bridge.Submit(ctx, "truncate 2")
		errs <- err
	}()

	require.Eventually(t, func() bool {
		return bridge.Stats().Submitted == 1
	}, time.Second, time.Millisecond)

	for range 2 {
		go func() {
			_, err := bridge.Submit(ctx, "sleep 1s")
			errs <- err
		}()
	}

	failures := 0

	for range 3 {
		err := <-errs
		require.Error(t, err)

		if errors.Is(err, linebridge.ErrProcessUnavailable) || errors.Is(err, linebridge.ErrTruncatedResponse) {
			failures++
		}
	}

	require.Equal(t, 3, failures)
	require.NoError(t, ctx.Err(), "failures must not wait for the deadline")
}

func TestFault_InvalidCommand(t *testing.T) {
	bridge := startBridge(t, fakeWorker(t)...)

	_, err := bridge.Submit(t.Context(), "echo a\necho b")
	require.ErrorIs(t, err, linebridge.ErrInvalidCommand)

	_, err = bridge.Submit(t.Context(), "   ")
	require.ErrorIs(t, err, linebridge.ErrInvalidCommand)

	// Rejected commands never reach the worker.
	resp, err := bridge.Submit(t.Context(), "echo fine")
	require.NoError(t, err)
	require.Equal(t, uint64(1), resp.Sequence)
}
