package worker

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/linebridge-go/internal/config"
	"github.com/wagiedev/linebridge-go/internal/errors"
)

func writeExecutable(t *testing.T, path string) {
	t.Helper()

	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755))
}

// TestDiscoverer_NotFound tests that an invalid worker path returns WorkerNotFoundError.
func TestDiscoverer_NotFound(t *testing.T) {
	discoverer := NewDiscoverer(&Config{
		WorkerPath: "/nonexistent/path/to/worker",
		Logger:     slog.Default(),
	})

	_, err := discoverer.Discover(context.Background())

	require.Error(t, err)
	require.IsType(t, &errors.WorkerNotFoundError{}, err)
}

// TestDiscoverer_ExplicitPath tests discovery with an explicit path.
func TestDiscoverer_ExplicitPath(t *testing.T) {
	fake := filepath.Join(t.TempDir(), "worker")
	writeExecutable(t, fake)

	path, err := NewDiscoverer(&Config{WorkerPath: fake}).Discover(context.Background())

	require.NoError(t, err)
	require.Equal(t, fake, path)
}

func TestDiscoverer_ExplicitPathNotExecutable(t *testing.T) {
	fake := filepath.Join(t.TempDir(), "worker")
	require.NoError(t, os.WriteFile(fake, []byte("data"), 0o644))

	_, err := NewDiscoverer(&Config{WorkerPath: fake}).Discover(context.Background())

	notFound, ok := err.(*errors.WorkerNotFoundError)
	require.True(t, ok)
	require.Equal(t, []string{fake}, notFound.SearchedPaths)
}

func TestDiscoverer_SearchesPath(t *testing.T) {
	binDir := t.TempDir()
	writeExecutable(t, filepath.Join(binDir, "ticket-worker"))
	t.Setenv("PATH", binDir)

	path, err := NewDiscoverer(&Config{BinaryName: "ticket-worker"}).Discover(context.Background())

	require.NoError(t, err)
	require.Equal(t, filepath.Join(binDir, "ticket-worker"), path)
}

func TestDiscoverer_FallsBackToWorkingDirectory(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	dir := t.TempDir()
	writeExecutable(t, filepath.Join(dir, DefaultBinaryName))

	path, err := NewDiscoverer(&Config{Dir: dir}).Discover(context.Background())

	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, DefaultBinaryName), path)
}

func TestDiscoverer_ReportsSearchedPaths(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	dir := t.TempDir()

	_, err := NewDiscoverer(&Config{Dir: dir}).Discover(context.Background())

	notFound, ok := err.(*errors.WorkerNotFoundError)
	require.True(t, ok)
	require.Equal(t, []string{"$PATH", filepath.Join(dir, DefaultBinaryName)}, notFound.SearchedPaths)
}

func TestDiscoverer_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDiscoverer(nil).Discover(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestBuildArgs(t *testing.T) {
	options := &config.Options{Args: []string{"--data", "/tmp/ticket"}}

	args := BuildArgs(options)
	require.Equal(t, []string{"--data", "/tmp/ticket"}, args)

	args[0] = "changed"
	require.Equal(t, "--data", options.Args[0])

	require.Empty(t, BuildArgs(&config.Options{}))
}

func TestBuildEnvironment(t *testing.T) {
	env := BuildEnvironment(&config.Options{
		Env: map[string]string{"TICKET_MODE": "strict"},
	})

	require.True(t, slices.Contains(env, "LINEBRIDGE=1"))
	require.True(t, slices.Contains(env, "LINEBRIDGE_SEQUENCE_TOKENS=1"))
	require.True(t, slices.Contains(env, "TICKET_MODE=strict"))

	env = BuildEnvironment(&config.Options{DisableSequenceTokens: true})
	require.False(t, slices.Contains(env, "LINEBRIDGE_SEQUENCE_TOKENS=1"))
}
