package subprocess

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/wagiedev/linebridge-go/internal/config"
	"github.com/wagiedev/linebridge-go/internal/errors"
	"github.com/wagiedev/linebridge-go/internal/worker"
)

const (
	// maxStderrBufferSize is the maximum size for the stderr buffer.
	// Stderr reading continues indefinitely (callback receives all lines),
	// but the buffer stops growing after this limit to prevent unbounded memory usage.
	maxStderrBufferSize = 1024 * 1024 // 1MB

	// lineBufferSize is the capacity of the output line channel.
	lineBufferSize = 64
)

// ProcessTransport implements Transport by spawning the worker as a
// subprocess and exchanging newline-terminated lines over its standard
// streams.
type ProcessTransport struct {
	log            *slog.Logger
	options        *config.Options
	workerPath     string
	args           []string
	env            []string
	dir            string
	cmd            *exec.Cmd
	stdin          io.WriteCloser
	stdout         io.ReadCloser
	stderr         io.ReadCloser
	stderrCallback func(string) // Callback for streaming stderr output
	mu             sync.Mutex   // Protects stdin writes and flags
	closing        bool         // Whether Close() has been called (intentional shutdown)
	stdinClosed    bool         // Whether stdin was closed (end of input or cancellation)
	reading        bool         // Whether ReadLines has been called
	exited         chan struct{}
	exitErr        error
}

// Compile-time verification that ProcessTransport implements the Transport interface.
var _ config.Transport = (*ProcessTransport)(nil)

// NewProcessTransport creates a new process transport with the given options.
//
// Worker discovery is deferred to Start(), which searches for the worker
// binary in the following order:
//  1. The explicit path in options.WorkerPath (if provided)
//  2. The system PATH
//  3. The working directory
//
// Start() returns WorkerNotFoundError if the binary cannot be located.
func NewProcessTransport(log *slog.Logger, options *config.Options) *ProcessTransport {
	return &ProcessTransport{
		log:            log.With("component", "process_transport"),
		options:        options,
		stderrCallback: options.Stderr,
		exited:         make(chan struct{}),
	}
}

// Start starts the worker subprocess.
//
// ctx only bounds discovery and startup: the worker's lifetime is ended by
// EndInput or Close, never by ctx.
//
// Returns WorkerNotFoundError if the binary cannot be located,
// or ConnectionError if the process fails to start.
func (t *ProcessTransport) Start(ctx context.Context) error {
	t.log.Info("Starting worker subprocess")

	discoverer := worker.NewDiscoverer(&worker.Config{
		WorkerPath: t.options.WorkerPath,
		Dir:        t.options.Dir,
		Logger:     t.log,
	})

	workerPath, err := discoverer.Discover(ctx)
	if err != nil {
		return fmt.Errorf("discover worker: %w", err)
	}

	t.workerPath = workerPath
	t.args = worker.BuildArgs(t.options)
	t.env = worker.BuildEnvironment(t.options)

	t.dir = t.options.Dir
	if t.dir == "" {
		t.dir, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
	}

	t.log.Debug("Built worker command", "worker_path", t.workerPath, "args", t.args, "dir", t.dir)

	//nolint:gosec // G204: Subprocess launching with dynamic args is expected for worker invocation
	cmd := exec.Command(t.workerPath, t.args...)
	cmd.Dir = t.dir
	cmd.Env = t.env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &errors.ConnectionError{Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &errors.ConnectionError{Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &errors.ConnectionError{Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		t.log.Error("Failed to start worker process", "error", err)

		return &errors.ConnectionError{Err: fmt.Errorf("start process: %w", err)}
	}

	t.mu.Lock()
	t.cmd = cmd
	t.stdin = stdin
	t.stdout = stdout
	t.stderr = stderr
	t.mu.Unlock()

	t.log.Info("Worker subprocess started", "pid", cmd.Process.Pid)

	return nil
}

// ReadLines reads newline-terminated lines from the worker's stdout.
//
// The reading goroutine ends when stdout is exhausted, a line exceeds
// Options.MaxLineBytes, or ctx is cancelled. It then reports at most one
// terminal error: the read failure, ErrUnterminatedLine for a final line
// without a newline, or a ProcessError when the worker exited with a
// non-zero status outside of Close. The error channel is closed before the
// line channel.
func (t *ProcessTransport) ReadLines(ctx context.Context) (<-chan string, <-chan error) {
	lines := make(chan string, lineBufferSize)
	errs := make(chan error, 1)

	t.mu.Lock()
	started := t.cmd != nil && !t.reading
	t.reading = true
	t.mu.Unlock()

	if !started {
		errs <- errors.ErrTransportNotConnected

		close(errs)
		close(lines)

		return lines, errs
	}

	var (
		stderrWg     sync.WaitGroup
		stderrBuffer strings.Builder
		stderrMu     sync.Mutex
	)

	// Stderr must be fully read before cmd.Wait().
	// See: https://pkg.go.dev/os/exec#Cmd.StderrPipe
	stderrWg.Go(func() {
		scanner := bufio.NewScanner(t.stderr)
		for scanner.Scan() {
			line := scanner.Text()

			stderrMu.Lock()

			if stderrBuffer.Len() < maxStderrBufferSize {
				if stderrBuffer.Len() > 0 {
					stderrBuffer.WriteString("\n")
				}

				stderrBuffer.WriteString(line)
			}

			stderrMu.Unlock()

			if t.stderrCallback != nil {
				t.stderrCallback(line)
			}
		}

		if err := scanner.Err(); err != nil {
			t.log.Debug("Stderr scanner error", "error", err)
		}
	})

	go func() {
		defer close(t.exited)

		lineCount := 0

		scanErr := scanLines(t.stdout, t.maxLineBytes(), func(line string) bool {
			select {
			case lines <- line:
				lineCount++

				return true
			case <-ctx.Done():
				return false
			}
		})

		if scanErr == nil && ctx.Err() != nil {
			scanErr = ctx.Err()
		}

		t.log.Debug("Worker output ended", "lines", lineCount, "error", scanErr)

		// A read failure ends the conversation immediately; the process is
		// reaped in the background once its output has been drained.
		if scanErr != nil && !stderrors.Is(scanErr, errors.ErrUnterminatedLine) {
			t.finish(lines, errs, scanErr)

			_, _ = io.Copy(io.Discard, t.stdout)

			stderrWg.Wait()
			t.reap(t.cmd.Wait(), "")

			return
		}

		stderrWg.Wait()

		stderrMu.Lock()
		stderrOutput := strings.TrimSpace(stderrBuffer.String())
		stderrMu.Unlock()

		procErr := t.reap(t.cmd.Wait(), stderrOutput)

		switch {
		case scanErr != nil:
			t.finish(lines, errs, scanErr)
		case procErr != nil:
			t.finish(lines, errs, procErr)
		default:
			t.finish(lines, errs, nil)
		}
	}()

	return lines, errs
}

// finish reports the terminal error, if any, and closes both channels.
func (t *ProcessTransport) finish(lines chan string, errs chan error, err error) {
	if err != nil {
		errs <- err
	}

	close(errs)
	close(lines)
}

// reap records the worker's exit and converts an unexpected non-zero exit
// into a ProcessError.
func (t *ProcessTransport) reap(waitErr error, stderr string) error {
	t.mu.Lock()
	isClosing := t.closing
	t.mu.Unlock()

	t.exitErr = waitErr

	if waitErr == nil {
		t.log.Info("Worker process exited")

		return nil
	}

	if isClosing {
		t.log.Debug("Worker process terminated during shutdown")

		return nil
	}

	exitCode := -1

	if exitErr, ok := stderrors.AsType[*exec.ExitError](waitErr); ok {
		exitCode = exitErr.ExitCode()
	}

	t.log.Error("Worker process exited with error", "exit_code", exitCode, "stderr", stderr)

	return &errors.ProcessError{
		ExitCode: exitCode,
		Stderr:   stderr,
		Err:      waitErr,
	}
}

func (t *ProcessTransport) maxLineBytes() int {
	if t.options.MaxLineBytes > 0 {
		return t.options.MaxLineBytes
	}

	return config.DefaultMaxLineBytes
}

// WriteLine writes one line to the worker's stdin, appending the newline.
//
// This method is safe for concurrent use and respects context cancellation
// even during blocking writes.
//
// If context is cancelled during a blocked write, stdin is closed to unblock
// the goroutine (safe since Go 1.9+). Subsequent calls will return ErrStdinClosed.
func (t *ProcessTransport) WriteLine(ctx context.Context, line string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdin == nil && !t.stdinClosed {
		return errors.ErrTransportNotConnected
	}

	if t.stdinClosed {
		return errors.ErrStdinClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	data := make([]byte, 0, len(line)+1)
	data = append(data, line...)
	data = append(data, '\n')

	// Write in goroutine to respect context cancellation
	done := make(chan error, 1)

	go func() {
		_, err := t.stdin.Write(data)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.log.Error("Failed to write line to worker", "error", err)

			return fmt.Errorf("write to stdin: %w", err)
		}

		return nil

	case <-ctx.Done():
		t.log.Debug("Context cancelled during write, closing stdin")
		// Close stdin to unblock the blocked Write (safe since Go 1.9+)
		_ = t.stdin.Close()
		t.stdinClosed = true

		select {
		case <-done:
		case <-time.After(1 * time.Second):
			t.log.Warn("Write goroutine did not exit after stdin close, potential leak")
		}

		return ctx.Err()
	}
}

// IsReady checks if the transport is ready for communication.
//
// Returns true if the worker process is running and stdin is open.
func (t *ProcessTransport) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.cmd != nil && t.cmd.Process != nil && t.stdin != nil && !t.stdinClosed && !t.closing
}

// EndInput closes stdin, signalling end of input to the worker.
func (t *ProcessTransport) EndInput() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdin != nil && !t.stdinClosed {
		t.log.Debug("Closing stdin pipe")

		t.stdinClosed = true

		return t.stdin.Close()
	}

	return nil
}

// Wait blocks until the worker process has been reaped by the ReadLines
// goroutine or ctx is done. It returns the process's exit error, if any.
func (t *ProcessTransport) Wait(ctx context.Context) error {
	t.mu.Lock()
	reading := t.reading && t.cmd != nil
	t.mu.Unlock()

	if !reading {
		return errors.ErrTransportNotConnected
	}

	select {
	case <-t.exited:
		return t.exitErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Terminate asks the worker to exit with SIGTERM.
func (t *ProcessTransport) Terminate() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd == nil || t.cmd.Process == nil {
		return nil
	}

	t.closing = true

	t.log.Debug("Terminating worker process", "pid", t.cmd.Process.Pid)

	if err := t.cmd.Process.Signal(syscall.SIGTERM); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("terminate worker process (pid %d): %w", t.cmd.Process.Pid, err)
	}

	return nil
}

// Close terminates the worker process.
//
// This forcefully kills the process using SIGKILL. It's safe to call
// Close multiple times or on an already-terminated process.
func (t *ProcessTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closing = true

	if t.stdin != nil && !t.stdinClosed {
		_ = t.stdin.Close()
	}

	t.stdinClosed = true

	if t.cmd != nil && t.cmd.Process != nil {
		t.log.Debug("Killing worker process", "pid", t.cmd.Process.Pid)

		if err := t.cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("kill worker process (pid %d): %w", t.cmd.Process.Pid, err)
		}
	}

	return nil
}
