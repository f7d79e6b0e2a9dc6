package linebridge

import (
	"log/slog"
	"maps"
	"time"

	"github.com/wagiedev/linebridge-go/internal/protocol"
)

// Option configures BridgeOptions using the functional options pattern.
type Option func(*BridgeOptions)

// applyBridgeOptions applies functional options to a BridgeOptions struct.
func applyBridgeOptions(opts []Option) *BridgeOptions {
	options := &BridgeOptions{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Basic Configuration =====

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *BridgeOptions) {
		o.Logger = logger
	}
}

// WithOptions starts from a complete BridgeOptions, for example one built
// from a configuration file. Options applied after it override its fields.
func WithOptions(base *BridgeOptions) Option {
	return func(o *BridgeOptions) {
		if base != nil {
			*o = *base
			o.Env = maps.Clone(base.Env)
		}
	}
}

// ===== Worker Process =====

// WithWorkerPath sets the explicit path to the worker binary.
func WithWorkerPath(path string) Option {
	return func(o *BridgeOptions) {
		o.WorkerPath = path
	}
}

// WithArgs sets extra arguments passed to the worker.
func WithArgs(args ...string) Option {
	return func(o *BridgeOptions) {
		o.Args = args
	}
}

// WithDir sets the working directory for the worker process.
func WithDir(dir string) Option {
	return func(o *BridgeOptions) {
		o.Dir = dir
	}
}

// WithEnv adds environment variables for the worker process.
// Repeated calls merge, later values win.
func WithEnv(env map[string]string) Option {
	return func(o *BridgeOptions) {
		if o.Env == nil {
			o.Env = make(map[string]string, len(env))
		}

		maps.Copy(o.Env, env)
	}
}

// WithStderr sets a callback invoked with every stderr line of the worker.
func WithStderr(handler func(string)) Option {
	return func(o *BridgeOptions) {
		o.Stderr = handler
	}
}

// WithLockFile locks path for the bridge's lifetime so that a second bridge
// pointed at the same worker data fails to start with ErrWorkerLocked.
func WithLockFile(path string) Option {
	return func(o *BridgeOptions) {
		o.LockFile = path
	}
}

// WithTransport injects a custom transport instead of spawning a process.
func WithTransport(transport Transport) Option {
	return func(o *BridgeOptions) {
		o.Transport = transport
	}
}

// ===== Protocol =====

// WithRules replaces the rule table. Commands whose kind is not listed are
// single-line.
func WithRules(rules RuleTable) Option {
	return func(o *BridgeOptions) {
		o.Rules = rules
	}
}

// WithSequenceTokens controls whether commands are prefixed with "[n] " so
// the worker can echo the exchange's sequence number in its header.
// Stamping is on by default; commands that already carry a "[n]" token are
// never stamped.
func WithSequenceTokens(enabled bool) Option {
	return func(o *BridgeOptions) {
		o.DisableSequenceTokens = !enabled
	}
}

// WithRequireSequenceToken rejects headers that carry no sequence token.
func WithRequireSequenceToken(required bool) Option {
	return func(o *BridgeOptions) {
		o.RequireSequenceToken = required
	}
}

// WithMaxLineBytes bounds a single worker output line.
func WithMaxLineBytes(n int) Option {
	return func(o *BridgeOptions) {
		o.MaxLineBytes = n
	}
}

// WithMaxFollowUpLines bounds the follow-up count a header may declare.
func WithMaxFollowUpLines(n int) Option {
	return func(o *BridgeOptions) {
		o.MaxFollowUpLines = n
	}
}

// ===== Lifecycle =====

// WithTerminationCommand sets the command Shutdown submits. Defaults to "exit".
func WithTerminationCommand(command string) Option {
	return func(o *BridgeOptions) {
		o.TerminationCommand = command
	}
}

// WithGracePeriod sets how long Shutdown waits for the worker to exit after
// the termination exchange.
func WithGracePeriod(d time.Duration) Option {
	return func(o *BridgeOptions) {
		o.GracePeriod = d
	}
}

// WithDefaultTimeout bounds every exchange submitted without WithDeadline.
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *BridgeOptions) {
		o.DefaultTimeout = d
	}
}

// ===== Submit Options =====

// SubmitOption tunes a single exchange.
type SubmitOption func(*protocol.SubmitOptions)

// applySubmitOptions applies functional options to a SubmitOptions struct.
func applySubmitOptions(opts []SubmitOption) protocol.SubmitOptions {
	var options protocol.SubmitOptions
	for _, opt := range opts {
		opt(&options)
	}

	return options
}

// WithRule overrides the rule table for this exchange.
func WithRule(rule Rule) SubmitOption {
	return func(o *protocol.SubmitOptions) {
		o.Rule = &rule
	}
}

// WithDeadline bounds how long the caller waits for its response.
// It replaces the bridge's default timeout for this exchange. When it
// expires before the exchange reaches the worker, the command is dropped
// and never executed; once written, the worker's late response is discarded.
func WithDeadline(d time.Duration) SubmitOption {
	return func(o *protocol.SubmitOptions) {
		o.Deadline = d
	}
}
